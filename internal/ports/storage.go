// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import "context"

// Storage persists build state between runs so unchanged pages are not
// rewritten twice. The backing store (bbolt) is project-scoped: each projectID
// gets its own namespace. Concurrent reads are safe; writes are serialized by
// the adapter.
//
// Crash safety: SaveIndex and PutDocuments must be transactional. A crash
// mid-write must not corrupt previously committed data.
type Storage interface {
	// SaveIndex persists the term index of the latest build.
	// Overwrites any prior index for this projectID.
	SaveIndex(projectID string, snap *IndexSnapshot) error

	// LoadIndex retrieves the last persisted term index.
	// Returns nil, nil if no index exists (fresh project).
	LoadIndex(projectID string) (*IndexSnapshot, error)

	// GetDocument returns the cached rewrite of one document.
	// Returns nil, nil on a cache miss.
	GetDocument(projectID, docID string) (*CachedDocument, error)

	// PutDocuments stores rewritten documents in one transaction.
	PutDocuments(projectID string, docs []*CachedDocument) error

	// DeleteProject removes all data (index + documents) for a project.
	// Idempotent: deleting a nonexistent project is not an error.
	DeleteProject(projectID string) error
}

// LinkEntry is one linkable term and the canonical location it points to.
// SourceID identifies the page that contributed the term; it is the page's
// canonical route and is used for self-link suppression.
type LinkEntry struct {
	Term     string `json:"term"`
	Target   string `json:"target"`
	SourceID string `json:"source_id"`
}

// IndexSnapshot is a persisted term index.
type IndexSnapshot struct {
	Fingerprint string      // content hash of the entry list
	Entries     []LinkEntry // priority order
	BuiltAt     int64       // unix seconds
}

// CachedDocument is the rewrite result of one document, keyed by a
// fingerprint of everything that influenced it (body, index, options).
type CachedDocument struct {
	ID            string
	Fingerprint   string
	Body          string
	LinksInserted int
	PerTerm       map[string]int
}

// Page is one wiki page as loaded by a PageSource.
type Page struct {
	Route       string   // canonical output route, e.g. /docs/world/characters/a.html
	Title       string   // link title (autoLinkTitle > title > first heading)
	PageTitle   string   // displayed title (title > first heading); never linked on its own page
	Aliases     []string // extra linkable names
	AutoLink    bool     // false opts the page out as link source and target
	IgnoreTerms []string // terms never linked inside this page
	Body        string   // Markdown body without front matter
	Prefix      string   // raw front matter block, re-emitted verbatim on write
	Source      string   // file path or row key, for diagnostics
}

// PageSource enumerates the pages of one site.
type PageSource interface {
	// Pages returns every page in a deterministic order.
	Pages(ctx context.Context) ([]*Page, error)

	// Name identifies the source in logs and reports.
	Name() string
}

// PageSink receives rewritten page bodies.
type PageSink interface {
	// Write persists body as the new content of page. Front matter and any
	// other non-body content of the page must be preserved.
	Write(page *Page, body string) error
}

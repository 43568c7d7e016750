// Package linker turns bare mentions of indexed terms into links.
//
// An Engine is built once per build from an immutable term index and is safe
// for concurrent use: every Rewrite call owns its own protected text and Quota.
//
// Rewrite pipeline for one document:
//
//	protect (code, links, images, comments, components, tags)
//	  -> match index entries longest-first, reserving every generated link
//	  -> restore placeholders
//
// A mismatch during restore or a panic anywhere in the pipeline aborts only
// that document; the original body is returned alongside the error.
package linker

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/corey/autolink/internal/domain/protect"
	"github.com/corey/autolink/internal/domain/terms"
	"github.com/corey/autolink/internal/ports"
)

// Default limits, matching the wiki plugin this engine replaces.
const (
	DefaultMaxLinksPerPage = 80
	DefaultMaxLinksPerTerm = 5
)

// Options configures a rewrite. Zero or negative limits mean unlimited.
type Options struct {
	MaxLinksPerPage int
	MaxLinksPerTerm int
	// WordBoundary skips an occurrence whose ASCII letter or digit edge touches
	// another ASCII letter or digit. Off by default; CJK text has no spaces.
	WordBoundary bool
	// Components are opaque container tags whose contents are never linked.
	Components []string
}

// Document is one page body to rewrite.
type Document struct {
	ID          string // canonical route, compared against LinkEntry.SourceID
	Title       string
	Body        string
	AutoLink    bool
	IgnoreTerms []string
}

// Diagnostics summarises one rewrite.
type Diagnostics struct {
	DocumentID    string         `json:"document_id"`
	LinksInserted int            `json:"links_inserted"`
	PerTermCounts map[string]int `json:"per_term_counts,omitempty"`
	Disabled      bool           `json:"disabled,omitempty"` // autoLink was off
}

// Engine rewrites documents against one term index.
type Engine struct {
	index   *terms.Index
	opts    Options
	scanner ports.TermScanner
}

// NewEngine returns an engine for index. scanner may be nil; when set it must
// have been built over index.Terms() in the same order.
func NewEngine(index *terms.Index, opts Options, scanner ports.TermScanner) *Engine {
	return &Engine{index: index, opts: opts, scanner: scanner}
}

// Index returns the engine's term index.
func (e *Engine) Index() *terms.Index {
	return e.index
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Rewrite links every eligible mention in doc.Body. On error the returned body
// is doc.Body unchanged.
func (e *Engine) Rewrite(doc Document) (out string, diag Diagnostics, err error) {
	diag = Diagnostics{DocumentID: doc.ID}
	if !doc.AutoLink {
		diag.Disabled = true
		return doc.Body, diag, nil
	}
	if e.index == nil {
		return doc.Body, diag, ErrNilIndex
	}
	if e.index.Len() == 0 || doc.Body == "" {
		return doc.Body, diag, nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("rewrite panicked", "doc", doc.ID, "panic", r)
			out = doc.Body
			diag = Diagnostics{DocumentID: doc.ID}
			err = fmt.Errorf("%w: %s: %v", ErrPanic, doc.ID, r)
		}
	}()

	p := protect.Protect(doc.Body, protect.Options{Components: e.opts.Components})
	r := e.newRewriter(p, doc)
	working := r.run()

	restored, err := p.Restore(working)
	if err != nil {
		slog.Warn("restore failed, keeping original body", "doc", doc.ID, "err", err)
		return doc.Body, Diagnostics{DocumentID: doc.ID}, fmt.Errorf("rewrite %s: %w", doc.ID, err)
	}

	diag.LinksInserted = r.inserted
	if len(r.perTerm) > 0 {
		diag.PerTermCounts = r.perTerm
	}
	slog.Debug("document rewritten", "doc", doc.ID, "links", r.inserted, "spans", p.Len())
	return restored, diag, nil
}

// candidates reports which entries may occur in body. A nil result means the
// prefilter is unavailable and every entry is a candidate.
func (e *Engine) candidates(body string) []bool {
	if e.scanner == nil {
		return nil
	}
	present := e.scanner.Occurring(body)
	if len(present) != e.index.Len() {
		return nil
	}
	return present
}

func normalizeSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		if s = norm.NFC.String(strings.TrimSpace(s)); s != "" {
			set[s] = true
		}
	}
	return set
}

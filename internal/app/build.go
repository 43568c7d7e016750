package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/corey/autolink/internal/adapters/ahocorasick"
	"github.com/corey/autolink/internal/domain/linker"
	"github.com/corey/autolink/internal/domain/report"
	"github.com/corey/autolink/internal/domain/terms"
	"github.com/corey/autolink/internal/ports"
)

// topTermsInReport bounds the most-linked terms listed in report.json.
const topTermsInReport = 20

// BuildResult is the outcome of one batch build.
type BuildResult struct {
	Report  *report.Report
	Index   *terms.Index
	Results []report.Result // one per page, in source order
}

// Build loads every page, builds the term index and rewrites all pages in
// parallel. A page that fails keeps its original body and is listed in the
// report; only loading errors and cancellation fail the whole build.
func (a *App) Build(ctx context.Context) (*BuildResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	pages, err := a.Source.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pages from %s: %w", a.Source.Name(), err)
	}

	idx := terms.Build(pages, a.Config.TermOptions())
	engine := linker.NewEngine(idx, a.Config.LinkerOptions(), ahocorasick.NewScanner(idx.Terms()))

	results, fresh, err := a.rewriteAll(ctx, engine, pages)
	if err != nil {
		return nil, err
	}
	if a.Store != nil {
		a.persist(idx, fresh)
	}

	rep := report.Generate(a.Source.Name(), idx, results, time.Since(start), topTermsInReport)
	if !a.opts.DryRun {
		if err := report.WriteJSON(a.Paths.Report, rep); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}

	a.Metrics.ObserveBuild(rep, time.Now())
	if a.opts.MetricsFile != "" {
		if err := a.Metrics.WriteTextfile(a.opts.MetricsFile); err != nil {
			slog.Warn("metrics not written", "path", a.opts.MetricsFile, "err", err)
		}
	}

	slog.Info("build finished",
		"source", rep.Source,
		"documents", rep.Documents,
		"changed", rep.Changed,
		"cached", rep.Cached,
		"failed", rep.Failed,
		"links", rep.LinksInserted,
		"duration_ms", rep.DurationMS)

	return &BuildResult{Report: rep, Index: idx, Results: results}, nil
}

// Index builds the term index from the current pages without rewriting.
func (a *App) Index(ctx context.Context) (*terms.Index, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pages, err := a.Source.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pages from %s: %w", a.Source.Name(), err)
	}
	return terms.Build(pages, a.Config.TermOptions()), nil
}

// LastIndex returns the index persisted by the latest build, or nil when the
// project was never built or the cache is disabled.
func (a *App) LastIndex() (*terms.Index, *ports.IndexSnapshot, error) {
	if a.Store == nil {
		return nil, nil, nil
	}
	snap, err := a.Store.LoadIndex(a.ProjectID)
	if err != nil || snap == nil {
		return nil, nil, err
	}
	return terms.FromEntries(snap.Entries), snap, nil
}

// rewriteAll runs every page through engine on a bounded worker group. Each
// worker fills only its own result slot.
func (a *App) rewriteAll(ctx context.Context, engine *linker.Engine, pages []*ports.Page) ([]report.Result, []*ports.CachedDocument, error) {
	results := make([]report.Result, len(pages))
	fresh := make([]*ports.CachedDocument, len(pages))

	workers := a.Config.Workers
	if workers < 1 {
		workers = 1
	}
	indexFP := engine.Index().Fingerprint()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], fresh[i] = a.processPage(engine, indexFP, page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("build cancelled: %w", err)
	}

	docs := fresh[:0]
	for _, d := range fresh {
		if d != nil {
			docs = append(docs, d)
		}
	}
	return results, docs, nil
}

// processPage rewrites one page, consulting the build cache first, and hands
// the result to the sink. The returned CachedDocument is nil on a cache hit or
// a failed rewrite.
func (a *App) processPage(engine *linker.Engine, indexFP string, page *ports.Page) (res report.Result, fresh *ports.CachedDocument) {
	doc := linker.Document{
		ID:          page.Route,
		Title:       cmpOr(page.PageTitle, page.Title),
		Body:        page.Body,
		AutoLink:    page.AutoLink,
		IgnoreTerms: page.IgnoreTerms,
	}
	res = report.Result{Source: page.Source, Diag: linker.Diagnostics{DocumentID: doc.ID}}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("page processing panicked", "source", page.Source, "panic", r)
			res.Err = fmt.Errorf("%w: %s: %v", linker.ErrPanic, page.Source, r)
			fresh = nil
		}
	}()

	fp := docFingerprint(indexFP, engine.Options(), doc)
	out := page.Body
	if hit := a.cached(page.Source, fp); hit != nil {
		out = hit.Body
		res.Cached = true
		res.Diag.LinksInserted = hit.LinksInserted
		res.Diag.PerTermCounts = hit.PerTerm
		res.Diag.Disabled = !doc.AutoLink
	} else {
		rewritten, diag, err := engine.Rewrite(doc)
		res.Diag = diag
		if err != nil {
			res.Err = err
		} else {
			out = rewritten
			fresh = &ports.CachedDocument{
				ID:            page.Source,
				Fingerprint:   fp,
				Body:          out,
				LinksInserted: diag.LinksInserted,
				PerTerm:       diag.PerTermCounts,
			}
		}
	}
	res.Changed = out != page.Body

	if a.Sink != nil {
		if err := a.Sink.Write(page, out); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("write %s: %w", page.Source, err)
		}
	}
	return res, fresh
}

// cached returns the stored rewrite of source if its fingerprint still matches.
func (a *App) cached(source, fp string) *ports.CachedDocument {
	if a.Store == nil {
		return nil
	}
	doc, err := a.Store.GetDocument(a.ProjectID, source)
	if err != nil {
		slog.Debug("cache read failed", "source", source, "err", err)
		return nil
	}
	if doc == nil || doc.Fingerprint != fp {
		return nil
	}
	return doc
}

// persist stores fresh rewrites and the index snapshot. Cache failures are
// logged; the build result does not depend on them.
func (a *App) persist(idx *terms.Index, docs []*ports.CachedDocument) {
	if len(docs) > 0 {
		if err := a.Store.PutDocuments(a.ProjectID, docs); err != nil {
			slog.Warn("build cache not updated", "err", err)
		}
	}
	snap := &ports.IndexSnapshot{
		Fingerprint: idx.Fingerprint(),
		Entries:     idx.Entries(),
		BuiltAt:     time.Now().Unix(),
	}
	if err := a.Store.SaveIndex(a.ProjectID, snap); err != nil {
		slog.Warn("index snapshot not saved", "err", err)
	}
}

// docFingerprint hashes everything that influences the rewrite of doc.
func docFingerprint(indexFP string, opts linker.Options, doc linker.Document) string {
	h := blake3.New()
	for _, part := range []string{
		indexFP,
		strconv.Itoa(opts.MaxLinksPerPage),
		strconv.Itoa(opts.MaxLinksPerTerm),
		strconv.FormatBool(opts.WordBoundary),
		strings.Join(opts.Components, "\x1f"),
		doc.ID,
		doc.Title,
		strconv.FormatBool(doc.AutoLink),
		strings.Join(doc.IgnoreTerms, "\x1f"),
		doc.Body,
	} {
		h.WriteString(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cmpOr returns the first of its arguments that is not the zero value, or the
// zero value if there is none. It mirrors cmp.Or (Go 1.22+) for older toolchains.
func cmpOr[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/autolink/internal/domain/linker"
	"github.com/corey/autolink/internal/domain/report"
	"github.com/corey/autolink/internal/ports"
)

// =============================================================================
// Test fixtures
// =============================================================================

var sitePages = map[string]string{
	"README.md":            "# 首页\n\n灵动骑士 meets 异常构造.\n",
	"characters/knight.md": "---\ntitle: 灵动骑士\n---\n\n灵动骑士 is a knight. See 异常构造.\n",
	"anomaly.md":           "# 异常构造\n\n`灵动骑士` in code.\n",
	"hidden.md":            "---\nautoLink: false\ntitle: 秘密\n---\n灵动骑士\n",
}

func writeSite(t *testing.T, root string) {
	t.Helper()
	for rel, content := range sitePages {
		path := filepath.Join(root, "docs", filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newTestApp(t *testing.T, root string, opts Options) *App {
	t.Helper()
	clearDSNEnv(t)
	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	a, err := New(root, cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func readOut(t *testing.T, a *App, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(a.Config.OutDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

type fakeSource struct {
	pages []*ports.Page
	err   error
}

func (f *fakeSource) Pages(ctx context.Context) ([]*ports.Page, error) { return f.pages, f.err }
func (f *fakeSource) Name() string { return "fake" }

type fakeSink struct {
	mu      sync.Mutex
	written map[string]string
	err     error
	panics  bool
}

func (f *fakeSink) Write(page *ports.Page, body string) error {
	if f.panics {
		panic("sink exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = make(map[string]string)
	}
	f.written[page.Source] = body
	return f.err
}

func memApp(t *testing.T, src ports.PageSource, sink ports.PageSink) *App {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig(root)
	a := &App{
		ProjectRoot: root,
		ProjectID:   "test",
		Paths:       NewPaths(root),
		Config:      cfg,
		Source:      src,
		Sink:        sink,
		opts:        Options{DryRun: true},
	}
	return a
}

func knightPages() []*ports.Page {
	return []*ports.Page{
		{Route: "/knight", Title: "灵动骑士", AutoLink: true, Source: "knight.md", Body: "灵动骑士"},
		{Route: "/other", Title: "Other", AutoLink: true, Source: "other.md", Body: "meet 灵动骑士"},
	}
}

// =============================================================================
// Batch build
// =============================================================================

func TestBuild_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	a := newTestApp(t, root, Options{})

	res, err := a.Build(context.Background())
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, 4, rep.Documents)
	assert.Equal(t, 2, rep.Changed)
	assert.Equal(t, 1, rep.Disabled)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, 3, rep.LinksInserted)
	assert.Equal(t, 3, rep.IndexEntries)

	assert.Equal(t,
		"# 首页\n\n[灵动骑士](/characters/knight.html) meets [异常构造](/anomaly.html).\n",
		readOut(t, a, "README.md"))
	assert.Equal(t,
		"---\ntitle: 灵动骑士\n---\n\n灵动骑士 is a knight. See [异常构造](/anomaly.html).\n",
		readOut(t, a, "characters/knight.md"))
	assert.Equal(t, sitePages["anomaly.md"], readOut(t, a, "anomaly.md"))
	assert.Equal(t, sitePages["hidden.md"], readOut(t, a, "hidden.md"))

	// Sources are untouched when writing to a separate out dir.
	data, err := os.ReadFile(filepath.Join(root, "docs", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, sitePages["README.md"], string(data))

	saved, err := report.ReadJSON(a.Paths.Report)
	require.NoError(t, err)
	assert.Equal(t, rep.LinksInserted, saved.LinksInserted)
}

func TestBuild_SecondRunServedFromCache(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	a := newTestApp(t, root, Options{})

	first, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.Report.Cached)

	second, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, second.Report.Cached)
	assert.Equal(t, first.Report.LinksInserted, second.Report.LinksInserted)
	assert.Equal(t, first.Report.Changed, second.Report.Changed)
	assert.Equal(t, first.Report.Disabled, second.Report.Disabled)

	idx, snap, err := a.LastIndex()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, first.Index.Terms(), idx.Terms())
	assert.Equal(t, first.Index.Fingerprint(), snap.Fingerprint)
}

func TestBuild_CacheInvalidatedByIndexChange(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	a := newTestApp(t, root, Options{})

	_, err := a.Build(context.Background())
	require.NoError(t, err)

	// A new page adds a term, so every fingerprint changes.
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "meets.md"), []byte("# meets\n"), 0644))
	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Report.Cached)
	assert.Contains(t, readOut(t, a, "README.md"), "[meets](/meets.html)")
}

func TestBuild_InPlaceIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	writeConfig(t, root, "out_dir: docs\n")
	a := newTestApp(t, root, Options{NoCache: true})
	require.True(t, a.Config.InPlace())

	first, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Report.LinksInserted)
	rewritten := readOut(t, a, "README.md")

	second, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Report.LinksInserted)
	assert.Zero(t, second.Report.Changed)
	assert.Equal(t, rewritten, readOut(t, a, "README.md"))
}

func TestBuild_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	a := newTestApp(t, root, Options{DryRun: true, NoCache: true})

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.LinksInserted)
	require.Len(t, res.Results, 4)

	_, err = os.Stat(a.Config.OutDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(a.Paths.Report)
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_MetricsFile(t *testing.T) {
	root := t.TempDir()
	writeSite(t, root)
	path := filepath.Join(root, "autolink.prom")
	a := newTestApp(t, root, Options{NoCache: true, MetricsFile: path, Version: "test"})

	_, err := a.Build(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "autolink_links_inserted_total 3")
}

func TestBuild_MissingContentDir(t *testing.T) {
	a := newTestApp(t, t.TempDir(), Options{NoCache: true})
	_, err := a.Build(context.Background())
	assert.Error(t, err)
}

func TestBuild_SourceError(t *testing.T) {
	a := memApp(t, &fakeSource{err: errors.New("boom")}, nil)
	_, err := a.Build(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestBuild_SinkErrorFailsOnlyThatPage(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	a := memApp(t, &fakeSource{pages: knightPages()}, sink)

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Failed)
	assert.Len(t, res.Report.Failures, 2)
	assert.Contains(t, res.Report.Failures[0].Error, "disk full")
}

func TestBuild_PanicIsContained(t *testing.T) {
	a := memApp(t, &fakeSource{pages: knightPages()}, &fakeSink{panics: true})

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Failed)
	for _, r := range res.Results {
		assert.ErrorIs(t, r.Err, linker.ErrPanic)
	}
}

func TestBuild_PageTitleNeverLinkedOnItsOwnPage(t *testing.T) {
	// The page links as "Order" but is displayed as "Knight Order", which
	// another page registers as its own title.
	pages := []*ports.Page{
		{Route: "/order", Title: "Order", PageTitle: "Knight Order", AutoLink: true, Source: "order.md", Body: "Knight Order and Castle"},
		{Route: "/ko", Title: "Knight Order", AutoLink: true, Source: "ko.md", Body: "x"},
		{Route: "/castle", Title: "Castle", AutoLink: true, Source: "castle.md", Body: "y"},
	}
	sink := &fakeSink{}
	a := memApp(t, &fakeSource{pages: pages}, sink)

	_, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Knight Order and [Castle](/castle)", sink.written["order.md"])
}

func TestBuild_ParallelMatchesSerial(t *testing.T) {
	var pages []*ports.Page
	for i := 0; i < 50; i++ {
		pages = append(pages, &ports.Page{
			Route:    "/p" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Title:    "Page" + string(rune('A'+i%26)) + string(rune('A'+i/26)),
			AutoLink: true,
			Source:   "p.md",
			Body:     "灵动骑士 and PageAA and PageBA",
		})
	}
	pages = append(pages, knightPages()...)

	serialSink, parallelSink := &fakeSink{}, &fakeSink{}
	serial := memApp(t, &fakeSource{pages: pages}, serialSink)
	serial.Config.Workers = 1
	parallel := memApp(t, &fakeSource{pages: pages}, parallelSink)
	parallel.Config.Workers = 8

	a, err := serial.Build(context.Background())
	require.NoError(t, err)
	b, err := parallel.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Report.LinksInserted, b.Report.LinksInserted)
	for i := range a.Results {
		assert.Equal(t, a.Results[i].Diag, b.Results[i].Diag)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	a := memApp(t, &fakeSource{pages: knightPages()}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_FreshAndEmptyLast(t *testing.T) {
	a := memApp(t, &fakeSource{pages: knightPages()}, nil)
	idx, err := a.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Other", "灵动骑士"}, idx.Terms())

	last, snap, err := a.LastIndex()
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.Nil(t, snap)
}

func TestDocFingerprint(t *testing.T) {
	doc := linker.Document{ID: "/a", Title: "A", Body: "body", AutoLink: true}
	opts := linker.Options{MaxLinksPerPage: 80, MaxLinksPerTerm: 5}

	base := docFingerprint("idx", opts, doc)
	assert.Equal(t, base, docFingerprint("idx", opts, doc))
	assert.NotEqual(t, base, docFingerprint("idx2", opts, doc))

	other := doc
	other.Body = "body2"
	assert.NotEqual(t, base, docFingerprint("idx", opts, other))

	opts.WordBoundary = true
	assert.NotEqual(t, base, docFingerprint("idx", opts, doc))
}

package linker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/corey/autolink/internal/adapters/ahocorasick"
	"github.com/corey/autolink/internal/domain/protect"
	"github.com/corey/autolink/internal/domain/terms"
	"github.com/corey/autolink/internal/ports"
)

// =============================================================================
// Matcher/Rewriter: longest-first linking with quotas, self-link suppression,
// protected regions and idempotence.
// =============================================================================

func entry(term, target string) ports.LinkEntry {
	return ports.LinkEntry{Term: term, Target: target, SourceID: target}
}

func newEngine(opts Options, entries ...ports.LinkEntry) *Engine {
	idx := terms.FromEntries(entries)
	return NewEngine(idx, opts, ahocorasick.NewScanner(idx.Terms()))
}

func doc(id, body string) Document {
	return Document{ID: id, Body: body, AutoLink: true}
}

func rewrite(t *testing.T, e *Engine, d Document) (string, Diagnostics) {
	t.Helper()
	out, diag, err := e.Rewrite(d)
	require.NoError(t, err)
	return out, diag
}

func TestRewrite_CJKScenario(t *testing.T) {
	e := newEngine(Options{MaxLinksPerPage: 10, MaxLinksPerTerm: 1},
		entry("灵动骑士", "/characters/a"),
		entry("异常构造", "/concepts/b"),
	)
	out, diag := rewrite(t, e, doc("/page", "灵动骑士在异常构造中现身。灵动骑士再次现身。"))

	assert.Equal(t, "[灵动骑士](/characters/a)在[异常构造](/concepts/b)中现身。灵动骑士再次现身。", out)
	assert.Equal(t, 2, diag.LinksInserted)
	assert.Equal(t, map[string]int{"灵动骑士": 1, "异常构造": 1}, diag.PerTermCounts)
	assert.Equal(t, "/page", diag.DocumentID)
}

func TestRewrite_LongestMatchWins(t *testing.T) {
	e := newEngine(Options{},
		entry("AB", "/ab"),
		entry("A", "/a"),
	)
	out, _ := rewrite(t, e, doc("/page", "see AB and A"))
	assert.Equal(t, "see [AB](/ab) and [A](/a)", out)
}

func TestRewrite_ShorterTermNeverInsideQuotaLimitedLonger(t *testing.T) {
	e := newEngine(Options{MaxLinksPerTerm: 1},
		entry("张三丰", "/zsf"),
		entry("张三", "/zs"),
	)
	out, _ := rewrite(t, e, doc("/page", "张三丰，张三丰，张三"))
	assert.Equal(t, "[张三丰](/zsf)，张三丰，[张三](/zs)", out)
}

func TestRewrite_PageQuota(t *testing.T) {
	e := newEngine(Options{MaxLinksPerPage: 1},
		entry("Alpha", "/alpha"),
		entry("Beta", "/beta"),
	)
	out, diag := rewrite(t, e, doc("/page", "Beta then Alpha"))
	assert.Equal(t, 1, diag.LinksInserted)
	assert.Equal(t, 1, strings.Count(out, "]("))
	// Alpha is earlier in the index (same length, first seen), so it wins.
	assert.Equal(t, "Beta then [Alpha](/alpha)", out)
}

func TestRewrite_TermQuota(t *testing.T) {
	e := newEngine(Options{MaxLinksPerTerm: 1}, entry("Foo", "/foo"))
	out, diag := rewrite(t, e, doc("/page", "Foo, Foo, Foo"))
	assert.Equal(t, "[Foo](/foo), Foo, Foo", out)
	assert.Equal(t, map[string]int{"Foo": 1}, diag.PerTermCounts)
}

func TestRewrite_UnlimitedQuota(t *testing.T) {
	e := newEngine(Options{MaxLinksPerPage: 0, MaxLinksPerTerm: -1}, entry("Foo", "/foo"))
	_, diag := rewrite(t, e, doc("/page", strings.Repeat("Foo ", 200)))
	assert.Equal(t, 200, diag.LinksInserted)
}

func TestRewrite_SelfLinkSuppressed(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"), entry("Bar", "/bar"))
	out, _ := rewrite(t, e, doc("/foo", "Foo meets Bar"))
	assert.Equal(t, "Foo meets [Bar](/bar)", out)
}

func TestRewrite_TitleNeverLinked(t *testing.T) {
	e := newEngine(Options{}, ports.LinkEntry{Term: "Foo", Target: "/elsewhere", SourceID: "/elsewhere"})
	d := doc("/page", "Foo here")
	d.Title = " Foo "
	out, _ := rewrite(t, e, d)
	assert.Equal(t, "Foo here", out)
}

func TestRewrite_ProtectedRegionsUntouched(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"))
	body := "`Foo` is great. [Foo](/other)"
	out, diag := rewrite(t, e, doc("/page", body))
	assert.Equal(t, body, out)
	assert.Zero(t, diag.LinksInserted)
}

func TestRewrite_ProtectedConstructs(t *testing.T) {
	e := newEngine(Options{Components: []string{"CharacterCard"}}, entry("Foo", "/foo"))
	body := strings.Join([]string{
		"```",
		"Foo in code",
		"```",
		"<!-- Foo -->",
		"![Foo](foo.png)",
		`<img alt="Foo" src="x.png">`,
		`<a href="/x">Foo</a>`,
		"<https://example.com/Foo>",
		"https://example.com/Foo",
		`<CharacterCard name="Foo">Foo</CharacterCard>`,
		`<span title="Foo">`,
	}, "\n")
	out, diag := rewrite(t, e, doc("/page", body))
	assert.Equal(t, body, out)
	assert.Zero(t, diag.LinksInserted)
}

func TestRewrite_TagContentsStillLinked(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"))
	out, _ := rewrite(t, e, doc("/page", `<span title="Foo">Foo</span>`))
	assert.Equal(t, `<span title="Foo">[Foo](/foo)</span>`, out)
}

func TestRewrite_IgnoreTerms(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"), entry("Bar", "/bar"))
	d := doc("/page", "Foo and Bar")
	d.IgnoreTerms = []string{"Bar"}
	out, _ := rewrite(t, e, d)
	assert.Equal(t, "[Foo](/foo) and Bar", out)
}

func TestRewrite_AutoLinkDisabled(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"))
	d := doc("/page", "Foo")
	d.AutoLink = false
	out, diag := rewrite(t, e, d)
	assert.Equal(t, "Foo", out)
	assert.True(t, diag.Disabled)
}

func TestRewrite_EmptyTargetSkipped(t *testing.T) {
	e := newEngine(Options{}, ports.LinkEntry{Term: "Foo", Target: "", SourceID: "/x"})
	out, _ := rewrite(t, e, doc("/page", "Foo"))
	assert.Equal(t, "Foo", out)
}

func TestRewrite_ExternalTarget(t *testing.T) {
	e := newEngine(Options{}, entry("Docs", "https://example.com/a?b=1&c=2"))
	out, _ := rewrite(t, e, doc("/page", "read Docs"))
	assert.Equal(t,
		`read <a href="https://example.com/a?b=1&amp;c=2" target="_blank" rel="noopener noreferrer">Docs</a>`,
		out)
}

func TestRewrite_AnchorFallback(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/a page(1)"))
	out, _ := rewrite(t, e, doc("/page", "Foo"))
	assert.Equal(t, `<a href="/a page(1)">Foo</a>`, out)

	e = newEngine(Options{}, entry("Foo", "/foo"))
	cases := []struct {
		name, in, want string
		links          int
	}{
		{"after bang", "Wow!Foo here", `Wow!<a href="/foo">Foo</a> here`, 1},
		{"bang then space", "Wow! Foo", "Wow! [Foo](/foo)", 1},
		{"escaped", `\Foo escaped`, `\Foo escaped`, 0},
		{"escaped backslash", `\\Foo`, `\\[Foo](/foo)`, 1},
		{"escaped then plain", `\Foo and Foo`, `\Foo and [Foo](/foo)`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, diag := rewrite(t, e, doc("/page", tc.in))
			assert.Equal(t, tc.want, out)
			assert.Equal(t, tc.links, diag.LinksInserted)

			again, diag := rewrite(t, e, doc("/page", out))
			assert.Equal(t, out, again)
			assert.Zero(t, diag.LinksInserted)
		})
	}
}

func TestRewrite_LinkSyntaxInCodeIsNotCharged(t *testing.T) {
	e := newEngine(Options{MaxLinksPerTerm: 1}, entry("Foo", "/foo"))
	cases := map[string]string{
		"inline code": "Use `[Foo](/foo)` syntax. Foo is here.",
		"fence":       "```\n[Foo](/foo)\n```\nFoo is here.",
		"comment":     "<!-- [Foo](/foo) --> Foo is here.",
		"image":       "![Foo](/foo) Foo is here.",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			out, diag := rewrite(t, e, doc("/page", body))
			assert.Equal(t, 1, diag.LinksInserted)
			assert.Contains(t, out, "[Foo](/foo) is here.")
		})
	}
}

func TestRewrite_ExistingLinksCharged(t *testing.T) {
	e := newEngine(Options{MaxLinksPerTerm: 1}, entry("Foo", "/foo"))

	out, diag := rewrite(t, e, doc("/page", "[Foo](/foo) then Foo"))
	assert.Equal(t, "[Foo](/foo) then Foo", out)
	assert.Zero(t, diag.LinksInserted)

	out, diag = rewrite(t, e, doc("/page", `Wow!<a href="/foo">Foo</a> then Foo`))
	assert.Equal(t, `Wow!<a href="/foo">Foo</a> then Foo`, out)
	assert.Zero(t, diag.LinksInserted)
}

func TestRewrite_WordBoundary(t *testing.T) {
	entries := []ports.LinkEntry{entry("cat", "/cat")}
	body := "cat concat cats 猫cat"

	loose := newEngine(Options{}, entries...)
	out, _ := rewrite(t, loose, doc("/page", body))
	assert.Equal(t, "[cat](/cat) con[cat](/cat) [cat](/cat)s 猫[cat](/cat)", out)

	strict := newEngine(Options{WordBoundary: true}, entries...)
	out, _ = rewrite(t, strict, doc("/page", body))
	assert.Equal(t, "[cat](/cat) concat cats 猫[cat](/cat)", out)
}

func TestRewrite_StrayPlaceholderRunesSurvive(t *testing.T) {
	e := newEngine(Options{}, entry("Foo", "/foo"))
	body := "\uE000\uE010\uE001 Foo \uE001"
	out, _ := rewrite(t, e, doc("/page", body))
	assert.Equal(t, "\uE000\uE010\uE001 [Foo](/foo) \uE001", out)
}

func TestRewrite_NoScanner(t *testing.T) {
	idx := terms.FromEntries([]ports.LinkEntry{entry("Foo", "/foo")})
	e := NewEngine(idx, Options{}, nil)
	out, _ := rewrite(t, e, doc("/page", "Foo"))
	assert.Equal(t, "[Foo](/foo)", out)
}

func TestRewrite_NilIndex(t *testing.T) {
	e := NewEngine(nil, Options{}, nil)
	out, _, err := e.Rewrite(doc("/page", "Foo"))
	assert.ErrorIs(t, err, ErrNilIndex)
	assert.Equal(t, "Foo", out)
}

type panicScanner struct{}

func (panicScanner) Occurring(string) []bool { panic("boom") }

func TestRewrite_PanicKeepsOriginal(t *testing.T) {
	idx := terms.FromEntries([]ports.LinkEntry{entry("Foo", "/foo")})
	e := NewEngine(idx, Options{}, panicScanner{})
	out, diag, err := e.Rewrite(doc("/page", "Foo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPanic))
	assert.Equal(t, "Foo", out)
	assert.Zero(t, diag.LinksInserted)
}

func TestRewrite_Idempotent(t *testing.T) {
	e := newEngine(Options{MaxLinksPerPage: 3, MaxLinksPerTerm: 1},
		entry("灵动骑士", "/characters/a"),
		entry("异常构造", "/concepts/b"),
		entry("骑士", "/concepts/knight"),
	)
	body := "灵动骑士与骑士。灵动骑士在异常构造中。骑士，骑士。"
	once, _ := rewrite(t, e, doc("/page", body))
	twice, diag := rewrite(t, e, doc("/page", once))
	assert.Equal(t, once, twice)
	assert.Zero(t, diag.LinksInserted)
}

func TestRewrite_IdempotentProperty(t *testing.T) {
	entries := []ports.LinkEntry{
		entry("灵动骑士", "/characters/a"),
		entry("异常构造", "/concepts/b"),
		entry("Docs", "https://example.com/docs"),
		entry("骑士", "/concepts/knight"),
		entry("AB", "/ab"),
		entry("A", "/a"),
	}
	fragments := []string{
		"灵动骑士", "异常构造", "骑士", "Docs", "AB", "A", "B",
		"在", "中", "。", " ", "\n", "\n\n",
		"`A`", "[A](/other)", "<!-- 骑士 -->", "![AB](x.png)",
		"<b>", "</b>", "\n```\nA\n```\n", "https://example.com/A",
		"!", "\\", "`[A](/a)`",
	}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString(rapid.SampledFrom(fragments).Draw(t, "fragment"))
		}
		opts := Options{
			MaxLinksPerPage: rapid.IntRange(0, 4).Draw(t, "page"),
			MaxLinksPerTerm: rapid.IntRange(0, 2).Draw(t, "term"),
			WordBoundary:    rapid.Bool().Draw(t, "boundary"),
		}
		e := newEngine(opts, entries...)

		once, _, err := e.Rewrite(doc("/page", b.String()))
		if err != nil {
			t.Fatalf("first pass: %v", err)
		}
		twice, diag, err := e.Rewrite(doc("/page", once))
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if once != twice {
			t.Fatalf("not idempotent:\n once: %q\ntwice: %q", once, twice)
		}
		if diag.LinksInserted != 0 {
			t.Fatalf("second pass inserted %d links", diag.LinksInserted)
		}
	})
}

func TestRewrite_RestoreMismatchIsReported(t *testing.T) {
	p := protect.Protect("`x`", protect.Options{})
	_, err := p.Restore("no tokens left")
	assert.ErrorIs(t, err, protect.ErrMismatch)
}

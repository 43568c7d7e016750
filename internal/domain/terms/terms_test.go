package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/autolink/internal/ports"
)

func page(route, title string, aliases ...string) *ports.Page {
	return &ports.Page{Route: route, Title: title, Aliases: aliases, AutoLink: true, Source: route + ".md"}
}

func TestBuild_SortsLongestFirstStable(t *testing.T) {
	idx := Build([]*ports.Page{
		page("/a", "AB"),
		page("/b", "CD"),
		page("/c", "EFG"),
	}, Options{})
	assert.Equal(t, []string{"EFG", "AB", "CD"}, idx.Terms())
	assert.Equal(t, 3, idx.Pages())
}

func TestBuild_RuneLengthNotBytes(t *testing.T) {
	idx := Build([]*ports.Page{
		page("/en", "abcd"),
		page("/zh", "灵动骑士团"),
	}, Options{})
	assert.Equal(t, []string{"灵动骑士团", "abcd"}, idx.Terms())
}

func TestBuild_AliasesAndMinLength(t *testing.T) {
	idx := Build([]*ports.Page{
		page("/knight", "灵动骑士", "骑", "Knight", " 灵动骑士 "),
	}, Options{MinLength: 2})
	assert.Equal(t, []string{"Knight", "灵动骑士"}, idx.Terms())
	for _, e := range idx.Entries() {
		assert.Equal(t, "/knight", e.Target)
		assert.Equal(t, "/knight", e.SourceID)
	}
}

func TestBuild_DefaultMinLength(t *testing.T) {
	idx := Build([]*ports.Page{page("/x", "X", "XY")}, Options{MinLength: 0})
	assert.Equal(t, []string{"XY"}, idx.Terms())
}

func TestBuild_BlacklistWhitelist(t *testing.T) {
	pages := []*ports.Page{page("/a", "Alpha", "Al"), page("/b", "Beta")}

	idx := Build(pages, Options{Blacklist: []string{"Al"}})
	assert.Equal(t, []string{"Alpha", "Beta"}, idx.Terms())

	idx = Build(pages, Options{Whitelist: []string{"Beta", " Al "}})
	assert.Equal(t, []string{"Beta", "Al"}, idx.Terms())
}

func TestBuild_AutoLinkFalseContributesNothing(t *testing.T) {
	off := page("/off", "Hidden")
	off.AutoLink = false
	idx := Build([]*ports.Page{off, nil, page("/on", "Shown")}, Options{})
	assert.Equal(t, []string{"Shown"}, idx.Terms())
}

func TestBuild_DuplicateFirstWins(t *testing.T) {
	idx := Build([]*ports.Page{
		page("/first", "Shared"),
		page("/second", "Other", "Shared"),
	}, Options{})

	require.Len(t, idx.Entries(), 2)
	for _, e := range idx.Entries() {
		if e.Term == "Shared" {
			assert.Equal(t, "/first", e.Target)
		}
	}
	require.Len(t, idx.Warnings(), 1)
	w := idx.Warnings()[0]
	assert.Equal(t, "duplicate", w.Kind)
	assert.Equal(t, "Shared", w.Term)
	assert.Equal(t, "/second.md", w.Source)
}

func TestBuild_MalformedEntries(t *testing.T) {
	noRoute := page("", "Orphan")
	noRoute.Source = "orphan.md"
	badRoute := page("/bad\uE000", "Bad")
	idx := Build([]*ports.Page{noRoute, badRoute, page("/ok", "Fine")}, Options{})

	assert.Equal(t, []string{"Fine"}, idx.Terms())
	require.Len(t, idx.Warnings(), 2)
	assert.Equal(t, "malformed", idx.Warnings()[0].Kind)
	assert.Equal(t, "orphan.md", idx.Warnings()[0].Source)
}

func TestBuild_EmptyTitleSkippedSilently(t *testing.T) {
	idx := Build([]*ports.Page{page("/x", "  ", "Alias")}, Options{})
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Warnings())
}

func TestBuild_ReservedRunesRefused(t *testing.T) {
	idx := Build([]*ports.Page{page("/x", "Good", "Ba\uE001d")}, Options{})
	assert.Equal(t, []string{"Good"}, idx.Terms())
}

func TestBuild_NFC(t *testing.T) {
	// "é" as e + combining acute normalises to the precomposed form.
	idx := Build([]*ports.Page{page("/cafe", "cafe\u0301")}, Options{})
	assert.Equal(t, []string{"caf\u00E9"}, idx.Terms())
}

func TestFingerprint(t *testing.T) {
	a := Build([]*ports.Page{page("/a", "Alpha")}, Options{})
	b := Build([]*ports.Page{page("/a", "Alpha")}, Options{})
	c := Build([]*ports.Page{page("/b", "Alpha")}, Options{})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFromEntries_Copies(t *testing.T) {
	entries := []ports.LinkEntry{{Term: "AB", Target: "/ab", SourceID: "/ab"}}
	idx := FromEntries(entries)
	entries[0].Term = "changed"
	assert.Equal(t, []string{"AB"}, idx.Terms())
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	assert.Zero(t, idx.Len())
	assert.Nil(t, idx.Entries())
	assert.Empty(t, idx.Terms())
	assert.Zero(t, idx.Pages())
}

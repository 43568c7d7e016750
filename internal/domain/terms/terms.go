// Package terms builds the linkable-term dictionary from page metadata.
//
// The Index is built once per build and is read-only afterwards, so a single
// *Index can be shared by every document worker without locking.
package terms

import (
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"github.com/corey/autolink/internal/domain/protect"
	"github.com/corey/autolink/internal/ports"
)

// DefaultMinLength is the shortest indexed term, in runes. Two suits CJK names.
const DefaultMinLength = 2

// Options filters candidate terms.
type Options struct {
	MinLength int
	Blacklist []string
	Whitelist []string
}

// Warning records a page or term the builder dropped.
type Warning struct {
	Kind   string `json:"kind"` // "malformed" or "duplicate"
	Source string `json:"source"`
	Term   string `json:"term,omitempty"`
	Detail string `json:"detail"`
}

// Index is the sorted, deduplicated term dictionary.
type Index struct {
	entries  []ports.LinkEntry
	warnings []Warning
	pages    int
}

// Entries returns the entries in match-priority order. Callers must not modify
// the returned slice.
func (x *Index) Entries() []ports.LinkEntry {
	if x == nil {
		return nil
	}
	return x.entries
}

// Len returns the number of entries.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Warnings returns the entries dropped during Build.
func (x *Index) Warnings() []Warning {
	if x == nil {
		return nil
	}
	return x.warnings
}

// Pages returns how many pages contributed at least one term.
func (x *Index) Pages() int {
	if x == nil {
		return 0
	}
	return x.pages
}

// Terms returns every term in priority order.
func (x *Index) Terms() []string {
	out := make([]string, len(x.Entries()))
	for i, e := range x.Entries() {
		out[i] = e.Term
	}
	return out
}

// FromEntries rebuilds an Index from a previously persisted entry list. The
// list is trusted to already be in priority order.
func FromEntries(entries []ports.LinkEntry) *Index {
	cp := make([]ports.LinkEntry, len(entries))
	copy(cp, entries)
	return &Index{entries: cp}
}

// Build turns page metadata into a priority-ordered Index: longer terms first,
// ties broken by first-seen order. When two pages claim the same term the first
// one registered keeps it and the later one is reported as a duplicate.
func Build(pages []*ports.Page, opts Options) *Index {
	minLen := opts.MinLength
	if minLen < 1 {
		minLen = DefaultMinLength
	}
	blacklist := toSet(opts.Blacklist)
	whitelist := toSet(opts.Whitelist)

	x := &Index{}
	owner := make(map[string]string) // term -> target that claimed it
	seen := make(map[[2]string]bool) // (term, target)

	for _, pg := range pages {
		if pg == nil || !pg.AutoLink {
			continue
		}
		route := strings.TrimSpace(pg.Route)
		if route == "" {
			x.warn(Warning{Kind: "malformed", Source: pg.Source, Detail: "page has no route"})
			continue
		}
		if protect.ContainsReserved(route) || !utf8.ValidString(route) {
			x.warn(Warning{Kind: "malformed", Source: pg.Source, Detail: "route contains reserved characters"})
			continue
		}
		title := normalize(pg.Title)
		if title == "" {
			continue
		}

		contributed := false
		for _, cand := range append([]string{title}, pg.Aliases...) {
			term := normalize(cand)
			if !eligible(term, minLen, blacklist, whitelist) {
				continue
			}
			key := [2]string{term, route}
			if seen[key] {
				continue
			}
			if prev, ok := owner[term]; ok {
				x.warn(Warning{
					Kind:   "duplicate",
					Source: pg.Source,
					Term:   term,
					Detail: "term already links to " + prev,
				})
				continue
			}
			seen[key] = true
			owner[term] = route
			x.entries = append(x.entries, ports.LinkEntry{Term: term, Target: route, SourceID: route})
			contributed = true
		}
		if contributed {
			x.pages++
		}
	}

	sort.SliceStable(x.entries, func(i, j int) bool {
		return utf8.RuneCountInString(x.entries[i].Term) > utf8.RuneCountInString(x.entries[j].Term)
	})

	slog.Debug("term index built", "entries", len(x.entries), "pages", x.pages, "warnings", len(x.warnings))
	return x
}

// Fingerprint returns a stable hash of the entry list. Two indexes with the
// same entries in the same order share a fingerprint.
func (x *Index) Fingerprint() string {
	h := blake3.New()
	for _, e := range x.Entries() {
		h.WriteString(e.Term)
		h.WriteString("\x00")
		h.WriteString(e.Target)
		h.WriteString("\x00")
		h.WriteString(e.SourceID)
		h.WriteString("\x01")
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (x *Index) warn(w Warning) {
	x.warnings = append(x.warnings, w)
	slog.Warn("term index: dropped entry", "kind", w.Kind, "source", w.Source, "term", w.Term, "detail", w.Detail)
}

// normalize trims and NFC-normalizes a candidate term.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func eligible(term string, minLen int, blacklist, whitelist map[string]bool) bool {
	switch {
	case term == "":
		return false
	case !utf8.ValidString(term) || protect.ContainsReserved(term):
		return false
	case utf8.RuneCountInString(term) < minLen:
		return false
	case blacklist[term]:
		return false
	case len(whitelist) > 0 && !whitelist[term]:
		return false
	}
	return true
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		if s = normalize(s); s != "" {
			set[s] = true
		}
	}
	return set
}

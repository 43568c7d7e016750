// Package ahocorasick provides multi-pattern string matching using an Aho-Corasick automaton.
// It wraps the petar-dambovaliev/aho-corasick library for O(n + m + z) matching.
package ahocorasick

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// TextMatch represents a match with byte offsets.
type TextMatch struct {
	PatternIndex int // index into the original patterns slice
	Start        int // byte offset start (inclusive)
	End          int // byte offset end (exclusive)
}

// Scanner wraps an Aho-Corasick automaton built over the term index.
// It implements ports.TermScanner and is safe for concurrent use once built.
type Scanner struct {
	automaton aho.AhoCorasick
	patterns  []string
}

// NewScanner builds a scanner from the given patterns. Pattern indexes in
// results match positions in patterns.
func NewScanner(patterns []string) *Scanner {
	p := make([]string, len(patterns))
	copy(p, patterns)
	s := &Scanner{patterns: p}
	if len(p) > 0 {
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			DFA: true,
		})
		s.automaton = builder.Build(p)
	}
	return s
}

// Scan finds all pattern matches in content, overlapping ones included.
func (s *Scanner) Scan(content []byte) []TextMatch {
	if len(s.patterns) == 0 || len(content) == 0 {
		return nil
	}
	iter := s.automaton.IterOverlappingByte(content)
	var matches []TextMatch
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		matches = append(matches, TextMatch{
			PatternIndex: m.Pattern(),
			Start:        m.Start(),
			End:          m.End(),
		})
	}
	return matches
}

// Occurring reports, per pattern, whether it occurs at least once in content.
func (s *Scanner) Occurring(content string) []bool {
	out := make([]bool, len(s.patterns))
	for _, m := range s.Scan([]byte(content)) {
		if m.PatternIndex >= 0 && m.PatternIndex < len(out) {
			out[m.PatternIndex] = true
		}
	}
	return out
}

// Package protect isolates Markdown/HTML regions that the linker must never
// rewrite. Each protected region is swapped for an opaque placeholder token;
// Restore swaps every token back once rewriting is done.
//
// Placeholder grammar:
//
//	U+E000  id digits as U+E010..U+E019  U+E001
//
// All three ranges sit in the Unicode Private Use Area. The term index refuses
// any term containing PUA runes, so no term can ever match inside or across a
// token, and restoring cannot re-trigger a match.
package protect

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	tokenOpen  = '\uE000'
	tokenClose = '\uE001'
	digitBase  = '\uE010'
)

// ErrMismatch reports a placeholder that cannot be restored: an unknown id,
// a malformed token, or a token that was lost or duplicated during rewriting.
var ErrMismatch = errors.New("region protection mismatch")

// Options configures which constructs are protected beyond the fixed set.
type Options struct {
	// Components lists opaque container tag names (e.g. "Badge", "CharacterCard")
	// whose whole element, contents included, is never scanned.
	Components []string
}

// Protected holds a working text plus the spans captured from it.
// It is owned by one document rewrite and is not safe for concurrent use.
type Protected struct {
	text  string
	spans []span // indexed by token id
}

type span struct {
	text string
	kind spanKind
}

type spanKind uint8

const (
	kindRegion spanKind = iota
	kindRaw             // written verbatim, never expanded (escaped placeholder runes)
	kindLink            // captured by the links pass
)

// Protect scans text for every protected construct in priority order and
// replaces each match with a placeholder token. It never fails: malformed
// constructs degrade to protecting the part that could be recognised.
func Protect(text string, opts Options) *Protected {
	p := &Protected{}
	work := text
	for _, pass := range passes(opts) {
		work = pass(p, work)
	}
	p.text = work
	return p
}

// Text returns the working text with placeholders in place.
func (p *Protected) Text() string {
	return p.text
}

// Len returns the number of registered spans.
func (p *Protected) Len() int {
	return len(p.spans)
}

// Reserve registers s as a new protected span and returns its token.
// The rewriter uses it for generated link markup so no later term can match
// inside a link it already produced.
func (p *Protected) Reserve(s string) string {
	return p.register(s, kindRegion)
}

// Links returns the text of every link captured from the input in document
// order. Link syntax inside code, comments or images is not a link and is
// not returned; neither are reserved spans.
func (p *Protected) Links() []string {
	var out []string
	for _, sp := range p.spans {
		if sp.kind == kindLink {
			out = append(out, sp.text)
		}
	}
	return out
}

func (p *Protected) register(s string, kind spanKind) string {
	id := len(p.spans)
	p.spans = append(p.spans, span{text: s, kind: kind})
	return encodeToken(id)
}

// Restore substitutes every placeholder in mutated with its captured original.
// Captured spans may themselves contain earlier tokens; they are expanded
// recursively. Every registered span must be restored exactly once.
func (p *Protected) Restore(mutated string) (string, error) {
	used := make([]bool, len(p.spans))
	var b strings.Builder
	b.Grow(len(mutated) + len(mutated)/4)
	if err := p.expand(&b, mutated, used, 0); err != nil {
		return "", err
	}
	for id, ok := range used {
		if !ok {
			return "", fmt.Errorf("%w: token %d was lost", ErrMismatch, id)
		}
	}
	return b.String(), nil
}

// maxDepth bounds recursive expansion. Nesting only happens when a later pass
// captures text that already holds an earlier token, so real depth is tiny.
const maxDepth = 64

func (p *Protected) expand(b *strings.Builder, s string, used []bool, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrMismatch, maxDepth)
	}
	for {
		i := strings.IndexRune(s, tokenOpen)
		if i < 0 {
			if strings.ContainsRune(s, tokenClose) {
				return fmt.Errorf("%w: stray token terminator", ErrMismatch)
			}
			b.WriteString(s)
			return nil
		}
		if strings.ContainsRune(s[:i], tokenClose) {
			return fmt.Errorf("%w: stray token terminator", ErrMismatch)
		}
		b.WriteString(s[:i])
		id, n, ok := decodeToken(s[i:])
		if !ok {
			return fmt.Errorf("%w: malformed token at byte %d", ErrMismatch, i)
		}
		if id >= len(p.spans) {
			return fmt.Errorf("%w: unknown token %d", ErrMismatch, id)
		}
		if used[id] {
			return fmt.Errorf("%w: token %d duplicated", ErrMismatch, id)
		}
		used[id] = true
		if sp := p.spans[id]; sp.kind == kindRaw {
			b.WriteString(sp.text)
		} else if err := p.expand(b, sp.text, used, depth+1); err != nil {
			return err
		}
		s = s[i+n:]
	}
}

// encodeToken renders id in the placeholder alphabet.
func encodeToken(id int) string {
	digits := fmt.Sprint(id)
	var b strings.Builder
	b.Grow((len(digits) + 2) * 3)
	b.WriteRune(tokenOpen)
	for _, d := range digits {
		b.WriteRune(digitBase + (d - '0'))
	}
	b.WriteRune(tokenClose)
	return b.String()
}

// decodeToken parses a token at the start of s, returning its id and byte length.
func decodeToken(s string) (id, n int, ok bool) {
	r, w := utf8.DecodeRuneInString(s)
	if r != tokenOpen {
		return 0, 0, false
	}
	n = w
	digits := 0
	for n < len(s) {
		r, w = utf8.DecodeRuneInString(s[n:])
		n += w
		switch {
		case r == tokenClose:
			return id, n, digits > 0
		case r >= digitBase && r <= digitBase+9:
			id = id*10 + int(r-digitBase)
			digits++
			if digits > 9 {
				return 0, 0, false
			}
		default:
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// IsReserved reports whether r belongs to the placeholder alphabet.
func IsReserved(r rune) bool {
	return r >= 0xE000 && r <= 0xF8FF
}

// ContainsReserved reports whether s contains any placeholder-alphabet rune.
// Terms that do are refused by the index builder.
func ContainsReserved(s string) bool {
	for _, r := range s {
		if IsReserved(r) {
			return true
		}
	}
	return false
}

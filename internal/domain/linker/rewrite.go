package linker

import (
	"html"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/corey/autolink/internal/domain/protect"
	"github.com/corey/autolink/internal/ports"
)

// rewriter holds the state of one document pass.
type rewriter struct {
	e        *Engine
	p        *protect.Protected
	doc      Document
	title    string
	ignore   map[string]bool
	present  []bool
	quota    *Quota
	inserted int
	perTerm  map[string]int
}

func (e *Engine) newRewriter(p *protect.Protected, doc Document) *rewriter {
	r := &rewriter{
		e:       e,
		p:       p,
		doc:     doc,
		title:   norm.NFC.String(strings.TrimSpace(doc.Title)),
		ignore:  normalizeSet(doc.IgnoreTerms),
		present: e.candidates(doc.Body),
		quota:   NewQuota(e.opts.MaxLinksPerPage, e.opts.MaxLinksPerTerm),
		perTerm: make(map[string]int),
	}
	r.chargeExisting()
	return r
}

// chargeExisting counts existing links identical to generated markup, so
// rewriting an already-rewritten document inserts nothing new. Only real links
// count: link syntax shown inside code or comments is ignored.
func (r *rewriter) chargeExisting() {
	existing := make(map[string]int)
	for _, l := range r.p.Links() {
		existing[l]++
	}
	if len(existing) == 0 {
		return
	}
	for i, entry := range r.e.index.Entries() {
		if r.present != nil && !r.present[i] {
			continue
		}
		if r.skip(entry) {
			continue
		}
		md := renderLink(entry.Term, entry.Target)
		n := existing[md]
		if a := renderAnchor(entry.Term, entry.Target); a != md {
			n += existing[a]
		}
		r.quota.Add(entry.Term, n)
	}
}

func (r *rewriter) skip(entry ports.LinkEntry) bool {
	switch {
	case entry.Term == "" || entry.Target == "":
		return true
	case entry.SourceID == r.doc.ID || entry.Target == r.doc.ID:
		return true
	case entry.Term == r.title:
		return true
	case r.ignore[entry.Term]:
		return true
	}
	return false
}

// run walks the index in priority order and returns the rewritten working text.
func (r *rewriter) run() string {
	text := r.p.Text()
	for i, entry := range r.e.index.Entries() {
		if r.quota.PageExhausted() {
			break
		}
		if r.present != nil && !r.present[i] {
			continue
		}
		if r.skip(entry) {
			continue
		}
		text = r.replaceTerm(text, entry)
	}
	return text
}

// replaceTerm handles every occurrence of entry.Term in text, left to right.
// Linked occurrences and occurrences left plain by the per-term limit are both
// reserved, so no shorter term can match inside them afterwards.
func (r *rewriter) replaceTerm(text string, entry ports.LinkEntry) string {
	term := entry.Term
	var b strings.Builder
	last, from := 0, 0
	for from < len(text) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(term)
		if escaped(text, start) || (r.e.opts.WordBoundary && !atWordBoundary(text, start, end)) {
			_, w := utf8.DecodeRuneInString(text[start:])
			from = start + w
			continue
		}
		if r.quota.PageExhausted() {
			break
		}
		if b.Len() == 0 {
			b.Grow(len(text) + 64)
		}
		b.WriteString(text[last:start])
		if r.quota.TermExhausted(term) {
			b.WriteString(r.p.Reserve(term))
		} else {
			link := renderLink(term, entry.Target)
			if start > 0 && text[start-1] == '!' {
				// [term](target) after "!" would become an image.
				link = renderAnchor(term, entry.Target)
			}
			b.WriteString(r.p.Reserve(link))
			r.quota.Record(term)
			r.inserted++
			r.perTerm[term]++
		}
		last, from = end, end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// atWordBoundary reports whether text[start:end] is not glued to an adjacent
// ASCII word character. Placeholder runes count as word characters, so a term
// touching a protected region or an earlier link is left alone.
func atWordBoundary(text string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(text[start:end])
	if isASCIIWord(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isASCIIWord(prev) || protect.IsReserved(prev) {
			return false
		}
	}
	lastRune, _ := utf8.DecodeLastRuneInString(text[start:end])
	if isASCIIWord(lastRune) && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isASCIIWord(next) || protect.IsReserved(next) {
			return false
		}
	}
	return true
}

// escaped reports whether text[start] follows an odd run of backslashes. Every
// link form starts with ASCII punctuation, which the backslash would escape.
func escaped(text string, start int) bool {
	n := 0
	for i := start - 1; i >= 0 && text[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func isASCIIWord(r rune) bool {
	return r < utf8.RuneSelf && (r == '_' ||
		'0' <= r && r <= '9' ||
		'a' <= r && r <= 'z' ||
		'A' <= r && r <= 'Z')
}

// renderLink returns the markup for one link. Internal targets become Markdown
// links unless the term or target would break the syntax, in which case an
// HTML anchor is used. http(s) targets always open in a new tab.
func renderLink(term, target string) string {
	if isExternal(target) || strings.ContainsAny(term, "[]\\`\n") || strings.ContainsAny(target, " \t\n()<>") {
		return renderAnchor(term, target)
	}
	return "[" + term + "](" + target + ")"
}

// renderAnchor returns the HTML form of a link.
func renderAnchor(term, target string) string {
	if isExternal(target) {
		return `<a href="` + html.EscapeString(target) + `" target="_blank" rel="noopener noreferrer">` +
			html.EscapeString(term) + `</a>`
	}
	return `<a href="` + html.EscapeString(target) + `">` + html.EscapeString(term) + `</a>`
}

func isExternal(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

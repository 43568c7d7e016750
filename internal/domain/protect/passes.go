package protect

import (
	"regexp"
	"sort"
	"strings"
)

// pass captures one family of constructs in s, registering each match with p
// and returning s with the matches replaced by tokens.
type pass func(p *Protected, s string) string

// passes returns the protection passes in priority order. Earlier passes win:
// a backtick inside a fenced block never starts an inline code span.
func passes(opts Options) []pass {
	out := []pass{
		escapeReserved,
		fencedCode,
		inlineCode,
		comments,
		images,
		links,
	}
	for _, name := range opts.Components {
		if name = strings.TrimSpace(name); validComponent.MatchString(name) {
			out = append(out, component(name))
		}
	}
	return append(out, htmlTags)
}

// spanRange is a half-open byte range [start, end) within a pass input.
type spanRange struct{ start, end int }

// replaceSpans swaps each range for a freshly registered token. Ranges must be
// sorted and non-overlapping.
func replaceSpans(p *Protected, s string, ranges []spanRange, kind spanKind) string {
	if len(ranges) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, r := range ranges {
		b.WriteString(s[last:r.start])
		b.WriteString(p.register(s[r.start:r.end], kind))
		last = r.end
	}
	b.WriteString(s[last:])
	return b.String()
}

func indexRanges(locs [][]int) []spanRange {
	out := make([]spanRange, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			out = append(out, spanRange{loc[0], loc[1]})
		}
	}
	return out
}

// escapeReserved captures placeholder delimiters that were already present in
// the input so Restore can never confuse them with real tokens.
func escapeReserved(p *Protected, s string) string {
	if !strings.ContainsRune(s, tokenOpen) && !strings.ContainsRune(s, tokenClose) {
		return s
	}
	var ranges []spanRange
	start := -1
	for i, r := range s {
		stray := r == tokenOpen || r == tokenClose
		switch {
		case stray && start < 0:
			start = i
		case !stray && start >= 0:
			ranges = append(ranges, spanRange{start, i})
			start = -1
		}
	}
	if start >= 0 {
		ranges = append(ranges, spanRange{start, len(s)})
	}
	return replaceSpans(p, s, ranges, kindRaw)
}

// --- fenced code ------------------------------------------------------------

type line struct {
	start, end int // end excludes the newline
}

func splitLines(s string) []line {
	var out []line
	start := 0
	for start <= len(s) {
		i := strings.IndexByte(s[start:], '\n')
		if i < 0 {
			out = append(out, line{start, len(s)})
			break
		}
		out = append(out, line{start, start + i})
		start += i + 1
	}
	return out
}

// fenceOpen reports the fence character and run length if l opens a fence.
func fenceOpen(l string) (byte, int) {
	trimmed := strings.TrimLeft(l, " ")
	if len(l)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return 0, 0
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	if c == '`' && strings.IndexByte(trimmed[n:], '`') >= 0 {
		return 0, 0
	}
	return c, n
}

func fenceCloses(l string, c byte, n int) bool {
	trimmed := strings.TrimLeft(l, " ")
	if len(l)-len(trimmed) > 3 {
		return false
	}
	run := 0
	for run < len(trimmed) && trimmed[run] == c {
		run++
	}
	return run >= n && strings.TrimSpace(trimmed[run:]) == ""
}

// fencedCode captures ``` and ~~~ blocks from the opening line through the
// closing fence. An unclosed fence protects only its opening line so the rest
// of the document is still scanned.
func fencedCode(p *Protected, s string) string {
	lines := splitLines(s)
	var ranges []spanRange
	for i := 0; i < len(lines); i++ {
		open := lines[i]
		c, n := fenceOpen(s[open.start:open.end])
		if n == 0 {
			continue
		}
		closed := false
		for j := i + 1; j < len(lines); j++ {
			if fenceCloses(s[lines[j].start:lines[j].end], c, n) {
				ranges = append(ranges, spanRange{open.start, lines[j].end})
				i = j
				closed = true
				break
			}
		}
		if !closed && open.end > open.start {
			ranges = append(ranges, spanRange{open.start, open.end})
		}
	}
	return replaceSpans(p, s, ranges, kindRegion)
}

// --- inline code ------------------------------------------------------------

// inlineCode captures backtick code spans: a run of N backticks closed by the
// next run of exactly N. An unmatched run is left as literal text.
func inlineCode(p *Protected, s string) string {
	if strings.IndexByte(s, '`') < 0 {
		return s
	}
	var ranges []spanRange
	i := 0
	for i < len(s) {
		j := strings.IndexByte(s[i:], '`')
		if j < 0 {
			break
		}
		start := i + j
		if start > 0 && s[start-1] == '\\' {
			i = start + 1
			continue
		}
		n := backtickRun(s, start)
		end := findBacktickRun(s, start+n, n)
		if end < 0 {
			i = start + n
			continue
		}
		ranges = append(ranges, spanRange{start, end})
		i = end
	}
	return replaceSpans(p, s, ranges, kindRegion)
}

func backtickRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	return n
}

// findBacktickRun returns the end offset of the first run of exactly n
// backticks at or after from, or -1.
func findBacktickRun(s string, from, n int) int {
	for from < len(s) {
		j := strings.IndexByte(s[from:], '`')
		if j < 0 {
			return -1
		}
		at := from + j
		run := backtickRun(s, at)
		if run == n {
			return at + run
		}
		from = at + run
	}
	return -1
}

// --- comments ---------------------------------------------------------------

var markdownComment = regexp.MustCompile(`(?m)^[ ]{0,3}\[//\]:[^\n]*`)

// comments captures <!-- --> comments and [//]: # (...) Markdown comments.
// An unterminated <!-- protects only the opener.
func comments(p *Protected, s string) string {
	var ranges []spanRange
	i := 0
	for {
		j := strings.Index(s[i:], "<!--")
		if j < 0 {
			break
		}
		start := i + j
		end := strings.Index(s[start+4:], "-->")
		if end < 0 {
			ranges = append(ranges, spanRange{start, start + 4})
			i = start + 4
			continue
		}
		stop := start + 4 + end + 3
		ranges = append(ranges, spanRange{start, stop})
		i = stop
	}
	s = replaceSpans(p, s, ranges, kindRegion)
	return replaceSpans(p, s, indexRanges(markdownComment.FindAllStringIndex(s, -1)), kindRegion)
}

// --- images and links -------------------------------------------------------

const (
	// bracketText allows one level of nested brackets: [a [b] c].
	bracketText = `\[(?:[^\[\]\n]|\[[^\[\]\n]*\])*\]`
	// destination allows one level of balanced parentheses.
	destination = `\([^()\n]*(?:\([^()\n]*\)[^()\n]*)*\)`
	refLabel    = `\[[^\[\]\n]*\]`
)

var imagePattern = regexp.MustCompile(
	`!` + bracketText + destination +
		`|!` + bracketText + refLabel +
		`|(?i:<img\b[^>]*>)`)

// images captures ![alt](src), ![alt][ref] and <img> tags.
func images(p *Protected, s string) string {
	return replaceSpans(p, s, indexRanges(imagePattern.FindAllStringIndex(s, -1)), kindRegion)
}

var (
	linkPattern = regexp.MustCompile(
		`(?i:<a\b[^>]*>[\s\S]*?</a\s*>)` +
			`|(?m:^[ ]{0,3}\[[^\[\]\n]+\]:[ \t]*\S[^\n]*)` +
			`|` + bracketText + destination +
			`|` + bracketText + refLabel +
			`|<[A-Za-z][A-Za-z0-9+.\-]{1,31}:[^<>\s]*>` +
			`|<[^<>\s@]+@[^<>\s]+>` +
			`|(?i:\b(?:https?://|www\.)[^\s<>()\[\]]*[^\s<>()\[\].,;:!?'"])`)
	refDefinition = regexp.MustCompile(`(?m)^[ ]{0,3}\[([^\[\]\n]+)\]:[ \t]*\S`)
	shortcutRef   = regexp.MustCompile(`\[([^\[\]\n]+)\]`)
)

// links captures anchors, inline and reference links, reference definitions,
// autolinks and bare URLs, then shortcut references ([label]) whose label has
// a definition in the document.
func links(p *Protected, s string) string {
	labels := make(map[string]bool)
	for _, m := range refDefinition.FindAllStringSubmatch(s, -1) {
		labels[normalizeLabel(m[1])] = true
	}
	s = replaceSpans(p, s, indexRanges(linkPattern.FindAllStringIndex(s, -1)), kindLink)
	if len(labels) == 0 {
		return s
	}
	var ranges []spanRange
	for _, m := range shortcutRef.FindAllStringSubmatchIndex(s, -1) {
		if labels[normalizeLabel(s[m[2]:m[3]])] {
			ranges = append(ranges, spanRange{m[0], m[1]})
		}
	}
	return replaceSpans(p, s, ranges, kindLink)
}

func normalizeLabel(l string) string {
	return strings.ToLower(strings.Join(strings.Fields(l), " "))
}

// --- opaque components ------------------------------------------------------

var validComponent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:\-]*$`)

type tagRef struct {
	start, end  int
	close, self bool
}

// component captures <Name .../> and <Name ...>...</Name> elements with their
// contents. Same-name nesting is balanced. An open tag that is never closed
// protects only itself and scanning resumes after it.
func component(name string) pass {
	re := regexp.MustCompile(`<(/?)` + regexp.QuoteMeta(name) + `(?:\s[^<>]*?)?(/?)>`)
	return func(p *Protected, s string) string {
		var tags []tagRef
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			tags = append(tags, tagRef{
				start: m[0],
				end:   m[1],
				close: m[3] > m[2],
				self:  m[5] > m[4],
			})
		}
		return replaceSpans(p, s, balanceTags(tags), kindRegion)
	}
}

func balanceTags(tags []tagRef) []spanRange {
	var ranges []spanRange
	i := 0
	for i < len(tags) {
		var stack []int
		for j := i; j < len(tags); j++ {
			t := tags[j]
			switch {
			case t.self && len(stack) == 0:
				ranges = append(ranges, spanRange{t.start, t.end})
			case t.self:
			case t.close && len(stack) == 0:
				ranges = append(ranges, spanRange{t.start, t.end})
			case t.close:
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					ranges = append(ranges, spanRange{tags[open].start, t.end})
				}
			default:
				stack = append(stack, j)
			}
		}
		if len(stack) == 0 {
			break
		}
		// The outermost open tag never closed: protect it alone and rescan
		// everything after it. Ranges recorded past it are discarded.
		restart := stack[0]
		bottom := tags[restart]
		kept := ranges[:0]
		for _, r := range ranges {
			if r.end <= bottom.start {
				kept = append(kept, r)
			}
		}
		ranges = append(kept, spanRange{bottom.start, bottom.end})
		i = restart + 1
	}
	sort.Slice(ranges, func(a, b int) bool { return ranges[a].start < ranges[b].start })
	return ranges
}

// --- raw html ---------------------------------------------------------------

var htmlTag = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9\-]*(?:\s[^<>]*)?/?>`)

// htmlTags captures any remaining raw HTML tag (not its contents) so attribute
// values are never rewritten.
func htmlTags(p *Protected, s string) string {
	return replaceSpans(p, s, indexRanges(htmlTag.FindAllStringIndex(s, -1)), kindRegion)
}

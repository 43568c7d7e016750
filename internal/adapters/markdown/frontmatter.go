// Package markdown loads wiki pages from a directory of Markdown files and
// writes rewritten pages back out. It implements ports.PageSource and
// ports.PageSink.
package markdown

import (
	"bufio"
	"log/slog"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// FrontMatter holds the page keys the linker reads.
type FrontMatter struct {
	Title           string   `yaml:"title"`
	AutoLinkTitle   string   `yaml:"autoLinkTitle"`
	AutoLink        *bool    `yaml:"autoLink"`
	AutoLinkAliases []string `yaml:"autoLinkAliases"`
	Aliases         []string `yaml:"aliases"`
	AutoLinkIgnore  []string `yaml:"autoLinkIgnore"`
	IgnoreTerms     []string `yaml:"ignoreTerms"`
}

// Enabled reports the autoLink switch, which defaults to true.
func (fm FrontMatter) Enabled() bool {
	return fm.AutoLink == nil || *fm.AutoLink
}

// AllAliases merges autoLinkAliases and aliases.
func (fm FrontMatter) AllAliases() []string {
	return append(append([]string(nil), fm.AutoLinkAliases...), fm.Aliases...)
}

// Ignored merges autoLinkIgnore and ignoreTerms.
func (fm FrontMatter) Ignored() []string {
	return append(append([]string(nil), fm.AutoLinkIgnore...), fm.IgnoreTerms...)
}

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// ParsedPage is a Markdown file split into front matter and body.
type ParsedPage struct {
	Meta   FrontMatter
	Prefix string // front matter block exactly as written, delimiters included
	Body   string
}

// Parse splits content into front matter and body. Malformed front matter is
// logged and the whole content is treated as body.
func Parse(source, content string) ParsedPage {
	var meta FrontMatter
	rest, err := frontmatter.Parse(strings.NewReader(content), &meta, yamlFormat)
	if err != nil {
		slog.Warn("front matter unreadable, linking whole file", "source", source, "err", err)
		return ParsedPage{Body: content}
	}
	body := string(rest)
	if !strings.HasSuffix(content, body) {
		// The parser normalised the body; fall back to an untouched file.
		return ParsedPage{Meta: meta, Body: content}
	}
	return ParsedPage{
		Meta:   meta,
		Prefix: content[:len(content)-len(body)],
		Body:   body,
	}
}

// Title picks the linkable title: autoLinkTitle, then title, then the first
// level-one heading of the body.
func Title(meta FrontMatter, body string) string {
	if t := strings.TrimSpace(meta.AutoLinkTitle); t != "" {
		return t
	}
	return PageTitle(meta, body)
}

// PageTitle is the title the page is displayed under: title, then the first
// level-one heading.
func PageTitle(meta FrontMatter, body string) string {
	if t := strings.TrimSpace(meta.Title); t != "" {
		return t
	}
	return FirstHeading(body)
}

// FirstHeading returns the text of the first "# " heading outside fenced code.
func FirstHeading(body string) string {
	inFence := false
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[2:]), "#"))
		}
	}
	return ""
}

package markdown

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corey/autolink/internal/ports"
)

// skipDirs lists directories never scanned for pages (matches the fsnotify watcher).
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".vuepress":    true,
	".autolink":    true,
	"dist":         true,
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	RoutePrefix string   // prepended to every derived route, default "/"
	EntityMeta  bool     // harvest aliases from the "## 基本信息" section
	SkipDirs    []string // extra directory names to skip, e.g. the output dir
}

// Loader implements ports.PageSource over a directory of Markdown files.
type Loader struct {
	root string
	opts LoaderOptions
	skip map[string]bool
}

// NewLoader returns a loader rooted at root.
func NewLoader(root string, opts LoaderOptions) *Loader {
	skip := make(map[string]bool, len(skipDirs)+len(opts.SkipDirs))
	for d := range skipDirs {
		skip[d] = true
	}
	for _, d := range opts.SkipDirs {
		if d != "" {
			skip[d] = true
		}
	}
	return &Loader{root: root, opts: opts, skip: skip}
}

// Name identifies the source in logs and reports.
func (l *Loader) Name() string {
	return l.root
}

// Root returns the content directory.
func (l *Loader) Root() string {
	return l.root
}

// Pages walks the content directory and returns every page sorted by path.
// Page.Source is the slash-separated path relative to the root.
func (l *Loader) Pages(ctx context.Context) ([]*ports.Page, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", l.root)
	}

	var rels []string
	err = filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if p != l.root && l.skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsPage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return nil
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(rels)

	pages := make([]*ports.Page, 0, len(rels))
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		pages = append(pages, l.page(rel, string(data)))
	}
	return pages, nil
}

// Load reads a single page by its root-relative path.
func (l *Loader) Load(rel string) (*ports.Page, error) {
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	return l.page(filepath.ToSlash(rel), string(data)), nil
}

func (l *Loader) page(rel, content string) *ports.Page {
	parsed := Parse(rel, content)
	aliases := parsed.Meta.AllAliases()
	if l.opts.EntityMeta {
		aliases = append(aliases, EntityAliases(parsed.Body)...)
	}
	return &ports.Page{
		Route:       Route(l.opts.RoutePrefix, rel),
		Title:       Title(parsed.Meta, parsed.Body),
		PageTitle:   PageTitle(parsed.Meta, parsed.Body),
		Aliases:     aliases,
		AutoLink:    parsed.Meta.Enabled(),
		IgnoreTerms: parsed.Meta.Ignored(),
		Body:        parsed.Body,
		Prefix:      parsed.Prefix,
		Source:      rel,
	}
}

// IsPage reports whether name is a Markdown page.
func IsPage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// Route derives the site route of a page from its root-relative path:
// README.md and index.md map to their directory, other pages to .html.
func Route(prefix, rel string) string {
	if prefix == "" {
		prefix = "/"
	}
	rel = filepath.ToSlash(rel)
	dir, file := path.Split(rel)
	stem := strings.TrimSuffix(file, path.Ext(file))

	var route string
	switch strings.ToLower(stem) {
	case "readme", "index":
		route = path.Join("/", prefix, dir) + "/"
	default:
		route = path.Join("/", prefix, dir, stem) + ".html"
	}
	if route == "//" {
		route = "/"
	}
	return route
}

package markdown

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corey/autolink/internal/ports"
)

// Sink implements ports.PageSink by writing pages under an output directory
// at their source-relative path. The front matter prefix is written back
// verbatim ahead of the new body.
type Sink struct {
	outDir string
}

// NewSink returns a sink writing under outDir.
func NewSink(outDir string) *Sink {
	return &Sink{outDir: outDir}
}

// Write stores page with body as its new content. Unchanged files are left
// alone so their modification time does not trigger watchers.
func (s *Sink) Write(page *ports.Page, body string) error {
	if page == nil || page.Source == "" {
		return fmt.Errorf("page has no source path")
	}
	rel := filepath.FromSlash(page.Source)
	if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
		return fmt.Errorf("page source %q escapes the output dir", page.Source)
	}
	if !IsPage(rel) {
		rel += ".md"
	}
	dest := filepath.Join(s.outDir, rel)

	content := []byte(page.Prefix + body)
	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, content) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

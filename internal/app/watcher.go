package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	fsw "github.com/corey/autolink/internal/adapters/fsnotify"
	"github.com/corey/autolink/internal/adapters/markdown"
	"github.com/corey/autolink/internal/ports"
)

// settleDelay lets a burst of saves collapse into one rebuild.
const settleDelay = 150 * time.Millisecond

// Watch runs an initial build, then rebuilds whenever a page or autolink.yaml
// changes, until ctx is cancelled. onBuild receives every build outcome.
func (a *App) Watch(ctx context.Context, onBuild func(*BuildResult, error)) error {
	w, err := fsw.NewWatcher()
	if err != nil {
		return err
	}
	return a.watchWith(ctx, w, onBuild)
}

func (a *App) watchWith(ctx context.Context, w ports.Watcher, onBuild func(*BuildResult, error)) error {
	defer w.Stop()
	if _, ok := a.Source.(*markdown.Loader); !ok {
		return ErrWatchUnsupported
	}

	onBuild(a.Build(ctx))

	trigger := make(chan struct{}, 1)
	var configDirty atomic.Bool
	onChange := func(path string) {
		switch {
		case path == ConfigPath(a.ProjectRoot):
			configDirty.Store(true)
		case !a.isContentPath(path):
			return
		}
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	if err := w.Watch(a.watchRoot(), onChange); err != nil {
		return err
	}
	slog.Info("watching for changes", "dir", a.watchRoot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(settleDelay):
		}
		// Drop a trigger that arrived while settling; this build covers it.
		select {
		case <-trigger:
		default:
		}

		if configDirty.Swap(false) {
			a.reloadConfig()
		}
		onBuild(a.Build(ctx))
	}
}

// watchRoot is the project root when the content directory lives inside it,
// so autolink.yaml is seen too. Otherwise only the content directory.
func (a *App) watchRoot() string {
	if within(a.ProjectRoot, a.Config.ContentDir) {
		return a.ProjectRoot
	}
	return a.Config.ContentDir
}

// isContentPath reports whether path is an input page, as opposed to
// generated output.
func (a *App) isContentPath(path string) bool {
	a.mu.Lock()
	cfg := a.Config
	a.mu.Unlock()

	if !within(cfg.ContentDir, path) {
		return false
	}
	if !cfg.InPlace() && within(cfg.OutDir, path) {
		return false
	}
	return true
}

// reloadConfig re-reads autolink.yaml. Directory and DSN changes need a
// restart and are ignored; everything else applies to the next build.
func (a *App) reloadConfig() {
	next, err := LoadConfig(a.ProjectRoot)
	if err != nil {
		slog.Warn("config reload failed, keeping previous settings", "err", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.Config
	if next.ContentDir != prev.ContentDir || next.OutDir != prev.OutDir || next.MySQLDSN != prev.MySQLDSN {
		slog.Warn("content_dir, out_dir and mysql_dsn changes apply after restart")
		next.ContentDir, next.OutDir, next.MySQLDSN = prev.ContentDir, prev.OutDir, prev.MySQLDSN
	}
	a.Config = next
	a.Source = newLoader(next)
	slog.Info("config reloaded")
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Package app wires together all adapters and domain logic.
// It provides the lifecycle of one project build: open, build, watch, close.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/corey/autolink/internal/adapters/bbolt"
	"github.com/corey/autolink/internal/adapters/markdown"
	"github.com/corey/autolink/internal/adapters/metrics"
	"github.com/corey/autolink/internal/adapters/mysql"
	"github.com/corey/autolink/internal/ports"
)

// ErrWatchUnsupported is returned by Watch when pages do not come from disk.
var ErrWatchUnsupported = errors.New("watch requires a markdown content directory")

// Options are per-invocation switches that do not belong in autolink.yaml.
type Options struct {
	DryRun      bool   // rewrite in memory only; no pages or report written
	NoCache     bool   // skip the bbolt build cache
	MetricsFile string // write Prometheus textfile metrics here after each build
	Version     string
}

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	ProjectID   string
	Paths       *Paths
	Config      *Config

	Store   ports.Storage    // nil when the cache is disabled
	Source  ports.PageSource // markdown loader or MySQL pages table
	Sink    ports.PageSink   // nil on dry runs
	Metrics *metrics.Metrics

	opts Options
	db   *sql.DB    // MySQL connection backing Source, if any
	mu   sync.Mutex // serializes builds and config reloads
}

// New creates an App with all dependencies wired. Does not build anything.
func New(projectRoot string, cfg *Config, opts Options) (*App, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	if cfg == nil {
		cfg = DefaultConfig(projectRoot)
	}

	a := &App{
		ProjectRoot: projectRoot,
		ProjectID:   filepath.Base(projectRoot),
		Paths:       NewPaths(projectRoot),
		Config:      cfg,
		Metrics:     metrics.New(opts.Version, runtime.Version()),
		opts:        opts,
	}
	if err := a.Paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create %s: %w", StateDir, err)
	}

	if cfg.MySQLDSN != "" {
		db, err := mysql.Open(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		prefix := cfg.RoutePrefix
		if prefix == DefaultRoutePrefix {
			prefix = ""
		}
		a.Source = mysql.NewSource(db, mysql.Options{RoutePrefix: prefix, EntityMeta: cfg.EntityMeta})
	} else {
		a.Source = newLoader(cfg)
	}

	if !opts.DryRun {
		a.Sink = markdown.NewSink(cfg.OutDir)
	}

	if !opts.NoCache {
		store, err := bbolt.NewStore(a.Paths.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = store
	}

	return a, nil
}

// newLoader builds the markdown page source for cfg. An output directory
// nested in the content directory is never read back as input.
func newLoader(cfg *Config) *markdown.Loader {
	var skip []string
	if !cfg.InPlace() {
		if rel, err := filepath.Rel(cfg.ContentDir, cfg.OutDir); err == nil && !strings.HasPrefix(rel, "..") {
			skip = append(skip, filepath.Base(cfg.OutDir))
		}
	}
	return markdown.NewLoader(cfg.ContentDir, markdown.LoaderOptions{
		RoutePrefix: cfg.RoutePrefix,
		EntityMeta:  cfg.EntityMeta,
		SkipDirs:    skip,
	})
}

// Close releases the store and any database connection. Safe to call twice.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.Store.(io.Closer); ok && c != nil {
		errs = append(errs, c.Close())
		a.Store = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	return errors.Join(errs...)
}

package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	fsw "github.com/corey/autolink/internal/adapters/fsnotify"
	"github.com/corey/autolink/internal/domain/linker"
	"github.com/corey/autolink/internal/domain/terms"
)

// ErrConfigNotFound is returned by readConfigFile when the file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Config is the resolved project configuration.
type Config struct {
	MinLength           int
	Blacklist           []string
	Whitelist           []string
	MaxLinksPerPage     int
	MaxLinksPerTerm     int
	ProtectedComponents []string
	WordBoundary        bool
	EntityMeta          bool
	Workers             int
	ContentDir          string // absolute
	OutDir              string // absolute
	RoutePrefix         string
	MySQLDSN            string
	Debug               bool

	// Warnings lists values that were clamped or ignored while loading.
	Warnings []string
}

// rawConfig mirrors autolink.yaml. Pointers distinguish "absent" from zero,
// since a zero link limit means unlimited.
type rawConfig struct {
	MinLength           *int     `yaml:"min_length"`
	Blacklist           []string `yaml:"blacklist"`
	Whitelist           []string `yaml:"whitelist"`
	MaxLinksPerPage     *int     `yaml:"max_links_per_page"`
	MaxLinksPerTerm     *int     `yaml:"max_links_per_term"`
	ProtectedComponents []string `yaml:"protected_components"`
	WordBoundary        bool     `yaml:"word_boundary"`
	EntityMeta          bool     `yaml:"entity_meta"`
	Workers             *int     `yaml:"workers"`
	ContentDir          string   `yaml:"content_dir"`
	OutDir              string   `yaml:"out_dir"`
	RoutePrefix         string   `yaml:"route_prefix"`
	MySQLDSN            string   `yaml:"mysql_dsn"`
	Debug               bool     `yaml:"debug"`
}

// Defaults for keys absent from autolink.yaml.
const (
	DefaultContentDir  = "docs"
	DefaultRoutePrefix = "/"
)

// dsnEnvKeys are consulted in order; the first non-empty one overrides mysql_dsn.
var dsnEnvKeys = []string{"AUTOLINK_MYSQL_DSN", "MYSQL_DSN", "DATABASE_URL"}

// ConfigPath returns the location of autolink.yaml for a project.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, fsw.ConfigFile)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig(projectRoot string) *Config {
	return buildConfig(projectRoot, rawConfig{})
}

// readConfigFile parses path without applying defaults.
func readConfigFile(path string) (rawConfig, error) {
	var raw rawConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return raw, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return raw, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

// LoadConfig reads autolink.yaml from projectRoot. A missing file yields the
// defaults; an unreadable or malformed one is an error. Out-of-range numbers
// are clamped and reported in Config.Warnings.
func LoadConfig(projectRoot string) (*Config, error) {
	raw, err := readConfigFile(ConfigPath(projectRoot))
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}
	cfg := buildConfig(projectRoot, raw)
	for _, w := range cfg.Warnings {
		slog.Warn("config", "warning", w)
	}
	return cfg, nil
}

func buildConfig(projectRoot string, raw rawConfig) *Config {
	cfg := &Config{
		MinLength:           terms.DefaultMinLength,
		Blacklist:           raw.Blacklist,
		Whitelist:           raw.Whitelist,
		MaxLinksPerPage:     linker.DefaultMaxLinksPerPage,
		MaxLinksPerTerm:     linker.DefaultMaxLinksPerTerm,
		ProtectedComponents: raw.ProtectedComponents,
		WordBoundary:        raw.WordBoundary,
		EntityMeta:          raw.EntityMeta,
		Workers:             runtime.GOMAXPROCS(0),
		RoutePrefix:         DefaultRoutePrefix,
		MySQLDSN:            strings.TrimSpace(raw.MySQLDSN),
		Debug:               raw.Debug,
	}

	if raw.MinLength != nil {
		if *raw.MinLength < 1 {
			cfg.warn("min_length %d < 1, using %d", *raw.MinLength, terms.DefaultMinLength)
		} else {
			cfg.MinLength = *raw.MinLength
		}
	}
	if raw.MaxLinksPerPage != nil {
		cfg.MaxLinksPerPage = *raw.MaxLinksPerPage
	}
	if raw.MaxLinksPerTerm != nil {
		cfg.MaxLinksPerTerm = *raw.MaxLinksPerTerm
	}
	if raw.Workers != nil {
		switch {
		case *raw.Workers < 0:
			cfg.warn("workers %d < 0, using %d", *raw.Workers, cfg.Workers)
		case *raw.Workers > 0:
			cfg.Workers = *raw.Workers
		}
	}
	if p := strings.TrimSpace(raw.RoutePrefix); p != "" {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		cfg.RoutePrefix = p
	}

	contentDir := raw.ContentDir
	if contentDir == "" {
		contentDir = DefaultContentDir
	}
	cfg.ContentDir = resolve(projectRoot, contentDir)

	if raw.OutDir == "" {
		cfg.OutDir = NewPaths(projectRoot).OutDir
	} else {
		cfg.OutDir = resolve(projectRoot, raw.OutDir)
	}

	for _, key := range dsnEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.MySQLDSN = v
			break
		}
	}

	return cfg
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// InPlace reports whether pages are rewritten inside the content directory.
func (c *Config) InPlace() bool {
	return filepath.Clean(c.OutDir) == filepath.Clean(c.ContentDir)
}

// TermOptions returns the index builder options.
func (c *Config) TermOptions() terms.Options {
	return terms.Options{
		MinLength: c.MinLength,
		Blacklist: c.Blacklist,
		Whitelist: c.Whitelist,
	}
}

// LinkerOptions returns the rewrite options.
func (c *Config) LinkerOptions() linker.Options {
	return linker.Options{
		MaxLinksPerPage: c.MaxLinksPerPage,
		MaxLinksPerTerm: c.MaxLinksPerTerm,
		WordBoundary:    c.WordBoundary,
		Components:      c.ProtectedComponents,
	}
}

// YAML renders the effective configuration in autolink.yaml form, with
// directories relative to projectRoot where possible. The DSN is redacted.
func (c *Config) YAML(projectRoot string) ([]byte, error) {
	minLength, perPage, perTerm, workers := c.MinLength, c.MaxLinksPerPage, c.MaxLinksPerTerm, c.Workers
	out := rawConfig{
		MinLength:           &minLength,
		Blacklist:           c.Blacklist,
		Whitelist:           c.Whitelist,
		MaxLinksPerPage:     &perPage,
		MaxLinksPerTerm:     &perTerm,
		ProtectedComponents: c.ProtectedComponents,
		WordBoundary:        c.WordBoundary,
		EntityMeta:          c.EntityMeta,
		Workers:             &workers,
		ContentDir:          relTo(projectRoot, c.ContentDir),
		OutDir:              relTo(projectRoot, c.OutDir),
		RoutePrefix:         c.RoutePrefix,
		Debug:               c.Debug,
	}
	if c.MySQLDSN != "" {
		out.MySQLDSN = "<redacted>"
	}
	return yaml.Marshal(out)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func relTo(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

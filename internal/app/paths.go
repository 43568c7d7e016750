package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/corey/autolink/internal/domain/report"
)

// StateDir is the per-project state directory name.
const StateDir = ".autolink"

// Paths holds all resolved filesystem paths for the .autolink/ project directory.
type Paths struct {
	Root   string // .autolink/
	DB     string // .autolink/autolink.db
	Report string // .autolink/report.json
	OutDir string // .autolink/out/

	LogDir  string // .autolink/log/
	LogFile string // .autolink/log/autolink.log

	RunDir  string // .autolink/run/
	PIDFile string // .autolink/run/watch.pid
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, StateDir)
	return &Paths{
		Root:   root,
		DB:     filepath.Join(root, "autolink.db"),
		Report: filepath.Join(root, report.ReportFile),
		OutDir: filepath.Join(root, "out"),

		LogDir:  filepath.Join(root, "log"),
		LogFile: filepath.Join(root, "log", "autolink.log"),

		RunDir:  filepath.Join(root, "run"),
		PIDFile: filepath.Join(root, "run", "watch.pid"),
	}
}

// EnsureDirs creates all subdirectories under .autolink/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// WritePID records the pid of a running watch process.
func (p *Paths) WritePID(pid int) error {
	if err := os.MkdirAll(p.RunDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(p.PIDFile, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// ReadPID returns the pid recorded by a watch process, or 0 when none is.
func (p *Paths) ReadPID() int {
	data, err := os.ReadFile(p.PIDFile)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// CleanEphemeral removes ephemeral runtime files. Called when watch exits.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
}

// RemoveAll deletes the whole .autolink/ directory. Output written to a
// custom out_dir outside it is left alone.
func (p *Paths) RemoveAll() error {
	return os.RemoveAll(p.Root)
}

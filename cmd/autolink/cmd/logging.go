package cmd

import (
	"io"
	"log/slog"
	"os"
)

// setupLogging installs the process-wide slog handler: text on stderr, and
// additionally on extra when given (watch mode tees into .autolink/log).
func setupLogging(debug bool, extra io.Writer) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if extra != nil {
		w = io.MultiWriter(os.Stderr, extra)
		if !debug {
			level = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

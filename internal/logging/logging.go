// Package logging builds the diagnostic logger. Logs always go to stderr so
// stdout carries nothing but query results.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// New creates a structured logger writing to stderr. When stderr is a
// terminal it uses slog.TextHandler for human-readable output, otherwise
// slog.JSONHandler so piped logs stay machine-parseable.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stderr, debug, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, debug bool, text bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

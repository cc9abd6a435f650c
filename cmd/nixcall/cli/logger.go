// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates a structured logger for CLI command operations.
// When w is a terminal, uses slog.TextHandler for human-readable
// output. When w is piped or redirected (CI, scripts, tests), uses
// slog.JSONHandler for machine-parseable output. A writer that is not
// an *os.File is never a terminal.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewLogger(os.Stderr, slog.LevelDebug).With("command", "eval")
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if IsTerminal(w) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

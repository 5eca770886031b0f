// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LoggerOptions configures NewCommandLogger.
type LoggerOptions struct {
	Level slog.Level

	// Format is "text", "json", or "auto". Auto picks text when Output
	// is a terminal and JSON otherwise.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewCommandLogger creates the logger for a command. Scope it with
// With:
//
//	logger := cli.NewCommandLogger(options).With("command", "send")
func NewCommandLogger(options LoggerOptions) *slog.Logger {
	output := options.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOptions := &slog.HandlerOptions{Level: options.Level}

	text := options.Format == "text"
	if options.Format == "" || options.Format == "auto" {
		text = isTerminal(output)
	}
	if text {
		return slog.New(slog.NewTextHandler(output, handlerOptions))
	}
	return slog.New(slog.NewJSONHandler(output, handlerOptions))
}

func isTerminal(output io.Writer) bool {
	file, ok := output.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

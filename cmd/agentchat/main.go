// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command agentchat talks to a streaming agent backend: an interactive
// chat UI, one-shot sends for scripts, and session management.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// A .env in the working directory may hold AGENTCHAT_CONFIG and
	// AGENTCHAT_TOKEN. Variables already set win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	if err != nil {
		// Commands that already reported the failure return an
		// ExitError; don't print a second line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	return newApp(ctx, os.Stdin, os.Stdout, os.Stderr).root().Execute(args)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework for agentchat.
//
// [Command] is a named command with optional [Command.Subcommands], a
// lazily built [pflag.FlagSet], and a Run function. The tree is
// assembled in cmd/agentchat and dispatched with [Command.Execute],
// which parses flags, routes subcommands, and prints help with
// examples.
//
// An unknown command or flag gets a suggestion when one known name is
// within edit distance 3 of what was typed.
//
// Commands that have already reported a failure return an [ExitError]
// so main exits non-zero without printing a second message.
package cli

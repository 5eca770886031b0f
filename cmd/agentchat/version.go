// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
	"github.com/bureau-foundation/agentchat/lib/version"
)

func (a *app) versionCommand() *cli.Command {
	var full bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&full, "full", false, "include commit and build time")
			return flagSet
		},
		Run: func(args []string) error {
			if full {
				fmt.Fprintln(a.stdout, version.Full())
			} else {
				fmt.Fprintln(a.stdout, version.Info())
			}
			return nil
		},
	}
}

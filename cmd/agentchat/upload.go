// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
)

// uploadResult is one uploaded file, as printed by upload --json.
type uploadResult struct {
	Path        string `json:"path"`
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

func (a *app) uploadCommand() *cli.Command {
	var jsonOutput bool
	return &cli.Command{
		Name:    "upload",
		Summary: "Upload files for later messages",
		Description: "Upload files and print their ids. Pass an id to a message with\n" +
			"'agentchat send --file' instead when sending right away.",
		Usage: "agentchat upload [flags] <path>...",
		Flags: func() *pflag.FlagSet {
			flagSet := a.sharedFlags("upload")
			flagSet.BoolVar(&jsonOutput, "json", false, "print JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one path is required")
			}
			svc, err := a.connect("upload", nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			results := make([]uploadResult, 0, len(args))
			for _, path := range args {
				uploaded, err := a.uploadPath(svc, path)
				if err != nil {
					return err
				}
				results = append(results, *uploaded)
			}
			if jsonOutput {
				return cli.WriteJSON(a.stdout, results)
			}
			writer := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			for _, result := range results {
				fmt.Fprintf(writer, "%s\t%s\n", result.ID, result.Filename)
			}
			return writer.Flush()
		},
	}
}

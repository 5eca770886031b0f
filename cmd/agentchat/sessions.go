// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

func (a *app) sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "sessions",
		Summary: "List, show, and delete stored sessions",
		Subcommands: []*cli.Command{
			a.sessionsListCommand(),
			a.sessionsShowCommand(),
			a.sessionsDeleteCommand(),
		},
	}
}

// sessionRow is the --json shape of a listed session.
type sessionRow struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionRow(session backend.Session) sessionRow {
	return sessionRow{
		ID:        session.ID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func (a *app) sessionsListCommand() *cli.Command {
	var jsonOutput bool
	return &cli.Command{
		Name:    "list",
		Summary: "List sessions, most recently updated first",
		Flags: func() *pflag.FlagSet {
			flagSet := a.sharedFlags("list")
			flagSet.BoolVar(&jsonOutput, "json", false, "print JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			svc, err := a.connect("sessions list", nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			sessions, err := svc.backend.ListSessions(a.ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				rows := make([]sessionRow, 0, len(sessions))
				for _, session := range sessions {
					rows = append(rows, toSessionRow(session))
				}
				return cli.WriteJSON(a.stdout, rows)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(a.stderr, "no sessions")
				return nil
			}

			writer := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tUPDATED\tTITLE")
			for _, session := range sessions {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", session.ID, formatTime(session.UpdatedAt), session.Title)
			}
			return writer.Flush()
		},
	}
}

// historyRow is the --json shape of one stored message.
type historyRow struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *app) sessionsShowCommand() *cli.Command {
	var jsonOutput bool
	return &cli.Command{
		Name:    "show",
		Summary: "Print a session's messages",
		Usage:   "agentchat sessions show [flags] <session-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := a.sharedFlags("show")
			flagSet.BoolVar(&jsonOutput, "json", false, "print JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one session id")
			}
			svc, err := a.connect("sessions show", nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			detail, err := svc.backend.GetSession(a.ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				rows := make([]historyRow, 0, len(detail.Messages))
				for _, message := range detail.Messages {
					rows = append(rows, historyRow{
						ID:        message.ID,
						Role:      message.Role,
						Content:   message.Content,
						CreatedAt: message.CreatedAt,
					})
				}
				return cli.WriteJSON(a.stdout, struct {
					sessionRow
					Messages []historyRow `json:"messages"`
				}{toSessionRow(detail.Session), rows})
			}

			if detail.Title != "" {
				fmt.Fprintf(a.stdout, "# %s\n\n", detail.Title)
			}
			for index, message := range detail.Messages {
				if index > 0 {
					fmt.Fprintln(a.stdout)
				}
				fmt.Fprintf(a.stdout, "[%s] %s\n%s\n", message.Role, formatTime(message.CreatedAt), message.Content)
			}
			return nil
		},
	}
}

func (a *app) sessionsDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete sessions",
		Usage:   "agentchat sessions delete [flags] <session-id>...",
		Flags: func() *pflag.FlagSet {
			return a.sharedFlags("delete")
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one session id is required")
			}
			svc, err := a.connect("sessions delete", nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			for _, id := range args {
				if err := svc.backend.DeleteSession(a.ctx, id); err != nil {
					return err
				}
				svc.publish(notify.KindSessionDeleted, id)
				fmt.Fprintf(a.stderr, "deleted %s\n", id)
			}
			return nil
		},
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
	"github.com/bureau-foundation/agentchat/lib/chat"
	"github.com/bureau-foundation/agentchat/lib/chatui"
)

func (a *app) chatCommand() *cli.Command {
	var (
		sessionID    string
		noTypewriter bool
		logFile      string
	)
	return &cli.Command{
		Name:    "chat",
		Summary: "Open the interactive chat UI",
		Description: "Open a full-screen chat. The sidebar lists stored sessions and\n" +
			"reloads when another agentchat process changes them.\n\n" +
			"The UI owns the terminal, so logs are discarded unless --log-file\n" +
			"names somewhere to put them.",
		Examples: []cli.Example{
			{Description: "Resume a session", Command: "agentchat chat --session 3f2a"},
			{Description: "Debug a backend", Command: "agentchat chat -v --log-file /tmp/agentchat.log"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := a.sharedFlags("chat")
			flagSet.StringVarP(&sessionID, "session", "s", "", "open this session")
			flagSet.BoolVar(&noTypewriter, "no-typewriter", false, "show replies as they arrive")
			flagSet.StringVar(&logFile, "log-file", "", "append logs to this file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}

			var logOutput io.Writer = io.Discard
			if logFile != "" {
				file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer file.Close()
				logOutput = file
			}

			svc, err := a.connect("chat", logOutput)
			if err != nil {
				return err
			}
			defer svc.Close()

			typewriter := svc.config.Typewriter
			conversation, err := chat.NewConversation(chat.Options{
				Streams:  svc.streams,
				Sessions: svc.backend,
				Files:    svc.backend,
				Bus:      svc.bus,
				SessionObserver: func(id string) {
					svc.logger.Debug("conversation bound to session", "session_id", id)
				},
				Typewriter: chat.TypewriterOptions{
					Disabled: noTypewriter || !typewriter.Enabled,
					Interval: typewriter.Interval,
					Step:     typewriter.Step,
				},
				Logger: svc.logger,
			})
			if err != nil {
				return err
			}
			defer conversation.Close()

			if sessionID != "" {
				if err := conversation.LoadSession(a.ctx, sessionID); err != nil {
					return err
				}
			}

			return chatui.Run(a.ctx, chatui.Options{
				Conversation: conversation,
				Sessions:     svc.backend,
				Bus:          svc.bus,
			})
		},
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/agentchat/cmd/agentchat/cli"
	"github.com/bureau-foundation/agentchat/lib/chat"
	"github.com/bureau-foundation/agentchat/lib/chatevent"
	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

// sendResult is the --json output of send.
type sendResult struct {
	SessionID string   `json:"session_id"`
	RunID     string   `json:"run_id,omitempty"`
	Content   string   `json:"content"`
	Complete  bool     `json:"complete"`
	Error     string   `json:"error,omitempty"`
	FileIDs   []string `json:"file_ids,omitempty"`
}

func (a *app) sendCommand() *cli.Command {
	var (
		sessionID  string
		files      []string
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "send",
		Summary: "Send one message and print the streamed reply",
		Description: "Send one message and print the reply as it streams.\n\n" +
			"The message is the remaining arguments joined by spaces, or standard\n" +
			"input when the only argument is \"-\". The session id is printed to\n" +
			"standard error so later sends can continue the conversation.",
		Usage: "agentchat send [flags] <message...>",
		Examples: []cli.Example{
			{Description: "Start a new conversation", Command: "agentchat send 'What changed in the last release?'"},
			{Description: "Continue one with an attachment", Command: "agentchat send -s 3f2a -f report.pdf 'Summarize this'"},
			{Description: "Pipe a prompt in", Command: "git diff | agentchat send -"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := a.sharedFlags("send")
			flagSet.StringVarP(&sessionID, "session", "s", "", "continue this session")
			flagSet.StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
			flagSet.BoolVar(&jsonOutput, "json", false, "print one JSON object after the reply completes")
			return flagSet
		},
		Run: func(args []string) error {
			content, err := a.messageText(args)
			if err != nil {
				return err
			}
			return a.send(content, sessionID, files, jsonOutput)
		},
	}
}

// messageText joins args, reading stdin for a lone "-".
func (a *app) messageText(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("reading message from stdin: %w", err)
		}
		args = []string{string(data)}
	}
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" {
		return "", fmt.Errorf("message is required\n\nUsage: agentchat send [flags] <message...>")
	}
	return content, nil
}

func (a *app) send(content, sessionID string, paths []string, jsonOutput bool) error {
	svc, err := a.connect("send", nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	fileIDs := make([]string, 0, len(paths))
	for _, path := range paths {
		uploaded, err := a.uploadPath(svc, path)
		if err != nil {
			return err
		}
		fileIDs = append(fileIDs, uploaded.ID)
	}

	stream, err := svc.streams.Open(a.ctx, chatstream.Request{
		Content:   content,
		SessionID: sessionID,
		FileIDs:   fileIDs,
	})
	if err != nil {
		if a.ctx.Err() != nil {
			return a.interrupted()
		}
		return errors.New(chat.DescribeFailure(err))
	}
	defer stream.Cancel()

	result := sendResult{SessionID: sessionID, FileIDs: fileIDs}
	printed := ""
	for response := range stream.Events() {
		if response.Event == nil {
			continue
		}
		meta := response.Event.Metadata()
		if meta.SessionID != "" {
			result.SessionID = meta.SessionID
		}
		if meta.RunID != "" {
			result.RunID = meta.RunID
		}
		result.Content = response.FullContent

		switch event := response.Event.(type) {
		case chatevent.End:
			if event.FinalContent != "" {
				result.Content = event.FinalContent
			}
			result.Complete = true
		case chatevent.Error:
			result.Error = event.Message
		}
		if !jsonOutput {
			printed = a.writeProgress(result.Content, printed)
		}
	}

	if !jsonOutput && printed != "" {
		fmt.Fprintln(a.stdout)
	}

	// Announce the session once something reached the backend, even
	// when the reply itself failed.
	switch {
	case result.SessionID == "":
	case sessionID == "" || result.SessionID != sessionID:
		svc.publish(notify.KindSessionCreated, result.SessionID)
	case result.Complete:
		svc.publish(notify.KindSessionUpdated, result.SessionID)
	}

	if a.ctx.Err() != nil {
		return a.interrupted()
	}
	if err := stream.Err(); err != nil && result.Error == "" {
		result.Error = chat.DescribeFailure(err)
	}

	if jsonOutput {
		if err := cli.WriteJSON(a.stdout, result); err != nil {
			return err
		}
	} else if result.SessionID != "" {
		fmt.Fprintf(a.stderr, "session: %s\n", result.SessionID)
	}

	if result.Error != "" {
		if !jsonOutput {
			fmt.Fprintf(a.stderr, "error: %s\n", result.Error)
		}
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// interrupted reports a send stopped by a signal. The exit status is
// the shell convention for SIGINT.
func (a *app) interrupted() error {
	fmt.Fprintln(a.stderr, "interrupted")
	return &cli.ExitError{Code: 130}
}

// writeProgress prints the part of content not yet printed and returns
// what has been printed. A final answer that rewrites the streamed
// text starts on a fresh line.
func (a *app) writeProgress(content, printed string) string {
	if strings.HasPrefix(content, printed) {
		fmt.Fprint(a.stdout, content[len(printed):])
		return content
	}
	fmt.Fprint(a.stdout, "\n"+content)
	return content
}

func (a *app) uploadPath(svc *services, path string) (*uploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening attachment: %w", err)
	}
	defer file.Close()

	uploaded, err := svc.backend.UploadFile(a.ctx, path, file)
	if err != nil {
		return nil, err
	}
	svc.logger.Debug("file uploaded", "path", path, "file_id", uploaded.ID)
	return &uploadResult{
		Path:        path,
		ID:          uploaded.ID,
		Filename:    uploaded.Filename,
		URL:         uploaded.URL,
		ContentType: uploaded.ContentType,
		Size:        uploaded.Size,
	}, nil
}

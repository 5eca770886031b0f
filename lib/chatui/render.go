// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chat"
	"github.com/bureau-foundation/agentchat/lib/chatevent"
)

// streamingCursor trails assistant text that is still being revealed.
const streamingCursor = "▍"

// RenderTranscript renders messages top to bottom, separated by blank
// lines. Each message shows its DisplayedContent, never Content, so
// partially revealed replies render as far as the typewriter has gone.
func RenderTranscript(messages []chat.Message, theme Theme, width int) string {
	styles := ansiRenderer()
	blocks := make([]string, 0, len(messages))
	for _, message := range messages {
		blocks = append(blocks, renderMessage(message, theme, width, styles))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(message chat.Message, theme Theme, width int, styles *lipgloss.Renderer) string {
	label := styles.NewStyle().Bold(true).Foreground(theme.RoleColor(message.Role)).Render(roleLabel(message.Role))
	if !message.Timestamp.IsZero() {
		label += " " + styles.NewStyle().Foreground(theme.FaintText).Render(message.Timestamp.Local().Format("15:04"))
	}

	var body string
	switch message.Role {
	case chat.RoleAssistant:
		body = RenderMarkdown(message.DisplayedContent, theme, width)
		if !message.IsComplete {
			body += styles.NewStyle().Foreground(theme.AssistantLabel).Render(streamingCursor)
		}
		if steps := renderReasoning(message.ExtraData, theme, width, styles); steps != "" {
			body = steps + "\n" + body
		}
	case chat.RoleUser:
		body = ansi.Wrap(styles.NewStyle().Foreground(theme.NormalText).Render(message.DisplayedContent), width, wrapBreakpoints)
		for _, file := range message.Files {
			body += "\n" + styles.NewStyle().Foreground(theme.FaintText).Render("📎 "+file.Name)
		}
	default:
		color := theme.FaintText
		if message.Kind == chatevent.KindError {
			color = theme.ErrorText
		}
		body = ansi.Wrap(styles.NewStyle().Foreground(color).Italic(true).Render(message.DisplayedContent), width, wrapBreakpoints)
	}
	return label + "\n" + body
}

func roleLabel(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return "You"
	case chat.RoleAssistant:
		return "Agent"
	default:
		return "Notice"
	}
}

// renderReasoning lists reasoning step titles above the answer.
func renderReasoning(extra *chatevent.ExtraData, theme Theme, width int, styles *lipgloss.Renderer) string {
	if extra == nil || len(extra.ReasoningSteps) == 0 {
		return ""
	}
	style := styles.NewStyle().Foreground(theme.FaintText)
	lines := make([]string, 0, len(extra.ReasoningSteps))
	for index, step := range extra.ReasoningSteps {
		title := step.Title
		if title == "" {
			title = step.Action
		}
		lines = append(lines, ansi.Truncate(style.Render(fmt.Sprintf("  %d. %s", index+1, title)), width, "…"))
	}
	return strings.Join(lines, "\n")
}

// renderSidebar lists sessions, newest first, one per line. The
// selected row is highlighted and the current session is marked.
func renderSidebar(sessions []backend.Session, selected int, currentID string, theme Theme, width, height int) string {
	if height <= 0 || width <= 0 {
		return ""
	}
	styles := ansiRenderer()
	lines := make([]string, 0, height)

	header := styles.NewStyle().Bold(true).Foreground(theme.HeaderForeground).Render("Sessions")
	lines = append(lines, header)

	// Keep the selected row visible.
	visible := height - 1
	offset := 0
	if selected >= visible {
		offset = selected - visible + 1
	}

	for index := offset; index < len(sessions) && len(lines) < height; index++ {
		session := sessions[index]
		title := session.Title
		if title == "" {
			title = session.ID
		}
		marker := "  "
		if session.ID == currentID {
			marker = "• "
		}
		row := ansi.Truncate(marker+title, width, "…")
		row += strings.Repeat(" ", max(width-ansi.StringWidth(row), 0))

		style := styles.NewStyle().Foreground(theme.NormalText)
		if index == selected {
			style = style.Background(theme.SelectedBackground).Foreground(theme.SelectedForeground)
		}
		lines = append(lines, style.Render(row))
	}
	if len(sessions) == 0 {
		lines = append(lines, styles.NewStyle().Foreground(theme.FaintText).Render("(none)"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

// renderScrollbar draws a one-column track with a thumb sized to the
// visible fraction of the content.
func renderScrollbar(theme Theme, height, total, visible, offset int) string {
	if height <= 0 {
		return ""
	}
	styles := ansiRenderer()
	track := styles.NewStyle().Foreground(theme.BorderColor).Render("│")
	thumb := styles.NewStyle().Foreground(theme.FaintText).Render("┃")

	lines := make([]string, height)
	if total <= visible || total <= 0 {
		for index := range lines {
			lines[index] = track
		}
		return strings.Join(lines, "\n")
	}

	size := max(height*visible/total, 1)
	position := 0
	if scrollable := total - visible; scrollable > 0 {
		position = offset * (height - size) / scrollable
	}
	position = min(position, height-size)

	for index := range lines {
		if index >= position && index < position+size {
			lines[index] = thumb
		} else {
			lines[index] = track
		}
	}
	return strings.Join(lines, "\n")
}

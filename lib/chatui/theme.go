// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/agentchat/lib/chat"
)

// Theme is the chat UI palette. All colors are ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Role labels above each message.
	UserLabel      lipgloss.Color
	AssistantLabel lipgloss.Color
	SystemLabel    lipgloss.Color

	// ErrorText colors failure notices in the transcript.
	ErrorText lipgloss.Color

	// Sidebar selection.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Connection status in the header.
	StatusIdle       lipgloss.Color
	StatusConnecting lipgloss.Color
	StatusConnected  lipgloss.Color
	StatusError      lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	LinkForeground   lipgloss.Color
}

// DefaultTheme is the built-in palette, tuned for dark terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	UserLabel:      lipgloss.Color("75"),
	AssistantLabel: lipgloss.Color("114"),
	SystemLabel:    lipgloss.Color("180"),

	ErrorText: lipgloss.Color("203"),

	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),

	StatusIdle:       lipgloss.Color("243"),
	StatusConnecting: lipgloss.Color("220"),
	StatusConnected:  lipgloss.Color("114"),
	StatusError:      lipgloss.Color("203"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("238"),
	HelpText:         lipgloss.Color("241"),
	LinkForeground:   lipgloss.Color("75"),
}

// RoleColor returns the label color for a message role. Unknown roles
// use SystemLabel.
func (theme Theme) RoleColor(role chat.Role) lipgloss.Color {
	switch role {
	case chat.RoleUser:
		return theme.UserLabel
	case chat.RoleAssistant:
		return theme.AssistantLabel
	default:
		return theme.SystemLabel
	}
}

// StatusColor returns the header color for a connection status.
func (theme Theme) StatusColor(status chat.Status) lipgloss.Color {
	switch status {
	case chat.StatusConnecting:
		return theme.StatusConnecting
	case chat.StatusConnected:
		return theme.StatusConnected
	case chat.StatusError:
		return theme.StatusError
	default:
		return theme.StatusIdle
	}
}

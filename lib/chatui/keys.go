// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the chat UI key bindings. Plain keys go to the
// composer, so every binding uses a modifier or a non-printing key.
type KeyMap struct {
	Send   key.Binding
	Cancel key.Binding // Stop the in-flight reply.

	ScrollUp   key.Binding
	ScrollDown key.Binding
	PageUp     key.Binding
	PageDown   key.Binding

	// Sidebar.
	PreviousSession key.Binding
	NextSession     key.Binding
	OpenSession     key.Binding
	NewChat         key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in binding set.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "stop"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "scroll down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "page down"),
	),
	PreviousSession: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("C-k", "prev session"),
	),
	NextSession: key.NewBinding(
		key.WithKeys("ctrl+j"),
		key.WithHelp("C-j", "next session"),
	),
	OpenSession: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("C-o", "open session"),
	),
	NewChat: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "new chat"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}

// ShortHelp returns the bindings shown in the footer.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Send, keys.Cancel, keys.NewChat, keys.OpenSession, keys.Quit}
}

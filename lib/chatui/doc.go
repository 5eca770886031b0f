// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the interactive terminal front end for a
// [chat.Conversation].
//
// The [Model] is a bubbletea program with three regions: a sidebar of
// stored sessions, a scrollable transcript, and a one-line composer.
// The transcript shows each message's DisplayedContent, so the
// typewriter reveal drives what appears on screen. Assistant text is
// rendered as markdown with syntax-highlighted fenced code.
//
// Conversation changes reach the bubbletea loop through OnChange. A
// sessions-changed notification from the [notify.Bus] reloads the
// sidebar, so a second window on the same backend sees new sessions
// as soon as their first turn ends.
package chatui

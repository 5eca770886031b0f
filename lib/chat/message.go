// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"time"

	"github.com/bureau-foundation/agentchat/lib/chatevent"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem marks client-generated notices: cancellations and
	// failures.
	RoleSystem Role = "system"
)

// Message is one transcript entry.
type Message struct {
	ID   string
	Role Role

	// Content is the ground truth. For a streaming assistant message
	// it is the stream's accumulated text.
	Content string

	// DisplayedContent is the prefix of Content the typewriter has
	// revealed. Equal to Content once the message is complete.
	DisplayedContent string

	// IsComplete turns true exactly once for assistant messages, when
	// the turn ends for any reason. User and system messages are
	// complete from the start.
	IsComplete bool

	// IsStreaming is true while the message is receiving deltas.
	IsStreaming bool

	// Kind is the last stream event applied to the message.
	Kind chatevent.Kind

	Timestamp time.Time

	// Files are attachments sent with a user message.
	Files []FileRef

	ExtraData     *chatevent.ExtraData
	Images        []chatevent.Media
	Videos        []chatevent.Media
	Audio         []chatevent.Media
	ResponseAudio *chatevent.ResponseAudio
}

// FileRef is an uploaded attachment referenced by a user message.
type FileRef struct {
	ID          string
	Name        string
	URL         string
	ContentType string
}

// Transcript is the ordered message list. Not safe for concurrent use;
// Conversation guards it with its own lock.
type Transcript struct {
	messages []*Message
	index    map[string]*Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]*Message)}
}

// Append adds message at the end and returns the stored pointer.
func (transcript *Transcript) Append(message Message) *Message {
	stored := &message
	transcript.messages = append(transcript.messages, stored)
	transcript.index[stored.ID] = stored
	return stored
}

// Get returns the message with id, or nil.
func (transcript *Transcript) Get(id string) *Message {
	return transcript.index[id]
}

// Has reports whether id is in use.
func (transcript *Transcript) Has(id string) bool {
	_, ok := transcript.index[id]
	return ok
}

// Len returns the number of messages.
func (transcript *Transcript) Len() int {
	return len(transcript.messages)
}

// Snapshot copies the messages. The copies share slice and pointer
// fields with the transcript; the Assembler replaces those fields
// rather than mutating them, so sharing is safe.
func (transcript *Transcript) Snapshot() []Message {
	snapshot := make([]Message, len(transcript.messages))
	for index, message := range transcript.messages {
		snapshot[index] = *message
	}
	return snapshot
}

// Clear removes every message.
func (transcript *Transcript) Clear() {
	transcript.messages = nil
	transcript.index = make(map[string]*Message)
}

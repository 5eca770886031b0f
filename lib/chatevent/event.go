// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatevent

import "encoding/json"

// Kind identifies an event variant. The values are the backend's SSE
// event names.
type Kind string

const (
	KindStart      Kind = "start"
	KindUserEcho   Kind = "user_message"
	KindResponding Kind = "responding"
	KindEnd        Kind = "end"
	KindError      Kind = "error"
)

// IsTerminal reports whether an event of this kind ends a stream.
func (kind Kind) IsTerminal() bool {
	return kind == KindEnd || kind == KindError
}

// Event is one decoded stream event. The concrete type is exactly one
// of [Start], [UserEcho], [Responding], [End], or [Error]; switch on
// the type to reach variant fields:
//
//	switch event := event.(type) {
//	case chatevent.Responding:
//	    full += event.Delta
//	case chatevent.End:
//	    ...
//	}
type Event interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Metadata returns the fields shared by every variant.
	Metadata() Meta

	sealed()
}

// Meta carries the fields any payload may include alongside its
// variant-specific content. Empty strings and nil pointers mean the
// backend did not send the field.
type Meta struct {
	// SessionID is the backend-assigned conversation id. New
	// conversations learn it from the first event that carries it.
	SessionID string

	// RunID identifies the response-generation attempt. One run maps
	// to one assistant message.
	RunID string

	ExtraData     *ExtraData
	Images        []Media
	Videos        []Media
	Audio         []Media
	ResponseAudio *ResponseAudio

	// Raw is the payload as received. For payloads that were not valid
	// JSON this is nil.
	Raw json.RawMessage
}

// Metadata returns m. Promoted to every variant through embedding.
func (m Meta) Metadata() Meta { return m }

func (Meta) sealed() {}

// HasSideChannel reports whether any enrichment field is present.
func (m Meta) HasSideChannel() bool {
	return m.ExtraData != nil || m.Images != nil || m.Videos != nil ||
		m.Audio != nil || m.ResponseAudio != nil
}

// Start signals that the backend accepted the request.
type Start struct {
	Meta
}

// UserEcho repeats the user's input as the backend recorded it.
type UserEcho struct {
	Meta
	Content string
}

// Responding carries one increment of assistant output. An empty Delta
// is legal and changes nothing.
type Responding struct {
	Meta
	Delta string
}

// End terminates a successful stream. FinalContent is the backend's
// complete answer when it sent one; callers fall back to their own
// accumulation when it is empty.
type End struct {
	Meta
	FinalContent string
}

// Error terminates a failed stream with a human-readable message.
type Error struct {
	Meta
	Message string
}

func (Start) Kind() Kind      { return KindStart }
func (UserEcho) Kind() Kind   { return KindUserEcho }
func (Responding) Kind() Kind { return KindResponding }
func (End) Kind() Kind        { return KindEnd }
func (Error) Kind() Kind      { return KindError }

// ExtraData is the reasoning side channel attached to assistant output.
type ExtraData struct {
	ReasoningSteps []ReasoningStep `json:"reasoning_steps,omitempty"`
	References     []Reference     `json:"references,omitempty"`
}

// ReasoningStep is one step of the agent's visible reasoning trace.
type ReasoningStep struct {
	Title      string  `json:"title,omitempty"`
	Action     string  `json:"action,omitempty"`
	Result     string  `json:"result,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
	NextAction string  `json:"next_action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Reference is a knowledge source the answer drew on.
type Reference struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Media is an image, video, or audio attachment. Either URL or
// Content (base64) is set.
type Media struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Format   string `json:"format,omitempty"`
}

// ResponseAudio is spoken output streamed with the text. Transcript
// arrives in fragments that the assembler concatenates.
type ResponseAudio struct {
	ID         string `json:"id,omitempty"`
	Content    string `json:"content,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

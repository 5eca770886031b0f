// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chatevent"
	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/clock"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

// Notices appended as system messages.
const (
	cancelledNotice   = "Response stopped."
	idleTimeoutNotice = "The server stopped responding. Please try again."
	closedNotice      = "The connection closed before the response finished. Please try again."
)

// Effects lists what the caller must do after an Assembler call. The
// zero value means nothing changed.
type Effects struct {
	// StartTypewriter names the assistant message whose reveal should
	// be running.
	StartTypewriter string

	// CompleteTypewriter stops the reveal; the Assembler has already
	// made the finished message fully displayed.
	CompleteTypewriter bool

	// ObservedSession is a session id learned from the stream that
	// differs from the one the conversation had. Callers update their
	// address with it; history is not reloaded.
	ObservedSession string

	// Notify, when set, is the sessions-changed notification to
	// publish for SessionID.
	Notify    notify.Kind
	SessionID string

	// Changed reports that the transcript, phase, status, or session
	// id changed.
	Changed bool
}

// Assembler applies stream responses to a transcript. Not safe for
// concurrent use.
type Assembler struct {
	transcript *Transcript
	clock      clock.Clock
	newID      func() string

	// instant makes deltas visible immediately, for callers that run
	// without a typewriter.
	instant bool

	sessionID string
	// sessionNew is set when this turn adopted a session id that has
	// not been announced on the bus yet.
	sessionNew bool

	currentID   string
	pendingEcho string

	// currentRun is the run id of the open assistant message, and
	// runOffset is where that run's text starts in the stream's
	// accumulated content.
	currentRun string
	runOffset  int

	// heldSide collects side-channel fields that arrived before any
	// assistant text. They are merged into the next message opened.
	heldSide    Message
	hasHeldSide bool

	phase  Phase
	status Status
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock sets the clock used for message timestamps.
func WithClock(c clock.Clock) AssemblerOption {
	return func(assembler *Assembler) { assembler.clock = c }
}

// WithIDGenerator replaces the random message id source.
func WithIDGenerator(newID func() string) AssemblerOption {
	return func(assembler *Assembler) { assembler.newID = newID }
}

// WithInstantDisplay copies Content to DisplayedContent on every
// update instead of leaving it to a typewriter.
func WithInstantDisplay() AssemblerOption {
	return func(assembler *Assembler) { assembler.instant = true }
}

// NewAssembler returns an assembler over an empty transcript.
func NewAssembler(options ...AssemblerOption) *Assembler {
	assembler := &Assembler{
		transcript: NewTranscript(),
		clock:      clock.Real(),
		newID:      uuid.NewString,
		status:     StatusIdle,
	}
	for _, option := range options {
		option(assembler)
	}
	return assembler
}

// Transcript returns the owned transcript.
func (assembler *Assembler) Transcript() *Transcript { return assembler.transcript }

// SessionID returns the backend session id, or "" for a conversation
// the backend has not named yet.
func (assembler *Assembler) SessionID() string { return assembler.sessionID }

// Phase returns the state of the current turn.
func (assembler *Assembler) Phase() Phase { return assembler.phase }

// Status returns the connection indicator.
func (assembler *Assembler) Status() Status { return assembler.status }

// CurrentID returns the assistant message receiving deltas, or "".
func (assembler *Assembler) CurrentID() string { return assembler.currentID }

// BeginTurn appends the user's message and moves to Connecting. The
// text is remembered so the backend's echo of it is not appended a
// second time.
func (assembler *Assembler) BeginTurn(text string, files []FileRef) Effects {
	assembler.transcript.Append(Message{
		ID:               assembler.newID(),
		Role:             RoleUser,
		Content:          text,
		DisplayedContent: text,
		IsComplete:       true,
		Kind:             chatevent.KindUserEcho,
		Timestamp:        assembler.now(),
		Files:            files,
	})
	assembler.pendingEcho = text
	assembler.clearRun()
	assembler.sessionNew = false
	assembler.phase = PhaseConnecting
	assembler.status = StatusConnecting
	return Effects{Changed: true}
}

// Apply folds one response into the transcript. Responses arriving
// outside an in-flight turn are ignored.
func (assembler *Assembler) Apply(response chatstream.Response) Effects {
	if !assembler.phase.InFlight() || response.Event == nil {
		return Effects{}
	}
	effects := Effects{Changed: true}
	meta := response.Event.Metadata()

	if meta.SessionID != "" && meta.SessionID != assembler.sessionID {
		assembler.sessionID = meta.SessionID
		assembler.sessionNew = true
		effects.ObservedSession = meta.SessionID
	}
	assembler.phase = PhaseStreaming
	assembler.status = StatusConnected

	switch event := response.Event.(type) {
	case chatevent.Start:
		assembler.enrichCurrent(meta)

	case chatevent.UserEcho:
		if event.Content != "" && event.Content != assembler.pendingEcho {
			assembler.transcript.Append(Message{
				ID:               assembler.newID(),
				Role:             RoleUser,
				Content:          event.Content,
				DisplayedContent: event.Content,
				IsComplete:       true,
				Kind:             chatevent.KindUserEcho,
				Timestamp:        assembler.now(),
			})
		}
		assembler.pendingEcho = ""

	case chatevent.Responding:
		message := assembler.current()
		if message != nil && meta.RunID != "" && assembler.currentRun != "" && meta.RunID != assembler.currentRun {
			// One run, one message: close the previous run's message.
			assembler.closeCurrent()
			assembler.runOffset = len(response.FullContent) - len(response.CurrentChunk)
			message = nil
		}
		if message == nil {
			if response.CurrentChunk == "" {
				assembler.holdSideChannel(meta)
				break
			}
			message = assembler.openAssistant(meta)
		}
		if assembler.currentRun == "" {
			assembler.currentRun = meta.RunID
		}
		message.Content = assembler.runContent(response.FullContent)
		message.Kind = chatevent.KindResponding
		mergeSideChannel(message, meta)
		if assembler.instant {
			message.DisplayedContent = message.Content
		} else {
			effects.StartTypewriter = message.ID
		}

	case chatevent.End:
		message := assembler.current()
		accumulated := assembler.runContent(response.FullContent)
		if message == nil && (event.FinalContent != "" || accumulated != "" || meta.HasSideChannel() || assembler.hasHeldSide) {
			message = assembler.openAssistant(meta)
		}
		if message != nil {
			message.Content = accumulated
			if event.FinalContent != "" {
				message.Content = event.FinalContent
			}
			message.Kind = chatevent.KindEnd
			mergeSideChannel(message, meta)
		}
		assembler.finish(&effects, PhaseCompleted, StatusConnected)

	case chatevent.Error:
		if message := assembler.current(); message != nil {
			message.Kind = chatevent.KindError
			mergeSideChannel(message, meta)
		}
		assembler.finish(&effects, PhaseErrored, StatusError)
		assembler.appendSystem(event.Message, chatevent.KindError)
	}
	return effects
}

// Cancel ends an in-flight turn at the user's request. Accumulated
// content is kept. No-op when no turn is in flight.
func (assembler *Assembler) Cancel() Effects {
	if !assembler.phase.InFlight() {
		return Effects{}
	}
	effects := Effects{Changed: true}
	assembler.finish(&effects, PhaseCancelled, StatusIdle)
	assembler.appendSystem(cancelledNotice, "")
	return effects
}

// Fail ends an in-flight turn after a transport or read failure and
// appends a notice describing err. No-op when no turn is in flight.
func (assembler *Assembler) Fail(err error) Effects {
	if !assembler.phase.InFlight() {
		return Effects{}
	}
	effects := Effects{Changed: true}
	assembler.finish(&effects, PhaseErrored, StatusError)
	// A failed turn does not refresh the list unless it named a new
	// session that nobody has heard about yet.
	if effects.Notify == notify.KindSessionUpdated {
		effects.Notify = ""
		effects.SessionID = ""
	}
	assembler.appendSystem(DescribeFailure(err), chatevent.KindError)
	return effects
}

// LoadHistory replaces the transcript with a stored session. The
// assembler adopts the session id without reporting it.
func (assembler *Assembler) LoadHistory(detail *backend.SessionDetail) Effects {
	assembler.transcript.Clear()
	for _, item := range detail.Messages {
		role := Role(item.Role)
		switch role {
		case RoleUser, RoleAssistant, RoleSystem:
		case "bot", "agent", "ai":
			role = RoleAssistant
		default:
			role = RoleSystem
		}
		id := item.ID
		if id == "" || assembler.transcript.Has(id) {
			id = assembler.newID()
		}
		timestamp := item.CreatedAt
		if timestamp.IsZero() {
			timestamp = assembler.now()
		}
		assembler.transcript.Append(Message{
			ID:               id,
			Role:             role,
			Content:          item.Content,
			DisplayedContent: item.Content,
			IsComplete:       true,
			Timestamp:        timestamp,
			ExtraData:        item.ExtraData,
			Images:           item.Images,
			Videos:           item.Videos,
			Audio:            item.Audio,
		})
	}
	assembler.sessionID = detail.ID
	assembler.resetTurn()
	return Effects{Changed: true}
}

// Reset starts a new, unnamed conversation.
func (assembler *Assembler) Reset() Effects {
	assembler.transcript.Clear()
	assembler.sessionID = ""
	assembler.resetTurn()
	return Effects{Changed: true}
}

func (assembler *Assembler) resetTurn() {
	assembler.clearRun()
	assembler.pendingEcho = ""
	assembler.sessionNew = false
	assembler.phase = PhaseIdle
	assembler.status = StatusIdle
}

// current returns the open assistant message, or nil.
func (assembler *Assembler) current() *Message {
	if assembler.currentID == "" {
		return nil
	}
	message := assembler.transcript.Get(assembler.currentID)
	if message == nil || message.IsComplete {
		return nil
	}
	return message
}

// openAssistant returns the open assistant message, creating one keyed
// by the run id when there is none.
func (assembler *Assembler) openAssistant(meta chatevent.Meta) *Message {
	if message := assembler.current(); message != nil {
		return message
	}
	id := meta.RunID
	if id == "" || assembler.transcript.Has(id) {
		id = assembler.newID()
	}
	message := assembler.transcript.Append(Message{
		ID:          id,
		Role:        RoleAssistant,
		IsStreaming: true,
		Timestamp:   assembler.now(),
	})
	if assembler.hasHeldSide {
		message.ExtraData = assembler.heldSide.ExtraData
		message.Images = assembler.heldSide.Images
		message.Videos = assembler.heldSide.Videos
		message.Audio = assembler.heldSide.Audio
		message.ResponseAudio = assembler.heldSide.ResponseAudio
		assembler.heldSide = Message{}
		assembler.hasHeldSide = false
	}
	assembler.currentID = id
	assembler.currentRun = meta.RunID
	return message
}

// closeCurrent completes the open assistant message without ending the
// turn.
func (assembler *Assembler) closeCurrent() {
	if message := assembler.current(); message != nil {
		message.IsComplete = true
		message.IsStreaming = false
		message.DisplayedContent = message.Content
	}
	assembler.currentID = ""
	assembler.currentRun = ""
}

func (assembler *Assembler) clearRun() {
	assembler.currentID = ""
	assembler.currentRun = ""
	assembler.runOffset = 0
	assembler.heldSide = Message{}
	assembler.hasHeldSide = false
}

// runContent is the part of the stream's accumulated text that belongs
// to the current run.
func (assembler *Assembler) runContent(full string) string {
	if assembler.runOffset > len(full) {
		return ""
	}
	return full[assembler.runOffset:]
}

// holdSideChannel keeps side-channel fields until a message exists to
// carry them.
func (assembler *Assembler) holdSideChannel(meta chatevent.Meta) {
	if !meta.HasSideChannel() {
		return
	}
	mergeSideChannel(&assembler.heldSide, meta)
	assembler.hasHeldSide = true
}

// enrichCurrent merges side-channel fields into the open assistant
// message, or holds them when there is none.
func (assembler *Assembler) enrichCurrent(meta chatevent.Meta) {
	if message := assembler.current(); message != nil {
		mergeSideChannel(message, meta)
		return
	}
	assembler.holdSideChannel(meta)
}

// finish completes the open assistant message and closes the turn.
func (assembler *Assembler) finish(effects *Effects, phase Phase, status Status) {
	if message := assembler.current(); message != nil {
		message.IsComplete = true
		message.IsStreaming = false
		message.DisplayedContent = message.Content
	}
	effects.CompleteTypewriter = true
	assembler.clearRun()
	assembler.pendingEcho = ""
	assembler.phase = phase
	assembler.status = status

	if assembler.sessionID != "" {
		effects.SessionID = assembler.sessionID
		effects.Notify = notify.KindSessionUpdated
		if assembler.sessionNew {
			effects.Notify = notify.KindSessionCreated
		}
	}
	assembler.sessionNew = false
}

func (assembler *Assembler) appendSystem(text string, kind chatevent.Kind) {
	assembler.transcript.Append(Message{
		ID:               assembler.newID(),
		Role:             RoleSystem,
		Content:          text,
		DisplayedContent: text,
		IsComplete:       true,
		Kind:             kind,
		Timestamp:        assembler.now(),
	})
}

func (assembler *Assembler) now() time.Time {
	return assembler.clock.Now()
}

// mergeSideChannel copies enrichment fields onto message. The last
// non-nil value of each field wins, except the response-audio
// transcript, which accumulates across events.
func mergeSideChannel(message *Message, meta chatevent.Meta) {
	if meta.ExtraData != nil {
		message.ExtraData = meta.ExtraData
	}
	if meta.Images != nil {
		message.Images = meta.Images
	}
	if meta.Videos != nil {
		message.Videos = meta.Videos
	}
	if meta.Audio != nil {
		message.Audio = meta.Audio
	}
	if meta.ResponseAudio != nil {
		merged := *meta.ResponseAudio
		if previous := message.ResponseAudio; previous != nil {
			merged.Transcript = previous.Transcript + meta.ResponseAudio.Transcript
			if merged.ID == "" {
				merged.ID = previous.ID
			}
			if merged.Content == "" {
				merged.Content = previous.Content
			}
			if merged.SampleRate == 0 {
				merged.SampleRate = previous.SampleRate
			}
			if merged.Channels == 0 {
				merged.Channels = previous.Channels
			}
		}
		message.ResponseAudio = &merged
	}
}

// DescribeFailure renders a turn failure for the transcript.
func DescribeFailure(err error) string {
	var httpErr *chatstream.HTTPError
	switch {
	case errors.Is(err, chatstream.ErrIdleTimeout):
		return idleTimeoutNotice
	case errors.Is(err, chatstream.ErrStreamClosed):
		return closedNotice
	case errors.As(err, &httpErr) && httpErr.IsUnauthorized():
		return "Not authorized. Check the configured token."
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return fmt.Sprintf("The server rejected the request (HTTP %d): %s", httpErr.StatusCode, httpErr.Message)
		}
		return fmt.Sprintf("The server rejected the request (HTTP %d).", httpErr.StatusCode)
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chatevent"
	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/clock"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

// responder builds the responses a stream would emit, accumulating
// deltas the same way the controller does.
type responder struct {
	full string
}

func (r *responder) start(sessionID string) chatstream.Response {
	return chatstream.Response{Kind: chatevent.KindStart, FullContent: r.full,
		Event: chatevent.Start{Meta: chatevent.Meta{SessionID: sessionID}}}
}

func (r *responder) delta(delta string, meta chatevent.Meta) chatstream.Response {
	r.full += delta
	return chatstream.Response{Kind: chatevent.KindResponding, FullContent: r.full, CurrentChunk: delta,
		Event: chatevent.Responding{Meta: meta, Delta: delta}}
}

func (r *responder) end(final string, meta chatevent.Meta) chatstream.Response {
	return chatstream.Response{Kind: chatevent.KindEnd, FullContent: r.full, IsComplete: true,
		Event: chatevent.End{Meta: meta, FinalContent: final}}
}

func (r *responder) failure(message string) chatstream.Response {
	return chatstream.Response{Kind: chatevent.KindError, FullContent: r.full, IsComplete: true, IsError: true,
		Event: chatevent.Error{Message: message}}
}

func newTestAssembler(options ...AssemblerOption) *Assembler {
	counter := 0
	base := []AssemblerOption{
		WithClock(clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		}),
	}
	return NewAssembler(append(base, options...)...)
}

func assistantMessages(messages []Message) []Message {
	var assistants []Message
	for _, message := range messages {
		if message.Role == RoleAssistant {
			assistants = append(assistants, message)
		}
	}
	return assistants
}

func TestAssemblerSingleAssistantMessagePerTurn(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("greet me", nil)

	var r responder
	first := assembler.Apply(r.delta("Hi", chatevent.Meta{}))
	second := assembler.Apply(r.delta(" there", chatevent.Meta{}))
	last := assembler.Apply(r.end("Hi there", chatevent.Meta{}))

	messages := assembler.Transcript().Snapshot()
	assistants := assistantMessages(messages)
	if len(assistants) != 1 {
		t.Fatalf("got %d assistant messages, want 1: %+v", len(assistants), messages)
	}
	message := assistants[0]
	if message.Content != "Hi there" || !message.IsComplete || message.IsStreaming {
		t.Errorf("assistant message = %+v", message)
	}
	if message.DisplayedContent != "Hi there" {
		t.Errorf("DisplayedContent = %q, want full text after completion", message.DisplayedContent)
	}
	if first.StartTypewriter != message.ID || second.StartTypewriter != message.ID {
		t.Errorf("typewriter targets = %q, %q, want %q", first.StartTypewriter, second.StartTypewriter, message.ID)
	}
	if !last.CompleteTypewriter {
		t.Error("end did not complete the typewriter")
	}
	if assembler.Phase() != PhaseCompleted || assembler.Status() != StatusConnected {
		t.Errorf("phase %v status %v", assembler.Phase(), assembler.Status())
	}
}

func TestAssemblerDeltasTrailUntilCompletion(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("x", nil)
	var r responder
	assembler.Apply(r.delta("partial", chatevent.Meta{}))

	message := assembler.Transcript().Get(assembler.CurrentID())
	if message.Content != "partial" || message.DisplayedContent != "" {
		t.Errorf("content %q displayed %q, want typewriter to own the display", message.Content, message.DisplayedContent)
	}
	if !message.IsStreaming || message.IsComplete {
		t.Errorf("flags = streaming %v complete %v", message.IsStreaming, message.IsComplete)
	}

	instant := newTestAssembler(WithInstantDisplay())
	instant.BeginTurn("x", nil)
	var other responder
	effects := instant.Apply(other.delta("shown", chatevent.Meta{}))
	if got := instant.Transcript().Get(instant.CurrentID()).DisplayedContent; got != "shown" {
		t.Errorf("instant DisplayedContent = %q", got)
	}
	if effects.StartTypewriter != "" {
		t.Error("instant display still requested the typewriter")
	}
}

func TestAssemblerEndContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		deltas []string
		final  string
		want   string
	}{
		{"final matches", []string{"a", "b"}, "ab", "ab"},
		{"final replaces accumulation", []string{"draft"}, "Final answer", "Final answer"},
		{"missing final keeps accumulation", []string{"kept"}, "", "kept"},
		{"final without deltas", nil, "only final", "only final"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assembler := newTestAssembler()
			assembler.BeginTurn("q", nil)
			var r responder
			for _, delta := range test.deltas {
				assembler.Apply(r.delta(delta, chatevent.Meta{}))
			}
			assembler.Apply(r.end(test.final, chatevent.Meta{}))

			assistants := assistantMessages(assembler.Transcript().Snapshot())
			if len(assistants) != 1 || assistants[0].Content != test.want {
				t.Errorf("assistants = %+v, want one with %q", assistants, test.want)
			}
		})
	}
}

func TestAssemblerEndWithoutOutputAddsNothing(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.end("", chatevent.Meta{}))
	if got := len(assistantMessages(assembler.Transcript().Snapshot())); got != 0 {
		t.Errorf("got %d assistant messages for an empty reply", got)
	}
	if assembler.Phase() != PhaseCompleted {
		t.Errorf("phase = %v", assembler.Phase())
	}
}

func TestAssemblerRunIDKeysMessage(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.delta("one", chatevent.Meta{RunID: "run-7"}))
	assembler.Apply(r.end("", chatevent.Meta{}))
	if assembler.Transcript().Get("run-7") == nil {
		t.Fatal("assistant message not keyed by run id")
	}

	// A second turn reusing the run id gets a fresh id.
	assembler.BeginTurn("again", nil)
	var second responder
	assembler.Apply(second.delta("two", chatevent.Meta{RunID: "run-7"}))
	assistants := assistantMessages(assembler.Transcript().Snapshot())
	if len(assistants) != 2 || assistants[1].ID == "run-7" {
		t.Errorf("assistants = %+v", assistants)
	}
}

func TestAssemblerNewRunOpensNewMessage(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler(WithInstantDisplay())
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.delta("one", chatevent.Meta{RunID: "run-1"}))
	assembler.Apply(r.delta(" more", chatevent.Meta{RunID: "run-1"}))
	effects := assembler.Apply(r.delta("two", chatevent.Meta{RunID: "run-2"}))
	if effects.StartTypewriter != "run-2" {
		t.Errorf("StartTypewriter = %q, want run-2", effects.StartTypewriter)
	}
	assembler.Apply(r.delta("!", chatevent.Meta{}))
	assembler.Apply(r.end("", chatevent.Meta{}))

	assistants := assistantMessages(assembler.Transcript().Snapshot())
	if len(assistants) != 2 {
		t.Fatalf("got %d assistant messages, want one per run: %+v", len(assistants), assistants)
	}
	first, second := assistants[0], assistants[1]
	if first.ID != "run-1" || first.Content != "one more" || !first.IsComplete || first.IsStreaming {
		t.Errorf("first run = %+v", first)
	}
	if second.ID != "run-2" || second.Content != "two!" || !second.IsComplete {
		t.Errorf("second run = %+v", second)
	}
	if first.DisplayedContent != first.Content {
		t.Errorf("closed run displays %q, want %q", first.DisplayedContent, first.Content)
	}
}

func TestAssemblerEmptyDeltaOpensNothing(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	effects := assembler.Apply(r.delta("", chatevent.Meta{}))
	if effects.StartTypewriter != "" {
		t.Errorf("empty delta started the typewriter for %q", effects.StartTypewriter)
	}
	if assembler.CurrentID() != "" {
		t.Errorf("empty delta opened message %q", assembler.CurrentID())
	}
	assembler.Apply(r.end("", chatevent.Meta{}))

	if got := len(assistantMessages(assembler.Transcript().Snapshot())); got != 0 {
		t.Errorf("got %d assistant messages after an empty delta and end", got)
	}
	if assembler.Phase() != PhaseCompleted {
		t.Errorf("phase = %v", assembler.Phase())
	}
}

func TestAssemblerEmptyDeltaHoldsSideChannel(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler(WithInstantDisplay())
	assembler.BeginTurn("q", nil)
	steps := &chatevent.ExtraData{ReasoningSteps: []chatevent.ReasoningStep{{Title: "look"}}}
	var r responder
	assembler.Apply(r.delta("", chatevent.Meta{ExtraData: steps}))
	if got := len(assistantMessages(assembler.Transcript().Snapshot())); got != 0 {
		t.Fatalf("got %d assistant messages before any text", got)
	}
	assembler.Apply(r.delta("answer", chatevent.Meta{}))

	assistants := assistantMessages(assembler.Transcript().Snapshot())
	if len(assistants) != 1 || assistants[0].ExtraData != steps {
		t.Errorf("assistants = %+v, want the held reasoning steps", assistants)
	}
}

func TestAssemblerUserEcho(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("hello", nil)
	echo := func(content string) chatstream.Response {
		return chatstream.Response{Kind: chatevent.KindUserEcho, Event: chatevent.UserEcho{Content: content}}
	}
	assembler.Apply(echo("hello"))
	if got := assembler.Transcript().Len(); got != 1 {
		t.Fatalf("echo of the pending send was appended: %d messages", got)
	}
	assembler.Apply(echo("hello"))
	assembler.Apply(echo("rewritten by server"))
	messages := assembler.Transcript().Snapshot()
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for _, message := range messages {
		if message.Role != RoleUser || !message.IsComplete || message.IsStreaming {
			t.Errorf("echoed message = %+v", message)
		}
	}
}

func TestAssemblerSessionAdoption(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("first", nil)
	var r responder

	observed := assembler.Apply(r.start("s1"))
	if observed.ObservedSession != "s1" || observed.Notify != "" {
		t.Errorf("start effects = %+v, want observation without notification", observed)
	}
	repeat := assembler.Apply(r.delta("x", chatevent.Meta{SessionID: "s1"}))
	if repeat.ObservedSession != "" {
		t.Error("session reported twice")
	}
	end := assembler.Apply(r.end("", chatevent.Meta{SessionID: "s1"}))
	if end.Notify != notify.KindSessionCreated || end.SessionID != "s1" {
		t.Errorf("end effects = %+v, want one created notification", end)
	}

	assembler.BeginTurn("second", nil)
	var next responder
	assembler.Apply(next.delta("y", chatevent.Meta{SessionID: "s1"}))
	if end := assembler.Apply(next.end("", chatevent.Meta{})); end.Notify != notify.KindSessionUpdated {
		t.Errorf("second turn notify = %q, want updated", end.Notify)
	}
	if assembler.SessionID() != "s1" {
		t.Errorf("SessionID = %q", assembler.SessionID())
	}
}

func TestAssemblerErrorEvent(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.delta("half", chatevent.Meta{}))
	effects := assembler.Apply(r.failure("quota exceeded"))

	messages := assembler.Transcript().Snapshot()
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want user, assistant, notice", len(messages))
	}
	if assistant := messages[1]; !assistant.IsComplete || assistant.Content != "half" {
		t.Errorf("assistant = %+v", assistant)
	}
	if notice := messages[2]; notice.Role != RoleSystem || notice.Content != "quota exceeded" || notice.Kind != chatevent.KindError {
		t.Errorf("notice = %+v", notice)
	}
	if assembler.Status() != StatusError || assembler.Phase() != PhaseErrored {
		t.Errorf("status %v phase %v", assembler.Status(), assembler.Phase())
	}
	if !effects.CompleteTypewriter {
		t.Error("error did not complete the typewriter")
	}

	// Terminal phases ignore stragglers.
	if effects := assembler.Apply(r.delta("late", chatevent.Meta{})); effects.Changed {
		t.Error("response applied after the turn ended")
	}
}

func TestAssemblerCancelKeepsContent(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.delta("so far", chatevent.Meta{SessionID: "s9"}))

	effects := assembler.Cancel()
	if !effects.CompleteTypewriter || effects.Notify != notify.KindSessionCreated {
		t.Errorf("cancel effects = %+v", effects)
	}
	messages := assembler.Transcript().Snapshot()
	if assistant := messages[1]; assistant.Content != "so far" || !assistant.IsComplete {
		t.Errorf("assistant = %+v", assistant)
	}
	if notice := messages[len(messages)-1]; notice.Role != RoleSystem || notice.Content != cancelledNotice {
		t.Errorf("notice = %+v", notice)
	}
	if assembler.Phase() != PhaseCancelled {
		t.Errorf("phase = %v", assembler.Phase())
	}

	if again := assembler.Cancel(); again.Changed {
		t.Error("second Cancel changed state")
	}
	if got := assembler.Transcript().Len(); got != len(messages) {
		t.Errorf("second Cancel appended messages: %d", got)
	}
}

func TestAssemblerFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{"idle", chatstream.ErrIdleTimeout, idleTimeoutNotice},
		{"closed", fmt.Errorf("wrapped: %w", chatstream.ErrStreamClosed), closedNotice},
		{"unauthorized", &chatstream.HTTPError{StatusCode: 401}, "Not authorized. Check the configured token."},
		{"status", &chatstream.HTTPError{StatusCode: 503, Message: "maintenance"}, "The server rejected the request (HTTP 503): maintenance"},
		{"transport", errors.New("dial tcp: refused"), "Something went wrong: dial tcp: refused"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assembler := newTestAssembler()
			assembler.BeginTurn("q", nil)
			effects := assembler.Fail(test.err)

			messages := assembler.Transcript().Snapshot()
			notice := messages[len(messages)-1]
			if notice.Role != RoleSystem || notice.Content != test.notice {
				t.Errorf("notice = %q, want %q", notice.Content, test.notice)
			}
			if assembler.Status() != StatusError || assembler.Phase() != PhaseErrored {
				t.Errorf("status %v phase %v", assembler.Status(), assembler.Phase())
			}
			if effects.Notify != "" {
				t.Errorf("failure without a session published %q", effects.Notify)
			}
		})
	}
}

func TestAssemblerFailAnnouncesNewSessionOnly(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("q", nil)
	var r responder
	assembler.Apply(r.start("fresh"))
	if effects := assembler.Fail(chatstream.ErrStreamClosed); effects.Notify != notify.KindSessionCreated {
		t.Errorf("notify = %q, want created for a session learned this turn", effects.Notify)
	}

	assembler.BeginTurn("q2", nil)
	if effects := assembler.Fail(chatstream.ErrStreamClosed); effects.Notify != "" {
		t.Errorf("notify = %q, want none for a known session", effects.Notify)
	}
}

func TestMergeSideChannel(t *testing.T) {
	t.Parallel()

	message := &Message{}
	steps := &chatevent.ExtraData{ReasoningSteps: []chatevent.ReasoningStep{{Title: "look up"}}}
	mergeSideChannel(message, chatevent.Meta{
		ExtraData:     steps,
		Images:        []chatevent.Media{{URL: "a.png"}},
		ResponseAudio: &chatevent.ResponseAudio{ID: "audio-1", Transcript: "Hel", SampleRate: 24000},
	})
	mergeSideChannel(message, chatevent.Meta{
		ResponseAudio: &chatevent.ResponseAudio{Transcript: "lo"},
		Videos:        []chatevent.Media{{URL: "v.mp4"}},
	})
	mergeSideChannel(message, chatevent.Meta{})

	if message.ExtraData != steps || len(message.Images) != 1 || len(message.Videos) != 1 {
		t.Errorf("fields lost: %+v", message)
	}
	audio := message.ResponseAudio
	if audio.Transcript != "Hello" || audio.ID != "audio-1" || audio.SampleRate != 24000 {
		t.Errorf("response audio = %+v", audio)
	}

	replacement := &chatevent.ExtraData{References: []chatevent.Reference{{Name: "doc"}}}
	mergeSideChannel(message, chatevent.Meta{ExtraData: replacement})
	if message.ExtraData != replacement {
		t.Error("later extra data did not win")
	}
}

func TestAssemblerLoadHistory(t *testing.T) {
	t.Parallel()

	assembler := newTestAssembler()
	assembler.BeginTurn("discarded", nil)
	assembler.LoadHistory(&backend.SessionDetail{
		Session: backend.Session{ID: "s5"},
		Messages: []backend.HistoryMessage{
			{ID: "m1", Role: "user", Content: "hi"},
			{ID: "m1", Role: "bot", Content: "hello"},
			{Role: "tool", Content: "lookup"},
		},
	})

	messages := assembler.Transcript().Snapshot()
	if len(messages) != 3 {
		t.Fatalf("got %d messages", len(messages))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleSystem}
	for index, message := range messages {
		if message.Role != wantRoles[index] {
			t.Errorf("message %d role = %q, want %q", index, message.Role, wantRoles[index])
		}
		if !message.IsComplete || message.DisplayedContent != message.Content {
			t.Errorf("history message %d not fully shown: %+v", index, message)
		}
	}
	if messages[1].ID == "m1" {
		t.Error("duplicate history id kept")
	}
	if assembler.SessionID() != "s5" || assembler.Phase() != PhaseIdle {
		t.Errorf("session %q phase %v", assembler.SessionID(), assembler.Phase())
	}

	assembler.Reset()
	if assembler.SessionID() != "" || assembler.Transcript().Len() != 0 {
		t.Error("Reset kept state")
	}
}

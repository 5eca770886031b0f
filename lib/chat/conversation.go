// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chatstream"
	"github.com/bureau-foundation/agentchat/lib/clock"
	"github.com/bureau-foundation/agentchat/lib/notify"
	"github.com/bureau-foundation/agentchat/lib/typewriter"
)

var (
	// ErrEmptyMessage is returned by Send for blank text without
	// attachments.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrClosed is returned by operations on a closed Conversation.
	ErrClosed = errors.New("chat: conversation closed")
)

// Streamer opens one streamed turn. *chatstream.Client implements it.
type Streamer interface {
	Open(ctx context.Context, request chatstream.Request) (*chatstream.Stream, error)
}

// SessionStore loads stored history. *backend.Client implements it.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*backend.SessionDetail, error)
}

// FileStore uploads attachments. *backend.Client implements it.
type FileStore interface {
	UploadFile(ctx context.Context, name string, content io.Reader) (*backend.File, error)
}

// Attachment is a file to upload and reference from a message.
type Attachment struct {
	Name    string
	Content io.Reader
}

// TypewriterOptions configures the reveal animation.
type TypewriterOptions struct {
	// Disabled shows text as soon as it arrives.
	Disabled bool
	Interval time.Duration
	Step     int
}

// Options configures a Conversation. Streams is required.
type Options struct {
	Streams  Streamer
	Sessions SessionStore
	Files    FileStore

	// Bus receives sessions-changed notifications. Nil skips them.
	Bus notify.Bus

	// SessionObserver is called when the conversation learns its
	// session id from a stream, so the caller can record it.
	SessionObserver func(sessionID string)

	// SessionID resumes an existing session without loading history.
	SessionID string

	Typewriter TypewriterOptions
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Conversation is one chat view: a transcript, its session, and at most
// one in-flight turn.
type Conversation struct {
	streams  Streamer
	sessions SessionStore
	files    FileStore
	bus      notify.Bus
	observer func(string)
	logger   *slog.Logger

	presenter *typewriter.Presenter

	// control serializes Send, Cancel, LoadSession, Reset and Close.
	// It is never held by the turn goroutine.
	control sync.Mutex

	// mu guards the assembler and listeners. Never held while calling
	// the presenter.
	mu        sync.Mutex
	assembler *Assembler
	listeners map[int]func()
	nextID    int
	active    *turn
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
}

type turn struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConversation creates an idle conversation.
func NewConversation(options Options) (*Conversation, error) {
	if options.Streams == nil {
		return nil, fmt.Errorf("chat: Options.Streams is required")
	}
	conversationClock := options.Clock
	if conversationClock == nil {
		conversationClock = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	assemblerOptions := []AssemblerOption{WithClock(conversationClock)}
	if options.Typewriter.Disabled {
		assemblerOptions = append(assemblerOptions, WithInstantDisplay())
	}
	assembler := NewAssembler(assemblerOptions...)
	assembler.sessionID = options.SessionID

	ctx, cancel := context.WithCancel(context.Background())
	conversation := &Conversation{
		streams:   options.Streams,
		sessions:  options.Sessions,
		files:     options.Files,
		bus:       options.Bus,
		observer:  options.SessionObserver,
		logger:    logger,
		assembler: assembler,
		listeners: make(map[int]func()),
		ctx:       ctx,
		cancel:    cancel,
	}
	if !options.Typewriter.Disabled {
		conversation.presenter = typewriter.New(transcriptTarget{conversation}, typewriter.Options{
			Interval: options.Typewriter.Interval,
			Step:     options.Typewriter.Step,
			Clock:    conversationClock,
			OnTick:   func(string) { conversation.notifyListeners() },
		})
	}
	return conversation, nil
}

// OnChange registers fn to run after every transcript or state change,
// including typewriter ticks. fn runs on the goroutine that made the
// change and must not block. The returned function unregisters it.
func (conversation *Conversation) OnChange(fn func()) (unregister func()) {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	id := conversation.nextID
	conversation.nextID++
	conversation.listeners[id] = fn
	return func() {
		conversation.mu.Lock()
		defer conversation.mu.Unlock()
		delete(conversation.listeners, id)
	}
}

// Snapshot returns a copy of the transcript.
func (conversation *Conversation) Snapshot() []Message {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	return conversation.assembler.Transcript().Snapshot()
}

// Phase returns the state of the current turn.
func (conversation *Conversation) Phase() Phase {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	return conversation.assembler.Phase()
}

// Status returns the connection indicator.
func (conversation *Conversation) Status() Status {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	return conversation.assembler.Status()
}

// SessionID returns the backend session id, or "" before the backend
// has assigned one.
func (conversation *Conversation) SessionID() string {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	return conversation.assembler.SessionID()
}

// Send uploads attachments, appends the user's message, and starts
// streaming the reply in the background. A turn still in flight is
// cancelled first. Send returns once the turn has started; transport
// failures after that point appear in the transcript, not as an error.
// Use Wait to block until the reply finishes.
func (conversation *Conversation) Send(ctx context.Context, text string, attachments ...Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}

	conversation.control.Lock()
	defer conversation.control.Unlock()
	if conversation.isClosed() {
		return ErrClosed
	}
	conversation.cancelLocked()

	files, err := conversation.upload(ctx, attachments)
	if err != nil {
		return err
	}
	fileIDs := make([]string, 0, len(files))
	for _, file := range files {
		fileIDs = append(fileIDs, file.ID)
	}

	conversation.mu.Lock()
	effects := conversation.assembler.BeginTurn(text, files)
	request := chatstream.Request{
		Content:   text,
		SessionID: conversation.assembler.SessionID(),
		FileIDs:   fileIDs,
	}
	turnCtx, cancel := context.WithCancel(conversation.ctx)
	current := &turn{cancel: cancel, done: make(chan struct{})}
	conversation.active = current
	conversation.mu.Unlock()

	conversation.perform(effects)
	conversation.logger.Info("turn started",
		"session_id", request.SessionID, "files", len(fileIDs))
	go conversation.consume(turnCtx, current, request)
	return nil
}

func (conversation *Conversation) upload(ctx context.Context, attachments []Attachment) ([]FileRef, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	if conversation.files == nil {
		return nil, fmt.Errorf("chat: attachments need a file store")
	}
	files := make([]FileRef, 0, len(attachments))
	for _, attachment := range attachments {
		uploaded, err := conversation.files.UploadFile(ctx, attachment.Name, attachment.Content)
		if err != nil {
			return nil, fmt.Errorf("chat: uploading %s: %w", attachment.Name, err)
		}
		files = append(files, FileRef{
			ID:          uploaded.ID,
			Name:        uploaded.Filename,
			URL:         uploaded.URL,
			ContentType: uploaded.ContentType,
		})
	}
	return files, nil
}

// consume is the single consumer of one turn's stream.
func (conversation *Conversation) consume(ctx context.Context, current *turn, request chatstream.Request) {
	defer close(current.done)

	stream, err := conversation.streams.Open(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		conversation.logger.Warn("turn failed to open", "error", err)
		conversation.apply(func(assembler *Assembler) Effects { return assembler.Fail(err) })
		return
	}
	defer stream.Cancel()

	for response := range stream.Events() {
		if ctx.Err() != nil {
			return
		}
		conversation.apply(func(assembler *Assembler) Effects { return assembler.Apply(response) })
	}
	if ctx.Err() != nil || stream.Cancelled() {
		return
	}
	if err := stream.Err(); err != nil {
		conversation.logger.Warn("turn ended early", "error", err)
		conversation.apply(func(assembler *Assembler) Effects { return assembler.Fail(err) })
	}
}

// apply runs one assembler step under mu, then performs its effects
// outside it.
func (conversation *Conversation) apply(step func(*Assembler) Effects) {
	conversation.mu.Lock()
	effects := step(conversation.assembler)
	conversation.mu.Unlock()
	conversation.perform(effects)
}

// perform carries out assembler effects. Called without mu held.
func (conversation *Conversation) perform(effects Effects) {
	if conversation.presenter != nil {
		if effects.StartTypewriter != "" {
			conversation.presenter.Start(effects.StartTypewriter)
		}
		if effects.CompleteTypewriter {
			conversation.presenter.Complete()
		}
	}
	if effects.ObservedSession != "" {
		conversation.logger.Info("session assigned", "session_id", effects.ObservedSession)
		if conversation.observer != nil {
			conversation.observer(effects.ObservedSession)
		}
	}
	if effects.Notify != "" && conversation.bus != nil {
		event := notify.Event{Kind: effects.Notify, SessionID: effects.SessionID, At: time.Now()}
		if err := conversation.bus.Publish(conversation.ctx, event); err != nil {
			conversation.logger.Warn("publishing session notification failed",
				"kind", string(effects.Notify), "error", err)
		}
	}
	if effects.Changed {
		conversation.notifyListeners()
	}
}

func (conversation *Conversation) notifyListeners() {
	conversation.mu.Lock()
	listeners := make([]func(), 0, len(conversation.listeners))
	for _, listener := range conversation.listeners {
		listeners = append(listeners, listener)
	}
	conversation.mu.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

// Cancel stops the in-flight turn, keeping whatever text arrived, and
// appends a cancellation notice. When Cancel returns no further
// response from that turn will be applied. No-op without a turn in
// flight.
func (conversation *Conversation) Cancel() {
	conversation.control.Lock()
	defer conversation.control.Unlock()
	conversation.cancelLocked()
}

// cancelLocked requires control to be held.
func (conversation *Conversation) cancelLocked() {
	conversation.mu.Lock()
	current := conversation.active
	conversation.active = nil
	conversation.mu.Unlock()
	if current == nil {
		return
	}

	current.cancel()
	<-current.done
	conversation.apply(func(assembler *Assembler) Effects { return assembler.Cancel() })
}

// Wait blocks until the in-flight turn, if any, has finished.
func (conversation *Conversation) Wait(ctx context.Context) error {
	conversation.mu.Lock()
	current := conversation.active
	conversation.mu.Unlock()
	if current == nil {
		return nil
	}
	select {
	case <-current.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadSession cancels any in-flight turn and replaces the transcript
// with the stored history of session id.
func (conversation *Conversation) LoadSession(ctx context.Context, id string) error {
	if conversation.sessions == nil {
		return fmt.Errorf("chat: loading history needs a session store")
	}
	conversation.control.Lock()
	defer conversation.control.Unlock()
	if conversation.isClosed() {
		return ErrClosed
	}
	conversation.cancelLocked()

	detail, err := conversation.sessions.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("chat: loading session %s: %w", id, err)
	}
	conversation.apply(func(assembler *Assembler) Effects { return assembler.LoadHistory(detail) })
	conversation.logger.Info("session loaded", "session_id", id, "messages", len(detail.Messages))
	return nil
}

// Reset cancels any in-flight turn and starts a new, unnamed
// conversation.
func (conversation *Conversation) Reset() {
	conversation.control.Lock()
	defer conversation.control.Unlock()
	conversation.cancelLocked()
	if conversation.presenter != nil {
		conversation.presenter.Stop()
	}
	conversation.apply(func(assembler *Assembler) Effects { return assembler.Reset() })
}

// Close cancels any in-flight turn and stops the typewriter. No
// goroutine started by the conversation outlives Close.
func (conversation *Conversation) Close() {
	conversation.control.Lock()
	defer conversation.control.Unlock()
	if conversation.isClosed() {
		return
	}
	conversation.cancelLocked()
	if conversation.presenter != nil {
		conversation.presenter.Stop()
	}
	conversation.mu.Lock()
	conversation.closed = true
	conversation.mu.Unlock()
	conversation.cancel()
}

func (conversation *Conversation) isClosed() bool {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	return conversation.closed
}

// transcriptTarget exposes the transcript to the typewriter.
type transcriptTarget struct {
	conversation *Conversation
}

func (target transcriptTarget) Content(id string) (string, bool, bool) {
	target.conversation.mu.Lock()
	defer target.conversation.mu.Unlock()
	message := target.conversation.assembler.Transcript().Get(id)
	if message == nil {
		return "", false, false
	}
	return message.Content, message.IsComplete, true
}

// SetDisplayed ignores finished messages: completion already showed
// everything, and a late tick must not shorten it.
func (target transcriptTarget) SetDisplayed(id, displayed string) {
	target.conversation.mu.Lock()
	defer target.conversation.mu.Unlock()
	message := target.conversation.assembler.Transcript().Get(id)
	if message == nil || message.IsComplete {
		return
	}
	message.DisplayedContent = displayed
}

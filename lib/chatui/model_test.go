// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chat"
	"github.com/bureau-foundation/agentchat/lib/notify"
	"github.com/bureau-foundation/agentchat/lib/testutil"
)

// fakeConversation records calls and serves a fixed transcript.
type fakeConversation struct {
	mu        sync.Mutex
	messages  []chat.Message
	phase     chat.Phase
	sessionID string
	sent      []string
	loaded    []string
	cancels   int
	resets    int
	sendErr   error
	listener  func()
}

func (c *fakeConversation) Snapshot() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

func (c *fakeConversation) Phase() chat.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *fakeConversation) Status() chat.Status { return chat.StatusIdle }

func (c *fakeConversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *fakeConversation) Send(_ context.Context, text string, _ ...chat.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return c.sendErr
}

func (c *fakeConversation) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels++
}

func (c *fakeConversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.messages = nil
}

func (c *fakeConversation) LoadSession(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "missing" {
		return backend.ErrNotFound
	}
	c.loaded = append(c.loaded, id)
	c.sessionID = id
	return nil
}

func (c *fakeConversation) OnChange(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listener = nil
	}
}

// publish replaces the transcript and fires the change listener.
func (c *fakeConversation) publish(messages ...chat.Message) {
	c.mu.Lock()
	c.messages = messages
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener()
	}
}

type fakeLister struct {
	sessions []backend.Session
	err      error
}

func (lister fakeLister) ListSessions(context.Context) ([]backend.Session, error) {
	return lister.sessions, lister.err
}

func newTestModel(t *testing.T, options Options) Model {
	t.Helper()
	model, err := NewModel(context.Background(), options)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	t.Cleanup(model.Close)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return updated.(Model)
}

func update(t *testing.T, model Model, message tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, command := model.Update(message)
	return updated.(Model), command
}

func typeText(t *testing.T, model Model, text string) Model {
	t.Helper()
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return model
}

func TestNewModelRequiresConversation(t *testing.T) {
	t.Parallel()

	if _, err := NewModel(context.Background(), Options{}); err == nil {
		t.Error("expected error without a conversation")
	}
}

func TestModelSendsComposerText(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})

	model = typeText(t, model, "  hello agent ")
	model, command := update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if command == nil {
		t.Fatal("expected a send command")
	}
	if model.input.Value() != "" {
		t.Errorf("composer not cleared: %q", model.input.Value())
	}

	result := command()
	if _, ok := result.(sendResultMsg); !ok {
		t.Fatalf("command returned %T, want sendResultMsg", result)
	}
	if len(conversation.sent) != 1 || conversation.sent[0] != "hello agent" {
		t.Errorf("sent = %q", conversation.sent)
	}
}

func TestModelIgnoresBlankSend(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})
	model = typeText(t, model, "   ")
	if _, command := update(t, model, tea.KeyMsg{Type: tea.KeyEnter}); command != nil {
		t.Error("blank input produced a command")
	}
}

func TestModelShowsSendError(t *testing.T) {
	t.Parallel()

	model := newTestModel(t, Options{Conversation: &fakeConversation{}})
	model, _ = update(t, model, sendResultMsg{err: errors.New("upload failed")})
	if !strings.Contains(ansi.Strip(model.View()), "upload failed") {
		t.Errorf("footer does not show the error:\n%s", ansi.Strip(model.View()))
	}
}

func TestModelRendersConversationChanges(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})
	listen := model.Init()
	if listen == nil {
		t.Fatal("Init returned no command")
	}

	conversation.publish(
		chat.Message{ID: "u", Role: chat.RoleUser, DisplayedContent: "ping", IsComplete: true},
		chat.Message{ID: "a", Role: chat.RoleAssistant, Content: "pong!", DisplayedContent: "po"},
	)

	changes := make(chan tea.Msg, 1)
	go func() { changes <- model.listenForChange()() }()
	message := testutil.RequireReceive(t, changes, 5*time.Second, "waiting for change message")
	if _, ok := message.(changedMsg); !ok {
		t.Fatalf("got %T, want changedMsg", message)
	}

	model, command := update(t, model, message)
	if command == nil {
		t.Error("change handler did not re-arm the listener")
	}
	view := ansi.Strip(model.View())
	if !strings.Contains(view, "ping") || !strings.Contains(view, "po"+streamingCursor) {
		t.Errorf("view missing transcript:\n%s", view)
	}
	if strings.Contains(view, "pong!") {
		t.Error("view shows unrevealed content")
	}
}

func TestModelCancelOnlyWhileInFlight(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if conversation.cancels != 0 {
		t.Error("cancelled an idle conversation")
	}

	conversation.phase = chat.PhaseStreaming
	update(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if conversation.cancels != 1 {
		t.Errorf("cancels = %d, want 1", conversation.cancels)
	}
}

func TestModelNewChatResets(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})
	update(t, model, tea.KeyMsg{Type: tea.KeyCtrlN})
	if conversation.resets != 1 {
		t.Errorf("resets = %d, want 1", conversation.resets)
	}
}

func TestModelQuitCancels(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})
	_, command := update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if command == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}
	if conversation.cancels != 1 {
		t.Errorf("cancels = %d, want 1", conversation.cancels)
	}
}

func TestModelSessionSidebar(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	lister := fakeLister{sessions: []backend.Session{
		{ID: "s1", Title: "First"},
		{ID: "s2", Title: "Second"},
	}}
	model := newTestModel(t, Options{Conversation: conversation, Sessions: lister})

	model, _ = update(t, model, model.loadSessions()())
	if view := ansi.Strip(model.View()); !strings.Contains(view, "First") || !strings.Contains(view, "Second") {
		t.Fatalf("sidebar missing sessions:\n%s", view)
	}

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlJ})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlJ})
	if model.selected != 1 {
		t.Errorf("selected = %d, want clamp at 1", model.selected)
	}

	model, command := update(t, model, tea.KeyMsg{Type: tea.KeyCtrlO})
	if command == nil {
		t.Fatal("expected open command")
	}
	model, _ = update(t, model, command())
	if len(conversation.loaded) != 1 || conversation.loaded[0] != "s2" {
		t.Errorf("loaded = %q", conversation.loaded)
	}
	if !strings.Contains(ansi.Strip(model.View()), "session s2") {
		t.Error("header does not show the loaded session")
	}
}

func TestModelSidebarLoadError(t *testing.T) {
	t.Parallel()

	lister := fakeLister{err: errors.New("backend down")}
	model := newTestModel(t, Options{Conversation: &fakeConversation{}, Sessions: lister})
	model, _ = update(t, model, model.loadSessions()())
	if !strings.Contains(model.notice, "backend down") {
		t.Errorf("notice = %q", model.notice)
	}
}

func TestModelOpenMissingSession(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{}
	model := newTestModel(t, Options{Conversation: conversation})
	model, _ = update(t, model, model.openSession("missing")())
	if model.notice == "" {
		t.Error("expected a notice for a missing session")
	}
}

func TestModelReloadsSessionsOnNotification(t *testing.T) {
	t.Parallel()

	bus := notify.NewMemory()
	lister := fakeLister{sessions: []backend.Session{{ID: "s9", Title: "From elsewhere"}}}
	model := newTestModel(t, Options{Conversation: &fakeConversation{}, Sessions: lister, Bus: bus})

	received := make(chan tea.Msg, 1)
	go func() { received <- model.listenForNotification()() }()

	event := notify.Event{Kind: notify.KindSessionCreated, SessionID: "s9"}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	message := testutil.RequireReceive(t, received, 5*time.Second, "waiting for notification")
	notification, ok := message.(notificationMsg)
	if !ok || notification.event.SessionID != "s9" {
		t.Fatalf("got %#v", message)
	}

	_, command := update(t, model, notification)
	if command == nil {
		t.Fatal("notification produced no reload")
	}
}

// awaitSessionsLoaded runs command, expanding batches, until one of
// its commands reports loaded sessions.
func awaitSessionsLoaded(t *testing.T, command tea.Cmd) sessionsLoadedMsg {
	t.Helper()
	messages := make(chan tea.Msg, 8)
	var run func(tea.Cmd)
	run = func(command tea.Cmd) {
		go func() {
			message := command()
			if batch, ok := message.(tea.BatchMsg); ok {
				for _, inner := range batch {
					if inner != nil {
						run(inner)
					}
				}
				return
			}
			messages <- message
		}()
	}
	run(command)
	for {
		message := testutil.RequireReceive(t, messages, 5*time.Second, "waiting for a sessions reload")
		if loaded, ok := message.(sessionsLoadedMsg); ok {
			return loaded
		}
	}
}

func TestModelReloadsSessionsAfterLocalTurnWithoutBus(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{phase: chat.PhaseStreaming}
	lister := fakeLister{sessions: []backend.Session{{ID: "s1", Title: "Just created"}}}
	model := newTestModel(t, Options{Conversation: conversation, Sessions: lister})

	model, command := update(t, model, sendResultMsg{})
	if command != nil {
		t.Error("reloaded while the turn was still in flight")
	}
	if !model.turnPending {
		t.Fatal("successful send did not mark a pending turn")
	}

	conversation.mu.Lock()
	conversation.phase = chat.PhaseCompleted
	conversation.mu.Unlock()

	model, command = update(t, model, changedMsg{})
	if model.turnPending {
		t.Error("turn still pending after it ended")
	}
	loaded := awaitSessionsLoaded(t, command)
	if len(loaded.sessions) != 1 || loaded.sessions[0].ID != "s1" {
		t.Errorf("reloaded sessions = %+v", loaded.sessions)
	}

	// Later changes of a finished turn do not reload again.
	if model.reloadAfterTurn() != nil {
		t.Error("reloaded twice for one turn")
	}
}

func TestModelTurnEndingBeforeSendResultReloads(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{phase: chat.PhaseCompleted}
	lister := fakeLister{sessions: []backend.Session{{ID: "s2"}}}
	model := newTestModel(t, Options{Conversation: conversation, Sessions: lister})

	_, command := update(t, model, sendResultMsg{})
	if command == nil {
		t.Fatal("a turn that already ended produced no reload")
	}
	if loaded := awaitSessionsLoaded(t, command); len(loaded.sessions) != 1 {
		t.Errorf("reloaded sessions = %+v", loaded.sessions)
	}
}

func TestModelWithBusLeavesReloadToNotifications(t *testing.T) {
	t.Parallel()

	conversation := &fakeConversation{phase: chat.PhaseCompleted}
	model := newTestModel(t, Options{Conversation: conversation, Sessions: fakeLister{}, Bus: notify.NewMemory()})

	model, command := update(t, model, sendResultMsg{})
	if command != nil || model.turnPending {
		t.Error("model with a bus reloaded after a local turn")
	}
}

func TestModelHidesSidebarOnNarrowScreens(t *testing.T) {
	t.Parallel()

	lister := fakeLister{}
	model := newTestModel(t, Options{Conversation: &fakeConversation{}, Sessions: lister})
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 50, Height: 10})
	if model.sidebarWidth != 0 {
		t.Errorf("sidebarWidth = %d on a narrow screen", model.sidebarWidth)
	}
	for _, line := range strings.Split(model.View(), "\n") {
		if ansi.StringWidth(line) > 50 {
			t.Errorf("line wider than screen: %q", ansi.Strip(line))
		}
	}
}

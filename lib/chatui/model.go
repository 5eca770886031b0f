// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/agentchat/lib/backend"
	"github.com/bureau-foundation/agentchat/lib/chat"
	"github.com/bureau-foundation/agentchat/lib/notify"
)

// Layout constants.
const (
	sidebarMaxWidth  = 28
	sidebarMinScreen = 72 // narrower screens hide the sidebar
	chromeRows       = 4  // header, divider, composer, help
	inputCharLimit   = 8000
)

// Conversation is the part of *chat.Conversation the UI drives.
type Conversation interface {
	Snapshot() []chat.Message
	Phase() chat.Phase
	Status() chat.Status
	SessionID() string
	Send(ctx context.Context, text string, attachments ...chat.Attachment) error
	Cancel()
	Reset()
	LoadSession(ctx context.Context, id string) error
	OnChange(fn func()) (unregister func())
}

// SessionLister lists stored sessions. *backend.Client implements it.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]backend.Session, error)
}

// Options configures a Model. Conversation is required.
type Options struct {
	Conversation Conversation

	// Sessions feeds the sidebar. Nil hides it.
	Sessions SessionLister

	// Bus triggers sidebar reloads. Without one the sidebar reloads
	// when a turn sent from this model ends.
	Bus notify.Bus

	// Theme defaults to DefaultTheme.
	Theme *Theme
	// Keys defaults to DefaultKeyMap.
	Keys *KeyMap
}

// Messages delivered through the bubbletea loop.
type (
	// changedMsg means the conversation transcript or phase changed.
	changedMsg struct{}

	sendResultMsg struct{ err error }

	loadResultMsg struct {
		id  string
		err error
	}

	sessionsLoadedMsg struct {
		sessions []backend.Session
		err      error
	}

	notificationMsg struct{ event notify.Event }
)

// Model is the bubbletea model for the chat UI.
type Model struct {
	conversation Conversation
	sessions     SessionLister
	theme        Theme
	keys         KeyMap

	ctx          context.Context
	cancel       context.CancelFunc
	changes      chan struct{}
	unregister   func()
	subscription *notify.Subscription

	viewport viewport.Model
	input    textinput.Model

	width, height int
	sidebarWidth  int
	ready         bool

	// followTail keeps the transcript pinned to the newest line until
	// the user scrolls away.
	followTail bool

	sessionList []backend.Session
	selected    int

	// turnPending is set after a successful send while no bus is
	// attached, until the turn is seen to end.
	turnPending bool

	// notice is the most recent operation error, shown in the footer.
	notice string
}

// NewModel creates a model bound to options.Conversation. Call Close
// when the program exits.
func NewModel(ctx context.Context, options Options) (Model, error) {
	if options.Conversation == nil {
		return Model{}, errors.New("chatui: Options.Conversation is required")
	}
	theme := DefaultTheme
	if options.Theme != nil {
		theme = *options.Theme
	}
	keys := DefaultKeyMap
	if options.Keys != nil {
		keys = *options.Keys
	}

	modelContext, cancel := context.WithCancel(ctx)
	model := Model{
		conversation: options.Conversation,
		sessions:     options.Sessions,
		theme:        theme,
		keys:         keys,
		ctx:          modelContext,
		cancel:       cancel,
		changes:      make(chan struct{}, 1),
		viewport:     viewport.New(0, 0),
		followTail:   true,
	}

	if options.Bus != nil {
		subscription, err := options.Bus.Subscribe(modelContext)
		if err != nil {
			cancel()
			return Model{}, fmt.Errorf("chatui: subscribing to session notifications: %w", err)
		}
		model.subscription = subscription
	}

	// Coalesce: a pending signal already covers any later change.
	changes := model.changes
	model.unregister = options.Conversation.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	input := textinput.New()
	input.Placeholder = "Message the agent"
	input.Prompt = "› "
	input.CharLimit = inputCharLimit
	input.PromptStyle = ansiRenderer().NewStyle().Foreground(theme.UserLabel)
	input.Focus()
	model.input = input

	return model, nil
}

// Close detaches the model from the conversation and the bus.
func (model Model) Close() {
	model.unregister()
	if model.subscription != nil {
		model.subscription.Close()
	}
	model.cancel()
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	commands := []tea.Cmd{textinput.Blink, model.listenForChange()}
	if model.subscription != nil {
		commands = append(commands, model.listenForNotification())
	}
	if model.sessions != nil {
		commands = append(commands, model.loadSessions())
	}
	return tea.Batch(commands...)
}

func (model Model) listenForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-model.changes:
			return changedMsg{}
		case <-model.ctx.Done():
			return nil
		}
	}
}

func (model Model) listenForNotification() tea.Cmd {
	events := model.subscription.Events()
	return func() tea.Msg {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			return notificationMsg{event: event}
		case <-model.ctx.Done():
			return nil
		}
	}
}

func (model Model) loadSessions() tea.Cmd {
	if model.sessions == nil {
		return nil
	}
	sessions := model.sessions
	ctx := model.ctx
	return func() tea.Msg {
		list, err := sessions.ListSessions(ctx)
		return sessionsLoadedMsg{sessions: list, err: err}
	}
}

// reloadAfterTurn reloads the sidebar once a pending local turn has
// ended. Models with a bus reload on its notifications instead.
func (model *Model) reloadAfterTurn() tea.Cmd {
	if !model.turnPending || model.conversation.Phase().InFlight() {
		return nil
	}
	model.turnPending = false
	return model.loadSessions()
}

func (model Model) send(text string) tea.Cmd {
	conversation := model.conversation
	ctx := model.ctx
	return func() tea.Msg {
		return sendResultMsg{err: conversation.Send(ctx, text)}
	}
}

func (model Model) openSession(id string) tea.Cmd {
	conversation := model.conversation
	ctx := model.ctx
	return func() tea.Msg {
		return loadResultMsg{id: id, err: conversation.LoadSession(ctx, id)}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.resize(message.Width, message.Height)
		return model, nil

	case tea.KeyMsg:
		if handled, command := model.handleKey(message); handled {
			return model, command
		}

	case changedMsg:
		model.refreshTranscript()
		return model, tea.Batch(model.listenForChange(), model.reloadAfterTurn())

	case sendResultMsg:
		if message.err != nil {
			model.notice = message.err.Error()
			return model, nil
		}
		model.turnPending = model.subscription == nil && model.sessions != nil
		return model, model.reloadAfterTurn()

	case loadResultMsg:
		if message.err != nil {
			model.notice = chat.DescribeFailure(message.err)
		} else {
			model.notice = ""
			model.followTail = true
			model.refreshTranscript()
		}
		return model, nil

	case sessionsLoadedMsg:
		if message.err != nil {
			model.notice = "Could not load sessions: " + chat.DescribeFailure(message.err)
			return model, nil
		}
		model.sessionList = message.sessions
		model.selected = min(model.selected, max(len(model.sessionList)-1, 0))
		return model, nil

	case notificationMsg:
		return model, tea.Batch(model.loadSessions(), model.listenForNotification())
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model *Model) handleKey(message tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.conversation.Cancel()
		return true, tea.Quit

	case key.Matches(message, model.keys.Send):
		text := strings.TrimSpace(model.input.Value())
		if text == "" {
			return true, nil
		}
		model.input.Reset()
		model.notice = ""
		model.followTail = true
		return true, model.send(text)

	case key.Matches(message, model.keys.Cancel):
		if model.conversation.Phase().InFlight() {
			model.conversation.Cancel()
		}
		return true, nil

	case key.Matches(message, model.keys.NewChat):
		model.conversation.Reset()
		model.notice = ""
		model.followTail = true
		model.refreshTranscript()
		return true, nil

	case key.Matches(message, model.keys.PreviousSession):
		model.selected = max(model.selected-1, 0)
		return true, nil

	case key.Matches(message, model.keys.NextSession):
		model.selected = min(model.selected+1, max(len(model.sessionList)-1, 0))
		return true, nil

	case key.Matches(message, model.keys.OpenSession):
		if model.selected >= len(model.sessionList) {
			return true, nil
		}
		return true, model.openSession(model.sessionList[model.selected].ID)

	case key.Matches(message, model.keys.ScrollUp):
		model.viewport.LineUp(1)
	case key.Matches(message, model.keys.ScrollDown):
		model.viewport.LineDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.viewport.ViewUp()
	case key.Matches(message, model.keys.PageDown):
		model.viewport.ViewDown()

	default:
		return false, nil
	}
	model.followTail = model.viewport.AtBottom()
	return true, nil
}

func (model *Model) resize(width, height int) {
	model.width = width
	model.height = height
	model.ready = true

	model.sidebarWidth = 0
	if model.sessions != nil && width >= sidebarMinScreen {
		model.sidebarWidth = min(sidebarMaxWidth, width/4)
	}

	// One column each for the sidebar divider and the scrollbar.
	transcriptWidth := width - 1
	if model.sidebarWidth > 0 {
		transcriptWidth -= model.sidebarWidth + 1
	}
	model.viewport.Width = max(transcriptWidth, 1)
	model.viewport.Height = max(height-chromeRows, 1)
	model.input.Width = max(width-ansi.StringWidth(model.input.Prompt)-1, 1)
	model.refreshTranscript()
}

func (model *Model) refreshTranscript() {
	if !model.ready {
		return
	}
	content := RenderTranscript(model.conversation.Snapshot(), model.theme, model.viewport.Width)
	model.viewport.SetContent(content)
	if model.followTail {
		model.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return ""
	}
	styles := ansiRenderer()
	border := styles.NewStyle().Foreground(model.theme.BorderColor)

	scrollbar := renderScrollbar(model.theme, model.viewport.Height,
		model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset)
	panes := []string{model.viewport.View(), scrollbar}
	if model.sidebarWidth > 0 {
		sidebar := renderSidebar(model.sessionList, model.selected, model.conversation.SessionID(),
			model.theme, model.sidebarWidth, model.viewport.Height)
		divider := border.Render(strings.TrimSuffix(strings.Repeat("│\n", model.viewport.Height), "\n"))
		panes = append([]string{sidebar, divider}, panes...)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	return strings.Join([]string{
		model.header(),
		body,
		border.Render(strings.Repeat("─", model.width)),
		model.input.View(),
		model.footer(),
	}, "\n")
}

func (model Model) header() string {
	styles := ansiRenderer()
	title := styles.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render("agentchat")

	session := "new conversation"
	if id := model.conversation.SessionID(); id != "" {
		session = "session " + id
	}
	status := model.conversation.Status()
	indicator := styles.NewStyle().Foreground(model.theme.StatusColor(status)).Render("● " + string(status))

	left := title + "  " + styles.NewStyle().Foreground(model.theme.FaintText).Render(session)
	gap := max(model.width-ansi.StringWidth(left)-ansi.StringWidth(indicator), 1)
	return ansi.Truncate(left+strings.Repeat(" ", gap)+indicator, model.width, "")
}

func (model Model) footer() string {
	styles := ansiRenderer()
	if model.notice != "" {
		return ansi.Truncate(styles.NewStyle().Foreground(model.theme.ErrorText).Render(model.notice), model.width, "…")
	}
	bindings := model.keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return ansi.Truncate(styles.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(parts, " · ")), model.width, "…")
}

// Run starts the UI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, options Options, programOptions ...tea.ProgramOption) error {
	model, err := NewModel(ctx, options)
	if err != nil {
		return err
	}
	defer model.Close()

	programOptions = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, programOptions...)
	if _, err := tea.NewProgram(model, programOptions...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chatui: %w", err)
	}
	return nil
}

// Package view implements the interactive conversation view: it loads a
// conversation, follows its live feed and posts new messages.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/convo/internal/chat"
)

// Source is the data access the view depends on.
type Source interface {
	// Conversation loads a conversation with its messages.
	Conversation(ctx context.Context, id string) (*chat.Conversation, error)
	// SubscribeMessages opens a live feed of messages created in the
	// conversation. The channel is closed when the feed ends or ctx is done.
	SubscribeMessages(ctx context.Context, conversationID string) (<-chan chat.MessageEvent, error)
	// CreateMessage posts a message and returns its ID.
	CreateMessage(ctx context.Context, conversationID, body string) (string, error)
}

// Status is the lifecycle state of the view.
type Status int

const (
	StatusLoading Status = iota
	StatusError
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// FormState is the state of the composer while the view is ready.
type FormState int

const (
	FormComposing FormState = iota
	FormSubmitting
)

func (f FormState) String() string {
	if f == FormSubmitting {
		return "submitting"
	}
	return "composing"
}

// errConversationMissing is reported when the source returns no conversation and no error.
var errConversationMissing = errors.New("conversation not found")

const composerPlaceholder = "What's on your mind?"

// loadedMsg carries the result of the initial load
type loadedMsg struct {
	conv *chat.Conversation
	err  error
}

// subscribedMsg carries the opened live feed
type subscribedMsg struct {
	events <-chan chat.MessageEvent
	err    error
}

// feedMsg carries one live-feed event, or closed=true when the feed ended
type feedMsg struct {
	event  chat.MessageEvent
	closed bool
}

// submittedMsg carries the result of a message submission
type submittedMsg struct {
	id  string
	err error
}

// Model is the bubbletea model for a single conversation.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	source         Source
	conversationID string
	logger         *slog.Logger
	theme          Theme

	status    Status
	form      FormState
	conv      chat.Conversation
	loadErr   error
	submitErr error
	feedErr   error
	events    <-chan chat.MessageEvent

	composer textarea.Model
	spinner  spinner.Model
	width    int
	height   int
	quitting bool
}

// New creates a view for the conversation. The view owns a context derived
// from ctx; Close (or quitting the program) cancels it, which releases the
// live feed and any request still in flight. Pass nil logger for default.
func New(ctx context.Context, source Source, conversationID string, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	composer := textarea.New()
	composer.Placeholder = composerPlaceholder
	composer.ShowLineNumbers = false
	composer.SetHeight(3)
	composer.SetWidth(60)
	composer.Focus()

	return Model{
		ctx:            ctx,
		cancel:         cancel,
		source:         source,
		conversationID: conversationID,
		logger:         logger.With("component", "view", "conversation_id", conversationID),
		theme:          DefaultTheme,
		status:         StatusLoading,
		form:           FormComposing,
		composer:       composer,
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Close tears the view down. Safe to call more than once.
func (m Model) Close() {
	m.cancel()
}

// Status returns the lifecycle state.
func (m Model) Status() Status { return m.status }

// FormState returns the composer state.
func (m Model) FormState() FormState { return m.form }

// Conversation returns the cached conversation. Valid once Status is StatusReady.
func (m Model) Conversation() chat.Conversation { return m.conv }

// Draft returns the current composer text.
func (m Model) Draft() string { return m.composer.Value() }

// SetDraft replaces the composer text.
func (m *Model) SetDraft(s string) { m.composer.SetValue(s) }

// LoadErr returns the load failure, if any.
func (m Model) LoadErr() error { return m.loadErr }

// SubmitErr returns the failure of the most recent submission, if any.
func (m Model) SubmitErr() error { return m.submitErr }

// Init starts loading the conversation.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		case "enter":
			if m.status == StatusReady {
				return m.submit()
			}
			return m, nil
		}
		if m.status == StatusReady {
			var cmd tea.Cmd
			m.composer, cmd = m.composer.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.composer.SetWidth(max(msg.Width-4, 10))
		return m, nil

	case spinner.TickMsg:
		if m.status != StatusLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		return m.loaded(msg)

	case subscribedMsg:
		if m.torndown() {
			return m, nil
		}
		if msg.err != nil {
			m.feedErr = msg.err
			m.logger.Warn("failed to subscribe to new messages", "error", msg.err)
			return m, nil
		}
		m.events = msg.events
		return m, m.waitForEvent()

	case feedMsg:
		return m.received(msg)

	case submittedMsg:
		return m.submitted(msg)
	}

	if m.status == StatusReady {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	return m, nil
}

// torndown reports whether the view has been closed. Results arriving after
// teardown are dropped.
func (m Model) torndown() bool {
	return m.ctx.Err() != nil
}

func (m Model) loaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if m.torndown() || m.status != StatusLoading {
		return m, nil
	}

	err := msg.err
	if err == nil && msg.conv == nil {
		err = errConversationMissing
	}
	if err != nil {
		m.status = StatusError
		m.loadErr = err
		m.logger.Error("failed to load conversation", "error", err)
		return m, nil
	}

	m.status = StatusReady
	m.conv = msg.conv.Clone()
	m.logger.Info("conversation loaded", "messages", len(m.conv.Messages))

	// The live feed is armed only once the initial load succeeded
	return m, m.subscribe()
}

func (m Model) received(msg feedMsg) (tea.Model, tea.Cmd) {
	if m.torndown() {
		return m, nil
	}
	if msg.closed {
		m.events = nil
		m.logger.Info("live feed ended")
		return m, nil
	}

	ev := msg.event
	switch {
	case ev.Err != nil:
		m.feedErr = ev.Err
		m.logger.Warn("live feed error", "error", ev.Err)
	case ev.Message == nil:
		// Notification without payload
	default:
		next, added := chat.AppendMessage(m.conv, *ev.Message)
		if added {
			m.conv = next
		} else {
			m.logger.Debug("skipped duplicate message", "message_id", ev.Message.ID)
		}
	}
	return m, m.waitForEvent()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.form == FormSubmitting {
		return m, nil
	}
	m.form = FormSubmitting
	m.submitErr = nil
	return m, m.write(m.composer.Value())
}

func (m Model) submitted(msg submittedMsg) (tea.Model, tea.Cmd) {
	if m.torndown() {
		return m, nil
	}
	m.form = FormComposing
	if msg.err != nil {
		m.submitErr = msg.err
		m.logger.Error("failed to send message", "error", msg.err)
		return m, nil
	}
	m.composer.Reset()
	m.logger.Debug("message sent", "message_id", msg.id)
	return m, nil
}

// load fetches the conversation.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m Model) load() tea.Cmd {
	ctx, source, id := m.ctx, m.source, m.conversationID
	return func() tea.Msg {
		conv, err := source.Conversation(ctx, id)
		return loadedMsg{conv: conv, err: err}
	}
}

// subscribe opens the live feed.
func (m Model) subscribe() tea.Cmd {
	ctx, source, id := m.ctx, m.source, m.conversationID
	return func() tea.Msg {
		events, err := source.SubscribeMessages(ctx, id)
		return subscribedMsg{events: events, err: err}
	}
}

// waitForEvent blocks on the feed for the next event.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return feedMsg{closed: true}
		}
		return feedMsg{event: ev}
	}
}

// write posts body to the conversation.
func (m Model) write(body string) tea.Cmd {
	ctx, source, id := m.ctx, m.source, m.conversationID
	return func() tea.Msg {
		msgID, err := source.CreateMessage(ctx, id, body)
		return submittedMsg{id: msgID, err: err}
	}
}

// View renders the conversation.
func (m Model) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m Model) renderContent() string {
	switch m.status {
	case StatusLoading:
		return m.spinner.View() + " Loading conversation...\n"
	case StatusError:
		return m.theme.errorStyle().Render("Error: "+m.loadErr.Error()) + "\n" +
			m.theme.hintStyle().Render("Press esc to quit") + "\n"
	}

	var b strings.Builder
	header := m.theme.RenderHeader(m.conv.Title, m.width)
	footer := m.renderFooter()
	composer := m.theme.cardStyle().Render(m.composer.View())

	maxLines := 0
	if m.height > 0 {
		used := strings.Count(header, "\n") + strings.Count(composer, "\n") + strings.Count(footer, "\n") + 4
		maxLines = max(m.height-used, 1)
	}

	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.theme.RenderThread(m.conv.Messages, m.width, maxLines))
	b.WriteString("\n")
	b.WriteString(composer)
	b.WriteString("\n")
	b.WriteString(footer)
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderFooter() string {
	switch {
	case m.form == FormSubmitting:
		return m.theme.hintStyle().Render("Sending...")
	case m.submitErr != nil:
		return m.theme.errorStyle().Render("Not sent: " + m.submitErr.Error())
	case m.feedErr != nil:
		return m.theme.hintStyle().Render("Live updates unavailable · enter to send · esc to quit")
	default:
		return m.theme.hintStyle().Render("enter to send · esc to quit")
	}
}

// Run runs the interactive view until the user quits.
func Run(ctx context.Context, source Source, conversationID string, logger *slog.Logger) error {
	model := New(ctx, source, conversationID, logger)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("conversation UI error: %w", err)
	}
	return nil
}

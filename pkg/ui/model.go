// Package ui is the terminal chat client: a Bubble Tea model that owns the
// conversation state and drives sends, history loads and reply reveals.
package ui

import (
	"context"
	"io"
	"log/slog"
	"time"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/embed"
	"cci_chat/pkg/ui/components/composer"
	"cci_chat/pkg/ui/components/header"
	"cci_chat/pkg/ui/components/messages"
	"cci_chat/pkg/ui/components/utils"
	"cci_chat/pkg/ui/styles"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

const footerLabel = "Enter send | Shift+Enter newline | Ctrl+Y copy reply | PgUp/PgDn scroll | Esc quit"

// Bridge is the embedding host channel.
type Bridge interface {
	Events() <-chan embed.Event
	Post(msgType string)
}

// Options configure a Model.
type Options struct {
	AssistantName  string
	Welcome        string
	RevealInterval time.Duration
	// Bridge is optional.
	Bridge Bridge
	// MarkdownStyle is a glamour standard style name; empty means auto.
	MarkdownStyle string
	// Clipboard receives OSC52 sequences; defaults to stdout.
	Clipboard io.Writer
}

// startMsg kicks off chat id acquisition or history loading.
type startMsg struct{}

// Model is the session controller for one chat.
type Model struct {
	ctx  context.Context
	svc  *chat.Service
	conv *chat.Conversation

	layout   *LayoutManager
	header   *header.Header
	messages *messages.Model
	composer *composer.Model
	bridge   Bridge

	revealInterval time.Duration
	reveal         *chat.Reveal
	revealGen      int
	noticeSeq      int

	ready    bool
	quitting bool
	closed   bool
}

// NewModel creates the chat model. ctx bounds every backend call it issues.
func NewModel(ctx context.Context, svc *chat.Service, opts Options) Model {
	if opts.Welcome == "" {
		opts.Welcome = "Welcome!"
	}
	if opts.RevealInterval <= 0 {
		opts.RevealInterval = chat.DefaultRevealInterval
	}

	msgs := messages.New(opts.AssistantName)
	if opts.MarkdownStyle != "" {
		msgs.SetMarkdownStyle(opts.MarkdownStyle)
	}
	if opts.Clipboard != nil {
		msgs.SetClipboard(opts.Clipboard)
	}

	m := Model{
		ctx:            ctx,
		svc:            svc,
		conv:           chat.NewConversation(opts.Welcome),
		layout:         NewLayoutManager(),
		header:         header.New(opts.AssistantName),
		messages:       msgs,
		composer:       composer.New(),
		bridge:         opts.Bridge,
		revealInterval: opts.RevealInterval,
	}
	m.sync()
	return m
}

// Closed reports whether the session end was acknowledged through the
// explicit close handshake. main skips the exit beacon in that case.
func (m Model) Closed() bool {
	return m.closed
}

// Init starts the spinner, the cursor and the session.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.messages.Init(),
		m.composer.Focus(),
		func() tea.Msg { return startMsg{} },
	}
	if m.bridge != nil {
		cmds = append(cmds, listenBridgeCmd(m.bridge.Events()))
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.SetSize(msg.Width, msg.Height)
		m.ready = true

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.PasteMsg:
		if !m.conv.IsClosing() {
			cmd = m.composer.Update(msg)
			m.conv.Draft = m.composer.Value()
		}

	case tea.MouseWheelMsg:
		cmd = m.messages.Update(msg)

	case startMsg:
		cmd = m.start()

	case chatIDMsg:
		cmd = m.handleChatID(msg)

	case historyMsg:
		m.handleHistory(msg)

	case composer.SubmitMsg:
		cmd = m.submit(msg.Content)

	case sendResultMsg:
		cmd = m.handleSendResult(msg)

	case revealTickMsg:
		cmd = m.handleRevealTick(msg)

	case bridgeEventMsg:
		cmd = m.handleBridgeEvent(msg.event)

	case bridgeClosedMsg:
		slog.Debug("embed_bridge_events_closed")

	case closeResultMsg:
		cmd = m.handleCloseResult(msg)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.header.SetNotice("")
		}

	default:
		// spinner ticks and cursor blinks
		cmd = tea.Batch(m.messages.Update(msg), m.composer.Update(msg))
	}

	m.sync()
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelReveal()
		m.quitting = true
		slog.Info("chat_quit", "chat_id", m.svc.ChatID())
		return m, tea.Quit

	case "ctrl+y":
		cmd = m.copyLastReply()

	case "pgup", "pgdown", "ctrl+up", "ctrl+down", "ctrl+end":
		cmd = m.messages.Update(msg)

	default:
		if m.conv.IsClosing() {
			return m, nil
		}
		cmd = m.composer.Update(msg)
		m.conv.Draft = m.composer.Value()
	}

	m.sync()
	return m, cmd
}

// start loads history for a restored chat, or acquires a chat id first.
func (m *Model) start() tea.Cmd {
	if m.svc.ChatID() != "" {
		return m.beginHistoryLoad()
	}
	return ensureChatIDCmd(m.ctx, m.svc)
}

func (m *Model) handleChatID(msg chatIDMsg) tea.Cmd {
	if msg.err != nil {
		// A send in flight reports its own failure.
		if m.conv.IsProcessing() {
			m.conv.SetBanner(chat.InitFailedText)
			return nil
		}
		m.conv.AppendError(chat.InitFailedText)
		return nil
	}
	return m.beginHistoryLoad()
}

func (m *Model) beginHistoryLoad() tea.Cmd {
	m.conv.BeginHistoryLoad()
	m.postBridge(embed.TypeLoadingStart)
	return loadHistoryCmd(m.ctx, m.svc)
}

func (m *Model) handleHistory(msg historyMsg) {
	m.postBridge(embed.TypeLoadingEnd)

	if msg.err != nil {
		m.conv.EndHistoryLoad()
		if m.conv.IsProcessing() {
			m.conv.SetBanner(chat.HistoryFailedText)
			return
		}
		m.conv.AppendError(chat.HistoryFailedText)
		return
	}
	if !m.conv.ApplyHistory(msg.messages) {
		slog.Debug("history_discarded_during_send", "message_count", len(msg.messages))
	}
}

func (m *Model) submit(content string) tea.Cmd {
	if _, ok := m.conv.AppendVisitor(content); !ok {
		return nil
	}
	m.composer.SetValue("")
	return sendCmd(m.ctx, m.svc, content)
}

func (m *Model) handleSendResult(msg sendResultMsg) tea.Cmd {
	if m.quitting {
		return nil
	}
	if msg.err != nil {
		text := chat.SendFailedText
		if msg.result.ChatID == "" {
			text = chat.InitFailedText
		}
		m.conv.AppendError(text)
		return nil
	}
	return m.startReveal(msg.result.Reply)
}

func (m *Model) startReveal(reply string) tea.Cmd {
	m.revealGen++
	id := chat.NewID("stream")
	m.reveal = chat.NewReveal(id, reply)
	m.conv.StartStreaming(id)

	if m.reveal.Done() {
		m.conv.FinishStreaming(reply)
		m.reveal = nil
		return nil
	}
	return revealTickCmd(m.revealInterval, m.revealGen)
}

func (m *Model) handleRevealTick(msg revealTickMsg) tea.Cmd {
	// Ticks from a canceled or finished reveal are stale.
	if m.reveal == nil || msg.gen != m.revealGen {
		return nil
	}
	prefix, done := m.reveal.Next()
	if done {
		m.conv.FinishStreaming(m.reveal.Full())
		m.reveal = nil
		return nil
	}
	m.conv.SetStreamingContent(prefix)
	return revealTickCmd(m.revealInterval, m.revealGen)
}

func (m *Model) cancelReveal() {
	if m.reveal == nil {
		return
	}
	m.reveal.Cancel()
	m.reveal = nil
	m.revealGen++
	m.conv.CancelStreaming()
}

func (m *Model) handleBridgeEvent(ev embed.Event) tea.Cmd {
	next := listenBridgeCmd(m.bridge.Events())
	if ev.Type != embed.TypeClose || m.conv.IsClosing() || m.closed {
		return next
	}
	slog.Info("chat_close_requested", "origin", ev.Origin, "chat_id", m.svc.ChatID())
	m.conv.BeginClose()
	return tea.Batch(next, reportEndCmd(m.ctx, m.svc))
}

func (m *Model) handleCloseResult(msg closeResultMsg) tea.Cmd {
	if msg.err != nil {
		m.conv.EndClose(chat.CloseFailedText)
		return nil
	}
	m.conv.EndClose("")
	m.closed = true
	m.quitting = true
	m.cancelReveal()
	return tea.Quit
}

func (m *Model) copyLastReply() tea.Cmd {
	reply, ok := m.conv.LastAgentReply()
	if !ok {
		return nil
	}
	m.noticeSeq++
	m.header.SetNotice("Copied last reply")
	return tea.Batch(m.messages.CopyCmd(reply), clearNoticeCmd(m.noticeSeq))
}

func (m *Model) postBridge(msgType string) {
	if m.bridge != nil {
		m.bridge.Post(msgType)
	}
}

// sync pushes conversation state into the components and recomputes the
// layout.
func (m *Model) sync() {
	width, _ := m.layout.GetDimensions()

	status := header.StatusOnline
	switch {
	case m.conv.IsClosing():
		status = header.StatusClosing
	case m.conv.ShowLoading():
		status = header.StatusLoading
	case m.conv.IsProcessing():
		status = header.StatusTyping
	}
	m.header.SetStatus(status)
	m.header.SetBanner(m.conv.LastError())
	m.header.SetWidth(width)

	m.composer.SetLoading(m.conv.IsProcessing() || m.conv.IsClosing())
	m.composer.SetWidth(width)

	m.messages.SetSize(width, m.layout.MessagesHeight(m.header.Height(), m.composer.Height()))
	m.messages.SetConversation(m.conv.Display(), m.conv.ShowTyping(), m.conv.ShowLoading())
}

// View renders the UI
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	return v
}

func (m Model) render() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	width, height := m.layout.GetDimensions()

	// The closing round trip hides the conversation.
	if m.conv.IsClosing() {
		body := lipgloss.Place(width, max(height-m.header.Height(), 1), lipgloss.Center, lipgloss.Center,
			styles.TextMutedStyle.Render("Closing chat..."))
		return lipgloss.JoinVertical(lipgloss.Left, m.header.Render(), body)
	}

	footer := styles.FooterStyle.Render(utils.TruncateToWidth(footerLabel, width))
	return m.layout.RenderLayout(
		m.header.Render(),
		m.messages.View(),
		m.composer.View(),
		footer,
	)
}

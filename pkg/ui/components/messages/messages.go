// Package messages renders the conversation: mirrored visitor and agent
// turns, markdown blocks, the typing indicator and the history-loading state.
package messages

import (
	"fmt"
	"io"
	"os"
	"strings"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/ui/components/utils"
	"cci_chat/pkg/ui/styles"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/glamour"
)

const (
	visitorLabel = "You"
	// bubbles take at most this share of the width, like the 80% max-width
	// of a chat bubble
	bubbleWidthPercent = 80
	minBubbleWidth     = 12
	blockSeparator     = "─ ─ ─"
)

type cachedTurn struct {
	content string
	width   int
	out     string
}

// Model is the scrollable message list.
type Model struct {
	viewport viewport.Model
	spinner  spinner.Model

	agentLabel    string
	markdownStyle string
	renderers     map[int]*glamour.TermRenderer
	cache         map[string]cachedTurn

	width  int
	height int

	messages []chat.Message
	typing   bool
	loading  bool
	follow   bool

	clipboard io.Writer
}

// New creates a message list whose agent turns are labelled agentLabel.
func New(agentLabel string) *Model {
	return &Model{
		viewport:      viewport.New(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.TextMutedStyle)),
		agentLabel:    agentLabel,
		markdownStyle: "auto",
		renderers:     make(map[int]*glamour.TermRenderer),
		follow:        true,
		clipboard:     os.Stdout,
	}
}

// SetMarkdownStyle selects the glamour standard style ("auto", "dark",
// "light", "notty", ...).
func (m *Model) SetMarkdownStyle(style string) {
	m.markdownStyle = style
	m.renderers = make(map[int]*glamour.TermRenderer)
	m.cache = nil
	m.refresh()
}

// SetClipboard replaces the writer OSC52 sequences are written to.
func (m *Model) SetClipboard(w io.Writer) {
	m.clipboard = w
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	if width == m.width && height == m.height {
		return
	}
	m.width = width
	m.height = height
	m.viewport.SetWidth(width)
	m.viewport.SetHeight(height)
	m.refresh()
}

// SetConversation replaces what is shown. display is the permanent list plus
// the streaming slot.
func (m *Model) SetConversation(display []chat.Message, typing, loading bool) {
	m.messages = display
	m.typing = typing
	m.loading = loading
	m.refresh()
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles spinner ticks, scrolling keys and the mouse wheel.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.typing || m.loading {
			m.refresh()
		}
		return cmd

	case tea.KeyPressMsg:
		switch msg.String() {
		case "pgup":
			m.viewport.PageUp()
			m.follow = false
		case "pgdown":
			m.viewport.PageDown()
			m.follow = m.viewport.AtBottom()
		case "ctrl+up":
			m.viewport.ScrollUp(1)
			m.follow = false
		case "ctrl+down":
			m.viewport.ScrollDown(1)
			m.follow = m.viewport.AtBottom()
		case "ctrl+end":
			m.viewport.GotoBottom()
			m.follow = true
		}
		return nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return cmd
	}
	return nil
}

// View renders the list.
func (m *Model) View() string {
	return m.viewport.View()
}

// Following reports whether the list sticks to the newest turn.
func (m *Model) Following() bool {
	return m.follow
}

// CopyCmd writes text to the terminal clipboard via OSC52.
func (m *Model) CopyCmd(text string) tea.Cmd {
	w := m.clipboard
	return func() tea.Msg {
		_, _ = fmt.Fprint(w, osc52.New(text))
		return nil
	}
}

func (m *Model) refresh() {
	if m.width <= 0 {
		return
	}
	if m.loading {
		m.viewport.SetContent(m.renderLoading())
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.Render())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderLoading() string {
	line := m.spinner.View() + " " + styles.TextMutedStyle.Render("Loading conversation...")
	return lipgloss.Place(m.width, max(m.height, 1), lipgloss.Center, lipgloss.Center, line)
}

// Render returns the full list content at the current width. Rendered turns
// are reused while their content and the width are unchanged.
func (m *Model) Render() string {
	parts := make([]string, 0, len(m.messages)+1)
	cache := make(map[string]cachedTurn, len(m.messages))
	for _, msg := range m.messages {
		c, ok := m.cache[msg.ID]
		if !ok || c.content != msg.Content || c.width != m.width {
			c = cachedTurn{content: msg.Content, width: m.width, out: m.RenderTurn(msg)}
		}
		if msg.ID != "" {
			cache[msg.ID] = c
		}
		parts = append(parts, c.out)
	}
	m.cache = cache
	if m.typing {
		parts = append(parts, m.renderTyping())
	}
	return strings.Join(parts, "\n\n")
}

// RenderTurn renders one turn: avatar label above a bubble, right aligned for
// the visitor and left aligned for the agent.
func (m *Model) RenderTurn(msg chat.Message) string {
	bubbleWidth := m.bubbleWidth()
	innerWidth := max(bubbleWidth-4, 1)

	var label, body string
	var bubble lipgloss.Style
	align := lipgloss.Left

	switch {
	case msg.Role == chat.RoleCustomer:
		label = styles.VisitorLabelStyle.Render(visitorLabel)
		bubble = styles.VisitorBubbleStyle
		body = m.renderBlocks(msg.Content, innerWidth)
		align = lipgloss.Right
	case msg.IsError():
		label = styles.AgentLabelStyle.Render(m.agentLabel)
		bubble = styles.ErrorBubbleStyle
		body = lipgloss.NewStyle().Width(innerWidth).Render(msg.Content)
	default:
		label = styles.AgentLabelStyle.Render(m.agentLabel)
		bubble = styles.AgentBubbleStyle
		body = m.renderBlocks(msg.Content, innerWidth)
	}

	rendered := bubble.MaxWidth(bubbleWidth).Render(body)
	turn := lipgloss.JoinVertical(align, label, rendered)
	return lipgloss.PlaceHorizontal(m.width, align, turn)
}

func (m *Model) renderTyping() string {
	label := styles.AgentLabelStyle.Render(m.agentLabel)
	line := m.spinner.View() + " " + styles.TextMutedStyle.Render("typing...")
	return lipgloss.JoinVertical(lipgloss.Left, label, line)
}

// renderBlocks renders each "||" block as markdown, separated by a thin
// divider.
func (m *Model) renderBlocks(content string, width int) string {
	blocks := chat.SplitBlocks(content)
	out := make([]string, 0, len(blocks)*2)
	for i, block := range blocks {
		if i > 0 {
			out = append(out, styles.BlockSeparatorStyle.Render(blockSeparator))
		}
		out = append(out, m.renderMarkdown(block, width))
	}
	return strings.Join(out, "\n")
}

func (m *Model) renderMarkdown(content string, width int) (result string) {
	plain := func() string {
		return lipgloss.NewStyle().Width(width).Render(content)
	}
	defer func() {
		if r := recover(); r != nil {
			result = plain()
		}
	}()

	if content == "" {
		return ""
	}
	r := m.renderer(width)
	if r == nil {
		return plain()
	}
	rendered, err := r.Render(content)
	if err != nil {
		return plain()
	}
	return strings.Trim(rendered, "\n")
}

// renderer returns a glamour renderer wrapping at width, cached per width.
func (m *Model) renderer(width int) *glamour.TermRenderer {
	if r, ok := m.renderers[width]; ok {
		return r
	}
	var opts []glamour.TermRendererOption
	if m.markdownStyle == "" || m.markdownStyle == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(m.markdownStyle))
	}
	opts = append(opts, glamour.WithWordWrap(width), glamour.WithEmoji())
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r = nil
	}
	m.renderers[width] = r
	return r
}

func (m *Model) bubbleWidth() int {
	w := m.width * bubbleWidthPercent / 100
	return utils.Clamp(w, min(minBubbleWidth, m.width), m.width)
}

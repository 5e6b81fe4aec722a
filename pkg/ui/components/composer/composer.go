// Package composer is the visitor's message input.
package composer

import (
	"strings"

	"cci_chat/pkg/ui/components/utils"
	"cci_chat/pkg/ui/styles"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
)

const (
	MinLines = 1
	MaxLines = 6

	placeholder = "Type your question"
	// border plus the prompt column
	chromeWidth = 4
)

// SubmitMsg carries a submitted draft.
type SubmitMsg struct {
	Content string
}

// Model wraps a textarea that grows with its content between MinLines and
// MaxLines. Enter submits; shift+enter, alt+enter and ctrl+j insert a
// newline.
type Model struct {
	textarea textarea.Model
	width    int
	loading  bool
}

// New creates a focused composer.
func New() *Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.MaxHeight = MaxLines
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("shift+enter", "alt+enter", "ctrl+j"))
	ta.SetHeight(MinLines)
	ta.Focus()
	return &Model{textarea: ta}
}

// SetWidth updates the outer width.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.textarea.SetWidth(max(width-2, 1))
	m.resize()
}

// SetLoading blocks or unblocks submission.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Loading reports whether submission is blocked by an in-flight send.
func (m *Model) Loading() bool {
	return m.loading
}

// Value returns the current draft.
func (m *Model) Value() string {
	return m.textarea.Value()
}

// SetValue replaces the draft.
func (m *Model) SetValue(v string) {
	m.textarea.SetValue(v)
	m.resize()
}

// CanSubmit reports whether Enter would submit the draft.
func (m *Model) CanSubmit() bool {
	return strings.TrimSpace(m.textarea.Value()) != "" && !m.loading
}

// Height returns the rendered height including the border.
func (m *Model) Height() int {
	return m.textarea.Height() + 2
}

// Focus focuses the input.
func (m *Model) Focus() tea.Cmd {
	return m.textarea.Focus()
}

// Update handles key presses and pastes.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyPressMsg); ok && keyMsg.String() == "enter" {
		if !m.CanSubmit() {
			return nil
		}
		content := strings.TrimSpace(m.textarea.Value())
		m.textarea.Reset()
		m.resize()
		return func() tea.Msg {
			return SubmitMsg{Content: content}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.resize()
	return cmd
}

// resize grows or shrinks the editing surface to fit the draft.
func (m *Model) resize() {
	textWidth := max(m.width-chromeWidth, 1)
	lines := utils.VisualLines(m.textarea.Value(), textWidth)
	m.textarea.SetHeight(utils.Clamp(lines, MinLines, MaxLines))
}

// View renders the input box.
func (m *Model) View() string {
	box := styles.ComposerBoxStyle
	if m.loading {
		box = styles.ComposerBusyBoxStyle
	}
	return box.Render(m.textarea.View())
}

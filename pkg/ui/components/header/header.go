package header

import (
	"strings"

	"cci_chat/pkg/ui/components/utils"
	"cci_chat/pkg/ui/styles"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// Status is what the assistant is doing.
type Status int

const (
	StatusOnline Status = iota
	StatusTyping
	StatusLoading
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusTyping:
		return "typing..."
	case StatusLoading:
		return "loading..."
	case StatusClosing:
		return "closing..."
	default:
		return "online"
	}
}

// Header renders the assistant title bar and, below it, the last error.
type Header struct {
	title  string
	status Status
	banner string
	notice string
	width  int
}

// New creates a header titled with the assistant name.
func New(title string) *Header {
	return &Header{title: title, width: 80}
}

func (h *Header) SetWidth(width int) { h.width = width }
func (h *Header) SetStatus(s Status) { h.status = s }
func (h *Header) SetBanner(text string) { h.banner = strings.TrimSpace(text) }
func (h *Header) SetNotice(text string) { h.notice = strings.TrimSpace(text) }
func (h *Header) Banner() string { return h.banner }

// Height returns the number of rows Render produces.
func (h *Header) Height() int {
	if h.banner != "" || h.notice != "" {
		return 2
	}
	return 1
}

// Render returns the styled header rows.
func (h *Header) Render() string {
	rows := []string{h.renderBar()}
	switch {
	case h.banner != "":
		rows = append(rows, h.renderLine(styles.BannerErrorStyle, h.banner))
	case h.notice != "":
		rows = append(rows, h.renderLine(styles.NoticeStyle, h.notice))
	}
	return strings.Join(rows, "\n")
}

func (h *Header) renderBar() string {
	status := h.status.String()
	// Padding(0, 1) on the bar
	inner := max(h.width-2, 1)

	title := h.title
	room := inner - ansi.StringWidth(status) - 1
	if room < 1 {
		status = ""
		room = inner
	}
	title = utils.TruncateToWidth(title, room)

	gap := inner - ansi.StringWidth(title) - ansi.StringWidth(status)
	content := title + strings.Repeat(" ", max(gap, 0)) + styles.HeaderStatusStyle.Render(status)
	return styles.HeaderStyle.Render(content)
}

func (h *Header) renderLine(style lipgloss.Style, text string) string {
	text = utils.TruncateToWidth(text, max(h.width-2, 1))
	return utils.PadStyled(style.Render(text), h.width)
}

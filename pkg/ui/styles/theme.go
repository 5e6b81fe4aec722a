// Package styles provides the shared theme for the chat UI.
package styles

import (
	"charm.land/lipgloss/v2"
)

// Color palette - ANSI 256 colors plus the brand blue
var (
	// Brand color of the assistant header
	ColorBrand = lipgloss.Color("#079CDC")

	// Text colors
	ColorText       = lipgloss.Color("252") // Primary text
	ColorTextMuted  = lipgloss.Color("245") // Secondary/muted text
	ColorTextBright = lipgloss.Color("15")  // Bright/highlighted text

	// Turn colors
	ColorVisitor     = lipgloss.Color("39")  // Visitor bubble border
	ColorAgent       = lipgloss.Color("250") // Agent bubble border
	ColorError       = lipgloss.Color("196") // Failed turns and banner
	ColorPlaceholder = lipgloss.Color("240") // Placeholder text

	ColorBorderMuted = lipgloss.Color("62")
)

// Header styles
var (
	// HeaderStyle is the assistant title bar
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextBright).
			Background(ColorBrand).
			Padding(0, 1).
			Bold(true)

	// HeaderStatusStyle renders the presence/status text inside the bar
	HeaderStatusStyle = lipgloss.NewStyle().
				Foreground(ColorTextBright).
				Background(ColorBrand).
				Italic(true)

	// BannerErrorStyle renders the last error below the header
	BannerErrorStyle = lipgloss.NewStyle().
				Foreground(ColorTextBright).
				Background(ColorError).
				Padding(0, 1)

	// NoticeStyle renders transient notices such as "copied"
	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true).
			Padding(0, 1)
)

// Turn styles
var (
	VisitorBubbleStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorVisitor).
				Padding(0, 1)

	AgentBubbleStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorAgent).
				Padding(0, 1)

	ErrorBubbleStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorError).
				Foreground(ColorError).
				Padding(0, 1)

	// VisitorLabelStyle and AgentLabelStyle render the avatar labels
	VisitorLabelStyle = lipgloss.NewStyle().
				Foreground(ColorVisitor).
				Bold(true)

	AgentLabelStyle = lipgloss.NewStyle().
			Foreground(ColorBrand).
			Bold(true)

	// BlockSeparatorStyle separates the language blocks of one turn
	BlockSeparatorStyle = lipgloss.NewStyle().
				Foreground(ColorPlaceholder)
)

// Text styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	// TextMutedStyle for secondary/helper text
	TextMutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	// FooterStyle for footer/help text
	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	// PlaceholderStyle for placeholder text
	PlaceholderStyle = lipgloss.NewStyle().
				Foreground(ColorPlaceholder).
				Italic(true)
)

// Composer styles
var (
	ComposerBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderMuted)

	ComposerBusyBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPlaceholder)
)

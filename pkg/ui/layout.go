package ui

import (
	"charm.land/lipgloss/v2"
)

const footerHeight = 1

// LayoutManager splits the screen between header, messages, composer and
// footer. Only the message list flexes.
type LayoutManager struct {
	width  int
	height int
}

// NewLayoutManager creates a new layout manager
func NewLayoutManager() *LayoutManager {
	return &LayoutManager{
		width:  80,
		height: 24,
	}
}

// SetSize updates the layout dimensions
func (lm *LayoutManager) SetSize(width, height int) {
	lm.width = width
	lm.height = height
}

// MessagesHeight returns the rows left for the message list once the fixed
// regions are placed. Never less than one.
func (lm *LayoutManager) MessagesHeight(headerHeight, composerHeight int) int {
	h := lm.height - headerHeight - composerHeight - footerHeight
	if h < 1 {
		return 1
	}
	return h
}

// RenderLayout stacks the regions top to bottom.
func (lm *LayoutManager) RenderLayout(header, messages, composer, footer string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		messages,
		composer,
		footer,
	)
}

// GetDimensions returns current width and height
func (lm *LayoutManager) GetDimensions() (width, height int) {
	return lm.width, lm.height
}

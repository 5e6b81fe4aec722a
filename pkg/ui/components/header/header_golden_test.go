package header

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/golden"
)

// Golden files hold the ANSI-stripped render; regenerate with -update.

func TestHeaderGolden_Online(t *testing.T) {
	h := New("Assistant")
	h.SetWidth(40)

	golden.RequireEqual(t, []byte(ansi.Strip(h.Render())))
}

func TestHeaderGolden_TypingWithBanner(t *testing.T) {
	h := New("Assistant")
	h.SetWidth(40)
	h.SetStatus(StatusTyping)
	h.SetBanner("Failed to send message. Please try again.")

	golden.RequireEqual(t, []byte(ansi.Strip(h.Render())))
}

package session

import (
	"os"
	"strconv"
	"strings"
)

// tabEnvVars are checked in order; the first non-empty value identifies the
// terminal tab or pane.
var tabEnvVars = []string{
	"CCI_TAB_ID",
	"TERM_SESSION_ID", // macOS Terminal, iTerm2
	"WT_SESSION",      // Windows Terminal
	"TMUX_PANE",
	"KITTY_WINDOW_ID",
	"WEZTERM_PANE",
	"WINDOWID", // X11 terminals
}

// TabID returns the identifier used to scope the stored session. An explicit
// override wins; otherwise terminal-provided identifiers are used, falling
// back to the parent process (the shell running in the tab).
func TabID(override string) string {
	return tabID(override, os.Getenv, os.Getppid)
}

func tabID(override string, getenv func(string) string, getppid func() int) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	for _, key := range tabEnvVars {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return strings.ToLower(key) + "-" + v
		}
	}
	return "ppid-" + strconv.Itoa(getppid())
}

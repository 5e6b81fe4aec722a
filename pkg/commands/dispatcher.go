// Package commands holds the slash commands understood by the line-mode
// client. Lines that do not name a registered command are chat messages.
package commands

import (
	"sort"
	"strings"
)

// Result represents the result of a command execution
type Result struct {
	Title   string
	Content string
	// Quit ends the session after the result is shown.
	Quit bool
}

// Handler is the interface for command handlers
type Handler interface {
	Execute(ctx *Context) *Result
	Name() string
	Description() string
}

// Dispatcher routes commands to their handlers
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates a new command dispatcher
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
	}

	d.Register(&HistoryHandler{})
	d.Register(&InfoHandler{})
	d.Register(&QuitHandler{})
	d.Register(&HelpHandler{dispatcher: d})

	return d
}

// Register adds a handler to the dispatcher
func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.Name()] = h
}

// Lookup returns the handler named by line, if line is exactly a
// registered command (surrounding space ignored).
func (d *Dispatcher) Lookup(line string) (Handler, bool) {
	h, ok := d.handlers[strings.TrimSpace(line)]
	return h, ok
}

// Dispatch executes a command by name
func (d *Dispatcher) Dispatch(cmdName string, ctx *Context) *Result {
	handler, ok := d.Lookup(cmdName)
	if !ok {
		return &Result{
			Title:   "Error",
			Content: "Unknown command: " + cmdName,
		}
	}

	return handler.Execute(ctx)
}

// Handlers returns the registered handlers sorted by name.
func (d *Dispatcher) Handlers() []Handler {
	out := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

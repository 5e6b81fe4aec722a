package commands

import (
	"fmt"
	"strings"

	"cci_chat/pkg/chat"
)

// HistoryHandler handles the /history command
type HistoryHandler struct{}

func (h *HistoryHandler) Name() string        { return "/history" }
func (h *HistoryHandler) Description() string { return "Show the conversation so far" }

func (h *HistoryHandler) Execute(ctx *Context) *Result {
	transcript := ctx.Transcript()
	if len(transcript) == 0 {
		return &Result{
			Title:   "History",
			Content: "No messages yet.",
		}
	}

	var sb strings.Builder
	for _, msg := range transcript {
		who := "Assistant"
		if msg.Role == chat.RoleCustomer {
			who = "You"
		}
		fmt.Fprintf(&sb, "%s: %s\n", who, strings.Join(chat.SplitBlocks(msg.Content), " / "))
	}

	return &Result{
		Title:   "History",
		Content: strings.TrimRight(sb.String(), "\n"),
	}
}

// InfoHandler handles the /info command
type InfoHandler struct{}

func (h *InfoHandler) Name() string        { return "/info" }
func (h *InfoHandler) Description() string { return "Show the chat id and tab" }

func (h *InfoHandler) Execute(ctx *Context) *Result {
	id := ctx.ChatID
	if id == "" {
		id = "(none yet)"
	}
	return &Result{
		Title:   "Info",
		Content: fmt.Sprintf("chat: %s\ntab: %s", id, ctx.Tab),
	}
}

// QuitHandler handles the /quit command
type QuitHandler struct{}

func (h *QuitHandler) Name() string        { return "/quit" }
func (h *QuitHandler) Description() string { return "End the session" }

func (h *QuitHandler) Execute(ctx *Context) *Result {
	return &Result{Title: "Quit", Quit: true}
}

// HelpHandler handles the /help command
type HelpHandler struct {
	dispatcher *Dispatcher
}

func (h *HelpHandler) Name() string        { return "/help" }
func (h *HelpHandler) Description() string { return "Show help" }

func (h *HelpHandler) Execute(ctx *Context) *Result {
	var sb strings.Builder
	sb.WriteString("Type a message and press Enter to send it.\n\nCommands:\n")
	for _, handler := range h.dispatcher.Handlers() {
		fmt.Fprintf(&sb, "  %-9s - %s\n", handler.Name(), handler.Description())
	}
	return &Result{
		Title:   "Help",
		Content: strings.TrimRight(sb.String(), "\n"),
	}
}

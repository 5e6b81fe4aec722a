package commands

import (
	"testing"

	"cci_chat/pkg/chat"
)

func TestNewContext(t *testing.T) {
	conv := chat.NewConversation("Hello")
	ctx := NewContext(conv, "chat-1", "tab-1")

	if ctx.Conversation == nil {
		t.Error("Expected Conversation to be set")
	}
	if ctx.ChatID != "chat-1" {
		t.Errorf("Expected 'chat-1', got %q", ctx.ChatID)
	}
	if ctx.Tab != "tab-1" {
		t.Errorf("Expected 'tab-1', got %q", ctx.Tab)
	}
}

func TestNewDispatcher(t *testing.T) {
	d := NewDispatcher()

	if d == nil {
		t.Fatal("NewDispatcher() returned nil")
	}

	commands := []string{"/history", "/info", "/quit", "/help"}
	for _, cmd := range commands {
		if _, ok := d.Lookup(cmd); !ok {
			t.Errorf("Expected handler for %s to be registered", cmd)
		}
	}
}

func TestDispatcher_Lookup(t *testing.T) {
	d := NewDispatcher()

	tests := []struct {
		line string
		want bool
	}{
		{"/quit", true},
		{"  /help  ", true},
		{"/quit now", false},
		{"/unknown", false},
		{"hello", false},
		{"", false},
	}

	for _, tt := range tests {
		if _, ok := d.Lookup(tt.line); ok != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.line, ok, tt.want)
		}
	}
}

func TestDispatcher_Dispatch_UnknownCommand(t *testing.T) {
	d := NewDispatcher()
	ctx := NewContext(nil, "", "")

	result := d.Dispatch("/unknown", ctx)

	if result == nil {
		t.Fatal("Expected result for unknown command")
	}
	if result.Title != "Error" {
		t.Errorf("Expected title 'Error', got %q", result.Title)
	}
}

func TestDispatcher_Dispatch_HelpListsCommands(t *testing.T) {
	d := NewDispatcher()
	ctx := NewContext(nil, "", "")

	result := d.Dispatch("/help", ctx)

	if result.Title != "Help" {
		t.Errorf("Expected title 'Help', got %q", result.Title)
	}
	for _, h := range d.Handlers() {
		if !containsLine(result.Content, h.Name()) {
			t.Errorf("Expected help to list %s, got:\n%s", h.Name(), result.Content)
		}
	}
}

func TestDispatcher_Handlers_Sorted(t *testing.T) {
	handlers := NewDispatcher().Handlers()

	for i := 1; i < len(handlers); i++ {
		if handlers[i-1].Name() > handlers[i].Name() {
			t.Errorf("Handlers not sorted: %s before %s", handlers[i-1].Name(), handlers[i].Name())
		}
	}
}

func TestContext_Transcript_NilConversation(t *testing.T) {
	ctx := NewContext(nil, "", "")

	if got := ctx.Transcript(); got != nil {
		t.Errorf("Expected nil transcript, got %v", got)
	}
}

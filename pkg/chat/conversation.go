package chat

import (
	"strings"
	"time"
)

// Conversation is the controller state for one chat session. It is owned by
// a single goroutine (the UI update loop or the plain REPL) and is not safe
// for concurrent use.
type Conversation struct {
	welcome string

	Draft          string
	messages       []Message
	streaming      *Message
	processing     bool
	loadingHistory bool
	closing        bool
	lastError      string
}

// NewConversation creates a conversation seeded with the welcome turn.
func NewConversation(welcome string) *Conversation {
	return &Conversation{
		welcome:  welcome,
		messages: []Message{WelcomeMessage(welcome)},
	}
}

// Messages returns the permanent turns in display order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Streaming returns the in-progress reply, or nil.
func (c *Conversation) Streaming() *Message {
	if c.streaming == nil {
		return nil
	}
	msg := *c.streaming
	return &msg
}

// IsProcessing reports whether a send is in flight (request or reveal).
func (c *Conversation) IsProcessing() bool { return c.processing }

// IsStreaming reports whether a reveal is active.
func (c *Conversation) IsStreaming() bool { return c.streaming != nil }

// IsClosing reports whether an explicit close handshake is in flight.
func (c *Conversation) IsClosing() bool { return c.closing }

// LastError returns the banner string of the most recent failure.
func (c *Conversation) LastError() string { return c.lastError }

// CanSend reports whether content would be accepted by AppendVisitor.
func (c *Conversation) CanSend(content string) bool {
	return strings.TrimSpace(content) != "" && !c.processing && !c.closing
}

// AppendVisitor appends the optimistic visitor turn, clears the draft and
// marks the conversation as processing. It returns false and changes nothing
// when content is blank or a send is already in flight.
func (c *Conversation) AppendVisitor(content string) (Message, bool) {
	if !c.CanSend(content) {
		return Message{}, false
	}
	msg := Message{
		ID:        NewID("temp"),
		Role:      RoleCustomer,
		Content:   content,
		CreatedAt: time.Now(),
	}
	c.messages = append(c.messages, msg)
	c.Draft = ""
	c.processing = true
	c.lastError = ""
	return msg, true
}

// AppendError appends exactly one error turn, records the banner string and
// ends any in-flight processing. An active reveal is discarded.
func (c *Conversation) AppendError(text string) Message {
	msg := ErrorMessage(text)
	c.messages = append(c.messages, msg)
	c.lastError = text
	c.processing = false
	c.streaming = nil
	return msg
}

// SetBanner records a banner-only failure (no chat turn).
func (c *Conversation) SetBanner(text string) {
	c.lastError = text
}

// BeginHistoryLoad marks a history fetch as started.
func (c *Conversation) BeginHistoryLoad() {
	c.loadingHistory = true
}

// EndHistoryLoad clears the loading flag without touching messages.
func (c *Conversation) EndHistoryLoad() {
	c.loadingHistory = false
}

// ApplyHistory replaces the working list with [welcome, history...]. It
// returns false and keeps the local list when a send or reveal is in flight,
// since the local transcript is then newer than the fetched one.
func (c *Conversation) ApplyHistory(history []Message) bool {
	c.loadingHistory = false
	if c.processing || c.streaming != nil {
		return false
	}
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, WelcomeMessage(c.welcome))
	messages = append(messages, history...)
	c.messages = messages
	return true
}

// StartStreaming opens the single streaming slot with empty content.
func (c *Conversation) StartStreaming(id string) {
	c.streaming = &Message{
		ID:        id,
		Role:      RoleAgent,
		CreatedAt: time.Now(),
	}
}

// SetStreamingContent replaces the streaming slot's content with a prefix of
// the reply.
func (c *Conversation) SetStreamingContent(prefix string) {
	if c.streaming == nil {
		return
	}
	c.streaming.Content = prefix
}

// FinishStreaming promotes the streaming slot to a permanent turn with the
// full content, clears the slot and ends processing.
func (c *Conversation) FinishStreaming(full string) Message {
	msg := Message{
		ID:        NewID("stream"),
		Role:      RoleAgent,
		CreatedAt: time.Now(),
	}
	if c.streaming != nil {
		msg.ID = c.streaming.ID
		msg.CreatedAt = c.streaming.CreatedAt
	}
	msg.Content = full
	c.streaming = nil
	c.messages = append(c.messages, msg)
	c.processing = false
	return msg
}

// CancelStreaming drops the streaming slot without promoting it.
func (c *Conversation) CancelStreaming() {
	c.streaming = nil
	c.processing = false
}

// BeginClose enters the explicit close handshake.
func (c *Conversation) BeginClose() {
	c.closing = true
}

// EndClose leaves the close handshake. A non-empty failure is shown as a
// banner.
func (c *Conversation) EndClose(failure string) {
	c.closing = false
	if failure != "" {
		c.lastError = failure
	}
}

// Display returns the permanent turns plus the streaming slot, for rendering
// only.
func (c *Conversation) Display() []Message {
	out := c.Messages()
	if c.streaming != nil {
		out = append(out, *c.streaming)
	}
	return out
}

// ShowTyping reports whether the typing indicator should be visible: a send
// is in flight and no reply has started revealing yet.
func (c *Conversation) ShowTyping() bool {
	return c.processing && c.streaming == nil
}

// ShowLoading reports whether the history-loading state should replace the
// message list. Suppressed while a reveal is active.
func (c *Conversation) ShowLoading() bool {
	return c.loadingHistory && c.streaming == nil
}

// LastAgentReply returns the content of the most recent non-error agent turn.
func (c *Conversation) LastAgentReply() (string, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Role == RoleAgent && !msg.IsError() {
			return msg.Content, true
		}
	}
	return "", false
}

package commands

import "cci_chat/pkg/chat"

// Context contains what a command may inspect.
type Context struct {
	Conversation *chat.Conversation
	ChatID       string
	Tab          string
}

// NewContext creates a new command context
func NewContext(conv *chat.Conversation, chatID, tab string) *Context {
	return &Context{
		Conversation: conv,
		ChatID:       chatID,
		Tab:          tab,
	}
}

// Transcript returns the committed turns, or nil without a conversation.
func (c *Context) Transcript() []chat.Message {
	if c.Conversation == nil {
		return nil
	}
	return c.Conversation.Messages()
}

// Package chat holds the visitor/agent conversation model and the state
// machine that drives a single chat session: optimistic sends, history
// replacement, and the simulated character-by-character reveal of replies.
package chat

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// UnmarshalJSON accepts the backend's "user"/"assistant" spelling as well.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ParseRole(raw)
	return nil
}

// ParseRole maps any known role spelling to customer or agent. Unknown roles
// are treated as agent turns.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer", "user", "visitor":
		return RoleCustomer
	default:
		return RoleAgent
	}
}

const (
	// FailurePrefix marks turns that must render as errors.
	FailurePrefix = "Failed"
	// BlockDelimiter separates independently rendered blocks (one per language).
	BlockDelimiter = "||"
)

const (
	InitFailedText    = "Failed to initialize chat. Please try again."
	SendFailedText    = "Failed to send message. Please try again."
	HistoryFailedText = "Failed to load conversation. Please try again."
	CloseFailedText   = "Failed to close chat. Please try again."
)

// Attachment is part of the backend message model. The chat flow never
// sends or renders attachments.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Message is one chat turn.
type Message struct {
	ID              string       `json:"messageid"`
	ChatID          string       `json:"chatid,omitempty"`
	Role            Role         `json:"role"`
	Content         string       `json:"content"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at,omitzero"`
	ParentMessageID string       `json:"parent_message_id,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// UnmarshalJSON decodes a backend message. Timestamps are display-only, so a
// value in an unexpected format decodes as the zero time instead of failing
// the whole history.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.CreatedAt = parseTimestamp(aux.CreatedAt)
	m.UpdatedAt = parseTimestamp(aux.UpdatedAt)
	return nil
}

// Naive layouts carry no zone and are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	slog.Debug("message_timestamp_unparsed", "value", s)
	return time.Time{}
}

// IsError reports whether the turn carries the failure marker.
func (m Message) IsError() bool {
	return IsError(m.Content)
}

// IsError reports whether content begins with the failure prefix.
func IsError(content string) bool {
	return strings.HasPrefix(content, FailurePrefix)
}

// SplitBlocks splits content on the block delimiter and trims each block.
func SplitBlocks(content string) []string {
	parts := strings.Split(content, BlockDelimiter)
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		blocks = append(blocks, strings.TrimSpace(part))
	}
	return blocks
}

// NewID returns a locally unique message id with the given prefix
// ("temp", "error", "stream").
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// WelcomeMessage builds the synthetic greeting shown first in every list.
func WelcomeMessage(text string) Message {
	return Message{
		ID:        NewID("temp"),
		Role:      RoleAgent,
		Content:   text,
		CreatedAt: time.Now(),
	}
}

// ErrorMessage builds an agent turn carrying a failure text.
func ErrorMessage(text string) Message {
	return Message{
		ID:        NewID("error"),
		Role:      RoleAgent,
		Content:   text,
		CreatedAt: time.Now(),
	}
}

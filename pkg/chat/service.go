package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cci_chat/pkg/session"

	"golang.org/x/sync/singleflight"
)

// ErrEmptyMessage is returned by Send for blank content; no request is made.
var ErrEmptyMessage = errors.New("message is empty")

// Backend is the subset of the HTTP client the service needs.
type Backend interface {
	AcquireChatID(ctx context.Context) (string, error)
	GetMessages(ctx context.Context, chatID string) ([]Message, error)
	PostMessage(ctx context.Context, chatID, text string) (string, error)
	ReportLastActivity(ctx context.Context, chatID string) (string, error)
	Beacon(chatID string) <-chan struct{}
}

// Service performs the network side of the chat lifecycle. It holds no UI
// state, so its methods may be called from background commands.
type Service struct {
	backend Backend
	session *session.Context
	group   singleflight.Group
}

// NewService wires a backend to a tab session.
func NewService(backend Backend, sess *session.Context) *Service {
	return &Service{backend: backend, session: sess}
}

// ChatID returns the established chat id without contacting the backend.
func (s *Service) ChatID() string {
	return s.session.ChatID()
}

// Tab returns the tab the session is scoped to.
func (s *Service) Tab() string {
	return s.session.Tab()
}

// EnsureChatID returns the stored chat id, acquiring and persisting a new one
// when none exists. Concurrent callers share a single backend request.
func (s *Service) EnsureChatID(ctx context.Context) (string, error) {
	if id := s.session.ChatID(); id != "" {
		return id, nil
	}

	v, err, _ := s.group.Do("chat-id", func() (any, error) {
		if id := s.session.ChatID(); id != "" {
			return id, nil
		}
		id, err := s.backend.AcquireChatID(ctx)
		if err != nil {
			return "", err
		}
		if err := s.session.Establish(id); err != nil {
			// The id is still usable for this run.
			slog.Warn("chat_id_persist_failed", "chat_id", id, "error", err)
		}
		slog.Info("chat_id_created", "chat_id", id, "tab", s.session.Tab())
		return id, nil
	})
	if err != nil {
		slog.Error("chat_id_acquire_failed", "error", err)
		return "", fmt.Errorf("failed to initialize chat: %w", err)
	}
	return v.(string), nil
}

// History fetches the ordered history of the established chat.
func (s *Service) History(ctx context.Context) ([]Message, error) {
	id := s.session.ChatID()
	if id == "" {
		return nil, fmt.Errorf("failed to load history: %w", session.ErrNoSession)
	}
	messages, err := s.backend.GetMessages(ctx, id)
	if err != nil {
		slog.Error("history_load_failed", "chat_id", id, "error", err)
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	slog.Info("history_loaded", "chat_id", id, "message_count", len(messages))
	return messages, nil
}

// SendResult is the outcome of a successful send.
type SendResult struct {
	ChatID string
	Reply  string
}

// Send posts trimmed content to the chat, acquiring a chat id first when
// needed, and returns the agent's complete reply.
func (s *Service) Send(ctx context.Context, content string) (SendResult, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	id, err := s.EnsureChatID(ctx)
	if err != nil {
		return SendResult{}, err
	}

	slog.Info("message_send_start", "chat_id", id, "message_length", len(text))
	reply, err := s.backend.PostMessage(ctx, id, text)
	if err != nil {
		slog.Error("message_send_failed", "chat_id", id, "error", err)
		return SendResult{ChatID: id}, fmt.Errorf("failed to send message: %w", err)
	}
	s.session.Touch()
	slog.Info("message_send_done", "chat_id", id, "reply_length", len(reply))
	return SendResult{ChatID: id, Reply: reply}, nil
}

// ReportEnd synchronously reports the end of the session (explicit close
// handshake). With no chat established there is nothing to report.
func (s *Service) ReportEnd(ctx context.Context) error {
	id := s.session.ChatID()
	if id == "" {
		return nil
	}
	status, err := s.backend.ReportLastActivity(ctx, id)
	if err != nil {
		slog.Error("session_close_failed", "chat_id", id, "error", err)
		return fmt.Errorf("failed to close chat: %w", err)
	}
	slog.Info("session_close_acknowledged", "chat_id", id, "status", status)
	if err := s.session.Close(); err != nil {
		slog.Warn("session_close_persist_failed", "chat_id", id, "error", err)
	}
	return nil
}

// Beacon fires the best-effort last-activity report used on exit.
func (s *Service) Beacon() <-chan struct{} {
	id := s.session.ChatID()
	if err := s.session.Close(); err != nil {
		slog.Warn("session_close_persist_failed", "chat_id", id, "error", err)
	}
	return s.backend.Beacon(id)
}

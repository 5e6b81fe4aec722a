// Package mockbackend is an in-memory stand-in for the chat backend. It
// serves the same five endpoints the client uses and answers every visitor
// message with a canned bilingual reply.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cci_chat/pkg/chat"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ReplyFunc builds the agent reply for a visitor message.
type ReplyFunc func(message string) string

// DefaultReply echoes the visitor message in both languages.
func DefaultReply(message string) string {
	return fmt.Sprintf("Vous avez écrit : **%s** || Usted escribió: **%s**", message, message)
}

type chatState struct {
	messages     []chat.Message
	lastActivity time.Time
}

// Server holds chats in memory.
type Server struct {
	mu    sync.Mutex
	chats map[string]*chatState
	reply ReplyFunc

	// failures maps "METHOD route" to a forced status code.
	failures map[string]int
	calls    map[string]int
}

// New creates an empty server.
func New(reply ReplyFunc) *Server {
	if reply == nil {
		reply = DefaultReply
	}
	return &Server{
		chats:    make(map[string]*chatState),
		reply:    reply,
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// Route names accepted by FailWith and Calls.
const (
	RouteCreateChatID = "POST /chat/createChatId"
	RouteGetChatID    = "GET /chat/getChatId"
	RouteGetMessages  = "GET /chat/{chatID}/message"
	RoutePostMessage  = "POST /chat/{chatID}/message"
	RouteLastActivity = "POST /chat/{chatID}/last_activity"
)

// FailWith forces route to answer with status until cleared with 0.
func (s *Server) FailWith(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// Calls returns how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Seed creates a chat with the given history and returns its id.
func (s *Server) Seed(history ...chat.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.chats[id] = &chatState{messages: append([]chat.Message(nil), history...)}
	return id
}

// LastActivity returns when the chat last reported activity.
func (s *Server) LastActivity(chatID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.chats[chatID]
	if !ok {
		return time.Time{}, false
	}
	return st.lastActivity, !st.lastActivity.IsZero()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/createChatId", s.guard(RouteCreateChatID, s.handleCreateChatID))
		r.Get("/getChatId", s.guard(RouteGetChatID, s.handleCreateChatID))
		r.Get("/{chatID}/message", s.guard(RouteGetMessages, s.handleGetMessages))
		r.Post("/{chatID}/message", s.guard(RoutePostMessage, s.handlePostMessage))
		r.Post("/{chatID}/last_activity", s.guard(RouteLastActivity, s.handleLastActivity))
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("mock_backend_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) guard(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		status := s.failures[route]
		s.mu.Unlock()
		if status != 0 {
			respondError(w, status, "forced failure")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleCreateChatID(w http.ResponseWriter, r *http.Request) {
	id := s.Seed()
	respondJSON(w, http.StatusOK, map[string]string{"chatId": id})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	s.mu.Lock()
	st, ok := s.chats[chatID]
	var messages []chat.Message
	if ok {
		messages = append([]chat.Message{}, st.messages...)
	}
	s.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.mu.Lock()
	st, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	now := time.Now().UTC()
	visitor := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chat.RoleCustomer,
		Content:   payload.Message,
		CreatedAt: now,
	}
	reply := s.reply(payload.Message)
	agent := chat.Message{
		ID:              uuid.NewString(),
		ChatID:          chatID,
		Role:            chat.RoleAgent,
		Content:         reply,
		CreatedAt:       now,
		ParentMessageID: visitor.ID,
	}
	st.messages = append(st.messages, visitor, agent)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleLastActivity(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	s.mu.Lock()
	st, ok := s.chats[chatID]
	if ok {
		st.lastActivity = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

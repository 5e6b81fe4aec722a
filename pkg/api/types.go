package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyChatID is returned when the backend answers without a chat id.
var ErrEmptyChatID = errors.New("backend returned an empty chat id")

// StatusError is returned for any non-2xx response. Callers only need the
// status code; the response body is logged, not surfaced.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP error! status: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// ChatIDResponse is returned by both chat-id endpoints.
type ChatIDResponse struct {
	ChatID string `json:"chatId"`
}

// PostMessageRequest is the body of POST /chat/{chatId}/message.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// PostMessageResponse carries the agent's complete reply.
type PostMessageResponse struct {
	Reply string `json:"reply"`
}

// StatusResponse is returned by the last-activity endpoint.
type StatusResponse struct {
	Status string `json:"status"`
}

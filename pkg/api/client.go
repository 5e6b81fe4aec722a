// Package api is the HTTP client for the chat backend. Every call is a
// single attempt: no retry, no backoff.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/config"
	"cci_chat/pkg/logging"
	"cci_chat/pkg/version"

	"github.com/charmbracelet/x/ansi"
)

const (
	DefaultTimeout = 30 * time.Second
	// BeaconTimeout bounds the fire-and-forget last-activity report sent on exit.
	BeaconTimeout = 3 * time.Second

	maxErrorPreview = 200
)

// Client handles backend interactions
type Client struct {
	BaseURL    string
	ChatType   string
	ChatIDMode string
	HTTPClient *http.Client
	UserAgent  string
}

// NewClient creates a new backend client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ChatType:   "web",
		ChatIDMode: config.ChatIDModeCreate,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		UserAgent: version.UserAgent(),
	}
}

// NewClientFromConfig creates a client configured from cfg.
func NewClientFromConfig(cfg config.Config) *Client {
	c := NewClient(cfg.APIURL)
	c.ChatType = cfg.ChatType
	c.ChatIDMode = cfg.ChatIDMode
	c.SetTimeout(cfg.RequestTimeout())
	return c
}

// SetTimeout configures the HTTP client timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// AcquireChatID obtains a chat id using the contract this deployment speaks:
// POST createChatId ("create") or GET getChatId ("get").
func (c *Client) AcquireChatID(ctx context.Context) (string, error) {
	if c.ChatIDMode == config.ChatIDModeGet {
		return c.GetChatID(ctx)
	}
	return c.CreateChatID(ctx)
}

// CreateChatID asks the backend to create a new chat.
func (c *Client) CreateChatID(ctx context.Context) (string, error) {
	query := url.Values{}
	if c.ChatType != "" {
		query.Set("type", c.ChatType)
	}
	var resp ChatIDResponse
	if err := c.do(ctx, "create_chat_id", http.MethodPost, "/chat/createChatId", query, nil, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ChatID) == "" {
		return "", ErrEmptyChatID
	}
	return resp.ChatID, nil
}

// GetChatID asks the backend for a chat id (fetch-or-create on its side).
func (c *Client) GetChatID(ctx context.Context) (string, error) {
	var resp ChatIDResponse
	if err := c.do(ctx, "get_chat_id", http.MethodGet, "/chat/getChatId", nil, nil, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ChatID) == "" {
		return "", ErrEmptyChatID
	}
	return resp.ChatID, nil
}

// GetMessages fetches the ordered message history of a chat.
func (c *Client) GetMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var messages []chat.Message
	if err := c.do(ctx, "get_messages", http.MethodGet, chatPath(chatID, "message"), nil, nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

// PostMessage sends a visitor message and returns the agent's full reply.
func (c *Client) PostMessage(ctx context.Context, chatID, text string) (string, error) {
	var resp PostMessageResponse
	body := PostMessageRequest{Message: text}
	if err := c.do(ctx, "post_message", http.MethodPost, chatPath(chatID, "message"), nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// ReportLastActivity tells the backend the visitor's session ended.
func (c *Client) ReportLastActivity(ctx context.Context, chatID string) (string, error) {
	var resp StatusResponse
	if err := c.do(ctx, "last_activity", http.MethodPost, chatPath(chatID, "last_activity"), nil, struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Beacon sends a best-effort last-activity report in the background and
// returns immediately. Failures are logged only. The returned channel is
// closed once the attempt finished; callers that exit right after may wait
// on it.
func (c *Client) Beacon(chatID string) <-chan struct{} {
	done := make(chan struct{})
	if strings.TrimSpace(chatID) == "" {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), BeaconTimeout)
		defer cancel()
		if _, err := c.ReportLastActivity(ctx, chatID); err != nil {
			slog.Warn("last_activity_beacon_failed", "chat_id", chatID, "error", err)
			return
		}
		slog.Info("last_activity_beacon_sent", "chat_id", chatID)
	}()
	return done
}

// previewBody shortens a response body for logs without splitting a rune.
func previewBody(data []byte) string {
	return ansi.Truncate(strings.ToValidUTF8(string(data), "\uFFFD"), maxErrorPreview, "...")
}

func chatPath(chatID, tail string) string {
	return "/chat/" + url.PathEscape(chatID) + "/" + tail
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		payload = data
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	logger := slog.Default()
	logger.Debug("api_request", "op", op, "method", method, "url", endpoint, "request_size", len(payload))
	if logger.Enabled(ctx, logging.LevelTrace) && payload != nil {
		logger.Log(ctx, logging.LevelTrace, "api_request_body", "op", op, "json", string(payload))
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logger.Error("api_request_failed", "op", op, "error", err)
		return fmt.Errorf("%s: failed to send request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	logger.Debug("api_response",
		"op", op,
		"status_code", resp.StatusCode,
		"response_size", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	if logger.Enabled(ctx, logging.LevelTrace) {
		logger.Log(ctx, logging.LevelTrace, "api_response_body", "op", op, "json", string(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := previewBody(data)
		logger.Error("api_error_status", "op", op, "status_code", resp.StatusCode, "response_preview", preview)
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/config"
	"cci_chat/pkg/mockbackend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newMockServer(t *testing.T) (*mockbackend.Server, *Client) {
	t.Helper()
	backend := mockbackend.New(nil)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, NewClient(srv.URL)
}

func TestNewClient(t *testing.T) {
	client := NewClient("https://example.test/")

	assert.Equal(t, "https://example.test", client.BaseURL)
	assert.Equal(t, DefaultTimeout, client.HTTPClient.Timeout)
	assert.Equal(t, config.ChatIDModeCreate, client.ChatIDMode)
	assert.Equal(t, "web", client.ChatType)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.APIURL = "http://localhost:1234"
	cfg.ChatIDMode = config.ChatIDModeGet
	cfg.RequestTimeoutSeconds = 7

	client := NewClientFromConfig(cfg)

	assert.Equal(t, "http://localhost:1234", client.BaseURL)
	assert.Equal(t, config.ChatIDModeGet, client.ChatIDMode)
	assert.Equal(t, 7*time.Second, client.HTTPClient.Timeout)
}

func TestCreateChatID_SendsPostWithType(t *testing.T) {
	var gotMethod, gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.URL.Query().Get("type")
		_ = json.NewEncoder(w).Encode(ChatIDResponse{ChatID: "chat-1"})
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL).CreateChatID(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "chat-1", id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/chat/createChatId", gotPath)
	assert.Equal(t, "web", gotType)
}

func TestAcquireChatID_Modes(t *testing.T) {
	backend, client := newMockServer(t)

	client.ChatIDMode = config.ChatIDModeCreate
	id, err := client.AcquireChatID(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, backend.Calls(mockbackend.RouteCreateChatID))
	assert.Equal(t, 0, backend.Calls(mockbackend.RouteGetChatID))

	client.ChatIDMode = config.ChatIDModeGet
	id, err = client.AcquireChatID(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, backend.Calls(mockbackend.RouteGetChatID))
}

func TestCreateChatID_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"chatId":""}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateChatID(context.Background())

	assert.ErrorIs(t, err, ErrEmptyChatID)
}

func TestGetMessages_DecodesHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/abc/message", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"messageid":"m1","chatid":"abc","role":"user","content":"Hola","created_at":"2026-01-02T03:04:05Z"},
			{"messageid":"m2","chatid":"abc","role":"assistant","content":"Bonjour || Hola","created_at":"2026-01-02T03:04:06Z","parent_message_id":"m1"}
		]`)
	}))
	defer srv.Close()

	messages, err := NewClient(srv.URL).GetMessages(context.Background(), "abc")

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, chat.RoleCustomer, messages[0].Role)
	assert.Equal(t, chat.RoleAgent, messages[1].Role)
	assert.Equal(t, "m1", messages[1].ParentMessageID)
	assert.Equal(t, 2026, messages[1].CreatedAt.Year())
}

func TestGetMessages_NaiveTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"messageid":"m1","role":"user","content":"Hola","created_at":"2026-03-04T05:06:07.123456"},
			{"messageid":"m2","role":"assistant","content":"Bonjour","created_at":"not a time"}
		]`)
	}))
	defer srv.Close()

	messages, err := NewClient(srv.URL).GetMessages(context.Background(), "abc")

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, 7, messages[0].CreatedAt.Second())
	assert.True(t, messages[1].CreatedAt.IsZero())
}

func TestPreviewBody(t *testing.T) {
	long := strings.Repeat("é", maxErrorPreview+50)

	preview := previewBody([]byte(long))

	assert.True(t, utf8.ValidString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(preview), maxErrorPreview)
	assert.Equal(t, "short body", previewBody([]byte("short body")))
	assert.True(t, utf8.ValidString(previewBody([]byte{0xff, 'a'})))
}

func TestGetMessages_EmptyBodyIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))
	defer srv.Close()

	messages, err := NewClient(srv.URL).GetMessages(context.Background(), "abc")

	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestPostMessage_RoundTrip(t *testing.T) {
	backend, client := newMockServer(t)
	id := backend.Seed()

	reply, err := client.PostMessage(context.Background(), id, "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, mockbackend.DefaultReply("Bonjour"), reply)

	history, err := client.GetMessages(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Bonjour", history[0].Content)
	assert.Equal(t, chat.RoleCustomer, history[0].Role)
	assert.Equal(t, reply, history[1].Content)
}

func TestPostMessage_SendsJSONBody(t *testing.T) {
	var body PostMessageRequest
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(PostMessageResponse{Reply: "ok"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).PostMessage(context.Background(), "c1", "hello")

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "hello", body.Message)
}

func TestNonSuccessStatusIsStatusError(t *testing.T) {
	backend, client := newMockServer(t)
	id := backend.Seed()
	backend.FailWith(mockbackend.RoutePostMessage, http.StatusBadGateway)

	_, err := client.PostMessage(context.Background(), id, "hello")

	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Contains(t, err.Error(), "502")
}

func TestNoRetryOnFailure(t *testing.T) {
	backend, client := newMockServer(t)
	backend.FailWith(mockbackend.RouteCreateChatID, http.StatusInternalServerError)

	_, err := client.CreateChatID(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, backend.Calls(mockbackend.RouteCreateChatID))
}

func TestTransportErrorIsWrapped(t *testing.T) {
	client := NewClient("http://backend.invalid")
	client.HTTPClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}

	_, err := client.GetMessages(context.Background(), "abc")

	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
}

func TestReportLastActivity(t *testing.T) {
	backend, client := newMockServer(t)
	id := backend.Seed()

	status, err := client.ReportLastActivity(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "ok", status)
	_, reported := backend.LastActivity(id)
	assert.True(t, reported)
}

func TestBeacon_FiresAndForgets(t *testing.T) {
	backend, client := newMockServer(t)
	id := backend.Seed()

	select {
	case <-client.Beacon(id):
	case <-time.After(2 * time.Second):
		t.Fatal("beacon did not finish")
	}

	assert.Equal(t, 1, backend.Calls(mockbackend.RouteLastActivity))
}

func TestBeacon_FailureIsNotSurfaced(t *testing.T) {
	backend, client := newMockServer(t)
	backend.FailWith(mockbackend.RouteLastActivity, http.StatusServiceUnavailable)

	select {
	case <-client.Beacon("missing"):
	case <-time.After(2 * time.Second):
		t.Fatal("beacon did not finish")
	}
	assert.Equal(t, 1, backend.Calls(mockbackend.RouteLastActivity))
}

func TestBeacon_NoChatIDIsNoop(t *testing.T) {
	backend, client := newMockServer(t)

	<-client.Beacon("")

	assert.Equal(t, 0, backend.Calls(mockbackend.RouteLastActivity))
}

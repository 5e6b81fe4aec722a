package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cci_chat/pkg/api"
	"cci_chat/pkg/chat"
	"cci_chat/pkg/mockbackend"
	"cci_chat/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	acquires  atomic.Int32
	posts     []string
	reports   int
	acquireFn func() (string, error)
	postErr   error
	gate      chan struct{}
}

func (f *fakeBackend) AcquireChatID(ctx context.Context) (string, error) {
	f.acquires.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.acquireFn != nil {
		return f.acquireFn()
	}
	return "chat-1", nil
}

func (f *fakeBackend) GetMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	return []chat.Message{{ID: "m1", ChatID: chatID, Role: chat.RoleCustomer, Content: "hi"}}, nil
}

func (f *fakeBackend) PostMessage(ctx context.Context, chatID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, chatID+":"+text)
	if f.postErr != nil {
		return "", f.postErr
	}
	return "reply to " + text, nil
}

func (f *fakeBackend) ReportLastActivity(ctx context.Context, chatID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports++
	return "ok", nil
}

func (f *fakeBackend) Beacon(chatID string) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

func openSession(t *testing.T, store session.Store, tab string) *session.Context {
	t.Helper()
	sess, err := session.Open(store, tab)
	require.NoError(t, err)
	return sess
}

func TestSend_EmptyMessageMakesNoRequest(t *testing.T) {
	backend := &fakeBackend{}
	svc := chat.NewService(backend, openSession(t, session.NewMemoryStore(), "tab"))

	_, err := svc.Send(context.Background(), "   \n ")

	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	assert.Equal(t, int32(0), backend.acquires.Load())
	assert.Empty(t, backend.posts)
}

func TestSend_AcquiresOnceAndReusesID(t *testing.T) {
	backend := &fakeBackend{}
	svc := chat.NewService(backend, openSession(t, session.NewMemoryStore(), "tab"))

	first, err := svc.Send(context.Background(), " hello ")
	require.NoError(t, err)
	second, err := svc.Send(context.Background(), "again")
	require.NoError(t, err)

	assert.Equal(t, "chat-1", first.ChatID)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Equal(t, "reply to hello", first.Reply)
	assert.Equal(t, int32(1), backend.acquires.Load())
	assert.Equal(t, []string{"chat-1:hello", "chat-1:again"}, backend.posts)
}

func TestEnsureChatID_ConcurrentCallersShareRequest(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	svc := chat.NewService(backend, openSession(t, session.NewMemoryStore(), "tab"))

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.EnsureChatID(context.Background())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}

	require.Eventually(t, func() bool { return backend.acquires.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	assert.Equal(t, int32(1), backend.acquires.Load())
	for _, id := range ids {
		assert.Equal(t, "chat-1", id)
	}
}

func TestSend_InitFailureSkipsPost(t *testing.T) {
	backend := &fakeBackend{acquireFn: func() (string, error) {
		return "", errors.New("boom")
	}}
	svc := chat.NewService(backend, openSession(t, session.NewMemoryStore(), "tab"))

	_, err := svc.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize chat")
	assert.Empty(t, backend.posts)
	assert.Empty(t, svc.ChatID())
}

func TestSend_PostFailureKeepsChatID(t *testing.T) {
	backend := &fakeBackend{postErr: errors.New("bad gateway")}
	svc := chat.NewService(backend, openSession(t, session.NewMemoryStore(), "tab"))

	res, err := svc.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message")
	assert.Equal(t, "chat-1", res.ChatID)
	assert.Equal(t, "chat-1", svc.ChatID())
}

func TestHistory_RequiresSession(t *testing.T) {
	svc := chat.NewService(&fakeBackend{}, openSession(t, session.NewMemoryStore(), "tab"))

	_, err := svc.History(context.Background())

	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSession_PersistsPerTab(t *testing.T) {
	store := session.NewFileStore(t.TempDir())
	backend := &fakeBackend{}

	svc := chat.NewService(backend, openSession(t, store, "tab-a"))
	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)

	// Restart in the same tab resumes the chat.
	resumed := chat.NewService(backend, openSession(t, store, "tab-a"))
	assert.Equal(t, "chat-1", resumed.ChatID())
	history, err := resumed.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// A new tab starts without one.
	fresh := chat.NewService(backend, openSession(t, store, "tab-b"))
	assert.Empty(t, fresh.ChatID())
}

func TestReportEnd(t *testing.T) {
	store := session.NewMemoryStore()
	backend := &fakeBackend{}
	svc := chat.NewService(backend, openSession(t, store, "tab"))

	require.NoError(t, svc.ReportEnd(context.Background()))
	assert.Equal(t, 0, backend.reports, "nothing to report without a chat")

	_, err := svc.EnsureChatID(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.ReportEnd(context.Background()))
	assert.Equal(t, 1, backend.reports)

	stored, err := store.Load("tab")
	require.NoError(t, err)
	assert.True(t, stored.Ended)
	assert.Equal(t, "chat-1", stored.ChatID)
}

func TestService_AgainstMockBackend(t *testing.T) {
	backend := mockbackend.New(nil)
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	svc := chat.NewService(api.NewClient(srv.URL), openSession(t, session.NewMemoryStore(), "tab"))

	res, err := svc.Send(context.Background(), "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, mockbackend.DefaultReply("Bonjour"), res.Reply)

	history, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.RoleCustomer, history[0].Role)
	assert.Equal(t, chat.RoleAgent, history[1].Role)

	backend.FailWith(mockbackend.RoutePostMessage, http.StatusInternalServerError)
	_, err = svc.Send(context.Background(), "again")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))

	<-svc.Beacon()
	_, reported := backend.LastActivity(res.ChatID)
	assert.True(t, reported)
}

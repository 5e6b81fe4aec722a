package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Context is the explicitly passed session object for one tab. It is created
// with Open, handed to every component that needs the chat id, and torn down
// with Close when the client exits. Safe for concurrent use.
type Context struct {
	store Store
	tab   string
	now   func() time.Time

	mu      sync.Mutex
	current Session
}

// Open loads the stored session for tab, if any.
func Open(store Store, tab string) (*Context, error) {
	c := &Context{store: store, tab: tab, now: time.Now}

	s, err := store.Load(tab)
	switch {
	case err == nil:
		c.current = s
		slog.Info("session_restored", "tab", tab, "chat_id", s.ChatID)
	case errors.Is(err, ErrNoSession):
		slog.Debug("session_none_stored", "tab", tab)
	default:
		return nil, err
	}
	return c, nil
}

// Tab returns the tab identifier this context is scoped to.
func (c *Context) Tab() string { return c.tab }

// ChatID returns the established chat id, or "" when none exists yet.
func (c *Context) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.ChatID
}

// Snapshot returns a copy of the current session record.
func (c *Context) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Establish records a newly acquired chat id and persists it.
func (c *Context) Establish(chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.current = Session{
		ChatID:       chatID,
		CreatedAt:    now,
		LastActivity: now,
	}
	return c.store.Save(c.tab, c.current)
}

// Touch updates the last-activity timestamp.
func (c *Context) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.ChatID == "" {
		return
	}
	c.current.LastActivity = c.now()
	c.current.Ended = false
	if err := c.store.Save(c.tab, c.current); err != nil {
		slog.Warn("session_touch_failed", "tab", c.tab, "error", err)
	}
}

// Close tears the context down: the session is marked as ended but the id
// is kept so a restart in the same tab resumes the chat.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.ChatID == "" {
		return nil
	}
	c.current.LastActivity = c.now()
	c.current.Ended = true
	return c.store.Save(c.tab, c.current)
}

// Forget deletes the stored session so the next start acquires a new id.
func (c *Context) Forget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = Session{}
	return c.store.Delete(c.tab)
}

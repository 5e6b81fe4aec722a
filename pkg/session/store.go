// Package session keeps the chat session id for the lifetime of one terminal
// tab: it survives restarts of the client inside that tab, while a new tab
// starts without one.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// ErrNoSession is returned by Store.Load when the tab has no stored session.
var ErrNoSession = errors.New("no stored session")

// Session is the tab-scoped record of a backend chat.
type Session struct {
	ChatID       string    `json:"chat_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Ended        bool      `json:"ended,omitempty"`
}

// Store persists one Session per tab.
type Store interface {
	Load(tab string) (Session, error)
	Save(tab string, s Session) error
	Delete(tab string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Load(tab string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tab]
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (m *MemoryStore) Save(tab string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tab] = s
	return nil
}

func (m *MemoryStore) Delete(tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tab)
	return nil
}

// FileStore keeps one JSON file per tab under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir (created lazily).
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var unsafeTabChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// path maps a tab to its file. The readable part is sanitized, so a short
// hash of the raw id keeps distinct tabs in distinct files.
func (f *FileStore) path(tab string) string {
	if tab == "" {
		return filepath.Join(f.dir, "default.json")
	}
	sum := sha256.Sum256([]byte(tab))
	name := unsafeTabChars.ReplaceAllString(tab, "_")
	return filepath.Join(f.dir, name+"-"+hex.EncodeToString(sum[:4])+".json")
}

func (f *FileStore) Load(tab string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(tab))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to parse session: %w", err)
	}
	if s.ChatID == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *FileStore) Save(tab string, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Readers never observe a partially written file.
	target := f.path(tab)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(tab string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(tab)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

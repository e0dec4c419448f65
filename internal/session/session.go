// Package session persists the signed-in user between runs
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Key is the storage key holding the serialized session
const Key = "user"

// ErrMalformedSession is returned by Load when stored data could not be
// used. The bad entry has already been removed.
var ErrMalformedSession = errors.New("malformed stored session")

// Session is the signed-in user
type Session struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// Manager owns the current session. Construct one per process and pass it
// to whatever needs the signed-in user.
type Manager struct {
	storage Storage
	logger  *slog.Logger

	mu      sync.RWMutex
	current *Session
}

func NewManager(storage Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{storage: storage, logger: logger}
}

// Load reads the stored session. It returns nil, nil when nobody is signed in.
func (m *Manager) Load() (*Session, error) {
	raw, ok, err := m.storage.Get(Key)
	if errors.Is(err, ErrCorruptStorage) {
		m.logger.Warn("discarding corrupt session storage", "error", err)
		return nil, m.discard()
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		m.set(nil)
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.ID == 0 || s.Email == "" {
		m.logger.Warn("discarding malformed stored session", "error", err)
		return nil, m.discard()
	}
	m.set(&s)
	return &s, nil
}

// discard drops the stored entry and reports it as malformed
func (m *Manager) discard() error {
	m.set(nil)
	if err := m.storage.Delete(Key); err != nil {
		return fmt.Errorf("clear malformed session: %w", err)
	}
	return ErrMalformedSession
}

func (m *Manager) Save(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.storage.Set(Key, string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.set(&s)
	return nil
}

func (m *Manager) Clear() error {
	m.set(nil)
	if err := m.storage.Delete(Key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the session last loaded or saved
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Token returns the bearer token of the current session, or ""
func (m *Manager) Token() string {
	s, _ := m.Current()
	return s.Token
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

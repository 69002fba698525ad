package session

import (
	"sync"
	"time"

	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

// Manager an in-memory session store with idle expiry. Sessions are
// scoped to their owner: lookups by another user behave exactly like
// lookups of an unknown session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager and starts its cleanup loop
func NewManager(ttl, cleanupInterval time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop(cleanupInterval)
	return m
}

// Create opens a new session for the user
func (m *Manager) Create(userID string) *Session {
	s := newSession(userID)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	common.LogDebug("session created",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
	)
	return s
}

// Get returns the user's session by id. Expired, unknown and
// foreign sessions all report not found.
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || s.UserID != userID {
		return nil, common.ErrNotFound.WithMessage("session not found")
	}
	if s.expired(m.ttl, time.Now()) {
		m.Delete(id)
		return nil, common.ErrNotFound.WithMessage("session expired")
	}

	s.touch()
	return s, nil
}

// Delete removes a session
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop terminates the cleanup loop
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.expired(m.ttl, now) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range stale {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	common.LogDebug("expired sessions removed", zap.Int("count", len(stale)))
}

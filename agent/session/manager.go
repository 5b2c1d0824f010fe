package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 24 * time.Hour

// Manager owns the in-memory session map. Reads and map mutations are guarded
// by an RWMutex; mutation of an individual session's fields is confined to the
// single flow handling that identifier's query. Overlapping queries for the
// same identifier are an accepted race, not a contract.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration

	now func() time.Time
}

func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Get returns the session for identifier, creating it on first access, and
// refreshes LastInteraction.
func (m *Manager) Get(identifier string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[identifier]
	if !ok {
		s = &Session{
			Identifier:      identifier,
			History:         []HistoryItem{},
			LastInteraction: m.now(),
		}
		m.sessions[identifier] = s
	}
	s.LastInteraction = m.now()
	return s
}

// AppendHistory records one conversation turn, keeping only the most recent
// entries (fixed sliding window, oldest dropped first).
func (m *Manager) AppendHistory(identifier, role, content string) {
	s := m.Get(identifier)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.appendHistory(role, content, m.now())
}

// Count reports how many sessions are live.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Lookup is a read-only fetch for diagnostics. It never creates a session and
// does not refresh LastInteraction.
func (m *Manager) Lookup(identifier string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[identifier]
	return s, ok
}

// Sweep removes every session idle longer than the configured timeout and
// returns how many were evicted.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.timeout)
	evicted := 0
	for id, s := range m.sessions {
		if s.LastInteraction.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
			log.Debug().Str("identifier", id).Msg("evicted idle session")
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a ticker whose interval equals the session
// timeout, until ctx is cancelled. It runs independently of request handling.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.timeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					log.Info().Int("evicted", n).Msg("session sweep completed")
				}
			}
		}
	}()
}

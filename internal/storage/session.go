package storage

import (
	"context"
	"sync"

	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

type SessionManager struct {
	Sessions map[string]*goidc.Session
	mu       sync.RWMutex
	maxSize  int
}

// NewSessionManager creates a session manager holding at most maxSize
// sessions. When full, the oldest session is evicted. A non positive maxSize
// means no limit.
func NewSessionManager(maxSize int) *SessionManager {
	return &SessionManager{
		Sessions: make(map[string]*goidc.Session),
		maxSize:  maxSize,
	}
}

func (m *SessionManager) Save(_ context.Context, session *goidc.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Sessions[session.ID]; !exists && m.maxSize > 0 && len(m.Sessions) >= m.maxSize {
		removeOldest(m.Sessions, func(s *goidc.Session) int {
			return s.CreatedAtTimestamp
		})
	}

	m.Sessions[session.ID] = session
	return nil
}

func (m *SessionManager) Session(_ context.Context, id string) (*goidc.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.Sessions[id]
	if !exists || session.IsExpired(timeutil.TimestampNow()) {
		return nil, goidc.ErrNotFound
	}

	return session, nil
}

func (m *SessionManager) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, id)
	return nil
}

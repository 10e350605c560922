package memory

import (
	"context"
	"sync"
	"time"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
)

type sessionKey struct {
	userID    int64
	tokenHash string
}

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing and local development - data is lost on
// restart.
type SessionStore struct {
	mu sync.RWMutex

	sessions map[sessionKey]*models.Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[sessionKey]*models.Session),
	}
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[sessionKey{session.UserID, session.TokenHash}] = &clone

	return nil
}

// Validate returns the session iff the (user id, token hash) pair matches an
// unexpired record. Expired rows report the same miss as absent ones.
func (s *SessionStore) Validate(ctx context.Context, userID int64, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionKey{userID, tokenHash}]
	if !exists || session.IsExpired() {
		return nil, store.ErrSessionNotFound
	}

	clone := *session
	return &clone, nil
}

// Touch updates last_seen_at. A miss is not an error.
func (s *SessionStore) Touch(ctx context.Context, userID int64, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.sessions[sessionKey{userID, tokenHash}]; exists {
		session.LastSeenAt = time.Now()
	}
	return nil
}

// Revoke deletes the matching record. A miss is not an error.
func (s *SessionStore) Revoke(ctx context.Context, userID int64, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionKey{userID, tokenHash})
	return nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []sessionKey
	now := time.Now()

	for key, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			toDelete = append(toDelete, key)
		}
	}

	for _, key := range toDelete {
		delete(s.sessions, key)
	}

	return len(toDelete), nil
}

var _ store.SessionStore = (*SessionStore)(nil)

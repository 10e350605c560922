package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is proof of an authenticated browser. Only the SHA-256 hash of the
// session token is persisted; the raw token lives in the signed browser
// cookie and is never stored or logged. A user may hold many concurrent
// sessions, one per device.
type Session struct {
	SessionID uuid.UUID // UUIDv7 row id
	UserID    int64
	TokenHash string // hex SHA-256 of the raw token

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time

	// Audit metadata captured at login
	IP        string
	UserAgent string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

package store

import (
	"context"

	"github.com/doorman-auth/doorman/internal/models"
)

// SessionStore manages server-side session records keyed by (user id, token
// hash). Only token hashes cross this boundary; raw tokens stay with the
// browser.
type SessionStore interface {
	// Create inserts a new session record.
	Create(ctx context.Context, session *models.Session) error

	// Validate returns the session iff a record matches the user id and
	// token hash and has not expired. Any miss, including expiry, is
	// ErrSessionNotFound; expired rows are indistinguishable from absent
	// ones to the caller.
	Validate(ctx context.Context, userID int64, tokenHash string) (*models.Session, error)

	// Touch updates last_seen_at to now. Best-effort; a miss is not an
	// error.
	Touch(ctx context.Context, userID int64, tokenHash string) error

	// Revoke deletes the matching record. A miss is not an error: the
	// session may already have expired or been revoked elsewhere.
	Revoke(ctx context.Context, userID int64, tokenHash string) error

	// DeleteExpired removes expired rows and returns the count. Optional
	// housekeeping; validation never depends on it running.
	DeleteExpired(ctx context.Context) (int, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (
			session_id, user_id, token_hash,
			created_at, expires_at, last_seen_at,
			ip, user_agent
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::inet, $8
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ip any
	if session.IP != "" {
		ip = session.IP
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.UserID,
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastSeenAt,
		ip,
		session.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Int64("user_id", session.UserID).
		Msg("Created session")

	return nil
}

// Validate returns the session iff the (user id, token hash) pair matches a
// record with expires_at strictly in the future. Expiry is enforced in the
// query itself; no background reaper is required for correctness.
func (s *SessionStore) Validate(ctx context.Context, userID int64, tokenHash string) (*models.Session, error) {
	query := `
		SELECT
			session_id, user_id, token_hash,
			created_at, expires_at, last_seen_at,
			COALESCE(ip::text, ''), user_agent
		FROM user_sessions
		WHERE user_id = $1
		  AND token_hash = $2
		  AND expires_at > now()
	`

	var session models.Session
	err := s.pool.QueryRow(ctx, query, userID, tokenHash).Scan(
		&session.SessionID,
		&session.UserID,
		&session.TokenHash,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastSeenAt,
		&session.IP,
		&session.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to validate session: %w", mapPostgresError(err))
	}

	return &session, nil
}

// Touch updates last_seen_at to now. Best-effort; a miss is not an error.
func (s *SessionStore) Touch(ctx context.Context, userID int64, tokenHash string) error {
	query := `
		UPDATE user_sessions
		SET last_seen_at = now()
		WHERE user_id = $1 AND token_hash = $2
	`

	if _, err := s.pool.Exec(ctx, query, userID, tokenHash); err != nil {
		return fmt.Errorf("failed to touch session: %w", mapPostgresError(err))
	}
	return nil
}

// Revoke deletes the matching record. Revoking one session leaves the user's
// other sessions intact, and a miss is not an error.
func (s *SessionStore) Revoke(ctx context.Context, userID int64, tokenHash string) error {
	query := `
		DELETE FROM user_sessions
		WHERE user_id = $1 AND token_hash = $2
	`

	if _, err := s.pool.Exec(ctx, query, userID, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke session: %w", mapPostgresError(err))
	}
	return nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	return int(tag.RowsAffected()), nil
}

var _ store.SessionStore = (*SessionStore)(nil)

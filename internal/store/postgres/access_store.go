package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/doorman-auth/doorman/internal/store"
)

// AccessStore implements store.AccessStore using PostgreSQL. Role and
// permission rows are reference data seeded by migration; this store only
// reads them and mutates the user_roles association.
type AccessStore struct {
	pool *pgxpool.Pool
}

// NewAccessStore creates a new PostgreSQL-backed access store.
func NewAccessStore(pool *pgxpool.Pool) *AccessStore {
	return &AccessStore{
		pool: pool,
	}
}

// RolesOf returns the user's distinct role keys, sorted lexicographically.
func (s *AccessStore) RolesOf(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT r.role_key
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.role_key
	`

	return s.queryKeys(ctx, query, userID)
}

// PermissionsOf returns the distinct permission keys granted by the user's
// roles, sorted lexicographically. Always computed fresh from the two
// association tables.
func (s *AccessStore) PermissionsOf(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT p.perm_key
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.perm_id
		WHERE ur.user_id = $1
		ORDER BY p.perm_key
	`

	return s.queryKeys(ctx, query, userID)
}

func (s *AccessStore) queryKeys(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access keys: %w", mapPostgresError(err))
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key rows: %w", mapPostgresError(err))
	}

	return keys, nil
}

// RoleExists reports whether a role key is configured.
func (s *AccessStore) RoleExists(ctx context.Context, roleKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM roles WHERE role_key = $1)`, roleKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", mapPostgresError(err))
	}

	return exists, nil
}

// AssignRole attaches a role to a user. An unknown role key is reported as
// assigned=false, not an error; an already-held role is a no-op.
func (s *AccessStore) AssignRole(ctx context.Context, userID int64, roleKey string) (bool, error) {
	var roleID int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM roles WHERE role_key = $1`, roleKey).Scan(&roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up role: %w", mapPostgresError(err))
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("failed to assign role: %w", mapPostgresError(err))
	}

	return true, nil
}

// ReplaceRoles swaps the user's assignments for the recognized subset of
// roleKeys inside a single transaction, so no reader observes the window
// between delete and insert. Unknown keys come back in skipped.
func (s *AccessStore) ReplaceRoles(ctx context.Context, userID int64, roleKeys []string) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	// Resolve the recognized keys up front
	rows, err := tx.Query(ctx, `SELECT id, role_key FROM roles WHERE role_key = ANY($1)`, roleKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role keys: %w", mapPostgresError(err))
	}

	known := make(map[string]int64)
	for rows.Next() {
		var (
			id  int64
			key string
		)
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		known[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read role rows: %w", mapPostgresError(err))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to clear role assignments: %w", mapPostgresError(err))
	}

	skipped := []string{}
	inserted := make(map[int64]struct{})
	for _, roleKey := range roleKeys {
		roleID, ok := known[roleKey]
		if !ok {
			skipped = append(skipped, roleKey)
			continue
		}
		if _, dup := inserted[roleID]; dup {
			continue
		}
		inserted[roleID] = struct{}{}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			VALUES ($1, $2)
		`, userID, roleID); err != nil {
			return nil, fmt.Errorf("failed to insert role assignment: %w", mapPostgresError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit role replacement: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("user_id", userID).
		Int("assigned", len(inserted)).
		Strs("skipped", skipped).
		Msg("Replaced role assignments")

	return skipped, nil
}

var _ store.AccessStore = (*AccessStore)(nil)

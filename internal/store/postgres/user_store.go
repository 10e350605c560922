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

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

// Create inserts a new user and returns its id. A duplicate email surfaces
// as store.ErrEmailTaken whether caught here or by the unique index.
func (s *UserStore) Create(ctx context.Context, user *models.User) (int64, error) {
	query := `
		INSERT INTO users (email, password_hash, name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	// NULL name rather than empty string, matching the nullable column
	var name any
	if user.Name != "" {
		name = user.Name
	}

	var id int64
	err := s.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		name,
		user.IsActive,
	).Scan(&id)
	if err != nil {
		if mapped := mapPostgresError(err); errors.Is(mapped, store.ErrEmailTaken) {
			return 0, store.ErrEmailTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	log.Debug().Int64("user_id", id).Msg("Created user")

	return id, nil
}

// GetByEmail retrieves a user by its normalized email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, `WHERE email = $1`, email)
}

// GetByID retrieves a user by id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

func (s *UserStore) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), is_active, created_at
		FROM users ` + where

	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}

	return &user, nil
}

// List returns up to limit users, newest first.
func (s *UserStore) List(ctx context.Context, limit int) ([]*models.User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(name, ''), is_active, created_at
		FROM users
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.Name,
			&user.IsActive,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", mapPostgresError(err))
	}

	return users, nil
}

// SetActive flips the active flag.
func (s *UserStore) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user active flag: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

var _ store.UserStore = (*UserStore)(nil)

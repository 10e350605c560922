package store

import (
	"context"

	"github.com/doorman-auth/doorman/internal/models"
)

// UserStore manages credential records. Callers normalize emails to
// lowercase before they reach the store; the store enforces uniqueness.
type UserStore interface {
	// Create inserts a new user and returns its id. A duplicate email is
	// reported as ErrEmailTaken, including when the duplicate is only
	// detected by the storage layer's uniqueness constraint (two concurrent
	// registrations racing past the pre-check).
	Create(ctx context.Context, user *models.User) (int64, error)

	// GetByEmail retrieves a user by its normalized email address.
	// Returns ErrUserNotFound when no such user exists.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID retrieves a user by id. Returns ErrUserNotFound on a miss.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// List returns up to limit users, newest first.
	List(ctx context.Context, limit int) ([]*models.User, error)

	// SetActive flips the active flag. Deactivated users keep their rows
	// and sessions but fail every identity resolution.
	SetActive(ctx context.Context, id int64, active bool) error
}

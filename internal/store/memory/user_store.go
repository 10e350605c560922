package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
// This implementation is for testing and local development - data is lost on
// restart.
type UserStore struct {
	mu sync.RWMutex

	nextID       int64
	users        map[int64]*models.User
	usersByEmail map[string]int64 // lowercased email -> user id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		nextID:       1,
		users:        make(map[int64]*models.User),
		usersByEmail: make(map[string]int64),
	}
}

// Create inserts a new user, enforcing email uniqueness the way the unique
// index does in postgres.
func (s *UserStore) Create(ctx context.Context, user *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.usersByEmail[key]; exists {
		return 0, store.ErrEmailTaken
	}

	clone := *user
	clone.ID = s.nextID
	s.nextID++
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}

	s.users[clone.ID] = &clone
	s.usersByEmail[key] = clone.ID

	return clone.ID, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.usersByEmail[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *s.users[id]
	return &clone, nil
}

// GetByID retrieves a user by id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// List returns up to limit users, newest first.
func (s *UserStore) List(ctx context.Context, limit int) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		clone := *user
		users = append(users, &clone)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// SetActive flips the active flag.
func (s *UserStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.IsActive = active
	return nil
}

var _ store.UserStore = (*UserStore)(nil)

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
	"github.com/doorman-auth/doorman/internal/token"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, users *UserStore, email string) int64 {
	t.Helper()

	id, err := users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Name:         "Test User",
		IsActive:     true,
	})
	require.NoError(t, err)
	return id
}

func createTestSession(t *testing.T, ctx context.Context, sessions *SessionStore, userID int64, ttl time.Duration) string {
	t.Helper()

	_, hash, err := token.New()
	require.NoError(t, err)

	sessionID, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sessions.Create(ctx, &models.Session{
		SessionID:  sessionID,
		UserID:     userID,
		TokenHash:  hash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: now,
		IP:         "203.0.113.7",
		UserAgent:  "integration-test",
	}))

	return hash
}

func TestIntegration_UserStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)

	t.Run("create and fetch", func(t *testing.T) {
		id := createTestUser(t, ctx, users, "a@ex.com")

		byEmail, err := users.GetByEmail(ctx, "a@ex.com")
		require.NoError(t, err)
		require.Equal(t, id, byEmail.ID)
		require.True(t, byEmail.IsActive)
		require.Equal(t, "Test User", byEmail.Name)

		byID, err := users.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "a@ex.com", byID.Email)
	})

	t.Run("duplicate email maps to ErrEmailTaken", func(t *testing.T) {
		_, err := users.Create(ctx, &models.User{
			Email:        "a@ex.com",
			PasswordHash: "x",
			IsActive:     true,
		})
		require.ErrorIs(t, err, store.ErrEmailTaken)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := users.GetByEmail(ctx, "missing@ex.com")
		require.ErrorIs(t, err, store.ErrUserNotFound)

		err = users.SetActive(ctx, 99999, false)
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("set active and list", func(t *testing.T) {
		second := createTestUser(t, ctx, users, "b@ex.com")
		require.NoError(t, users.SetActive(ctx, second, false))

		list, err := users.List(ctx, 200)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, second, list[0].ID) // newest first
		require.False(t, list[0].IsActive)
	})
}

func TestIntegration_SessionStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	sessions := NewSessionStore(pool)

	userID := createTestUser(t, ctx, users, "sessions@ex.com")

	t.Run("validate round trip", func(t *testing.T) {
		hash := createTestSession(t, ctx, sessions, userID, time.Hour)

		session, err := sessions.Validate(ctx, userID, hash)
		require.NoError(t, err)
		require.Equal(t, userID, session.UserID)
		require.Equal(t, "203.0.113.7", session.IP)
		require.Equal(t, "integration-test", session.UserAgent)
	})

	t.Run("expired session is invisible", func(t *testing.T) {
		hash := createTestSession(t, ctx, sessions, userID, -time.Minute)

		_, err := sessions.Validate(ctx, userID, hash)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("touch bumps last_seen only", func(t *testing.T) {
		hash := createTestSession(t, ctx, sessions, userID, time.Hour)

		before, err := sessions.Validate(ctx, userID, hash)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, sessions.Touch(ctx, userID, hash))

		after, err := sessions.Validate(ctx, userID, hash)
		require.NoError(t, err)
		require.True(t, after.LastSeenAt.After(before.LastSeenAt))
		require.WithinDuration(t, before.ExpiresAt, after.ExpiresAt, time.Millisecond)
	})

	t.Run("revoke removes one session", func(t *testing.T) {
		first := createTestSession(t, ctx, sessions, userID, time.Hour)
		second := createTestSession(t, ctx, sessions, userID, time.Hour)

		require.NoError(t, sessions.Revoke(ctx, userID, first))

		_, err := sessions.Validate(ctx, userID, first)
		require.ErrorIs(t, err, store.ErrSessionNotFound)

		_, err = sessions.Validate(ctx, userID, second)
		require.NoError(t, err)

		// revoking again is a no-op
		require.NoError(t, sessions.Revoke(ctx, userID, first))
	})

	t.Run("delete expired", func(t *testing.T) {
		createTestSession(t, ctx, sessions, userID, -time.Hour)

		deleted, err := sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, deleted, 1)
	})
}

func TestIntegration_AccessStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	users := NewUserStore(pool)
	access := NewAccessStore(pool)

	userID := createTestUser(t, ctx, users, "access@ex.com")

	t.Run("seeded roles exist", func(t *testing.T) {
		for _, key := range []string{"admin", "user"} {
			exists, err := access.RoleExists(ctx, key)
			require.NoError(t, err)
			require.True(t, exists)
		}

		exists, err := access.RoleExists(ctx, "bogus")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("assign and resolve", func(t *testing.T) {
		assigned, err := access.AssignRole(ctx, userID, "admin")
		require.NoError(t, err)
		require.True(t, assigned)

		// assigning twice is fine
		assigned, err = access.AssignRole(ctx, userID, "admin")
		require.NoError(t, err)
		require.True(t, assigned)

		assigned, err = access.AssignRole(ctx, userID, "bogus")
		require.NoError(t, err)
		require.False(t, assigned)

		roles, err := access.RolesOf(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, []string{"admin"}, roles)

		perms, err := access.PermissionsOf(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, []string{"manage_users"}, perms)
	})

	t.Run("replace roles", func(t *testing.T) {
		skipped, err := access.ReplaceRoles(ctx, userID, []string{"user", "bogus", "user"})
		require.NoError(t, err)
		require.Equal(t, []string{"bogus"}, skipped)

		roles, err := access.RolesOf(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, []string{"user"}, roles)

		// permissions are derived, so the admin grant is gone
		perms, err := access.PermissionsOf(ctx, userID)
		require.NoError(t, err)
		require.Empty(t, perms)

		skipped, err = access.ReplaceRoles(ctx, userID, nil)
		require.NoError(t, err)
		require.Empty(t, skipped)

		roles, err = access.RolesOf(ctx, userID)
		require.NoError(t, err)
		require.Empty(t, roles)
	})
}

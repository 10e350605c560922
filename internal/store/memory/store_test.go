package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
)

func TestUserStore(t *testing.T) {
	ctx := t.Context()
	users := NewUserStore()

	id, err := users.Create(ctx, &models.User{
		Email:        "a@ex.com",
		PasswordHash: "hash",
		Name:         "Ada",
		IsActive:     true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	// uniqueness is case-insensitive, like the unique index over
	// lowercased emails in postgres
	_, err = users.Create(ctx, &models.User{Email: "A@EX.com", PasswordHash: "x"})
	require.ErrorIs(t, err, store.ErrEmailTaken)

	user, err := users.GetByEmail(ctx, "A@Ex.com")
	require.NoError(t, err)
	require.Equal(t, id, user.ID)

	_, err = users.GetByEmail(ctx, "missing@ex.com")
	require.ErrorIs(t, err, store.ErrUserNotFound)

	// reads hand out clones, not the stored row
	user.Name = "changed"
	fresh, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ada", fresh.Name)

	require.NoError(t, users.SetActive(ctx, id, false))
	fresh, err = users.GetByID(ctx, id)
	require.NoError(t, err)
	require.False(t, fresh.IsActive)

	require.ErrorIs(t, users.SetActive(ctx, 999, true), store.ErrUserNotFound)
}

func TestUserStoreList(t *testing.T) {
	ctx := t.Context()
	users := NewUserStore()

	for _, email := range []string{"a@ex.com", "b@ex.com", "c@ex.com"} {
		_, err := users.Create(ctx, &models.User{Email: email, PasswordHash: "x", IsActive: true})
		require.NoError(t, err)
	}

	list, err := users.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "c@ex.com", list[0].Email)
	require.Equal(t, "b@ex.com", list[1].Email)
}

func newSession(t *testing.T, userID int64, tokenHash string, ttl time.Duration) *models.Session {
	t.Helper()

	sessionID, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	return &models.Session{
		SessionID:  sessionID,
		UserID:     userID,
		TokenHash:  tokenHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: now,
	}
}

func TestSessionStore(t *testing.T) {
	ctx := t.Context()
	sessions := NewSessionStore()

	require.NoError(t, sessions.Create(ctx, newSession(t, 1, "aaa", time.Hour)))
	require.NoError(t, sessions.Create(ctx, newSession(t, 1, "bbb", time.Hour)))
	require.NoError(t, sessions.Create(ctx, newSession(t, 1, "old", -time.Minute)))

	session, err := sessions.Validate(ctx, 1, "aaa")
	require.NoError(t, err)
	require.Equal(t, int64(1), session.UserID)

	// wrong pair and expired row miss identically
	_, err = sessions.Validate(ctx, 2, "aaa")
	require.ErrorIs(t, err, store.ErrSessionNotFound)
	_, err = sessions.Validate(ctx, 1, "old")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	require.NoError(t, sessions.Revoke(ctx, 1, "aaa"))
	_, err = sessions.Validate(ctx, 1, "aaa")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	// the other session is untouched
	_, err = sessions.Validate(ctx, 1, "bbb")
	require.NoError(t, err)

	// misses are not errors
	require.NoError(t, sessions.Revoke(ctx, 1, "aaa"))
	require.NoError(t, sessions.Touch(ctx, 9, "zzz"))

	deleted, err := sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}

func TestAccessStore(t *testing.T) {
	ctx := t.Context()
	access := NewAccessStore()
	access.SeedRole("admin", "manage_users", "view_reports")
	access.SeedRole("editor", "view_reports")
	access.SeedRole("user")

	exists, err := access.RoleExists(ctx, "admin")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = access.RoleExists(ctx, "bogus")
	require.NoError(t, err)
	require.False(t, exists)

	assigned, err := access.AssignRole(ctx, 1, "admin")
	require.NoError(t, err)
	require.True(t, assigned)

	assigned, err = access.AssignRole(ctx, 1, "editor")
	require.NoError(t, err)
	require.True(t, assigned)

	assigned, err = access.AssignRole(ctx, 1, "bogus")
	require.NoError(t, err)
	require.False(t, assigned)

	roles, err := access.RolesOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "editor"}, roles)

	// overlapping grants dedupe, result stays sorted
	perms, err := access.PermissionsOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"manage_users", "view_reports"}, perms)

	skipped, err := access.ReplaceRoles(ctx, 1, []string{"user", "ghost"})
	require.NoError(t, err)
	require.Equal(t, []string{"ghost"}, skipped)

	roles, err = access.RolesOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, roles)

	perms, err = access.PermissionsOf(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms)

	// a user with no assignments resolves to empty lists, not errors
	roles, err = access.RolesOf(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, roles)
}

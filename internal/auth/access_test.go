package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/internal/store"
	"github.com/doorman-auth/doorman/internal/websession"
)

func TestUpdateUserAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.engine.Register(ctx, &websession.State{}, "a@ex.com", "password1", "", RequestMeta{})
	require.NoError(t, err)
	userID := result.User.ID

	skipped, err := f.engine.UpdateUserAccess(ctx, userID, nil, []string{" admin ", "user", "", "bogus"})
	require.NoError(t, err)
	require.Equal(t, []string{"bogus"}, skipped)

	user, err := f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, user.IsActive)

	roles, err := f.access.RolesOf(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "user"}, roles)

	// permissions follow the role set immediately
	perms, err := f.access.PermissionsOf(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, []string{"manage_users"}, perms)

	// removal works the same way, and the activation flag follows when given
	inactive := false
	skipped, err = f.engine.UpdateUserAccess(ctx, userID, &inactive, nil)
	require.NoError(t, err)
	require.Empty(t, skipped)

	roles, err = f.access.RolesOf(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, roles)

	user, err = f.users.GetByID(ctx, userID)
	require.NoError(t, err)
	require.False(t, user.IsActive)
}

func TestUpdateUserAccessValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.UpdateUserAccess(ctx, 0, nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "userId", verr.Field)

	active := true
	_, err = f.engine.UpdateUserAccess(ctx, 42, &active, nil)
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.engine.Register(ctx, &websession.State{}, "first@ex.com", "password1", "First", RequestMeta{})
	require.NoError(t, err)
	second, err := f.engine.Register(ctx, &websession.State{}, "second@ex.com", "password1", "Second", RequestMeta{})
	require.NoError(t, err)

	inactive := false
	_, err = f.engine.UpdateUserAccess(ctx, second.User.ID, &inactive, []string{"admin"})
	require.NoError(t, err)

	users, err := f.engine.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	// newest first
	require.Equal(t, second.User.ID, users[0].ID)
	require.Equal(t, []string{"admin"}, users[0].Roles)
	require.Equal(t, []string{"manage_users"}, users[0].Permissions)
	require.False(t, users[0].IsActive)

	require.Equal(t, first.User.ID, users[1].ID)
	require.Equal(t, []string{"user"}, users[1].Roles)
	require.True(t, users[1].IsActive)
}

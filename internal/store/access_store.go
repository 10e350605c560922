package store

import "context"

// AccessStore resolves and mutates role assignments. Permissions are a pure
// derived view of user_roles joined to role_permissions; they are recomputed
// on every resolution and never cached in storage.
type AccessStore interface {
	// RolesOf returns the distinct role keys assigned to the user, sorted
	// lexicographically.
	RolesOf(ctx context.Context, userID int64) ([]string, error)

	// PermissionsOf returns the distinct permission keys granted by the
	// user's roles, sorted lexicographically.
	PermissionsOf(ctx context.Context, userID int64) ([]string, error)

	// RoleExists reports whether a role key is configured.
	RoleExists(ctx context.Context, roleKey string) (bool, error)

	// AssignRole attaches a role to a user. An unknown role key is skipped,
	// not an error: assigned is false and the caller decides whether to
	// surface it. Assigning an already-held role is a no-op.
	AssignRole(ctx context.Context, userID int64, roleKey string) (assigned bool, err error)

	// ReplaceRoles removes all of the user's role assignments and inserts
	// rows for each recognized, deduplicated key, atomically. Unknown keys
	// are returned in skipped rather than failing the operation.
	ReplaceRoles(ctx context.Context, userID int64, roleKeys []string) (skipped []string, err error)
}

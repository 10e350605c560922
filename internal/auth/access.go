package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/doorman-auth/doorman/internal/models"
)

// ListUsers returns the most recent users with their activation flag and
// resolved roles and permissions, for the admin surface. The caller is
// responsible for checking the caller's permission first.
func (e *Engine) ListUsers(ctx context.Context) ([]*models.AdminUserInfo, error) {
	users, err := e.users.List(ctx, adminUserListLimit)
	if err != nil {
		return nil, err
	}

	result := make([]*models.AdminUserInfo, 0, len(users))
	for _, user := range users {
		info, err := e.snapshot(ctx, user)
		if err != nil {
			return nil, err
		}
		result = append(result, &models.AdminUserInfo{
			UserInfo: *info,
			IsActive: user.IsActive,
		})
	}

	return result, nil
}

// UpdateUserAccess replaces a user's role set in full and, when isActive is
// non-nil, sets the activation flag. Unknown role keys are skipped, not
// errors, and the skipped keys are returned so the caller can report them.
func (e *Engine) UpdateUserAccess(ctx context.Context, targetUserID int64, isActive *bool, roleKeys []string) ([]string, error) {
	if targetUserID <= 0 {
		return nil, &ValidationError{Field: "userId", Message: "Invalid userId"}
	}

	keys := make([]string, 0, len(roleKeys))
	for _, key := range roleKeys {
		key = strings.TrimSpace(key)
		if key != "" {
			keys = append(keys, key)
		}
	}

	if isActive != nil {
		if err := e.users.SetActive(ctx, targetUserID, *isActive); err != nil {
			return nil, err
		}
	}

	skipped, err := e.access.ReplaceRoles(ctx, targetUserID, keys)
	if err != nil {
		return nil, err
	}

	if len(skipped) > 0 {
		log.Warn().Int64("user_id", targetUserID).Strs("roles", skipped).
			Msg("Ignored unknown role keys in access update")
	}

	log.Info().Int64("user_id", targetUserID).Strs("roles", keys).
		Msg("Updated user access")

	return skipped, nil
}

package models

import (
	"slices"
	"time"
)

// User is a stored credential record. Emails are normalized to lowercase
// before they reach the store, and the password hash is an opaque encoded
// argon2id string. Users are deactivated, never deleted.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	IsActive     bool
	CreatedAt    time.Time
}

// UserInfo is the user object returned to clients. The field names and types
// are part of the API contract consumed by the frontend and must not change.
type UserInfo struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the resolved snapshot carries the given role key.
// It tests the already-attached list and never queries the store.
func (u *UserInfo) HasRole(key string) bool {
	return slices.Contains(u.Roles, key)
}

// HasPermission reports whether the resolved snapshot carries the given
// permission key.
func (u *UserInfo) HasPermission(key string) bool {
	return slices.Contains(u.Permissions, key)
}

// AdminUserInfo is a row in the admin user listing. It extends the client
// user shape with the active flag.
type AdminUserInfo struct {
	UserInfo
	IsActive bool `json:"is_active"`
}

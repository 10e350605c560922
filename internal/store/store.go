// Package store defines the storage interfaces behind the auth engine along
// with the sentinel errors shared by all implementations. The postgres
// implementation is the production store; the memory implementation mirrors
// its semantics for tests and local development.
package store

import "errors"

// Sentinel errors for common error conditions
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrSessionNotFound = errors.New("session not found")
)

package auth

import "errors"

// ErrInvalidLogin is the single failure every login path collapses to.
// Unknown email, deactivated account and wrong password are deliberately
// indistinguishable so a caller cannot enumerate users.
var ErrInvalidLogin = errors.New("invalid login")

// ValidationError is a rejected input. Field names the offending request
// field when there is one, and both values are safe to return to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

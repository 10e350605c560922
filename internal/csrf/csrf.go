// Package csrf implements the anti-forgery token protocol consumed by the
// frontend: the token is bound to the browser session, not to a login, and
// must accompany every mutating request. A second, header-based protection
// layer is wired at the server level; this package is the one the API
// contract mandates.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/doorman-auth/doorman/internal/websession"
)

// ErrInvalidToken is returned when the submitted token is missing or does
// not match the browser session's token.
var ErrInvalidToken = errors.New("invalid CSRF token")

// Issue returns the browser session's CSRF token, generating a 256-bit
// random one if the session does not hold a token yet. Repeated calls within
// the same browser session return the same value.
func Issue(state *websession.State) (string, error) {
	if state.CSRFToken == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate CSRF token: %w", err)
		}
		state.CSRFToken = hex.EncodeToString(buf)
	}

	return state.CSRFToken, nil
}

// Verify checks the submitted token against the browser session's token
// using constant-time comparison. It fails when the session holds no token,
// the submitted value is empty, or the values differ. Must pass before any
// mutating operation runs.
func Verify(state *websession.State, submitted string) error {
	if state.CSRFToken == "" || submitted == "" {
		return ErrInvalidToken
	}

	if subtle.ConstantTimeCompare([]byte(state.CSRFToken), []byte(submitted)) != 1 {
		return ErrInvalidToken
	}

	return nil
}

// Package token generates the opaque session tokens that prove a login.
// The raw token goes to the browser inside the signed cookie; only its
// SHA-256 digest is ever persisted, so a leaked sessions table cannot be
// replayed.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// New generates a 256-bit token from a cryptographically secure source and
// returns it hex-encoded along with its digest.
func New() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}

	raw = hex.EncodeToString(buf)
	return raw, HashOf(raw), nil
}

// HashOf returns the hex SHA-256 digest of a raw token, the form stored and
// compared by the session store.
func HashOf(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

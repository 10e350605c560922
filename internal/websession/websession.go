// Package websession implements the browser session: cookie-backed state
// that exists for every client, authenticated or not. The state travels as
// an HMAC-SHA256 signed payload in a single HttpOnly cookie, so the server
// keeps no per-browser storage, and it carries the (user id, session token)
// pair plus the CSRF token bound to this browser.
package websession

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrInvalidState = errors.New("invalid browser session state")

// State is the per-browser session payload. A zero State is a valid
// anonymous browser session.
type State struct {
	UserID       int64  `json:"uid,omitempty"`
	SessionToken string `json:"tok,omitempty"`
	CSRFToken    string `json:"csrf,omitempty"`

	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Authenticated reports whether the state carries a plausible login pair.
// The pair still has to be validated against the session store.
func (s *State) Authenticated() bool {
	return s.UserID > 0 && s.SessionToken != ""
}

// Reset clears every field, including the CSRF token. A token issued before
// a reset never verifies afterwards.
func (s *State) Reset() {
	*s = State{}
}

// Config holds browser session cookie settings.
type Config struct {
	// CookieName should differ between deployments sharing a domain.
	CookieName string

	// Secret signs the cookie payload. Must be at least 32 bytes.
	Secret []byte

	// TTL bounds how long a browser session cookie stays valid.
	TTL time.Duration

	// Secure marks the cookie Secure; set when serving over TLS.
	Secure bool
}

// Manager signs, verifies and (re)issues browser session cookies.
type Manager struct {
	cfg Config
}

// NewManager validates the config and creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.CookieName == "" {
		return nil, fmt.Errorf("cookie name is required")
	}
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("cookie secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cookie TTL must be greater than 0")
	}

	return &Manager{cfg: cfg}, nil
}

// Load extracts the browser session state from the request cookie. A
// missing, malformed, tampered or expired cookie yields a fresh anonymous
// state, never an error: every request gets a usable session context.
func (m *Manager) Load(r *http.Request) *State {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return &State{}
	}

	state, err := m.decode(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding browser session cookie")
		return &State{}
	}

	return state
}

// Save stamps the state's validity window, signs it and sets the cookie on
// the response.
func (m *Manager) Save(w http.ResponseWriter, state *State) error {
	now := time.Now()
	state.IssuedAt = now
	state.ExpiresAt = now.Add(m.cfg.TTL)

	value, err := m.encode(state)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.cfg.TTL.Seconds()),
	})

	return nil
}

// Clear expires the cookie on the response.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// encode serializes the state as base64(json) + "." + base64(signature).
func (m *Manager) encode(state *State) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session state: %w", err)
	}

	encoded := base64.URLEncoding.EncodeToString(data)

	mac := hmac.New(sha256.New, m.cfg.Secret)
	mac.Write([]byte(encoded))
	signature := mac.Sum(nil)

	return encoded + "." + base64.URLEncoding.EncodeToString(signature), nil
}

// decode verifies the signature in constant time and deserializes the state.
func (m *Manager) decode(value string) (*State, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidState
	}

	encoded := parts[0]
	receivedSig, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidState
	}

	mac := hmac.New(sha256.New, m.cfg.Secret)
	mac.Write([]byte(encoded))
	expectedSig := mac.Sum(nil)

	if !hmac.Equal(receivedSig, expectedSig) {
		return nil, ErrInvalidState
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, ErrInvalidState
	}

	if time.Now().After(state.ExpiresAt) {
		return nil, ErrInvalidState
	}

	return &state, nil
}

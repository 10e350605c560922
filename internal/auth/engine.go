// Package auth implements the session and access-control engine: login,
// registration, logout and current-user resolution over the credential,
// session and access stores. The engine never touches HTTP; handlers pass in
// the browser session state and per-request metadata explicitly.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/password"
	"github.com/doorman-auth/doorman/internal/store"
	"github.com/doorman-auth/doorman/internal/token"
	"github.com/doorman-auth/doorman/internal/websession"
)

const (
	minPasswordLength  = 8
	maxUserAgentLength = 255
	adminUserListLimit = 200
)

// Config holds engine settings.
type Config struct {
	// SessionTTL is how long a login stays valid.
	SessionTTL time.Duration

	// DefaultRoleKey is assigned to every new registration. Assignment is
	// best-effort per request; ValidateDefaultRole catches a misconfigured
	// key at startup instead.
	DefaultRoleKey string

	// PasswordParams are the argon2id costs for new hashes.
	PasswordParams password.Params
}

// Engine orchestrates the auth flows over the three stores.
type Engine struct {
	users    store.UserStore
	sessions store.SessionStore
	access   store.AccessStore
	cfg      Config
}

// NewEngine creates an Engine.
func NewEngine(users store.UserStore, sessions store.SessionStore, access store.AccessStore, cfg Config) *Engine {
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.DefaultParams
	}

	return &Engine{
		users:    users,
		sessions: sessions,
		access:   access,
		cfg:      cfg,
	}
}

// RequestMeta carries per-request audit fields captured by the HTTP layer.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ValidateDefaultRole confirms the configured default role key exists.
// Called once at startup so a typo in configuration surfaces immediately
// rather than silently producing role-less registrations.
func (e *Engine) ValidateDefaultRole(ctx context.Context) error {
	exists, err := e.access.RoleExists(ctx, e.cfg.DefaultRoleKey)
	if err != nil {
		return fmt.Errorf("failed to check default role: %w", err)
	}
	if !exists {
		return fmt.Errorf("default role %q is not configured", e.cfg.DefaultRoleKey)
	}
	return nil
}

// Login verifies credentials and, on success, establishes a new session
// bound into the browser session state. All failure causes collapse to
// ErrInvalidLogin.
func (e *Engine) Login(ctx context.Context, state *websession.State, email, pw string, meta RequestMeta) (*models.UserInfo, error) {
	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInvalidLogin
	}

	ok, err := password.Verify(pw, user.PasswordHash)
	if err != nil {
		// An unparseable stored hash is an operational problem, but the
		// caller still only learns "invalid login".
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Stored password hash is malformed")
		return nil, ErrInvalidLogin
	}
	if !ok {
		return nil, ErrInvalidLogin
	}

	if err := e.establishSession(ctx, state, user.ID, meta); err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Msg("User logged in")

	return e.snapshot(ctx, user)
}

// RegisterResult is a successful registration: the resolved user snapshot
// plus any role keys that could not be assigned.
type RegisterResult struct {
	User         *models.UserInfo
	SkippedRoles []string
}

// Register creates a user, assigns the default role best-effort, and logs
// the browser in exactly as Login does. A duplicate email yields
// store.ErrEmailTaken whether it is caught by the pre-check or by the
// store's uniqueness constraint when two registrations race.
func (e *Engine) Register(ctx context.Context, state *websession.State, email, pw, name string, meta RequestMeta) (*RegisterResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if !validEmail(email) {
		return nil, &ValidationError{Field: "email", Message: "Invalid email"}
	}
	if len(pw) < minPasswordLength {
		return nil, &ValidationError{Field: "password", Message: "Password must be at least 8 characters"}
	}

	if _, err := e.users.GetByEmail(ctx, email); err == nil {
		return nil, store.ErrEmailTaken
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	hash, err := password.Hash(pw, e.cfg.PasswordParams)
	if err != nil {
		return nil, err
	}

	userID, err := e.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	})
	if err != nil {
		// ErrEmailTaken here is the race loser; same outcome as the pre-check
		return nil, err
	}

	var skipped []string
	assigned, err := e.access.AssignRole(ctx, userID, e.cfg.DefaultRoleKey)
	if err != nil {
		return nil, err
	}
	if !assigned {
		log.Warn().Str("role", e.cfg.DefaultRoleKey).Int64("user_id", userID).
			Msg("Default role not configured, registration continues without it")
		skipped = append(skipped, e.cfg.DefaultRoleKey)
	}

	if err := e.establishSession(ctx, state, userID, meta); err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", userID).Msg("User registered")

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := e.snapshot(ctx, user)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{User: info, SkippedRoles: skipped}, nil
}

// CurrentUser resolves the browser session to an authenticated user, or nil
// without error when there is none. This is the single source of truth for
// "is this request authenticated" and is safe to call on every request; the
// only side effect on success is the session touch.
func (e *Engine) CurrentUser(ctx context.Context, state *websession.State) (*models.UserInfo, error) {
	if !state.Authenticated() {
		return nil, nil
	}

	tokenHash := token.HashOf(state.SessionToken)

	session, err := e.sessions.Validate(ctx, state.UserID, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	user, err := e.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}

	// Best-effort activity tracking; a failed touch never fails resolution
	if err := e.sessions.Touch(ctx, session.UserID, tokenHash); err != nil {
		log.Warn().Err(err).Int64("user_id", session.UserID).Msg("Failed to touch session")
	}

	return e.snapshot(ctx, user)
}

// Logout revokes the browser's session record and clears all browser
// session state. A missing record is not an error: the session may already
// have expired, and a second logout is a no-op.
func (e *Engine) Logout(ctx context.Context, state *websession.State) error {
	var revokeErr error
	if state.Authenticated() {
		revokeErr = e.sessions.Revoke(ctx, state.UserID, token.HashOf(state.SessionToken))
	}

	// Browser state is cleared regardless of what the store said
	state.Reset()

	return revokeErr
}

// establishSession creates a session record and binds the raw token into the
// browser session state. The raw token is never persisted or logged.
func (e *Engine) establishSession(ctx context.Context, state *websession.State, userID int64, meta RequestMeta) error {
	raw, hash, err := token.New()
	if err != nil {
		return err
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	if err := e.sessions.Create(ctx, &models.Session{
		SessionID:  sessionID,
		UserID:     userID,
		TokenHash:  hash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.SessionTTL),
		LastSeenAt: now,
		IP:         meta.IP,
		UserAgent:  truncate(meta.UserAgent, maxUserAgentLength),
	}); err != nil {
		return err
	}

	state.UserID = userID
	state.SessionToken = raw

	return nil
}

// snapshot builds the client-facing user shape with roles and permissions
// resolved fresh from the association tables.
func (e *Engine) snapshot(ctx context.Context, user *models.User) (*models.UserInfo, error) {
	roles, err := e.access.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	permissions, err := e.access.PermissionsOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &models.UserInfo{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail is a syntactic check only; deliverability is not this layer's
// problem.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// truncate cuts s to at most n bytes without splitting a multibyte rune, so
// the result stays valid UTF-8 for storage.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

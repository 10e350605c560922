package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/csrf"
	"github.com/doorman-auth/doorman/internal/models"
	"github.com/doorman-auth/doorman/internal/store"
	"github.com/doorman-auth/doorman/internal/websession"
)

// handleCSRF returns the browser session's CSRF token, minting both the
// token and the cookie on first contact.
func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	token, err := csrf.Issue(state)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	if err := s.sessions.Save(w, state); err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// handleMe returns the current user, or null for an anonymous browser.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	user, err := s.engine.CurrentUser(r.Context(), state)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*models.UserInfo{"user": user})
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	CSRFToken string `json:"csrfToken"`
}

type userResponse struct {
	OK   bool             `json:"ok"`
	User *models.UserInfo `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := csrf.Verify(state, req.CSRFToken); err != nil {
		writeError(w, http.StatusForbidden, "Invalid CSRF token")
		return
	}

	user, err := s.engine.Login(r.Context(), state, req.Email, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLogin) {
			writeError(w, http.StatusUnauthorized, "Invalid login")
			return
		}
		writeInternalError(w, err)
		return
	}

	if err := s.sessions.Save(w, state); err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{OK: true, User: user})
}

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	CSRFToken string `json:"csrfToken"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := csrf.Verify(state, req.CSRFToken); err != nil {
		writeError(w, http.StatusForbidden, "Invalid CSRF token")
		return
	}

	result, err := s.engine.Register(r.Context(), state, req.Email, req.Password, req.Name, requestMeta(r))
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeFieldError(w, http.StatusBadRequest, verr.Message, verr.Field)
		case errors.Is(err, store.ErrEmailTaken):
			writeFieldError(w, http.StatusBadRequest, "Email already registered", "email")
		default:
			writeInternalError(w, err)
		}
		return
	}

	if err := s.sessions.Save(w, state); err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{OK: true, User: result.User})
}

type logoutRequest struct {
	CSRFToken string `json:"csrfToken"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := csrf.Verify(state, req.CSRFToken); err != nil {
		writeError(w, http.StatusForbidden, "Invalid CSRF token")
		return
	}

	if err := s.engine.Logout(r.Context(), state); err != nil {
		writeInternalError(w, err)
		return
	}

	s.sessions.Clear(w)

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireManageUsers resolves the caller and enforces the admin permission.
// Returns nil after writing the response when the caller is not allowed.
func (s *Server) requireManageUsers(w http.ResponseWriter, r *http.Request, state *websession.State) *models.UserInfo {
	user, err := s.engine.CurrentUser(r.Context(), state)
	if err != nil {
		writeInternalError(w, err)
		return nil
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil
	}
	if !user.HasPermission(ManageUsersPermission) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil
	}
	return user
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	if user := s.requireManageUsers(w, r, state); user == nil {
		return
	}

	users, err := s.engine.ListUsers(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]*models.AdminUserInfo{"users": users})
}

type updateUserAccessRequest struct {
	UserID    int64    `json:"userId"`
	Roles     []string `json:"roles"`
	IsActive  *bool    `json:"isActive"`
	CSRFToken string   `json:"csrfToken"`
}

func (s *Server) handleUpdateUserAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state := s.sessions.Load(r)

	var req updateUserAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := csrf.Verify(state, req.CSRFToken); err != nil {
		writeError(w, http.StatusForbidden, "Invalid CSRF token")
		return
	}

	if user := s.requireManageUsers(w, r, state); user == nil {
		return
	}

	skipped, err := s.engine.UpdateUserAccess(r.Context(), req.UserID, req.IsActive, req.Roles)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeFieldError(w, http.StatusBadRequest, verr.Message, verr.Field)
		case errors.Is(err, store.ErrUserNotFound):
			writeFieldError(w, http.StatusBadRequest, "Unknown userId", "userId")
		default:
			writeInternalError(w, err)
		}
		return
	}

	resp := map[string]any{"ok": true}
	if len(skipped) > 0 {
		resp["skippedRoles"] = skipped
	}
	writeJSON(w, http.StatusOK, resp)
}

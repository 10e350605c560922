// Package httpapi exposes the auth engine over JSON endpoints. Browser
// session state rides in a signed cookie; every mutating endpoint checks the
// verb and the CSRF token before any business logic runs.
package httpapi

import (
	"net/http"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/websession"
)

// ManageUsersPermission gates the admin endpoints.
const ManageUsersPermission = "manage_users"

// Server wraps the auth engine and the browser session manager.
type Server struct {
	engine   *auth.Engine
	sessions *websession.Manager
}

// NewServer creates a new server.
func NewServer(engine *auth.Engine, sessions *websession.Manager) *Server {
	return &Server{
		engine:   engine,
		sessions: sessions,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/csrf", s.handleCSRF)
	mux.HandleFunc("/me", s.handleMe)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/admin/users", s.handleAdminUsers)
	mux.HandleFunc("/admin/update-user-access", s.handleUpdateUserAccess)

	return mux
}

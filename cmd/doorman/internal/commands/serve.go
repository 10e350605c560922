package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"filippo.io/csrf"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/httpapi"
	"github.com/doorman-auth/doorman/internal/logger"
	"github.com/doorman-auth/doorman/internal/password"
	"github.com/doorman-auth/doorman/internal/store"
	memorystore "github.com/doorman-auth/doorman/internal/store/memory"
	postgresstore "github.com/doorman-auth/doorman/internal/store/postgres"
	"github.com/doorman-auth/doorman/internal/websession"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"DOORMAN_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"DOORMAN_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"DOORMAN_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"DOORMAN_CORS_ORIGINS"`

	// Session configuration
	CookieName   string        `help:"browser session cookie name" default:"_doorman" env:"DOORMAN_COOKIE_NAME"`
	CookieSecret string        `help:"secret key for HMAC signing of the session cookie" env:"DOORMAN_COOKIE_SECRET"`
	SessionTTL   time.Duration `help:"session TTL" default:"720h" env:"DOORMAN_SESSION_TTL"`
	DefaultRole  string        `help:"role assigned to new registrations" default:"user" env:"DOORMAN_DEFAULT_ROLE"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"DOORMAN_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"DOORMAN_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if len(c.CookieSecret) < 32 {
		return errors.New("cookie secret must be at least 32 bytes (--cookie-secret or DOORMAN_COOKIE_SECRET)")
	}

	// Create stores based on store type
	var (
		users    store.UserStore
		sessions store.SessionStore
		access   store.AccessStore
	)

	switch c.StoreType {
	case "postgres":
		pool, err := c.connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		users = postgresstore.NewUserStore(pool)
		sessions = postgresstore.NewSessionStore(pool)
		access = postgresstore.NewAccessStore(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		memAccess := memorystore.NewAccessStore()
		memAccess.SeedRole("admin", "manage_users")
		memAccess.SeedRole("user")

		users = memorystore.NewUserStore()
		sessions = memorystore.NewSessionStore()
		access = memAccess
		log.Info().Msg("Using in-memory stores (data is lost on restart)")
	}

	engine := auth.NewEngine(users, sessions, access, auth.Config{
		SessionTTL:     c.SessionTTL,
		DefaultRoleKey: c.DefaultRole,
		PasswordParams: password.DefaultParams,
	})

	// Fail fast on a misconfigured default role rather than skipping it on
	// every registration
	if err := engine.ValidateDefaultRole(ctx); err != nil {
		return err
	}

	// Expired sessions are invisible to Validate; sweep the rows out in the
	// background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			deleted, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to delete expired sessions")
				continue
			}
			if deleted > 0 {
				log.Info().Int("deleted", deleted).Msg("Deleted expired sessions")
			}
		}
	}()

	useTLS := c.Cert != "" && c.Key != ""

	manager, err := websession.NewManager(websession.Config{
		CookieName: c.CookieName,
		Secret:     []byte(c.CookieSecret),
		TTL:        c.SessionTTL,
		Secure:     useTLS,
	})
	if err != nil {
		return err
	}

	mux := httpapi.NewServer(engine, manager).Handler()

	// Fetch-metadata protection sits in front of the token check as a second
	// independent CSRF layer
	protection := csrf.New()
	for _, origin := range c.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}

	handler := logger.Requests(log)(withCORS(c.CORSOrigins, protection.Handler(mux)))

	server := configureHTTPServer(c.Listen, handler)

	if !useTLS {
		log.Warn().Str("addr", c.Listen).Msg("Starting HTTP server without TLS, session cookies are not marked Secure")
		return server.ListenAndServe()
	}

	if _, err := os.Stat(c.Cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
	}
	if _, err := os.Stat(c.Key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
	}

	log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
	return server.ListenAndServeTLS(c.Cert, c.Key)
}

// connectPostgres builds the shared pool, retrying the initial connection so
// the service can start ahead of its database.
func (c *ServeCmd) connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	if err := c.PostgresStore.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate postgres flags: %w", err)
	}

	poolCfg := &postgresstore.PoolConfig{
		ConnString:      c.PostgresStore.ConnString,
		MaxConns:        c.PostgresStore.MaxConns,
		MinConns:        c.PostgresStore.MinConns,
		MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
		MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
	}

	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		return postgresstore.NewPool(ctx, poolCfg)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return pool, nil
}

// withCORS adds CORS support for browser clients on other origins.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}

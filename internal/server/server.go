// ABOUTME: Server orchestrator that wires the store, scoring UI, JSON API and update worker
// ABOUTME: Owns the HTTP listener, health endpoints and graceful shutdown lifecycle

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/techscore/techscore/internal/api"
	"github.com/techscore/techscore/internal/auth"
	"github.com/techscore/techscore/internal/config"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
	"github.com/techscore/techscore/internal/webadmin"
)

// sessionSweepInterval is how often expired admin sessions are purged.
const sessionSweepInterval = 15 * time.Minute

// Server runs the techscore HTTP surfaces and background workers.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	updates    *updates.Manager
	verifier   *auth.JWTVerifier
	webAdmin   *webadmin.Admin
	httpServer *http.Server
	logger     *slog.Logger
}

// determineBaseURL resolves the external URL used in invite links.
func determineBaseURL(cfg *config.Config) string {
	if cfg.WebAdmin.BaseURL != "" {
		return cfg.WebAdmin.BaseURL
	}
	if envURL := os.Getenv("TECHSCORE_URL"); envURL != "" {
		return envURL
	}
	return "http://" + cfg.Server.HTTPAddr
}

// initStore opens the database named in config, or $TECHSCORE_DB_PATH.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("TECHSCORE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newPublisher picks the webhook publisher when a URL is configured.
func newPublisher(cfg *config.Config, verifier *auth.JWTVerifier, logger *slog.Logger) updates.Publisher {
	if cfg.Updates.WebhookURL != "" && verifier != nil {
		logger.Info("publishing updates to webhook", "url", cfg.Updates.WebhookURL)
		return updates.NewWebhookPublisher(cfg.Updates.WebhookURL, verifier, cfg.Updates.Timeout)
	}
	return updates.NewLogPublisher()
}

// New creates a Server from config. The caller must call Run, or Close if
// Run is never called.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
	}

	mgr := updates.NewManager(st, newPublisher(cfg, verifier, logger), updates.Options{
		Interval:    cfg.Updates.Interval,
		Coalesce:    cfg.Updates.Coalesce,
		BatchSize:   cfg.Updates.BatchSize,
		MaxAttempts: cfg.Updates.MaxAttempts,
	})

	s := &Server{
		config:   cfg,
		store:    st,
		updates:  mgr,
		verifier: verifier,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	if verifier != nil {
		api.New(st).RegisterRoutes(mux, auth.HTTPAuthMiddleware(st, verifier))
		logger.Info("API routes registered with JWT auth")
	} else {
		logger.Warn("API disabled - no jwt_secret configured")
	}

	s.webAdmin = webadmin.New(st, mgr, webadmin.Config{
		BaseURL:       determineBaseURL(cfg),
		SecureCookies: cfg.WebAdmin.SecureCookies,
		SessionTTL:    cfg.WebAdmin.SessionTTL,
		InviteTTL:     cfg.WebAdmin.InviteTTL,
		TeamBoats:     cfg.Scoring.TeamBoats,
		DefaultBoat:   cfg.Scoring.DefaultBoat,
	})
	s.webAdmin.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and blocks until ctx is canceled
// or a component fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		s.Close()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln alongside the background workers.
// Returns nil on graceful shutdown. The server is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if s.config.Updates.Enabled {
		g.Go(func() error { return s.updates.Run(gctx) })
	} else {
		s.logger.Info("update worker disabled; requests stay queued")
	}

	g.Go(func() error { return s.sweepSessions(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("context canceled, initiating shutdown")
		return s.gracefulShutdown()
	})

	return g.Wait()
}

// gracefulShutdown stops the HTTP server with a fresh context, since the
// run context is already canceled.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) error {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.store.DeleteExpiredAdminSessions(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to sweep expired sessions", "error", err)
			}
		}
	}
}

// Close releases the update manager and the store.
func (s *Server) Close() {
	s.updates.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close", "error", err)
	}
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 once the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// ABOUTME: Scoring web UI: configuration, store requirements and the route table
// ABOUTME: Sign-in lives in session.go, invites in invites.go, pane dispatch in pane.go

package webadmin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultInviteTTL  = 24 * time.Hour
	defaultTeamBoats  = 3
)

// Config holds UI configuration. Zero durations and counts take defaults.
type Config struct {
	// BaseURL prefixes invite links.
	BaseURL       string
	SecureCookies bool
	SessionTTL    time.Duration
	InviteTTL     time.Duration
	// TeamBoats is how many boats each team sails in a team race.
	TeamBoats int
	// DefaultBoat names the boat class used for new races.
	DefaultBoat string
}

// Store is the persistence the UI needs.
type Store interface {
	store.RegattaStore
	store.AdminStore
	store.MessageStore
	store.AuditStore
	ListUpdateRequests(ctx context.Context, regattaID string, limit int) ([]*store.UpdateRequest, error)
}

// Admin serves the scoring UI.
type Admin struct {
	store    Store
	updates  updates.Queuer
	config   Config
	registry *Registry
	logger   *slog.Logger
}

// New creates the UI handler. queuer receives an update request after
// every successful change.
func New(st Store, queuer updates.Queuer, cfg Config) *Admin {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = defaultInviteTTL
	}
	if cfg.TeamBoats <= 0 {
		cfg.TeamBoats = defaultTeamBoats
	}
	return &Admin{
		store:    st,
		updates:  queuer,
		config:   cfg,
		registry: DefaultRegistry(),
		logger:   slog.Default().With("component", "webadmin"),
	}
}

// RegisterRoutes mounts the UI on mux.
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", a.handleLoginPage)
	mux.HandleFunc("POST /login", a.handleLogin)
	mux.HandleFunc("GET /invite/{token}", a.handleInvitePage)
	mux.HandleFunc("POST /invite/{token}", a.handleInviteSignup)

	mux.HandleFunc("GET /{$}", a.requireAuth(a.handleHome))
	mux.HandleFunc("POST /logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("POST /regattas", a.requireAuth(a.handleCreateRegatta))
	mux.HandleFunc("POST /invites", a.requireAuth(a.handleCreateInvite))

	mux.HandleFunc("GET /score/{regatta}", a.requireAuth(a.handleScoreIndex))
	mux.HandleFunc("GET /score/{regatta}/{pane}", a.requireAuth(a.handlePane))
	mux.HandleFunc("POST /score/{regatta}/{pane}", a.requireAuth(a.handlePane))
	mux.HandleFunc("GET /view/{regatta}/{dialog}", a.requireAuth(a.handleDialog))

	a.logger.Info("scoring routes registered")
}

// audit appends e, logging failures.
func (a *Admin) audit(ctx context.Context, e *store.AuditEntry) {
	if err := a.store.AppendAuditLog(ctx, e); err != nil {
		a.logger.Error("failed to append audit log", "action", e.Action, "error", err)
	}
}

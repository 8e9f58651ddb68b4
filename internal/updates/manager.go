// ABOUTME: Update manager queuing regatta change notices and draining them on a ticker
// ABOUTME: Duplicate pending requests are published once; recent keys are held back

package updates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/techscore/techscore/internal/store"
)

// Activity names the aspect of a regatta that changed.
type Activity string

const (
	ActivityDetails   Activity = "details"
	ActivityFinalized Activity = "finalized"
	ActivityScore     Activity = "score"
	ActivityRotation  Activity = "rotation"
	ActivityRP        Activity = "rp"
	ActivitySummary   Activity = "summary"
	ActivityTeam      Activity = "team"
)

// Activities lists every activity.
var Activities = []Activity{
	ActivityDetails, ActivityFinalized, ActivityScore, ActivityRotation,
	ActivityRP, ActivitySummary, ActivityTeam,
}

// ErrInvalidActivity is returned for an unknown activity name.
var ErrInvalidActivity = errors.New("invalid update activity")

// Valid reports whether a is a known activity.
func (a Activity) Valid() bool {
	for _, x := range Activities {
		if a == x {
			return true
		}
	}
	return false
}

// Queuer is the narrow interface handlers use to announce changes.
type Queuer interface {
	QueueRequest(ctx context.Context, regattaID string, activity Activity, arg string)
}

// Options configures a Manager.
type Options struct {
	Interval    time.Duration // how often pending requests are drained
	Coalesce    time.Duration // how long a published key is held back; 0 disables
	BatchSize   int
	MaxAttempts int
}

// Manager persists update requests and publishes them from Run.
type Manager struct {
	store     store.UpdateStore
	publisher Publisher
	opts      Options
	recent    *window
	wake      chan struct{}
	logger    *slog.Logger
}

var _ Queuer = (*Manager)(nil)

// NewManager creates a Manager. Call Close when done.
func NewManager(st store.UpdateStore, pub Publisher, opts Options) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	m := &Manager{
		store:     st,
		publisher: pub,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		logger:    slog.Default().With("component", "updates"),
	}
	if opts.Coalesce > 0 {
		m.recent = newWindow(opts.Coalesce, 1024)
	}
	return m
}

// QueueRequest records that a regatta changed. Failures are logged, not
// returned.
func (m *Manager) QueueRequest(ctx context.Context, regattaID string, activity Activity, arg string) {
	if !activity.Valid() {
		m.logger.Error("dropping update request", "regatta", regattaID, "error", fmt.Errorf("%w: %q", ErrInvalidActivity, activity))
		return
	}
	req := &store.UpdateRequest{RegattaID: regattaID, Activity: string(activity), Argument: arg}
	if err := m.store.CreateUpdateRequest(ctx, req); err != nil {
		m.logger.Error("queuing update request", "regatta", regattaID, "activity", activity, "error", err)
		return
	}
	m.logger.Debug("queued update request", "id", req.ID, "regatta", regattaID, "activity", activity)

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run drains pending requests every interval, or sooner when new ones are
// queued, until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("update worker started", "interval", m.opts.Interval)
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("update worker stopped")
			return nil
		case <-ticker.C:
		case <-m.wake:
		}
		if _, err := m.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("processing update requests", "error", err)
		}
	}
}

func requestKey(r *store.UpdateRequest) string {
	return r.RegattaID + "/" + r.Activity + "/" + r.Argument
}

// ProcessPending publishes one batch and returns how many notices went out.
func (m *Manager) ProcessPending(ctx context.Context) (int, error) {
	var held []string
	if m.recent != nil {
		held = m.recent.HeldKeys()
	}
	reqs, err := m.store.ListPendingUpdates(ctx, m.opts.BatchSize, held)
	if err != nil {
		return 0, fmt.Errorf("listing pending updates: %w", err)
	}

	var keys []string
	groups := make(map[string][]*store.UpdateRequest)
	for _, r := range reqs {
		k := requestKey(r)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	published := 0
	for _, k := range keys {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if m.recent != nil && m.recent.Held(k) {
			continue
		}
		group := groups[k]
		latest := group[len(group)-1]
		notice := Notice{
			RequestID:   latest.ID,
			RegattaID:   latest.RegattaID,
			Activity:    Activity(latest.Activity),
			Argument:    latest.Argument,
			RequestedAt: latest.RequestedAt,
			Coalesced:   len(group),
		}

		if err := m.publisher.Publish(ctx, notice); err != nil {
			m.logger.Warn("publishing update", "key", k, "error", err)
			m.recordFailure(ctx, group, err)
			continue
		}
		if m.recent != nil {
			m.recent.Mark(k)
		}
		now := time.Now().UTC()
		for _, r := range group {
			if err := m.store.CompleteUpdateRequest(ctx, r.ID, now, ""); err != nil {
				return published, fmt.Errorf("completing update %s: %w", r.ID, err)
			}
		}
		published++
	}
	return published, nil
}

// recordFailure counts the attempt, giving up on requests that reached
// MaxAttempts.
func (m *Manager) recordFailure(ctx context.Context, group []*store.UpdateRequest, cause error) {
	now := time.Now().UTC()
	for _, r := range group {
		var done time.Time
		if r.Attempts+1 >= m.opts.MaxAttempts {
			done = now
			m.logger.Error("giving up on update request", "id", r.ID, "attempts", r.Attempts+1, "error", cause)
		}
		if err := m.store.CompleteUpdateRequest(ctx, r.ID, done, cause.Error()); err != nil {
			m.logger.Error("recording update failure", "id", r.ID, "error", err)
		}
	}
}

// Close releases the coalescing window.
func (m *Manager) Close() {
	if m.recent != nil {
		m.recent.Close()
	}
}

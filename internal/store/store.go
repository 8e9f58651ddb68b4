// ABOUTME: Store interfaces and shared types for TechScore persistence
// ABOUTME: Regattas, rosters, rotations, RP, admin accounts, messages, audit and updates

package store

import (
	"context"
	"errors"
	"time"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/rp"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated
var ErrDuplicate = errors.New("already exists")

// ErrRaceHasFinishes is returned when removing a race that has been scored
var ErrRaceHasFinishes = errors.New("race has finishes")

// School is a member school whose sailors can be entered.
type School struct {
	ID         string
	Name       string
	Conference string
	City       string
}

// Scorer grants a user access to score one regatta.
type Scorer struct {
	RegattaID string
	UserID    string
	Username  string
	Name      string
	Principal bool // the scorer of record
}

// RegattaFilter narrows ListRegattas.
type RegattaFilter struct {
	// ScorerID limits results to regattas the user scores. Empty means all.
	ScorerID string
	Limit    int
}

// RegattaStore persists regattas and everything hanging off them.
type RegattaStore interface {
	CreateSchool(ctx context.Context, school *School) error
	GetSchool(ctx context.Context, id string) (*School, error)
	ListSchools(ctx context.Context) ([]*School, error)

	CreateSailor(ctx context.Context, sailor *rp.Sailor) error
	ListSailors(ctx context.Context, schoolIDs []string) ([]rp.Sailor, error)

	CreateBoat(ctx context.Context, boat *regatta.Boat) error
	ListBoats(ctx context.Context) ([]regatta.Boat, error)

	CreateRegatta(ctx context.Context, reg *regatta.Regatta) error
	GetRegatta(ctx context.Context, id string) (*regatta.Regatta, error)
	UpdateRegatta(ctx context.Context, reg *regatta.Regatta) error
	DeleteRegatta(ctx context.Context, id string) error
	ListRegattas(ctx context.Context, f RegattaFilter) ([]*regatta.Regatta, error)

	AddTeam(ctx context.Context, team *regatta.Team) error
	RenameTeam(ctx context.Context, teamID, name string) error
	DeleteTeam(ctx context.Context, teamID string) error
	ListTeams(ctx context.Context, regattaID string) ([]regatta.Team, error)

	AddRaces(ctx context.Context, races []regatta.Race) error
	SetRaceCount(ctx context.Context, regattaID string, count int, boatID string) error
	UpdateRaceBoat(ctx context.Context, raceID, boatID string) error
	DeleteRaces(ctx context.Context, raceIDs []string) error
	ListRaces(ctx context.Context, regattaID string) ([]regatta.Race, error)

	SetFinishes(ctx context.Context, raceIDs []string, finishes []*regatta.Finish) error
	DeleteFinishes(ctx context.Context, raceIDs []string) error
	SetModifier(ctx context.Context, finishID string, m *regatta.Modifier) error
	ListFinishes(ctx context.Context, regattaID string) ([]*regatta.Finish, error)

	AddTeamPenalty(ctx context.Context, p regatta.TeamPenalty) error
	DeleteTeamPenalty(ctx context.Context, teamID string, div regatta.Division) error
	ListTeamPenalties(ctx context.Context, regattaID string) ([]regatta.TeamPenalty, error)

	SetDailySummary(ctx context.Context, s regatta.DailySummary) error
	ListDailySummaries(ctx context.Context, regattaID string) ([]regatta.DailySummary, error)

	AddScorer(ctx context.Context, s Scorer) error
	RemoveScorer(ctx context.Context, regattaID, userID string) error
	ListScorers(ctx context.Context, regattaID string) ([]Scorer, error)
	IsScorer(ctx context.Context, regattaID, userID string) (bool, error)

	SetRotation(ctx context.Context, raceIDs []string, as []rotation.Assignment) error
	ListRotation(ctx context.Context, regattaID string) ([]rotation.Assignment, error)

	SetRP(ctx context.Context, teamID string, raceIDs []string, entries []rp.Entry) error
	ListRP(ctx context.Context, regattaID string) ([]rp.Entry, error)

	LoadRegatta(ctx context.Context, id string) (*RegattaData, error)
}

// MessageStore holds flash messages for browser sessions.
type MessageStore interface {
	AddSessionMessage(ctx context.Context, sessionID string, m SessionMessage) error
	TakeSessionMessages(ctx context.Context, sessionID string) ([]SessionMessage, error)
}

// UpdateStore holds queued update requests.
type UpdateStore interface {
	CreateUpdateRequest(ctx context.Context, req *UpdateRequest) error
	ListPendingUpdates(ctx context.Context, limit int, skip []string) ([]*UpdateRequest, error)
	CompleteUpdateRequest(ctx context.Context, id string, completedAt time.Time, errMsg string) error
	ListUpdateRequests(ctx context.Context, regattaID string, limit int) ([]*UpdateRequest, error)
}

// AuditStore records who changed what.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// Store is everything the application persists.
type Store interface {
	RegattaStore
	AdminStore
	MessageStore
	UpdateStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

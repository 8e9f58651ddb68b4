// ABOUTME: Audit log entity and store methods for tracking scoring changes
// ABOUTME: Records which user changed what in which regatta, newest first

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction names a change recorded in the audit log.
type AuditAction string

const (
	AuditCreateRegatta   AuditAction = "create_regatta"
	AuditEditDetails     AuditAction = "edit_details"
	AuditFinalize        AuditAction = "finalize"
	AuditEditSummary     AuditAction = "edit_summary"
	AuditAddScorer       AuditAction = "add_scorer"
	AuditRemoveScorer    AuditAction = "remove_scorer"
	AuditAddTeam         AuditAction = "add_team"
	AuditRemoveTeam      AuditAction = "remove_team"
	AuditRenameTeam      AuditAction = "rename_team"
	AuditSetRaces        AuditAction = "set_races"
	AuditSetRotation     AuditAction = "set_rotation"
	AuditTweakRotation   AuditAction = "tweak_rotation"
	AuditEnterFinishes   AuditAction = "enter_finishes"
	AuditDropFinishes    AuditAction = "drop_finishes"
	AuditAddPenalty      AuditAction = "add_penalty"
	AuditDropPenalty     AuditAction = "drop_penalty"
	AuditAddTeamPenalty  AuditAction = "add_team_penalty"
	AuditDropTeamPenalty AuditAction = "drop_team_penalty"
	AuditSetRP           AuditAction = "set_rp"
	AuditRoundRobin      AuditAction = "create_round_robin"
	AuditCreateInvite    AuditAction = "create_invite"
	AuditCreateUser      AuditAction = "create_user"
	AuditCreateToken     AuditAction = "create_token"
	AuditImportRegatta   AuditAction = "import_regatta"
)

var auditLabels = map[AuditAction]string{
	AuditCreateRegatta:   "Created regatta",
	AuditEditDetails:     "Edited details",
	AuditFinalize:        "Finalized",
	AuditEditSummary:     "Edited daily summary",
	AuditAddScorer:       "Added scorer",
	AuditRemoveScorer:    "Removed scorer",
	AuditAddTeam:         "Added team",
	AuditRemoveTeam:      "Removed team",
	AuditRenameTeam:      "Renamed team",
	AuditSetRaces:        "Set races",
	AuditSetRotation:     "Set rotation",
	AuditTweakRotation:   "Tweaked sails",
	AuditEnterFinishes:   "Entered finishes",
	AuditDropFinishes:    "Dropped finishes",
	AuditAddPenalty:      "Added penalty",
	AuditDropPenalty:     "Dropped penalty",
	AuditAddTeamPenalty:  "Added team penalty",
	AuditDropTeamPenalty: "Dropped team penalty",
	AuditSetRP:           "Updated RP",
	AuditRoundRobin:      "Created round robin",
	AuditCreateInvite:    "Created invite",
	AuditCreateUser:      "Created account",
	AuditCreateToken:     "Created API token",
	AuditImportRegatta:   "Imported regatta",
}

// Label returns a short description for the history dialog. Unknown
// actions fall back to their stored name.
func (a AuditAction) Label() string {
	if l, ok := auditLabels[a]; ok {
		return l
	}
	return string(a)
}

// AuditEntry is one recorded change.
type AuditEntry struct {
	ID          string
	ActorUserID string
	RegattaID   string // empty for account-level actions
	Action      AuditAction
	TargetType  string // regatta, team, race, finish, invite or user
	TargetID    string
	Timestamp   time.Time
	Detail      map[string]any
}

// AuditFilter narrows ListAuditLog. Nil fields match everything.
type AuditFilter struct {
	Since       *time.Time
	Until       *time.Time
	ActorUserID *string
	RegattaID   *string
	Action      *AuditAction
	Limit       int // defaults to 100, capped at 1000
}

// auditTimeFormat keeps every timestamp the same width so ORDER BY ts
// sorts chronologically.
const auditTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func auditTime(t time.Time) string {
	return t.UTC().Format(auditTimeFormat)
}

// AppendAuditLog records e, filling in its ID and Timestamp when unset.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detail sql.NullString
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		detail = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor_user_id, regatta_id, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorUserID, nullString(e.RegattaID), string(e.Action),
		e.TargetType, e.TargetID, auditTime(e.Timestamp), detail,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("audit", "actor", e.ActorUserID, "regatta", e.RegattaID, "action", e.Action)
	return nil
}

func scanAuditEntry(row rowScanner) (AuditEntry, error) {
	var (
		e               AuditEntry
		action, ts      string
		regatta, detail sql.NullString
	)
	err := row.Scan(&e.ID, &e.ActorUserID, &regatta, &action, &e.TargetType, &e.TargetID, &ts, &detail)
	if err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}
	e.Action = AuditAction(action)
	e.RegattaID = regatta.String

	if e.Timestamp, err = time.Parse(auditTimeFormat, ts); err != nil {
		return e, fmt.Errorf("parsing audit timestamp: %w", err)
	}
	if detail.Valid {
		if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling audit detail: %w", err)
		}
	}
	return e, nil
}

func normalizeAuditLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return min(limit, 1000)
}

const auditLogQuery = `
	SELECT audit_id, actor_user_id, regatta_id, action, target_type, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR actor_user_id = ?)
	  AND (? IS NULL OR regatta_id = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns matching entries, newest first. It never returns a
// nil slice.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var since, until, action sql.NullString
	if f.Since != nil {
		since = sql.NullString{String: auditTime(*f.Since), Valid: true}
	}
	if f.Until != nil {
		until = sql.NullString{String: auditTime(*f.Until), Valid: true}
	}
	if f.Action != nil {
		action = sql.NullString{String: string(*f.Action), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		since, since,
		until, until,
		f.ActorUserID, f.ActorUserID,
		f.RegattaID, f.RegattaID,
		action, action,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// ABOUTME: Queued update requests raised by scoring changes
// ABOUTME: Pending rows are drained by the update worker and marked complete

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpdateRequest asks the publisher to refresh one aspect of a regatta.
type UpdateRequest struct {
	ID          string
	RegattaID   string
	Activity    string
	Argument    string
	RequestedAt time.Time
	CompletedAt *time.Time
	Attempts    int
	LastError   string
}

// Pending reports whether the request has not completed successfully.
func (u *UpdateRequest) Pending() bool {
	return u.CompletedAt == nil
}

// CreateUpdateRequest persists a pending request.
func (s *SQLiteStore) CreateUpdateRequest(ctx context.Context, req *UpdateRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_requests (id, regatta_id, activity, argument, requested_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.ID, req.RegattaID, req.Activity, req.Argument, formatTime(req.RequestedAt))
	if err != nil {
		return fmt.Errorf("inserting update request: %w", err)
	}
	return nil
}

const updateColumns = `id, regatta_id, activity, argument, requested_at, completed_at, attempts, last_error`

func scanUpdateRequest(scanner interface{ Scan(dest ...any) error }) (*UpdateRequest, error) {
	var u UpdateRequest
	var requestedAt string
	var completedAt sql.NullString
	if err := scanner.Scan(&u.ID, &u.RegattaID, &u.Activity, &u.Argument,
		&requestedAt, &completedAt, &u.Attempts, &u.LastError); err != nil {
		return nil, fmt.Errorf("scanning update request: %w", err)
	}
	var err error
	if u.RequestedAt, err = parseTime("requested_at", requestedAt); err != nil {
		return nil, err
	}
	if u.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) queryUpdates(ctx context.Context, query string, args ...any) ([]*UpdateRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying update requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*UpdateRequest
	for rows.Next() {
		u, err := scanUpdateRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating update requests: %w", err)
	}
	return out, nil
}

// ListPendingUpdates returns incomplete requests, oldest first.
// Requests whose "regatta/activity/argument" key is in skip are left out.
func (s *SQLiteStore) ListPendingUpdates(ctx context.Context, limit int, skip []string) ([]*UpdateRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	where := "completed_at IS NULL"
	args := stringArgs(skip)
	if len(skip) > 0 {
		where += ` AND regatta_id || '/' || activity || '/' || argument NOT IN (` + placeholders(len(skip)) + `)`
	}
	return s.queryUpdates(ctx, `
		SELECT `+updateColumns+` FROM update_requests
		WHERE `+where+`
		ORDER BY requested_at, rowid
		LIMIT ?
	`, append(args, limit)...)
}

// CompleteUpdateRequest records an attempt. A zero completedAt leaves the
// request pending for another try; errMsg is kept either way.
func (s *SQLiteStore) CompleteUpdateRequest(ctx context.Context, id string, completedAt time.Time, errMsg string) error {
	var completed sql.NullString
	if !completedAt.IsZero() {
		completed = sql.NullString{String: formatTime(completedAt), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE update_requests
		SET completed_at = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`, completed, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUpdateRequests returns a regatta's requests, newest first.
func (s *SQLiteStore) ListUpdateRequests(ctx context.Context, regattaID string, limit int) ([]*UpdateRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryUpdates(ctx, `
		SELECT `+updateColumns+` FROM update_requests
		WHERE regatta_id = ?
		ORDER BY requested_at DESC, rowid DESC
		LIMIT ?
	`, regattaID, limit)
}

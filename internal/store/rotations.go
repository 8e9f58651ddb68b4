// ABOUTME: Store methods for sail rotations and RP entries
// ABOUTME: Both are replaced wholesale for a set of races inside a transaction

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/rp"
)

// SetRotation replaces the sail assignments of the given races.
func (s *SQLiteStore) SetRotation(ctx context.Context, raceIDs []string, as []rotation.Assignment) error {
	if len(raceIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rotations WHERE race_id IN (`+placeholders(len(raceIDs))+`)`,
			stringArgs(raceIDs)...); err != nil {
			return fmt.Errorf("clearing rotation: %w", err)
		}
		for _, a := range as {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO rotations (race_id, team_id, sail) VALUES (?, ?, ?)`,
				a.RaceID, a.TeamID, a.Sail)
			if isConstraintViolation(err) {
				return fmt.Errorf("sail %s in race %s: %w", a.Sail, a.RaceID, ErrDuplicate)
			}
			if err != nil {
				return fmt.Errorf("inserting sail: %w", err)
			}
		}
		return nil
	})
}

// ListRotation returns every sail assignment in the regatta.
func (s *SQLiteStore) ListRotation(ctx context.Context, regattaID string) ([]rotation.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ro.race_id, ro.team_id, ro.sail
		FROM rotations ro JOIN races r ON r.id = ro.race_id
		WHERE r.regatta_id = ?
		ORDER BY r.number, r.division
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying rotation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rotation.Assignment
	for rows.Next() {
		var a rotation.Assignment
		if err := rows.Scan(&a.RaceID, &a.TeamID, &a.Sail); err != nil {
			return nil, fmt.Errorf("scanning sail: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rotation: %w", err)
	}
	return out, nil
}

// SetRP replaces the team's RP entries in the given races.
func (s *SQLiteStore) SetRP(ctx context.Context, teamID string, raceIDs []string, entries []rp.Entry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if len(raceIDs) > 0 {
			args := append([]any{teamID}, stringArgs(raceIDs)...)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM rp_entries WHERE team_id = ? AND race_id IN (`+placeholders(len(raceIDs))+`)`,
				args...); err != nil {
				return fmt.Errorf("clearing RP: %w", err)
			}
		}
		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO rp_entries (id, team_id, race_id, sailor_id, role) VALUES (?, ?, ?, ?, ?)`,
				e.ID, e.TeamID, e.RaceID, e.SailorID, string(e.Role))
			if isConstraintViolation(err) {
				return fmt.Errorf("sailor %s in race %s: %w", e.SailorID, e.RaceID, ErrDuplicate)
			}
			if err != nil {
				return fmt.Errorf("inserting RP entry: %w", err)
			}
		}
		return nil
	})
}

// ListRP returns every RP entry in the regatta.
func (s *SQLiteStore) ListRP(ctx context.Context, regattaID string) ([]rp.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.team_id, e.race_id, e.sailor_id, e.role
		FROM rp_entries e JOIN races r ON r.id = e.race_id
		WHERE r.regatta_id = ?
		ORDER BY r.number, r.division, e.role DESC
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying RP: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rp.Entry
	for rows.Next() {
		var e rp.Entry
		var role string
		if err := rows.Scan(&e.ID, &e.TeamID, &e.RaceID, &e.SailorID, &role); err != nil {
			return nil, fmt.Errorf("scanning RP entry: %w", err)
		}
		e.Role = rp.Role(role)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating RP: %w", err)
	}
	return out, nil
}

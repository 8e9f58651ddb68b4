// ABOUTME: Store methods for teams, races, finishes and team penalties
// ABOUTME: Finish replacement and race renumbering run inside transactions

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/techscore/techscore/internal/regatta"
)

// AddTeam inserts a team. An ID is generated if empty.
func (s *SQLiteStore) AddTeam(ctx context.Context, team *regatta.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, regatta_id, school_id, name) VALUES (?, ?, ?, ?)`,
		team.ID, team.RegattaID, team.SchoolID, team.Name,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("team %s: %w", team.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting team: %w", err)
	}
	return nil
}

// RenameTeam changes a team's name.
func (s *SQLiteStore) RenameTeam(ctx context.Context, teamID, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE teams SET name = ? WHERE id = ?`, name, teamID)
	if isConstraintViolation(err) {
		return fmt.Errorf("team %s: %w", name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("renaming team: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTeam removes a team with its finishes, rotation, penalties and RP.
func (s *SQLiteStore) DeleteTeam(ctx context.Context, teamID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTeams returns the regatta's teams ordered by school and name.
func (s *SQLiteStore) ListTeams(ctx context.Context, regattaID string) ([]regatta.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.regatta_id, t.school_id, sc.name, t.name
		FROM teams t JOIN schools sc ON sc.id = t.school_id
		WHERE t.regatta_id = ?
		ORDER BY sc.name, t.name
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []regatta.Team
	for rows.Next() {
		var t regatta.Team
		if err := rows.Scan(&t.ID, &t.RegattaID, &t.SchoolID, &t.SchoolName, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating teams: %w", err)
	}
	return out, nil
}

func insertRace(ctx context.Context, tx *sql.Tx, r *regatta.Race) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO races (id, regatta_id, division, number, boat_id, team_a, team_b, round)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.RegattaID, string(r.Division), r.Number, nullString(r.BoatID),
		nullString(r.TeamA), nullString(r.TeamB), r.Round)
	if isConstraintViolation(err) {
		return fmt.Errorf("race %s: %w", r, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting race %s: %w", r, err)
	}
	return nil
}

// AddRaces inserts races in one transaction. IDs are generated if empty.
func (s *SQLiteStore) AddRaces(ctx context.Context, races []regatta.Race) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range races {
			if err := insertRace(ctx, tx, &races[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRaceCount makes every division of a fleet regatta have exactly count
// races. New races sail boatID. Races above count are removed unless they
// have finishes.
func (s *SQLiteStore) SetRaceCount(ctx context.Context, regattaID string, count int, boatID string) error {
	reg, err := s.GetRegatta(ctx, regattaID)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var scored int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM finishes f JOIN races r ON r.id = f.race_id
			WHERE r.regatta_id = ? AND r.number > ?
		`, regattaID, count).Scan(&scored)
		if err != nil {
			return fmt.Errorf("counting finishes: %w", err)
		}
		if scored > 0 {
			return ErrRaceHasFinishes
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM races WHERE regatta_id = ? AND number > ?`, regattaID, count); err != nil {
			return fmt.Errorf("deleting races: %w", err)
		}

		for _, div := range reg.Divisions {
			var have int
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(number), 0) FROM races WHERE regatta_id = ? AND division = ?`,
				regattaID, string(div),
			).Scan(&have)
			if err != nil {
				return fmt.Errorf("counting races: %w", err)
			}
			for n := have + 1; n <= count; n++ {
				r := regatta.Race{RegattaID: regattaID, Division: div, Number: n, BoatID: boatID}
				if err := insertRace(ctx, tx, &r); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UpdateRaceBoat changes the boat sailed in a race.
func (s *SQLiteStore) UpdateRaceBoat(ctx context.Context, raceID, boatID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE races SET boat_id = ? WHERE id = ?`, nullString(boatID), raceID)
	if err != nil {
		return fmt.Errorf("updating race boat: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRaces removes races that have no finishes.
func (s *SQLiteStore) DeleteRaces(ctx context.Context, raceIDs []string) error {
	if len(raceIDs) == 0 {
		return nil
	}
	in := placeholders(len(raceIDs))
	args := stringArgs(raceIDs)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var scored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM finishes WHERE race_id IN (`+in+`)`, args...,
		).Scan(&scored); err != nil {
			return fmt.Errorf("counting finishes: %w", err)
		}
		if scored > 0 {
			return ErrRaceHasFinishes
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM races WHERE id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting races: %w", err)
		}
		return nil
	})
}

// ListRaces returns the regatta's races ordered by number then division.
func (s *SQLiteStore) ListRaces(ctx context.Context, regattaID string) ([]regatta.Race, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, regatta_id, division, number, boat_id, team_a, team_b, round
		FROM races WHERE regatta_id = ?
		ORDER BY number, division
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying races: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []regatta.Race
	for rows.Next() {
		var r regatta.Race
		var div string
		var boat, teamA, teamB sql.NullString
		if err := rows.Scan(&r.ID, &r.RegattaID, &div, &r.Number, &boat, &teamA, &teamB, &r.Round); err != nil {
			return nil, fmt.Errorf("scanning race: %w", err)
		}
		r.Division = regatta.Division(div)
		r.BoatID = boat.String
		r.TeamA = teamA.String
		r.TeamB = teamB.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating races: %w", err)
	}
	return out, nil
}

func modifierArgs(m *regatta.Modifier) (sql.NullString, int, bool, string) {
	if m == nil {
		return sql.NullString{}, 0, false, ""
	}
	return sql.NullString{String: string(m.Type), Valid: true}, m.Amount, m.Displace, m.Comments
}

// SetFinishes replaces all finishes in the given races.
func (s *SQLiteStore) SetFinishes(ctx context.Context, raceIDs []string, finishes []*regatta.Finish) error {
	if len(raceIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM finishes WHERE race_id IN (`+placeholders(len(raceIDs))+`)`,
			stringArgs(raceIDs)...); err != nil {
			return fmt.Errorf("clearing finishes: %w", err)
		}
		for _, f := range finishes {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			modType, amount, displace, comments := modifierArgs(f.Modifier)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO finishes (id, race_id, team_id, entered, modifier_type, amount, displace, comments)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, f.ID, f.RaceID, f.TeamID, f.Entered, modType, amount, displace, comments)
			if isConstraintViolation(err) {
				return fmt.Errorf("finish %d in race %s: %w", f.Entered, f.RaceID, ErrDuplicate)
			}
			if err != nil {
				return fmt.Errorf("inserting finish: %w", err)
			}
		}
		return nil
	})
}

// DeleteFinishes removes every finish in the given races.
func (s *SQLiteStore) DeleteFinishes(ctx context.Context, raceIDs []string) error {
	if len(raceIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM finishes WHERE race_id IN (`+placeholders(len(raceIDs))+`)`,
		stringArgs(raceIDs)...)
	if err != nil {
		return fmt.Errorf("deleting finishes: %w", err)
	}
	return nil
}

// SetModifier attaches a penalty or breakdown to a finish; nil removes it.
func (s *SQLiteStore) SetModifier(ctx context.Context, finishID string, m *regatta.Modifier) error {
	modType, amount, displace, comments := modifierArgs(m)
	result, err := s.db.ExecContext(ctx, `
		UPDATE finishes SET modifier_type = ?, amount = ?, displace = ?, comments = ?
		WHERE id = ?
	`, modType, amount, displace, comments, finishID)
	if err != nil {
		return fmt.Errorf("updating finish modifier: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFinishes returns every finish in the regatta, unscored.
func (s *SQLiteStore) ListFinishes(ctx context.Context, regattaID string) ([]*regatta.Finish, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.race_id, f.team_id, f.entered, f.modifier_type, f.amount, f.displace, f.comments
		FROM finishes f JOIN races r ON r.id = f.race_id
		WHERE r.regatta_id = ?
		ORDER BY r.number, r.division, f.entered
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying finishes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*regatta.Finish
	for rows.Next() {
		var f regatta.Finish
		var modType sql.NullString
		var amount int
		var displace bool
		var comments string
		if err := rows.Scan(&f.ID, &f.RaceID, &f.TeamID, &f.Entered, &modType, &amount, &displace, &comments); err != nil {
			return nil, fmt.Errorf("scanning finish: %w", err)
		}
		if modType.Valid {
			f.Modifier = &regatta.Modifier{
				Type:     regatta.ModifierType(modType.String),
				Amount:   amount,
				Displace: displace,
				Comments: comments,
			}
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating finishes: %w", err)
	}
	return out, nil
}

// AddTeamPenalty records a team penalty, replacing any existing penalty
// for the same team and division.
func (s *SQLiteStore) AddTeamPenalty(ctx context.Context, p regatta.TeamPenalty) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_penalties (team_id, division, type, comments) VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, division) DO UPDATE SET type = excluded.type, comments = excluded.comments
	`, p.TeamID, string(p.Division), string(p.Type), p.Comments)
	if err != nil {
		return fmt.Errorf("inserting team penalty: %w", err)
	}
	return nil
}

// DeleteTeamPenalty removes a team penalty.
func (s *SQLiteStore) DeleteTeamPenalty(ctx context.Context, teamID string, div regatta.Division) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM team_penalties WHERE team_id = ? AND division = ?`, teamID, string(div))
	if err != nil {
		return fmt.Errorf("deleting team penalty: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTeamPenalties returns the regatta's team penalties.
func (s *SQLiteStore) ListTeamPenalties(ctx context.Context, regattaID string) ([]regatta.TeamPenalty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.team_id, p.division, p.type, p.comments
		FROM team_penalties p JOIN teams t ON t.id = p.team_id
		WHERE t.regatta_id = ?
		ORDER BY p.division, t.name
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying team penalties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []regatta.TeamPenalty
	for rows.Next() {
		var p regatta.TeamPenalty
		var div, typ string
		if err := rows.Scan(&p.TeamID, &div, &typ, &p.Comments); err != nil {
			return nil, fmt.Errorf("scanning team penalty: %w", err)
		}
		p.Division = regatta.Division(div)
		p.Type = regatta.TeamPenaltyType(typ)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team penalties: %w", err)
	}
	return out, nil
}

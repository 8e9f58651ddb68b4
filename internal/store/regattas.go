// ABOUTME: Store methods for schools, sailors, boats, regattas and scorers
// ABOUTME: Regatta dates are stored as YYYY-MM-DD, timestamps as RFC3339 text

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rp"
)

// CreateSchool inserts a school. An ID is generated if empty.
func (s *SQLiteStore) CreateSchool(ctx context.Context, school *School) error {
	if school.ID == "" {
		school.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schools (id, name, conference, city) VALUES (?, ?, ?, ?)`,
		school.ID, school.Name, school.Conference, school.City,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("school %s: %w", school.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting school: %w", err)
	}
	return nil
}

// GetSchool returns a school by ID.
func (s *SQLiteStore) GetSchool(ctx context.Context, id string) (*School, error) {
	var sc School
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, conference, city FROM schools WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.Name, &sc.Conference, &sc.City)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying school: %w", err)
	}
	return &sc, nil
}

// ListSchools returns every school ordered by name.
func (s *SQLiteStore) ListSchools(ctx context.Context) ([]*School, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, conference, city FROM schools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying schools: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*School
	for rows.Next() {
		var sc School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Conference, &sc.City); err != nil {
			return nil, fmt.Errorf("scanning school: %w", err)
		}
		out = append(out, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schools: %w", err)
	}
	return out, nil
}

// CreateSailor inserts a sailor. An ID is generated if empty.
func (s *SQLiteStore) CreateSailor(ctx context.Context, sailor *rp.Sailor) error {
	if sailor.ID == "" {
		sailor.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sailors (id, school_id, first, last, year, gender) VALUES (?, ?, ?, ?, ?, ?)`,
		sailor.ID, sailor.SchoolID, sailor.First, sailor.Last, sailor.Year, string(sailor.Gender),
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("sailor %s: %w", sailor.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting sailor: %w", err)
	}
	return nil
}

// ListSailors returns the sailors of the given schools, by last name.
func (s *SQLiteStore) ListSailors(ctx context.Context, schoolIDs []string) ([]rp.Sailor, error) {
	if len(schoolIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, school_id, first, last, year, gender FROM sailors
		WHERE school_id IN (` + placeholders(len(schoolIDs)) + `)
		ORDER BY last, first`

	rows, err := s.db.QueryContext(ctx, query, stringArgs(schoolIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying sailors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rp.Sailor
	for rows.Next() {
		var sl rp.Sailor
		var gender string
		if err := rows.Scan(&sl.ID, &sl.SchoolID, &sl.First, &sl.Last, &sl.Year, &gender); err != nil {
			return nil, fmt.Errorf("scanning sailor: %w", err)
		}
		sl.Gender = rp.Gender(gender)
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sailors: %w", err)
	}
	return out, nil
}

// CreateBoat inserts a boat class.
func (s *SQLiteStore) CreateBoat(ctx context.Context, boat *regatta.Boat) error {
	if boat.ID == "" {
		boat.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boats (id, name, min_crews, max_crews) VALUES (?, ?, ?, ?)`,
		boat.ID, boat.Name, boat.MinCrews, boat.MaxCrews,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("boat %s: %w", boat.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting boat: %w", err)
	}
	return nil
}

// ListBoats returns every boat class ordered by name.
func (s *SQLiteStore) ListBoats(ctx context.Context) ([]regatta.Boat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, min_crews, max_crews FROM boats ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying boats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []regatta.Boat
	for rows.Next() {
		var b regatta.Boat
		if err := rows.Scan(&b.ID, &b.Name, &b.MinCrews, &b.MaxCrews); err != nil {
			return nil, fmt.Errorf("scanning boat: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating boats: %w", err)
	}
	return out, nil
}

func joinDivisions(divs []regatta.Division) string {
	parts := make([]string, len(divs))
	for i, d := range divs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func splitDivisions(s string) []regatta.Division {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]regatta.Division, len(parts))
	for i, p := range parts {
		out[i] = regatta.Division(p)
	}
	return out
}

// CreateRegatta inserts a regatta. ID, Nick and timestamps are filled in
// when empty.
func (s *SQLiteStore) CreateRegatta(ctx context.Context, reg *regatta.Regatta) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	if reg.Nick == "" {
		reg.Nick = regatta.Slugify(reg.Name)
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	query := `
		INSERT INTO regattas (id, name, nick, start_date, duration, scoring, participant,
			type, venue, host, private, divisions, finalized_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		reg.ID, reg.Name, reg.Nick, reg.StartDate.Format(dateLayout), reg.Duration,
		string(reg.Scoring), string(reg.Participant), reg.Type, reg.Venue, reg.Host,
		reg.Private, joinDivisions(reg.Divisions), finalizedArg(reg),
		formatTime(reg.CreatedAt), formatTime(reg.UpdatedAt),
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("regatta %s: %w", reg.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting regatta: %w", err)
	}

	s.logger.Info("created regatta", "id", reg.ID, "name", reg.Name, "scoring", reg.Scoring)
	return nil
}

func finalizedArg(reg *regatta.Regatta) sql.NullString {
	if reg.FinalizedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*reg.FinalizedAt), Valid: true}
}

const regattaColumns = `r.id, r.name, r.nick, r.start_date, r.duration, r.scoring, r.participant,
	r.type, r.venue, r.host, r.private, r.divisions, r.finalized_at, r.created_at, r.updated_at`

func scanRegatta(scanner interface{ Scan(dest ...any) error }) (*regatta.Regatta, error) {
	var reg regatta.Regatta
	var start, scoring, participant, divisions, createdAt, updatedAt string
	var finalized sql.NullString

	if err := scanner.Scan(
		&reg.ID, &reg.Name, &reg.Nick, &start, &reg.Duration, &scoring, &participant,
		&reg.Type, &reg.Venue, &reg.Host, &reg.Private, &divisions, &finalized,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	reg.StartDate, err = time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date: %w", err)
	}
	reg.Scoring = regatta.ScoringType(scoring)
	reg.Participant = regatta.Participant(participant)
	reg.Divisions = splitDivisions(divisions)
	if reg.FinalizedAt, err = parseNullTime("finalized_at", finalized); err != nil {
		return nil, err
	}
	if reg.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if reg.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetRegatta returns a regatta by ID.
func (s *SQLiteStore) GetRegatta(ctx context.Context, id string) (*regatta.Regatta, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+regattaColumns+` FROM regattas r WHERE r.id = ?`, id)
	reg, err := scanRegatta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying regatta: %w", err)
	}
	return reg, nil
}

// UpdateRegatta saves the regatta's details, including finalization.
func (s *SQLiteStore) UpdateRegatta(ctx context.Context, reg *regatta.Regatta) error {
	reg.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE regattas SET name = ?, nick = ?, start_date = ?, duration = ?, scoring = ?,
			participant = ?, type = ?, venue = ?, host = ?, private = ?, divisions = ?,
			finalized_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		reg.Name, reg.Nick, reg.StartDate.Format(dateLayout), reg.Duration, string(reg.Scoring),
		string(reg.Participant), reg.Type, reg.Venue, reg.Host, reg.Private,
		joinDivisions(reg.Divisions), finalizedArg(reg), formatTime(reg.UpdatedAt), reg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating regatta: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRegatta removes a regatta and, by cascade, everything in it.
func (s *SQLiteStore) DeleteRegatta(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM regattas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting regatta: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Info("deleted regatta", "id", id)
	return nil
}

// ListRegattas returns regattas newest first.
func (s *SQLiteStore) ListRegattas(ctx context.Context, f RegattaFilter) ([]*regatta.Regatta, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if f.ScorerID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+regattaColumns+` FROM regattas r ORDER BY r.start_date DESC, r.name LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+regattaColumns+` FROM regattas r
			JOIN scorers sc ON sc.regatta_id = r.id
			WHERE sc.user_id = ?
			ORDER BY r.start_date DESC, r.name LIMIT ?`, f.ScorerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("querying regattas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*regatta.Regatta
	for rows.Next() {
		reg, err := scanRegatta(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning regatta: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating regattas: %w", err)
	}
	return out, nil
}

// AddScorer grants a user access to a regatta. Adding an existing scorer
// updates the principal flag.
func (s *SQLiteStore) AddScorer(ctx context.Context, sc Scorer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scorers (regatta_id, user_id, principal) VALUES (?, ?, ?)
		ON CONFLICT (regatta_id, user_id) DO UPDATE SET principal = excluded.principal
	`, sc.RegattaID, sc.UserID, sc.Principal)
	if err != nil {
		return fmt.Errorf("inserting scorer: %w", err)
	}
	return nil
}

// RemoveScorer revokes a user's access to a regatta.
func (s *SQLiteStore) RemoveScorer(ctx context.Context, regattaID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM scorers WHERE regatta_id = ? AND user_id = ?`, regattaID, userID)
	if err != nil {
		return fmt.Errorf("deleting scorer: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScorers returns the regatta's scorers, principal first.
func (s *SQLiteStore) ListScorers(ctx context.Context, regattaID string) ([]Scorer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.regatta_id, sc.user_id, u.username, u.display_name, sc.principal
		FROM scorers sc JOIN admin_users u ON u.id = sc.user_id
		WHERE sc.regatta_id = ?
		ORDER BY sc.principal DESC, u.display_name
	`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying scorers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Scorer
	for rows.Next() {
		var sc Scorer
		if err := rows.Scan(&sc.RegattaID, &sc.UserID, &sc.Username, &sc.Name, &sc.Principal); err != nil {
			return nil, fmt.Errorf("scanning scorer: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scorers: %w", err)
	}
	return out, nil
}

// IsScorer reports whether the user may score the regatta.
func (s *SQLiteStore) IsScorer(ctx context.Context, regattaID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM scorers WHERE regatta_id = ? AND user_id = ?`, regattaID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying scorer: %w", err)
	}
	return true, nil
}

// SetDailySummary saves the summary for one day, replacing any previous
// text. An empty summary deletes it.
func (s *SQLiteStore) SetDailySummary(ctx context.Context, sum regatta.DailySummary) error {
	day := sum.Day.Format(dateLayout)
	if strings.TrimSpace(sum.Summary) == "" {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM daily_summaries WHERE regatta_id = ? AND day = ?`, sum.RegattaID, day)
		if err != nil {
			return fmt.Errorf("deleting daily summary: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (regatta_id, day, summary) VALUES (?, ?, ?)
		ON CONFLICT (regatta_id, day) DO UPDATE SET summary = excluded.summary
	`, sum.RegattaID, day, sum.Summary)
	if err != nil {
		return fmt.Errorf("saving daily summary: %w", err)
	}
	return nil
}

// ListDailySummaries returns the regatta's summaries by day.
func (s *SQLiteStore) ListDailySummaries(ctx context.Context, regattaID string) ([]regatta.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT regatta_id, day, summary FROM daily_summaries WHERE regatta_id = ? ORDER BY day`, regattaID)
	if err != nil {
		return nil, fmt.Errorf("querying daily summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []regatta.DailySummary
	for rows.Next() {
		var sum regatta.DailySummary
		var day string
		if err := rows.Scan(&sum.RegattaID, &day, &sum.Summary); err != nil {
			return nil, fmt.Errorf("scanning daily summary: %w", err)
		}
		if sum.Day, err = time.Parse(dateLayout, day); err != nil {
			return nil, fmt.Errorf("parsing day: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily summaries: %w", err)
	}
	return out, nil
}

// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database, creates the schema and applies column migrations

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// foreign_keys and busy_timeout are per connection, so they go in the
	// DSN where every pooled connection picks them up
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schools (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			conference TEXT NOT NULL DEFAULT '',
			city       TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS sailors (
			id        TEXT PRIMARY KEY,
			school_id TEXT NOT NULL REFERENCES schools(id),
			first     TEXT NOT NULL,
			last      TEXT NOT NULL,
			year      INTEGER NOT NULL DEFAULT 0,
			gender    TEXT NOT NULL,

			CHECK (gender IN ('M', 'F'))
		);

		CREATE INDEX IF NOT EXISTS idx_sailors_school ON sailors(school_id);

		CREATE TABLE IF NOT EXISTS boats (
			id        TEXT PRIMARY KEY,
			name      TEXT NOT NULL UNIQUE,
			min_crews INTEGER NOT NULL DEFAULT 0,
			max_crews INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS regattas (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			nick         TEXT NOT NULL,
			start_date   TEXT NOT NULL,
			duration     INTEGER NOT NULL,
			scoring      TEXT NOT NULL,
			participant  TEXT NOT NULL,
			type         TEXT NOT NULL DEFAULT '',
			venue        TEXT NOT NULL DEFAULT '',
			host         TEXT NOT NULL DEFAULT '',
			private      INTEGER NOT NULL DEFAULT 0,
			divisions    TEXT NOT NULL,
			finalized_at TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,

			CHECK (scoring IN ('standard', 'combined', 'team')),
			CHECK (participant IN ('coed', 'women'))
		);

		CREATE INDEX IF NOT EXISTS idx_regattas_start ON regattas(start_date DESC);

		CREATE TABLE IF NOT EXISTS teams (
			id         TEXT PRIMARY KEY,
			regatta_id TEXT NOT NULL REFERENCES regattas(id) ON DELETE CASCADE,
			school_id  TEXT NOT NULL REFERENCES schools(id),
			name       TEXT NOT NULL,

			UNIQUE (regatta_id, school_id, name)
		);

		CREATE INDEX IF NOT EXISTS idx_teams_regatta ON teams(regatta_id);

		CREATE TABLE IF NOT EXISTS races (
			id         TEXT PRIMARY KEY,
			regatta_id TEXT NOT NULL REFERENCES regattas(id) ON DELETE CASCADE,
			division   TEXT NOT NULL,
			number     INTEGER NOT NULL,
			boat_id    TEXT REFERENCES boats(id),
			team_a     TEXT REFERENCES teams(id) ON DELETE CASCADE,
			team_b     TEXT REFERENCES teams(id) ON DELETE CASCADE,
			round      TEXT NOT NULL DEFAULT '',

			UNIQUE (regatta_id, division, number)
		);

		CREATE TABLE IF NOT EXISTS finishes (
			id            TEXT PRIMARY KEY,
			race_id       TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
			team_id       TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			entered       INTEGER NOT NULL,
			modifier_type TEXT,
			amount        INTEGER NOT NULL DEFAULT 0,
			displace      INTEGER NOT NULL DEFAULT 0,
			comments      TEXT NOT NULL DEFAULT '',

			UNIQUE (race_id, entered)
		);

		CREATE INDEX IF NOT EXISTS idx_finishes_race ON finishes(race_id);

		CREATE TABLE IF NOT EXISTS team_penalties (
			team_id  TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			division TEXT NOT NULL,
			type     TEXT NOT NULL,
			comments TEXT NOT NULL DEFAULT '',

			PRIMARY KEY (team_id, division),
			CHECK (type IN ('PFD', 'LOP', 'MRP', 'GDQ'))
		);

		CREATE TABLE IF NOT EXISTS rotations (
			race_id TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			sail    TEXT NOT NULL,

			PRIMARY KEY (race_id, team_id),
			UNIQUE (race_id, sail)
		);

		CREATE TABLE IF NOT EXISTS rp_entries (
			id        TEXT PRIMARY KEY,
			team_id   TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			race_id   TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
			sailor_id TEXT NOT NULL REFERENCES sailors(id),
			role      TEXT NOT NULL,

			UNIQUE (race_id, sailor_id),
			CHECK (role IN ('skipper', 'crew'))
		);

		CREATE INDEX IF NOT EXISTS idx_rp_team ON rp_entries(team_id);

		CREATE TABLE IF NOT EXISTS daily_summaries (
			regatta_id TEXT NOT NULL REFERENCES regattas(id) ON DELETE CASCADE,
			day        TEXT NOT NULL,
			summary    TEXT NOT NULL,

			PRIMARY KEY (regatta_id, day)
		);

		CREATE TABLE IF NOT EXISTS admin_users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			display_name  TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'scorer',
			created_at    TEXT NOT NULL,

			CHECK (role IN ('admin', 'scorer'))
		);

		CREATE TABLE IF NOT EXISTS scorers (
			regatta_id TEXT NOT NULL REFERENCES regattas(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
			principal  INTEGER NOT NULL DEFAULT 0,

			PRIMARY KEY (regatta_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_scorers_user ON scorers(user_id);

		CREATE TABLE IF NOT EXISTS admin_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires ON admin_sessions(expires_at);

		CREATE TABLE IF NOT EXISTS admin_invites (
			id         TEXT PRIMARY KEY,
			created_by TEXT REFERENCES admin_users(id),
			role       TEXT NOT NULL DEFAULT 'scorer',
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			used_at    TEXT,
			used_by    TEXT REFERENCES admin_users(id)
		);

		CREATE TABLE IF NOT EXISTS session_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			type       TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (type IN ('valid', 'warning', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id      TEXT PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			regatta_id    TEXT,
			action        TEXT NOT NULL,
			target_type   TEXT NOT NULL,
			target_id     TEXT NOT NULL,
			ts            TEXT NOT NULL,
			detail_json   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_regatta ON audit_log(regatta_id, ts DESC);

		CREATE TABLE IF NOT EXISTS update_requests (
			id           TEXT PRIMARY KEY,
			regatta_id   TEXT NOT NULL,
			activity     TEXT NOT NULL,
			argument     TEXT NOT NULL DEFAULT '',
			requested_at TEXT NOT NULL,
			completed_at TEXT,
			attempts     INTEGER NOT NULL DEFAULT 0,
			last_error   TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_update_requests_pending
			ON update_requests(completed_at, requested_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies column additions for databases created by older
// releases. Each step is idempotent.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "admin_users",
			column: "role",
			apply:  `ALTER TABLE admin_users ADD COLUMN role TEXT NOT NULL DEFAULT 'scorer'`,
		},
		{
			table:  "admin_invites",
			column: "role",
			apply:  `ALTER TABLE admin_invites ADD COLUMN role TEXT NOT NULL DEFAULT 'scorer'`,
		},
		{
			table:  "update_requests",
			column: "last_error",
			apply:  `ALTER TABLE update_requests ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

func parseNullTime(field string, value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(field, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

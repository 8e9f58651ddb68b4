// Package store provides persistent storage for TechScore using SQLite.
//
// # Architecture
//
// The store is split into interfaces by concern:
//
//   - RegattaStore: schools, sailors, boats, regattas, teams, races,
//     finishes, team penalties, rotations, RP entries and scorers
//   - AdminStore: accounts, browser sessions and signup invites
//   - MessageStore: one-time flash messages attached to a session
//   - UpdateStore: queued update requests drained by the updates worker
//   - AuditStore: the change history shown in the history dialog
//
// SQLiteStore implements all of them, and Store composes them.
//
// # Regatta Data
//
// LoadRegatta returns a RegattaData aggregate with every table for one
// regatta, scored on load. Scores are never persisted; they are always
// recomputed from the entered finishes.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (no cgo) in WAL mode. Foreign keys and
// the busy timeout are set per connection through the DSN:
//
//	path?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)
//
// Timestamps are RFC3339 text in UTC. Calendar days are YYYY-MM-DD.
//
// # Errors
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicate: a unique key (sail, finish slot, team name) would repeat
//   - ErrRaceHasFinishes: a scored race cannot be removed
//
// # Migrations
//
// The schema is created with CREATE TABLE IF NOT EXISTS. Columns added
// after the first release are applied by runMigrations, which checks
// pragma_table_info before altering a table.
package store

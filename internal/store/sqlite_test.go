// ABOUTME: Tests for SQLite store setup plus shared fixtures for the store tests
// ABOUTME: Fixtures build a small two-division regatta with schools and sailors

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rp"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})
	return store
}

type fixture struct {
	store   *SQLiteStore
	regatta *regatta.Regatta
	schools []*School
	teams   []regatta.Team
	sailors []rp.Sailor
	boat    regatta.Boat
}

// seedRegatta creates a standard regatta with divisions A and B, three
// teams, two sailors per school and three races per division.
func seedRegatta(t *testing.T, scoring regatta.ScoringType) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: setupTestStore(t)}

	f.boat = regatta.Boat{Name: "FJ", MinCrews: 1, MaxCrews: 1}
	require.NoError(t, f.store.CreateBoat(ctx, &f.boat))

	for _, name := range []string{"Tufts", "Yale", "Navy"} {
		sc := &School{Name: name, Conference: "NEISA"}
		require.NoError(t, f.store.CreateSchool(ctx, sc))
		f.schools = append(f.schools, sc)
		for _, first := range []string{"Ann", "Bea"} {
			sl := rp.Sailor{SchoolID: sc.ID, First: first, Last: name, Year: 2027, Gender: rp.GenderFemale}
			require.NoError(t, f.store.CreateSailor(ctx, &sl))
			f.sailors = append(f.sailors, sl)
		}
	}

	divs := []regatta.Division{regatta.DivisionA, regatta.DivisionB}
	if scoring == regatta.ScoringTeam {
		divs = divs[:1]
	}
	f.regatta = &regatta.Regatta{
		Name:        "The Graham Hall Trophy",
		StartDate:   time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		Duration:    2,
		Scoring:     scoring,
		Participant: regatta.ParticipantCoed,
		Type:        "intersectional",
		Divisions:   divs,
	}
	require.NoError(t, f.store.CreateRegatta(ctx, f.regatta))

	for _, sc := range f.schools {
		team := regatta.Team{RegattaID: f.regatta.ID, SchoolID: sc.ID, Name: "1"}
		require.NoError(t, f.store.AddTeam(ctx, &team))
	}
	var err error
	f.teams, err = f.store.ListTeams(ctx, f.regatta.ID)
	require.NoError(t, err)

	if scoring != regatta.ScoringTeam {
		require.NoError(t, f.store.SetRaceCount(ctx, f.regatta.ID, 3, f.boat.ID))
	}
	return f
}

func (f *fixture) races(t *testing.T) []regatta.Race {
	t.Helper()
	races, err := f.store.ListRaces(context.Background(), f.regatta.ID)
	require.NoError(t, err)
	return races
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	sc := &School{Name: "Tufts"}
	require.NoError(t, store.CreateSchool(context.Background(), sc))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetSchool(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tufts", got.Name)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

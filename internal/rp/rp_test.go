// ABOUTME: Tests for RP roster validation and completeness checks
// ABOUTME: Covers school, gender, skipper, crew and double-booking rules

package rp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/regatta"
)

func testManager(participant regatta.Participant) *Manager {
	reg := &regatta.Regatta{
		Scoring:     regatta.ScoringStandard,
		Participant: participant,
		Divisions:   []regatta.Division{regatta.DivisionA, regatta.DivisionB},
	}
	return NewManager(Config{
		Regatta: reg,
		Teams: []regatta.Team{
			{ID: "t1", SchoolID: "mit", SchoolName: "MIT", Name: "Engineers"},
			{ID: "t2", SchoolID: "bu", SchoolName: "BU", Name: "Terriers"},
		},
		Races: []regatta.Race{
			{ID: "1A", Division: regatta.DivisionA, Number: 1, BoatID: "fj"},
			{ID: "2A", Division: regatta.DivisionA, Number: 2, BoatID: "fj"},
			{ID: "1B", Division: regatta.DivisionB, Number: 1, BoatID: "fj"},
		},
		Boats: []regatta.Boat{{ID: "fj", Name: "FJ", MinCrews: 1, MaxCrews: 1}},
		Sailors: []Sailor{
			{ID: "s1", SchoolID: "mit", First: "Ann", Last: "Lee", Year: 2027, Gender: GenderFemale},
			{ID: "s2", SchoolID: "mit", First: "Bob", Last: "Ray", Year: 2026, Gender: GenderMale},
			{ID: "s3", SchoolID: "mit", First: "Cat", Last: "Fox", Year: 2028, Gender: GenderFemale},
			{ID: "s4", SchoolID: "bu", First: "Dan", Last: "Orr", Year: 2025, Gender: GenderMale},
		},
	})
}

func TestSailorName(t *testing.T) {
	assert.Equal(t, "Ann Lee '27", Sailor{First: "Ann", Last: "Lee", Year: 2027}.Name())
	assert.Equal(t, "Ann Lee", Sailor{First: "Ann", Last: "Lee"}.Name())
}

func TestSet_Valid(t *testing.T) {
	m := testManager(regatta.ParticipantCoed)

	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1, 2}))
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleCrew, "s2", []int{1, 2}))
	// setting the same entry twice is a no-op
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}))

	assert.Len(t, m.TeamEntries("t1", regatta.DivisionA), 4)
	assert.Empty(t, m.TeamEntries("t1", regatta.DivisionB))
}

func TestSet_Rules(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Manager)
		team  string
		div   regatta.Division
		role  Role
		who   string
		races []int
		want  error
	}{
		{name: "unknown sailor", team: "t1", div: regatta.DivisionA, role: RoleSkipper, who: "nobody", races: []int{1}, want: ErrUnknownSailor},
		{name: "wrong school", team: "t1", div: regatta.DivisionA, role: RoleSkipper, who: "s4", races: []int{1}, want: ErrWrongSchool},
		{name: "bad role", team: "t1", div: regatta.DivisionA, role: "captain", who: "s1", races: []int{1}, want: ErrInvalidRole},
		{name: "unknown team", team: "t9", div: regatta.DivisionA, role: RoleSkipper, who: "s1", races: []int{1}, want: regatta.ErrUnknownTeam},
		{name: "unknown race", team: "t1", div: regatta.DivisionA, role: RoleSkipper, who: "s1", races: []int{7}, want: regatta.ErrUnknownRace},
		{
			name:  "second skipper",
			setup: func(m *Manager) { _ = m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}) },
			team:  "t1", div: regatta.DivisionA, role: RoleSkipper, who: "s2", races: []int{1},
			want: ErrSkipperTaken,
		},
		{
			name:  "crew limit",
			setup: func(m *Manager) { _ = m.Set("t1", regatta.DivisionA, RoleCrew, "s1", []int{1}) },
			team:  "t1", div: regatta.DivisionA, role: RoleCrew, who: "s2", races: []int{1},
			want: ErrTooManyCrews,
		},
		{
			name:  "two boats same race number",
			setup: func(m *Manager) { _ = m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}) },
			team:  "t1", div: regatta.DivisionB, role: RoleSkipper, who: "s1", races: []int{1},
			want: ErrDoubleBooked,
		},
		{
			name:  "skipper and crew same boat",
			setup: func(m *Manager) { _ = m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}) },
			team:  "t1", div: regatta.DivisionA, role: RoleCrew, who: "s1", races: []int{1},
			want: ErrDoubleBooked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager(regatta.ParticipantCoed)
			if tt.setup != nil {
				tt.setup(m)
			}
			err := m.Set(tt.team, tt.div, tt.role, tt.who, tt.races)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, regatta.IsValidation(err))
		})
	}
}

func TestSet_WomensRegatta(t *testing.T) {
	m := testManager(regatta.ParticipantWomen)

	assert.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}))
	assert.ErrorIs(t, m.Set("t1", regatta.DivisionA, RoleCrew, "s2", []int{1}), ErrGender)
}

func TestSet_AllOrNothing(t *testing.T) {
	m := testManager(regatta.ParticipantCoed)
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{2}))

	err := m.Set("t1", regatta.DivisionA, RoleSkipper, "s2", []int{1, 2})
	assert.ErrorIs(t, err, ErrSkipperTaken)
	err = m.Set("t1", regatta.DivisionA, RoleCrew, "s3", []int{1, 9})
	assert.ErrorIs(t, err, regatta.ErrUnknownRace)

	entries := m.TeamEntries("t1", regatta.DivisionA)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].SailorID)
}

func TestReplace_RestoresOnError(t *testing.T) {
	m := testManager(regatta.ParticipantCoed)
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1, 2}))

	err := m.Replace("t1", regatta.DivisionA, []Assignment{
		{SailorID: "s2", Role: RoleSkipper, Races: []int{1}},
		{SailorID: "s3", Role: RoleSkipper, Races: []int{1}},
	})
	assert.ErrorIs(t, err, ErrSkipperTaken)

	roster := m.Roster("t1", regatta.DivisionA)
	require.Len(t, roster, 1)
	assert.Equal(t, Assignment{SailorID: "s1", Role: RoleSkipper, Races: []int{1, 2}}, roster[0])
}

func TestReplace_AndRoster(t *testing.T) {
	m := testManager(regatta.ParticipantCoed)
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1, 2}))

	err := m.Replace("t1", regatta.DivisionA, []Assignment{
		{SailorID: "s3", Role: RoleCrew, Races: []int{2, 1}},
		{SailorID: "s2", Role: RoleSkipper, Races: []int{1}},
		{SailorID: "s1", Role: RoleSkipper, Races: []int{2}},
		{SailorID: "", Role: RoleCrew, Races: []int{1}},
	})
	require.NoError(t, err)

	assert.Equal(t, []Assignment{
		{SailorID: "s1", Role: RoleSkipper, Races: []int{2}},
		{SailorID: "s2", Role: RoleSkipper, Races: []int{1}},
		{SailorID: "s3", Role: RoleCrew, Races: []int{1, 2}},
	}, m.Roster("t1", regatta.DivisionA))
}

func TestIsComplete(t *testing.T) {
	m := testManager(regatta.ParticipantCoed)
	raced := map[string]bool{"1A": true}

	assert.False(t, m.IsComplete("t1", raced))

	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "s1", []int{1}))
	missing := m.Missing("t1", raced)
	require.Len(t, missing, 1, "crew still missing")
	assert.Equal(t, "1A", missing[0].ID)

	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleCrew, "s2", []int{1}))
	assert.True(t, m.IsComplete("t1", raced))
}

func TestTeamRacingBoatsPerTeam(t *testing.T) {
	reg := &regatta.Regatta{Scoring: regatta.ScoringTeam, Participant: regatta.ParticipantCoed, Divisions: []regatta.Division{regatta.DivisionA}}
	m := NewManager(Config{
		Regatta: reg,
		Teams:   []regatta.Team{{ID: "t1", SchoolID: "mit"}, {ID: "t2", SchoolID: "bu"}},
		Races: []regatta.Race{
			{ID: "r1", Division: regatta.DivisionA, Number: 1, TeamA: "t1", TeamB: "t2"},
			{ID: "r2", Division: regatta.DivisionA, Number: 2, TeamA: "t2", TeamB: "t3"},
		},
		Sailors: []Sailor{
			{ID: "a", SchoolID: "mit"}, {ID: "b", SchoolID: "mit"}, {ID: "c", SchoolID: "mit"},
		},
		BoatsPerTeam: 2,
	})

	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "a", []int{1}))
	require.NoError(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "b", []int{1}))
	assert.ErrorIs(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "c", []int{1}), ErrSkipperTaken)
	assert.ErrorIs(t, m.Set("t1", regatta.DivisionA, RoleSkipper, "c", []int{2}), regatta.ErrUnknownRace, "t1 does not sail race 2")
}

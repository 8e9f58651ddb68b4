// ABOUTME: Tests for teams, races, finishes, penalties, rotations, RP and LoadRegatta
// ABOUTME: Verifies transactional replacement and the scored-race guards

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/rp"
)

func TestTeams(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()

	require.Len(t, f.teams, 3)
	assert.Equal(t, "Navy 1", f.teams[0].DisplayName())

	dup := regatta.Team{RegattaID: f.regatta.ID, SchoolID: f.schools[0].ID, Name: "1"}
	assert.ErrorIs(t, f.store.AddTeam(ctx, &dup), ErrDuplicate)

	require.NoError(t, f.store.RenameTeam(ctx, f.teams[0].ID, "2"))
	teams, err := f.store.ListTeams(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Equal(t, "Navy 2", teams[0].DisplayName())

	require.NoError(t, f.store.DeleteTeam(ctx, f.teams[0].ID))
	teams, err = f.store.ListTeams(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Len(t, teams, 2)

	assert.ErrorIs(t, f.store.DeleteTeam(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, f.store.RenameTeam(ctx, "missing", "x"), ErrNotFound)
}

func TestSetRaceCount(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()

	races := f.races(t)
	require.Len(t, races, 6)
	assert.Equal(t, "1A", races[0].String())
	assert.Equal(t, "1B", races[1].String())
	assert.Equal(t, f.boat.ID, races[0].BoatID)

	require.NoError(t, f.store.SetRaceCount(ctx, f.regatta.ID, 5, f.boat.ID))
	assert.Len(t, f.races(t), 10)

	require.NoError(t, f.store.SetRaceCount(ctx, f.regatta.ID, 2, f.boat.ID))
	assert.Len(t, f.races(t), 4)
}

func TestSetRaceCount_KeepsScoredRaces(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()

	races := f.races(t)
	last := races[len(races)-1]
	require.NoError(t, f.store.SetFinishes(ctx, []string{last.ID}, []*regatta.Finish{
		{RaceID: last.ID, TeamID: f.teams[0].ID, Entered: 1},
	}))

	err := f.store.SetRaceCount(ctx, f.regatta.ID, 2, f.boat.ID)
	assert.ErrorIs(t, err, ErrRaceHasFinishes)
	assert.Len(t, f.races(t), 6)

	err = f.store.DeleteRaces(ctx, []string{last.ID})
	assert.ErrorIs(t, err, ErrRaceHasFinishes)

	require.NoError(t, f.store.DeleteRaces(ctx, []string{races[0].ID}))
	assert.Len(t, f.races(t), 5)
}

func TestFinishes_ReplaceAndModifiers(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()
	race := f.races(t)[0]

	first := []*regatta.Finish{
		{RaceID: race.ID, TeamID: f.teams[0].ID, Entered: 1},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Entered: 2},
		{RaceID: race.ID, TeamID: f.teams[2].ID, Entered: 3},
	}
	require.NoError(t, f.store.SetFinishes(ctx, []string{race.ID}, first))
	for _, fin := range first {
		assert.NotEmpty(t, fin.ID)
	}

	second := []*regatta.Finish{
		{RaceID: race.ID, TeamID: f.teams[2].ID, Entered: 1},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Entered: 2},
		{RaceID: race.ID, TeamID: f.teams[0].ID, Entered: 3},
	}
	require.NoError(t, f.store.SetFinishes(ctx, []string{race.ID}, second))

	got, err := f.store.ListFinishes(ctx, f.regatta.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, f.teams[2].ID, got[0].TeamID)

	mod := &regatta.Modifier{Type: regatta.PenaltyDSQ, Displace: true, Comments: "protest"}
	require.NoError(t, f.store.SetModifier(ctx, got[0].ID, mod))

	got, err = f.store.ListFinishes(ctx, f.regatta.ID)
	require.NoError(t, err)
	require.NotNil(t, got[0].Modifier)
	assert.Equal(t, regatta.PenaltyDSQ, got[0].Modifier.Type)
	assert.True(t, got[0].Modifier.Displace)
	assert.Equal(t, "protest", got[0].Modifier.Comments)

	require.NoError(t, f.store.SetModifier(ctx, got[0].ID, nil))
	got, err = f.store.ListFinishes(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Nil(t, got[0].Modifier)

	assert.ErrorIs(t, f.store.SetModifier(ctx, "missing", mod), ErrNotFound)

	require.NoError(t, f.store.DeleteFinishes(ctx, []string{race.ID}))
	got, err = f.store.ListFinishes(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetFinishes_DuplicateSlot(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	race := f.races(t)[0]

	err := f.store.SetFinishes(context.Background(), []string{race.ID}, []*regatta.Finish{
		{RaceID: race.ID, TeamID: f.teams[0].ID, Entered: 1},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Entered: 1},
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := f.store.ListFinishes(context.Background(), f.regatta.ID)
	require.NoError(t, err)
	assert.Empty(t, got, "failed replacement rolls back")
}

func TestTeamPenalties(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()

	p := regatta.TeamPenalty{TeamID: f.teams[1].ID, Division: regatta.DivisionA, Type: regatta.TeamPenaltyPFD}
	require.NoError(t, f.store.AddTeamPenalty(ctx, p))
	p.Type = regatta.TeamPenaltyMRP
	p.Comments = "missing crew"
	require.NoError(t, f.store.AddTeamPenalty(ctx, p))

	got, err := f.store.ListTeamPenalties(ctx, f.regatta.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, regatta.TeamPenaltyMRP, got[0].Type)
	assert.Equal(t, "missing crew", got[0].Comments)

	require.NoError(t, f.store.DeleteTeamPenalty(ctx, p.TeamID, p.Division))
	assert.ErrorIs(t, f.store.DeleteTeamPenalty(ctx, p.TeamID, p.Division), ErrNotFound)
}

func TestRotation(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()
	race := f.races(t)[0]

	as := []rotation.Assignment{
		{RaceID: race.ID, TeamID: f.teams[0].ID, Sail: "1"},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Sail: "2"},
		{RaceID: race.ID, TeamID: f.teams[2].ID, Sail: "3"},
	}
	require.NoError(t, f.store.SetRotation(ctx, []string{race.ID}, as))

	got, err := f.store.ListRotation(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, as, got)

	dup := []rotation.Assignment{
		{RaceID: race.ID, TeamID: f.teams[0].ID, Sail: "9"},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Sail: "9"},
	}
	assert.ErrorIs(t, f.store.SetRotation(ctx, []string{race.ID}, dup), ErrDuplicate)

	got, err = f.store.ListRotation(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3, "failed replacement keeps the old rotation")
}

func TestRP(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()
	races := f.races(t)
	team := f.teams[1] // Tufts
	var sailor rp.Sailor
	for _, s := range f.sailors {
		if s.SchoolID == team.SchoolID {
			sailor = s
			break
		}
	}

	entries := []rp.Entry{
		{TeamID: team.ID, RaceID: races[0].ID, SailorID: sailor.ID, Role: rp.RoleSkipper},
		{TeamID: team.ID, RaceID: races[2].ID, SailorID: sailor.ID, Role: rp.RoleSkipper},
	}
	require.NoError(t, f.store.SetRP(ctx, team.ID, []string{races[0].ID, races[2].ID}, entries))

	got, err := f.store.ListRP(ctx, f.regatta.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, rp.RoleSkipper, got[0].Role)

	require.NoError(t, f.store.SetRP(ctx, team.ID, []string{races[0].ID}, nil))
	got, err = f.store.ListRP(ctx, f.regatta.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, races[2].ID, got[0].RaceID)
}

func TestLoadRegatta_Scores(t *testing.T) {
	f := seedRegatta(t, regatta.ScoringStandard)
	ctx := context.Background()
	race := f.races(t)[0]

	require.NoError(t, f.store.SetFinishes(ctx, []string{race.ID}, []*regatta.Finish{
		{RaceID: race.ID, TeamID: f.teams[2].ID, Entered: 1},
		{RaceID: race.ID, TeamID: f.teams[0].ID, Entered: 2},
		{RaceID: race.ID, TeamID: f.teams[1].ID, Entered: 3},
	}))

	d, err := f.store.LoadRegatta(ctx, f.regatta.ID)
	require.NoError(t, err)
	assert.Len(t, d.Teams, 3)
	assert.Len(t, d.Races, 6)
	assert.Len(t, d.Sailors, 6)
	assert.Len(t, d.Boats, 1)

	fins := d.FinishesIn(race.ID)
	require.Len(t, fins, 3)
	assert.Equal(t, 1, fins[0].Score)
	assert.Equal(t, 2, fins[1].Score)
	assert.Equal(t, 3, fins[2].Score)

	assert.True(t, d.Raced()[race.ID])
	assert.Len(t, d.UnscoredRaces(), 5)
	assert.Equal(t, []int{1, 2, 3}, d.RaceNumbers())
	assert.Len(t, d.RacesIn(regatta.DivisionB), 3)

	r, ok := d.RaceByNumber(regatta.DivisionA, 1)
	require.True(t, ok)
	assert.Equal(t, race.ID, r.ID)

	_, ok = d.Team("missing")
	assert.False(t, ok)
}

func TestLoadRegatta_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.LoadRegatta(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

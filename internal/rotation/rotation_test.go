// ABOUTME: Tests for rotation generation, tweaks, validation and lookups
// ABOUTME: Verifies each team holds a distinct sail in every race

package rotation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sailsByRace(as []Assignment) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, a := range as {
		if out[a.RaceID] == nil {
			out[a.RaceID] = make(map[string]string)
		}
		out[a.RaceID][a.TeamID] = a.Sail
	}
	return out
}

func TestCreate_Standard(t *testing.T) {
	as, err := Create(Spec{
		Type:        TypeStandard,
		Teams:       []string{"a", "b", "c"},
		Sails:       []string{"1", "2", "3"},
		Races:       []string{"r1", "r2", "r3", "r4"},
		RacesPerSet: 2,
	})
	require.NoError(t, err)
	require.Len(t, as, 12)

	got := sailsByRace(as)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, got["r1"])
	assert.Equal(t, got["r1"], got["r2"], "same set keeps sails")
	assert.Equal(t, map[string]string{"a": "2", "b": "3", "c": "1"}, got["r3"])
}

func TestCreate_SwapEven(t *testing.T) {
	as, err := Create(Spec{
		Type:        TypeSwap,
		Teams:       []string{"a", "b", "c", "d"},
		Sails:       []string{"1", "2", "3", "4"},
		Races:       []string{"r1", "r2"},
		RacesPerSet: 1,
	})
	require.NoError(t, err)

	got := sailsByRace(as)
	assert.Equal(t, map[string]string{"a": "3", "b": "1", "c": "4", "d": "2"}, got["r2"])
}

func TestCreate_SwapIsPermutationEveryRace(t *testing.T) {
	for _, n := range []int{2, 3, 5, 6, 7} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			teams := make([]string, n)
			sails := make([]string, n)
			races := make([]string, 2*n)
			for i := range teams {
				teams[i] = fmt.Sprintf("t%d", i)
				sails[i] = fmt.Sprintf("%d", i+1)
			}
			for i := range races {
				races[i] = fmt.Sprintf("r%d", i)
			}

			as, err := Create(Spec{Type: TypeSwap, Teams: teams, Sails: sails, Races: races, RacesPerSet: 1})
			require.NoError(t, err)

			require.NoError(t, Validate(as, teams, func(id string) string { return id }))
			for race, bySail := range sailsByRace(as) {
				assert.Len(t, bySail, n, race)
			}
		})
	}
}

func TestCreate_None(t *testing.T) {
	as, err := Create(Spec{
		Type:        TypeNone,
		Teams:       []string{"a", "b"},
		Sails:       []string{"7", "9"},
		Races:       []string{"r1", "r2", "r3"},
		RacesPerSet: 1,
	})
	require.NoError(t, err)
	for _, bySail := range sailsByRace(as) {
		assert.Equal(t, map[string]string{"a": "7", "b": "9"}, bySail)
	}
}

func TestCreate_Offset(t *testing.T) {
	base, err := Create(Spec{
		Type:        TypeStandard,
		Teams:       []string{"a", "b", "c"},
		Sails:       []string{"1", "2", "3"},
		Races:       []string{"1A", "2A"},
		RacesPerSet: 1,
	})
	require.NoError(t, err)

	as, err := Create(Spec{
		Type:        TypeOffset,
		Teams:       []string{"a", "b", "c"},
		Races:       []string{"1B", "2B"},
		RacesPerSet: 1,
		Offset:      1,
		Base:        base,
		BaseRaces:   []string{"1A", "2A"},
	})
	require.NoError(t, err)

	got := sailsByRace(as)
	assert.Equal(t, map[string]string{"a": "2", "b": "3", "c": "1"}, got["1B"])
	assert.Equal(t, map[string]string{"a": "3", "b": "1", "c": "2"}, got["2B"])
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"bad type", Spec{Type: "XYZ", Races: []string{"r"}, RacesPerSet: 1}, ErrInvalidType},
		{"no races", Spec{Type: TypeStandard, RacesPerSet: 1}, ErrNoRaces},
		{"races per set", Spec{Type: TypeStandard, Races: []string{"r"}}, ErrRacesPerSet},
		{"sail count", Spec{Type: TypeStandard, Teams: []string{"a"}, Sails: []string{"1", "2"}, Races: []string{"r"}, RacesPerSet: 1}, ErrSailCount},
		{"duplicate sail", Spec{Type: TypeStandard, Teams: []string{"a", "b"}, Sails: []string{"1", "1"}, Races: []string{"r"}, RacesPerSet: 1}, ErrDuplicateSail},
		{"offset without base", Spec{Type: TypeOffset, Teams: []string{"a"}, Races: []string{"r"}, RacesPerSet: 1}, ErrMissingBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTweak(t *testing.T) {
	as := []Assignment{
		{RaceID: "r1", TeamID: "a", Sail: "1"},
		{RaceID: "r1", TeamID: "b", Sail: "2"},
		{RaceID: "r2", TeamID: "a", Sail: "2"},
	}
	r1 := map[string]bool{"r1": true}

	added, err := Tweak(as, r1, TweakAdd, 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, "11", added[0].Sail)
	assert.Equal(t, "12", added[1].Sail)
	assert.Equal(t, "2", added[2].Sail, "other races untouched")
	assert.Equal(t, "1", as[0].Sail, "input not modified")

	_, err = Tweak(as, r1, TweakSub, 1, "", "")
	assert.ErrorIs(t, err, ErrSailRange)

	replaced, err := Tweak(as, map[string]bool{"r1": true, "r2": true}, TweakReplace, 0, "2", "2X")
	require.NoError(t, err)
	assert.Equal(t, "2X", replaced[1].Sail)
	assert.Equal(t, "2X", replaced[2].Sail)

	_, err = Tweak(as, r1, TweakReplace, 0, "99", "100")
	assert.Error(t, err)

	_, err = Tweak([]Assignment{{RaceID: "r1", TeamID: "a", Sail: "A1"}}, r1, TweakAdd, 1, "", "")
	assert.ErrorIs(t, err, ErrNonNumericSail)
}

func TestValidate_GroupedRaces(t *testing.T) {
	as := []Assignment{
		{RaceID: "1A", TeamID: "a", Sail: "1"},
		{RaceID: "1B", TeamID: "b", Sail: "1"},
	}
	perRace := func(id string) string { return id }
	byNumber := func(id string) string { return id[:1] }

	assert.NoError(t, Validate(as, nil, perRace))
	assert.ErrorIs(t, Validate(as, nil, byNumber), ErrDuplicateSail)
}

func TestValidate_EveryTeamInEveryRace(t *testing.T) {
	as := []Assignment{
		{RaceID: "r1", TeamID: "a", Sail: "1"},
		{RaceID: "r1", TeamID: "b", Sail: "2"},
		{RaceID: "r2", TeamID: "a", Sail: "2"},
		{RaceID: "r2", TeamID: "b", Sail: "1"},
	}
	perRace := func(id string) string { return id }

	assert.NoError(t, Validate(as, []string{"a", "b"}, perRace))
	assert.NoError(t, Validate(nil, []string{"a", "b", "c"}, perRace))

	err := Validate(as, []string{"a", "b", "c"}, perRace)
	require.ErrorIs(t, err, ErrMissingTeam)
	assert.Contains(t, err.Error(), "c in race r1")

	err = Validate(as[:3], []string{"a", "b"}, perRace)
	require.ErrorIs(t, err, ErrMissingTeam)
	assert.Contains(t, err.Error(), "b in race r2")
}

func TestTable(t *testing.T) {
	tbl := NewTable([]Assignment{
		{RaceID: "r1", TeamID: "a", Sail: "10"},
		{RaceID: "r1", TeamID: "b", Sail: "9"},
		{RaceID: "r1", TeamID: "c", Sail: "B"},
	})

	assert.Equal(t, "10", tbl.Sail("r1", "a"))
	assert.Equal(t, "b", tbl.Team("r1", " 9 "))
	assert.Equal(t, "", tbl.Team("r2", "9"))
	assert.True(t, tbl.HasRace("r1"))
	assert.False(t, tbl.Empty())
	assert.Equal(t, []string{"9", "10", "B"}, tbl.Sails("r1"))
}

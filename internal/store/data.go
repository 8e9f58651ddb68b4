// ABOUTME: RegattaData aggregate loaded in one call for panes, dialogs and the API
// ABOUTME: Scores finishes on load and offers lookups by team, race and division

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/rp"
)

// RegattaData is a regatta with everything needed to render or score it.
// Finishes are scored when loaded.
type RegattaData struct {
	Regatta   *regatta.Regatta
	Teams     []regatta.Team
	Races     []regatta.Race
	Finishes  []*regatta.Finish
	Penalties []regatta.TeamPenalty
	Rotation  []rotation.Assignment
	RP        []rp.Entry
	Sailors   []rp.Sailor
	Boats     []regatta.Boat
	Summaries []regatta.DailySummary
	Scorers   []Scorer
}

// LoadRegatta loads and scores a regatta.
func (s *SQLiteStore) LoadRegatta(ctx context.Context, id string) (*RegattaData, error) {
	reg, err := s.GetRegatta(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &RegattaData{Regatta: reg}

	if d.Teams, err = s.ListTeams(ctx, id); err != nil {
		return nil, err
	}
	if d.Races, err = s.ListRaces(ctx, id); err != nil {
		return nil, err
	}
	if d.Finishes, err = s.ListFinishes(ctx, id); err != nil {
		return nil, err
	}
	if d.Penalties, err = s.ListTeamPenalties(ctx, id); err != nil {
		return nil, err
	}
	if d.Rotation, err = s.ListRotation(ctx, id); err != nil {
		return nil, err
	}
	if d.RP, err = s.ListRP(ctx, id); err != nil {
		return nil, err
	}
	if d.Boats, err = s.ListBoats(ctx); err != nil {
		return nil, err
	}
	if d.Summaries, err = s.ListDailySummaries(ctx, id); err != nil {
		return nil, err
	}
	if d.Scorers, err = s.ListScorers(ctx, id); err != nil {
		return nil, err
	}

	schools := make([]string, 0, len(d.Teams))
	seen := make(map[string]bool)
	for _, t := range d.Teams {
		if !seen[t.SchoolID] {
			seen[t.SchoolID] = true
			schools = append(schools, t.SchoolID)
		}
	}
	if d.Sailors, err = s.ListSailors(ctx, schools); err != nil {
		return nil, err
	}

	if err := d.Score(); err != nil {
		return nil, err
	}
	return d, nil
}

// Score (re)computes the score of every finish.
func (d *RegattaData) Score() error {
	if err := regatta.Score(d.Regatta, d.Teams, d.Races, d.Finishes); err != nil {
		return fmt.Errorf("scoring regatta %s: %w", d.Regatta.ID, err)
	}
	return nil
}

// Results returns the ranking input for the scored regatta.
func (d *RegattaData) Results() *regatta.Results {
	return &regatta.Results{
		Regatta:   d.Regatta,
		Teams:     d.Teams,
		Races:     d.Races,
		Finishes:  d.Finishes,
		Penalties: d.Penalties,
	}
}

// Team returns the team with the given ID.
func (d *RegattaData) Team(id string) (regatta.Team, bool) {
	for _, t := range d.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return regatta.Team{}, false
}

// TeamIDs lists the team IDs in display order.
func (d *RegattaData) TeamIDs() []string {
	ids := make([]string, len(d.Teams))
	for i, t := range d.Teams {
		ids[i] = t.ID
	}
	return ids
}

// Race returns the race with the given ID.
func (d *RegattaData) Race(id string) (regatta.Race, bool) {
	for _, r := range d.Races {
		if r.ID == id {
			return r, true
		}
	}
	return regatta.Race{}, false
}

// RaceByNumber returns the race with the given division and number.
func (d *RegattaData) RaceByNumber(div regatta.Division, number int) (regatta.Race, bool) {
	for _, r := range d.Races {
		if r.Division == div && r.Number == number {
			return r, true
		}
	}
	return regatta.Race{}, false
}

// RacesIn returns the races of one division in number order.
func (d *RegattaData) RacesIn(div regatta.Division) []regatta.Race {
	var out []regatta.Race
	for _, r := range d.Races {
		if r.Division == div {
			out = append(out, r)
		}
	}
	return out
}

// RaceNumbers returns the distinct race numbers, ascending.
func (d *RegattaData) RaceNumbers() []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range d.Races {
		if !seen[r.Number] {
			seen[r.Number] = true
			out = append(out, r.Number)
		}
	}
	sort.Ints(out)
	return out
}

// FinishesIn returns the finishes of one race in entered order.
func (d *RegattaData) FinishesIn(raceID string) []*regatta.Finish {
	var out []*regatta.Finish
	for _, f := range d.Finishes {
		if f.RaceID == raceID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entered < out[j].Entered })
	return out
}

// Raced returns the set of race IDs that have finishes.
func (d *RegattaData) Raced() map[string]bool {
	out := make(map[string]bool)
	for _, f := range d.Finishes {
		out[f.RaceID] = true
	}
	return out
}

// UnscoredRaces returns the races without finishes, in sailing order.
func (d *RegattaData) UnscoredRaces() []regatta.Race {
	raced := d.Raced()
	var out []regatta.Race
	for _, r := range d.Races {
		if !raced[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// RotationTable indexes the rotation.
func (d *RegattaData) RotationTable() *rotation.Table {
	return rotation.NewTable(d.Rotation)
}

// RPManager builds an RP manager over the loaded roster.
func (d *RegattaData) RPManager(boatsPerTeam int) *rp.Manager {
	return rp.NewManager(rp.Config{
		Regatta:      d.Regatta,
		Teams:        d.Teams,
		Races:        d.Races,
		Boats:        d.Boats,
		Sailors:      d.Sailors,
		Entries:      d.RP,
		BoatsPerTeam: boatsPerTeam,
	})
}

// Sailor returns the sailor with the given ID.
func (d *RegattaData) Sailor(id string) (rp.Sailor, bool) {
	for _, s := range d.Sailors {
		if s.ID == id {
			return s, true
		}
	}
	return rp.Sailor{}, false
}

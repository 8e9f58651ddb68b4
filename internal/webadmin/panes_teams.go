// ABOUTME: Teams and races panes: add, rename and remove teams; set race count and boats
// ABOUTME: Fleet regattas lock their team list once any race is scored

package webadmin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

type teamsPane struct{}

func (teamsPane) Name() string                     { return "teams" }
func (teamsPane) Title() string                    { return "Teams" }
func (teamsPane) IsActive(*store.RegattaData) bool { return true }

type teamRow struct {
	Team   regatta.Team
	Scored bool
}

type teamsView struct {
	*Page
	Teams   []teamRow
	Schools []*store.School
	Locked  bool
}

// scoredTeams returns the teams that have at least one finish.
func scoredTeams(d *store.RegattaData) map[string]bool {
	out := make(map[string]bool)
	for _, f := range d.Finishes {
		out[f.TeamID] = true
	}
	return out
}

// teamsLocked reports whether the fleet is fixed because races are scored.
func teamsLocked(d *store.RegattaData) bool {
	return d.Regatta.Scoring != regatta.ScoringTeam && len(d.Finishes) > 0
}

func (teamsPane) Render(w io.Writer, r *http.Request, p *Page) error {
	schools, err := p.store.ListSchools(r.Context())
	if err != nil {
		return fmt.Errorf("listing schools: %w", err)
	}
	scored := scoredTeams(p.Data)
	v := teamsView{Page: p, Schools: schools, Locked: teamsLocked(p.Data)}
	for _, t := range p.Data.Teams {
		v.Teams = append(v.Teams, teamRow{Team: t, Scored: scored[t.ID]})
	}
	return renderFragment(w, "pane-teams", v)
}

func (pane teamsPane) Process(r *http.Request, p *Page) (string, error) {
	switch r.FormValue("action") {
	case "rename":
		return "", pane.rename(r, p)
	case "remove":
		return "", pane.remove(r, p)
	default:
		return "", pane.add(r, p)
	}
}

func (teamsPane) add(r *http.Request, p *Page) error {
	if teamsLocked(p.Data) {
		return invalid("school", "Teams cannot be added once races have been scored.")
	}
	schoolIDs := r.Form["school"]
	if len(schoolIDs) == 0 {
		return invalid("school", "Please choose at least one school.")
	}

	ctx := r.Context()
	taken := make(map[string]bool)
	for _, t := range p.Data.Teams {
		taken[t.SchoolID+"/"+t.Name] = true
	}
	for _, id := range schoolIDs {
		school, err := p.store.GetSchool(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return invalid("school", "Unknown school.")
		}
		if err != nil {
			return fmt.Errorf("getting school: %w", err)
		}

		n := 1
		for taken[id+"/"+strconv.Itoa(n)] {
			n++
		}
		team := &regatta.Team{
			RegattaID:  p.Regatta().ID,
			SchoolID:   id,
			SchoolName: school.Name,
			Name:       strconv.Itoa(n),
		}
		taken[id+"/"+team.Name] = true
		if err := p.store.AddTeam(ctx, team); err != nil {
			return fmt.Errorf("adding team: %w", err)
		}
		p.record(change{
			message:    "Added " + team.DisplayName() + ".",
			action:     store.AuditAddTeam,
			targetType: "team",
			targetID:   team.ID,
			detail:     map[string]any{"school": school.Name},
			activity:   updates.ActivityTeam,
			arg:        team.ID,
		})
	}
	return clearRotation(ctx, p)
}

// clearRotation drops a rotation that no longer gives every team a sail.
func clearRotation(ctx context.Context, p *Page) error {
	if len(p.Data.Rotation) == 0 {
		return nil
	}
	races := make(map[string]bool)
	var raceIDs []string
	for _, a := range p.Data.Rotation {
		if !races[a.RaceID] {
			races[a.RaceID] = true
			raceIDs = append(raceIDs, a.RaceID)
		}
	}
	if err := p.store.SetRotation(ctx, raceIDs, nil); err != nil {
		return fmt.Errorf("clearing rotation: %w", err)
	}
	p.record(change{
		message:  "The sail rotation was removed because it does not include the new teams. Please create it again.",
		action:   store.AuditSetRotation,
		detail:   map[string]any{"cleared": len(raceIDs)},
		activity: updates.ActivityRotation,
	})
	return nil
}

func (teamsPane) rename(r *http.Request, p *Page) error {
	team, ok := p.Data.Team(r.FormValue("team"))
	if !ok {
		return regatta.Invalid(regatta.ErrUnknownTeam, "team", "Unknown team.")
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		return invalid("name", "Team name is required.")
	}
	if name == team.Name {
		return invalid("name", "The team already has that name.")
	}
	err := p.store.RenameTeam(r.Context(), team.ID, name)
	if errors.Is(err, store.ErrDuplicate) {
		return invalid("name", fmt.Sprintf("%s already has a team named %q.", team.SchoolName, name))
	}
	if err != nil {
		return fmt.Errorf("renaming team: %w", err)
	}
	old := team.DisplayName()
	team.Name = name
	p.record(change{
		message:    "Renamed " + old + " to " + team.DisplayName() + ".",
		action:     store.AuditRenameTeam,
		targetType: "team",
		targetID:   team.ID,
		detail:     map[string]any{"from": old, "to": name},
		activity:   updates.ActivityTeam,
		arg:        team.ID,
	})
	return nil
}

func (teamsPane) remove(r *http.Request, p *Page) error {
	team, ok := p.Data.Team(r.FormValue("team"))
	if !ok {
		return regatta.Invalid(regatta.ErrUnknownTeam, "team", "Unknown team.")
	}
	if teamsLocked(p.Data) || scoredTeams(p.Data)[team.ID] {
		return invalid("team", team.DisplayName()+" has finishes and cannot be removed.")
	}
	if err := p.store.DeleteTeam(r.Context(), team.ID); err != nil {
		return fmt.Errorf("removing team: %w", err)
	}
	p.record(change{
		message:    "Removed " + team.DisplayName() + ".",
		action:     store.AuditRemoveTeam,
		targetType: "team",
		targetID:   team.ID,
		activity:   updates.ActivityTeam,
		arg:        team.ID,
	})
	return nil
}

type racesPane struct{}

func (racesPane) Name() string                     { return "races" }
func (racesPane) Title() string                    { return "Races" }
func (racesPane) IsActive(*store.RegattaData) bool { return true }

type raceNumberRow struct {
	Number int
	BoatID string
	Scored bool
}

type racesView struct {
	*Page
	Count int
	Boats []regatta.Boat
	Rows  []raceNumberRow
}

func (racesPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	raced := p.Data.Raced()
	v := racesView{Page: p, Boats: p.Data.Boats}
	for _, n := range p.Data.RaceNumbers() {
		row := raceNumberRow{Number: n}
		for _, div := range p.Regatta().Divisions {
			if race, ok := p.Data.RaceByNumber(div, n); ok {
				if row.BoatID == "" {
					row.BoatID = race.BoatID
				}
				row.Scored = row.Scored || raced[race.ID]
			}
		}
		v.Rows = append(v.Rows, row)
		v.Count = n
	}
	return renderFragment(w, "pane-races", v)
}

func (pane racesPane) Process(r *http.Request, p *Page) (string, error) {
	if r.FormValue("action") == "boats" {
		return "", pane.setBoats(r, p)
	}

	count, err := formInt(r, "count", 0)
	if err != nil {
		return "", err
	}
	if count < 1 || count > maxRaces {
		return "", invalid("count", fmt.Sprintf("Number of races must be between 1 and %d.", maxRaces))
	}
	boat, err := formBoat(r, p.Data.Boats, p.config.DefaultBoat)
	if err != nil {
		return "", err
	}

	err = p.store.SetRaceCount(r.Context(), p.Regatta().ID, count, boat)
	if errors.Is(err, store.ErrRaceHasFinishes) {
		return "", invalid("count", "Races that have been scored cannot be removed. Drop their finishes first.")
	}
	if err != nil {
		return "", fmt.Errorf("setting race count: %w", err)
	}
	p.record(change{
		message:  fmt.Sprintf("Each division now has %d races.", count),
		action:   store.AuditSetRaces,
		detail:   map[string]any{"count": count},
		activity: updates.ActivityDetails,
	})
	return "", nil
}

func (racesPane) setBoats(r *http.Request, p *Page) error {
	known := make(map[string]bool, len(p.Data.Boats))
	for _, b := range p.Data.Boats {
		known[b.ID] = true
	}

	changed := 0
	for _, race := range p.Data.Races {
		boat := r.FormValue("boat-" + strconv.Itoa(race.Number))
		if boat == "" || boat == race.BoatID {
			continue
		}
		if !known[boat] {
			return invalid("boat", "Unknown boat.")
		}
		if err := p.store.UpdateRaceBoat(r.Context(), race.ID, boat); err != nil {
			return fmt.Errorf("updating boat for race %s: %w", race, err)
		}
		changed++
	}
	if changed == 0 {
		return invalid("boat", "No boats were changed.")
	}
	p.record(change{
		message:  "Updated the boat in " + englishRaces(changed) + ".",
		action:   store.AuditSetRaces,
		detail:   map[string]any{"boats": changed},
		activity: updates.ActivityDetails,
	})
	return nil
}

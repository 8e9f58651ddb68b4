// ABOUTME: Penalty panes: finish penalties and breakdowns, dropping them, and team penalties
// ABOUTME: Team penalties add fixed points to one team in one division

package webadmin

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

// finishOption is a finish the scorer can pick in a penalty form.
type finishOption struct {
	ID       string
	Race     regatta.Race
	Team     regatta.Team
	Score    int
	Modifier *regatta.Modifier
	Note     string
}

func (o finishOption) Label() string {
	return fmt.Sprintf("Race %s: %s (%d)", o.Race, o.Team.DisplayName(), o.Score)
}

// finishOptions lists finishes in race order, optionally only those with
// a modifier.
func finishOptions(d *store.RegattaData, modified bool) []finishOption {
	var out []finishOption
	for _, race := range d.Races {
		for _, f := range d.FinishesIn(race.ID) {
			if modified && f.Modifier == nil {
				continue
			}
			t, _ := d.Team(f.TeamID)
			out = append(out, finishOption{ID: f.ID, Race: race, Team: t, Score: f.Score, Modifier: f.Modifier, Note: f.Explanation})
		}
	}
	return out
}

func findFinish(d *store.RegattaData, id string) (*regatta.Finish, regatta.Race, bool) {
	for _, f := range d.Finishes {
		if f.ID == id {
			race, _ := d.Race(f.RaceID)
			return f, race, true
		}
	}
	return nil, regatta.Race{}, false
}

type penaltyPane struct{}

func (penaltyPane) Name() string  { return "penalty" }
func (penaltyPane) Title() string { return "Add penalty" }

func (penaltyPane) IsActive(d *store.RegattaData) bool {
	return len(d.Finishes) > 0
}

type penaltyView struct {
	*Page
	Finishes   []finishOption
	Penalties  []regatta.ModifierType
	Breakdowns []regatta.ModifierType
}

func (penaltyPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	return renderFragment(w, "pane-penalty", penaltyView{
		Page:       p,
		Finishes:   finishOptions(p.Data, false),
		Penalties:  regatta.PenaltyTypes,
		Breakdowns: regatta.BreakdownTypes,
	})
}

func (penaltyPane) Process(r *http.Request, p *Page) (string, error) {
	f, race, ok := findFinish(p.Data, r.FormValue("finish"))
	if !ok {
		return "", regatta.Invalid(regatta.ErrInvalidFinishes, "finish", "Please choose a finish.")
	}
	typ, err := regatta.ParseModifierType(r.FormValue("type"))
	if err != nil {
		return "", regatta.Invalid(err, "type", "Please choose a penalty or breakdown.")
	}
	amount, err := formInt(r, "amount", 0)
	if err != nil {
		return "", err
	}
	if amount < 0 {
		return "", invalid("amount", "Amount may not be negative.")
	}
	displace := r.FormValue("displace") != ""
	if displace && !typ.IsPenalty() {
		return "", invalid("displace", "Only penalties can displace other finishers.")
	}

	m := &regatta.Modifier{
		Type:     typ,
		Amount:   amount,
		Displace: displace,
		Comments: strings.TrimSpace(r.FormValue("comments")),
	}
	if err := p.store.SetModifier(r.Context(), f.ID, m); err != nil {
		return "", fmt.Errorf("setting modifier: %w", err)
	}
	team, _ := p.Data.Team(f.TeamID)
	p.record(change{
		message:    fmt.Sprintf("Added %s for %s in race %s.", typ, team.DisplayName(), race),
		action:     store.AuditAddPenalty,
		targetType: "finish",
		targetID:   f.ID,
		detail:     map[string]any{"type": string(typ), "amount": amount, "race": race.String()},
		activity:   updates.ActivityScore,
	})
	return "", nil
}

type dropPenaltyPane struct{}

func (dropPenaltyPane) Name() string  { return "drop-penalty" }
func (dropPenaltyPane) Title() string { return "Drop penalty" }

func (dropPenaltyPane) IsActive(d *store.RegattaData) bool {
	for _, f := range d.Finishes {
		if f.Modifier != nil {
			return true
		}
	}
	return false
}

type dropPenaltyView struct {
	*Page
	Finishes []finishOption
}

func (dropPenaltyPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	return renderFragment(w, "pane-drop-penalty", dropPenaltyView{Page: p, Finishes: finishOptions(p.Data, true)})
}

func (dropPenaltyPane) Process(r *http.Request, p *Page) (string, error) {
	f, race, ok := findFinish(p.Data, r.FormValue("finish"))
	if !ok || f.Modifier == nil {
		return "", regatta.Invalid(regatta.ErrInvalidFinishes, "finish", "Please choose a penalized finish.")
	}
	typ := f.Modifier.Type
	if err := p.store.SetModifier(r.Context(), f.ID, nil); err != nil {
		return "", fmt.Errorf("dropping modifier: %w", err)
	}
	team, _ := p.Data.Team(f.TeamID)
	p.record(change{
		message:    fmt.Sprintf("Dropped %s for %s in race %s.", typ, team.DisplayName(), race),
		action:     store.AuditDropPenalty,
		targetType: "finish",
		targetID:   f.ID,
		detail:     map[string]any{"type": string(typ), "race": race.String()},
		activity:   updates.ActivityScore,
	})
	return "", nil
}

type teamPenaltyPane struct{}

func (teamPenaltyPane) Name() string  { return "team-penalty" }
func (teamPenaltyPane) Title() string { return "Team penalty" }

func (teamPenaltyPane) IsActive(d *store.RegattaData) bool {
	return len(d.Teams) > 0
}

type teamPenaltyRow struct {
	Team    regatta.Team
	Penalty regatta.TeamPenalty
}

type teamPenaltyView struct {
	*Page
	Types    []regatta.TeamPenaltyType
	Existing []teamPenaltyRow
	Points   int
}

func (teamPenaltyPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	v := teamPenaltyView{Page: p, Types: regatta.TeamPenaltyTypes, Points: regatta.TeamPenaltyPoints}
	for _, pen := range p.Data.Penalties {
		t, _ := p.Data.Team(pen.TeamID)
		v.Existing = append(v.Existing, teamPenaltyRow{Team: t, Penalty: pen})
	}
	return renderFragment(w, "pane-team-penalty", v)
}

func (pane teamPenaltyPane) Process(r *http.Request, p *Page) (string, error) {
	team, ok := p.Data.Team(r.FormValue("team"))
	if !ok {
		return "", regatta.Invalid(regatta.ErrUnknownTeam, "team", "Please choose a team.")
	}
	if r.FormValue("action") == "drop" {
		return "", pane.drop(r, p, team)
	}

	divs, err := formDivisions(r, p.Regatta())
	if err != nil {
		return "", err
	}
	typ := regatta.TeamPenaltyType(strings.ToUpper(r.FormValue("type")))
	known := false
	for _, t := range regatta.TeamPenaltyTypes {
		known = known || t == typ
	}
	if !known {
		return "", invalid("type", "Please choose a team penalty.")
	}
	comments := strings.TrimSpace(r.FormValue("comments"))

	for _, div := range divs {
		for _, pen := range p.Data.Penalties {
			if pen.TeamID == team.ID && pen.Division == div {
				return "", invalid("team", fmt.Sprintf("%s already has a penalty in division %s.", team.DisplayName(), div))
			}
		}
	}
	for _, div := range divs {
		err := p.store.AddTeamPenalty(r.Context(), regatta.TeamPenalty{
			TeamID:   team.ID,
			Division: div,
			Type:     typ,
			Comments: comments,
		})
		if err != nil {
			return "", fmt.Errorf("adding team penalty: %w", err)
		}
		p.record(change{
			message:    fmt.Sprintf("Added %s for %s in division %s.", typ, team.DisplayName(), div),
			action:     store.AuditAddTeamPenalty,
			targetType: "team",
			targetID:   team.ID,
			detail:     map[string]any{"type": string(typ), "division": string(div)},
			activity:   updates.ActivityScore,
		})
	}
	return "", nil
}

func (teamPenaltyPane) drop(r *http.Request, p *Page, team regatta.Team) error {
	div, err := regatta.ParseDivision(r.FormValue("division"))
	if err != nil {
		return invalid("division", "Please choose a division.")
	}
	found := false
	for _, pen := range p.Data.Penalties {
		found = found || (pen.TeamID == team.ID && pen.Division == div)
	}
	if !found {
		return invalid("team", fmt.Sprintf("%s has no penalty in division %s.", team.DisplayName(), div))
	}
	if err := p.store.DeleteTeamPenalty(r.Context(), team.ID, div); err != nil {
		return fmt.Errorf("dropping team penalty: %w", err)
	}
	p.record(change{
		message:    fmt.Sprintf("Dropped team penalty for %s in division %s.", team.DisplayName(), div),
		action:     store.AuditDropTeamPenalty,
		targetType: "team",
		targetID:   team.ID,
		detail:     map[string]any{"division": string(div)},
		activity:   updates.ActivityScore,
	})
	return nil
}

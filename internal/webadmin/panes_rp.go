// ABOUTME: RP pane: skippers and crews for one team, division by division
// ABOUTME: Each row assigns a sailor and role to a list of race numbers

package webadmin

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rp"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

// rpBlankRows is how many empty rows each division offers.
const rpBlankRows = 4

type rpPane struct{}

func (rpPane) Name() string  { return "rp" }
func (rpPane) Title() string { return "Enter RP" }

func (rpPane) IsActive(d *store.RegattaData) bool {
	return len(d.Teams) > 0 && len(d.Races) > 0
}

type rpRow struct {
	SailorID string
	Role     rp.Role
	Races    string
}

type rpDivision struct {
	Division regatta.Division
	Rows     []rpRow
	Missing  []regatta.Race
}

type rpView struct {
	*Page
	Team      regatta.Team
	Sailors   []rp.Sailor
	Roles     []rp.Role
	Divisions []rpDivision
}

// boatsPerTeam is the number of boats a team sails in one race.
func (p *Page) boatsPerTeam() int {
	if p.Regatta().Scoring == regatta.ScoringTeam {
		return p.config.TeamBoats
	}
	return 1
}

func (rpPane) team(r *http.Request, p *Page) regatta.Team {
	id := r.FormValue("team")
	if id == "" {
		id = r.URL.Query().Get("team")
	}
	if t, ok := p.Data.Team(id); ok {
		return t
	}
	return p.Data.Teams[0]
}

func rpField(name string, div regatta.Division) string {
	return name + "-" + string(div)
}

func (pane rpPane) Render(w io.Writer, r *http.Request, p *Page) error {
	team := pane.team(r, p)
	mgr := p.Data.RPManager(p.boatsPerTeam())
	raced := p.Data.Raced()

	v := rpView{Page: p, Team: team, Roles: []rp.Role{rp.RoleSkipper, rp.RoleCrew}}
	for _, s := range p.Data.Sailors {
		if s.SchoolID == team.SchoolID {
			v.Sailors = append(v.Sailors, s)
		}
	}
	missing := mgr.Missing(team.ID, raced)
	for _, div := range p.Regatta().Divisions {
		rd := rpDivision{Division: div}
		for _, a := range mgr.Roster(team.ID, div) {
			rd.Rows = append(rd.Rows, rpRow{SailorID: a.SailorID, Role: a.Role, Races: formatNumbers(a.Races)})
		}
		for i := 0; i < rpBlankRows; i++ {
			rd.Rows = append(rd.Rows, rpRow{Role: rp.RoleCrew})
		}
		for _, race := range missing {
			if race.Division == div {
				rd.Missing = append(rd.Missing, race)
			}
		}
		v.Divisions = append(v.Divisions, rd)
	}
	return renderFragment(w, "pane-rp", v)
}

// readAssignments reads the parallel sailor, role and races fields of one
// division.
func readAssignments(r *http.Request, div regatta.Division) ([]rp.Assignment, error) {
	sailors := r.Form[rpField("sailor", div)]
	roles := r.Form[rpField("role", div)]
	races := r.Form[rpField("races", div)]

	var out []rp.Assignment
	for i, sailor := range sailors {
		if sailor == "" {
			continue
		}
		var role rp.Role
		if i < len(roles) {
			role = rp.Role(roles[i])
		}
		if !role.Valid() {
			return nil, regatta.Invalid(rp.ErrInvalidRole, "role", "Please choose skipper or crew.")
		}
		text := ""
		if i < len(races) {
			text = races[i]
		}
		nums, err := parseNumbers(text)
		if err != nil {
			return nil, invalid("races", fmt.Sprintf("Invalid race list %q in division %s.", strings.TrimSpace(text), div))
		}
		out = append(out, rp.Assignment{SailorID: sailor, Role: role, Races: nums})
	}
	return out, nil
}

func (pane rpPane) Process(r *http.Request, p *Page) (string, error) {
	team, ok := p.Data.Team(r.FormValue("team"))
	if !ok {
		return "", regatta.Invalid(regatta.ErrUnknownTeam, "team", "Please choose a team.")
	}
	mgr := p.Data.RPManager(p.boatsPerTeam())

	type divisionRP struct {
		raceIDs []string
		entries []rp.Entry
	}
	var pending []divisionRP
	for _, div := range p.Regatta().Divisions {
		if _, posted := r.Form[rpField("sailor", div)]; !posted {
			continue
		}
		as, err := readAssignments(r, div)
		if err != nil {
			return "", err
		}
		if err := mgr.Replace(team.ID, div, as); err != nil {
			return "", err
		}
		var raceIDs []string
		for _, race := range p.Data.RacesIn(div) {
			if p.Regatta().Scoring != regatta.ScoringTeam || race.HasTeam(team.ID) {
				raceIDs = append(raceIDs, race.ID)
			}
		}
		pending = append(pending, divisionRP{raceIDs: raceIDs, entries: mgr.TeamEntries(team.ID, div)})
	}
	if len(pending) == 0 {
		return "", invalid("team", "No RP information was submitted.")
	}

	for _, u := range pending {
		err := p.store.SetRP(r.Context(), team.ID, u.raceIDs, u.entries)
		if errors.Is(err, store.ErrDuplicate) {
			return "", regatta.Invalid(rp.ErrDoubleBooked, "sailor", "A sailor is listed twice in the same race.")
		}
		if err != nil {
			return "", fmt.Errorf("saving RP: %w", err)
		}
	}

	msg := "Updated RP for " + team.DisplayName() + "."
	if !mgr.IsComplete(team.ID, p.Data.Raced()) {
		msg = "Updated RP for " + team.DisplayName() + ". Some raced boats are still missing sailors."
	}
	p.record(change{
		message:    msg,
		action:     store.AuditSetRP,
		targetType: "team",
		targetID:   team.ID,
		activity:   updates.ActivityRP,
		arg:        team.ID,
	})
	return p.URL("rp") + "?team=" + team.ID, nil
}

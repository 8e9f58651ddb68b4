// ABOUTME: Read-only dialogs: scores, rotation, RP roster and change history
// ABOUTME: Dialogs open in their own window and never change the regatta

package webadmin

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rp"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/teamrace"
)

type scoresDialog struct{}

func (scoresDialog) Name() string  { return "scores" }
func (scoresDialog) Title() string { return "Scores" }

type rankTable struct {
	Title   string
	Numbers []int
	Ranks   []*regatta.Rank
}

type standingRow struct {
	Team     regatta.Team
	Standing *teamrace.Standing
}

type scoresView struct {
	*Page
	Tables    []rankTable
	Standings []standingRow
	Outcomes  []outcomeRow
}

type outcomeRow struct {
	Race    regatta.Race
	TeamA   regatta.Team
	TeamB   regatta.Team
	Outcome teamrace.Outcome
}

func (scoresDialog) Render(w io.Writer, _ *http.Request, p *Page) error {
	d := p.Data
	v := scoresView{Page: p}

	if d.Regatta.Scoring == regatta.ScoringTeam {
		outcomes, err := teamrace.Results(d.Races, d.Finishes)
		if err != nil {
			return fmt.Errorf("deciding team races: %w", err)
		}
		ids := make([]string, len(d.Teams))
		for i, t := range d.Teams {
			ids[i] = t.ID
		}
		for _, s := range teamrace.Standings(ids, outcomes) {
			t, _ := d.Team(s.TeamID)
			v.Standings = append(v.Standings, standingRow{Team: t, Standing: s})
		}
		for _, o := range outcomes {
			race, _ := d.Race(o.RaceID)
			a, _ := d.Team(o.TeamA)
			b, _ := d.Team(o.TeamB)
			v.Outcomes = append(v.Outcomes, outcomeRow{Race: race, TeamA: a, TeamB: b, Outcome: o})
		}
		return renderFragment(w, "dialog-scores", v)
	}

	res := d.Results()
	numbers := scoredNumbers(d)
	switch {
	case d.Regatta.Scoring == regatta.ScoringCombined:
		v.Tables = append(v.Tables, rankTable{Title: "Combined", Numbers: numbers, Ranks: regatta.RankCombined(res)})
	default:
		if len(d.Regatta.Divisions) > 1 {
			v.Tables = append(v.Tables, rankTable{Title: "Overall", Numbers: numbers, Ranks: regatta.RankOverall(res)})
		}
		for _, div := range d.Regatta.Divisions {
			v.Tables = append(v.Tables, rankTable{Title: "Division " + string(div), Numbers: numbers, Ranks: regatta.RankDivision(res, div)})
		}
	}
	return renderFragment(w, "dialog-scores", v)
}

// scoredNumbers returns the race numbers with at least one finish.
func scoredNumbers(d *store.RegattaData) []int {
	raced := d.Raced()
	var out []int
	for _, n := range d.RaceNumbers() {
		for _, div := range d.Regatta.Divisions {
			if r, ok := d.RaceByNumber(div, n); ok && raced[r.ID] {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

type rotationDialog struct{}

func (rotationDialog) Name() string  { return "rotation" }
func (rotationDialog) Title() string { return "Rotation" }

type rotationRow struct {
	Team  regatta.Team
	Sails []string
}

type rotationTable struct {
	Division regatta.Division
	Numbers  []int
	Rows     []rotationRow
}

type rotationView struct {
	*Page
	Tables []rotationTable
}

func (rotationDialog) Render(w io.Writer, _ *http.Request, p *Page) error {
	table := p.Data.RotationTable()
	v := rotationView{Page: p}
	for _, div := range p.Regatta().Divisions {
		var races []regatta.Race
		for _, r := range p.Data.RacesIn(div) {
			if table.HasRace(r.ID) {
				races = append(races, r)
			}
		}
		if len(races) == 0 {
			continue
		}
		rt := rotationTable{Division: div}
		for _, r := range races {
			rt.Numbers = append(rt.Numbers, r.Number)
		}
		for _, t := range p.Data.Teams {
			row := rotationRow{Team: t}
			for _, r := range races {
				row.Sails = append(row.Sails, table.Sail(r.ID, t.ID))
			}
			rt.Rows = append(rt.Rows, row)
		}
		v.Tables = append(v.Tables, rt)
	}
	return renderFragment(w, "dialog-rotation", v)
}

type rpDialog struct{}

func (rpDialog) Name() string  { return "rp" }
func (rpDialog) Title() string { return "Record of participation" }

type rosterLine struct {
	Sailor string
	Role   rp.Role
	Races  string
}

type rosterBlock struct {
	Team     regatta.Team
	Division regatta.Division
	Lines    []rosterLine
	Complete bool
}

type rpDialogView struct {
	*Page
	Blocks []rosterBlock
}

func (rpDialog) Render(w io.Writer, _ *http.Request, p *Page) error {
	mgr := p.Data.RPManager(p.boatsPerTeam())
	raced := p.Data.Raced()
	v := rpDialogView{Page: p}
	for _, t := range p.Data.Teams {
		complete := mgr.IsComplete(t.ID, raced)
		for _, div := range p.Regatta().Divisions {
			b := rosterBlock{Team: t, Division: div, Complete: complete}
			for _, a := range mgr.Roster(t.ID, div) {
				name := a.SailorID
				if s, ok := p.Data.Sailor(a.SailorID); ok {
					name = s.Name()
				}
				b.Lines = append(b.Lines, rosterLine{Sailor: name, Role: a.Role, Races: formatNumbers(a.Races)})
			}
			v.Blocks = append(v.Blocks, b)
		}
	}
	return renderFragment(w, "dialog-rp", v)
}

type historyDialog struct{}

func (historyDialog) Name() string  { return "history" }
func (historyDialog) Title() string { return "History" }

type historyRow struct {
	When   time.Time
	Actor  string
	Action string
	Target string
}

type publishRow struct {
	Activity    string
	Argument    string
	RequestedAt time.Time
	Pending     bool
	Error       string
}

type historyView struct {
	*Page
	Entries []historyRow
	Updates []publishRow
}

// historyLimit caps both lists in the history dialog.
const historyLimit = 100

func (historyDialog) Render(w io.Writer, r *http.Request, p *Page) error {
	ctx := r.Context()
	id := p.Regatta().ID

	users, err := p.store.ListAdminUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}

	entries, err := p.store.ListAuditLog(ctx, store.AuditFilter{RegattaID: &id, Limit: historyLimit})
	if err != nil {
		return fmt.Errorf("listing audit log: %w", err)
	}
	v := historyView{Page: p}
	for _, e := range entries {
		actor := names[e.ActorUserID]
		if actor == "" {
			actor = e.ActorUserID
		}
		v.Entries = append(v.Entries, historyRow{
			When:   e.Timestamp,
			Actor:  actor,
			Action: e.Action.Label(),
			Target: historyTarget(p.Data, e),
		})
	}

	reqs, err := p.store.ListUpdateRequests(ctx, id, historyLimit)
	if err != nil {
		return fmt.Errorf("listing update requests: %w", err)
	}
	for _, req := range reqs {
		v.Updates = append(v.Updates, publishRow{
			Activity:    req.Activity,
			Argument:    req.Argument,
			RequestedAt: req.RequestedAt,
			Pending:     req.Pending(),
			Error:       req.LastError,
		})
	}
	return renderFragment(w, "dialog-history", v)
}

// historyTarget describes what an audit entry touched.
func historyTarget(d *store.RegattaData, e store.AuditEntry) string {
	switch e.TargetType {
	case "team":
		if t, ok := d.Team(e.TargetID); ok {
			return t.DisplayName()
		}
	case "race":
		if r, ok := d.Race(e.TargetID); ok {
			return "Race " + r.String()
		}
		return "Race " + e.TargetID
	case "finish":
		if race, ok := e.Detail["race"].(string); ok {
			return "Race " + race
		}
	case "regatta":
		return ""
	}
	return e.TargetID
}

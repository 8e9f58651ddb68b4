// ABOUTME: Finish entry panes for fleet and team racing, plus dropping finishes
// ABOUTME: Finishes are entered by sail when a rotation exists, otherwise by team

package webadmin

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/teamrace"
	"github.com/techscore/techscore/internal/updates"
)

// raceGroup is the set of races whose finishes are entered together: one
// race, or every division of a race number in combined scoring.
type raceGroup struct {
	Key    string
	Label  string
	Races  []regatta.Race
	Scored bool
}

func (g raceGroup) raceIDs() []string {
	ids := make([]string, len(g.Races))
	for i, r := range g.Races {
		ids[i] = r.ID
	}
	return ids
}

func (g raceGroup) has(raceID string) bool {
	for _, r := range g.Races {
		if r.ID == raceID {
			return true
		}
	}
	return false
}

func raceGroups(d *store.RegattaData) []raceGroup {
	raced := d.Raced()
	var out []raceGroup
	switch d.Regatta.Scoring {
	case regatta.ScoringCombined:
		for _, n := range d.RaceNumbers() {
			g := raceGroup{Key: strconv.Itoa(n), Label: "Race " + strconv.Itoa(n)}
			for _, div := range d.Regatta.Divisions {
				if r, ok := d.RaceByNumber(div, n); ok {
					g.Races = append(g.Races, r)
					g.Scored = g.Scored || raced[r.ID]
				}
			}
			out = append(out, g)
		}
	case regatta.ScoringTeam:
		for _, r := range d.Races {
			a, _ := d.Team(r.TeamA)
			b, _ := d.Team(r.TeamB)
			out = append(out, raceGroup{
				Key:    strconv.Itoa(r.Number),
				Label:  fmt.Sprintf("Race %d: %s vs %s", r.Number, a.DisplayName(), b.DisplayName()),
				Races:  []regatta.Race{r},
				Scored: raced[r.ID],
			})
		}
	default:
		for _, r := range d.Races {
			out = append(out, raceGroup{
				Key:    r.String(),
				Label:  "Race " + r.String(),
				Races:  []regatta.Race{r},
				Scored: raced[r.ID],
			})
		}
	}
	return out
}

// findGroup returns the group with the given key.
func findGroup(d *store.RegattaData, key string) (raceGroup, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for _, g := range raceGroups(d) {
		if g.Key == key {
			return g, true
		}
	}
	return raceGroup{}, false
}

// currentGroup picks the group named in the query string, else the first
// unscored one, else the last.
func currentGroup(r *http.Request, d *store.RegattaData) (raceGroup, bool) {
	if g, ok := findGroup(d, r.URL.Query().Get("race")); ok {
		return g, true
	}
	groups := raceGroups(d)
	for _, g := range groups {
		if !g.Scored {
			return g, true
		}
	}
	if len(groups) == 0 {
		return raceGroup{}, false
	}
	return groups[len(groups)-1], true
}

type finishChoice struct {
	Value string
	Label string
	Sail  string
}

// finishSlot is one place in the ordered finish form.
type finishSlot struct {
	Place    int
	Selected string
}

func finishSlots(n int, existing []enteredFinish) []finishSlot {
	out := make([]finishSlot, n)
	for i := range out {
		out[i].Place = i + 1
		if i < len(existing) {
			out[i].Selected = existing[i].Value
		}
	}
	return out
}

type enteredFinish struct {
	Value string
	Label string
	Score int
	Note  string
}

type finishesView struct {
	*Page
	Groups   []raceGroup
	Group    raceGroup
	BySail   bool
	Choices  []finishChoice
	Existing []enteredFinish
	Slots    []finishSlot
}

type finishesPane struct{}

func (finishesPane) Name() string  { return "finishes" }
func (finishesPane) Title() string { return "Enter finishes" }

func (finishesPane) IsActive(d *store.RegattaData) bool {
	return len(d.Teams) > 0 && len(d.Races) > 0
}

func finishValue(raceID, teamID string) string {
	return raceID + ":" + teamID
}

func (finishesPane) Render(w io.Writer, r *http.Request, p *Page) error {
	g, _ := currentGroup(r, p.Data)
	table := p.Data.RotationTable()
	combined := len(g.Races) > 1

	v := finishesView{Page: p, Groups: raceGroups(p.Data), Group: g, BySail: len(g.Races) > 0}
	for _, race := range g.Races {
		if !table.HasRace(race.ID) {
			v.BySail = false
		}
		for _, t := range p.Data.Teams {
			label := t.DisplayName()
			if combined {
				label += " (" + string(race.Division) + ")"
			}
			v.Choices = append(v.Choices, finishChoice{
				Value: finishValue(race.ID, t.ID),
				Label: label,
				Sail:  table.Sail(race.ID, t.ID),
			})
		}
	}
	for _, race := range g.Races {
		for _, f := range p.Data.FinishesIn(race.ID) {
			t, _ := p.Data.Team(f.TeamID)
			v.Existing = append(v.Existing, enteredFinish{
				Value: finishValue(f.RaceID, f.TeamID),
				Label: t.DisplayName(),
				Score: f.Score,
				Note:  f.Explanation,
			})
		}
	}
	v.Slots = finishSlots(len(v.Choices), v.Existing)
	return renderFragment(w, "pane-finishes", v)
}

type finishEntry struct {
	raceID string
	teamID string
}

// readFinishes parses either the sails text box or the ordered select
// boxes into race/team pairs in finishing order.
func readFinishes(r *http.Request, d *store.RegattaData, g raceGroup) ([]finishEntry, error) {
	var out []finishEntry
	if sails := strings.Fields(strings.ReplaceAll(r.FormValue("sails"), ",", " ")); len(sails) > 0 {
		table := d.RotationTable()
		for _, sail := range sails {
			found := false
			for _, race := range g.Races {
				if team := table.Team(race.ID, sail); team != "" {
					out = append(out, finishEntry{race.ID, team})
					found = true
					break
				}
			}
			if !found {
				return nil, regatta.Invalid(regatta.ErrUnknownTeam, "sails",
					fmt.Sprintf("Sail %q is not sailing in %s.", sail, g.Label))
			}
		}
		return out, nil
	}

	for _, v := range r.Form["finish"] {
		if v == "" {
			continue
		}
		raceID, teamID, ok := strings.Cut(v, ":")
		if !ok || !g.has(raceID) {
			return nil, regatta.Invalid(regatta.ErrUnknownRace, "finish", "Finish list contains a race that is not being scored.")
		}
		if _, known := d.Team(teamID); !known {
			return nil, regatta.Invalid(regatta.ErrUnknownTeam, "finish", "Finish list contains an unknown team.")
		}
		out = append(out, finishEntry{raceID, teamID})
	}
	return out, nil
}

func (finishesPane) Process(r *http.Request, p *Page) (string, error) {
	g, ok := findGroup(p.Data, r.FormValue("race"))
	if !ok {
		return "", regatta.Invalid(regatta.ErrUnknownRace, "race", "Please choose a race to score.")
	}
	entries, err := readFinishes(r, p.Data, g)
	if err != nil {
		return "", err
	}

	teamIDs := p.Data.TeamIDs()
	for _, race := range g.Races {
		var order []string
		for _, e := range entries {
			if e.raceID == race.ID {
				order = append(order, e.teamID)
			}
		}
		if err := regatta.ValidateFinishOrder(teamIDs, order); err != nil {
			return "", err
		}
	}

	// keep penalties and breakdowns of teams that are re-entered
	kept := make(map[string]*regatta.Modifier)
	for _, race := range g.Races {
		for _, f := range p.Data.FinishesIn(race.ID) {
			if f.Modifier != nil {
				kept[finishValue(f.RaceID, f.TeamID)] = f.Modifier
			}
		}
	}

	finishes := make([]*regatta.Finish, len(entries))
	for i, e := range entries {
		finishes[i] = &regatta.Finish{
			RaceID:   e.raceID,
			TeamID:   e.teamID,
			Entered:  i + 1,
			Modifier: kept[finishValue(e.raceID, e.teamID)],
		}
	}
	if err := p.store.SetFinishes(r.Context(), g.raceIDs(), finishes); err != nil {
		return "", fmt.Errorf("saving finishes: %w", err)
	}

	verb := "Entered"
	if g.Scored {
		verb = "Updated"
	}
	p.record(change{
		message:    fmt.Sprintf("%s finishes for %s.", verb, g.Label),
		action:     store.AuditEnterFinishes,
		targetType: "race",
		targetID:   g.Key,
		detail:     map[string]any{"finishes": len(finishes)},
		activity:   updates.ActivityScore,
	})
	return "", nil
}

type dropFinishesPane struct{}

func (dropFinishesPane) Name() string  { return "drop-finishes" }
func (dropFinishesPane) Title() string { return "All finishes" }

func (dropFinishesPane) IsActive(d *store.RegattaData) bool {
	return len(d.Finishes) > 0
}

type scoredGroup struct {
	Group    raceGroup
	Finishes []enteredFinish
}

type dropFinishesView struct {
	*Page
	Scored []scoredGroup
}

func (dropFinishesPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	v := dropFinishesView{Page: p}
	for _, g := range raceGroups(p.Data) {
		if !g.Scored {
			continue
		}
		sg := scoredGroup{Group: g}
		for _, race := range g.Races {
			for _, f := range p.Data.FinishesIn(race.ID) {
				t, _ := p.Data.Team(f.TeamID)
				sg.Finishes = append(sg.Finishes, enteredFinish{Label: t.DisplayName(), Score: f.Score, Note: f.Explanation})
			}
		}
		v.Scored = append(v.Scored, sg)
	}
	return renderFragment(w, "pane-drop-finishes", v)
}

func (dropFinishesPane) Process(r *http.Request, p *Page) (string, error) {
	g, ok := findGroup(p.Data, r.FormValue("race"))
	if !ok || !g.Scored {
		return "", regatta.Invalid(regatta.ErrUnknownRace, "race", "Please choose a scored race.")
	}
	if err := p.store.DeleteFinishes(r.Context(), g.raceIDs()); err != nil {
		return "", fmt.Errorf("dropping finishes: %w", err)
	}
	p.record(change{
		message:    fmt.Sprintf("Removed finishes for %s.", g.Label),
		action:     store.AuditDropFinishes,
		targetType: "race",
		targetID:   g.Key,
		activity:   updates.ActivityScore,
	})
	return "", nil
}

type teamFinishesPane struct{}

func (teamFinishesPane) Name() string  { return "team-finishes" }
func (teamFinishesPane) Title() string { return "Enter finishes" }

func (teamFinishesPane) IsActive(d *store.RegattaData) bool {
	return len(d.Races) > 0
}

type teamFinishesView struct {
	*Page
	Groups   []raceGroup
	Group    raceGroup
	TeamA    regatta.Team
	TeamB    regatta.Team
	Slots    []finishSlot
	Existing []enteredFinish
	Outcome  *teamrace.Outcome
}

func (teamFinishesPane) Render(w io.Writer, r *http.Request, p *Page) error {
	g, ok := currentGroup(r, p.Data)
	v := teamFinishesView{Page: p, Groups: raceGroups(p.Data), Group: g}
	if ok {
		race := g.Races[0]
		v.TeamA, _ = p.Data.Team(race.TeamA)
		v.TeamB, _ = p.Data.Team(race.TeamB)
		fs := p.Data.FinishesIn(race.ID)
		for _, f := range fs {
			t, _ := p.Data.Team(f.TeamID)
			v.Existing = append(v.Existing, enteredFinish{Value: f.TeamID, Label: t.DisplayName(), Score: f.Score, Note: f.Explanation})
		}
		v.Slots = finishSlots(2*p.config.TeamBoats, v.Existing)
		if len(fs) > 0 {
			if o, err := teamrace.Result(race, fs); err == nil {
				v.Outcome = &o
			}
		}
	}
	return renderFragment(w, "pane-team-finishes", v)
}

func (teamFinishesPane) Process(r *http.Request, p *Page) (string, error) {
	g, ok := findGroup(p.Data, r.FormValue("race"))
	if !ok {
		return "", regatta.Invalid(regatta.ErrUnknownRace, "race", "Please choose a race to score.")
	}
	race := g.Races[0]
	boats := p.config.TeamBoats

	// a team's nth boat keeps the penalty or breakdown of its old nth finish
	kept := make(map[string][]*regatta.Modifier)
	for _, f := range p.Data.FinishesIn(race.ID) {
		kept[f.TeamID] = append(kept[f.TeamID], f.Modifier)
	}

	var finishes []*regatta.Finish
	counts := make(map[string]int)
	for _, v := range r.Form["finish"] {
		if v == "" {
			continue
		}
		if !race.HasTeam(v) {
			return "", regatta.Invalid(regatta.ErrUnknownTeam, "finish", "Only the two teams in the race can finish.")
		}
		f := &regatta.Finish{RaceID: race.ID, TeamID: v, Entered: len(finishes) + 1}
		if mods := kept[v]; counts[v] < len(mods) {
			f.Modifier = mods[counts[v]]
		}
		counts[v]++
		finishes = append(finishes, f)
	}
	if counts[race.TeamA] != boats || counts[race.TeamB] != boats {
		return "", regatta.Invalid(regatta.ErrInvalidFinishes, "finish",
			fmt.Sprintf("Each team must have exactly %d finishes.", boats))
	}

	ctx := r.Context()
	if err := p.store.SetFinishes(ctx, []string{race.ID}, finishes); err != nil {
		return "", fmt.Errorf("saving finishes: %w", err)
	}
	if err := p.reload(ctx); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Entered finishes for race %d.", race.Number)
	if o, err := teamrace.Result(race, p.Data.FinishesIn(race.ID)); err == nil && o.Winner != "" {
		winner, _ := p.Data.Team(o.Winner)
		loser, _ := p.Data.Team(o.Loser())
		msg = fmt.Sprintf("Race %d: %s defeated %s.", race.Number, winner.DisplayName(), loser.DisplayName())
	}
	p.record(change{
		message:    msg,
		action:     store.AuditEnterFinishes,
		targetType: "race",
		targetID:   race.ID,
		detail:     map[string]any{"number": race.Number},
		activity:   updates.ActivityScore,
	})
	return p.URL("team-finishes"), nil
}

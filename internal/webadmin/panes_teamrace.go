// ABOUTME: Round robin pane for team racing: pairs the chosen teams into new races
// ABOUTME: Races are numbered after the existing ones, flight by flight

package webadmin

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/teamrace"
	"github.com/techscore/techscore/internal/updates"
)

type roundRobinPane struct{}

func (roundRobinPane) Name() string  { return "round-robin" }
func (roundRobinPane) Title() string { return "Add round" }

func (roundRobinPane) IsActive(d *store.RegattaData) bool {
	return len(d.Teams) >= 2
}

type roundSummary struct {
	Name  string
	Races int
}

type roundRobinView struct {
	*Page
	Boats  []regatta.Boat
	Rounds []roundSummary
	Next   string
}

func existingRounds(d *store.RegattaData) []roundSummary {
	var out []roundSummary
	index := make(map[string]int)
	for _, r := range d.Races {
		i, ok := index[r.Round]
		if !ok {
			i = len(out)
			index[r.Round] = i
			out = append(out, roundSummary{Name: r.Round})
		}
		out[i].Races++
	}
	return out
}

func (roundRobinPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	rounds := existingRounds(p.Data)
	return renderFragment(w, "pane-round-robin", roundRobinView{
		Page:   p,
		Boats:  p.Data.Boats,
		Rounds: rounds,
		Next:   fmt.Sprintf("Round %d", len(rounds)+1),
	})
}

func (roundRobinPane) Process(r *http.Request, p *Page) (string, error) {
	name := strings.TrimSpace(r.FormValue("round"))
	if name == "" {
		return "", invalid("round", "Please name the round.")
	}
	for _, existing := range existingRounds(p.Data) {
		if strings.EqualFold(existing.Name, name) {
			return "", invalid("round", fmt.Sprintf("There is already a round named %q.", name))
		}
	}

	var teams []string
	for _, id := range r.Form["team"] {
		if _, ok := p.Data.Team(id); !ok {
			return "", regatta.Invalid(regatta.ErrUnknownTeam, "team", "Unknown team.")
		}
		teams = append(teams, id)
	}
	repeat, err := formInt(r, "repeat", 1)
	if err != nil {
		return "", err
	}
	if repeat < 1 || repeat > 4 {
		return "", invalid("repeat", "Teams may meet between 1 and 4 times.")
	}

	pairings, err := teamrace.RoundRobin(teams, teamrace.Options{
		Swap:   r.FormValue("swap") != "",
		Repeat: repeat,
	})
	switch {
	case errors.Is(err, teamrace.ErrTooFewTeams):
		return "", regatta.Invalid(err, "team", "Please choose at least two teams.")
	case errors.Is(err, teamrace.ErrDuplicateTeam):
		return "", regatta.Invalid(err, "team", "Each team may only be chosen once.")
	case err != nil:
		return "", fmt.Errorf("pairing teams: %w", err)
	}

	boat, err := formBoat(r, p.Data.Boats, p.config.DefaultBoat)
	if err != nil {
		return "", err
	}
	next := 1
	for _, race := range p.Data.Races {
		if race.Number >= next {
			next = race.Number + 1
		}
	}

	races := make([]regatta.Race, len(pairings))
	for i, pr := range pairings {
		races[i] = regatta.Race{
			RegattaID: p.Regatta().ID,
			Division:  regatta.DivisionA,
			Number:    next + i,
			BoatID:    boat,
			TeamA:     pr.TeamA,
			TeamB:     pr.TeamB,
			Round:     name,
		}
	}
	if err := p.store.AddRaces(r.Context(), races); err != nil {
		return "", fmt.Errorf("adding round robin: %w", err)
	}

	p.record(change{
		message: fmt.Sprintf("Added %s with %s (%d to %d).",
			name, englishRaces(len(races)), next, next+len(races)-1),
		action:   store.AuditRoundRobin,
		detail:   map[string]any{"round": name, "teams": len(teams), "races": len(races)},
		activity: updates.ActivityDetails,
	})
	return p.URL("team-finishes"), nil
}

// ABOUTME: Rotation panes: create sail rotations per division and tweak existing sails
// ABOUTME: Combined regattas check sails across every division sailing the same number

package webadmin

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

// rotationGroup returns the key of races that share sails: the race
// itself, or the race number when divisions are combined.
func rotationGroup(d *store.RegattaData) func(string) string {
	if d.Regatta.Scoring != regatta.ScoringCombined {
		return func(raceID string) string { return raceID }
	}
	return func(raceID string) string {
		r, _ := d.Race(raceID)
		return strconv.Itoa(r.Number)
	}
}

// rotationInvalid turns a rotation package error into a user message.
func rotationInvalid(err error) error {
	msg := "Invalid rotation."
	switch {
	case errors.Is(err, rotation.ErrSailCount):
		msg = "Every team needs exactly one sail."
	case errors.Is(err, rotation.ErrDuplicateSail):
		msg = "Each sail may only be used once per race: " + err.Error() + "."
	case errors.Is(err, rotation.ErrNonNumericSail), errors.Is(err, rotation.ErrSailRange):
		msg = "Only numeric sails can be shifted, and sails must stay above zero."
	case errors.Is(err, rotation.ErrMissingBase):
		msg = "The base division needs a complete rotation before it can be offset."
	case errors.Is(err, rotation.ErrMissingTeam):
		msg = "Every team needs a sail in every race of the rotation."
	case errors.Is(err, rotation.ErrRacesPerSet):
		msg = "Races per set must be at least 1."
	case errors.Is(err, rotation.ErrNoRaces):
		msg = "Please choose at least one race."
	case errors.Is(err, rotation.ErrInvalidType):
		msg = "Please choose a rotation type."
	}
	return regatta.Invalid(err, "rotation", msg)
}

// merged replaces the rotation of the given races with fresh assignments.
func mergedRotation(existing []rotation.Assignment, replaced map[string]bool, fresh []rotation.Assignment) []rotation.Assignment {
	out := make([]rotation.Assignment, 0, len(existing)+len(fresh))
	for _, a := range existing {
		if !replaced[a.RaceID] {
			out = append(out, a)
		}
	}
	return append(out, fresh...)
}

type rotationsPane struct{}

func (rotationsPane) Name() string  { return "rotations" }
func (rotationsPane) Title() string { return "Setup rotations" }

func (rotationsPane) IsActive(d *store.RegattaData) bool {
	return len(d.Teams) >= 2 && len(d.Races) > 0
}

type sailCell struct {
	Team  regatta.Team
	Field string
	Sail  string
}

type rotationDivision struct {
	Division regatta.Division
	Sails    []sailCell
}

type rotationsView struct {
	*Page
	Types     []rotation.Type
	Divisions []rotationDivision
	Races     string
}

func (rotationsPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	table := p.Data.RotationTable()
	v := rotationsView{Page: p, Types: rotation.Types, Races: formatNumbers(p.Data.RaceNumbers())}
	for i, div := range p.Regatta().Divisions {
		rd := rotationDivision{Division: div}
		races := p.Data.RacesIn(div)
		for j, t := range p.Data.Teams {
			sail := ""
			if len(races) > 0 {
				sail = table.Sail(races[0].ID, t.ID)
			}
			if sail == "" {
				// combined divisions need distinct sails
				offset := 0
				if p.Regatta().Scoring == regatta.ScoringCombined {
					offset = i * len(p.Data.Teams)
				}
				sail = strconv.Itoa(offset + j + 1)
			}
			rd.Sails = append(rd.Sails, sailCell{Team: t, Field: sailField(div, t.ID), Sail: sail})
		}
		v.Divisions = append(v.Divisions, rd)
	}
	return renderFragment(w, "pane-rotations", v)
}

func sailField(div regatta.Division, teamID string) string {
	return "sail-" + string(div) + "-" + teamID
}

func (rotationsPane) Process(r *http.Request, p *Page) (string, error) {
	divs, err := formDivisions(r, p.Regatta())
	if err != nil {
		return "", err
	}
	numbers, err := parseNumbers(r.FormValue("races"))
	if err != nil {
		return "", invalid("races", "Races must be listed as numbers or ranges, e.g. 1-6, 9.")
	}
	if len(numbers) == 0 {
		numbers = p.Data.RaceNumbers()
	}
	perSet, err := formInt(r, "races_per_set", 1)
	if err != nil {
		return "", err
	}
	typ := rotation.Type(r.FormValue("type"))

	teamIDs := p.Data.TeamIDs()

	replaced := make(map[string]bool)
	var raceIDs []string
	var fresh []rotation.Assignment
	for _, div := range divs {
		spec := rotation.Spec{Type: typ, Teams: teamIDs, RacesPerSet: perSet}
		for _, n := range numbers {
			race, ok := p.Data.RaceByNumber(div, n)
			if !ok {
				return "", regatta.Invalid(regatta.ErrUnknownRace, "races", fmt.Sprintf("Race %d%s does not exist.", n, div))
			}
			spec.Races = append(spec.Races, race.ID)
		}

		if typ == rotation.TypeOffset {
			base, err := regatta.ParseDivision(r.FormValue("base"))
			if err != nil || base == div || !p.Regatta().HasDivision(base) {
				return "", invalid("base", "Please choose a different division to offset from.")
			}
			if spec.Offset, err = formInt(r, "offset", 0); err != nil {
				return "", err
			}
			spec.Base = p.Data.Rotation
			for _, n := range numbers {
				br, _ := p.Data.RaceByNumber(base, n)
				spec.BaseRaces = append(spec.BaseRaces, br.ID)
			}
		} else {
			for _, t := range p.Data.Teams {
				spec.Sails = append(spec.Sails, strings.TrimSpace(r.FormValue(sailField(div, t.ID))))
			}
		}

		as, err := rotation.Create(spec)
		if err != nil {
			return "", rotationInvalid(err)
		}
		for _, id := range spec.Races {
			replaced[id] = true
		}
		raceIDs = append(raceIDs, spec.Races...)
		fresh = append(fresh, as...)
	}

	all := mergedRotation(p.Data.Rotation, replaced, fresh)
	if err := rotation.Validate(all, teamIDs, rotationGroup(p.Data)); err != nil {
		return "", rotationInvalid(err)
	}
	if err := p.store.SetRotation(r.Context(), raceIDs, fresh); err != nil {
		return "", fmt.Errorf("saving rotation: %w", err)
	}

	divNames := make([]string, len(divs))
	for i, d := range divs {
		divNames[i] = string(d)
	}
	p.record(change{
		message: fmt.Sprintf("Created %s rotation for races %s in division %s.",
			strings.ToLower(typ.Label()), formatNumbers(numbers), strings.Join(divNames, ", ")),
		action:   store.AuditSetRotation,
		detail:   map[string]any{"type": string(typ), "divisions": divNames, "races": formatNumbers(numbers)},
		activity: updates.ActivityRotation,
	})
	return "", nil
}

type tweakSailsPane struct{}

func (tweakSailsPane) Name() string  { return "tweak-sails" }
func (tweakSailsPane) Title() string { return "Tweak sails" }

func (tweakSailsPane) IsActive(d *store.RegattaData) bool {
	return len(d.Rotation) > 0
}

type tweakView struct {
	*Page
	Ops []rotation.TweakOp
}

func (tweakSailsPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	return renderFragment(w, "pane-tweak-sails", tweakView{
		Page: p,
		Ops:  []rotation.TweakOp{rotation.TweakAdd, rotation.TweakSub, rotation.TweakReplace},
	})
}

func (tweakSailsPane) Process(r *http.Request, p *Page) (string, error) {
	divs, err := formDivisions(r, p.Regatta())
	if err != nil {
		return "", err
	}
	numbers, err := parseNumbers(r.FormValue("races"))
	if err != nil {
		return "", invalid("races", "Races must be listed as numbers or ranges, e.g. 1-6, 9.")
	}
	wanted := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}

	races := make(map[string]bool)
	var raceIDs []string
	for _, div := range divs {
		for _, race := range p.Data.RacesIn(div) {
			if len(wanted) > 0 && !wanted[race.Number] {
				continue
			}
			races[race.ID] = true
			raceIDs = append(raceIDs, race.ID)
		}
	}
	if len(raceIDs) == 0 {
		return "", invalid("races", "Please choose at least one race.")
	}

	op := rotation.TweakOp(r.FormValue("op"))
	amount := 0
	from, to := strings.TrimSpace(r.FormValue("from")), strings.TrimSpace(r.FormValue("to"))
	switch op {
	case rotation.TweakAdd, rotation.TweakSub:
		if amount, err = formInt(r, "amount", 0); err != nil {
			return "", err
		}
		if amount < 1 {
			return "", invalid("amount", "Amount must be a positive number.")
		}
	case rotation.TweakReplace:
		if from == "" || to == "" {
			return "", invalid("to", "Both the old and the new sail are required.")
		}
	default:
		return "", invalid("op", "Please choose how to tweak the sails.")
	}

	tweaked, err := rotation.Tweak(p.Data.Rotation, races, op, amount, from, to)
	if err != nil {
		if errors.Is(err, rotation.ErrNonNumericSail) || errors.Is(err, rotation.ErrSailRange) {
			return "", rotationInvalid(err)
		}
		return "", invalid("from", fmt.Sprintf("Sail %q is not used in the chosen races.", from))
	}
	if err := rotation.Validate(tweaked, p.Data.TeamIDs(), rotationGroup(p.Data)); err != nil {
		return "", rotationInvalid(err)
	}

	var fresh []rotation.Assignment
	for _, a := range tweaked {
		if races[a.RaceID] {
			fresh = append(fresh, a)
		}
	}
	if err := p.store.SetRotation(r.Context(), raceIDs, fresh); err != nil {
		return "", fmt.Errorf("saving rotation: %w", err)
	}
	p.record(change{
		message:  "Sails updated in " + englishRaces(len(raceIDs)) + ".",
		action:   store.AuditTweakRotation,
		detail:   map[string]any{"op": string(op), "amount": amount, "from": from, "to": to},
		activity: updates.ActivityRotation,
	})
	return "", nil
}

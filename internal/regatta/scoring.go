// ABOUTME: Low-point race scoring with penalties, breakdowns and average scores
// ABOUTME: Scores standard, combined-division and team-race fleets in place

package regatta

import (
	"fmt"
	"sort"
)

// ScoreRace scores the finishes of a single fleet of the given size.
// Finishes are ordered by Entered; scores are written into each Finish.
// Breakdowns that need an average are left provisional until
// ApplyAverages runs.
func ScoreRace(fleet int, finishes []*Finish) {
	scoreFleet(finishes, fleet+1)
}

func scoreFleet(finishes []*Finish, penaltyScore int) {
	sort.SliceStable(finishes, func(i, j int) bool {
		return finishes[i].Entered < finishes[j].Entered
	})

	place := 0
	for _, f := range finishes {
		f.average = false
		f.Explanation = ""
		m := f.Modifier

		if m != nil && m.Type.IsPenalty() {
			if m.Displace {
				f.Place = 0
			} else {
				place++
				f.Place = place
			}
			f.Score = penaltyScore
			if m.Amount > 0 {
				f.Score = m.Amount
				f.Explanation = fmt.Sprintf("%s, assigned %d points", m.Type, m.Amount)
			} else {
				f.Explanation = fmt.Sprintf("%s, fleet size + 1", m.Type)
			}
			continue
		}

		place++
		f.Place = place
		f.Score = place

		if m == nil || !m.Type.IsBreakdown() {
			continue
		}
		switch {
		case m.Type == BreakdownBYE || m.Amount <= 0:
			f.average = true
			f.Explanation = fmt.Sprintf("%s, average in division", m.Type)
		case m.Amount < place:
			f.Score = m.Amount
			f.Explanation = fmt.Sprintf("%s, assigned %d points (was %d)", m.Type, m.Amount, place)
		default:
			f.Explanation = fmt.Sprintf("%s, finish place kept", m.Type)
		}
	}
}

// ApplyAverages resolves average-scored breakdowns. key groups finishes
// that average together (normally team and division).
func ApplyAverages(finishes []*Finish, key func(*Finish) string) {
	type acc struct{ sum, n int }
	totals := make(map[string]*acc)
	for _, f := range finishes {
		if f.average {
			continue
		}
		k := key(f)
		a, ok := totals[k]
		if !ok {
			a = &acc{}
			totals[k] = a
		}
		a.sum += f.Score
		a.n++
	}

	for _, f := range finishes {
		if !f.average {
			continue
		}
		a, ok := totals[key(f)]
		if !ok || a.n == 0 {
			f.Explanation += ", no other races to average"
			continue
		}
		// rounded half up
		f.Score = (2*a.sum + a.n) / (2 * a.n)
		f.Explanation = fmt.Sprintf("%s (%d)", f.Explanation, f.Score)
	}
}

// Score computes the score of every finish in the regatta. finishes are
// modified in place.
func Score(reg *Regatta, teams []Team, races []Race, finishes []*Finish) error {
	raceByID := make(map[string]Race, len(races))
	for _, r := range races {
		raceByID[r.ID] = r
	}

	byRace := make(map[string][]*Finish)
	for _, f := range finishes {
		if _, ok := raceByID[f.RaceID]; !ok {
			return fmt.Errorf("%w: finish %s references race %s", ErrUnknownRace, f.ID, f.RaceID)
		}
		byRace[f.RaceID] = append(byRace[f.RaceID], f)
	}

	switch reg.Scoring {
	case ScoringCombined:
		byNumber := make(map[int][]*Finish)
		for raceID, fs := range byRace {
			n := raceByID[raceID].Number
			byNumber[n] = append(byNumber[n], fs...)
		}
		fleet := len(teams) * len(reg.Divisions)
		for _, fs := range byNumber {
			ScoreRace(fleet, fs)
		}
	case ScoringTeam:
		for _, fs := range byRace {
			// boats entitled to race score a penalty
			scoreFleet(fs, len(fs))
		}
	default:
		for _, fs := range byRace {
			ScoreRace(len(teams), fs)
		}
	}

	ApplyAverages(finishes, func(f *Finish) string {
		return f.TeamID + "/" + string(raceByID[f.RaceID].Division)
	})
	return nil
}

// ValidateFinishOrder checks that order lists every expected team exactly once.
func ValidateFinishOrder(expected []string, order []string) error {
	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if !want[id] {
			return Invalid(ErrUnknownTeam, "finishes", "Finish list contains a team not in this race.")
		}
		if seen[id] {
			return Invalid(ErrInvalidFinishes, "finishes", "Each team may only finish once.")
		}
		seen[id] = true
	}
	if len(seen) != len(want) {
		return Invalid(ErrInvalidFinishes, "finishes", fmt.Sprintf("Expected %d finishes, got %d.", len(want), len(seen)))
	}
	return nil
}

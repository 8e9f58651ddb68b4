// ABOUTME: Team race outcomes from scored finishes and win/loss standings
// ABOUTME: Lower combined score wins; ties go to the team without first place

package teamrace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/techscore/techscore/internal/regatta"
)

var ErrNotTeamRace = errors.New("race has no teams assigned")

// Outcome is the result of a single team race.
type Outcome struct {
	RaceID  string
	TeamA   string
	TeamB   string
	PointsA int
	PointsB int
	Winner  string // empty when the race is tied or not yet scored
	Scored  bool
}

// Loser returns the team that lost, or "".
func (o Outcome) Loser() string {
	switch o.Winner {
	case o.TeamA:
		return o.TeamB
	case o.TeamB:
		return o.TeamA
	}
	return ""
}

// Result decides a team race. finishes must already be scored with
// regatta.Score, which charges penalized boats the number of boats in
// the race.
func Result(race regatta.Race, finishes []*regatta.Finish) (Outcome, error) {
	if race.TeamA == "" || race.TeamB == "" {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotTeamRace, race.ID)
	}
	out := Outcome{RaceID: race.ID, TeamA: race.TeamA, TeamB: race.TeamB}

	firstPlace := ""
	for _, f := range finishes {
		if f.RaceID != race.ID {
			continue
		}
		switch f.TeamID {
		case race.TeamA:
			out.PointsA += f.Score
		case race.TeamB:
			out.PointsB += f.Score
		default:
			return Outcome{}, fmt.Errorf("%w: %s in race %s", regatta.ErrUnknownTeam, f.TeamID, race.ID)
		}
		out.Scored = true
		if f.Place == 1 && (f.Modifier == nil || !f.Modifier.Type.IsPenalty()) {
			firstPlace = f.TeamID
		}
	}
	if !out.Scored {
		return out, nil
	}

	switch {
	case out.PointsA < out.PointsB:
		out.Winner = race.TeamA
	case out.PointsB < out.PointsA:
		out.Winner = race.TeamB
	case firstPlace == race.TeamA:
		out.Winner = race.TeamB
	case firstPlace == race.TeamB:
		out.Winner = race.TeamA
	}
	return out, nil
}

// Results decides every team race that has finishes.
func Results(races []regatta.Race, finishes []*regatta.Finish) ([]Outcome, error) {
	byRace := make(map[string][]*regatta.Finish)
	for _, f := range finishes {
		byRace[f.RaceID] = append(byRace[f.RaceID], f)
	}
	var out []Outcome
	for _, r := range races {
		fs := byRace[r.ID]
		if len(fs) == 0 {
			continue
		}
		o, err := Result(r, fs)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Standing is a team's win/loss record.
type Standing struct {
	TeamID        string
	Wins          int
	Losses        int
	Ties          int
	PointsFor     int // points scored by the team's boats
	PointsAgainst int // points scored by opponents
	Rank          int
	Explanation   string
}

// Races is the number of scored races the team sailed.
func (s *Standing) Races() int {
	return s.Wins + s.Losses + s.Ties
}

// WinPercentage counts ties as half a win.
func (s *Standing) WinPercentage() float64 {
	n := s.Races()
	if n == 0 {
		return 0
	}
	return (float64(s.Wins) + 0.5*float64(s.Ties)) / float64(n)
}

// Differential is positive when the team's boats beat their opponents'.
func (s *Standing) Differential() int {
	return s.PointsAgainst - s.PointsFor
}

// Tiebreak explanations.
const (
	ExplainHeadToHead   = "Head-to-head record"
	ExplainDifferential = "Points differential"
	ExplainTie          = "Tie"
)

// Standings ranks teams by win percentage, then head-to-head record among
// the tied teams, then points differential. Teams without races are
// listed last.
func Standings(teams []string, outcomes []Outcome) []*Standing {
	byTeam := make(map[string]*Standing, len(teams))
	out := make([]*Standing, 0, len(teams))
	get := func(id string) *Standing {
		s, ok := byTeam[id]
		if !ok {
			s = &Standing{TeamID: id}
			byTeam[id] = s
			out = append(out, s)
		}
		return s
	}
	for _, t := range teams {
		get(t)
	}

	// wins[a][b] counts a's wins over b
	wins := make(map[string]map[string]int)
	for _, o := range outcomes {
		if !o.Scored {
			continue
		}
		a, b := get(o.TeamA), get(o.TeamB)
		a.PointsFor += o.PointsA
		a.PointsAgainst += o.PointsB
		b.PointsFor += o.PointsB
		b.PointsAgainst += o.PointsA
		switch o.Winner {
		case "":
			a.Ties++
			b.Ties++
		default:
			byTeam[o.Winner].Wins++
			byTeam[o.Loser()].Losses++
			if wins[o.Winner] == nil {
				wins[o.Winner] = make(map[string]int)
			}
			wins[o.Winner][o.Loser()]++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Races() == 0) != (b.Races() == 0) {
			return b.Races() == 0
		}
		return a.WinPercentage() > b.WinPercentage()
	})

	// resolve each block of equal records
	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && sameRecord(out[start], out[end]) {
			end++
		}
		breakTies(out[start:end], wins)
		start = end
	}

	for i, s := range out {
		if i == 0 {
			s.Rank = 1
			continue
		}
		prev := out[i-1]
		if sameRecord(prev, s) && s.Explanation == ExplainTie {
			s.Rank = prev.Rank
		} else {
			s.Rank = i + 1
		}
	}
	return out
}

func sameRecord(a, b *Standing) bool {
	return (a.Races() == 0) == (b.Races() == 0) && a.WinPercentage() == b.WinPercentage()
}

func breakTies(block []*Standing, wins map[string]map[string]int) {
	if len(block) < 2 {
		return
	}
	h2h := make(map[string]int, len(block))
	for _, a := range block {
		for _, b := range block {
			h2h[a.TeamID] += wins[a.TeamID][b.TeamID]
		}
	}
	sort.SliceStable(block, func(i, j int) bool {
		a, b := block[i], block[j]
		if h2h[a.TeamID] != h2h[b.TeamID] {
			return h2h[a.TeamID] > h2h[b.TeamID]
		}
		if a.Differential() != b.Differential() {
			return a.Differential() > b.Differential()
		}
		return a.TeamID < b.TeamID
	})
	for i := 1; i < len(block); i++ {
		a, b := block[i-1], block[i]
		why := ExplainTie
		switch {
		case h2h[a.TeamID] != h2h[b.TeamID]:
			why = ExplainHeadToHead
		case a.Differential() != b.Differential():
			why = ExplainDifferential
		}
		b.Explanation = why
		if a.Explanation == "" {
			a.Explanation = why
		}
	}
}

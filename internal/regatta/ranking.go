// ABOUTME: Ranks teams by total score with high-finish and last-race tiebreakers
// ABOUTME: Supports per-division, overall and combined-division rankings

package regatta

import (
	"cmp"
	"sort"
)

// RaceScore is a team's score for one race number.
type RaceScore struct {
	Number    int
	Score     int
	Modifiers []string
}

// Rank is one line of a results table.
type Rank struct {
	Team        Team
	Division    Division // empty for overall rankings
	Races       []RaceScore
	Penalties   int
	Total       int
	Rank        int
	Explanation string
}

// Tiebreak explanations.
const (
	ExplainHighFinishes = "Number of high-place finishes"
	ExplainLastRace     = "Last race"
	ExplainTie          = "Tie"
)

// Results bundles the data a ranking is computed from. Finishes must
// already be scored.
type Results struct {
	Regatta   *Regatta
	Teams     []Team
	Races     []Race
	Finishes  []*Finish
	Penalties []TeamPenalty
}

// scoredNumbers returns the race numbers with finishes in the given
// divisions, ascending.
func (res *Results) scoredNumbers(divs map[Division]bool) []int {
	raceByID := res.raceIndex()
	seen := make(map[int]bool)
	for _, f := range res.Finishes {
		r := raceByID[f.RaceID]
		if divs[r.Division] {
			seen[r.Number] = true
		}
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (res *Results) raceIndex() map[string]Race {
	m := make(map[string]Race, len(res.Races))
	for _, r := range res.Races {
		m[r.ID] = r
	}
	return m
}

func (res *Results) penaltyPoints(teamID string, divs map[Division]bool) int {
	total := 0
	for _, p := range res.Penalties {
		if p.TeamID == teamID && divs[p.Division] {
			total += TeamPenaltyPoints
		}
	}
	return total
}

// build assembles a Rank per team over the given divisions.
func (res *Results) build(divs map[Division]bool, label Division) []*Rank {
	nums := res.scoredNumbers(divs)
	idx := make(map[int]int, len(nums))
	for i, n := range nums {
		idx[n] = i
	}
	raceByID := res.raceIndex()

	ranks := make(map[string]*Rank, len(res.Teams))
	out := make([]*Rank, 0, len(res.Teams))
	for _, t := range res.Teams {
		r := &Rank{Team: t, Division: label, Races: make([]RaceScore, len(nums))}
		for i, n := range nums {
			r.Races[i].Number = n
		}
		ranks[t.ID] = r
		out = append(out, r)
	}

	for _, f := range res.Finishes {
		race := raceByID[f.RaceID]
		if !divs[race.Division] {
			continue
		}
		r, ok := ranks[f.TeamID]
		if !ok {
			continue
		}
		rs := &r.Races[idx[race.Number]]
		rs.Score += f.Score
		if f.Modifier != nil {
			rs.Modifiers = append(rs.Modifiers, string(f.Modifier.Type))
		}
	}

	for _, r := range out {
		for _, rs := range r.Races {
			r.Total += rs.Score
		}
		r.Penalties = res.penaltyPoints(r.Team.ID, divs)
		r.Total += r.Penalties
	}
	return out
}

// RankDivision ranks every team in one division.
func RankDivision(res *Results, div Division) []*Rank {
	ranks := res.build(map[Division]bool{div: true}, div)
	order(ranks)
	return ranks
}

// RankOverall ranks teams on the sum of all their divisions.
func RankOverall(res *Results) []*Rank {
	divs := make(map[Division]bool)
	for _, d := range res.Regatta.Divisions {
		divs[d] = true
	}
	ranks := res.build(divs, "")
	order(ranks)
	return ranks
}

// RankCombined ranks every team/division entry against each other, as
// used by combined-division regattas.
func RankCombined(res *Results) []*Rank {
	var all []*Rank
	for _, d := range res.Regatta.Divisions {
		all = append(all, res.build(map[Division]bool{d: true}, d)...)
	}
	order(all)
	return all
}

// compareRanks orders a before b when it returns a negative number. The
// string names the criterion that decided.
func compareRanks(a, b *Rank) (int, string) {
	if c := cmp.Compare(a.Total, b.Total); c != 0 {
		return c, ""
	}

	as := sortedScores(a)
	bs := sortedScores(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := cmp.Compare(as[i], bs[i]); c != 0 {
			return c, ExplainHighFinishes
		}
	}

	for i := len(a.Races) - 1; i >= 0 && i < len(b.Races); i-- {
		if c := cmp.Compare(a.Races[i].Score, b.Races[i].Score); c != 0 {
			return c, ExplainLastRace
		}
	}
	return 0, ExplainTie
}

func sortedScores(r *Rank) []int {
	s := make([]int, len(r.Races))
	for i, rs := range r.Races {
		s[i] = rs.Score
	}
	sort.Ints(s)
	return s
}

// order sorts ranks and assigns rank numbers and tiebreak explanations.
func order(ranks []*Rank) {
	sort.SliceStable(ranks, func(i, j int) bool {
		c, _ := compareRanks(ranks[i], ranks[j])
		if c != 0 {
			return c < 0
		}
		if ranks[i].Team.DisplayName() != ranks[j].Team.DisplayName() {
			return ranks[i].Team.DisplayName() < ranks[j].Team.DisplayName()
		}
		return ranks[i].Division < ranks[j].Division
	})

	for i, r := range ranks {
		r.Explanation = ""
		if i == 0 {
			r.Rank = 1
			continue
		}
		prev := ranks[i-1]
		c, why := compareRanks(prev, r)
		if c == 0 {
			r.Rank = prev.Rank
		} else {
			r.Rank = i + 1
		}
		if why != "" {
			r.Explanation = why
			if prev.Explanation == "" {
				prev.Explanation = why
			}
		}
	}
}

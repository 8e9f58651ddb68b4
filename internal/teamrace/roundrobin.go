// ABOUTME: Round-robin pairings for team racing using the circle method
// ABOUTME: Odd team counts get a bye; each pair meets once per repetition

package teamrace

import (
	"errors"
	"fmt"
)

var (
	ErrTooFewTeams   = errors.New("a round robin needs at least two teams")
	ErrDuplicateTeam = errors.New("team listed twice")
)

// Pairing is one race in a round robin.
type Pairing struct {
	Flight int // 1-based; no team sails twice in a flight
	TeamA  string
	TeamB  string
}

// Options control RoundRobin.
type Options struct {
	// Swap lists whichever team has been TeamA fewer times first, so
	// each team spends about half its races as TeamA.
	Swap bool
	// Repeat is the number of times every pair meets. Zero means once.
	// Repetitions after the first reverse the pairing order.
	Repeat int
}

// RoundRobin pairs every team against every other team.
func RoundRobin(teams []string, opts Options) ([]Pairing, error) {
	if len(teams) < 2 {
		return nil, ErrTooFewTeams
	}
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		if seen[t] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTeam, t)
		}
		seen[t] = true
	}

	// "" marks the bye slot
	slots := append([]string(nil), teams...)
	if len(slots)%2 == 1 {
		slots = append(slots, "")
	}
	n := len(slots)

	var base [][]Pairing
	asFirst := make(map[string]int, n)
	for round := 0; round < n-1; round++ {
		var flight []Pairing
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a == "" || b == "" {
				continue
			}
			if opts.Swap && asFirst[b] < asFirst[a] {
				a, b = b, a
			}
			asFirst[a]++
			flight = append(flight, Pairing{TeamA: a, TeamB: b})
		}
		base = append(base, flight)

		// keep slot 0 fixed, rotate the rest clockwise
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}

	repeat := opts.Repeat
	if repeat < 1 {
		repeat = 1
	}
	var out []Pairing
	f := 0
	for r := 0; r < repeat; r++ {
		for _, flight := range base {
			f++
			for _, p := range flight {
				if r%2 == 1 {
					p.TeamA, p.TeamB = p.TeamB, p.TeamA
				}
				p.Flight = f
				out = append(out, p)
			}
		}
	}
	return out, nil
}

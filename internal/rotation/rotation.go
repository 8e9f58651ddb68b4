// ABOUTME: Sail rotation generation (standard, swap, none, offset) and tweaks
// ABOUTME: Produces race/team/sail assignments and validates them per race

package rotation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is the rotation scheme.
type Type string

const (
	TypeStandard Type = "STD" // every team moves up one sail per set
	TypeSwap     Type = "SWP" // even positions move up, odd positions move down
	TypeNone     Type = "NOR" // teams keep their sail
	TypeOffset   Type = "OFF" // copy a base division shifted by N teams
)

// Types lists the rotation types in display order.
var Types = []Type{TypeStandard, TypeSwap, TypeNone, TypeOffset}

// Label returns the display label.
func (t Type) Label() string {
	switch t {
	case TypeStandard:
		return "Standard"
	case TypeSwap:
		return "Swap"
	case TypeNone:
		return "No rotation"
	case TypeOffset:
		return "Offset from another division"
	}
	return string(t)
}

var (
	ErrInvalidType    = errors.New("invalid rotation type")
	ErrSailCount      = errors.New("number of sails must match number of teams")
	ErrDuplicateSail  = errors.New("duplicate sail")
	ErrNoRaces        = errors.New("no races selected")
	ErrRacesPerSet    = errors.New("races per set must be at least 1")
	ErrNonNumericSail = errors.New("sail is not numeric")
	ErrSailRange      = errors.New("sail number out of range")
	ErrMissingBase    = errors.New("offset rotation requires a base rotation")
	ErrMissingTeam    = errors.New("team has no sail")
)

// Assignment places a team in a sail for one race.
type Assignment struct {
	RaceID string
	TeamID string
	Sail   string
}

// Spec describes a rotation to generate.
type Spec struct {
	Type Type
	// Teams and Sails are parallel: Teams[i] starts in Sails[i].
	Teams []string
	Sails []string
	// Races are the race IDs to fill, in sailing order.
	Races       []string
	RacesPerSet int
	// Offset and Base are used by TypeOffset. Base is the rotation of
	// the division being copied; BaseRaces[i] is the base race sailed in
	// parallel with Races[i].
	Offset    int
	Base      []Assignment
	BaseRaces []string
}

func (s Spec) validate() error {
	switch s.Type {
	case TypeStandard, TypeSwap, TypeNone, TypeOffset:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, s.Type)
	}
	if len(s.Races) == 0 {
		return ErrNoRaces
	}
	if s.RacesPerSet < 1 {
		return ErrRacesPerSet
	}
	if s.Type == TypeOffset {
		if len(s.Base) == 0 || len(s.BaseRaces) != len(s.Races) {
			return ErrMissingBase
		}
		return nil
	}
	if len(s.Sails) != len(s.Teams) {
		return ErrSailCount
	}
	seen := make(map[string]bool, len(s.Sails))
	for _, sail := range s.Sails {
		sail = strings.TrimSpace(sail)
		if sail == "" || seen[sail] {
			return fmt.Errorf("%w: %q", ErrDuplicateSail, sail)
		}
		seen[sail] = true
	}
	return nil
}

// Create generates the assignments described by spec.
func Create(spec Spec) ([]Assignment, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if spec.Type == TypeOffset {
		return offset(spec)
	}

	n := len(spec.Teams)
	out := make([]Assignment, 0, n*len(spec.Races))
	for k, race := range spec.Races {
		set := k / spec.RacesPerSet
		for i, team := range spec.Teams {
			out = append(out, Assignment{
				RaceID: race,
				TeamID: team,
				Sail:   spec.Sails[position(spec.Type, i, set, n)],
			})
		}
	}
	return out, nil
}

// position returns the index into the sail list for the team starting at
// index i during the given set.
func position(t Type, i, set, n int) int {
	switch t {
	case TypeStandard:
		return mod(i+set, n)
	case TypeSwap:
		// Odd fleets get a phantom slot so every team has a partner
		// direction; the phantom is skipped by stepping again.
		m := n
		if m%2 == 1 {
			m++
		}
		p := i
		for step := 0; step < set; step++ {
			p = swapStep(p, m)
			if p == n {
				p = swapStep(p, m)
			}
		}
		return p
	default:
		return i
	}
}

// swapStep moves even positions up two and odd positions down two, with
// the ends turning around (0 -> 2 ... top even -> top odd, 1 -> 0 ...).
func swapStep(p, m int) int {
	if p%2 == 0 {
		if p+2 < m {
			return p + 2
		}
		return m - 1
	}
	if p-2 >= 0 {
		return p - 2
	}
	return 0
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

func offset(spec Spec) ([]Assignment, error) {
	byRace := make(map[string]map[string]string) // race -> team -> sail
	for _, a := range spec.Base {
		if byRace[a.RaceID] == nil {
			byRace[a.RaceID] = make(map[string]string)
		}
		byRace[a.RaceID][a.TeamID] = a.Sail
	}

	n := len(spec.Teams)
	out := make([]Assignment, 0, n*len(spec.Races))
	for k, race := range spec.Races {
		base, ok := byRace[spec.BaseRaces[k]]
		if !ok {
			return nil, fmt.Errorf("%w: no base rotation for race %s", ErrMissingBase, spec.BaseRaces[k])
		}
		for i, team := range spec.Teams {
			src := spec.Teams[mod(i+spec.Offset, n)]
			sail, ok := base[src]
			if !ok {
				return nil, fmt.Errorf("%w: %s in race %s", ErrMissingTeam, src, spec.BaseRaces[k])
			}
			out = append(out, Assignment{RaceID: race, TeamID: team, Sail: sail})
		}
	}
	return out, nil
}

// TweakOp is an adjustment to existing sails.
type TweakOp string

const (
	TweakAdd     TweakOp = "ADD"
	TweakSub     TweakOp = "SUB"
	TweakReplace TweakOp = "REPLACE"
)

// Tweak adjusts assignments in the given races. ADD and SUB shift numeric
// sails by amount; REPLACE swaps the sail from for to.
func Tweak(as []Assignment, races map[string]bool, op TweakOp, amount int, from, to string) ([]Assignment, error) {
	out := make([]Assignment, len(as))
	copy(out, as)

	changed := 0
	for i := range out {
		if !races[out[i].RaceID] {
			continue
		}
		switch op {
		case TweakAdd, TweakSub:
			num, err := strconv.Atoi(out[i].Sail)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrNonNumericSail, out[i].Sail)
			}
			if op == TweakSub {
				num -= amount
			} else {
				num += amount
			}
			if num < 1 {
				return nil, fmt.Errorf("%w: sail would become %d", ErrSailRange, num)
			}
			out[i].Sail = strconv.Itoa(num)
			changed++
		case TweakReplace:
			if out[i].Sail == from {
				out[i].Sail = to
				changed++
			}
		default:
			return nil, fmt.Errorf("unknown tweak %q", op)
		}
	}
	if op == TweakReplace && changed == 0 {
		return nil, fmt.Errorf("sail %q not found in selected races", from)
	}
	return out, nil
}

// Validate checks that every race with assignments gives each of teams a
// sail, and that no sail is used twice within a group of races that sail
// together. group maps race ID to its group key (the race itself for
// standard scoring, the race number for combined scoring).
func Validate(as []Assignment, teams []string, group func(raceID string) string) error {
	seen := make(map[string]string)
	byRace := make(map[string]map[string]bool)
	var order []string
	for _, a := range as {
		key := group(a.RaceID) + "|" + a.Sail
		if team, ok := seen[key]; ok && team != a.TeamID {
			return fmt.Errorf("%w: %s used by two teams in race %s", ErrDuplicateSail, a.Sail, group(a.RaceID))
		}
		seen[key] = a.TeamID
		if byRace[a.RaceID] == nil {
			byRace[a.RaceID] = make(map[string]bool)
			order = append(order, a.RaceID)
		}
		byRace[a.RaceID][a.TeamID] = true
	}
	for _, race := range order {
		for _, t := range teams {
			if !byRace[race][t] {
				return fmt.Errorf("%w: %s in race %s", ErrMissingTeam, t, race)
			}
		}
	}
	return nil
}

// Table indexes assignments for lookups.
type Table struct {
	byRaceTeam map[string]string
	byRaceSail map[string]string
	races      map[string][]Assignment
}

// NewTable builds a Table.
func NewTable(as []Assignment) *Table {
	t := &Table{
		byRaceTeam: make(map[string]string, len(as)),
		byRaceSail: make(map[string]string, len(as)),
		races:      make(map[string][]Assignment),
	}
	for _, a := range as {
		t.byRaceTeam[a.RaceID+"|"+a.TeamID] = a.Sail
		t.byRaceSail[a.RaceID+"|"+a.Sail] = a.TeamID
		t.races[a.RaceID] = append(t.races[a.RaceID], a)
	}
	return t
}

// Sail returns the team's sail in race, or "".
func (t *Table) Sail(raceID, teamID string) string {
	return t.byRaceTeam[raceID+"|"+teamID]
}

// Team returns the team sailing sail in race, or "".
func (t *Table) Team(raceID, sail string) string {
	return t.byRaceSail[raceID+"|"+strings.TrimSpace(sail)]
}

// HasRace reports whether the race has a rotation.
func (t *Table) HasRace(raceID string) bool {
	return len(t.races[raceID]) > 0
}

// Sails returns the sails in race, sorted naturally.
func (t *Table) Sails(raceID string) []string {
	as := t.races[raceID]
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Sail
	}
	sort.Slice(out, func(i, j int) bool { return lessSail(out[i], out[j]) })
	return out
}

// Empty reports whether the table has no assignments.
func (t *Table) Empty() bool {
	return len(t.races) == 0
}

// lessSail orders numeric sails numerically, then everything else as text.
func lessSail(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

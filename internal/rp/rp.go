// ABOUTME: Representation/participation (RP) rosters of skippers and crews
// ABOUTME: Validates sailor eligibility and boat limits before entries are saved

package rp

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/techscore/techscore/internal/regatta"
)

// Role is the position a sailor holds in a boat.
type Role string

const (
	RoleSkipper Role = "skipper"
	RoleCrew    Role = "crew"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSkipper || r == RoleCrew
}

// Gender as registered with the sailor's school.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

var (
	ErrUnknownSailor = errors.New("unknown sailor")
	ErrWrongSchool   = errors.New("sailor is not from the team's school")
	ErrGender        = errors.New("only women may sail in a women's regatta")
	ErrInvalidRole   = errors.New("invalid role")
	ErrSkipperTaken  = errors.New("boat already has a skipper")
	ErrTooManyCrews  = errors.New("boat has no room for another crew")
	ErrDoubleBooked  = errors.New("sailor already sails in another boat in this race")
)

// Sailor is a registered student sailor.
type Sailor struct {
	ID       string
	SchoolID string
	First    string
	Last     string
	Year     int
	Gender   Gender
}

// Name returns "First Last 'YY".
func (s Sailor) Name() string {
	name := strings.TrimSpace(s.First + " " + s.Last)
	if s.Year > 0 {
		name = fmt.Sprintf("%s '%02d", name, s.Year%100)
	}
	return name
}

// Entry places a sailor in one team's boat for one race.
type Entry struct {
	ID       string
	TeamID   string
	RaceID   string
	SailorID string
	Role     Role
}

// Assignment is a sailor's role across a set of race numbers, the unit
// the RP form edits.
type Assignment struct {
	SailorID string
	Role     Role
	Races    []int
}

// Manager validates RP changes for one regatta.
type Manager struct {
	reg          *regatta.Regatta
	teams        map[string]regatta.Team
	races        []regatta.Race
	raceByID     map[string]regatta.Race
	boats        map[string]regatta.Boat
	sailors      map[string]Sailor
	entries      []Entry
	boatsPerTeam int
}

// Config holds what a Manager needs to know about the regatta.
type Config struct {
	Regatta *regatta.Regatta
	Teams   []regatta.Team
	Races   []regatta.Race
	Boats   []regatta.Boat
	Sailors []Sailor
	Entries []Entry
	// BoatsPerTeam is how many boats a team sails in one race: 1 for
	// fleet racing, usually 3 for team racing.
	BoatsPerTeam int
}

// NewManager builds a Manager.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		reg:          cfg.Regatta,
		teams:        make(map[string]regatta.Team, len(cfg.Teams)),
		races:        cfg.Races,
		raceByID:     make(map[string]regatta.Race, len(cfg.Races)),
		boats:        make(map[string]regatta.Boat, len(cfg.Boats)),
		sailors:      make(map[string]Sailor, len(cfg.Sailors)),
		entries:      append([]Entry(nil), cfg.Entries...),
		boatsPerTeam: cfg.BoatsPerTeam,
	}
	if m.boatsPerTeam < 1 {
		m.boatsPerTeam = 1
	}
	for _, t := range cfg.Teams {
		m.teams[t.ID] = t
	}
	for _, r := range cfg.Races {
		m.raceByID[r.ID] = r
	}
	for _, b := range cfg.Boats {
		m.boats[b.ID] = b
	}
	for _, s := range cfg.Sailors {
		m.sailors[s.ID] = s
	}
	return m
}

// Entries returns the current entries.
func (m *Manager) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// TeamEntries returns the entries for one team in one division.
func (m *Manager) TeamEntries(teamID string, div regatta.Division) []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.TeamID == teamID && m.raceByID[e.RaceID].Division == div {
			out = append(out, e)
		}
	}
	return out
}

// boat returns the boat sailed in race, defaulting to a single-crew boat.
func (m *Manager) boat(r regatta.Race) regatta.Boat {
	if b, ok := m.boats[r.BoatID]; ok {
		return b
	}
	return regatta.Boat{Name: "Boat", MinCrews: 1, MaxCrews: 1}
}

// teamRaces returns the team's races in div keyed by number.
func (m *Manager) teamRaces(teamID string, div regatta.Division) map[int]regatta.Race {
	out := make(map[int]regatta.Race)
	for _, r := range m.races {
		if r.Division != div {
			continue
		}
		if m.reg.Scoring == regatta.ScoringTeam && !r.HasTeam(teamID) {
			continue
		}
		out[r.Number] = r
	}
	return out
}

// Set adds sailor to the team's boats in the given race numbers. Either
// every race is added or none is.
func (m *Manager) Set(teamID string, div regatta.Division, role Role, sailorID string, numbers []int) error {
	team, ok := m.teams[teamID]
	if !ok {
		return regatta.Invalid(regatta.ErrUnknownTeam, "team", "Unknown team.")
	}
	if !role.Valid() {
		return regatta.Invalid(ErrInvalidRole, "role", "Invalid role.")
	}
	sailor, ok := m.sailors[sailorID]
	if !ok {
		return regatta.Invalid(ErrUnknownSailor, "sailor", "Unknown sailor.")
	}
	if sailor.SchoolID != team.SchoolID {
		return regatta.Invalid(ErrWrongSchool, "sailor",
			fmt.Sprintf("%s does not sail for %s.", sailor.Name(), team.SchoolName))
	}
	if m.reg.Participant == regatta.ParticipantWomen && sailor.Gender != GenderFemale {
		return regatta.Invalid(ErrGender, "sailor",
			fmt.Sprintf("%s may not sail in a women's regatta.", sailor.Name()))
	}

	races := m.teamRaces(teamID, div)
	before := len(m.entries)
	for _, n := range numbers {
		race, ok := races[n]
		if !ok {
			m.entries = m.entries[:before]
			return regatta.Invalid(regatta.ErrUnknownRace, "races",
				fmt.Sprintf("%s does not sail race %d%s.", team.DisplayName(), n, div))
		}
		if err := m.add(team, race, role, sailor); err != nil {
			m.entries = m.entries[:before]
			return err
		}
	}
	return nil
}

func (m *Manager) add(team regatta.Team, race regatta.Race, role Role, sailor Sailor) error {
	skippers, crews := 0, 0
	for _, e := range m.entries {
		other := m.raceByID[e.RaceID]
		if e.SailorID == sailor.ID && other.Number == race.Number {
			if e.RaceID == race.ID && e.TeamID == team.ID && e.Role == role {
				return nil
			}
			return regatta.Invalid(ErrDoubleBooked, "races",
				fmt.Sprintf("%s is already in a boat in race %d.", sailor.Name(), race.Number))
		}
		if e.RaceID != race.ID || e.TeamID != team.ID {
			continue
		}
		if e.Role == RoleSkipper {
			skippers++
		} else {
			crews++
		}
	}

	boat := m.boat(race)
	switch role {
	case RoleSkipper:
		if skippers >= m.boatsPerTeam {
			return regatta.Invalid(ErrSkipperTaken, "races",
				fmt.Sprintf("%s already has a skipper in race %s.", team.DisplayName(), race))
		}
	case RoleCrew:
		if crews >= boat.MaxCrews*m.boatsPerTeam {
			return regatta.Invalid(ErrTooManyCrews, "races",
				fmt.Sprintf("A %s carries at most %d crews (race %s).", boat.Name, boat.MaxCrews, race))
		}
	}

	m.entries = append(m.entries, Entry{TeamID: team.ID, RaceID: race.ID, SailorID: sailor.ID, Role: role})
	return nil
}

// Replace clears the team's entries in div and sets each assignment in
// turn. On error the previous entries are restored.
func (m *Manager) Replace(teamID string, div regatta.Division, as []Assignment) error {
	saved := m.entries
	kept := make([]Entry, 0, len(saved))
	for _, e := range saved {
		if e.TeamID == teamID && m.raceByID[e.RaceID].Division == div {
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept

	// skippers first so crew limits never hide a skipper error
	ordered := append([]Assignment(nil), as...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Role == RoleSkipper && ordered[j].Role != RoleSkipper
	})
	for _, a := range ordered {
		if a.SailorID == "" || len(a.Races) == 0 {
			continue
		}
		if err := m.Set(teamID, div, a.Role, a.SailorID, a.Races); err != nil {
			m.entries = saved
			return err
		}
	}
	return nil
}

// Roster groups the team's entries in div back into assignments, ordered
// by role then sailor name.
func (m *Manager) Roster(teamID string, div regatta.Division) []Assignment {
	type key struct {
		sailor string
		role   Role
	}
	byKey := make(map[key]*Assignment)
	var out []*Assignment
	for _, e := range m.TeamEntries(teamID, div) {
		k := key{e.SailorID, e.Role}
		a, ok := byKey[k]
		if !ok {
			a = &Assignment{SailorID: e.SailorID, Role: e.Role}
			byKey[k] = a
			out = append(out, a)
		}
		a.Races = append(a.Races, m.raceByID[e.RaceID].Number)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role == RoleSkipper
		}
		return m.sailors[out[i].SailorID].Name() < m.sailors[out[j].SailorID].Name()
	})
	res := make([]Assignment, len(out))
	for i, a := range out {
		sort.Ints(a.Races)
		res[i] = *a
	}
	return res
}

// Missing lists the races the team has sailed (has finishes in) without
// a full complement of skippers and minimum crews.
func (m *Manager) Missing(teamID string, raced map[string]bool) []regatta.Race {
	counts := make(map[string][2]int)
	for _, e := range m.entries {
		if e.TeamID != teamID {
			continue
		}
		c := counts[e.RaceID]
		if e.Role == RoleSkipper {
			c[0]++
		} else {
			c[1]++
		}
		counts[e.RaceID] = c
	}

	var out []regatta.Race
	for _, r := range m.races {
		if !raced[r.ID] {
			continue
		}
		if m.reg.Scoring == regatta.ScoringTeam && !r.HasTeam(teamID) {
			continue
		}
		c := counts[r.ID]
		if c[0] < m.boatsPerTeam || c[1] < m.boat(r).MinCrews*m.boatsPerTeam {
			out = append(out, r)
		}
	}
	return out
}

// IsComplete reports whether every raced boat of the team has its skipper
// and minimum crews.
func (m *Manager) IsComplete(teamID string, raced map[string]bool) bool {
	return len(m.Missing(teamID, raced)) == 0
}

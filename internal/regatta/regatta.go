// ABOUTME: Core regatta domain types: regattas, divisions, teams, races and finishes
// ABOUTME: Holds the value types shared by scoring, ranking, rotations and the web admin

package regatta

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// ScoringType determines how races are grouped and scored.
type ScoringType string

const (
	ScoringStandard ScoringType = "standard" // each division scored independently
	ScoringCombined ScoringType = "combined" // all divisions of a race number scored as one fleet
	ScoringTeam     ScoringType = "team"     // two-team races, win/loss records
)

// ScoringTypes lists the supported scoring types in display order.
var ScoringTypes = []ScoringType{ScoringStandard, ScoringCombined, ScoringTeam}

// Valid reports whether s is a known scoring type.
func (s ScoringType) Valid() bool {
	switch s {
	case ScoringStandard, ScoringCombined, ScoringTeam:
		return true
	}
	return false
}

// Label returns the display label for the scoring type.
func (s ScoringType) Label() string {
	switch s {
	case ScoringStandard:
		return "Standard"
	case ScoringCombined:
		return "Combined division"
	case ScoringTeam:
		return "Team racing"
	}
	return string(s)
}

// Division is a sub-fleet racing in parallel within a regatta.
type Division string

const (
	DivisionA Division = "A"
	DivisionB Division = "B"
	DivisionC Division = "C"
	DivisionD Division = "D"
)

// AllDivisions lists every division in order.
var AllDivisions = []Division{DivisionA, DivisionB, DivisionC, DivisionD}

// ParseDivision converts a string to a Division.
func ParseDivision(s string) (Division, error) {
	d := Division(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllDivisions {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDivision, s)
}

// Participant describes who may sail in a regatta.
type Participant string

const (
	ParticipantCoed  Participant = "coed"
	ParticipantWomen Participant = "women"
)

// Valid reports whether p is a known participant value.
func (p Participant) Valid() bool {
	return p == ParticipantCoed || p == ParticipantWomen
}

// RegattaTypes are the event classifications offered on the details pane.
var RegattaTypes = []string{
	"championship",
	"conference-championship",
	"intersectional",
	"two-conference",
	"conference",
	"promotional",
	"personal",
}

// Regatta is the root aggregate for a scored sailing competition.
type Regatta struct {
	ID          string
	Name        string
	Nick        string
	StartDate   time.Time
	Duration    int // days
	Scoring     ScoringType
	Participant Participant
	Type        string
	Venue       string
	Host        string
	Private     bool
	Divisions   []Division
	FinalizedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EndDate returns the last day of the regatta.
func (r *Regatta) EndDate() time.Time {
	if r.Duration <= 1 {
		return r.StartDate
	}
	return r.StartDate.AddDate(0, 0, r.Duration-1)
}

// Days returns each calendar day the regatta spans.
func (r *Regatta) Days() []time.Time {
	n := r.Duration
	if n < 1 {
		n = 1
	}
	days := make([]time.Time, n)
	for i := range days {
		days[i] = r.StartDate.AddDate(0, 0, i)
	}
	return days
}

// IsFinalized reports whether the results have been locked.
func (r *Regatta) IsFinalized() bool {
	return r.FinalizedAt != nil
}

// HasDivision reports whether d is one of the regatta's divisions.
func (r *Regatta) HasDivision(d Division) bool {
	for _, x := range r.Divisions {
		if x == d {
			return true
		}
	}
	return false
}

// Validate checks the regatta's own fields.
func (r *Regatta) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "Regatta name is required."}
	}
	if len(r.Name) > 60 {
		return &ValidationError{Field: "name", Message: "Regatta name must be at most 60 characters."}
	}
	if r.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "Start date is required."}
	}
	if r.Duration < 1 || r.Duration > 14 {
		return &ValidationError{Field: "duration", Message: "Duration must be between 1 and 14 days."}
	}
	if !r.Scoring.Valid() {
		return &ValidationError{Field: "scoring", Message: "Invalid scoring type."}
	}
	if !r.Participant.Valid() {
		return &ValidationError{Field: "participant", Message: "Invalid participation value."}
	}
	if len(r.Divisions) == 0 || len(r.Divisions) > len(AllDivisions) {
		return &ValidationError{Field: "divisions", Message: "A regatta needs between 1 and 4 divisions."}
	}
	if r.Scoring == ScoringTeam && len(r.Divisions) != 1 {
		return &ValidationError{Field: "divisions", Message: "Team racing regattas use a single division."}
	}
	return nil
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	stopWords    = map[string]bool{"the": true, "of": true, "and": true}
)

// Slugify derives the URL nick name for a regatta name.
func Slugify(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	kept := make([]string, 0, len(words))
	for _, w := range words {
		w = nonSlugChars.ReplaceAllString(w, "")
		if w == "" || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, "-")
}

// Team is a school's entry in a regatta.
type Team struct {
	ID         string
	RegattaID  string
	SchoolID   string
	SchoolName string
	Name       string
}

// DisplayName returns "School Name" for the team.
func (t Team) DisplayName() string {
	if t.SchoolName == "" {
		return t.Name
	}
	return t.SchoolName + " " + t.Name
}

// Boat is the class of boat sailed in a race.
type Boat struct {
	ID       string
	Name     string
	MinCrews int
	MaxCrews int
}

// Race is a single start of one division, or a single team race.
type Race struct {
	ID        string
	RegattaID string
	Division  Division
	Number    int
	BoatID    string
	TeamA     string // team racing only
	TeamB     string // team racing only
	Round     string // team racing only
}

// String returns the conventional race label, e.g. "3A".
func (r Race) String() string {
	return fmt.Sprintf("%d%s", r.Number, r.Division)
}

// HasTeam reports whether the team sails in this team race.
func (r Race) HasTeam(teamID string) bool {
	return r.TeamA == teamID || r.TeamB == teamID
}

// ModifierType is a penalty or breakdown code attached to a finish.
type ModifierType string

const (
	PenaltyDSQ ModifierType = "DSQ" // disqualified
	PenaltyRAF ModifierType = "RAF" // retired after finishing
	PenaltyOCS ModifierType = "OCS" // on course side
	PenaltyDNF ModifierType = "DNF" // did not finish
	PenaltyDNS ModifierType = "DNS" // did not start
	PenaltyBFD ModifierType = "BFD" // black flag

	BreakdownRDG ModifierType = "RDG" // redress given
	BreakdownBKD ModifierType = "BKD" // breakdown
	BreakdownBYE ModifierType = "BYE" // team is given average
)

// PenaltyTypes lists the penalty codes in display order.
var PenaltyTypes = []ModifierType{PenaltyDSQ, PenaltyRAF, PenaltyOCS, PenaltyDNF, PenaltyDNS, PenaltyBFD}

// BreakdownTypes lists the breakdown codes in display order.
var BreakdownTypes = []ModifierType{BreakdownRDG, BreakdownBKD, BreakdownBYE}

// IsPenalty reports whether m scores as a penalty.
func (m ModifierType) IsPenalty() bool {
	for _, p := range PenaltyTypes {
		if m == p {
			return true
		}
	}
	return false
}

// IsBreakdown reports whether m scores as a breakdown.
func (m ModifierType) IsBreakdown() bool {
	for _, b := range BreakdownTypes {
		if m == b {
			return true
		}
	}
	return false
}

// ParseModifierType converts a string to a ModifierType.
func ParseModifierType(s string) (ModifierType, error) {
	m := ModifierType(strings.ToUpper(strings.TrimSpace(s)))
	if m.IsPenalty() || m.IsBreakdown() {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModifier, s)
}

// Modifier is a penalty or breakdown applied to a finish.
type Modifier struct {
	Type ModifierType
	// Amount overrides the default score. For penalties a value <= 0 means
	// "fleet size + 1"; for breakdowns a value <= 0 means "average".
	Amount int
	// Displace moves every later finisher up one place. Penalties only.
	Displace bool
	Comments string
}

// Finish is a team's recorded result in one race.
type Finish struct {
	ID       string
	RaceID   string
	TeamID   string
	Entered  int // 1-based order in which the finish was recorded
	Modifier *Modifier

	// Computed by the scorer, never persisted.
	Place       int
	Score       int
	Explanation string
	average     bool
}

// TeamPenaltyType is a division-level penalty code.
type TeamPenaltyType string

const (
	TeamPenaltyPFD TeamPenaltyType = "PFD" // life jacket not worn
	TeamPenaltyLOP TeamPenaltyType = "LOP" // missing pinnie
	TeamPenaltyMRP TeamPenaltyType = "MRP" // missing RP info
	TeamPenaltyGDQ TeamPenaltyType = "GDQ" // general disqualification
)

// TeamPenaltyTypes lists team penalty codes in display order.
var TeamPenaltyTypes = []TeamPenaltyType{TeamPenaltyPFD, TeamPenaltyLOP, TeamPenaltyMRP, TeamPenaltyGDQ}

// TeamPenaltyPoints is added to a team's division total per team penalty.
const TeamPenaltyPoints = 20

// TeamPenalty is assessed against one team in one division.
type TeamPenalty struct {
	TeamID   string
	Division Division
	Type     TeamPenaltyType
	Comments string
}

// DailySummary is the scorer's written report for one day of racing.
type DailySummary struct {
	RegattaID string
	Day       time.Time
	Summary   string
}

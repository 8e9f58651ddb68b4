// ABOUTME: Imports schools, sailors, boats and regattas from a TOML file into the store
// ABOUTME: Schools and boats already in the store are matched by name instead of duplicated

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rp"
	"github.com/techscore/techscore/internal/store"
)

// ErrInvalidFile is returned when the file parses but describes something
// the store cannot hold.
var ErrInvalidFile = errors.New("invalid import file")

// File is the TOML document layout.
type File struct {
	Boats    []BoatEntry    `toml:"boat"`
	Schools  []SchoolEntry  `toml:"school"`
	Regattas []RegattaEntry `toml:"regatta"`
}

// BoatEntry is a [[boat]] table.
type BoatEntry struct {
	Name     string `toml:"name"`
	MinCrews int    `toml:"min_crews"`
	MaxCrews int    `toml:"max_crews"`
}

// SchoolEntry is a [[school]] table with its [[school.sailor]] entries.
type SchoolEntry struct {
	Name       string        `toml:"name"`
	Conference string        `toml:"conference"`
	City       string        `toml:"city"`
	Sailors    []SailorEntry `toml:"sailor"`
}

// SailorEntry is a [[school.sailor]] table.
type SailorEntry struct {
	First  string `toml:"first"`
	Last   string `toml:"last"`
	Year   int    `toml:"year"`
	Gender string `toml:"gender"`
}

// RegattaEntry is a [[regatta]] table.
type RegattaEntry struct {
	Name        string         `toml:"name"`
	StartDate   toml.LocalDate `toml:"start_date"`
	Duration    int            `toml:"duration"`
	Scoring     string         `toml:"scoring"`
	Participant string         `toml:"participant"`
	Type        string         `toml:"type"`
	Venue       string         `toml:"venue"`
	Host        string         `toml:"host"`
	Private     bool           `toml:"private"`
	Divisions   []string       `toml:"divisions"`
	Races       int            `toml:"races"`
	Boat        string         `toml:"boat"`
	Scorers     []string       `toml:"scorers"`
	Teams       []TeamEntry    `toml:"team"`
}

// TeamEntry is a [[regatta.team]] table naming a school and team name.
type TeamEntry struct {
	School string `toml:"school"`
	Name   string `toml:"name"`
}

// Store is what the importer writes to.
type Store interface {
	ListSchools(ctx context.Context) ([]*store.School, error)
	CreateSchool(ctx context.Context, school *store.School) error
	CreateSailor(ctx context.Context, sailor *rp.Sailor) error
	ListBoats(ctx context.Context) ([]regatta.Boat, error)
	CreateBoat(ctx context.Context, boat *regatta.Boat) error
	CreateRegatta(ctx context.Context, reg *regatta.Regatta) error
	AddTeam(ctx context.Context, team *regatta.Team) error
	SetRaceCount(ctx context.Context, regattaID string, count int, boatID string) error
	AddScorer(ctx context.Context, s store.Scorer) error
	GetAdminUserByUsername(ctx context.Context, username string) (*store.AdminUser, error)
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// Summary counts what an import created.
type Summary struct {
	Boats    int
	Schools  int
	Sailors  int
	Regattas []*regatta.Regatta
}

// Importer loads TOML files into a Store.
type Importer struct {
	store  Store
	logger *slog.Logger

	schools map[string]*store.School // by lower-cased name
	boats   map[string]regatta.Boat  // by lower-cased name
}

// New creates an Importer.
func New(st Store) *Importer {
	return &Importer{
		store:  st,
		logger: slog.Default().With("component", "importer"),
	}
}

// Decode parses a TOML document.
func Decode(r io.Reader) (*File, error) {
	var f File
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidFile, undecoded[0].String())
	}
	return &f, nil
}

// ImportFile reads and imports the TOML file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, f)
}

// Import writes f to the store: boats, then schools and their sailors,
// then regattas with their teams, races and scorers.
func (im *Importer) Import(ctx context.Context, f *File) (*Summary, error) {
	if err := im.loadExisting(ctx); err != nil {
		return nil, err
	}
	sum := &Summary{}

	for _, b := range f.Boats {
		created, err := im.importBoat(ctx, b)
		if err != nil {
			return sum, err
		}
		if created {
			sum.Boats++
		}
	}

	for _, s := range f.Schools {
		created, sailors, err := im.importSchool(ctx, s)
		if err != nil {
			return sum, err
		}
		if created {
			sum.Schools++
		}
		sum.Sailors += sailors
	}

	for _, r := range f.Regattas {
		reg, err := im.importRegatta(ctx, r)
		if err != nil {
			return sum, err
		}
		sum.Regattas = append(sum.Regattas, reg)
	}

	im.logger.Info("import complete",
		"boats", sum.Boats,
		"schools", sum.Schools,
		"sailors", sum.Sailors,
		"regattas", len(sum.Regattas),
	)
	return sum, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (im *Importer) loadExisting(ctx context.Context) error {
	schools, err := im.store.ListSchools(ctx)
	if err != nil {
		return fmt.Errorf("listing schools: %w", err)
	}
	im.schools = make(map[string]*store.School, len(schools))
	for _, s := range schools {
		im.schools[key(s.Name)] = s
	}

	boats, err := im.store.ListBoats(ctx)
	if err != nil {
		return fmt.Errorf("listing boats: %w", err)
	}
	im.boats = make(map[string]regatta.Boat, len(boats))
	for _, b := range boats {
		im.boats[key(b.Name)] = b
	}
	return nil
}

func (im *Importer) importBoat(ctx context.Context, e BoatEntry) (bool, error) {
	if strings.TrimSpace(e.Name) == "" {
		return false, fmt.Errorf("%w: boat without a name", ErrInvalidFile)
	}
	if _, ok := im.boats[key(e.Name)]; ok {
		return false, nil
	}
	b := regatta.Boat{Name: strings.TrimSpace(e.Name), MinCrews: e.MinCrews, MaxCrews: e.MaxCrews}
	if b.MaxCrews < b.MinCrews {
		return false, fmt.Errorf("%w: boat %s allows fewer crews than it needs", ErrInvalidFile, b.Name)
	}
	if err := im.store.CreateBoat(ctx, &b); err != nil {
		return false, fmt.Errorf("creating boat %s: %w", b.Name, err)
	}
	im.boats[key(b.Name)] = b
	return true, nil
}

func (im *Importer) importSchool(ctx context.Context, e SchoolEntry) (bool, int, error) {
	if strings.TrimSpace(e.Name) == "" {
		return false, 0, fmt.Errorf("%w: school without a name", ErrInvalidFile)
	}
	school, ok := im.schools[key(e.Name)]
	created := false
	if !ok {
		school = &store.School{Name: strings.TrimSpace(e.Name), Conference: e.Conference, City: e.City}
		if err := im.store.CreateSchool(ctx, school); err != nil {
			return false, 0, fmt.Errorf("creating school %s: %w", school.Name, err)
		}
		im.schools[key(school.Name)] = school
		created = true
	}

	for _, s := range e.Sailors {
		gender := rp.Gender(strings.ToUpper(s.Gender))
		if gender != rp.GenderMale && gender != rp.GenderFemale {
			return created, 0, fmt.Errorf("%w: sailor %s %s has gender %q", ErrInvalidFile, s.First, s.Last, s.Gender)
		}
		sailor := &rp.Sailor{SchoolID: school.ID, First: s.First, Last: s.Last, Year: s.Year, Gender: gender}
		if err := im.store.CreateSailor(ctx, sailor); err != nil {
			return created, 0, fmt.Errorf("creating sailor %s: %w", sailor.Name(), err)
		}
	}
	return created, len(e.Sailors), nil
}

func (im *Importer) importRegatta(ctx context.Context, e RegattaEntry) (*regatta.Regatta, error) {
	reg := &regatta.Regatta{
		Name:        strings.TrimSpace(e.Name),
		StartDate:   e.StartDate.AsTime(time.UTC),
		Duration:    e.Duration,
		Scoring:     regatta.ScoringType(e.Scoring),
		Participant: regatta.Participant(e.Participant),
		Type:        e.Type,
		Venue:       e.Venue,
		Host:        e.Host,
		Private:     e.Private,
	}
	if reg.Scoring == "" {
		reg.Scoring = regatta.ScoringStandard
	}
	if reg.Participant == "" {
		reg.Participant = regatta.ParticipantCoed
	}
	if reg.Duration == 0 {
		reg.Duration = 1
	}
	if e.StartDate == (toml.LocalDate{}) {
		reg.StartDate = time.Time{}
	}
	for _, d := range e.Divisions {
		div, err := regatta.ParseDivision(d)
		if err != nil {
			return nil, fmt.Errorf("regatta %s: %w", reg.Name, err)
		}
		reg.Divisions = append(reg.Divisions, div)
	}
	if len(reg.Divisions) == 0 {
		reg.Divisions = []regatta.Division{regatta.DivisionA}
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("regatta %q: %w", e.Name, err)
	}

	var boat regatta.Boat
	if e.Races > 0 {
		var ok bool
		boat, ok = im.boats[key(e.Boat)]
		if !ok {
			return nil, fmt.Errorf("%w: regatta %s uses unknown boat %q", ErrInvalidFile, reg.Name, e.Boat)
		}
	}

	teams := make([]regatta.Team, 0, len(e.Teams))
	for _, t := range e.Teams {
		school, ok := im.schools[key(t.School)]
		if !ok {
			return nil, fmt.Errorf("%w: regatta %s names unknown school %q", ErrInvalidFile, reg.Name, t.School)
		}
		teams = append(teams, regatta.Team{SchoolID: school.ID, Name: t.Name})
	}

	scorers := make([]*store.AdminUser, 0, len(e.Scorers))
	for _, username := range e.Scorers {
		u, err := im.store.GetAdminUserByUsername(ctx, username)
		if errors.Is(err, store.ErrAdminUserNotFound) {
			return nil, fmt.Errorf("%w: regatta %s names unknown scorer %q", ErrInvalidFile, reg.Name, username)
		}
		if err != nil {
			return nil, fmt.Errorf("looking up scorer %s: %w", username, err)
		}
		scorers = append(scorers, u)
	}

	if err := im.store.CreateRegatta(ctx, reg); err != nil {
		return nil, fmt.Errorf("creating regatta %s: %w", reg.Name, err)
	}
	for i := range teams {
		teams[i].RegattaID = reg.ID
		if err := im.store.AddTeam(ctx, &teams[i]); err != nil {
			return nil, fmt.Errorf("adding team to %s: %w", reg.Name, err)
		}
	}
	if e.Races > 0 && reg.Scoring != regatta.ScoringTeam {
		if err := im.store.SetRaceCount(ctx, reg.ID, e.Races, boat.ID); err != nil {
			return nil, fmt.Errorf("creating races for %s: %w", reg.Name, err)
		}
	}
	for i, u := range scorers {
		if err := im.store.AddScorer(ctx, store.Scorer{RegattaID: reg.ID, UserID: u.ID, Principal: i == 0}); err != nil {
			return nil, fmt.Errorf("adding scorer %s: %w", u.Username, err)
		}
	}

	actor := "import"
	if len(scorers) > 0 {
		actor = scorers[0].ID
	}
	if err := im.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: actor,
		RegattaID:   reg.ID,
		Action:      store.AuditImportRegatta,
		TargetType:  "regatta",
		TargetID:    reg.ID,
		Detail:      map[string]any{"teams": len(teams), "races": e.Races},
	}); err != nil {
		im.logger.Warn("recording import in audit log", "regatta", reg.ID, "error", err)
	}

	im.logger.Info("imported regatta", "id", reg.ID, "name", reg.Name, "teams", len(teams), "races", e.Races)
	return reg, nil
}

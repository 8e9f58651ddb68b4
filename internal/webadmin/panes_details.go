// ABOUTME: Details, daily summaries and scorers panes
// ABOUTME: Edit regatta settings, finalize results, write daily reports and manage scorers

package webadmin

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

type detailsPane struct{}

func (detailsPane) Name() string                     { return "details" }
func (detailsPane) Title() string                    { return "Settings" }
func (detailsPane) IsActive(*store.RegattaData) bool { return true }

type detailsView struct {
	*Page
	ScoringTypes []regatta.ScoringType
	RegattaTypes []string
	CanFinalize  bool
}

func (detailsPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	v := detailsView{Page: p, RegattaTypes: regatta.RegattaTypes}
	if p.Regatta().Scoring == regatta.ScoringTeam {
		v.ScoringTypes = []regatta.ScoringType{regatta.ScoringTeam}
	} else {
		v.ScoringTypes = []regatta.ScoringType{regatta.ScoringStandard, regatta.ScoringCombined}
	}
	v.CanFinalize = !p.Regatta().IsFinalized() && len(p.Data.Raced()) > 0
	return renderFragment(w, "pane-details", v)
}

func (pane detailsPane) Process(r *http.Request, p *Page) (string, error) {
	if r.FormValue("action") == "finalize" {
		return "", pane.finalize(r, p)
	}

	reg := *p.Regatta()
	start, err := formDate(r, "start_date")
	if err != nil {
		return "", err
	}
	duration, err := formInt(r, "duration", reg.Duration)
	if err != nil {
		return "", err
	}

	reg.Name = strings.TrimSpace(r.FormValue("name"))
	reg.Nick = regatta.Slugify(reg.Name)
	reg.StartDate = start
	reg.Duration = duration
	reg.Type = r.FormValue("type")
	reg.Venue = strings.TrimSpace(r.FormValue("venue"))
	reg.Host = strings.TrimSpace(r.FormValue("host"))
	reg.Private = r.FormValue("private") != ""
	if v := regatta.Participant(r.FormValue("participant")); v != "" {
		reg.Participant = v
	}
	if v := regatta.ScoringType(r.FormValue("scoring")); v != "" && v != reg.Scoring {
		if v == regatta.ScoringTeam || reg.Scoring == regatta.ScoringTeam {
			return "", invalid("scoring", "Team racing regattas cannot be converted to or from fleet racing.")
		}
		reg.Scoring = v
	}
	if err := reg.Validate(); err != nil {
		return "", err
	}

	if err := p.store.UpdateRegatta(r.Context(), &reg); err != nil {
		return "", fmt.Errorf("updating regatta: %w", err)
	}
	p.record(change{
		message:  "Regatta details updated.",
		action:   store.AuditEditDetails,
		detail:   map[string]any{"name": reg.Name, "scoring": string(reg.Scoring)},
		activity: updates.ActivityDetails,
	})
	return "", nil
}

func (detailsPane) finalize(r *http.Request, p *Page) error {
	reg := *p.Regatta()
	if reg.IsFinalized() {
		return regatta.Invalid(regatta.ErrFinalized, "finalize", "The regatta is already finalized.")
	}
	if len(p.Data.Raced()) == 0 {
		return invalid("finalize", "A regatta needs at least one scored race before it can be finalized.")
	}
	if r.FormValue("approve") == "" {
		return invalid("approve", "Please confirm that the results are final.")
	}

	now := time.Now().UTC()
	reg.FinalizedAt = &now
	if err := p.store.UpdateRegatta(r.Context(), &reg); err != nil {
		return fmt.Errorf("finalizing regatta: %w", err)
	}
	p.record(change{
		message:  "Regatta finalized.",
		action:   store.AuditFinalize,
		activity: updates.ActivityFinalized,
	})
	return nil
}

type summariesPane struct{}

func (summariesPane) Name() string                     { return "summaries" }
func (summariesPane) Title() string                    { return "Daily summaries" }
func (summariesPane) IsActive(*store.RegattaData) bool { return true }

type summaryDay struct {
	Day     time.Time
	Field   string
	Summary string
}

type summariesView struct {
	*Page
	Days []summaryDay
}

func summaryField(day time.Time) string {
	return "summary-" + day.Format("2006-01-02")
}

func (summariesPane) days(p *Page) []summaryDay {
	existing := make(map[string]string, len(p.Data.Summaries))
	for _, s := range p.Data.Summaries {
		existing[s.Day.Format("2006-01-02")] = s.Summary
	}
	var out []summaryDay
	for _, day := range p.Regatta().Days() {
		out = append(out, summaryDay{
			Day:     day,
			Field:   summaryField(day),
			Summary: existing[day.Format("2006-01-02")],
		})
	}
	return out
}

func (pane summariesPane) Render(w io.Writer, _ *http.Request, p *Page) error {
	return renderFragment(w, "pane-summaries", summariesView{Page: p, Days: pane.days(p)})
}

func (pane summariesPane) Process(r *http.Request, p *Page) (string, error) {
	saved := 0
	for _, d := range pane.days(p) {
		if _, posted := r.Form[d.Field]; !posted {
			continue
		}
		text := strings.TrimSpace(r.FormValue(d.Field))
		if text == d.Summary {
			continue
		}
		err := p.store.SetDailySummary(r.Context(), regatta.DailySummary{
			RegattaID: p.Regatta().ID,
			Day:       d.Day,
			Summary:   text,
		})
		if err != nil {
			return "", fmt.Errorf("saving summary for %s: %w", d.Day.Format("2006-01-02"), err)
		}
		day := d.Day.Format("2006-01-02")
		p.record(change{
			message:  "Saved summary for " + d.Day.Format("Monday, January 2") + ".",
			action:   store.AuditEditSummary,
			detail:   map[string]any{"day": day},
			activity: updates.ActivitySummary,
			arg:      day,
		})
		saved++
	}
	if saved == 0 {
		return "", invalid("summary", "No summaries were changed.")
	}
	return "", nil
}

type scorersPane struct{}

func (scorersPane) Name() string                     { return "scorers" }
func (scorersPane) Title() string                    { return "Scorers" }
func (scorersPane) IsActive(*store.RegattaData) bool { return true }

type scorersView struct {
	*Page
	Available []*store.AdminUser
}

func (scorersPane) Render(w io.Writer, r *http.Request, p *Page) error {
	users, err := p.store.ListAdminUsers(r.Context())
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	current := make(map[string]bool, len(p.Data.Scorers))
	for _, s := range p.Data.Scorers {
		current[s.UserID] = true
	}
	v := scorersView{Page: p}
	for _, u := range users {
		if !current[u.ID] {
			v.Available = append(v.Available, u)
		}
	}
	return renderFragment(w, "pane-scorers", v)
}

func (scorersPane) Process(r *http.Request, p *Page) (string, error) {
	ctx := r.Context()
	userID := r.FormValue("user")
	if userID == "" {
		return "", invalid("user", "Please choose a scorer.")
	}
	user, err := p.store.GetAdminUser(ctx, userID)
	if err != nil {
		return "", invalid("user", "No such user.")
	}

	switch r.FormValue("action") {
	case "remove":
		var target *store.Scorer
		for i := range p.Data.Scorers {
			if p.Data.Scorers[i].UserID == userID {
				target = &p.Data.Scorers[i]
			}
		}
		if target == nil {
			return "", invalid("user", user.DisplayName+" does not score this regatta.")
		}
		if target.Principal {
			return "", invalid("user", "The principal scorer cannot be removed.")
		}
		if err := p.store.RemoveScorer(ctx, p.Regatta().ID, userID); err != nil {
			return "", fmt.Errorf("removing scorer: %w", err)
		}
		p.record(change{
			message:    "Removed " + user.DisplayName + " as scorer.",
			action:     store.AuditRemoveScorer,
			targetType: "user",
			targetID:   userID,
			activity:   updates.ActivityDetails,
		})
	default:
		for _, s := range p.Data.Scorers {
			if s.UserID == userID {
				return "", invalid("user", user.DisplayName+" already scores this regatta.")
			}
		}
		if err := p.store.AddScorer(ctx, store.Scorer{RegattaID: p.Regatta().ID, UserID: userID}); err != nil {
			return "", fmt.Errorf("adding scorer: %w", err)
		}
		p.record(change{
			message:    "Added " + user.DisplayName + " as scorer.",
			action:     store.AuditAddScorer,
			targetType: "user",
			targetID:   userID,
			activity:   updates.ActivityDetails,
		})
	}
	return "", nil
}

// ABOUTME: Home page listing the user's regattas and the create-regatta form
// ABOUTME: New regattas get their creator as principal scorer and a default race set

package webadmin

import (
	"net/http"
	"strings"
	"time"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

func (a *Admin) handleHome(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	r, csrfToken := a.ensureCSRFToken(w, r)

	filter := store.RegattaFilter{Limit: 200}
	if !user.IsAdmin() {
		filter.ScorerID = user.ID
	}
	regs, err := a.store.ListRegattas(r.Context(), filter)
	if err != nil {
		a.logger.Error("failed to list regattas", "error", err)
		http.Error(w, "Failed to list regattas", http.StatusInternalServerError)
		return
	}

	rows := make([]regattaRow, len(regs))
	for i, reg := range regs {
		rows[i] = regattaRow{Regatta: reg, URL: "/score/" + reg.ID}
	}

	a.renderHome(w, homeData{
		Title:        "My regattas",
		User:         user,
		CSRFToken:    csrfToken,
		Messages:     a.takeMessages(r),
		Regattas:     rows,
		ScoringTypes: regatta.ScoringTypes,
		RegattaTypes: regatta.RegattaTypes,
		Today:        time.Now(),
	})
}

// handleCreateRegatta creates a regatta from the home page form.
func (a *Admin) handleCreateRegatta(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}
	user := getUserFromContext(r)

	reg, races, err := regattaFromForm(r)
	if err != nil {
		a.announce(r, store.MessageError, regatta.UserMessage(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	if err := a.store.CreateRegatta(ctx, reg); err != nil {
		a.logger.Error("failed to create regatta", "error", err)
		a.announce(r, store.MessageError, "Failed to create the regatta.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := a.store.AddScorer(ctx, store.Scorer{RegattaID: reg.ID, UserID: user.ID, Principal: true}); err != nil {
		a.logger.Error("failed to add principal scorer", "regatta", reg.ID, "error", err)
	}
	if races > 0 && reg.Scoring != regatta.ScoringTeam {
		boats, err := a.store.ListBoats(ctx)
		if err != nil {
			a.logger.Error("failed to list boats", "error", err)
		}
		if err := a.store.SetRaceCount(ctx, reg.ID, races, defaultBoat(boats, a.config.DefaultBoat)); err != nil {
			a.logger.Error("failed to create races", "regatta", reg.ID, "error", err)
		}
	}

	a.audit(ctx, &store.AuditEntry{
		ActorUserID: user.ID,
		RegattaID:   reg.ID,
		Action:      store.AuditCreateRegatta,
		TargetType:  "regatta",
		TargetID:    reg.ID,
		Detail:      map[string]any{"name": reg.Name, "scoring": string(reg.Scoring)},
	})
	if a.updates != nil {
		a.updates.QueueRequest(ctx, reg.ID, updates.ActivityDetails, "")
	}
	a.announce(r, store.MessageValid, "Created "+reg.Name+".")
	http.Redirect(w, r, "/score/"+reg.ID+"/details", http.StatusSeeOther)
}

// regattaFromForm builds a regatta from the create form and returns the
// number of races to create per division.
func regattaFromForm(r *http.Request) (*regatta.Regatta, int, error) {
	start, err := formDate(r, "start_date")
	if err != nil {
		return nil, 0, err
	}
	duration, err := formInt(r, "duration", 1)
	if err != nil {
		return nil, 0, err
	}
	ndiv, err := formInt(r, "divisions", 1)
	if err != nil {
		return nil, 0, err
	}
	races, err := formInt(r, "races", 0)
	if err != nil {
		return nil, 0, err
	}
	if races < 0 || races > 99 {
		return nil, 0, invalid("races", "Number of races must be between 0 and 99.")
	}

	reg := &regatta.Regatta{
		Name:        strings.TrimSpace(r.FormValue("name")),
		StartDate:   start,
		Duration:    duration,
		Scoring:     regatta.ScoringType(r.FormValue("scoring")),
		Participant: regatta.Participant(r.FormValue("participant")),
		Type:        r.FormValue("type"),
		Venue:       strings.TrimSpace(r.FormValue("venue")),
		Host:        strings.TrimSpace(r.FormValue("host")),
		Private:     r.FormValue("private") != "",
	}
	if reg.Participant == "" {
		reg.Participant = regatta.ParticipantCoed
	}
	if reg.Scoring == regatta.ScoringTeam {
		ndiv = 1
	}
	if ndiv < 1 || ndiv > len(regatta.AllDivisions) {
		return nil, 0, invalid("divisions", "A regatta needs between 1 and 4 divisions.")
	}
	reg.Divisions = append([]regatta.Division(nil), regatta.AllDivisions[:ndiv]...)

	if err := reg.Validate(); err != nil {
		return nil, 0, err
	}
	return reg, races, nil
}

// defaultBoat resolves the configured boat class to an ID, falling back to
// the first boat on file.
func defaultBoat(boats []regatta.Boat, name string) string {
	for _, b := range boats {
		if strings.EqualFold(b.Name, name) || b.ID == name {
			return b.ID
		}
	}
	if len(boats) > 0 {
		return boats[0].ID
	}
	return ""
}

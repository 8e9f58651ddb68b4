// ABOUTME: Pane and dialog interfaces, the per-scoring-type registry and the dispatcher
// ABOUTME: Routes /score/{regatta}/{pane} and /view/{regatta}/{dialog} to the right screen

package webadmin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

// Pane is an editing screen for one aspect of a regatta.
type Pane interface {
	Name() string
	Title() string
	// IsActive reports whether the pane makes sense for the regatta yet,
	// e.g. finishes need teams and races.
	IsActive(d *store.RegattaData) bool
	Render(w io.Writer, r *http.Request, p *Page) error
	// Process applies a form submission. It returns where to redirect,
	// or "" for the pane itself.
	Process(r *http.Request, p *Page) (string, error)
}

// Dialog is a read-only report about a regatta.
type Dialog interface {
	Name() string
	Title() string
	Render(w io.Writer, r *http.Request, p *Page) error
}

// Page is what a pane or dialog works with during one request.
type Page struct {
	User      *store.AdminUser
	Data      *store.RegattaData
	CSRFToken string

	store   Store
	config  Config
	changes []change
}

// change is one successful edit, announced, audited and queued by the
// dispatcher after Process returns.
type change struct {
	message    string
	action     store.AuditAction
	targetType string
	targetID   string
	detail     map[string]any
	activity   updates.Activity
	arg        string
}

// Regatta returns the regatta being edited.
func (p *Page) Regatta() *regatta.Regatta {
	return p.Data.Regatta
}

// URL returns the link to a pane of this regatta.
func (p *Page) URL(pane string) string {
	return "/score/" + p.Data.Regatta.ID + "/" + pane
}

// DialogURL returns the link to a dialog of this regatta.
func (p *Page) DialogURL(dialog string) string {
	return "/view/" + p.Data.Regatta.ID + "/" + dialog
}

func (p *Page) record(c change) {
	p.changes = append(p.changes, c)
}

// reload refreshes the regatta data after a write, for panes that make
// several dependent changes.
func (p *Page) reload(ctx context.Context) error {
	d, err := p.store.LoadRegatta(ctx, p.Data.Regatta.ID)
	if err != nil {
		return err
	}
	p.Data = d
	return nil
}

// Registry lists the panes available for each scoring type, and the dialogs.
type Registry struct {
	panes   map[regatta.ScoringType][]Pane
	dialogs []Dialog
}

// DefaultRegistry returns the standard pane and dialog sets.
func DefaultRegistry() *Registry {
	details, summaries, scorers, teams := detailsPane{}, summariesPane{}, scorersPane{}, teamsPane{}
	penalty, dropPenalty, rpp := penaltyPane{}, dropPenaltyPane{}, rpPane{}

	fleet := []Pane{
		details, summaries, scorers, teams,
		racesPane{}, rotationsPane{}, tweakSailsPane{},
		finishesPane{}, dropFinishesPane{},
		penalty, dropPenalty, teamPenaltyPane{}, rpp,
	}
	team := []Pane{
		details, summaries, scorers, teams,
		roundRobinPane{}, teamFinishesPane{},
		penalty, dropPenalty, rpp,
	}
	return &Registry{
		panes: map[regatta.ScoringType][]Pane{
			regatta.ScoringStandard: fleet,
			regatta.ScoringCombined: fleet,
			regatta.ScoringTeam:     team,
		},
		dialogs: []Dialog{scoresDialog{}, rotationDialog{}, rpDialog{}, historyDialog{}},
	}
}

// Panes returns the panes for a scoring type in menu order.
func (g *Registry) Panes(t regatta.ScoringType) []Pane {
	return g.panes[t]
}

// Pane looks up a pane by name for a scoring type.
func (g *Registry) Pane(t regatta.ScoringType, name string) (Pane, bool) {
	for _, p := range g.panes[t] {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Dialogs returns every dialog.
func (g *Registry) Dialogs() []Dialog {
	return g.dialogs
}

// Dialog looks up a dialog by name.
func (g *Registry) Dialog(name string) (Dialog, bool) {
	for _, d := range g.dialogs {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// FirstActive returns the first pane active for d. The details pane is
// always active, so this never returns nil for a known scoring type.
func (g *Registry) FirstActive(d *store.RegattaData) Pane {
	for _, p := range g.panes[d.Regatta.Scoring] {
		if p.IsActive(d) {
			return p
		}
	}
	return nil
}

// editableWhenFinalized lists panes that may still change a finalized regatta.
var editableWhenFinalized = map[string]bool{
	"details":   true,
	"summaries": true,
	"scorers":   true,
	"rp":        true,
}

// loadPage resolves the regatta in the path and checks the user may score
// it. It writes the error response itself and returns nil on failure.
func (a *Admin) loadPage(w http.ResponseWriter, r *http.Request) (*http.Request, *Page) {
	user := getUserFromContext(r)
	id := r.PathValue("regatta")

	d, err := a.store.LoadRegatta(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Regatta not found", http.StatusNotFound)
		return r, nil
	}
	if err != nil {
		a.logger.Error("failed to load regatta", "regatta", id, "error", err)
		http.Error(w, "Failed to load regatta", http.StatusInternalServerError)
		return r, nil
	}

	if !user.IsAdmin() {
		ok, err := a.store.IsScorer(r.Context(), id, user.ID)
		if err != nil {
			a.logger.Error("failed to check scorer", "regatta", id, "error", err)
			http.Error(w, "Failed to load regatta", http.StatusInternalServerError)
			return r, nil
		}
		if !ok {
			http.Error(w, "You do not score this regatta", http.StatusForbidden)
			return r, nil
		}
	}

	r, csrfToken := a.ensureCSRFToken(w, r)
	return r, &Page{
		User:      user,
		Data:      d,
		CSRFToken: csrfToken,
		store:     a.store,
		config:    a.config,
	}
}

// handleScoreIndex sends the user to the first useful pane.
func (a *Admin) handleScoreIndex(w http.ResponseWriter, r *http.Request) {
	r, page := a.loadPage(w, r)
	if page == nil {
		return
	}
	first := a.registry.FirstActive(page.Data)
	http.Redirect(w, r, page.URL(first.Name()), http.StatusSeeOther)
}

// handlePane renders (GET) or processes (POST) a pane.
func (a *Admin) handlePane(w http.ResponseWriter, r *http.Request) {
	r, page := a.loadPage(w, r)
	if page == nil {
		return
	}
	reg := page.Regatta()

	name := r.PathValue("pane")
	pane, ok := a.registry.Pane(reg.Scoring, name)
	if !ok || !pane.IsActive(page.Data) {
		first := a.registry.FirstActive(page.Data)
		if ok {
			a.announce(r, store.MessageWarning, fmt.Sprintf("The %s pane is not available yet.", pane.Title()))
		} else {
			a.announce(r, store.MessageWarning, fmt.Sprintf("Unknown pane %q.", name))
		}
		http.Redirect(w, r, page.URL(first.Name()), http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		a.renderPanePage(w, r, page, pane)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	back := page.URL(pane.Name())
	if reg.IsFinalized() && !editableWhenFinalized[pane.Name()] {
		a.announce(r, store.MessageError, "This regatta has been finalized and can no longer be changed here.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	redirect, err := pane.Process(r, page)
	if err != nil {
		if regatta.IsValidation(err) {
			a.announce(r, store.MessageError, regatta.UserMessage(err))
		} else {
			a.logger.Error("pane failed", "pane", pane.Name(), "regatta", reg.ID, "error", err)
			a.announce(r, store.MessageError, "An unexpected error occurred. Please try again.")
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	a.commit(r, page)
	if redirect == "" {
		redirect = back
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// commit announces, audits and queues every recorded change.
func (a *Admin) commit(r *http.Request, page *Page) {
	ctx := r.Context()
	id := page.Regatta().ID
	for _, c := range page.changes {
		if c.message != "" {
			a.announce(r, store.MessageValid, c.message)
		}
		if c.action != "" {
			targetType, targetID := c.targetType, c.targetID
			if targetType == "" {
				targetType, targetID = "regatta", id
			}
			a.audit(ctx, &store.AuditEntry{
				ActorUserID: page.User.ID,
				RegattaID:   id,
				Action:      c.action,
				TargetType:  targetType,
				TargetID:    targetID,
				Detail:      c.detail,
			})
		}
		if c.activity != "" && a.updates != nil {
			a.updates.QueueRequest(ctx, id, c.activity, c.arg)
		}
	}
	page.changes = nil
}

// handleDialog renders a read-only dialog.
func (a *Admin) handleDialog(w http.ResponseWriter, r *http.Request) {
	r, page := a.loadPage(w, r)
	if page == nil {
		return
	}
	dialog, ok := a.registry.Dialog(r.PathValue("dialog"))
	if !ok {
		http.Error(w, "Unknown dialog", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := dialog.Render(&buf, r, page); err != nil {
		a.logger.Error("failed to render dialog", "dialog", dialog.Name(), "error", err)
		http.Error(w, "Failed to render dialog", http.StatusInternalServerError)
		return
	}
	a.renderDialogPage(w, page, dialog, template.HTML(buf.String()))
}

func (a *Admin) renderPanePage(w http.ResponseWriter, r *http.Request, page *Page, pane Pane) {
	var buf bytes.Buffer
	if err := pane.Render(&buf, r, page); err != nil {
		a.logger.Error("failed to render pane", "pane", pane.Name(), "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var nav []navItem
	for _, p := range a.registry.Panes(page.Regatta().Scoring) {
		nav = append(nav, navItem{
			Title:   p.Title(),
			URL:     page.URL(p.Name()),
			Enabled: p.IsActive(page.Data),
			Current: p.Name() == pane.Name(),
		})
	}
	var dialogs []navItem
	for _, d := range a.registry.Dialogs() {
		dialogs = append(dialogs, navItem{Title: d.Title(), URL: page.DialogURL(d.Name()), Enabled: true})
	}

	a.renderScoring(w, scoringData{
		Title:     pane.Title() + " | " + page.Regatta().Name,
		User:      page.User,
		CSRFToken: page.CSRFToken,
		Regatta:   page.Regatta(),
		Pane:      pane.Title(),
		Nav:       nav,
		Dialogs:   dialogs,
		Messages:  a.takeMessages(r),
		Content:   template.HTML(buf.String()),
	})
}

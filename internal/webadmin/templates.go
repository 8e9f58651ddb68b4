// ABOUTME: Template rendering functions for the scoring UI
// ABOUTME: Loads page, pane and dialog templates from the embedded filesystem

package webadmin

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/yuin/goldmark"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
)

//go:embed templates/*.html templates/partials/*.html templates/panes/*.html templates/dialogs/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"ago":      humanize.Time,
	"ordinal":  humanize.Ordinal,
	"plural":   func(n int, word string) string { return english.Plural(n, word, "") },
	"date":     func(t time.Time) string { return t.Format("Mon Jan 2, 2006") },
	"isoDate":  func(t time.Time) string { return t.Format("2006-01-02") },
	"markdown": renderMarkdown,
	"numbers":  formatNumbers,
	"join":     strings.Join,
	"eq1":      func(n int) bool { return n == 1 },
	"divLabel": func(d regatta.Division) string { return "Division " + string(d) },
	"msgClass": func(t store.MessageType) string { return "flash-" + string(t) },
	"deref":    derefTime,
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// renderMarkdown converts a daily summary to HTML. goldmark escapes raw
// HTML by default.
func renderMarkdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

// fragments holds every pane and dialog body, keyed by "pane-NAME" and
// "dialog-NAME".
var fragments = template.Must(template.New("fragments").Funcs(templateFuncs).ParseFS(templateFS,
	"templates/partials/*.html",
	"templates/panes/*.html",
	"templates/dialogs/*.html",
))

func renderFragment(w io.Writer, name string, data any) error {
	return fragments.ExecuteTemplate(w, name, data)
}

func pageTemplate(name string) *template.Template {
	return template.Must(template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS,
		"templates/base.html",
		"templates/partials/*.html",
		"templates/"+name,
	))
}

// Template data types
// Page data types all carry User and CSRFToken for base.html; User is nil
// before sign-in.
type loginData struct {
	Title     string
	User      *store.AdminUser
	Error     string
	CSRFToken string
}

type inviteData struct {
	Title     string
	User      *store.AdminUser
	Token     string
	Error     string
	CSRFToken string
}

type inviteCreatedData struct {
	URL string
}

type regattaRow struct {
	Regatta *regatta.Regatta
	URL     string
}

type homeData struct {
	Title        string
	User         *store.AdminUser
	CSRFToken    string
	Messages     []store.SessionMessage
	Regattas     []regattaRow
	ScoringTypes []regatta.ScoringType
	RegattaTypes []string
	Today        time.Time
}

type navItem struct {
	Title   string
	URL     string
	Enabled bool
	Current bool
}

type scoringData struct {
	Title     string
	User      *store.AdminUser
	CSRFToken string
	Regatta   *regatta.Regatta
	Pane      string
	Nav       []navItem
	Dialogs   []navItem
	Messages  []store.SessionMessage
	Content   template.HTML
}

type dialogData struct {
	Title     string
	User      *store.AdminUser
	CSRFToken string
	Regatta   *regatta.Regatta
	Content   template.HTML
}

func (a *Admin) execute(w http.ResponseWriter, tmpl *template.Template, data any, what string) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		a.logger.Error("failed to render "+what, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *Admin) renderLoginPage(w http.ResponseWriter, errorMsg, csrfToken string) {
	a.execute(w, pageTemplate("login.html"), loginData{
		Title:     "Sign in",
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}, "login page")
}

func (a *Admin) renderInvitePage(w http.ResponseWriter, token, errorMsg, csrfToken string) {
	a.execute(w, pageTemplate("invite.html"), inviteData{
		Title:     "Create your account",
		Token:     token,
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}, "invite page")
}

func (a *Admin) renderInviteCreated(w http.ResponseWriter, inviteURL string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/partials/invite_created.html"))
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "invite_created", inviteCreatedData{URL: inviteURL}); err != nil {
		a.logger.Error("failed to render invite link", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *Admin) renderHome(w http.ResponseWriter, data homeData) {
	a.execute(w, pageTemplate("home.html"), data, "home page")
}

func (a *Admin) renderScoring(w http.ResponseWriter, data scoringData) {
	a.execute(w, pageTemplate("scoring.html"), data, "scoring page")
}

func (a *Admin) renderDialogPage(w http.ResponseWriter, page *Page, dialog Dialog, content template.HTML) {
	a.execute(w, pageTemplate("dialog.html"), dialogData{
		Title:     dialog.Title() + " | " + page.Regatta().Name,
		User:      page.User,
		CSRFToken: page.CSRFToken,
		Regatta:   page.Regatta(),
		Content:   content,
	}, "dialog")
}

// ABOUTME: Invite links: admins mint them, new scorers redeem them to create an account
// ABOUTME: An invite grants the role it was minted with and works once before it expires

package webadmin

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/techscore/techscore/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

const minPasswordLength = 8

func validateUsername(username string) string {
	switch {
	case len(username) < 3:
		return "Username must be at least 3 characters"
	case len(username) > 32:
		return "Username must be at most 32 characters"
	case !usernamePattern.MatchString(username):
		return "Username must start with a letter and contain only letters, numbers, and underscores"
	}
	return ""
}

// redeemable loads the invite behind token, or explains why it cannot be used.
func (a *Admin) redeemable(ctx context.Context, token string) (*store.AdminInvite, string) {
	invite, err := a.store.GetAdminInvite(ctx, token)
	switch {
	case errors.Is(err, store.ErrAdminInviteNotFound):
		return nil, "Invalid invite link"
	case err != nil:
		a.logger.Error("loading invite", "error", err)
		return nil, "An error occurred"
	case invite.UsedAt != nil:
		return nil, "This invite has already been used"
	case !invite.Usable(time.Now()):
		return nil, "This invite has expired"
	}
	return invite, ""
}

func (a *Admin) handleInvitePage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	r, csrf := a.ensureCSRFToken(w, r)
	_, problem := a.redeemable(r.Context(), token)
	a.renderInvitePage(w, token, problem, csrf)
}

type signupForm struct {
	username, password, displayName string
}

func (f signupForm) problem() string {
	if f.username == "" || f.password == "" {
		return "Username and password required"
	}
	if msg := validateUsername(f.username); msg != "" {
		return msg
	}
	if len(f.password) < minPasswordLength {
		return "Password must be at least 8 characters"
	}
	return ""
}

func (a *Admin) handleInviteSignup(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	reject := func(msg string) {
		_, csrf := a.ensureCSRFToken(w, r)
		a.renderInvitePage(w, token, msg, csrf)
	}

	if err := r.ParseForm(); err != nil {
		reject("Invalid form data")
		return
	}
	if !a.validateCSRF(r) {
		reject("Invalid request, please try again")
		return
	}
	form := signupForm{
		username:    r.FormValue("username"),
		password:    r.FormValue("password"),
		displayName: r.FormValue("display_name"),
	}
	if msg := form.problem(); msg != "" {
		reject(msg)
		return
	}
	if form.displayName == "" {
		form.displayName = form.username
	}

	invite, problem := a.redeemable(r.Context(), token)
	if problem != "" {
		reject(problem)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.password), bcrypt.DefaultCost)
	if err != nil {
		a.logger.Error("hashing password", "error", err)
		reject("An error occurred")
		return
	}
	user := &store.AdminUser{
		Username:     form.username,
		PasswordHash: string(hash),
		DisplayName:  form.displayName,
		Role:         invite.Role,
	}
	if err := a.store.CreateAdminUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			reject("Username already taken")
			return
		}
		a.logger.Error("creating user", "error", err)
		reject("An error occurred")
		return
	}

	if err := a.store.UseAdminInvite(r.Context(), token, user.ID); err != nil {
		a.logger.Error("marking invite used", "error", err, "user_id", user.ID)
	}
	a.audit(r.Context(), &store.AuditEntry{
		ActorUserID: user.ID,
		Action:      store.AuditCreateUser,
		TargetType:  "user",
		TargetID:    user.ID,
		Detail:      map[string]any{"username": user.Username, "role": string(user.Role)},
	})

	if err := a.startSession(w, r, user.ID); err != nil {
		a.logger.Error("starting session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	a.logger.Info("account created from invite", "username", user.Username, "role", user.Role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleCreateInvite mints an invite link. Admins only.
func (a *Admin) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}
	user := getUserFromContext(r)
	if !user.IsAdmin() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	role := store.RoleScorer
	if store.Role(r.FormValue("role")) == store.RoleAdmin {
		role = store.RoleAdmin
	}
	token, err := newToken(32)
	if err != nil {
		a.logger.Error("generating invite token", "error", err)
		http.Error(w, "Failed to create invite", http.StatusInternalServerError)
		return
	}
	now := time.Now()
	invite := &store.AdminInvite{
		ID:        token,
		CreatedBy: user.ID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(a.config.InviteTTL),
	}
	if err := a.store.CreateAdminInvite(r.Context(), invite); err != nil {
		a.logger.Error("storing invite", "error", err)
		http.Error(w, "Failed to create invite", http.StatusInternalServerError)
		return
	}

	a.audit(r.Context(), &store.AuditEntry{
		ActorUserID: user.ID,
		Action:      store.AuditCreateInvite,
		TargetType:  "invite",
		TargetID:    token[:8],
		Detail:      map[string]any{"role": string(role)},
	})
	a.renderInviteCreated(w, a.config.BaseURL+"/invite/"+token)
}

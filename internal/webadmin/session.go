// ABOUTME: Browser sign-in for the scoring UI: session cookies, CSRF tokens, login and logout
// ABOUTME: Authenticated handlers find the user, session and CSRF token in one request state

package webadmin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/techscore/techscore/internal/store"
)

const (
	SessionCookieName = "techscore_session"
	CSRFCookieName    = "techscore_csrf"
)

// bcrypt of a random string; compared against when the account is unknown
// so a failed login takes as long as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// requestState is what the auth middleware learned about the browser.
type requestState struct {
	user      *store.AdminUser
	sessionID string
	csrf      string
}

type stateKey struct{}

func stateFrom(r *http.Request) *requestState {
	if st, ok := r.Context().Value(stateKey{}).(*requestState); ok {
		return st
	}
	return &requestState{}
}

func withState(r *http.Request, st *requestState) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), stateKey{}, st))
}

func getUserFromContext(r *http.Request) *store.AdminUser { return stateFrom(r).user }

func getSessionID(r *http.Request) string { return stateFrom(r).sessionID }

func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (a *Admin) setCookie(w http.ResponseWriter, r *http.Request, c *http.Cookie) {
	c.Path = "/"
	c.HttpOnly = true
	c.Secure = a.config.SecureCookies || r.TLS != nil
	http.SetCookie(w, c)
}

// currentUser resolves the session cookie to its account.
func (a *Admin) currentUser(r *http.Request) (*store.AdminUser, string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, "", err
	}
	sess, err := a.store.GetAdminSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, "", err
	}
	user, err := a.store.GetAdminUser(r.Context(), sess.UserID)
	if err != nil {
		return nil, "", err
	}
	return user, sess.ID, nil
}

// requireAuth sends browsers without a live session to the login page.
func (a *Admin) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := a.currentUser(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) && !errors.Is(err, store.ErrAdminSessionNotFound) {
				a.logger.Warn("resolving session", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, withState(r, &requestState{user: user, sessionID: sessionID}))
	}
}

// ensureCSRFToken returns the browser's CSRF token, issuing a cookie for a
// new one if it has none.
func (a *Admin) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	st := *stateFrom(r)
	if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
		st.csrf = c.Value
		return withState(r, &st), st.csrf
	}

	token, err := newToken(32)
	if err != nil {
		// an empty token never validates
		a.logger.Error("generating CSRF token", "error", err)
	}
	a.setCookie(w, r, &http.Cookie{Name: CSRFCookieName, Value: token, SameSite: http.SameSiteStrictMode})
	st.csrf = token
	return withState(r, &st), token
}

// validateCSRF compares the submitted token, from the form or the
// X-CSRF-Token header, with the cookie.
func (a *Admin) validateCSRF(r *http.Request) bool {
	c, err := r.Cookie(CSRFCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	submitted := r.FormValue("csrf_token")
	if submitted == "" {
		submitted = r.Header.Get("X-CSRF-Token")
	}
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(c.Value)) == 1
}

func (a *Admin) startSession(w http.ResponseWriter, r *http.Request, userID string) error {
	id, err := newToken(32)
	if err != nil {
		return err
	}
	now := time.Now()
	sess := &store.AdminSession{ID: id, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(a.config.SessionTTL)}
	if err := a.store.CreateAdminSession(r.Context(), sess); err != nil {
		return err
	}
	a.setCookie(w, r, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Expires:  sess.ExpiresAt,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, err := a.currentUser(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	_, csrf := a.ensureCSRFToken(w, r)
	a.renderLoginPage(w, "", csrf)
}

// authenticate checks a username and password, returning the message to
// show when they are rejected.
func (a *Admin) authenticate(ctx context.Context, username, password string) (*store.AdminUser, string) {
	user, err := a.store.GetAdminUserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrAdminUserNotFound):
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, "Invalid username or password"
	case err != nil:
		a.logger.Error("looking up user", "error", err)
		return nil, "An error occurred"
	case user.PasswordHash == "":
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, "Password login not enabled for this account"
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "Invalid username or password"
	}
	return user, ""
}

func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	reject := func(msg string) {
		_, csrf := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, msg, csrf)
	}

	if err := r.ParseForm(); err != nil {
		reject("Invalid form data")
		return
	}
	if !a.validateCSRF(r) {
		reject("Invalid request, please try again")
		return
	}
	username, password := r.FormValue("username"), r.FormValue("password")
	if username == "" || password == "" {
		reject("Username and password required")
		return
	}

	user, problem := a.authenticate(r.Context(), username, password)
	if problem != "" {
		reject(problem)
		return
	}
	if err := a.startSession(w, r, user.ID); err != nil {
		a.logger.Error("starting session", "error", err)
		reject("An error occurred")
		return
	}

	a.logger.Info("signed in", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout ends the session even when the CSRF token is missing.
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.ParseForm() == nil && !a.validateCSRF(r) {
		a.logger.Warn("logout without a valid CSRF token")
	}
	if id := getSessionID(r); id != "" {
		if err := a.store.DeleteAdminSession(r.Context(), id); err != nil {
			a.logger.Warn("deleting session", "error", err)
		}
	}
	for _, name := range []string{SessionCookieName, CSRFCookieName} {
		a.setCookie(w, r, &http.Cookie{Name: name, MaxAge: -1})
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

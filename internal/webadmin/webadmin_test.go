// ABOUTME: Tests for sign-in, sessions, CSRF and invites, plus the shared test harness
// ABOUTME: The harness seeds a SQLite store with a user, schools, a boat and a regatta

package webadmin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

const (
	testCSRF     = "test-csrf-token"
	testPassword = "correct horse"
)

type queued struct {
	regattaID string
	activity  updates.Activity
	arg       string
}

// recordingQueuer captures update requests instead of persisting them.
type recordingQueuer struct {
	mu   sync.Mutex
	reqs []queued
}

func (q *recordingQueuer) QueueRequest(_ context.Context, regattaID string, activity updates.Activity, arg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reqs = append(q.reqs, queued{regattaID, activity, arg})
}

func (q *recordingQueuer) activities() []updates.Activity {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]updates.Activity, len(q.reqs))
	for i, r := range q.reqs {
		out[i] = r.activity
	}
	return out
}

type harness struct {
	t       *testing.T
	store   *store.SQLiteStore
	admin   *Admin
	mux     *http.ServeMux
	queue   *recordingQueuer
	user    *store.AdminUser
	session string
	boat    regatta.Boat
	schools []*store.School
	reg     *regatta.Regatta
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// newHarness builds a regatta of the given scoring type with three teams
// and, for fleet racing, three races in each of two divisions. The signed
// in user is a scorer, not an administrator.
func newHarness(t *testing.T, scoring regatta.ScoringType) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{t: t, store: newTestStore(t), queue: &recordingQueuer{}}

	h.user = h.createUser("scorer1", store.RoleScorer)
	h.session = h.login(h.user)

	h.boat = regatta.Boat{Name: "FJ", MinCrews: 1, MaxCrews: 1}
	require.NoError(t, h.store.CreateBoat(ctx, &h.boat))

	divs := []regatta.Division{regatta.DivisionA, regatta.DivisionB}
	if scoring == regatta.ScoringTeam {
		divs = divs[:1]
	}
	h.reg = &regatta.Regatta{
		Name:        "Harry Anderson Trophy",
		StartDate:   time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		Duration:    2,
		Scoring:     scoring,
		Participant: regatta.ParticipantCoed,
		Type:        "intersectional",
		Divisions:   divs,
	}
	require.NoError(t, h.store.CreateRegatta(ctx, h.reg))
	require.NoError(t, h.store.AddScorer(ctx, store.Scorer{RegattaID: h.reg.ID, UserID: h.user.ID, Principal: true}))

	for _, name := range []string{"Tufts", "Yale", "Navy"} {
		sc := &store.School{Name: name, Conference: "NEISA"}
		require.NoError(t, h.store.CreateSchool(ctx, sc))
		h.schools = append(h.schools, sc)
		team := regatta.Team{RegattaID: h.reg.ID, SchoolID: sc.ID, Name: "1"}
		require.NoError(t, h.store.AddTeam(ctx, &team))
	}
	if scoring != regatta.ScoringTeam {
		require.NoError(t, h.store.SetRaceCount(ctx, h.reg.ID, 3, h.boat.ID))
	}

	h.admin = New(h.store, h.queue, Config{BaseURL: "http://scores.test", DefaultBoat: "FJ"})
	h.mux = http.NewServeMux()
	h.admin.RegisterRoutes(h.mux)
	return h
}

func (h *harness) createUser(username string, role store.Role) *store.AdminUser {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(h.t, err)
	u := &store.AdminUser{
		ID:           username + "-id",
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  strings.ToUpper(username[:1]) + username[1:],
		Role:         role,
	}
	require.NoError(h.t, h.store.CreateAdminUser(context.Background(), u))
	return u
}

func (h *harness) login(u *store.AdminUser) string {
	h.t.Helper()
	s := &store.AdminSession{
		ID:        u.ID + "-session",
		UserID:    u.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(h.t, h.store.CreateAdminSession(context.Background(), s))
	return s.ID
}

func (h *harness) do(req *http.Request, session string) *httptest.ResponseRecorder {
	if session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})
	}
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRF})
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil), h.session)
}

// post submits form with a valid CSRF token.
func (h *harness) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRF)
	return h.postRaw(path, form, h.session)
}

func (h *harness) postRaw(path string, form url.Values, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req, session)
}

func (h *harness) pane(name string) string {
	return "/score/" + h.reg.ID + "/" + name
}

// messages returns and clears the session's flash messages.
func (h *harness) messages() []store.SessionMessage {
	h.t.Helper()
	msgs, err := h.store.TakeSessionMessages(context.Background(), h.session)
	require.NoError(h.t, err)
	return msgs
}

func (h *harness) lastMessage() store.SessionMessage {
	h.t.Helper()
	msgs := h.messages()
	require.NotEmpty(h.t, msgs)
	return msgs[len(msgs)-1]
}

func (h *harness) data() *store.RegattaData {
	h.t.Helper()
	d, err := h.store.LoadRegatta(context.Background(), h.reg.ID)
	require.NoError(h.t, err)
	return d
}

func (h *harness) auditActions() []store.AuditAction {
	h.t.Helper()
	id := h.reg.ID
	entries, err := h.store.ListAuditLog(context.Background(), store.AuditFilter{RegattaID: &id})
	require.NoError(h.t, err)
	out := make([]store.AuditAction, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginPage_SetsCSRFCookie(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="csrf_token"`)
	require.NotNil(t, cookieNamed(rec, CSRFCookieName))
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	form := url.Values{"username": {"scorer1"}, "password": {testPassword}, "csrf_token": {testCSRF}}
	rec := h.postRaw("/login", form, "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	session := cookieNamed(rec, SessionCookieName)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	form := url.Values{"username": {"scorer1"}, "password": {"nope"}, "csrf_token": {testCSRF}}
	rec := h.postRaw("/login", form, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Nil(t, cookieNamed(rec, SessionCookieName))
}

func TestLogin_RequiresCSRF(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	form := url.Values{"username": {"scorer1"}, "password": {testPassword}, "csrf_token": {"forged"}}
	rec := h.postRaw("/login", form, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
	assert.Nil(t, cookieNamed(rec, SessionCookieName))
}

func TestRequireAuth_RedirectsToLogin(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil), "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogout_DeletesSession(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	_, err := h.store.GetAdminSession(context.Background(), h.session)
	assert.Error(t, err)

	rec = h.get("/")
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHome_ListsScoredRegattas(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	other := &regatta.Regatta{
		Name:        "Someone Else's Regatta",
		StartDate:   time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
		Duration:    1,
		Scoring:     regatta.ScoringStandard,
		Participant: regatta.ParticipantCoed,
		Type:        "conference",
		Divisions:   []regatta.Division{regatta.DivisionA},
	}
	require.NoError(t, h.store.CreateRegatta(context.Background(), other))

	rec := h.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Harry Anderson Trophy")
	assert.NotContains(t, body, "Someone Else")
	assert.NotContains(t, body, "Invite a scorer")
}

func TestCreateRegatta(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.post("/regattas", url.Values{
		"name":       {"Fall Frosh"},
		"start_date": {"2026-11-07"},
		"duration":   {"2"},
		"divisions":  {"2"},
		"races":      {"6"},
		"scoring":    {"standard"},
		"type":       {"conference"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/score/"), loc)
	id := strings.TrimSuffix(strings.TrimPrefix(loc, "/score/"), "/details")

	d, err := h.store.LoadRegatta(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "fall-frosh", d.Regatta.Nick)
	assert.Len(t, d.Races, 12)
	require.Len(t, d.Scorers, 1)
	assert.True(t, d.Scorers[0].Principal)
	assert.Equal(t, []updates.Activity{updates.ActivityDetails}, h.queue.activities())
	assert.Equal(t, "Created Fall Frosh.", h.lastMessage().Text)
}

func TestCreateRegatta_Invalid(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.post("/regattas", url.Values{"name": {"No Date"}, "start_date": {"soon"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	msg := h.lastMessage()
	assert.Equal(t, store.MessageError, msg.Type)
	assert.Contains(t, msg.Text, "YYYY-MM-DD")
	assert.Empty(t, h.queue.activities())
}

func TestCreateInvite_AdminOnly(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.post("/invites", url.Values{"role": {"scorer"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := h.createUser("boss", store.RoleAdmin)
	form := url.Values{"role": {"scorer"}, "csrf_token": {testCSRF}}
	rec = h.postRaw("/invites", form, h.login(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://scores.test/invite/")
}

func TestInviteSignup(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	ctx := context.Background()
	invite := &store.AdminInvite{
		ID:        "invite-token",
		CreatedBy: h.user.ID,
		Role:      store.RoleScorer,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, h.store.CreateAdminInvite(ctx, invite))

	rec := h.get("/invite/invite-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/invite/invite-token"`)

	form := url.Values{
		"username":     {"newbie"},
		"password":     {"longenough"},
		"display_name": {"New Scorer"},
		"csrf_token":   {testCSRF},
	}
	rec = h.postRaw("/invite/invite-token", form, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, cookieNamed(rec, SessionCookieName))

	u, err := h.store.GetAdminUserByUsername(ctx, "newbie")
	require.NoError(t, err)
	assert.Equal(t, store.RoleScorer, u.Role)

	rec = h.postRaw("/invite/invite-token", form, "")
	assert.Contains(t, rec.Body.String(), "already been used")
}

func TestValidateUsername(t *testing.T) {
	assert.Empty(t, validateUsername("scorer_1"))
	assert.NotEmpty(t, validateUsername("ab"))
	assert.NotEmpty(t, validateUsername("1scorer"))
	assert.NotEmpty(t, validateUsername("has space"))
}

// ABOUTME: Tests for the pane dispatcher and each pane's form processing
// ABOUTME: Every mutation is checked for its flash message, audit entry and update request

package webadmin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/rotation"
	"github.com/techscore/techscore/internal/rp"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/updates"
)

// raceFinishes builds the finish form values for one race in team order.
func raceFinishes(race regatta.Race, teams ...regatta.Team) []string {
	out := make([]string, len(teams))
	for i, t := range teams {
		out[i] = finishValue(race.ID, t.ID)
	}
	return out
}

// enterFinishes scores race with the teams in the given order, directly
// in the store.
func (h *harness) enterFinishes(race regatta.Race, teams ...regatta.Team) {
	h.t.Helper()
	fs := make([]*regatta.Finish, len(teams))
	for i, t := range teams {
		fs[i] = &regatta.Finish{RaceID: race.ID, TeamID: t.ID, Entered: i + 1}
	}
	require.NoError(h.t, h.store.SetFinishes(context.Background(), []string{race.ID}, fs))
}

func (h *harness) race(div regatta.Division, n int) regatta.Race {
	h.t.Helper()
	r, ok := h.data().RaceByNumber(div, n)
	require.True(h.t, ok, "race %d%s", n, div)
	return r
}

func TestScoreIndex_RedirectsToFirstActivePane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.get("/score/" + h.reg.ID)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, h.pane("details"), rec.Header().Get("Location"))
}

func TestPane_UnknownRedirectsWithWarning(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.get(h.pane("bogus"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, h.pane("details"), rec.Header().Get("Location"))
	msg := h.lastMessage()
	assert.Equal(t, store.MessageWarning, msg.Type)
	assert.Contains(t, msg.Text, "bogus")
}

func TestPane_InactiveRedirectsWithWarning(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.get(h.pane("drop-finishes"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, h.pane("details"), rec.Header().Get("Location"))
	assert.Contains(t, h.lastMessage().Text, "not available yet")
}

func TestPane_ScoringTypeDecidesPanes(t *testing.T) {
	fleet := newHarness(t, regatta.ScoringStandard)
	rec := fleet.get(fleet.pane("round-robin"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	team := newHarness(t, regatta.ScoringTeam)
	rec = team.get(team.pane("round-robin"))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = team.get(team.pane("rotations"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestPane_UnknownRegatta(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.get("/score/no-such-regatta/details")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPane_NonScorerForbidden(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	other := h.createUser("outsider", store.RoleScorer)

	rec := h.do(httptest.NewRequest(http.MethodGet, h.pane("details"), nil), h.login(other))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPane_AdminMayScoreAnyRegatta(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	admin := h.createUser("boss", store.RoleAdmin)

	rec := h.do(httptest.NewRequest(http.MethodGet, h.pane("details"), nil), h.login(admin))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPane_PostRequiresCSRF(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	form := url.Values{"csrf_token": {"forged"}, "count": {"5"}}
	rec := h.postRaw(h.pane("races"), form, h.session)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, h.data().Races, 6)
	assert.Empty(t, h.queue.activities())
}

func TestPanes_RenderFleet(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	ctx := context.Background()
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)

	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(ctx, []string{r1.ID}, as))
	h.enterFinishes(r1, d.Teams...)
	fs := h.data().FinishesIn(r1.ID)
	require.NoError(t, h.store.SetModifier(ctx, fs[0].ID, &regatta.Modifier{Type: regatta.PenaltyDSQ}))

	for _, p := range h.admin.registry.Panes(regatta.ScoringStandard) {
		rec := h.get(h.pane(p.Name()))
		assert.Equal(t, http.StatusOK, rec.Code, p.Name())
		assert.Contains(t, rec.Body.String(), "<h1>"+p.Title()+"</h1>", p.Name())
	}
	for _, dl := range h.admin.registry.Dialogs() {
		rec := h.get("/view/" + h.reg.ID + "/" + dl.Name())
		assert.Equal(t, http.StatusOK, rec.Code, dl.Name())
	}
}

func TestPanes_RenderTeam(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()

	rec := h.post(h.pane("round-robin"), url.Values{
		"round": {"Round 1"},
		"team":  {d.Teams[0].ID, d.Teams[1].ID, d.Teams[2].ID},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	for _, p := range h.admin.registry.Panes(regatta.ScoringTeam) {
		if !p.IsActive(h.data()) {
			continue
		}
		rec := h.get(h.pane(p.Name()))
		assert.Equal(t, http.StatusOK, rec.Code, p.Name())
	}
	for _, dl := range h.admin.registry.Dialogs() {
		rec := h.get("/view/" + h.reg.ID + "/" + dl.Name())
		assert.Equal(t, http.StatusOK, rec.Code, dl.Name())
	}
}

func TestDialog_Unknown(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	rec := h.get("/view/" + h.reg.ID + "/bogus")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFinishesPane_EnterByTeam(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)

	rec := h.post(h.pane("finishes"), url.Values{
		"race":   {"1A"},
		"finish": raceFinishes(r1, d.Teams[2], d.Teams[0], d.Teams[1]),
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, h.pane("finishes"), rec.Header().Get("Location"))

	fs := h.data().FinishesIn(r1.ID)
	require.Len(t, fs, 3)
	assert.Equal(t, d.Teams[2].ID, fs[0].TeamID)
	assert.Equal(t, 1, fs[0].Score)
	assert.Equal(t, 3, fs[2].Score)

	msg := h.lastMessage()
	assert.Equal(t, store.MessageValid, msg.Type)
	assert.Equal(t, "Entered finishes for Race 1A.", msg.Text)
	assert.Equal(t, []store.AuditAction{store.AuditEnterFinishes}, h.auditActions())
	assert.Equal(t, []updates.Activity{updates.ActivityScore}, h.queue.activities())
}

func TestFinishesPane_MissingTeamRejected(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)

	rec := h.post(h.pane("finishes"), url.Values{
		"race":   {"1A"},
		"finish": raceFinishes(r1, d.Teams[0], d.Teams[1]),
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	msg := h.lastMessage()
	assert.Equal(t, store.MessageError, msg.Type)
	assert.Contains(t, msg.Text, "Expected 3 finishes")
	assert.Empty(t, h.data().Finishes)
	assert.Empty(t, h.auditActions())
	assert.Empty(t, h.queue.activities())
}

func TestFinishesPane_EnterBySail(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)

	sails := []string{"11", "12", "13"}
	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: sails[i]})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	rec := h.post(h.pane("finishes"), url.Values{"race": {"1a"}, "sails": {"13, 11 12"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	fs := h.data().FinishesIn(r1.ID)
	require.Len(t, fs, 3)
	assert.Equal(t, d.Teams[2].ID, fs[0].TeamID)
	assert.Equal(t, d.Teams[0].ID, fs[1].TeamID)
	assert.Equal(t, d.Teams[1].ID, fs[2].TeamID)
}

func TestFinishesPane_UnknownSail(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	h.post(h.pane("finishes"), url.Values{"race": {"1A"}, "sails": {"1 2 9"}})

	assert.Contains(t, h.lastMessage().Text, `Sail "9"`)
	assert.Empty(t, h.data().Finishes)
}

func TestFinishesPane_ReentryKeepsPenalties(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	h.enterFinishes(r1, d.Teams...)
	first := h.data().FinishesIn(r1.ID)[0]
	require.NoError(t, h.store.SetModifier(context.Background(), first.ID, &regatta.Modifier{Type: regatta.PenaltyDSQ}))

	h.post(h.pane("finishes"), url.Values{
		"race":   {"1A"},
		"finish": raceFinishes(r1, d.Teams[1], d.Teams[0], d.Teams[2]),
	})

	assert.Equal(t, "Updated finishes for Race 1A.", h.lastMessage().Text)
	for _, f := range h.data().FinishesIn(r1.ID) {
		if f.TeamID == d.Teams[0].ID {
			require.NotNil(t, f.Modifier)
			assert.Equal(t, regatta.PenaltyDSQ, f.Modifier.Type)
		} else {
			assert.Nil(t, f.Modifier)
		}
	}
}

func TestFinishesPane_CombinedScoresAllDivisions(t *testing.T) {
	h := newHarness(t, regatta.ScoringCombined)
	d := h.data()
	a, b := h.race(regatta.DivisionA, 2), h.race(regatta.DivisionB, 2)

	finishes := append(raceFinishes(a, d.Teams[0]), raceFinishes(b, d.Teams[0], d.Teams[1])...)
	finishes = append(finishes, raceFinishes(a, d.Teams[1], d.Teams[2])...)
	finishes = append(finishes, raceFinishes(b, d.Teams[2])...)

	rec := h.post(h.pane("finishes"), url.Values{"race": {"2"}, "finish": finishes})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	after := h.data()
	require.Len(t, after.FinishesIn(a.ID), 3)
	require.Len(t, after.FinishesIn(b.ID), 3)
	// combined races are scored as one fleet of six
	assert.Equal(t, 1, after.FinishesIn(a.ID)[0].Score)
	assert.Equal(t, 2, after.FinishesIn(b.ID)[0].Score)
	assert.Equal(t, 6, after.FinishesIn(b.ID)[2].Score)
}

func TestDropFinishesPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	h.enterFinishes(r1, d.Teams...)

	rec := h.post(h.pane("drop-finishes"), url.Values{"race": {"1A"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, h.data().Finishes)
	assert.Equal(t, "Removed finishes for Race 1A.", h.lastMessage().Text)
	assert.Equal(t, []store.AuditAction{store.AuditDropFinishes}, h.auditActions())
}

func TestDropFinishesPane_UnscoredRace(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	h.enterFinishes(h.race(regatta.DivisionA, 1), d.Teams...)

	h.post(h.pane("drop-finishes"), url.Values{"race": {"2A"}})

	assert.Equal(t, store.MessageError, h.lastMessage().Type)
	assert.Len(t, h.data().Finishes, 3)
}

func TestTeamsPane_AddRenameRemove(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	tufts := h.schools[0]

	h.post(h.pane("teams"), url.Values{"school": {tufts.ID}})
	d := h.data()
	require.Len(t, d.Teams, 4)
	var added regatta.Team
	for _, team := range d.Teams {
		if team.SchoolID == tufts.ID && team.Name == "2" {
			added = team
		}
	}
	require.NotEmpty(t, added.ID)
	assert.Equal(t, "Added Tufts 2.", h.lastMessage().Text)

	h.post(h.pane("teams"), url.Values{"action": {"rename"}, "team": {added.ID}, "name": {"B"}})
	renamed, _ := h.data().Team(added.ID)
	assert.Equal(t, "B", renamed.Name)
	assert.Equal(t, "Renamed Tufts 2 to Tufts B.", h.lastMessage().Text)

	h.post(h.pane("teams"), url.Values{"action": {"rename"}, "team": {added.ID}, "name": {"1"}})
	assert.Contains(t, h.lastMessage().Text, `already has a team named "1"`)

	h.post(h.pane("teams"), url.Values{"action": {"remove"}, "team": {added.ID}})
	_, ok := h.data().Team(added.ID)
	assert.False(t, ok)

	assert.Equal(t, []store.AuditAction{store.AuditRemoveTeam, store.AuditRenameTeam, store.AuditAddTeam},
		h.auditActions())
	assert.Equal(t, []updates.Activity{updates.ActivityTeam, updates.ActivityTeam, updates.ActivityTeam},
		h.queue.activities())
}

func TestTeamsPane_LockedOnceScored(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	h.enterFinishes(h.race(regatta.DivisionA, 1), d.Teams...)

	h.post(h.pane("teams"), url.Values{"school": {h.schools[0].ID}})
	assert.Contains(t, h.lastMessage().Text, "cannot be added")

	h.post(h.pane("teams"), url.Values{"action": {"remove"}, "team": {d.Teams[0].ID}})
	assert.Contains(t, h.lastMessage().Text, "cannot be removed")
	assert.Len(t, h.data().Teams, 3)
}

func TestRacesPane_SetCount(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	h.post(h.pane("races"), url.Values{"count": {"5"}})
	assert.Len(t, h.data().Races, 10)
	assert.Equal(t, "Each division now has 5 races.", h.lastMessage().Text)

	d := h.data()
	h.enterFinishes(h.race(regatta.DivisionA, 5), d.Teams...)
	h.post(h.pane("races"), url.Values{"count": {"2"}})
	assert.Contains(t, h.lastMessage().Text, "cannot be removed")
	assert.Len(t, h.data().Races, 10)

	h.post(h.pane("races"), url.Values{"count": {"0"}})
	assert.Contains(t, h.lastMessage().Text, "between 1 and 99")
}

func TestRacesPane_UnknownBoat(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	before := len(h.data().Races)

	h.post(h.pane("races"), url.Values{"count": {"5"}, "boat": {"no-such-boat"}})

	assert.Equal(t, "Unknown boat.", h.lastMessage().Text)
	assert.Len(t, h.data().Races, before)
}

func TestRotationsPane_Standard(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()

	form := url.Values{"type": {"STD"}, "races": {"1-3"}, "races_per_set": {"1"}}
	for _, div := range []regatta.Division{regatta.DivisionA, regatta.DivisionB} {
		for i, team := range d.Teams {
			form.Set(sailField(div, team.ID), string(rune('1'+i)))
		}
	}
	rec := h.post(h.pane("rotations"), form)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	after := h.data()
	assert.Len(t, after.Rotation, 18)
	table := after.RotationTable()
	r1, r2 := h.race(regatta.DivisionA, 1), h.race(regatta.DivisionA, 2)
	assert.Equal(t, "1", table.Sail(r1.ID, d.Teams[0].ID))
	assert.NotEqual(t, table.Sail(r1.ID, d.Teams[0].ID), table.Sail(r2.ID, d.Teams[0].ID))
	assert.Equal(t, []store.AuditAction{store.AuditSetRotation}, h.auditActions())
	assert.Equal(t, []updates.Activity{updates.ActivityRotation}, h.queue.activities())
}

func TestRotationsPane_DuplicateSail(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()

	form := url.Values{"type": {"NOR"}, "division": {"A"}}
	for _, team := range d.Teams {
		form.Set(sailField(regatta.DivisionA, team.ID), "7")
	}
	h.post(h.pane("rotations"), form)

	assert.Contains(t, h.lastMessage().Text, "only be used once")
	assert.Empty(t, h.data().Rotation)
}

func TestRotationsPane_CombinedNeedsDistinctSails(t *testing.T) {
	h := newHarness(t, regatta.ScoringCombined)
	d := h.data()

	form := url.Values{"type": {"NOR"}}
	for _, div := range []regatta.Division{regatta.DivisionA, regatta.DivisionB} {
		for i, team := range d.Teams {
			form.Set(sailField(div, team.ID), string(rune('1'+i)))
		}
	}
	h.post(h.pane("rotations"), form)

	assert.Equal(t, store.MessageError, h.lastMessage().Type)
	assert.Empty(t, h.data().Rotation)
}

func TestTweakSailsPane_Add(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	h.post(h.pane("tweak-sails"), url.Values{"op": {"ADD"}, "amount": {"10"}, "races": {"1"}, "division": {"A"}})

	table := h.data().RotationTable()
	assert.Equal(t, "11", table.Sail(r1.ID, d.Teams[0].ID))
	assert.Equal(t, "13", table.Sail(r1.ID, d.Teams[2].ID))
	assert.Equal(t, "Sails updated in 1 race.", h.lastMessage().Text)
}

func TestTweakSailsPane_Replace(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	h.post(h.pane("tweak-sails"), url.Values{"op": {"REPLACE"}, "from": {"2"}, "to": {"3"}, "division": {"A"}})
	assert.Contains(t, h.lastMessage().Text, "only be used once")

	h.post(h.pane("tweak-sails"), url.Values{"op": {"REPLACE"}, "from": {"2"}, "to": {"22"}, "division": {"A"}})
	assert.Equal(t, "22", h.data().RotationTable().Sail(r1.ID, d.Teams[1].ID))
}

func TestTweakSailsPane_RejectsRotationMissingTeam(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	var as []rotation.Assignment
	for i, team := range d.Teams[:2] {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	h.post(h.pane("tweak-sails"), url.Values{"op": {"ADD"}, "amount": {"10"}, "division": {"A"}})

	msg := h.lastMessage()
	assert.Equal(t, store.MessageError, msg.Type)
	assert.Equal(t, "Every team needs a sail in every race of the rotation.", msg.Text)
	assert.Equal(t, "1", h.data().RotationTable().Sail(r1.ID, d.Teams[0].ID))
}

func TestTeamsPane_AddClearsRotation(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	var as []rotation.Assignment
	for i, team := range d.Teams {
		as = append(as, rotation.Assignment{RaceID: r1.ID, TeamID: team.ID, Sail: string(rune('1' + i))})
	}
	require.NoError(t, h.store.SetRotation(context.Background(), []string{r1.ID}, as))

	h.post(h.pane("teams"), url.Values{"school": {h.schools[0].ID}})

	msgs := h.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "rotation was removed")
	after := h.data()
	assert.Len(t, after.Teams, 4)
	assert.Empty(t, after.Rotation)
	assert.Equal(t, []store.AuditAction{store.AuditSetRotation, store.AuditAddTeam}, h.auditActions())
}

func TestTeamsPane_AddWithoutRotation(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	h.post(h.pane("teams"), url.Values{"school": {h.schools[0].ID}})

	assert.Len(t, h.messages(), 1)
	assert.Equal(t, []store.AuditAction{store.AuditAddTeam}, h.auditActions())
}

func TestPenaltyPane_AddAndDrop(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	h.enterFinishes(r1, d.Teams...)
	first := h.data().FinishesIn(r1.ID)[0]

	h.post(h.pane("penalty"), url.Values{"finish": {first.ID}, "type": {"dsq"}, "comments": {"Rule 10"}})

	fs := h.data().FinishesIn(r1.ID)
	require.NotNil(t, fs[0].Modifier)
	assert.Equal(t, regatta.PenaltyDSQ, fs[0].Modifier.Type)
	assert.Equal(t, 4, fs[0].Score)
	assert.Equal(t, "Added DSQ for Navy 1 in race 1A.", h.lastMessage().Text)

	h.post(h.pane("drop-penalty"), url.Values{"finish": {first.ID}})
	assert.Nil(t, h.data().FinishesIn(r1.ID)[0].Modifier)

	assert.Equal(t, []store.AuditAction{store.AuditDropPenalty, store.AuditAddPenalty}, h.auditActions())
	assert.Equal(t, []updates.Activity{updates.ActivityScore, updates.ActivityScore}, h.queue.activities())
}

func TestPenaltyPane_DisplaceOnlyForPenalties(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	h.enterFinishes(r1, d.Teams...)
	first := h.data().FinishesIn(r1.ID)[0]

	h.post(h.pane("penalty"), url.Values{"finish": {first.ID}, "type": {"RDG"}, "displace": {"1"}})

	assert.Contains(t, h.lastMessage().Text, "Only penalties")
	assert.Nil(t, h.data().FinishesIn(r1.ID)[0].Modifier)
}

func TestTeamPenaltyPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	team := d.Teams[1]

	h.post(h.pane("team-penalty"), url.Values{"team": {team.ID}, "type": {"PFD"}, "division": {"B"}})
	pens := h.data().Penalties
	require.Len(t, pens, 1)
	assert.Equal(t, regatta.DivisionB, pens[0].Division)
	assert.Equal(t, "Added PFD for Tufts 1 in division B.", h.lastMessage().Text)

	h.post(h.pane("team-penalty"), url.Values{"team": {team.ID}, "type": {"LOP"}, "division": {"B"}})
	assert.Contains(t, h.lastMessage().Text, "already has a penalty")

	h.post(h.pane("team-penalty"), url.Values{"action": {"drop"}, "team": {team.ID}, "division": {"B"}})
	assert.Empty(t, h.data().Penalties)
}

func TestDetailsPane_Edit(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	h.post(h.pane("details"), url.Values{
		"name":        {"The Harry Anderson Trophy"},
		"start_date":  {"2026-10-04"},
		"duration":    {"1"},
		"type":        {"championship"},
		"scoring":     {"combined"},
		"participant": {"coed"},
	})

	reg := h.data().Regatta
	assert.Equal(t, "harry-anderson-trophy", reg.Nick)
	assert.Equal(t, regatta.ScoringCombined, reg.Scoring)
	assert.Equal(t, 1, reg.Duration)
	assert.Equal(t, "Regatta details updated.", h.lastMessage().Text)

	h.post(h.pane("details"), url.Values{
		"name": {"Harry Anderson Trophy"}, "start_date": {"2026-10-04"}, "scoring": {"team"},
	})
	assert.Contains(t, h.lastMessage().Text, "cannot be converted")
}

func TestDetailsPane_Finalize(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()

	h.post(h.pane("details"), url.Values{"action": {"finalize"}, "approve": {"1"}})
	assert.Contains(t, h.lastMessage().Text, "at least one scored race")

	r1 := h.race(regatta.DivisionA, 1)
	h.enterFinishes(r1, d.Teams...)
	h.post(h.pane("details"), url.Values{"action": {"finalize"}})
	assert.Contains(t, h.lastMessage().Text, "confirm")

	h.post(h.pane("details"), url.Values{"action": {"finalize"}, "approve": {"1"}})
	assert.True(t, h.data().Regatta.IsFinalized())
	assert.Equal(t, "Regatta finalized.", h.lastMessage().Text)
	assert.Contains(t, h.queue.activities(), updates.ActivityFinalized)

	// scoring panes are closed once finalized
	h.post(h.pane("drop-finishes"), url.Values{"race": {"1A"}})
	assert.Contains(t, h.lastMessage().Text, "finalized")
	assert.Len(t, h.data().Finishes, 3)

	// summaries remain editable
	h.post(h.pane("summaries"), url.Values{"summary-2026-10-03": {"Windy."}})
	assert.Equal(t, store.MessageValid, h.lastMessage().Type)
}

func TestSummariesPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)

	h.post(h.pane("summaries"), url.Values{
		"summary-2026-10-03": {"Light air in the morning, **building** to 15 knots."},
		"summary-2026-10-04": {""},
	})

	d := h.data()
	require.Len(t, d.Summaries, 1)
	assert.Contains(t, d.Summaries[0].Summary, "building")
	assert.Equal(t, []updates.Activity{updates.ActivitySummary}, h.queue.activities())
	assert.Equal(t, "2026-10-03", h.queue.reqs[0].arg)

	h.post(h.pane("summaries"), url.Values{"summary-2026-10-03": {d.Summaries[0].Summary}})
	assert.Contains(t, h.lastMessage().Text, "No summaries were changed")

	rec := h.get(h.pane("summaries"))
	assert.Contains(t, rec.Body.String(), "<strong>building</strong>")
}

func TestScorersPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	other := h.createUser("helper", store.RoleScorer)

	h.post(h.pane("scorers"), url.Values{"user": {other.ID}})
	assert.Len(t, h.data().Scorers, 2)
	assert.Equal(t, "Added Helper as scorer.", h.lastMessage().Text)

	h.post(h.pane("scorers"), url.Values{"user": {other.ID}})
	assert.Contains(t, h.lastMessage().Text, "already scores")

	h.post(h.pane("scorers"), url.Values{"action": {"remove"}, "user": {h.user.ID}})
	assert.Contains(t, h.lastMessage().Text, "principal")

	h.post(h.pane("scorers"), url.Values{"action": {"remove"}, "user": {other.ID}})
	assert.Len(t, h.data().Scorers, 1)
}

func TestRPPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	ctx := context.Background()
	d := h.data()
	team := d.Teams[0]

	skipper := rp.Sailor{SchoolID: team.SchoolID, First: "Ann", Last: "Lee", Year: 2027, Gender: rp.GenderFemale}
	crew := rp.Sailor{SchoolID: team.SchoolID, First: "Bo", Last: "Park", Year: 2028, Gender: rp.GenderMale}
	rival := rp.Sailor{SchoolID: d.Teams[1].SchoolID, First: "Cy", Last: "Yu", Year: 2026, Gender: rp.GenderMale}
	for _, s := range []*rp.Sailor{&skipper, &crew, &rival} {
		require.NoError(t, h.store.CreateSailor(ctx, s))
	}

	rec := h.post(h.pane("rp"), url.Values{
		"team":     {team.ID},
		"sailor-A": {skipper.ID, crew.ID, ""},
		"role-A":   {"skipper", "crew", "crew"},
		"races-A":  {"1-3", "1, 2", ""},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, h.pane("rp")+"?team="+team.ID, rec.Header().Get("Location"))

	entries := h.data().RP
	assert.Len(t, entries, 5)
	assert.Equal(t, "Updated RP for "+team.DisplayName()+".", h.lastMessage().Text)
	require.Len(t, h.queue.reqs, 1)
	assert.Equal(t, updates.ActivityRP, h.queue.reqs[0].activity)
	assert.Equal(t, team.ID, h.queue.reqs[0].arg)

	h.post(h.pane("rp"), url.Values{
		"team":     {team.ID},
		"sailor-A": {rival.ID},
		"role-A":   {"skipper"},
		"races-A":  {"1"},
	})
	assert.Contains(t, h.lastMessage().Text, "does not sail for")
	assert.Len(t, h.data().RP, 5)
}

func TestRPPane_ReportsMissingSailors(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	ctx := context.Background()
	d := h.data()
	team := d.Teams[0]
	h.enterFinishes(h.race(regatta.DivisionA, 1), d.Teams...)
	h.enterFinishes(h.race(regatta.DivisionA, 2), d.Teams...)

	skipper := rp.Sailor{SchoolID: team.SchoolID, First: "Ann", Last: "Lee", Year: 2027, Gender: rp.GenderFemale}
	require.NoError(t, h.store.CreateSailor(ctx, &skipper))

	h.post(h.pane("rp"), url.Values{
		"team":     {team.ID},
		"sailor-A": {skipper.ID},
		"role-A":   {"skipper"},
		"races-A":  {"1"},
	})

	assert.Contains(t, h.lastMessage().Text, "still missing sailors")
}

func TestRoundRobinPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()

	rec := h.post(h.pane("round-robin"), url.Values{
		"round": {"Round 1"},
		"team":  {d.Teams[0].ID, d.Teams[1].ID, d.Teams[2].ID},
		"swap":  {"1"},
	})

	assert.Equal(t, h.pane("team-finishes"), rec.Header().Get("Location"))
	races := h.data().Races
	require.Len(t, races, 3)
	for i, r := range races {
		assert.Equal(t, i+1, r.Number)
		assert.Equal(t, "Round 1", r.Round)
		assert.NotEqual(t, r.TeamA, r.TeamB)
		assert.Equal(t, h.boat.ID, r.BoatID)
	}
	assert.Equal(t, "Added Round 1 with 3 races (1 to 3).", h.lastMessage().Text)
	assert.Equal(t, []store.AuditAction{store.AuditRoundRobin}, h.auditActions())

	h.post(h.pane("round-robin"), url.Values{"round": {"round 1"}, "team": {d.Teams[0].ID, d.Teams[1].ID}})
	assert.Contains(t, h.lastMessage().Text, "already a round")

	h.post(h.pane("round-robin"), url.Values{"round": {"Final"}, "team": {d.Teams[0].ID}})
	assert.Contains(t, h.lastMessage().Text, "at least two teams")

	h.post(h.pane("round-robin"), url.Values{"round": {"Final"}, "team": {d.Teams[0].ID, d.Teams[1].ID}})
	races = h.data().Races
	require.Len(t, races, 4)
	assert.Equal(t, 4, races[3].Number)
}

func TestRoundRobinPane_UnknownBoat(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()

	h.post(h.pane("round-robin"), url.Values{
		"round": {"Round 1"},
		"team":  {d.Teams[0].ID, d.Teams[1].ID},
		"boat":  {"no-such-boat"},
	})

	assert.Equal(t, "Unknown boat.", h.lastMessage().Text)
	assert.Empty(t, h.data().Races)
}

func TestTeamFinishesPane(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()
	h.post(h.pane("round-robin"), url.Values{"round": {"Round 1"}, "team": {d.Teams[0].ID, d.Teams[1].ID}})
	h.messages()
	race := h.data().Races[0]
	a, b := race.TeamA, race.TeamB

	h.post(h.pane("team-finishes"), url.Values{"race": {"1"}, "finish": {a, a, b, b}})
	assert.Contains(t, h.lastMessage().Text, "exactly 3 finishes")

	h.post(h.pane("team-finishes"), url.Values{"race": {"1"}, "finish": {a, b, a, b, a, b}})
	fs := h.data().FinishesIn(race.ID)
	require.Len(t, fs, 6)
	winner, _ := d.Team(a)
	loser, _ := d.Team(b)
	assert.Equal(t, "Race 1: "+winner.DisplayName()+" defeated "+loser.DisplayName()+".", h.lastMessage().Text)
	assert.Contains(t, h.queue.activities(), updates.ActivityScore)

	rec := h.get("/view/" + h.reg.ID + "/scores")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "<strong>"+winner.DisplayName()+"</strong>"))
}

func TestTeamFinishesPane_ReentryKeepsModifiers(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()
	h.post(h.pane("round-robin"), url.Values{"round": {"Round 1"}, "team": {d.Teams[0].ID, d.Teams[1].ID}})
	race := h.data().Races[0]
	a, b := race.TeamA, race.TeamB
	h.post(h.pane("team-finishes"), url.Values{"race": {"1"}, "finish": {a, b, a, b, a, b}})

	fs := h.data().FinishesIn(race.ID)
	require.Len(t, fs, 6)
	dsq := &regatta.Modifier{Type: regatta.PenaltyDSQ, Comments: "Rule 14"}
	require.NoError(t, h.store.SetModifier(context.Background(), fs[1].ID, dsq))
	h.messages()

	h.post(h.pane("team-finishes"), url.Values{"race": {"1"}, "finish": {b, a, a, b, a, b}})

	fs = h.data().FinishesIn(race.ID)
	require.Len(t, fs, 6)
	var penalized []*regatta.Finish
	for _, f := range fs {
		if f.Modifier != nil {
			penalized = append(penalized, f)
		}
	}
	require.Len(t, penalized, 1)
	assert.Equal(t, b, penalized[0].TeamID)
	assert.Equal(t, 1, penalized[0].Entered)
	assert.Equal(t, regatta.PenaltyDSQ, penalized[0].Modifier.Type)
	assert.Equal(t, "Rule 14", penalized[0].Modifier.Comments)
}

func TestTeamFinishesPane_OnlyRaceTeams(t *testing.T) {
	h := newHarness(t, regatta.ScoringTeam)
	d := h.data()
	h.post(h.pane("round-robin"), url.Values{"round": {"Round 1"}, "team": {d.Teams[0].ID, d.Teams[1].ID}})
	race := h.data().Races[0]
	c := d.Teams[2].ID

	h.post(h.pane("team-finishes"), url.Values{"race": {"1"}, "finish": {race.TeamA, race.TeamA, race.TeamA, c, c, c}})

	assert.Contains(t, h.lastMessage().Text, "Only the two teams")
	assert.Empty(t, h.data().Finishes)
}

func TestHistoryDialog(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	r1 := h.race(regatta.DivisionA, 1)
	h.post(h.pane("finishes"), url.Values{
		"race":   {"1A"},
		"finish": raceFinishes(r1, d.Teams...),
	})

	rec := h.get("/view/" + h.reg.ID + "/history")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Entered finishes")
	assert.Contains(t, body, "Race 1A")
	assert.Contains(t, body, "Scorer1")
}

func TestScoresDialog_Fleet(t *testing.T) {
	h := newHarness(t, regatta.ScoringStandard)
	d := h.data()
	h.enterFinishes(h.race(regatta.DivisionA, 1), d.Teams[1], d.Teams[0], d.Teams[2])

	rec := h.get("/view/" + h.reg.ID + "/scores")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Overall")
	assert.Contains(t, body, "Division A")
	assert.Contains(t, body, "Division B")
	assert.Less(t, strings.Index(body, "Tufts 1"), strings.Index(body, "Navy 1"))
	assert.Less(t, strings.Index(body, "Navy 1"), strings.Index(body, "Yale 1"))
}

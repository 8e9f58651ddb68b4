// ABOUTME: Tests for the admin CLI commands against a stub JSON API server
// ABOUTME: Checks table output, auth header forwarding and error reporting

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/api"
)

func init() {
	color.NoColor = true
}

func stubAPI(t *testing.T) *httptest.Server {
	t.Helper()
	team := func(id, school string) api.TeamResponse { return api.TeamResponse{ID: id, School: school, Name: "1"} }
	routes := map[string]any{
		"/api/v1/regattas": []api.RegattaSummary{{
			ID: "reg-1", Name: "Danmark Trophy", StartDate: "2026-04-11", EndDate: "2026-04-12",
			Scoring: "standard", Divisions: []string{"A", "B"},
		}},
		"/api/v1/regattas/reg-1": api.RegattaResponse{
			RegattaSummary: api.RegattaSummary{ID: "reg-1", Name: "Danmark Trophy", StartDate: "2026-04-11", EndDate: "2026-04-12", Scoring: "standard"},
			Participant:    "coed",
			Teams:          []api.TeamResponse{team("t1", "Brown"), team("t2", "Yale")},
			Races:          []api.RaceResponse{{ID: "r1", Division: "A", Number: 1, Scored: true}, {ID: "r2", Division: "A", Number: 2}},
		},
		"/api/v1/regattas/reg-1/scores": api.ScoresResponse{
			RegattaID: "reg-1",
			Scoring:   "standard",
			Tables: []api.RankTable{{Title: "Division A", Ranks: []api.RankResponse{
				{Rank: 1, Team: team("t2", "Yale"), Races: []api.RaceScoreResponse{{Number: 1, Score: 1}}, Total: 1},
				{Rank: 2, Team: team("t1", "Brown"), Races: []api.RaceScoreResponse{{Number: 1, Score: 3, Modifiers: []string{"DSQ"}}}, Total: 3},
			}}},
		},
		"/api/v1/regattas/reg-2/scores": api.ScoresResponse{
			RegattaID: "reg-2",
			Scoring:   "team",
			Standings: []api.StandingResponse{{Rank: 1, Team: team("t1", "Brown"), Wins: 2, WinPercentage: 1}},
		},
		"/api/v1/regattas/reg-1/rotation": api.RotationResponse{
			RegattaID: "reg-1",
			Divisions: []api.RotationDivision{{
				Division: "A",
				Races:    []int{1, 2},
				Teams: []api.RotationRow{
					{Team: team("t1", "Brown"), Sails: []string{"4", "5"}},
					{Team: team("t2", "Yale"), Sails: []string{"6", ""}},
				},
			}},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"regatta not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, token, cmd string, args ...string) (string, error) {
	t.Helper()
	srv := stubAPI(t)
	var out bytes.Buffer
	err := run(context.Background(), &out, newClient(srv.URL+"/", token), cmd, args)
	return out.String(), err
}

func TestRegattas(t *testing.T) {
	out, err := runCmd(t, "test-token", "regattas")
	require.NoError(t, err)
	assert.Contains(t, out, "ID     NAME")
	assert.Contains(t, out, "Danmark Trophy")
	assert.Contains(t, out, "2026-04-11 to 2026-04-12")
	assert.Contains(t, out, "A,B")
	assert.Contains(t, out, "open")
}

func TestShow(t *testing.T) {
	out, err := runCmd(t, "test-token", "show", "reg-1")
	require.NoError(t, err)
	assert.Contains(t, out, "coed standard regatta")
	assert.Contains(t, out, "2 teams, 1 scored of 2 races")
	assert.Contains(t, out, "Yale")
}

func TestScores_Fleet(t *testing.T) {
	out, err := runCmd(t, "test-token", "scores", "reg-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Division A")
	assert.Contains(t, out, "1st")
	assert.Contains(t, out, "2nd")
	assert.Contains(t, out, "3/DSQ")
}

func TestScores_Team(t *testing.T) {
	out, err := runCmd(t, "test-token", "scores", "reg-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Standings")
	assert.Contains(t, out, "1.000")
}

func TestRotation(t *testing.T) {
	out, err := runCmd(t, "test-token", "rotation", "reg-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Division A")
	assert.Contains(t, out, "Brown 1")
	assert.Regexp(t, `Yale 1\s+6\s+-`, out)
}

func TestErrors(t *testing.T) {
	_, err := runCmd(t, "", "regattas")
	assert.ErrorContains(t, err, "TECHSCORE_TOKEN")

	_, err = runCmd(t, "wrong", "regattas")
	assert.ErrorContains(t, err, "invalid token")

	_, err = runCmd(t, "test-token", "scores", "missing")
	assert.ErrorContains(t, err, "regatta not found")

	_, err = runCmd(t, "test-token", "scores")
	assert.ErrorContains(t, err, "usage: techscore-admin scores <regatta-id>")

	_, err = runCmd(t, "test-token", "bogus")
	assert.ErrorContains(t, err, "unknown command: bogus")
}

// ABOUTME: Read-only JSON API over regattas, scores and rotations for scripts and the admin CLI
// ABOUTME: Every route sits behind bearer-token auth; scorers only see the regattas they score

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/techscore/techscore/internal/auth"
	"github.com/techscore/techscore/internal/regatta"
	"github.com/techscore/techscore/internal/store"
	"github.com/techscore/techscore/internal/teamrace"
)

// Store is the persistence the API reads from.
type Store interface {
	ListRegattas(ctx context.Context, f store.RegattaFilter) ([]*regatta.Regatta, error)
	LoadRegatta(ctx context.Context, id string) (*store.RegattaData, error)
	IsScorer(ctx context.Context, regattaID, userID string) (bool, error)
}

// RegattaSummary is one entry of GET /api/v1/regattas.
type RegattaSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Nick        string   `json:"nick"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Scoring     string   `json:"scoring"`
	Type        string   `json:"type"`
	Divisions   []string `json:"divisions"`
	FinalizedAt *string  `json:"finalized_at,omitempty"`
}

// TeamResponse is a team as seen by the API.
type TeamResponse struct {
	ID     string `json:"id"`
	School string `json:"school"`
	Name   string `json:"name"`
}

// RaceResponse is a race as seen by the API.
type RaceResponse struct {
	ID       string `json:"id"`
	Division string `json:"division"`
	Number   int    `json:"number"`
	Round    string `json:"round,omitempty"`
	TeamA    string `json:"team_a,omitempty"`
	TeamB    string `json:"team_b,omitempty"`
	Scored   bool   `json:"scored"`
}

// RegattaResponse is GET /api/v1/regattas/{id}.
type RegattaResponse struct {
	RegattaSummary
	Participant string         `json:"participant"`
	Venue       string         `json:"venue,omitempty"`
	Host        string         `json:"host,omitempty"`
	Teams       []TeamResponse `json:"teams"`
	Races       []RaceResponse `json:"races"`
}

// RaceScoreResponse is one cell of a results table.
type RaceScoreResponse struct {
	Number    int      `json:"number"`
	Score     int      `json:"score"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// RankResponse is one line of a results table.
type RankResponse struct {
	Rank        int                 `json:"rank"`
	Team        TeamResponse        `json:"team"`
	Division    string              `json:"division,omitempty"`
	Races       []RaceScoreResponse `json:"races"`
	Penalties   int                 `json:"penalties"`
	Total       int                 `json:"total"`
	Explanation string              `json:"explanation,omitempty"`
}

// RankTable is a titled results table.
type RankTable struct {
	Title string         `json:"title"`
	Ranks []RankResponse `json:"ranks"`
}

// StandingResponse is a team racing record.
type StandingResponse struct {
	Rank          int          `json:"rank"`
	Team          TeamResponse `json:"team"`
	Wins          int          `json:"wins"`
	Losses        int          `json:"losses"`
	Ties          int          `json:"ties"`
	WinPercentage float64      `json:"win_percentage"`
	Explanation   string       `json:"explanation,omitempty"`
}

// ScoresResponse is GET /api/v1/regattas/{id}/scores. Fleet regattas fill
// Tables, team regattas fill Standings.
type ScoresResponse struct {
	RegattaID string             `json:"regatta_id"`
	Scoring   string             `json:"scoring"`
	Tables    []RankTable        `json:"tables,omitempty"`
	Standings []StandingResponse `json:"standings,omitempty"`
}

// RotationRow lists one team's sails race by race.
type RotationRow struct {
	Team  TeamResponse `json:"team"`
	Sails []string     `json:"sails"`
}

// RotationDivision is the rotation of one division.
type RotationDivision struct {
	Division string        `json:"division"`
	Races    []int         `json:"races"`
	Teams    []RotationRow `json:"teams"`
}

// RotationResponse is GET /api/v1/regattas/{id}/rotation.
type RotationResponse struct {
	RegattaID string             `json:"regatta_id"`
	Divisions []RotationDivision `json:"divisions"`
}

// Handler serves the JSON API.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// New creates the API handler.
func New(st Store) *Handler {
	return &Handler{
		store:  st,
		logger: slog.Default().With("component", "api"),
	}
}

// RegisterRoutes registers the API on mux, wrapping every route in
// authMiddleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /api/v1/regattas", authMiddleware(http.HandlerFunc(h.handleListRegattas)))
	mux.Handle("GET /api/v1/regattas/{id}", authMiddleware(http.HandlerFunc(h.handleGetRegatta)))
	mux.Handle("GET /api/v1/regattas/{id}/scores", authMiddleware(http.HandlerFunc(h.handleScores)))
	mux.Handle("GET /api/v1/regattas/{id}/rotation", authMiddleware(http.HandlerFunc(h.handleRotation)))
}

func (h *Handler) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handler) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *Handler) handleListRegattas(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		h.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	filter := store.RegattaFilter{}
	if !authCtx.IsAdmin() {
		filter.ScorerID = authCtx.UserID
	}
	regs, err := h.store.ListRegattas(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list regattas", "error", err)
		h.sendJSONError(w, http.StatusInternalServerError, "failed to list regattas")
		return
	}
	out := make([]RegattaSummary, 0, len(regs))
	for _, reg := range regs {
		out = append(out, summarize(reg))
	}
	h.sendJSON(w, out)
}

// loadRegatta loads the regatta named in the path and checks access. It
// writes the error response itself and returns nil on failure.
func (h *Handler) loadRegatta(w http.ResponseWriter, r *http.Request) *store.RegattaData {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		h.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return nil
	}
	id := r.PathValue("id")

	d, err := h.store.LoadRegatta(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.sendJSONError(w, http.StatusNotFound, "regatta not found")
		return nil
	}
	if err != nil {
		h.logger.Error("failed to load regatta", "regatta", id, "error", err)
		h.sendJSONError(w, http.StatusInternalServerError, "failed to load regatta")
		return nil
	}

	if !authCtx.IsAdmin() {
		ok, err := h.store.IsScorer(r.Context(), id, authCtx.UserID)
		if err != nil {
			h.logger.Error("failed to check scorer", "regatta", id, "error", err)
			h.sendJSONError(w, http.StatusInternalServerError, "failed to load regatta")
			return nil
		}
		if !ok {
			h.sendJSONError(w, http.StatusForbidden, "you do not score this regatta")
			return nil
		}
	}
	return d
}

func (h *Handler) handleGetRegatta(w http.ResponseWriter, r *http.Request) {
	d := h.loadRegatta(w, r)
	if d == nil {
		return
	}
	raced := d.Raced()
	resp := RegattaResponse{
		RegattaSummary: summarize(d.Regatta),
		Participant:    string(d.Regatta.Participant),
		Venue:          d.Regatta.Venue,
		Host:           d.Regatta.Host,
		Teams:          make([]TeamResponse, 0, len(d.Teams)),
		Races:          make([]RaceResponse, 0, len(d.Races)),
	}
	for _, t := range d.Teams {
		resp.Teams = append(resp.Teams, teamResponse(t))
	}
	for _, race := range d.Races {
		resp.Races = append(resp.Races, RaceResponse{
			ID:       race.ID,
			Division: string(race.Division),
			Number:   race.Number,
			Round:    race.Round,
			TeamA:    race.TeamA,
			TeamB:    race.TeamB,
			Scored:   raced[race.ID],
		})
	}
	h.sendJSON(w, resp)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	d := h.loadRegatta(w, r)
	if d == nil {
		return
	}
	resp := ScoresResponse{RegattaID: d.Regatta.ID, Scoring: string(d.Regatta.Scoring)}

	if d.Regatta.Scoring == regatta.ScoringTeam {
		outcomes, err := teamrace.Results(d.Races, d.Finishes)
		if err != nil {
			h.logger.Error("failed to decide team races", "regatta", d.Regatta.ID, "error", err)
			h.sendJSONError(w, http.StatusInternalServerError, "failed to score regatta")
			return
		}
		ids := make([]string, len(d.Teams))
		for i, t := range d.Teams {
			ids[i] = t.ID
		}
		for _, s := range teamrace.Standings(ids, outcomes) {
			t, _ := d.Team(s.TeamID)
			resp.Standings = append(resp.Standings, StandingResponse{
				Rank:          s.Rank,
				Team:          teamResponse(t),
				Wins:          s.Wins,
				Losses:        s.Losses,
				Ties:          s.Ties,
				WinPercentage: s.WinPercentage(),
				Explanation:   s.Explanation,
			})
		}
		h.sendJSON(w, resp)
		return
	}

	res := d.Results()
	if d.Regatta.Scoring == regatta.ScoringCombined {
		resp.Tables = append(resp.Tables, rankTable("Combined", regatta.RankCombined(res)))
	} else {
		if len(d.Regatta.Divisions) > 1 {
			resp.Tables = append(resp.Tables, rankTable("Overall", regatta.RankOverall(res)))
		}
		for _, div := range d.Regatta.Divisions {
			resp.Tables = append(resp.Tables, rankTable("Division "+string(div), regatta.RankDivision(res, div)))
		}
	}
	h.sendJSON(w, resp)
}

func (h *Handler) handleRotation(w http.ResponseWriter, r *http.Request) {
	d := h.loadRegatta(w, r)
	if d == nil {
		return
	}
	table := d.RotationTable()
	resp := RotationResponse{RegattaID: d.Regatta.ID, Divisions: []RotationDivision{}}
	for _, div := range d.Regatta.Divisions {
		var races []regatta.Race
		for _, race := range d.RacesIn(div) {
			if table.HasRace(race.ID) {
				races = append(races, race)
			}
		}
		if len(races) == 0 {
			continue
		}
		rd := RotationDivision{Division: string(div)}
		for _, race := range races {
			rd.Races = append(rd.Races, race.Number)
		}
		for _, t := range d.Teams {
			row := RotationRow{Team: teamResponse(t)}
			for _, race := range races {
				row.Sails = append(row.Sails, table.Sail(race.ID, t.ID))
			}
			rd.Teams = append(rd.Teams, row)
		}
		resp.Divisions = append(resp.Divisions, rd)
	}
	h.sendJSON(w, resp)
}

func summarize(reg *regatta.Regatta) RegattaSummary {
	s := RegattaSummary{
		ID:        reg.ID,
		Name:      reg.Name,
		Nick:      reg.Nick,
		StartDate: reg.StartDate.Format(time.DateOnly),
		EndDate:   reg.EndDate().Format(time.DateOnly),
		Scoring:   string(reg.Scoring),
		Type:      reg.Type,
		Divisions: make([]string, len(reg.Divisions)),
	}
	for i, d := range reg.Divisions {
		s.Divisions[i] = string(d)
	}
	if reg.FinalizedAt != nil {
		at := reg.FinalizedAt.UTC().Format(time.RFC3339)
		s.FinalizedAt = &at
	}
	return s
}

func teamResponse(t regatta.Team) TeamResponse {
	return TeamResponse{ID: t.ID, School: t.SchoolName, Name: t.Name}
}

func rankTable(title string, ranks []*regatta.Rank) RankTable {
	out := RankTable{Title: title, Ranks: make([]RankResponse, 0, len(ranks))}
	for _, rk := range ranks {
		row := RankResponse{
			Rank:        rk.Rank,
			Team:        teamResponse(rk.Team),
			Division:    string(rk.Division),
			Penalties:   rk.Penalties,
			Total:       rk.Total,
			Explanation: rk.Explanation,
			Races:       make([]RaceScoreResponse, 0, len(rk.Races)),
		}
		for _, rs := range rk.Races {
			row.Races = append(row.Races, RaceScoreResponse{Number: rs.Number, Score: rs.Score, Modifiers: rs.Modifiers})
		}
		out.Ranks = append(out.Ranks, row)
	}
	return out
}

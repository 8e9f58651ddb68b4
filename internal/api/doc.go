// Package api serves a read-only JSON view of regattas for scripts and
// the techscore-admin CLI.
//
// Routes, all behind bearer-token auth:
//
//	GET /api/v1/regattas                  regattas the caller scores (all, for admins)
//	GET /api/v1/regattas/{id}             details, teams and races
//	GET /api/v1/regattas/{id}/scores      results tables, or standings for team racing
//	GET /api/v1/regattas/{id}/rotation    sails by division, team and race
//
// Errors are JSON objects with a single "error" field.
package api

// Package server orchestrates the techscore server components.
//
// # Overview
//
// New opens the SQLite store named in config and builds everything that
// hangs off it:
//
//   - the scoring UI (package webadmin) on /, /login, /score/... and /view/...
//   - the JSON API (package api) on /api/v1/..., only when auth.jwt_secret
//     is set, since every API route needs a bearer token
//   - the update manager (package updates), which the UI queues into
//   - the health endpoints
//
// # Lifecycle
//
// Run listens on server.http_addr and blocks. The HTTP server, the update
// worker and the expired-session sweeper run in one errgroup; the first to
// fail cancels the others. Canceling the context shuts the HTTP server down
// within server.shutdown_timeout. The store is closed when Run returns.
//
// With updates.enabled false the worker does not run and requests stay in
// the update_requests table until a server with the worker enabled drains
// them.
//
// # Health
//
//   - GET /health - liveness, always "OK"
//   - GET /health/ready - 200 when the database answers a ping, 503 otherwise
package server

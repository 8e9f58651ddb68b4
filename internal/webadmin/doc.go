// Package webadmin provides the browser interface scorers use to run a regatta.
//
// # Overview
//
// Every screen is either a Pane, which edits one aspect of a regatta, or a
// Dialog, which shows a read-only report:
//
//   - Panes: settings, daily summaries, scorers, teams, races, rotations,
//     finishes, penalties, RP and team-racing rounds
//   - Dialogs: scores, rotation, RP roster and change history
//
// # Routing
//
// Routes are registered on a Go 1.22 ServeMux:
//
//	GET  /score/{regatta}          first active pane
//	GET  /score/{regatta}/{pane}   render a pane
//	POST /score/{regatta}/{pane}   process a pane form
//	GET  /view/{regatta}/{dialog}  render a dialog
//
// The Registry decides which panes exist for a scoring type (standard,
// combined or team). A pane that is unknown, or not yet active because the
// regatta lacks teams or races, redirects to the first active pane with a
// warning.
//
// # Changes
//
// A pane's Process method validates the form and writes to the store. It
// records a change for each edit; after Process returns without error the
// dispatcher:
//
//  1. Queues a session message for the next page load
//  2. Appends an audit log entry
//  3. Queues an update request for the public site
//  4. Redirects (POST/redirect/GET)
//
// Validation errors (regatta.ValidationError) become error messages and
// redirect back to the pane. Finalized regattas only accept changes to
// settings, summaries, scorers and RP.
//
// # Authentication
//
// Accounts sign in with a password (bcrypt). New accounts are created from
// single-use invite links issued by administrators. Sessions are stored
// server side and referenced by the techscore_session cookie.
//
// # CSRF Protection
//
// All form submissions carry the double-submit token:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
//
// # Templates
//
// Templates are embedded with //go:embed. Pages extend templates/base.html;
// pane and dialog bodies are defined as "pane-NAME" and "dialog-NAME" in
// templates/panes and templates/dialogs.
//
// # Usage
//
//	admin := webadmin.New(store, updateManager, webadmin.Config{BaseURL: url})
//	admin.RegisterRoutes(mux)
package webadmin

// ABOUTME: Session flash messages queued by handlers and shown on the next page
// ABOUTME: Messages live in the store keyed by session ID and are read exactly once

package webadmin

import (
	"net/http"

	"github.com/techscore/techscore/internal/store"
)

// announce queues a message for the current session. Requests without a
// session drop it.
func (a *Admin) announce(r *http.Request, typ store.MessageType, text string) {
	sessionID := getSessionID(r)
	if sessionID == "" {
		return
	}
	err := a.store.AddSessionMessage(r.Context(), sessionID, store.SessionMessage{Type: typ, Text: text})
	if err != nil {
		a.logger.Error("failed to queue session message", "error", err)
	}
}

// takeMessages returns and clears the session's queued messages.
func (a *Admin) takeMessages(r *http.Request) []store.SessionMessage {
	sessionID := getSessionID(r)
	if sessionID == "" {
		return nil
	}
	msgs, err := a.store.TakeSessionMessages(r.Context(), sessionID)
	if err != nil {
		a.logger.Error("failed to read session messages", "error", err)
		return nil
	}
	return msgs
}

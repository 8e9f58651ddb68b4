// ABOUTME: Bearer-token middleware guarding the JSON API
// ABOUTME: Verifies the JWT, loads its account and stores the identity on the request

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/techscore/techscore/internal/store"
)

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errNotBearer     = errors.New("invalid authorization header format")
	errEmptyBearer   = errors.New("empty token")
	errUnknownHolder = errors.New("user not found")
)

// UserStore looks up the account a token was issued to.
type UserStore interface {
	GetAdminUser(ctx context.Context, id string) (*store.AdminUser, error)
}

func bearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(header, " ")
	switch {
	case header == "":
		return "", errNoAuthHeader
	case !found || scheme != "Bearer":
		return "", errNotBearer
	case token == "":
		return "", errEmptyBearer
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// HTTPAuthMiddleware rejects requests without a valid bearer token with 401.
// Tokens whose subject no longer exists are rejected too.
func HTTPAuthMiddleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, err)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "path", r.URL.Path)
				unauthorized(w, ErrInvalidToken)
				return
			}

			user, err := users.GetAdminUser(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, store.ErrAdminUserNotFound) {
					logger.Error("loading token holder", "error", err, "user_id", userID)
				}
				unauthorized(w, errUnknownHolder)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), newAuthContext(user))))
		})
	}
}

// ABOUTME: Request identity carried through handlers via context.Context
// ABOUTME: Set by the bearer-token middleware and read by the JSON API

package auth

import (
	"context"

	"github.com/techscore/techscore/internal/store"
)

// AuthContext is the account a request was authenticated as.
type AuthContext struct {
	UserID   string
	Username string
	Role     store.Role
}

func newAuthContext(u *store.AdminUser) *AuthContext {
	return &AuthContext{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// IsAdmin reports whether the account may see every regatta.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Role == store.RoleAdmin
}

type ctxKey struct{}

// WithAuth attaches a to ctx.
func WithAuth(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the identity stored by WithAuth, or nil.
func FromContext(ctx context.Context) *AuthContext {
	a, _ := ctx.Value(ctxKey{}).(*AuthContext)
	return a
}

// Package auth carries the authenticated principal resolved per request.
package auth

import (
	"context"
	"time"
)

// Principal is the result of a successful token introspection. It lives for
// the duration of one request and is never persisted.
type Principal struct {
	Subject   string
	ClientID  string
	Username  string
	Email     string
	OrgID     string
	Scopes    []string
	ExpiresAt time.Time

	// Synthetic marks principals produced by the development-mode
	// authentication bypass. Never true for introspected tokens.
	Synthetic bool
}

// HasScope reports whether the principal was granted the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, granted := range p.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

type contextKey struct{}

var principalKey contextKey

// WithPrincipal attaches a principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Package requestctx carries authenticated request identity through context.
package requestctx

import "context"

// Role identifies the access level of an authenticated principal.
type Role string

const (
	// RoleAdmin grants access to every post and to user administration.
	RoleAdmin Role = "admin"
	// RoleEditor grants access to the caller's own posts.
	RoleEditor Role = "editor"
)

// Principal is the authenticated caller identity verified upstream.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

// IsAdmin reports whether the principal holds the elevated role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// principalContextKey is the context key for authenticated caller identity.
type principalContextKey struct{}

// WithPrincipal stores a caller identity in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the caller identity stored in context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

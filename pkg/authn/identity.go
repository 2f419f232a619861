// Package authn verifies inbound credentials against the token codec of one
// kind and turns them into an Identity. It is embedded by every service that
// trusts tokens minted by the auth service.
package authn

import (
	"context"
	"slices"
	"time"
)

// Identity is what a request is allowed to know about its caller.
type Identity struct {
	Subject   string
	Username  string
	Roles     []string
	SessionID string
	ExpiresAt time.Time
}

// HasRole reports whether role was granted.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// HasAnyRole reports whether at least one of roles was granted.
func (i Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

package httpx

import (
	"context"

	"github.com/retrade/authmesh/pkg/authn"
)

// UserIDFromContext returns the subject of the authenticated caller.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := authn.IdentityFromContext(ctx); ok {
		return id.Subject
	}
	return ""
}

func rolesFromCtx(ctx context.Context) []string {
	if id, ok := authn.IdentityFromContext(ctx); ok {
		return id.Roles
	}
	return nil
}

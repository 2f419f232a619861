package httpx

import (
	"net/http"
	"slices"
)

// RequireAnyRole the caller must have at least one of the provided roles.
// It must run after AuthnMiddleware.
func RequireAnyRole(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := rolesFromCtx(r.Context())

			for _, role := range required {
				if slices.Contains(have, role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			ErrForbidden.WriteError(w)
		})
	}
}

// RequireAllRoles the caller must have every role listed.
func RequireAllRoles(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := rolesFromCtx(r.Context())

			for _, role := range required {
				if !slices.Contains(have, role) {
					ErrForbidden.WriteError(w)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

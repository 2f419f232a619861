package httpx

import (
	"net/http"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/slogx"
)

// AuthnMiddleware verifies the caller with v and injects the Identity into
// the request context. The bearer header is tried first, then the cookie of
// the verifier's kind when cookies is non-nil. Every failure gets the same
// 401; a cookie that failed verification is cleared.
func AuthnMiddleware(v *authn.Verifier, cookies *CookieConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			src := authn.HeaderSource(r.Header)
			if cookies != nil {
				src = authn.FirstOf(src, authn.CookieSource(r, cookies.Names))
			}

			id, err := v.Authenticate(r.Context(), src)
			if err != nil {
				if cookies != nil && cookies.Present(r, v.Kind()) {
					ClearTokenCookie(w, *cookies, v.Kind())
				}
				WriteUnauthorized(w)
				return
			}

			ctx := slogx.With(r.Context(), "account_id", id.Subject, "sid", id.SessionID)
			next.ServeHTTP(w, r.WithContext(authn.WithIdentity(ctx, id)))
		})
	}
}

// WriteUnauthorized is the single reply for every token failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

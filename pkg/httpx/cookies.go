package httpx

import (
	"net/http"
	"time"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/jwtx"
)

// CookieConfig controls the per-kind token cookies handed to browsers.
type CookieConfig struct {
	Names authn.CookieNames

	// Domain is left unset in development so cookies bind to the host.
	Domain string

	// Secure marks cookies HTTPS-only. SameSite=None requires it in
	// browsers, so only turn it off for local development.
	Secure bool
}

func (c CookieConfig) cookie(kind jwtx.Kind, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if !c.Secure {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     c.Names.For(kind),
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}

// Present reports whether r carries the cookie of kind.
func (c CookieConfig) Present(r *http.Request, kind jwtx.Kind) bool {
	_, err := r.Cookie(c.Names.For(kind))
	return err == nil
}

// SetTokenCookie stores tok in the cookie of its kind, expiring with it.
func SetTokenCookie(w http.ResponseWriter, cfg CookieConfig, tok jwtx.Token) {
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, cfg.cookie(tok.Kind, tok.Raw, maxAge))
}

// ClearTokenCookie expires the cookie of kind.
func ClearTokenCookie(w http.ResponseWriter, cfg CookieConfig, kind jwtx.Kind) {
	http.SetCookie(w, cfg.cookie(kind, "", -1))
}

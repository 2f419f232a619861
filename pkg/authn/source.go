package authn

import (
	"net/http"
	"strings"

	"github.com/go-stomp/stomp/v3/frame"
	"google.golang.org/grpc/metadata"

	"github.com/retrade/authmesh/pkg/jwtx"
)

const bearerPrefix = "bearer "

// Source yields the raw credential a request presents for kind. Sources
// that carry a single credential ignore kind.
type Source interface {
	Credential(kind jwtx.Kind) (string, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(kind jwtx.Kind) (string, bool)

func (f SourceFunc) Credential(kind jwtx.Kind) (string, bool) { return f(kind) }

// BearerToken extracts the token of an "Authorization: Bearer" value. The
// scheme is matched case-insensitively.
func BearerToken(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	return tok, tok != ""
}

// HeaderSource reads the Authorization header.
func HeaderSource(h http.Header) Source {
	return SourceFunc(func(jwtx.Kind) (string, bool) {
		return BearerToken(h.Get("Authorization"))
	})
}

// CookieNames maps each token kind to the cookie carrying it.
type CookieNames map[jwtx.Kind]string

// DefaultCookieNames are the cookie names browsers receive on login.
var DefaultCookieNames = CookieNames{
	jwtx.KindAccess:           "ACCESS_TOKEN",
	jwtx.KindRefresh:          "REFRESH_TOKEN",
	jwtx.KindTwoFactorPending: "TWO_FA_TOKEN",
}

// For returns the cookie name of kind, falling back to DefaultCookieNames.
func (n CookieNames) For(kind jwtx.Kind) string {
	if name, ok := n[kind]; ok {
		return name
	}
	return DefaultCookieNames[kind]
}

// CookieSource reads the cookie named after the requested kind.
func CookieSource(r *http.Request, names CookieNames) Source {
	return SourceFunc(func(kind jwtx.Kind) (string, bool) {
		c, err := r.Cookie(names.For(kind))
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	})
}

// MetadataSource reads the gRPC "authorization" metadata entry.
func MetadataSource(md metadata.MD) Source {
	return SourceFunc(func(jwtx.Kind) (string, bool) {
		vals := md.Get("authorization")
		if len(vals) == 0 {
			return "", false
		}
		return BearerToken(vals[0])
	})
}

// StompSource reads the Authorization header of a STOMP CONNECT frame and
// falls back to passcode, which is where most STOMP clients let users put
// a secret.
func StompSource(f *frame.Frame) Source {
	return SourceFunc(func(jwtx.Kind) (string, bool) {
		if f == nil || f.Header == nil {
			return "", false
		}
		if v, ok := f.Header.Contains("Authorization"); ok {
			if tok, ok := BearerToken(v); ok {
				return tok, true
			}
		}
		if v, ok := f.Header.Contains(frame.Passcode); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		return "", false
	})
}

// FirstOf returns the first credential any of srcs presents.
func FirstOf(srcs ...Source) Source {
	return SourceFunc(func(kind jwtx.Kind) (string, bool) {
		for _, s := range srcs {
			if tok, ok := s.Credential(kind); ok {
				return tok, true
			}
		}
		return "", false
	})
}

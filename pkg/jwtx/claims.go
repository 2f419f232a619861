package jwtx

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity facts bound into every token kind. The same shape
// is shared by every service so the copies cannot drift apart.
type Claims struct {
	jwt.RegisteredClaims

	/* Cross-service custom fields */

	// Username at the time of issuance. Services that cache it locally keep
	// their copy fresh through identity sync, not through this claim.
	Username string `json:"username,omitempty"`

	// Roles "SELLER", "ADMIN". Set semantics, order carries no meaning.
	Roles []string `json:"roles,omitempty"`

	// Kind is set at issuance and never changes after signing.
	Kind Kind `json:"kind"`

	// Session ID shared by every token of one login event. It is the
	// revocation key.
	SID string `json:"sid,omitempty"`
}

// NewClaims builds claims for subject. Registered time fields and the kind
// are filled in by Codec.Encode.
func NewClaims(subject, username string, roles []string, sid string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
		Username: username,
		Roles:    slices.Clone(roles),
		SID:      sid,
	}
}

// HasRole reports whether role was granted.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// hasAudience reports whether any of want appears in aud.
func (c *Claims) hasAudience(want []string) bool {
	return slices.ContainsFunc(want, func(a string) bool {
		return slices.Contains(c.Audience, a)
	})
}

package jwtx

import (
	"fmt"
	"time"
)

// Kind is the purpose a token was issued for. It is fixed at signing time and
// checked at every site that accepts a token.
type Kind string

const (
	KindAccess           Kind = "ACCESS"
	KindRefresh          Kind = "REFRESH"
	KindTwoFactorPending Kind = "TWO_FACTOR_PENDING"
)

// Default lifetimes per kind. Services may override them through config.
const (
	// DefaultAccessTokenTTL is short-lived, typical range is 15m to 1h.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is longer-lived, typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultTwoFactorTTL only has to outlive a user typing in a TOTP code.
	DefaultTwoFactorTTL = 5 * time.Minute
)

// Kinds lists every kind known to this package in issuance order.
func Kinds() []Kind {
	return []Kind{KindAccess, KindRefresh, KindTwoFactorPending}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindTwoFactorPending:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("jwtx: unknown token kind %q", s)
	}
	return k, nil
}

// Package revocation is the session denylist consulted by token issuers and
// verifiers. Entries are keyed by session id and carry an expiry after which
// they read as not revoked, so the store never grows past the longest token
// lifetime once expired rows are purged.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptySessionID is returned when revoking without a session id.
var ErrEmptySessionID = errors.New("revocation: session id is required")

// Store persists revoked session ids.
type Store interface {
	// Revoke denylists sessionID until the given time. Revoking an already
	// revoked session extends the entry when until is later.
	Revoke(ctx context.Context, sessionID string, until time.Time) error

	// IsRevoked reports whether sessionID has an unexpired entry.
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Purger is implemented by stores that can drop expired entries.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Policy decides what a check does when the store cannot be reached.
type Policy int

const (
	// FailClosed rejects the token when the store is unavailable.
	FailClosed Policy = iota
	// FailOpen accepts the token, logs a warning and counts it.
	FailOpen
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	default:
		return "fail_closed"
	}
}

// ParsePolicy accepts "fail_closed", "fail_open" and their dashed or
// shortened forms. An empty string is FailClosed.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "fail_closed", "closed":
		return FailClosed, nil
	case "fail_open", "open":
		return FailOpen, nil
	default:
		return FailClosed, fmt.Errorf("revocation: unknown policy %q", s)
	}
}

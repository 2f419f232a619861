// Package identsync reconciles usernames that dependent services cache
// locally against the service that owns the accounts.
//
// A dependent service keeps an AccountIdentity per account it has seen. The
// Job asks the identity of record about each of them and rewrites a cached
// username only when the owner reports a valid account whose name changed.
package identsync

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound is returned by Cache implementations when the account
// has no cached row.
var ErrAccountNotFound = errors.New("identsync: account not cached")

// AccountIdentity is the locally cached view of a remote account. It never
// carries roles; those always come from a verified token.
type AccountIdentity struct {
	AccountID string
	Username  string
	UpdatedAt time.Time
}

// Cache is the local identity table of a dependent service.
type Cache interface {
	// List returns every cached identity.
	List(ctx context.Context) ([]AccountIdentity, error)

	// UpdateUsername rewrites the username of an existing row.
	UpdateUsername(ctx context.Context, accountID, username string, at time.Time) error

	// Upsert inserts the identity on first sight and returns the stored row.
	// An existing row is returned unchanged.
	Upsert(ctx context.Context, id AccountIdentity) (AccountIdentity, error)
}

// Lookup is the identity of record's answer about one account.
type Lookup struct {
	// Valid is false when the account no longer exists.
	Valid bool

	// Username is the current username when Valid.
	Username string

	// Changed reports Username differs from the known username sent.
	Changed bool
}

// IdentityOfRecord answers lookups for accounts it owns.
type IdentityOfRecord interface {
	LookupAccount(ctx context.Context, accountID, knownUsername string) (Lookup, error)
}

// IdentityOfRecordFunc adapts a function to IdentityOfRecord.
type IdentityOfRecordFunc func(ctx context.Context, accountID, knownUsername string) (Lookup, error)

func (f IdentityOfRecordFunc) LookupAccount(ctx context.Context, accountID, knownUsername string) (Lookup, error) {
	return f(ctx, accountID, knownUsername)
}

// Report summarises one run of the Job.
type Report struct {
	Total     int
	Updated   int
	Unchanged int
	Invalid   int
	Failed    int
}

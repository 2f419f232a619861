package store

import (
	"context"
	"errors"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/pkg/jwtx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and so
// that transactions are never started inside transactions.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	RevokedSessions() RevokedSessions
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByUsername is used during login.
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by app via ULID).
	// A taken username yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	// IsEmpty reports whether no account exists yet.
	IsEmpty(ctx context.Context) (bool, error)

	// UpdateUsername renames the account and bumps updated_at.
	UpdateUsername(ctx context.Context, accountID, username string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// UpdateMFASecret stores a pending TOTP secret.
	UpdateMFASecret(ctx context.Context, accountID, secret string) error

	// EnableMFA marks TOTP as enabled (sets mfa_enabled timestamp).
	EnableMFA(ctx context.Context, accountID string) error

	// DisableMFA clears mfa_enabled and mfa_secret.
	DisableMFA(ctx context.Context, accountID string) error
}

type Sessions interface {
	// CreateSession records a successful login.
	CreateSession(ctx context.Context, s domain.LoginSession) error

	GetSession(ctx context.Context, id string) (domain.LoginSession, error)

	// ListSessionsByAccount returns the account's sessions newest first.
	ListSessionsByAccount(ctx context.Context, accountID string) ([]domain.LoginSession, error)

	// DeleteSessionsBefore removes sessions created before the cutoff.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RevokedSessions is the SQLite denylist. It satisfies revocation.Store and
// revocation.Purger.
type RevokedSessions interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListSigningKeys returns the active keys of scope plus the retired
	// ones still inside their grace period, ordered newest first.
	ListSigningKeys(ctx context.Context, scope jwtx.Kind) ([]domain.SigningKey, error)

	// RetireSigningKey marks a key as retired and moves its expiry to
	// expiresAt. Retired keys verify but no longer sign.
	RetireSigningKey(ctx context.Context, kid string, expiresAt time.Time) error

	// DeleteExpiredSigningKeys removes retired keys past their expires_at.
	DeleteExpiredSigningKeys(ctx context.Context) (int64, error)
}

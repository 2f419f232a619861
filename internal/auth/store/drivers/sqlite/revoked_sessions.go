package sqlite

import (
	"context"
	"time"

	"github.com/retrade/authmesh/pkg/revocation"
)

type revokedSessionsRepo struct {
	db  DBTX
	now func() time.Time
}

// Revoke keeps the later expiry when the session is already denylisted.
func (r *revokedSessionsRepo) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return revocation.ErrEmptySessionID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (session_id, revoked_at, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`,
		sessionID, toMillis(r.now()), toMillis(until),
	)
	return err
}

func (r *revokedSessionsRepo) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE session_id = ? AND expires_at > ?)`,
		sessionID, toMillis(r.now()),
	).Scan(&revoked)
	return revoked, err
}

func (r *revokedSessionsRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

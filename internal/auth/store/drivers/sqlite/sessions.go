package sqlite

import (
	"context"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
)

type sessionsRepo struct {
	db DBTX
}

const sessionColumns = `id, account_id, device_fingerprint, device_name, ip_address, location, user_agent, created_at`

func scanSession(row interface{ Scan(...any) error }) (domain.LoginSession, error) {
	var (
		s       domain.LoginSession
		created int64
	)
	err := row.Scan(&s.ID, &s.AccountID, &s.Fingerprint, &s.Name,
		&s.IPAddress, &s.Location, &s.UserAgent, &created)
	if err != nil {
		return domain.LoginSession{}, err
	}
	s.CreatedAt = fromMillis(created)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.LoginSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, s.Fingerprint, s.Name,
		s.IPAddress, s.Location, s.UserAgent, toMillis(s.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.LoginSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM login_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return domain.LoginSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListSessionsByAccount(ctx context.Context, accountID string) ([]domain.LoginSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM login_sessions WHERE account_id = ? ORDER BY created_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_sessions WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
)

type accountsRepo struct {
	db  DBTX
	now func() time.Time
}

const accountColumns = `id, username, password_hash, roles, mfa_enabled, mfa_secret, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a          domain.Account
		roles      string
		mfaEnabled sql.NullInt64
		mfaSecret  sql.NullString
		created    int64
		updated    int64
	)
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &roles, &mfaEnabled, &mfaSecret, &created, &updated); err != nil {
		return domain.Account{}, err
	}
	a.Roles = splitAndFilter(roles)
	a.MFAEnabled = mapNullTimePtr(mfaEnabled)
	a.MFASecret = mapNullStringPtr(mfaSecret)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists)
	return !exists, err
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, roles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, strings.Join(a.Roles, " "),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdateUsername(ctx context.Context, accountID, username string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET username = ?, updated_at = ? WHERE id = ?`,
		username, toMillis(r.now()), accountID,
	)
	return requireRow(res, mapConstraint(err))
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, toMillis(r.now()), accountID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) UpdateMFASecret(ctx context.Context, accountID, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		secret, toMillis(r.now()), accountID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) EnableMFA(ctx context.Context, accountID string) error {
	now := toMillis(r.now())
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_enabled = ?, updated_at = ? WHERE id = ? AND mfa_secret IS NOT NULL`,
		now, now, accountID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) DisableMFA(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_enabled = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		toMillis(r.now()), accountID,
	)
	return requireRow(res, err)
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/pkg/jwtx"
)

type signingKeysRepo struct {
	db  DBTX
	now func() time.Time
}

const signingKeyColumns = `id, kid, scope, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

func scanSigningKey(row interface{ Scan(...any) error }) (domain.SigningKey, error) {
	var (
		k       domain.SigningKey
		scope   string
		created int64
		retired sql.NullInt64
		expires int64
	)
	err := row.Scan(&k.ID, &k.Kid, &scope, &k.Algorithm, &k.PrivateKeyEncrypted, &created, &retired, &expires)
	if err != nil {
		return domain.SigningKey{}, err
	}
	k.Scope = jwtx.Kind(scope)
	k.CreatedAt = fromMillis(created)
	k.RetiredAt = mapNullTimePtr(retired)
	k.ExpiresAt = fromMillis(expires)
	return k, nil
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, string(key.Scope), key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(key.CreatedAt), mapOptionalTime(key.RetiredAt), toMillis(key.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	k, err := scanSigningKey(row)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	return k, nil
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, scope jwtx.Kind) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE scope = ? AND (retired_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, id DESC`,
		string(scope), toMillis(r.now()),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE signing_keys SET retired_at = ?, expires_at = ? WHERE kid = ? AND retired_at IS NULL`,
		toMillis(r.now()), toMillis(expiresAt), kid,
	)
	return requireRow(res, err)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM signing_keys WHERE retired_at IS NOT NULL AND expires_at <= ?`, toMillis(r.now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

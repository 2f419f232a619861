// Package sqlite is the notifier's local identity cache. It implements
// identsync.Cache so the sync job can keep usernames current.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "modernc.org/sqlite"

	"github.com/retrade/authmesh/internal/notifier/store/sqlite/migrations"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/migratex"
)

var _ identsync.Cache = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ApplyMigrations applies the embedded schema.
func (s *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}
	_, err = migratex.Up(migrations.Migrations, "sqlite", driver)
	return err
}

func (s *Store) List(ctx context.Context) ([]identsync.AccountIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, username, updated_at
		FROM account_identities
		ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identsync.AccountIdentity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Get returns the cached identity or identsync.ErrAccountNotFound.
func (s *Store) Get(ctx context.Context, accountID string) (identsync.AccountIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, username, updated_at
		FROM account_identities
		WHERE account_id = ?`, accountID)

	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return identsync.AccountIdentity{}, identsync.ErrAccountNotFound
	}
	return id, err
}

func (s *Store) UpdateUsername(ctx context.Context, accountID, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE account_identities
		SET username = ?, updated_at = ?
		WHERE account_id = ?`, username, at.UnixMilli(), accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return identsync.ErrAccountNotFound
	}
	return nil
}

// Upsert inserts id on first sight. An existing row wins, so a stale token
// never rolls back a username the sync job already corrected.
func (s *Store) Upsert(ctx context.Context, id identsync.AccountIdentity) (identsync.AccountIdentity, error) {
	if id.AccountID == "" {
		return identsync.AccountIdentity{}, errors.New("sqlite: account id is required")
	}
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_identities (account_id, username, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (account_id) DO NOTHING`,
		id.AccountID, id.Username, id.UpdatedAt.UnixMilli())
	if err != nil {
		return identsync.AccountIdentity{}, err
	}
	return s.Get(ctx, id.AccountID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (identsync.AccountIdentity, error) {
	var (
		id        identsync.AccountIdentity
		updatedAt int64
	)
	if err := row.Scan(&id.AccountID, &id.Username, &updatedAt); err != nil {
		return identsync.AccountIdentity{}, err
	}
	id.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return id, nil
}

// Package postgres is a revocation.Store shared by every service through a
// single PostgreSQL database.
package postgres

import (
	"context"
	"fmt"
	"time"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/retrade/authmesh/pkg/migratex"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/revocation/postgres/migrations"
)

type Config struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	QueryTimeout      time.Duration
}

type Store struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

var (
	_ revocation.Store  = (*Store)(nil)
	_ revocation.Purger = (*Store)(nil)
)

// New connects, pings and returns a Store. Call ApplyMigrations before use
// unless the schema is managed elsewhere.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(hctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Store{Pool: pool, QueryTimeout: cfg.QueryTimeout}, nil
}

func (s *Store) Close() { s.Pool.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// ApplyMigrations creates the denylist table when it does not exist yet.
func (s *Store) ApplyMigrations() error {
	db := stdlib.OpenDBFromPool(s.Pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return err
	}
	_, err = migratex.Up(migrations.Migrations, "pgx5", driver)
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.QueryTimeout)
}

const revokeSQL = `
INSERT INTO revoked_sessions (session_id, expires_at)
VALUES ($1, $2)
ON CONFLICT (session_id) DO UPDATE
SET expires_at = GREATEST(revoked_sessions.expires_at, EXCLUDED.expires_at)`

func (s *Store) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return revocation.ErrEmptySessionID
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.Pool.Exec(ctx, revokeSQL, sessionID, until.UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

const isRevokedSQL = `
SELECT EXISTS (
    SELECT 1 FROM revoked_sessions WHERE session_id = $1 AND expires_at > now()
)`

func (s *Store) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var revoked bool
	if err := s.Pool.QueryRow(ctx, isRevokedSQL, sessionID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return revoked, nil
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM revoked_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

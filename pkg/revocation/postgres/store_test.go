//go:build e2e

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/revocation/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway PostgreSQL and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "authmesh",
			"POSTGRES_PASSWORD": "authmesh",
			"POSTGRES_DB":       "authmesh",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://authmesh:authmesh@%s:%s/authmesh?sslmode=disable", host, port.Port())
}

func TestStore(t *testing.T) {
	ctx := t.Context()
	store, err := postgres.New(ctx, postgres.Config{URL: setupPostgres(t), QueryTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.ApplyMigrations())
	require.NoError(t, store.ApplyMigrations(), "migrations are idempotent")

	t.Run("revoke and lookup", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, "s1", time.Now().Add(time.Hour)))

		revoked, err := store.IsRevoked(ctx, "s1")
		require.NoError(t, err)
		require.True(t, revoked)

		revoked, err = store.IsRevoked(ctx, "s2")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("expired entries read as not revoked", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, "gone", time.Now().Add(-time.Minute)))
		revoked, err := store.IsRevoked(ctx, "gone")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("re-revoking never shortens an entry", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, "s3", time.Now().Add(time.Hour)))
		require.NoError(t, store.Revoke(ctx, "s3", time.Now().Add(-time.Hour)))
		revoked, err := store.IsRevoked(ctx, "s3")
		require.NoError(t, err)
		require.True(t, revoked)
	})

	t.Run("purge", func(t *testing.T) {
		n, err := store.PurgeExpired(ctx, time.Now())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("checker over postgres", func(t *testing.T) {
		checker := revocation.NewChecker(store, revocation.CheckerOptions{})
		require.NoError(t, checker.Check(ctx, "fresh"))
		require.NoError(t, checker.Revoke(ctx, "fresh", time.Now().Add(time.Hour)))

		other := revocation.NewChecker(store, revocation.CheckerOptions{})
		require.ErrorIs(t, other.Check(ctx, "fresh"), jwtx.ErrRevoked)
	})
}

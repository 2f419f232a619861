package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/retrade/authmesh/internal/auth/store"
)

var errNestedTx = errors.New("sqlite: nested transactions are not supported")

// txStore is a Store scoped to one *sql.Tx. Lifecycle methods that only
// make sense on the root Store are no-ops or errors here.
type txStore struct {
	repos
	tx *sql.Tx
}

func newTx(tx *sql.Tx, now func() time.Time) *txStore {
	return &txStore{repos: repos{db: tx, now: now}, tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error               { return nil }
func (t *txStore) Ping(context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error     { return nil }
func (t *txStore) Tx(context.Context) (store.Tx, error) {
	return nil, errNestedTx
}

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return errNestedTx
}

// Package migratex runs embedded golang-migrate schemas for every store in
// the repo: the auth database, the notifier cache and the shared denylist.
package migratex

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Up applies every pending NNNNNN_name.up.sql file at the root of fsys and
// returns the resulting schema version. The driver is left open; it wraps a
// database handle the caller owns.
func Up(fsys fs.FS, databaseName string, driver database.Driver) (uint, error) {
	source, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("migratex: open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		return 0, fmt.Errorf("migratex: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migratex: apply %s migrations: %w", databaseName, err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migratex: read version: %w", err)
	case dirty:
		return version, fmt.Errorf("migratex: %s schema version %d is dirty", databaseName, version)
	}
	return version, nil
}

package sqlite

import (
	"github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/retrade/authmesh/internal/auth/store/drivers/sqlite/migrations"
	"github.com/retrade/authmesh/pkg/migratex"
)

// ApplyMigrations brings the auth schema up to date.
func (m *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(m.conn, &sqlite.Config{})
	if err != nil {
		return err
	}
	_, err = migratex.Up(migrations.Migrations, "sqlite", driver)
	return err
}

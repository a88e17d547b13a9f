package db

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// Migrate applies every pending migration found at sourceURL.
// It reports whether the schema changed.
func Migrate(sourceURL, dsn string) (bool, error) {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return false, errors.Wrap(err, "cannot create a new migrate instance")
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to run migrate up")
	}
	return true, nil
}

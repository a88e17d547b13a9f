package repository

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	// ErrStaleState is returned when a conditional update matched no row
	// because the record left the expected state.
	ErrStaleState = errors.New("stale state")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	// Raised when an id that is not a UUID reaches a uuid column.
	pgInvalidTextRepresentation = "22P02"
)

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation, pgInvalidTextRepresentation:
			return ErrNotFound
		}
	}
	return err
}

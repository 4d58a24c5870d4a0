package gorm

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PgError carries the SQLSTATE of a failed PostgreSQL call.
type PgError struct {
	Err        error
	Code       string
	Constraint string
}

func (e *PgError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("postgres %s (%s): %v", e.Code, e.Constraint, e.Err)
	}
	return fmt.Sprintf("postgres %s: %v", e.Code, e.Err)
}

func (e *PgError) Unwrap() error { return e.Err }

// describeError attaches the SQLSTATE when err came from the server.
func describeError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &PgError{Err: err, Code: pgErr.Code, Constraint: pgErr.ConstraintName}
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pe *PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

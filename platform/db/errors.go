package db

import (
	"errors"

	"clinic_automation/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes the repositories care about.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// Classify turns a pgx error into a typed application error: missing rows
// are NotFound, errors reported by the server are Internal, and anything that
// never got a server answer (dial, timeout, closed pool) is DependencyUnavailable.
func Classify(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(message).WithOp(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == CodeForeignKeyViolation {
			return apperr.Wrap(apperr.KindValidation, message, err).WithOp(op)
		}
		return apperr.Wrap(apperr.KindInternal, message, err).WithOp(op)
	}

	return apperr.DependencyUnavailable(message, err).WithOp(op)
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation
}

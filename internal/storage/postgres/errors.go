package postgres

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refitt/refitt-api/internal/apierr"
)

func notFound(record, field string, value any) error {
	return apierr.Newf(apierr.RecordNotFound, "No %s with %s=%v", record, field, value)
}

// lookupErr maps pgx.ErrNoRows to a RecordNotFound error for record.
func lookupErr(err error, record, field string, value any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(record, field, value)
	}
	return errors.Wrapf(err, "get %s", record)
}

func isViolation(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// writeErr maps integrity violations to ConstraintViolation.
func writeErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation,
			pgerrcode.ForeignKeyViolation,
			pgerrcode.NotNullViolation,
			pgerrcode.CheckViolation:
			return apierr.Wrap(apierr.ConstraintViolation, err, constraintMessage(pgErr))
		}
	}
	return errors.Wrap(err, op)
}

func constraintMessage(e *pgconn.PgError) string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("Constraint violation (%s): %s", e.ConstraintName, e.Detail)
	case e.ConstraintName != "":
		return fmt.Sprintf("Constraint violation (%s)", e.ConstraintName)
	default:
		return "Constraint violation: " + e.Message
	}
}

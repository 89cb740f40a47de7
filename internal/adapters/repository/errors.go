package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/merit/internal/domain/errs"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = fmt.Errorf("record %w", errs.ErrNotFound)
	ErrSeasonExists  = fmt.Errorf("season already exists: %w", errs.ErrConflict)
	ErrAlreadyActive = fmt.Errorf("another season is active: %w", errs.ErrConflict)
	ErrInvalidLimit  = fmt.Errorf("invalid limit: %w", errs.ErrInvalidInput)
)

// mapErr turns driver errors into domain classes: timeouts and lock
// conflicts become transient, missing rows become ErrNotFound.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Transient(fmt.Errorf("%s: %w", op, err))
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errs.Transient(fmt.Errorf("%s: %w", op, err))
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%s: %w: %v", op, errs.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

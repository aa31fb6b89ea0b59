package repository

import (
	"strings"

	"github.com/evanhu96/load-management-app/internal/errors"
)

// translateError maps SQLite driver failures onto the error taxonomy callers
// branch on. Unique-constraint violations become ErrConflict, lock contention
// becomes a retryable TransientStoreError, anything else passes through.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.ErrConflict
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "SQLITE_BUSY"):
		return &errors.TransientStoreError{Err: err}
	default:
		return err
	}
}

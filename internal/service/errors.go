package service

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// The error taxonomy surfaced by services. All of these are terminal for the
// request: none is retried, and the API layer maps each to a status code
// (ValidationError and Conflict -> 400, ErrNotFound -> 404,
// ErrPermissionDenied -> 403).

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError reports a bad input value scoped to a single field. The
// message is surfaced verbatim to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports a duplicate membership, follow edge, or removal of
// one that does not exist.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a storage-level unique constraint
// rejection. GORM translates these to ErrDuplicatedKey when TranslateError
// is on; the pq code is checked as well for raw postgres errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return true
	}
	return false
}

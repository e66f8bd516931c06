package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrVersionConflict is returned when a compare-and-set update matched no row
// because the row changed after it was read.
var ErrVersionConflict = errors.New("repository: row changed since it was read")

// ErrForeignKey is returned when a write references a row that no longer exists.
var ErrForeignKey = errors.New("repository: referenced row missing")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const pqUniqueViolation pq.ErrorCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation on
// constraint, or on any constraint when constraint is empty.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"

	usersEmailKey = "users_email_key"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

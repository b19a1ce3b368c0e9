// internal/repository/postgres/pg_errors.go
package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgInvalidText     = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == pgUniqueViolation }

func isCheckViolation(err error) bool { return pqCode(err) == pgCheckViolation }

func isInvalidText(err error) bool { return pqCode(err) == pgInvalidText }

package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
)

const (
	uniqueViolation = "23505"
	// raised when an id that is not a uuid is compared against a uuid column
	invalidTextRepresentation = "22P02"
)

// trapNoRowsErr maps sql.ErrNoRows and malformed ids to notFound and wraps any other failure as a core.PersistenceError.
func trapNoRowsErr(err error, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows || isInvalidID(err) {
		return notFound
	}
	return core.NewPersistenceError(op, err)
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func isInvalidID(err error) bool {
	return hasCode(err, invalidTextRepresentation)
}

func hasCode(err error, code pq.ErrorCode) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == code
}

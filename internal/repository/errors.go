package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Store-level outcomes that services translate into domain errors.
var (
	ErrAlreadyMarked    = errors.New("attendance already marked")
	ErrActivityFull     = errors.New("activity at capacity")
	ErrAlreadyEnrolled  = errors.New("student already enrolled")
	ErrEventFull        = errors.New("event at capacity")
	ErrAlreadyAttending = errors.New("already attending event")
	ErrDuplicateEmail   = errors.New("email already registered")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// missingOnMalformedID reports a lookup by a value that cannot be a uuid as a
// missing row, the same as a well-formed id that matches nothing.
func missingOnMalformedID(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		return sql.ErrNoRows
	}
	return err
}

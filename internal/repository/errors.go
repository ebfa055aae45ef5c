package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// DuplicateKeyError is returned when an insert violates a UNIQUE constraint.
// Key names the violated column, e.g. "votes.voter_email".
type DuplicateKeyError struct {
	Key string
	Err error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// IsDuplicate reports whether err is a uniqueness violation and returns it
func IsDuplicate(err error) (*DuplicateKeyError, bool) {
	var dupErr *DuplicateKeyError
	if errors.As(err, &dupErr) {
		return dupErr, true
	}
	return nil, false
}

// classifyConstraint converts driver-level UNIQUE violations into *DuplicateKeyError
func classifyConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return err
	}
	return &DuplicateKeyError{Key: constraintColumn(sqliteErr.Error()), Err: err}
}

// constraintColumn extracts "table.column" from "UNIQUE constraint failed: table.column"
func constraintColumn(msg string) string {
	const marker = "constraint failed: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "unknown"
	}
	cols := msg[idx+len(marker):]
	if comma := strings.Index(cols, ","); comma >= 0 {
		cols = cols[:comma]
	}
	return strings.TrimSpace(cols)
}

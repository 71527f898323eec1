// Package sqlgraph classifies the constraint errors reported by the drivers.
package sqlgraph

import (
	"errors"
	"strings"
)

// A ConstraintKind identifies the constraint a statement violated.
type ConstraintKind int

// Constraint kinds.
const (
	Unique ConstraintKind = iota + 1
	ForeignKey
	Check
	NotNull
)

// String returns the name of the constraint kind.
func (k ConstraintKind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	case NotNull:
		return "not null"
	default:
		return "unknown"
	}
}

// errorCoder is implemented by drivers reporting the SQLSTATE through a Code method.
type errorCoder interface {
	Code() string
}

// sqlStateError is implemented by errors that provide SQLSTATE codes, e.g. *pq.Error.
type sqlStateError interface {
	SQLState() string
}

// constraints maps the PostgreSQL SQLSTATE codes (class 23) and the SQLite
// messages to their kind.
var constraints = []struct {
	kind    ConstraintKind
	state   string
	message []string
}{
	{Unique, "23505", []string{"violates unique constraint", "UNIQUE constraint failed"}},
	{ForeignKey, "23503", []string{"violates foreign key constraint", "FOREIGN KEY constraint failed"}},
	{Check, "23514", []string{"violates check constraint", "CHECK constraint failed"}},
	{NotNull, "23502", []string{"violates not-null constraint", "NOT NULL constraint failed"}},
}

// ConstraintKindOf returns the kind of the constraint violated by err.
func ConstraintKindOf(err error) (ConstraintKind, bool) {
	if err == nil {
		return 0, false
	}
	var state string
	if e, ok := asError[sqlStateError](err); ok {
		state = e.SQLState()
	} else if e, ok := asError[errorCoder](err); ok {
		state = e.Code()
	}
	msg := err.Error()
	for _, c := range constraints {
		if state == c.state || containsAny(msg, c.message...) {
			return c.kind, true
		}
	}
	return 0, false
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	_, ok := ConstraintKindOf(err)
	return ok
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return isKind(err, Unique)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return isKind(err, ForeignKey)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return isKind(err, Check)
}

// IsNotNullConstraintError reports if the error resulted from a NOT NULL constraint violation.
func IsNotNullConstraintError(err error) bool {
	return isKind(err, NotNull)
}

func isKind(err error, kind ConstraintKind) bool {
	k, ok := ConstraintKindOf(err)
	return ok && k == kind
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

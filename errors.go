package rhubarb

import (
	"errors"
	"fmt"

	"github.com/syssam/rhubarb/dialect/sql/sqlgraph"
)

// Sentinel errors of the engine. Every typed error below matches its
// sentinel with errors.Is.
var (
	// ErrEmptyCommand is returned when a command has nothing to do.
	ErrEmptyCommand = errors.New("rhubarb: empty command")

	// ErrUnresolvedField is returned when a field path does not exist on a model.
	ErrUnresolvedField = errors.New("rhubarb: unresolved field")

	// ErrInvalidSQLEmission is returned when an extraction-only selector,
	// or an aggregate without an owning GROUP BY, is compiled to SQL.
	ErrInvalidSQLEmission = errors.New("rhubarb: invalid sql emission")

	// ErrCacheSyncUnavailable signals that a derived query cannot be served
	// from its parent's cached rows and must be executed on its own.
	ErrCacheSyncUnavailable = errors.New("rhubarb: cache sync unavailable")
)

// EmptyCommandError is returned by insert, update and delete commands
// that would not touch any row, or would touch every row without the
// explicit opt-in.
type EmptyCommandError struct {
	Op     string
	Reason string
}

// Error returns the error string.
func (e *EmptyCommandError) Error() string {
	return fmt.Sprintf("rhubarb: %s: %s", e.Op, e.Reason)
}

// Is reports whether the target error matches ErrEmptyCommand.
func (e *EmptyCommandError) Is(err error) bool {
	return err == ErrEmptyCommand
}

// NewEmptyCommandError returns a new EmptyCommandError.
func NewEmptyCommandError(op, reason string) *EmptyCommandError {
	return &EmptyCommandError{Op: op, Reason: reason}
}

// IsEmptyCommand returns true if the error is an EmptyCommandError.
func IsEmptyCommand(err error) bool {
	var e *EmptyCommandError
	return errors.As(err, &e)
}

// UnresolvedFieldError is returned when a selector path names a field that
// is neither a column, a relation nor a virtual field of the model.
type UnresolvedFieldError struct {
	Model string
	Field string
}

// Error returns the error string.
func (e *UnresolvedFieldError) Error() string {
	return fmt.Sprintf("rhubarb: field %q not found on model %q", e.Field, e.Model)
}

// Is reports whether the target error matches ErrUnresolvedField.
func (e *UnresolvedFieldError) Is(err error) bool {
	return err == ErrUnresolvedField
}

// NewUnresolvedFieldError returns a new UnresolvedFieldError.
func NewUnresolvedFieldError(model, field string) *UnresolvedFieldError {
	return &UnresolvedFieldError{Model: model, Field: field}
}

// IsUnresolvedField returns true if the error is an UnresolvedFieldError.
func IsUnresolvedField(err error) bool {
	var e *UnresolvedFieldError
	return errors.As(err, &e)
}

// InvalidSQLEmissionError is returned when a selector that cannot be
// rendered as SQL reaches the statement builder.
type InvalidSQLEmissionError struct {
	Node   string
	Reason string
}

// Error returns the error string.
func (e *InvalidSQLEmissionError) Error() string {
	return fmt.Sprintf("rhubarb: cannot emit sql for %s: %s", e.Node, e.Reason)
}

// Is reports whether the target error matches ErrInvalidSQLEmission.
func (e *InvalidSQLEmissionError) Is(err error) bool {
	return err == ErrInvalidSQLEmission
}

// NewInvalidSQLEmissionError returns a new InvalidSQLEmissionError.
func NewInvalidSQLEmissionError(node, reason string) *InvalidSQLEmissionError {
	return &InvalidSQLEmissionError{Node: node, Reason: reason}
}

// IsInvalidSQLEmission returns true if the error is an InvalidSQLEmissionError.
func IsInvalidSQLEmission(err error) bool {
	var e *InvalidSQLEmissionError
	return errors.As(err, &e)
}

// CacheSyncUnavailableError describes why a derived query could not be
// served from its parent's cache. It is a signal, not a failure: callers
// fall back to executing the derived query.
type CacheSyncUnavailableError struct {
	Field  string
	Reason string
}

// Error returns the error string.
func (e *CacheSyncUnavailableError) Error() string {
	if e.Field == "" {
		return "rhubarb: cache sync unavailable: " + e.Reason
	}
	return fmt.Sprintf("rhubarb: cache sync unavailable for field %q: %s", e.Field, e.Reason)
}

// Is reports whether the target error matches ErrCacheSyncUnavailable.
func (e *CacheSyncUnavailableError) Is(err error) bool {
	return err == ErrCacheSyncUnavailable
}

// NewCacheSyncUnavailableError returns a new CacheSyncUnavailableError.
func NewCacheSyncUnavailableError(field, reason string) *CacheSyncUnavailableError {
	return &CacheSyncUnavailableError{Field: field, Reason: reason}
}

// IsCacheSyncUnavailable returns true if the error signals an unavailable cache sync.
func IsCacheSyncUnavailable(err error) bool {
	return errors.Is(err, ErrCacheSyncUnavailable)
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation. Driver errors are never wrapped by the engine,
// so err is the error the driver returned.
func IsConstraintError(err error) bool {
	return sqlgraph.IsConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return sqlgraph.IsUniqueConstraintError(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return sqlgraph.IsForeignKeyConstraintError(err)
}

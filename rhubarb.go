// Package rhubarb is a lazy query-compilation engine.
//
// Application code composes selectors against registered models; the
// objectset package compiles every composed query into one SQL statement,
// executes it at most once, and extracts typed values from the rows.
// Nested queries over data the parent statement already joined are served
// from the parent's cached rows instead of issuing new statements.
//
// This package holds the error taxonomy, the Unset sentinel and the
// second-level cache contract shared by the sub-packages.
package rhubarb

// UnsetValue is the type of Unset.
type UnsetValue struct{}

// String implements fmt.Stringer.
func (UnsetValue) String() string { return "rhubarb.Unset" }

// Unset marks a record field that exists on the model but was not
// fetched, as opposed to a column holding SQL NULL. Written as a value
// in a command, it renders the column's DEFAULT.
var Unset = UnsetValue{}

// IsUnset reports if v is the Unset sentinel.
func IsUnset(v any) bool {
	_, ok := v.(UnsetValue)
	return ok
}

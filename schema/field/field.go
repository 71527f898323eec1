// Package field provides fluent builders for column declarations.
//
//	field.BigInt("id")
//	field.Text("title")
//	field.UUID("id").InsertDefault(field.GenRandomUUID)
//	field.Time("updated_at").UpdateDefault(field.Now)
//	field.BigInt("author_id").Column("writer_id").Optional()
//
// A column's SQL type drives the cast the statement builder applies to
// bound parameters, and its defaults are evaluated client side when rows
// are inserted or updated through the command builders.
package field

import (
	"time"

	"github.com/google/uuid"
)

// A Default is a named default-value function. The name is the SQL
// spelling of the function the value stands for.
type Default struct {
	Name string
	Fn   func() any
}

// Value evaluates the default.
func (d Default) Value() any { return d.Fn() }

// Default functions understood by the declaration layer.
var (
	GenRandomUUID = Default{Name: "uuid_generate_v4()", Fn: func() any { return uuid.New() }}
	Now           = Default{Name: "now()", Fn: func() any { return time.Now().UTC() }}
	EmptyArray    = Default{Name: "'{}'", Fn: func() any { return []any{} }}
)

// DefaultByName returns the default function registered under the given SQL spelling.
func DefaultByName(name string) (Default, bool) {
	for _, d := range []Default{GenRandomUUID, Now, EmptyArray} {
		if d.Name == name {
			return d, true
		}
	}
	return Default{}, false
}

// A Descriptor for column configuration.
type Descriptor struct {
	Name     string   // field name.
	Column   string   // column name, defaults to the field name.
	Type     Type     // SQL type.
	Optional bool     // nullable column.
	OnInsert *Default // default applied on insert when the column is not given.
	OnUpdate *Default // default applied on every update.
}

// FieldName returns the name of the field.
func (d *Descriptor) FieldName() string { return d.Name }

// ColumnName returns the name of the column.
func (d *Descriptor) ColumnName() string {
	if d.Column != "" {
		return d.Column
	}
	return d.Name
}

// SQLType returns the SQL type of the column.
func (d *Descriptor) SQLType() Type { return d.Type }

// Nullable reports if the column accepts NULL.
func (d *Descriptor) Nullable() bool { return d.Optional }

// InsertDefault returns the default applied on insert.
func (d *Descriptor) InsertDefault() (Default, bool) {
	if d.OnInsert == nil {
		return Default{}, false
	}
	return *d.OnInsert, true
}

// UpdateDefault returns the default applied on update.
func (d *Descriptor) UpdateDefault() (Default, bool) {
	if d.OnUpdate == nil {
		return Default{}, false
	}
	return *d.OnUpdate, true
}

// Builder is the builder for columns.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// BigInt returns a new column builder of type BIGINT.
func BigInt(name string) *Builder { return newBuilder(name, TypeBigInt) }

// Float returns a new column builder of type FLOAT.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Text returns a new column builder of type TEXT.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Bool returns a new column builder of type BOOLEAN.
func Bool(name string) *Builder { return newBuilder(name, TypeBoolean) }

// Bytes returns a new column builder of type BYTEA.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytea) }

// Time returns a new column builder of type TIMESTAMPTZ.
func Time(name string) *Builder { return newBuilder(name, TypeTimestamptz) }

// Date returns a new column builder of type DATE.
func Date(name string) *Builder { return newBuilder(name, TypeDate) }

// UUID returns a new column builder of type UUID.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// JSON returns a new column builder of type JSONB.
func JSON(name string) *Builder { return newBuilder(name, TypeJSONB) }

// Array returns a new column builder for an array of elem.
func Array(name string, elem Type) *Builder { return newBuilder(name, elem.Array()) }

// Of returns a new column builder of the given type.
func Of(name string, t Type) *Builder { return newBuilder(name, t) }

// Column sets the column name of the field.
func (b *Builder) Column(name string) *Builder {
	b.desc.Column = name
	return b
}

// Optional marks the column as nullable.
func (b *Builder) Optional() *Builder {
	b.desc.Optional = true
	return b
}

// InsertDefault sets the default applied on insert.
func (b *Builder) InsertDefault(d Default) *Builder {
	b.desc.OnInsert = &d
	return b
}

// UpdateDefault sets the default applied on update.
func (b *Builder) UpdateDefault(d Default) *Builder {
	b.desc.OnUpdate = &d
	return b
}

// Descriptor implements the schema.Column interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

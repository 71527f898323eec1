package schema

import (
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/syssam/rhubarb/schema/field"
)

// DefaultSchema is the schema tables are placed in unless configured otherwise.
const DefaultSchema = "public"

type (
	// ColumnDescriptor describes one physical column of a table.
	ColumnDescriptor interface {
		FieldName() string
		ColumnName() string
		SQLType() field.Type
		Nullable() bool
		InsertDefault() (field.Default, bool)
		UpdateDefault() (field.Default, bool)
	}

	// TableDescriptor describes a table: its names, primary key and columns.
	TableDescriptor interface {
		// Name returns the declared (model) name of the table.
		Name() string
		SchemaName() string
		TableName() string
		// PrimaryKey returns the field names of the primary key in order.
		PrimaryKey() []string
		Columns() []ColumnDescriptor
	}

	// Field is implemented by the column builders of the field package.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// Mixin is a reusable set of fields.
	Mixin interface {
		Fields() []Field
	}
)

// Table is the default TableDescriptor implementation.
type Table struct {
	name    string
	schema  string
	table   string
	pk      []string
	columns []ColumnDescriptor
	err     error
}

// NewTable returns a table descriptor for the given name and fields.
func NewTable(name string, fields ...Field) *Table {
	t := &Table{
		name:   name,
		schema: DefaultSchema,
		table:  inflect.Underscore(name),
	}
	t.add(fields)
	return t
}

func (t *Table) add(fields []Field) {
	for _, f := range fields {
		d := f.Descriptor()
		if _, ok := t.Column(d.Name); ok {
			t.err = fmt.Errorf("schema: duplicate field %q in table %q", d.Name, t.name)
			continue
		}
		t.columns = append(t.columns, d)
		if t.pk == nil && d.Name == "id" {
			t.pk = []string{"id"}
		}
	}
}

// Mixin prepends the fields of the given mixins.
func (t *Table) Mixin(mixins ...Mixin) *Table {
	own := t.columns
	t.columns = nil
	for _, m := range mixins {
		t.add(m.Fields())
	}
	for _, c := range own {
		if _, ok := t.Column(c.FieldName()); ok {
			t.err = fmt.Errorf("schema: duplicate field %q in table %q", c.FieldName(), t.name)
			continue
		}
		t.columns = append(t.columns, c)
	}
	return t
}

// WithSchema sets the database schema of the table.
func (t *Table) WithSchema(name string) *Table {
	t.schema = name
	return t
}

// WithTable sets the table name.
func (t *Table) WithTable(name string) *Table {
	t.table = name
	return t
}

// WithPrimaryKey sets the primary key fields.
func (t *Table) WithPrimaryKey(fields ...string) *Table {
	for _, f := range fields {
		if _, ok := t.Column(f); !ok {
			t.err = fmt.Errorf("schema: primary key field %q not declared in table %q", f, t.name)
		}
	}
	t.pk = fields
	return t
}

// Name returns the declared name of the table.
func (t *Table) Name() string { return t.name }

// SchemaName returns the database schema of the table.
func (t *Table) SchemaName() string { return t.schema }

// TableName returns the name of the table.
func (t *Table) TableName() string { return t.table }

// PrimaryKey returns the primary key fields.
func (t *Table) PrimaryKey() []string { return slices.Clone(t.pk) }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []ColumnDescriptor { return slices.Clone(t.columns) }

// Column returns the column of the given field.
func (t *Table) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.columns {
		if c.FieldName() == name {
			return c, true
		}
	}
	return nil, false
}

// Err returns the first declaration error of the table.
func (t *Table) Err() error { return t.err }

var _ TableDescriptor = (*Table)(nil)

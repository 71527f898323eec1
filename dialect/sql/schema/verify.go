// Package schema checks table declarations against the tables of a live
// database.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
	rschema "github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

// ValidationError represents a difference between a declared table and
// the database.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates that statements over the table fail.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking differences.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, e := range errs {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) merge(o *ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// ValidateTable checks a table declaration on its own.
func ValidateTable(t rschema.TableDescriptor) *ValidationResult {
	result := &ValidationResult{}
	name := qualified(t)
	if len(t.PrimaryKey()) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   name,
			Message: "table has no primary key, its rows are keyed by position",
		})
	}
	seen := make(map[string]bool)
	for _, c := range t.Columns() {
		if seen[c.ColumnName()] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   name,
				Column:  c.ColumnName(),
				Message: "duplicate column name",
			})
		}
		seen[c.ColumnName()] = true
	}
	return result
}

// column is a column as reported by the database.
type column struct {
	typ      string
	nullable bool
}

// Verify compares the tables with the columns the database reports.
// Missing tables and columns are breaking errors; type and nullability
// differences are warnings. Columns the database has but the tables do
// not declare are ignored. Tables sharing a physical table, e.g.
// aggregate models, are verified once per declaration.
//
// Example:
//
//	result, err := schema.Verify(ctx, drv, tables...)
//	if err != nil {
//	    return err
//	}
//	if result.HasErrors() {
//	    log.Fatal(result)
//	}
func Verify(ctx context.Context, conn dialect.ExecQuerier, tables ...rschema.TableDescriptor) (*ValidationResult, error) {
	result := &ValidationResult{}
	for _, t := range tables {
		result.merge(ValidateTable(t))
		columns, err := inspect(ctx, conn, t.SchemaName(), t.TableName())
		if err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: inspect %s: %w", qualified(t), err)
		}
		verifyTable(t, columns, result)
	}
	return result, nil
}

func verifyTable(t rschema.TableDescriptor, columns map[string]column, result *ValidationResult) {
	name := qualified(t)
	if len(columns) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Table:    name,
			Message:  "table does not exist",
			Breaking: true,
		})
		return
	}
	for _, c := range t.Columns() {
		got, ok := columns[c.ColumnName()]
		if !ok {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    name,
				Column:   c.ColumnName(),
				Message:  "column does not exist",
				Breaking: true,
			})
			continue
		}
		if !compatible(c.SQLType(), got.typ) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   name,
				Column:  c.ColumnName(),
				Message: fmt.Sprintf("column type %s does not match %s", got.typ, c.SQLType()),
			})
		}
		switch {
		case got.nullable && !c.Nullable():
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   name,
				Column:  c.ColumnName(),
				Message: "column allows NULL but the field is required",
			})
		case !got.nullable && c.Nullable():
			_, hasDefault := c.InsertDefault()
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   name,
				Column:  c.ColumnName(),
				Message: "column is NOT NULL but the field is optional",
				// Inserts leaving the field unset fail.
				Breaking: !hasDefault,
			})
		}
	}
}

const (
	postgresColumns = `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`
	sqliteColumns   = `SELECT name AS column_name, type AS data_type, CASE WHEN "notnull" = 0 AND pk = 0 THEN 'YES' ELSE 'NO' END AS is_nullable FROM pragma_table_info(?, ?)`
)

// inspect returns the columns of a table, keyed by name. A missing table
// has no columns.
func inspect(ctx context.Context, conn dialect.ExecQuerier, schemaName, table string) (map[string]column, error) {
	q, args := postgresColumns, []any{schemaName, table}
	if dialect.DialectOf(conn) == dialect.SQLite {
		q, args = sqliteColumns, []any{table, schemaName}
	}
	var rows sql.Rows
	if err := conn.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, err
	}
	columns := make(map[string]column, len(maps))
	for _, m := range maps {
		columns[text(m["column_name"])] = column{
			typ:      text(m["data_type"]),
			nullable: strings.EqualFold(text(m["is_nullable"]), "YES"),
		}
	}
	return columns, nil
}

// families lists the database type names each column type accepts.
var families = map[field.Type][]string{
	field.TypeBigInt:      {"bigint", "integer", "smallint", "int", "int2", "int4", "int8", "bigserial", "serial"},
	field.TypeFloat:       {"double precision", "real", "numeric", "decimal", "float", "float4", "float8", "double"},
	field.TypeText:        {"text", "character varying", "varchar", "character", "char", "citext", "clob"},
	field.TypeBoolean:     {"boolean", "bool"},
	field.TypeBytea:       {"bytea", "blob"},
	field.TypeTimestamptz: {"timestamp with time zone", "timestamp without time zone", "timestamptz", "timestamp", "datetime"},
	field.TypeDate:        {"date"},
	field.TypeUUID:        {"uuid"},
	field.TypeJSONB:       {"jsonb", "json"},
}

// compatible reports if a column of the database type can be read and
// written as the declared type. SQLite columns without declared type
// accept any value.
func compatible(want field.Type, got string) bool {
	got = strings.ToLower(strings.TrimSpace(got))
	if i := strings.IndexByte(got, '('); i >= 0 {
		got = strings.TrimSpace(got[:i])
	}
	if got == "" || strings.EqualFold(string(want), got) {
		return true
	}
	if want.IsArray() {
		return got == "array" || strings.HasSuffix(got, "[]")
	}
	for _, name := range families[want] {
		if got == name {
			return true
		}
	}
	return false
}

func qualified(t rschema.TableDescriptor) string {
	return t.SchemaName() + "." + t.TableName()
}

func text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
	rschema "github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

func TestValidateTable(t *testing.T) {
	keyless := rschema.NewTable("Event", field.Text("name"), field.Text("label").Column("name"))
	result := ValidateTable(keyless)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "public.event: table has no primary key, its rows are keyed by position", result.Warnings[0].Error())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "public.event.name: duplicate column name", result.Errors[0].Error())
	assert.False(t, result.HasBreakingChanges())

	result = ValidateTable(rschema.NewTable("Author", field.BigInt("id"), field.Text("name")))
	assert.False(t, result.HasErrors())
	assert.False(t, result.HasWarnings())
	assert.Equal(t, "No issues found", result.String())
}

func TestVerifySQLite(t *testing.T) {
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	defer drv.Close()
	require.NoError(t, drv.Exec(ctx, `CREATE TABLE book (id INTEGER PRIMARY KEY, title TEXT NOT NULL, subtitle TEXT, price REAL)`, []any{}, nil))

	book := rschema.NewTable("Book",
		field.BigInt("id"),
		field.Text("title"),
		field.Text("subtitle").Optional(),
		field.BigInt("price"),
		field.Text("isbn"),
	).WithSchema("main")
	shelf := rschema.NewTable("Shelf", field.BigInt("id")).WithSchema("main")

	result, err := Verify(ctx, drv, book, shelf)
	require.NoError(t, err)
	want := &ValidationResult{
		Errors: []*ValidationError{
			{Table: "main.book", Column: "isbn", Message: "column does not exist", Breaking: true},
			{Table: "main.shelf", Message: "table does not exist", Breaking: true},
		},
		Warnings: []*ValidationError{
			{Table: "main.book", Column: "price", Message: "column type REAL does not match BIGINT"},
			{Table: "main.book", Column: "price", Message: "column allows NULL but the field is required"},
		},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Verify() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, result.HasBreakingChanges())
	assert.Contains(t, result.String(), "main.shelf: table does not exist [BREAKING]")
}

func TestVerifyPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := sql.OpenDB(dialect.Postgres, db)

	author := rschema.NewTable("Author",
		field.BigInt("id"),
		field.Text("name"),
		field.Text("bio").Optional(),
		field.Time("born_at").Optional(),
		field.Array("tags", field.TypeText),
	)
	mock.ExpectQuery(postgresColumns).
		WithArgs("public", "author").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("id", "bigint", "NO").
			AddRow("name", "character varying", "YES").
			AddRow("bio", "text", "NO").
			AddRow("born_at", "timestamp with time zone", "YES").
			AddRow("tags", "ARRAY", "NO").
			AddRow("legacy", "integer", "YES"))

	result, err := Verify(context.Background(), drv, author)
	require.NoError(t, err)
	assert.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "public.author.name: column allows NULL but the field is required", result.Warnings[0].Error())
	assert.False(t, result.Warnings[0].Breaking)
	assert.Equal(t, "public.author.bio: column is NOT NULL but the field is optional", result.Warnings[1].Error())
	assert.True(t, result.Warnings[1].Breaking)
	require.NoError(t, mock.ExpectationsWereMet())

	t.Run("Error", func(t *testing.T) {
		failure := errors.New("permission denied")
		mock.ExpectQuery(postgresColumns).WillReturnError(failure)
		_, err := Verify(context.Background(), drv, author)
		assert.ErrorIs(t, err, failure)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		want field.Type
		got  string
		ok   bool
	}{
		{field.TypeBigInt, "INTEGER", true},
		{field.TypeText, "VARCHAR(255)", true},
		{field.TypeText, "", true},
		{field.TypeUUID, "uuid", true},
		{field.TypeJSONB, "json", true},
		{field.TypeBigInt.Array(), "ARRAY", true},
		{field.TypeBigInt.Array(), "bigint[]", true},
		{field.TypeBoolean, "integer", false},
		{field.TypeDate, "timestamp", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, compatible(tt.want, tt.got), "%s as %s", tt.got, tt.want)
	}
}

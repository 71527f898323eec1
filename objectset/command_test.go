package objectset

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

const bookReturning = ` RETURNING book_1."id" AS id_1, book_1."title" AS title_2, book_1."author_id" AS author_id_3`

func byAuthorName(name string) Predicate {
	return func(b *ModelSelector) Selector { return EQ(b.Rel("author").F("name"), name) }
}

func TestInsertSQL(t *testing.T) {
	reg := library(t)
	book := model(t, reg, "Book")

	t.Run("Values", func(t *testing.T) {
		q, args, err := Insert(nil, book).
			Columns("title", "author_id").
			Values("Dune", int64(1)).
			Values("Emma", nil).
			SQL()
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "public"."book" AS book_1 ("title", "author_id") VALUES ($1::TEXT, $2::BIGINT), ($3::TEXT, NULL)`+bookReturning, q)
		assert.Equal(t, []any{"Dune", int64(1), "Emma"}, args)
	})
	t.Run("Default", func(t *testing.T) {
		q, args, err := Insert(nil, book).Columns("title", "author_id").Values("Dune", rhubarb.Unset).SQL()
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "public"."book" AS book_1 ("title", "author_id") VALUES ($1::TEXT, DEFAULT)`+bookReturning, q)
		assert.Equal(t, []any{"Dune"}, args)
	})
	t.Run("Records", func(t *testing.T) {
		dune := NewRecord(book)
		require.NoError(t, dune.Set("title", "Dune"))
		require.NoError(t, dune.Set("author_id", int64(1)))
		emma := NewRecord(book)
		require.NoError(t, emma.Set("title", "Emma"))
		q, args, err := InsertRecords(nil, book, dune, emma).SQL()
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "public"."book" AS book_1 ("title", "author_id") VALUES ($1::TEXT, $2::BIGINT), ($3::TEXT, DEFAULT)`+bookReturning, q)
		assert.Equal(t, []any{"Dune", int64(1), "Emma"}, args)
	})
	t.Run("Returning", func(t *testing.T) {
		q, _, err := Insert(nil, book).
			Columns("title").
			Values("Dune").
			Returning(func(b *ModelSelector) Selector { return TupleOf(b.F("id"), b.F("title"), b.F("id")) }).
			SQL()
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "public"."book" AS book_1 ("title") VALUES ($1::TEXT) RETURNING book_1."id" AS id_1, book_1."title" AS title_2`, q)
	})
	t.Run("InsertDefault", func(t *testing.T) {
		reg := NewRegistry()
		token := reg.MustRegister(schema.NewTable("Token",
			field.UUID("id").InsertDefault(field.GenRandomUUID),
			field.Text("name"),
		))
		q, args, err := Insert(nil, token).Columns("name").Values("ci").SQL()
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "public"."token" AS token_1 ("name", "id") VALUES ($1::TEXT, $2::UUID) RETURNING token_1."id" AS id_1, token_1."name" AS name_2`, q)
		require.Len(t, args, 2)
		assert.IsType(t, uuid.UUID{}, args[1])
	})
	t.Run("Errors", func(t *testing.T) {
		_, _, err := Insert(nil, book).SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
		_, _, err = Insert(nil, book).Values("Dune").SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
		_, _, err = InsertRecords(nil, book).SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
		_, _, err = Insert(nil, book).Columns("isbn").Values("x").SQL()
		assert.True(t, rhubarb.IsUnresolvedField(err))
		_, _, err = Insert(nil, book).Columns("title").Values("Dune", "extra").SQL()
		require.Error(t, err)
		assert.False(t, rhubarb.IsEmptyCommand(err))
	})
}

func TestInsertExec(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t)
	reg := library(t)
	book := model(t, reg, "Book")

	mock.ExpectExec(`INSERT INTO "public"."book" AS book_1 ("title") VALUES ($1::TEXT)`).
		WithArgs("Dune").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, Insert(drv, book).Columns("title").Values("Dune").Exec(ctx))

	mock.ExpectQuery(`INSERT INTO "public"."book" AS book_1 ("title") VALUES ($1::TEXT)` + bookReturning).
		WithArgs("Emma").
		WillReturnRows(rows("id_1,title_2,author_id_3", row(int64(2), "Emma", nil)))
	v, err := Insert(drv, book).Columns("title").Values("Emma").One(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), get(t, v, "id"))

	mock.ExpectQuery(`INSERT INTO "public"."book" AS book_1 ("title") VALUES ($1::TEXT), ($2::TEXT) RETURNING book_1."id" AS id_1`).
		WithArgs("Persuasion", "Beloved").
		WillReturnRows(rows("id_1", row(int64(5)), row(int64(6))))
	inserted, err := Insert(drv, book).Columns("title").Values("Persuasion").Values("Beloved").Query(ctx)
	require.NoError(t, err)
	q, args, err := inserted.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT book_1."id" AS id_1, book_1."title" AS title_2, book_1."author_id" AS author_id_3 FROM "public"."book" AS book_1`+
		` WHERE (book_1."id" IN ($1::BIGINT, $2::BIGINT))`, q)
	assert.Equal(t, []any{int64(5), int64(6)}, args)
	assert.False(t, inserted.Loaded())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSQL(t *testing.T) {
	reg := library(t)
	book := model(t, reg, "Book")

	tests := []struct {
		name     string
		update   *UpdateBuilder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Set",
			update:   Update(nil, book).Set("title", "Dune").Where(Field[int64]("id").EQ(1)),
			wantSQL:  `UPDATE "public"."book" AS book_1 SET "title" = $1::TEXT WHERE (book_1."id" = $2::BIGINT)` + bookReturning,
			wantArgs: []any{"Dune", int64(1)},
		},
		{
			name: "ReturningDedup",
			update: Update(nil, book).
				Set("title", "Dune").
				Where(Field[int64]("id").EQ(1)).
				Returning(func(b *ModelSelector) Selector { return TupleOf(b.F("title"), b.F("title")) }),
			wantSQL:  `UPDATE "public"."book" AS book_1 SET "title" = $1::TEXT WHERE (book_1."id" = $2::BIGINT) RETURNING book_1."title" AS title_1`,
			wantArgs: []any{"Dune", int64(1)},
		},
		{
			name:   "RelationFilter",
			update: New(nil, book).Where(byAuthorName("Frank Herbert")).Update().Set("title", "Dune"),
			wantSQL: `UPDATE "public"."book" AS book_1 SET "title" = $1::TEXT FROM "public"."author" AS author_2` +
				` WHERE ((book_1."author_id" = author_2."id") AND (author_2."name" = $2::TEXT))` + bookReturning,
			wantArgs: []any{"Dune", "Frank Herbert"},
		},
		{
			name: "Expression",
			update: Update(nil, book).
				SetExpr("title", func(b *ModelSelector) Selector { return Concat(b.F("title"), " (2nd ed.)") }).
				Set("author_id", nil).
				Unconditional(),
			wantSQL:  `UPDATE "public"."book" AS book_1 SET "title" = CONCAT(book_1."title", $1::TEXT), "author_id" = NULL` + bookReturning,
			wantArgs: []any{" (2nd ed.)"},
		},
		{
			name:     "Default",
			update:   Update(nil, book).Set("author_id", rhubarb.Unset).Where(Field[int64]("id").EQ(1)),
			wantSQL:  `UPDATE "public"."book" AS book_1 SET "author_id" = DEFAULT WHERE (book_1."id" = $1::BIGINT)` + bookReturning,
			wantArgs: []any{int64(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := tt.update.SQL()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	t.Run("Errors", func(t *testing.T) {
		_, _, err := Update(nil, book).Where(Field[int64]("id").EQ(1)).SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
		_, _, err = Update(nil, book).Set("title", "Dune").SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
		_, _, err = Update(nil, book).Set("isbn", "x").Unconditional().SQL()
		assert.True(t, rhubarb.IsUnresolvedField(err))
		_, _, err = Update(nil, book).Set("author", int64(1)).Unconditional().SQL()
		assert.True(t, rhubarb.IsUnresolvedField(err))
	})
}

func TestUpdateExec(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t)
	reg := NewRegistry()
	post := reg.MustRegister(schema.NewTable("Post",
		field.BigInt("id"),
		field.Text("body"),
		field.Time("updated_at").UpdateDefault(field.Now),
	))

	mock.ExpectExec(`UPDATE "public"."post" AS post_1 SET "body" = $1::TEXT, "updated_at" = $2::TIMESTAMPTZ WHERE (post_1."id" = $3::BIGINT)`).
		WithArgs("hello", sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, Update(drv, post).Set("body", "hello").Where(Field[int64]("id").EQ(1)).Exec(ctx))

	mock.ExpectQuery(`UPDATE "public"."post" AS post_1 SET "body" = DEFAULT, "updated_at" = $1::TIMESTAMPTZ RETURNING post_1."id" AS id_1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows("id_1", row(int64(1)), row(int64(2))))
	touched, err := Update(drv, post).Set("body", rhubarb.Unset).Unconditional().
		Returning(func(p *ModelSelector) Selector { return p.F("id") }).
		All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, touched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t)
	reg := library(t)
	books := query(t, reg, drv, "Book").Only("title")
	mock.ExpectQuery(compile(t, books)).WillReturnRows(rows("id_1,title_2", row(int64(7), "Dune")))
	v, err := books.One(ctx)
	require.NoError(t, err)
	rec := v.(*Record).Clone()
	require.NoError(t, rec.Set("title", "Dune Messiah"))
	assert.Equal(t, "Dune", get(t, v, "title"))

	q, args, err := Save(drv, rec).SQL()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "public"."book" AS book_1 SET "title" = $1::TEXT WHERE (book_1."id" = $2::BIGINT)`+bookReturning, q)
	assert.Equal(t, []any{"Dune Messiah", int64(7)}, args)

	mock.ExpectQuery(`UPDATE "public"."book" AS book_1 SET "title" = $1::TEXT WHERE (book_1."id" = $2::BIGINT) RETURNING book_1."id" AS id_1`).
		WithArgs("Dune Messiah", int64(7)).
		WillReturnRows(rows("id_1", row(int64(7))))
	saved, err := Save(drv, rec).Query(ctx)
	require.NoError(t, err)
	mock.ExpectQuery(compile(t, saved)).
		WithArgs(int64(7)).
		WillReturnRows(rows("id_1,title_2,author_id_3", row(int64(7), "Dune Messiah", int64(1))))
	got, err := saved.ForPK(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", get(t, got, "title"))

	err = rec.Set("isbn", "x")
	assert.True(t, rhubarb.IsUnresolvedField(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t)
	reg := library(t)
	book := model(t, reg, "Book")

	t.Run("SQL", func(t *testing.T) {
		q, args, err := Delete(nil, book).Where(Field[int64]("id").EQ(1)).SQL()
		require.NoError(t, err)
		assert.Equal(t, `DELETE FROM "public"."book" AS book_1 WHERE (book_1."id" = $1::BIGINT)`+bookReturning, q)
		assert.Equal(t, []any{int64(1)}, args)

		q, args, err = New(nil, book).Where(byAuthorName("Frank Herbert")).Delete().SQL()
		require.NoError(t, err)
		assert.Equal(t, `DELETE FROM "public"."book" AS book_1 USING "public"."author" AS author_2`+
			` WHERE ((book_1."author_id" = author_2."id") AND (author_2."name" = $1::TEXT))`+bookReturning, q)
		assert.Equal(t, []any{"Frank Herbert"}, args)

		q, _, err = Delete(nil, book).Unconditional().SQL()
		require.NoError(t, err)
		assert.Equal(t, `DELETE FROM "public"."book" AS book_1`+bookReturning, q)

		_, _, err = Delete(nil, book).SQL()
		assert.True(t, rhubarb.IsEmptyCommand(err))
	})
	t.Run("Exec", func(t *testing.T) {
		mock.ExpectQuery(`DELETE FROM "public"."book" AS book_1 WHERE (book_1."title" LIKE $1::TEXT) RETURNING book_1."title" AS title_1`).
			WithArgs("Dune%").
			WillReturnRows(rows("title_1", row("Dune"), row("Dune Messiah")))
		deleted, err := Delete(drv, book).
			Where(StringField("title").HasPrefix("Dune")).
			Returning(func(b *ModelSelector) Selector { return b.F("title") }).
			All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{"Dune", "Dune Messiah"}, deleted)

		mock.ExpectQuery(`DELETE FROM "public"."book" AS book_1 WHERE (book_1."id" = $1::BIGINT)` + bookReturning).
			WithArgs(int64(9)).
			WillReturnRows(rows("id_1,title_2,author_id_3"))
		v, err := Delete(drv, book).Where(Field[int64]("id").EQ(9)).One(ctx)
		require.NoError(t, err)
		assert.Nil(t, v)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

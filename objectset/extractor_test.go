package objectset

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

func TestNormalizeKey(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"Nil", nil, nil},
		{"Int", 7, int64(7)},
		{"Int32", int32(7), int64(7)},
		{"Uint8", uint8(7), int64(7)},
		{"Int64", int64(7), int64(7)},
		{"String", "a", "a"},
		{"Bytes", []byte("a"), "a"},
		{"UUID", id, id.String()},
		{"Time", at, "2024-03-01T11:00:00Z"},
		{"Composite", []any{1, "a"}, CompositeKey("int64:1|string:a")},
		{"CompositeInt64", []any{int64(1), []byte("a")}, CompositeKey("int64:1|string:a")},
		{"Other", struct{ A int }{1}, "{1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeKey(tt.in))
		})
	}
}

func TestResultCache(t *testing.T) {
	t.Run("Single", func(t *testing.T) {
		c := newResultCache(false)
		c.add(int64(2), "b")
		c.add(1, "a")
		c.add(2, "ignored")
		assert.Equal(t, []any{"b", "a"}, c.all())
		v, ok := c.get(uint(2))
		require.True(t, ok)
		assert.Equal(t, "b", v)
		_, ok = c.get(3)
		assert.False(t, ok)
	})
	t.Run("List", func(t *testing.T) {
		c := newResultCache(true)
		c.add(1, "a")
		c.add(2, nil)
		c.add(1, "b")
		c.add(3, "c")
		assert.Equal(t, []any{[]any{"a", "b"}, []any{}, []any{"c"}}, c.all())
	})
}

func TestExtractors(t *testing.T) {
	ctx := context.Background()
	reg := library(t)
	books := query(t, reg, nil, "Book")
	m := books.modelSel

	b := sql.NewBuilder(dialect.Postgres)
	x := DictOf(
		KV("book", m.With("author")),
		KV("label", Func(func(_ context.Context, args []any, _ map[string]any) (any, error) {
			return args[0], nil
		}, m.F("title"))),
		KV("version", 2),
		KV("authors", m.Rel("author").F("name")),
	).Extractor(b, "")
	require.NoError(t, b.Err())

	v, err := x.Extract(ctx, Row{
		"id_1": int64(1), "title_2": "Dune", "author_id_3": int64(1),
		"id_4": int64(1), "name_5": "Frank Herbert",
	})
	require.NoError(t, err)
	out := v.(map[string]any)
	assert.Equal(t, "Dune", out["label"])
	assert.Equal(t, 2, out["version"])
	assert.Equal(t, "Frank Herbert", out["authors"])
	rec := out["book"].(*Record)
	assert.Equal(t, "Frank Herbert", get(t, rec.Get("author"), "name"))

	assert.NotNil(t, x.forField(m.ref.alias, "title"))
	assert.NotNil(t, x.forField("author_2", "name"))
	assert.Nil(t, x.forField(m.ref.alias, "writer"))

	assert.False(t, isList(x))
	list := ListOf(m).Extractor(sql.NewBuilder(dialect.Postgres), "")
	assert.True(t, isList(list))
	assert.True(t, list.newCache().list)
	_, ok := unwrap(list).(*modelExtractor)
	assert.True(t, ok)
}

func TestModelExtractorNullable(t *testing.T) {
	ctx := context.Background()
	reg := library(t)
	author := reg.models["Author"]
	x := &modelExtractor{
		model:    author,
		names:    []string{"id", "name"},
		subs:     map[string]Extractor{"id": &simpleExtractor{alias: "id_2"}, "name": &simpleExtractor{alias: "name_3"}},
		nullable: true,
	}
	v, err := x.Extract(ctx, Row{"id_2": nil, "name_3": nil})
	require.NoError(t, err)
	assert.Nil(t, v)

	x.nullable = false
	v, err = x.Extract(ctx, Row{"id_2": nil, "name_3": nil})
	require.NoError(t, err)
	rec := v.(*Record)
	assert.Nil(t, rec.Get("id"))
	assert.True(t, rhubarb.IsUnset(rec.Get("books")))
}

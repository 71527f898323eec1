package objectset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

func TestRecord(t *testing.T) {
	reg := library(t)
	book := model(t, reg, "Book")

	rec := NewRecord(book)
	assert.Equal(t, book, rec.Model())
	assert.Equal(t, []string{"id", "title", "author_id", "author", "writer"}, rec.Fields())
	assert.Empty(t, rec.Map())
	assert.True(t, rhubarb.IsUnset(rec.Get("title")))
	assert.True(t, rhubarb.IsUnset(rec.PK()))

	require.NoError(t, rec.Set("id", int64(1)))
	require.NoError(t, rec.Set("title", "Dune"))
	require.NoError(t, rec.Set("author_id", nil))
	assert.Equal(t, map[string]any{"id": int64(1), "title": "Dune", "author_id": nil}, rec.Map())
	assert.Equal(t, int64(1), rec.PK())

	v, ok := rec.Lookup("author_id")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = rec.Lookup("isbn")
	assert.False(t, ok)
	assert.Nil(t, rec.Get("isbn"))
	assert.True(t, rhubarb.IsUnresolvedField(rec.Set("isbn", "x")))

	clone := rec.Clone()
	assert.True(t, clone.Equal(rec))
	require.NoError(t, clone.Set("id", 1))
	assert.True(t, clone.Equal(rec), "keys are compared normalized")
	require.NoError(t, clone.Set("title", "Emma"))
	assert.False(t, clone.Equal(rec))
	assert.Equal(t, "Dune", rec.Get("title"))

	author := NewRecord(model(t, reg, "Author"))
	assert.False(t, author.Equal(rec))
}

func TestRecordCompositeKey(t *testing.T) {
	reg := NewRegistry()
	m := reg.MustRegister(schema.NewTable("Membership",
		field.BigInt("user_id"),
		field.BigInt("group_id"),
		field.Text("role"),
	).WithPrimaryKey("user_id", "group_id"))

	rec := NewRecord(m)
	require.NoError(t, rec.Set("user_id", int64(1)))
	require.NoError(t, rec.Set("group_id", int64(2)))
	assert.Equal(t, []any{int64(1), int64(2)}, rec.PK())
	assert.False(t, rec.nullPK())

	q, args, err := Save(nil, rec).Set("role", "admin").SQL()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "public"."membership" AS membership_1 SET "role" = $1::TEXT`+
		` WHERE ((membership_1."user_id" = $2::BIGINT) AND (membership_1."group_id" = $3::BIGINT))`+
		` RETURNING membership_1."user_id" AS user_id_1, membership_1."group_id" AS group_id_2, membership_1."role" AS role_3`, q)
	assert.Equal(t, []any{"admin", int64(1), int64(2)}, args)

	pks := []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(4)}}
	q, args, err = reselect(New(nil, m), pks).Only("role").SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT membership_1."user_id" AS user_id_1, membership_1."group_id" AS group_id_2, membership_1."role" AS role_3`+
		` FROM "public"."membership" AS membership_1`+
		` WHERE ((membership_1."user_id", membership_1."group_id") IN (($1::BIGINT, $2::BIGINT), ($3::BIGINT, $4::BIGINT)))`, q)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, args)
}

package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

var (
	pqUnique     = &pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "book_pkey"`}
	pqForeignKey = &pq.Error{Code: "23503", Message: `insert or update on table "book" violates foreign key constraint "book_author_id_fkey"`}
)

func TestConstraintKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ConstraintKind
	}{
		{"PQUnique", pqUnique, Unique},
		{"PQForeignKey", fmt.Errorf("insert: %w", pqForeignKey), ForeignKey},
		{"PQCheck", &pq.Error{Code: "23514", Message: `new row for relation "book" violates check constraint "rating_range"`}, Check},
		{"PQNotNull", &pq.Error{Code: "23502", Message: `null value in column "title" violates not-null constraint`}, NotNull},
		{"SQLiteUnique", errors.New("constraint failed: UNIQUE constraint failed: book.title (2067)"), Unique},
		{"SQLiteForeignKey", errors.New("FOREIGN KEY constraint failed"), ForeignKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ConstraintKindOf(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			assert.True(t, IsConstraintError(tt.err))
		})
	}
	assert.True(t, IsUniqueConstraintError(pqUnique))
	assert.False(t, IsUniqueConstraintError(pqForeignKey))
	assert.True(t, IsForeignKeyConstraintError(pqForeignKey))
	assert.True(t, IsCheckConstraintError(errors.New("CHECK constraint failed: rating_range")))
	assert.True(t, IsNotNullConstraintError(errors.New("NOT NULL constraint failed: book.title")))
	assert.False(t, IsConstraintError(nil))
	assert.False(t, IsConstraintError(&pq.Error{Code: "40001", Message: "could not serialize access due to concurrent update"}))
	assert.Equal(t, "foreign key", ForeignKey.String())
}

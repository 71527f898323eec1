package rhubarb_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/rhubarb"
)

func TestEmptyCommandError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := rhubarb.NewEmptyCommandError("insert", "no rows to insert")
		assert.Equal(t, "rhubarb: insert: no rows to insert", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := fmt.Errorf("wrapper: %w", rhubarb.NewEmptyCommandError("update", "no setters"))
		assert.True(t, errors.Is(err, rhubarb.ErrEmptyCommand))
		assert.True(t, rhubarb.IsEmptyCommand(err))
		assert.False(t, rhubarb.IsEmptyCommand(errors.New("other error")))
		assert.False(t, rhubarb.IsEmptyCommand(nil))
	})
}

func TestUnresolvedFieldError(t *testing.T) {
	err := rhubarb.NewUnresolvedFieldError("Book", "isbn")
	assert.Equal(t, `rhubarb: field "isbn" not found on model "Book"`, err.Error())
	assert.True(t, errors.Is(err, rhubarb.ErrUnresolvedField))
	assert.True(t, rhubarb.IsUnresolvedField(fmt.Errorf("select: %w", err)))
	assert.False(t, rhubarb.IsUnresolvedField(rhubarb.ErrEmptyCommand))
}

func TestInvalidSQLEmissionError(t *testing.T) {
	err := rhubarb.NewInvalidSQLEmissionError("function selector", "evaluated after extraction")
	assert.Equal(t, "rhubarb: cannot emit sql for function selector: evaluated after extraction", err.Error())
	assert.True(t, errors.Is(err, rhubarb.ErrInvalidSQLEmission))
	assert.True(t, rhubarb.IsInvalidSQLEmission(errors.Join(errors.New("first"), err)))
}

func TestCacheSyncUnavailableError(t *testing.T) {
	err := rhubarb.NewCacheSyncUnavailableError("author", "field not fetched by parent")
	assert.Equal(t, `rhubarb: cache sync unavailable for field "author": field not fetched by parent`, err.Error())
	assert.Equal(t, "rhubarb: cache sync unavailable: parent not loaded",
		rhubarb.NewCacheSyncUnavailableError("", "parent not loaded").Error())
	assert.True(t, rhubarb.IsCacheSyncUnavailable(err))
	assert.True(t, rhubarb.IsCacheSyncUnavailable(rhubarb.ErrCacheSyncUnavailable))
	assert.False(t, rhubarb.IsCacheSyncUnavailable(nil))
}

func TestIsConstraintError(t *testing.T) {
	unique := &pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "author_pkey"`}
	assert.True(t, rhubarb.IsConstraintError(unique))
	assert.True(t, rhubarb.IsUniqueConstraintError(unique))
	assert.False(t, rhubarb.IsForeignKeyConstraintError(unique))
	assert.True(t, rhubarb.IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, rhubarb.IsConstraintError(errors.New("connection refused")))
}

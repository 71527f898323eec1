// Package mixin provides reusable column sets for table declarations.
//
//	schema.NewTable("Book",
//	    field.Text("title"),
//	).Mixin(mixin.ID{}, mixin.Time{})
//
// Mixin fields are placed before the table's own fields.
package mixin

import (
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []schema.Field { return nil }

// schema mixin must implement `Mixin` interface.
var _ schema.Mixin = (*Schema)(nil)

// ID adds a UUID primary key generated on insert.
type ID struct{ Schema }

// Fields of the ID mixin.
func (ID) Fields() []schema.Field {
	return []schema.Field{
		field.UUID("id").InsertDefault(field.GenRandomUUID),
	}
}

// CreateTime adds the created_at column set on insert.
type CreateTime struct{ Schema }

// Fields of the create time mixin.
func (CreateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("created_at").InsertDefault(field.Now),
	}
}

// UpdateTime adds the updated_at column, refreshed on every update.
type UpdateTime struct{ Schema }

// Fields of the update time mixin.
func (UpdateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("updated_at").
			InsertDefault(field.Now).
			UpdateDefault(field.Now),
	}
}

// Time composes CreateTime and UpdateTime.
type Time struct{ Schema }

// Fields of the time mixin.
func (Time) Fields() []schema.Field {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// SoftDelete adds a nullable deleted_at column.
type SoftDelete struct{ Schema }

// Fields of the soft delete mixin.
func (SoftDelete) Fields() []schema.Field {
	return []schema.Field{
		field.Time("deleted_at").Optional(),
	}
}

// TimeSoftDelete composes Time and SoftDelete.
type TimeSoftDelete struct{ Schema }

// Fields of the time soft delete mixin.
func (TimeSoftDelete) Fields() []schema.Field {
	return append(Time{}.Fields(), SoftDelete{}.Fields()...)
}

// TenantID adds the tenant_id column of multi-tenant tables. Combined
// with privacy.TenantRule and privacy.TenantQueryRule, statements only
// see the rows of the viewer tenant.
type TenantID struct{ Schema }

// Fields of the tenant mixin.
func (TenantID) Fields() []schema.Field {
	return []schema.Field{
		field.Text("tenant_id"),
	}
}

var (
	_ schema.Mixin = (*ID)(nil)
	_ schema.Mixin = (*Time)(nil)
	_ schema.Mixin = (*SoftDelete)(nil)
	_ schema.Mixin = (*TimeSoftDelete)(nil)
	_ schema.Mixin = (*TenantID)(nil)
)

package field

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// A Type is the SQL type a column or a bound parameter is cast to.
type Type string

// List of the SQL types understood by the statement builder.
const (
	TypeBigInt      Type = "BIGINT"
	TypeFloat       Type = "FLOAT"
	TypeText        Type = "TEXT"
	TypeBoolean     Type = "BOOLEAN"
	TypeBytea       Type = "BYTEA"
	TypeTimestamptz Type = "TIMESTAMPTZ"
	TypeDate        Type = "DATE"
	TypeUUID        Type = "UUID"
	TypeJSONB       Type = "JSONB"
)

// String returns the SQL spelling of the type.
func (t Type) String() string { return string(t) }

// Array returns the array type of t.
func (t Type) Array() Type { return t + "[]" }

// IsArray reports if t is an array type.
func (t Type) IsArray() bool {
	return len(t) > 2 && t[len(t)-2:] == "[]"
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
	jsonType = reflect.TypeOf(json.RawMessage(nil))
)

// TypeOf infers the SQL type of a runtime value. It reports false
// for values whose type has no SQL counterpart, e.g. nil.
func TypeOf(v any) (Type, bool) {
	if v == nil {
		return "", false
	}
	return typeOf(reflect.TypeOf(v))
}

func typeOf(t reflect.Type) (Type, bool) {
	switch t {
	case timeType:
		return TypeTimestamptz, true
	case uuidType:
		return TypeUUID, true
	case jsonType:
		return TypeJSONB, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeBigInt, true
	case reflect.Float32, reflect.Float64:
		return TypeFloat, true
	case reflect.String:
		return TypeText, true
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return TypeJSONB, true
		}
	case reflect.Pointer:
		return typeOf(t.Elem())
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBytea, true
		}
		if et, ok := typeOf(t.Elem()); ok && !et.IsArray() {
			return et.Array(), true
		}
	}
	return "", false
}

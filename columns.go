package tenantstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConvertFunc converts one in-memory column value into the provider's
// native value wrapper.
type ConvertFunc func(v interface{}) (Value, error)

// ColumnMapping is a type-indexed table of conversion rules from typed
// column values to provider values. Built-in rules cover the primitive
// column types; callers may register additional rules or override a
// built-in one (an override replaces the previous rule).
type ColumnMapping struct {
	rules *xsync.MapOf[reflect.Type, ConvertFunc]
}

// NewColumnMapping creates a mapping with the built-in rules installed
func NewColumnMapping() *ColumnMapping {
	m := &ColumnMapping{rules: xsync.NewMapOf[reflect.Type, ConvertFunc]()}
	m.registerBuiltins()
	return m
}

func (m *ColumnMapping) registerBuiltins() {
	m.Register(reflect.TypeOf(""), func(v interface{}) (Value, error) {
		return StringValue(v.(string)), nil
	})
	m.Register(reflect.TypeOf(int(0)), func(v interface{}) (Value, error) {
		return IntValue(v.(int)), nil
	})
	m.Register(reflect.TypeOf(int32(0)), func(v interface{}) (Value, error) {
		return IntValue(v.(int32)), nil
	})
	m.Register(reflect.TypeOf(int64(0)), func(v interface{}) (Value, error) {
		return IntValue(v.(int64)), nil
	})
	m.Register(reflect.TypeOf(float32(0)), func(v interface{}) (Value, error) {
		return FloatValue(v.(float32)), nil
	})
	m.Register(reflect.TypeOf(float64(0)), func(v interface{}) (Value, error) {
		return FloatValue(v.(float64)), nil
	})
	m.Register(reflect.TypeOf(false), func(v interface{}) (Value, error) {
		return BoolValue(v.(bool)), nil
	})
	m.Register(reflect.TypeOf([]byte(nil)), func(v interface{}) (Value, error) {
		return BytesValue(v.([]byte)), nil
	})
	m.Register(reflect.TypeOf(time.Time{}), func(v interface{}) (Value, error) {
		return TimestampValue(v.(time.Time)), nil
	})
}

// Register installs or replaces the rule for an exact type
func (m *ColumnMapping) Register(t reflect.Type, fn ConvertFunc) {
	m.rules.Store(t, fn)
}

// RegisterFor installs a rule keyed by the type of the sample value
func (m *ColumnMapping) RegisterFor(sample interface{}, fn ConvertFunc) {
	m.Register(reflect.TypeOf(sample), fn)
}

// Convert maps a column value to the provider value wrapper.
//
// Resolution order: nil becomes the distinguished null marker; an exact
// type rule wins; otherwise named integer types (enumerations) fall back
// to their ordinal as an integer value, other primitives to the rule for
// their underlying kind, and structured messages to their canonical JSON
// serialization as text. Unconvertible values are an argument error.
func (m *ColumnMapping) Convert(v interface{}) (Value, error) {
	if v == nil {
		return NullValue{}, nil
	}
	if val, ok := v.(Value); ok {
		return val, nil
	}

	t := reflect.TypeOf(v)
	if fn, ok := m.rules.Load(t); ok {
		return fn(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntValue(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return NullValue{}, nil
		}
		return m.Convert(rv.Elem().Interface())
	case reflect.Struct, reflect.Map, reflect.Slice:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
				"type":   t.String(),
				"reason": fmt.Sprintf("cannot serialize column value: %v", err),
			})
		}
		return StringValue(data), nil
	}

	return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
		"type":   t.String(),
		"reason": "no conversion rule for column value type",
	})
}

// ConvertAll converts a flat bag of named column values
func (m *ColumnMapping) ConvertAll(columns map[string]interface{}) (map[string]Value, error) {
	out := make(map[string]Value, len(columns))
	for name, v := range columns {
		converted, err := m.Convert(v)
		if err != nil {
			return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
				"column": name,
				"reason": err.Error(),
			})
		}
		out[name] = converted
	}
	return out, nil
}

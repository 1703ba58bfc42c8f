package tenantstore

import (
	"bytes"
	"time"
)

// Key addresses one entity in the provider: project scope, tenant
// namespace, kind, and record name. Keys are derived per operation and
// never stored as data. Comparable; usable as a map key.
type Key struct {
	ProjectID string
	Namespace string
	Kind      string
	Name      string
}

// String renders the key path for logs and error context
func (k Key) String() string {
	return k.ProjectID + "/" + k.Namespace + "/" + k.Kind + "/" + k.Name
}

// RecordID returns the name component as a record identifier
func (k Key) RecordID() RecordID {
	return RecordID(k.Name)
}

// KeyFactory builds keys pre-scoped to one project, namespace, and kind
type KeyFactory struct {
	projectID string
	namespace string
	kind      Kind
}

// NewKey builds a key for the given record identifier
func (f *KeyFactory) NewKey(id RecordID) Key {
	return Key{
		ProjectID: f.projectID,
		Namespace: f.namespace,
		Kind:      f.kind.String(),
		Name:      id.String(),
	}
}

// Kind returns the kind the factory is scoped to
func (f *KeyFactory) Kind() Kind {
	return f.kind
}

// Entity is one stored document: a key plus a flat bag of named,
// provider-typed property values.
type Entity struct {
	Key        Key
	Properties map[string]Value
}

// NewEntity creates an entity with an empty property bag
func NewEntity(key Key) *Entity {
	return &Entity{Key: key, Properties: make(map[string]Value)}
}

// Set assigns a property value
func (e *Entity) Set(name string, v Value) *Entity {
	e.Properties[name] = v
	return e
}

// Get returns a property value, or NullValue if absent
func (e *Entity) Get(name string) Value {
	if v, ok := e.Properties[name]; ok {
		return v
	}
	return NullValue{}
}

// Clone returns a deep copy. Providers hand out clones so callers cannot
// mutate stored state through shared maps.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := NewEntity(e.Key)
	for name, v := range e.Properties {
		c.Properties[name] = v
	}
	return c
}

// Value is the provider's native property value wrapper.
// The closed set of implementations mirrors what the document database
// can index: text, integers, floats, booleans, blobs, timestamps, null.
type Value interface {
	isValue()
}

type StringValue string

type IntValue int64

type FloatValue float64

type BoolValue bool

type BytesValue []byte

type TimestampValue time.Time

type NullValue struct{}

func (StringValue) isValue()    {}
func (IntValue) isValue()       {}
func (FloatValue) isValue()     {}
func (BoolValue) isValue()      {}
func (BytesValue) isValue()     {}
func (TimestampValue) isValue() {}
func (NullValue) isValue()      {}

// valuesEqual reports whether two provider values compare equal
func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case NullValue:
		_, ok := b.(NullValue)
		return ok
	case BytesValue:
		bv, ok := b.(BytesValue)
		return ok && bytes.Equal(av, bv)
	case TimestampValue:
		bv, ok := b.(TimestampValue)
		return ok && time.Time(av).Equal(time.Time(bv))
	case IntValue:
		switch bv := b.(type) {
		case IntValue:
			return av == bv
		case FloatValue:
			return float64(av) == float64(bv)
		}
		return false
	case FloatValue:
		switch bv := b.(type) {
		case FloatValue:
			return av == bv
		case IntValue:
			return float64(av) == float64(bv)
		}
		return false
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av == bv
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av == bv
	}
	return false
}

// compareValues orders two provider values: -1, 0, or +1.
// Values of incomparable types order arbitrarily but deterministically,
// matching how the provider treats mixed-type properties.
func compareValues(a, b Value) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case NullValue:
		return 0
	case IntValue:
		return compareFloats(float64(av), numericOf(b))
	case FloatValue:
		return compareFloats(float64(av), numericOf(b))
	case TimestampValue:
		bv := b.(TimestampValue)
		switch {
		case time.Time(av).Before(time.Time(bv)):
			return -1
		case time.Time(av).After(time.Time(bv)):
			return 1
		}
		return 0
	case BoolValue:
		bv := b.(BoolValue)
		switch {
		case !bool(av) && bool(bv):
			return -1
		case bool(av) && !bool(bv):
			return 1
		}
		return 0
	case StringValue:
		bv := b.(StringValue)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case BytesValue:
		return bytes.Compare(av, b.(BytesValue))
	}
	return 0
}

// valueRank groups value types for cross-type ordering. Integers and
// floats share a rank so numeric comparisons work across the two.
func valueRank(v Value) int {
	switch v.(type) {
	case NullValue:
		return 0
	case IntValue, FloatValue:
		return 1
	case TimestampValue:
		return 2
	case BoolValue:
		return 3
	case StringValue:
		return 4
	case BytesValue:
		return 5
	}
	return 6
}

func numericOf(v Value) float64 {
	switch n := v.(type) {
	case IntValue:
		return float64(n)
	case FloatValue:
		return float64(n)
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

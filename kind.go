package tenantstore

import (
	"reflect"
	"strings"
)

// forbiddenKindPrefix marks names the provider reserves for its own
// metadata kinds; user kinds must never collide with them.
const forbiddenKindPrefix = "__"

// Kind names a logical record type, analogous to a table name.
// Immutable; equality by underlying string.
type Kind struct {
	value string
}

// NewKind creates a Kind from an explicit name.
// Names starting with the reserved double-underscore prefix are rejected.
func NewKind(name string) (Kind, error) {
	if name == "" {
		return Kind{}, WithContext(ErrInvalidKind, map[string]interface{}{
			"reason": "kind name must not be empty",
		})
	}
	if strings.HasPrefix(name, forbiddenKindPrefix) {
		return Kind{}, WithContext(ErrInvalidKind, map[string]interface{}{
			"name":   name,
			"reason": "kind name must not start with " + forbiddenKindPrefix,
		})
	}
	return Kind{value: name}, nil
}

// KindOf derives a Kind from a source value. Accepted sources:
//   - string: used verbatim; a type URL ("host/qualified.Name") is reduced
//     to the part after the last slash
//   - reflect.Type: the type's qualified name
//   - anything else: the qualified name of the value's dynamic type
func KindOf(source interface{}) (Kind, error) {
	switch s := source.(type) {
	case string:
		if i := strings.LastIndexByte(s, '/'); i >= 0 {
			s = s[i+1:]
		}
		return NewKind(s)
	case Kind:
		return s, nil
	case reflect.Type:
		return NewKind(qualifiedTypeName(s))
	default:
		t := reflect.TypeOf(source)
		if t == nil {
			return Kind{}, WithContext(ErrInvalidKind, map[string]interface{}{
				"reason": "cannot derive kind from nil",
			})
		}
		return NewKind(qualifiedTypeName(t))
	}
}

// MustKind is NewKind that panics on invalid names. For package-level
// kind constants whose validity is established by inspection.
func MustKind(name string) Kind {
	k, err := NewKind(name)
	if err != nil {
		panic(err)
	}
	return k
}

func qualifiedTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// String returns the kind name
func (k Kind) String() string {
	return k.value
}

// IsZero reports whether the kind is the uninitialized zero value
func (k Kind) IsZero() bool {
	return k.value == ""
}

// RecordID is an opaque identifier of a stored record, used as the name
// component of a provider key. Immutable; equality by value.
type RecordID string

// String returns the identifier value
func (id RecordID) String() string {
	return string(id)
}

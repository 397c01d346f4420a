package typeconv

import (
	"reflect"

	"github.com/reoring/typeconv/typedesc"
)

// EnumMember re-exports the description-level member type for registration
// convenience.
type EnumMember = typedesc.EnumMember

// RegisterEnum declares the members of a named Go type, making it resolve
// and (de)serialize as an enumeration over exactly those values.
func RegisterEnum[T any](members ...EnumMember) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	typedesc.RegisterEnum(rt, members)
	clearMethodCache()
}

// Member builds one enum member.
func Member[T any](name string, value T) EnumMember {
	return EnumMember{Name: name, Value: value}
}

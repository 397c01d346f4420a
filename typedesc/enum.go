package typedesc

import (
	"reflect"
	"sync"
)

var (
	enumMu sync.RWMutex
	enums  = map[reflect.Type][]EnumMember{}
)

// RegisterEnum declares the members of a named type, making it resolve to an
// Enum description. Members keep registration order; re-registration replaces
// the member list.
func RegisterEnum(rt reflect.Type, members []EnumMember) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enums[rt] = append([]EnumMember(nil), members...)
	// registrations happen at startup; re-resolving is cheap
	resetResolvedCache()
}

// EnumMembersOf returns the registered members for rt, if any.
func EnumMembersOf(rt reflect.Type) ([]EnumMember, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	ms, ok := enums[rt]
	return ms, ok
}

// ResetEnums clears all enum registrations; intended for test isolation.
func ResetEnums() {
	enumMu.Lock()
	defer enumMu.Unlock()
	enums = map[reflect.Type][]EnumMember{}
	resetResolvedCache()
}

package typeconv

import (
	"strings"
	"sync"
)

// Aliaser maps an in-memory field name to its wire form.
type Aliaser func(string) string

// IdentityAliaser leaves field names unchanged.
func IdentityAliaser(s string) string { return s }

// CamelCaseAliaser converts snake_case names to camelCase on the wire.
func CamelCaseAliaser(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

// Settings is the process-wide configuration captured by value into every
// compiled method. Mutate it only through SetSettings, which clears the
// compiled-method cache; the documented discipline is configure at startup,
// then run.
type Settings struct {
	Aliaser              Aliaser
	AdditionalProperties bool
	Coercion             bool
	Coercer              Coercer
	FallBackOnDefault    bool
	ExcludeUnset         bool
	ExcludeDefaults      bool
	ExcludeNone          bool
	CheckSerializedTypes bool
}

// DefaultSettings mirrors the engine defaults: strict keys, no coercion,
// exclude-unset honored when presence metadata is supplied.
func DefaultSettings() Settings {
	return Settings{
		Aliaser:      IdentityAliaser,
		Coercer:      DefaultCoercer,
		ExcludeUnset: true,
	}
}

var (
	settingsMu sync.RWMutex
	settings   = DefaultSettings()
)

// CurrentSettings returns a copy of the active settings.
func CurrentSettings() Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

// SetSettings replaces the active settings and clears the compiled-method
// cache, since compiled procedures close over settings values.
func SetSettings(s Settings) {
	if s.Aliaser == nil {
		s.Aliaser = IdentityAliaser
	}
	if s.Coercer == nil {
		s.Coercer = DefaultCoercer
	}
	settingsMu.Lock()
	settings = s
	settingsMu.Unlock()
	clearMethodCache()
}

// ResetSettings restores defaults; intended for test isolation.
func ResetSettings() { SetSettings(DefaultSettings()) }

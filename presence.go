package typeconv

// Presence is the bit flag collected by WithMeta deserialization.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Field appeared in the input.
	PresenceWasNull                             // Field value was null.
	PresenceDefaultApplied                      // Default value was applied.
)

// PresenceMap maps JSON Pointers to Presence flags. It is the side channel
// that lets exclude-unset serialization distinguish an absent field from one
// explicitly set to its default.
type PresenceMap map[string]Presence

// Decoded carries a deserialized value along with presence metadata.
type Decoded[T any] struct {
	Value    T
	Presence PresenceMap
}

// Seen reports whether the given JSON Pointer was present in the input.
func (pm PresenceMap) Seen(path string) bool {
	return pm[path]&(PresenceSeen|PresenceWasNull) != 0
}

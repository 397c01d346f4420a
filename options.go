package typeconv

import (
	"fmt"
	"strings"
)

// Options overrides the active Settings for one call or compilation. Nil
// pointer fields inherit the corresponding setting. When several Options
// values are passed, the last one wins.
type Options struct {
	Aliaser              Aliaser
	AdditionalProperties *bool
	Coercion             *bool
	Coercer              Coercer
	FallBackOnDefault    *bool
	ExcludeUnset         *bool
	ExcludeDefaults      *bool
	ExcludeNone          *bool
	CheckSerializedTypes *bool

	// Conversions supplies dynamic, call-site-only conversions. They apply
	// to the value's own type and propagate across container boundaries,
	// but are discarded once a non-container type consumed (or declined)
	// them.
	Conversions []ConversionEntry

	// Presence feeds exclude-unset serialization with the presence metadata
	// collected by DeserializeWithMeta. Ignored on deserialization.
	Presence PresenceMap
}

// Bool is a convenience for Options pointer fields.
func Bool(b bool) *bool { return &b }

// compiledOptions is the immutable snapshot a compiled method closes over.
// It participates in the cache key, so identical snapshots share compiled
// procedures.
type compiledOptions struct {
	aliaser              Aliaser
	additionalProperties bool
	coercion             bool
	coercer              Coercer
	fallBackOnDefault    bool
	excludeUnset         bool
	excludeDefaults      bool
	excludeNone          bool
	checkSerializedTypes bool
	conversions          []ConversionEntry
}

func resolveOptions(opts []Options) compiledOptions {
	s := CurrentSettings()
	co := compiledOptions{
		aliaser:              s.Aliaser,
		additionalProperties: s.AdditionalProperties,
		coercion:             s.Coercion,
		coercer:              s.Coercer,
		fallBackOnDefault:    s.FallBackOnDefault,
		excludeUnset:         s.ExcludeUnset,
		excludeDefaults:      s.ExcludeDefaults,
		excludeNone:          s.ExcludeNone,
		checkSerializedTypes: s.CheckSerializedTypes,
	}
	if len(opts) == 0 {
		return co
	}
	o := opts[len(opts)-1]
	if o.Aliaser != nil {
		co.aliaser = o.Aliaser
	}
	if o.AdditionalProperties != nil {
		co.additionalProperties = *o.AdditionalProperties
	}
	if o.Coercion != nil {
		co.coercion = *o.Coercion
	}
	if o.Coercer != nil {
		co.coercer = o.Coercer
	}
	if o.FallBackOnDefault != nil {
		co.fallBackOnDefault = *o.FallBackOnDefault
	}
	if o.ExcludeUnset != nil {
		co.excludeUnset = *o.ExcludeUnset
	}
	if o.ExcludeDefaults != nil {
		co.excludeDefaults = *o.ExcludeDefaults
	}
	if o.ExcludeNone != nil {
		co.excludeNone = *o.ExcludeNone
	}
	if o.CheckSerializedTypes != nil {
		co.checkSerializedTypes = *o.CheckSerializedTypes
	}
	co.conversions = o.Conversions
	return co
}

// withoutConversions drops dynamic conversions; called when descending past
// a non-container boundary.
func (co compiledOptions) withoutConversions() compiledOptions {
	co.conversions = nil
	return co
}

// key renders the snapshot into the cache-key suffix. Function options are
// keyed by identity: distinct aliasers or coercers compile distinct methods.
func (co compiledOptions) key() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "a=%v;c=%v;", funcID(co.aliaser), funcID(co.coercer))
	flag := func(name string, v bool) {
		if v {
			b.WriteString(name + ";")
		}
	}
	flag("ap", co.additionalProperties)
	flag("co", co.coercion)
	flag("fb", co.fallBackOnDefault)
	flag("xu", co.excludeUnset)
	flag("xd", co.excludeDefaults)
	flag("xn", co.excludeNone)
	flag("ck", co.checkSerializedTypes)
	for _, e := range co.conversions {
		b.WriteString(e.fingerprint() + ";")
	}
	return b.String()
}

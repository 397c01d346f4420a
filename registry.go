package typeconv

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/reoring/typeconv/typedesc"
)

// Converter bridges two representations of one value. It returns either the
// converted value, a *ValidationError (a recoverable validation outcome), or
// any other error, which the engine treats as fatal (ConverterError).
type Converter func(v any) (any, error)

// ConversionEntry is one registered or call-site-supplied conversion.
// For deserialization, Source describes the wire-side value deserialized
// before Fn runs and Class is the in-memory type Fn produces. For
// serialization, Class is the in-memory type Fn consumes and Target
// describes what Fn returns.
type ConversionEntry struct {
	Source typedesc.Type
	Target typedesc.Type
	Class  reflect.Type
	Fn     Converter
}

func (e ConversionEntry) fingerprint() string {
	fp := "conv{"
	if e.Source != nil {
		fp += "src=" + e.Source.Fingerprint()
	}
	if e.Target != nil {
		fp += ",tgt=" + e.Target.Fingerprint()
	}
	if e.Class != nil {
		fp += ",cls=" + e.Class.String()
	}
	return fp + fmt.Sprintf(",fn=%v}", reflect.ValueOf(e.Fn).Pointer())
}

// conversionRegistry is the process-wide conversion table. It is mutated by
// registration calls at startup and read (never mutated) during method
// compilation.
type conversionRegistry struct {
	mu            sync.RWMutex
	deserializers map[reflect.Type][]ConversionEntry
	serializers   map[reflect.Type]ConversionEntry
	// interface classes in registration order, for the ancestor walk
	serializerIfaces []reflect.Type
}

func newConversionRegistry() *conversionRegistry {
	return &conversionRegistry{
		deserializers: map[reflect.Type][]ConversionEntry{},
		serializers:   map[reflect.Type]ConversionEntry{},
	}
}

var registry = newConversionRegistry()

func init() {
	typedesc.HasConversion = func(rt reflect.Type) bool {
		registry.mu.RLock()
		defer registry.mu.RUnlock()
		if len(registry.deserializers[rt]) > 0 {
			return true
		}
		_, ok := registry.serializers[rt]
		return ok
	}
}

// RegisterDeserializer appends a conversion deserializing target values from
// source-shaped wire data. Multiple registrations for one target form an
// implicit union of sources, tried in registration order. Registering the
// identical (source, target, fn) triple again is a no-op.
func RegisterDeserializer(source typedesc.Type, target reflect.Type, fn Converter) {
	entry := ConversionEntry{Source: source, Class: target, Fn: fn}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, prev := range registry.deserializers[target] {
		if prev.Source.Fingerprint() == source.Fingerprint() &&
			reflect.ValueOf(prev.Fn).Pointer() == reflect.ValueOf(fn).Pointer() {
			return
		}
	}
	registry.deserializers[target] = append(registry.deserializers[target], entry)
	typedesc.ResetResolved()
	clearMethodCache()
}

// RegisterSerializer registers the conversion serializing class values into
// target-shaped wire data. Last write wins per exact class. A serializer
// registered for an interface applies to every implementing class unless a
// more exact entry exists.
func RegisterSerializer(class reflect.Type, target typedesc.Type, fn Converter) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.serializers[class]; !exists && class.Kind() == reflect.Interface {
		registry.serializerIfaces = append(registry.serializerIfaces, class)
	}
	registry.serializers[class] = ConversionEntry{Class: class, Target: target, Fn: fn}
	typedesc.ResetResolved()
	clearMethodCache()
}

// ResetRegistry clears all conversion entries, built-in ones included, along
// with the compiled-method cache; intended for test isolation.
func ResetRegistry() {
	registry.mu.Lock()
	registry.deserializers = map[reflect.Type][]ConversionEntry{}
	registry.serializers = map[reflect.Type]ConversionEntry{}
	registry.serializerIfaces = nil
	registry.mu.Unlock()
	typedesc.ResetResolved()
	clearMethodCache()
}

// resolveDeserialization returns the ordered conversion list for a target
// class, or nil.
func (r *conversionRegistry) resolveDeserialization(rt reflect.Type) []ConversionEntry {
	if rt == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.deserializers[rt]
	if len(entries) == 0 {
		return nil
	}
	return append([]ConversionEntry(nil), entries...)
}

// resolveSerialization finds the entry for a class: the exact class first,
// then registered interfaces the class implements, in registration order.
func (r *conversionRegistry) resolveSerialization(rt reflect.Type) (ConversionEntry, bool) {
	if rt == nil {
		return ConversionEntry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.serializers[rt]; ok {
		return e, true
	}
	for _, iface := range r.serializerIfaces {
		if rt.Implements(iface) {
			return r.serializers[iface], true
		}
	}
	return ConversionEntry{}, false
}

// AddDeserializer registers fn as a deserializer producing T from
// wire-shaped S values, deriving both descriptions from the signature.
func AddDeserializer[S, T any](fn func(S) (T, error)) {
	st := reflect.TypeOf((*S)(nil)).Elem()
	tt := reflect.TypeOf((*T)(nil)).Elem()
	source := typedesc.MustFromType(st)
	RegisterDeserializer(source, tt, func(v any) (any, error) {
		sv, err := assignAs[S](v)
		if err != nil {
			return nil, err
		}
		return fn(sv)
	})
}

// AddSerializer registers fn as the serializer for T, emitting wire-shaped W
// values.
func AddSerializer[T, W any](fn func(T) (W, error)) {
	tt := reflect.TypeOf((*T)(nil)).Elem()
	wt := reflect.TypeOf((*W)(nil)).Elem()
	target := typedesc.MustFromType(wt)
	RegisterSerializer(tt, target, func(v any) (any, error) {
		tv, err := assignAs[T](v)
		if err != nil {
			return nil, err
		}
		return fn(tv)
	})
}

// assignAs converts v into T, allowing kind-preserving conversions the way
// struct construction does.
func assignAs[T any](v any) (T, error) {
	if tv, ok := v.(T); ok {
		return tv, nil
	}
	var zero T
	rt := reflect.TypeOf((*T)(nil)).Elem()
	rv, err := coerceToGo(v, rt)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

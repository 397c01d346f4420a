package typeconv

import (
	"context"
	"reflect"

	"github.com/reoring/typeconv/typedesc"
)

// CompiledMethod is a cached (de)serialization procedure. Two values
// obtained for the same (description, options) pair compare equal, so a
// caller can observe that compilation happened once.
type CompiledMethod struct {
	ref *methodRef
}

// Call runs the compiled procedure. For deserialization the error is either
// a *ValidationError or a fatal failure; serialization errors are always
// fatal.
func (m CompiledMethod) Call(ctx context.Context, v any) (any, error) {
	return m.ref.call(ctx, v)
}

// CompileDeserializer compiles (or returns the cached) deserialization
// procedure for a description under the given options.
func CompileDeserializer(t typedesc.Type, opts ...Options) (CompiledMethod, error) {
	ref, err := compileDeserializer(t, resolveOptions(opts))
	if err != nil {
		return CompiledMethod{}, err
	}
	return CompiledMethod{ref: ref}, nil
}

// CompileSerializer compiles (or returns the cached) serialization
// procedure for a description under the given options.
func CompileSerializer(t typedesc.Type, opts ...Options) (CompiledMethod, error) {
	ref, err := compileSerializer(t, resolveOptions(opts))
	if err != nil {
		return CompiledMethod{}, err
	}
	return CompiledMethod{ref: ref}, nil
}

// Deserialize validates and converts decoded wire data (the output of the
// source packages, or any compatible primitive tree) into a T.
func Deserialize[T any](ctx context.Context, data any, opts ...Options) (T, error) {
	var zero T
	rt := reflect.TypeOf((*T)(nil)).Elem()
	t, err := typedesc.FromType(rt)
	if err != nil {
		return zero, err
	}
	m, err := CompileDeserializer(t, opts...)
	if err != nil {
		return zero, err
	}
	out, err := m.Call(ctx, data)
	if err != nil {
		return zero, err
	}
	return finishAs[T](out, rt)
}

// DeserializeType deserializes against an explicit description, for
// programmatically built descriptions without a Go type.
func DeserializeType(ctx context.Context, t typedesc.Type, data any, opts ...Options) (any, error) {
	m, err := CompileDeserializer(t, opts...)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, data)
}

// DeserializeWithMeta deserializes like Deserialize and additionally records
// which wire keys were present, null or defaulted, keyed by JSON Pointer.
// The resulting PresenceMap feeds exclude-unset serialization.
func DeserializeWithMeta[T any](ctx context.Context, data any, opts ...Options) (Decoded[T], error) {
	st := &presenceState{pm: PresenceMap{"/": PresenceSeen}}
	ctx = withPresenceState(ctx, st)
	ctx = withPath(ctx, "")
	v, err := Deserialize[T](ctx, data, opts...)
	if err != nil {
		return Decoded[T]{}, err
	}
	return Decoded[T]{Value: v, Presence: st.pm}, nil
}

// Serialize converts an in-memory T into its wire-shaped primitive tree,
// ready for the source packages to encode.
func Serialize[T any](ctx context.Context, v T, opts ...Options) (any, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	t, err := typedesc.FromType(rt)
	if err != nil {
		return nil, err
	}
	return serializeWith(ctx, t, v, opts)
}

// SerializeType serializes against an explicit description.
func SerializeType(ctx context.Context, t typedesc.Type, v any, opts ...Options) (any, error) {
	return serializeWith(ctx, t, v, opts)
}

// SerializeAny serializes by the value's runtime type.
func SerializeAny(ctx context.Context, v any, opts ...Options) (any, error) {
	dv := derefValue(v)
	if dv == nil {
		return nil, nil
	}
	t, err := typedesc.FromType(reflect.TypeOf(dv))
	if err != nil {
		return nil, err
	}
	return serializeWith(ctx, t, dv, opts)
}

func serializeWith(ctx context.Context, t typedesc.Type, v any, opts []Options) (any, error) {
	m, err := CompileSerializer(t, opts...)
	if err != nil {
		return nil, err
	}
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i].Presence != nil {
			ctx = withPresence(ctx, opts[i].Presence)
			ctx = withPath(ctx, "")
			break
		}
	}
	return m.Call(ctx, v)
}

func finishAs[T any](out any, rt reflect.Type) (T, error) {
	var zero T
	if tv, ok := out.(T); ok {
		return tv, nil
	}
	rv, err := coerceToGo(out, rt)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

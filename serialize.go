package typeconv

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/reoring/typeconv/typedesc"
)

// compileSerializer returns the cached serialization procedure for the
// (description, options) pair. Serialization failures are programming
// errors: the in-memory value does not match its declared description, so
// errors here are fatal and never *ValidationError.
func compileSerializer(t typedesc.Type, opts compiledOptions) (*methodRef, error) {
	c := &serCompiler{opts: opts}
	return c.compile(t)
}

type serCompiler struct {
	opts      compiledOptions
	skipClass reflect.Type
}

func (c *serCompiler) sub() *serCompiler { return &serCompiler{opts: c.opts} }

func (c *serCompiler) inner() *serCompiler {
	return &serCompiler{opts: c.opts.withoutConversions()}
}

func (c *serCompiler) cacheKey(t typedesc.Type) string {
	key := "ser|" + t.Fingerprint() + "|" + c.opts.key()
	if c.skipClass != nil {
		key += "|self=" + c.skipClass.String()
	}
	return key
}

func (c *serCompiler) compile(t typedesc.Type) (*methodRef, error) {
	key := c.cacheKey(t)
	if ref, ok := cachedRef(key); ok {
		return ref, nil
	}
	ref := &methodRef{}
	storeRef(key, ref)
	m, err := c.expand(t)
	if err != nil {
		dropRef(key)
		return nil, err
	}
	ref.m = m
	return ref, nil
}

func (c *serCompiler) expand(t typedesc.Type) (Method, error) {
	if m, ok, err := c.convert(t); ok || err != nil {
		return m, err
	}
	c = c.sub()
	switch tt := t.(type) {
	case *typedesc.Primitive:
		return c.primitive(tt)
	case *typedesc.Collection:
		return c.collection(tt)
	case *typedesc.Mapping:
		return c.mapping(tt)
	case *typedesc.Tuple:
		return c.tuple(tt)
	case *typedesc.Union:
		return c.union(tt)
	case *typedesc.Object:
		return c.object(tt)
	case *typedesc.Enum:
		return c.enum(tt)
	case *typedesc.Literal:
		return c.literal(tt)
	case *typedesc.Annotated:
		return c.annotated(tt)
	case *typedesc.Generic:
		if tt.Expand == nil {
			return nil, fmt.Errorf("typeconv: generic %s has no expansion", tt.Origin)
		}
		ref, err := c.compile(tt.Expand(tt.Args))
		if err != nil {
			return nil, err
		}
		return ref.call, nil
	case *typedesc.Lazy:
		ref, err := c.compile(tt.Force())
		if err != nil {
			return nil, err
		}
		return ref.call, nil
	case *typedesc.Any:
		return c.anyValue, nil
	default:
		return nil, fmt.Errorf("typeconv: unknown description %T", t)
	}
}

// convert intercepts serialization for classes with a registered or dynamic
// conversion. The conversion maps the value first, then the target
// description's serializer takes over.
func (c *serCompiler) convert(t typedesc.Type) (Method, bool, error) {
	class := classOf(t)
	if class == nil || class == c.skipClass {
		return nil, false, nil
	}
	entry, found := ConversionEntry{}, false
	for _, e := range c.opts.conversions {
		if e.Target != nil && e.Fn != nil && classMatches(e.Class, class) {
			entry, found = e, true
			break
		}
	}
	if !found {
		entry, found = registry.resolveSerialization(class)
	}
	if !found || entry.Target == nil {
		return nil, false, nil
	}
	tc := c.inner()
	if classOf(entry.Target) == class {
		tc.skipClass = class
	}
	targetRef, err := tc.compile(entry.Target)
	if err != nil {
		return nil, false, err
	}
	fn := entry.Fn
	target := class.String()
	return func(ctx context.Context, v any) (any, error) {
		wv, cerr := fn(v)
		if cerr != nil {
			return nil, &ConverterError{Target: target, Err: cerr}
		}
		return targetRef.call(ctx, wv)
	}, true, nil
}

func (c *serCompiler) primitive(p *typedesc.Primitive) (Method, error) {
	kind := p.Kind
	strict := c.opts.checkSerializedTypes
	return func(ctx context.Context, v any) (any, error) {
		if v == nil {
			if strict && kind != typedesc.KindNull {
				return nil, fmt.Errorf("typeconv: expected %s, got null", kind)
			}
			return nil, nil
		}
		wv := wirePrimitive(v)
		if strict {
			if _, ok := checkPrimitive(kind, wv); !ok {
				return nil, fmt.Errorf("typeconv: expected %s, got %T", kind, v)
			}
		}
		return wv, nil
	}, nil
}

func (c *serCompiler) collection(cc *typedesc.Collection) (Method, error) {
	itemRef, err := c.compile(cc.Item)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return []any{}, nil
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			out := make([]any, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				wv, err := itemRef.call(ctx, rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, wv)
			}
			return out, nil
		case reflect.Map:
			// set semantics: keys are the elements, emitted sorted for a
			// deterministic wire form
			out := make([]any, 0, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				wv, err := itemRef.call(ctx, iter.Key().Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, wv)
			}
			sort.Slice(out, func(i, j int) bool {
				return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
			})
			return out, nil
		}
		return nil, fmt.Errorf("typeconv: expected array, got %T", v)
	}, nil
}

func (c *serCompiler) mapping(mm *typedesc.Mapping) (Method, error) {
	valRef, err := c.compile(mm.Value)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return map[string]any{}, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map {
			return nil, fmt.Errorf("typeconv: expected map, got %T", v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := formatMapKey(iter.Key())
			if err != nil {
				return nil, err
			}
			wv, err := valRef.call(ctx, iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[k] = wv
		}
		return out, nil
	}, nil
}

func formatMapKey(kv reflect.Value) (string, error) {
	switch kv.Kind() {
	case reflect.String:
		return kv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(kv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(kv.Uint(), 10), nil
	case reflect.Interface:
		return formatMapKey(kv.Elem())
	}
	return "", fmt.Errorf("typeconv: map key must be a string or integer, got %s", kv.Type())
}

func (c *serCompiler) tuple(tt *typedesc.Tuple) (Method, error) {
	refs := make([]*methodRef, len(tt.Items))
	for i, it := range tt.Items {
		ref, err := c.compile(it)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	arity := len(refs)
	return func(ctx context.Context, v any) (any, error) {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
		default:
			return nil, fmt.Errorf("typeconv: expected array, got %T", v)
		}
		if rv.Len() != arity {
			return nil, fmt.Errorf("typeconv: expected %d items, got %d", arity, rv.Len())
		}
		out := make([]any, arity)
		for i, ref := range refs {
			wv, err := ref.call(ctx, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = wv
		}
		return out, nil
	}, nil
}

// union dispatches on the runtime type of the value, first alternative whose
// shape matches wins. The compiled procedure needs no trial-and-error:
// serialization of a matching alternative cannot fail structurally.
func (c *serCompiler) union(u *typedesc.Union) (Method, error) {
	type alt struct {
		t   typedesc.Type
		ref *methodRef
	}
	alts := make([]alt, 0, len(u.Alternatives))
	hasNull := false
	for _, a := range u.Alternatives {
		if isSkipped(a) {
			continue
		}
		if p, ok := a.(*typedesc.Primitive); ok && p.Kind == typedesc.KindNull {
			hasNull = true
			continue
		}
		ref, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt{t: a, ref: ref})
	}
	return func(ctx context.Context, v any) (any, error) {
		v = derefValue(v)
		if v == nil {
			if hasNull {
				return nil, nil
			}
			return nil, fmt.Errorf("typeconv: null is not a member of this union")
		}
		rt := reflect.TypeOf(v)
		var fallback *methodRef
		for i := range alts {
			switch altShapeMatch(alts[i].t, rt, v) {
			case shapeExact:
				return alts[i].ref.call(ctx, v)
			case shapeAny:
				if fallback == nil {
					fallback = alts[i].ref
				}
			}
		}
		if fallback != nil {
			return fallback.call(ctx, v)
		}
		return nil, fmt.Errorf("typeconv: %s is not a member of this union", rt)
	}, nil
}

// derefValue unwraps pointers and interface boxes down to a concrete value,
// mapping nil pointers to nil.
func derefValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

type shape int

const (
	shapeNone shape = iota
	shapeExact
	shapeAny
)

func altShapeMatch(t typedesc.Type, rt reflect.Type, v any) shape {
	switch tt := t.(type) {
	case *typedesc.Any:
		return shapeAny
	case *typedesc.Annotated:
		return altShapeMatch(tt.Inner, rt, v)
	case *typedesc.Lazy:
		return altShapeMatch(tt.Force(), rt, v)
	case *typedesc.Object:
		if tt.GoType != nil {
			if rt == tt.GoType {
				return shapeExact
			}
			return shapeNone
		}
		if rt.Kind() == reflect.Map {
			return shapeExact
		}
	case *typedesc.Enum:
		if tt.GoType != nil && rt == tt.GoType {
			return shapeExact
		}
	case *typedesc.Primitive:
		if tt.GoType != nil && rt == tt.GoType {
			return shapeExact
		}
		if _, ok := checkPrimitive(tt.Kind, v); ok {
			return shapeExact
		}
	case *typedesc.Literal:
		wv := wirePrimitive(v)
		for _, lv := range tt.Values {
			if primitiveEqual(wv, wirePrimitive(lv)) {
				return shapeExact
			}
		}
	case *typedesc.Collection:
		if tt.GoType != nil && rt == tt.GoType {
			return shapeExact
		}
		switch rt.Kind() {
		case reflect.Slice, reflect.Array:
			return shapeExact
		case reflect.Map:
			if tt.Set {
				return shapeExact
			}
		}
	case *typedesc.Mapping:
		if tt.GoType != nil && rt == tt.GoType {
			return shapeExact
		}
		if rt.Kind() == reflect.Map {
			return shapeExact
		}
	case *typedesc.Tuple:
		if tt.GoType != nil && rt == tt.GoType {
			return shapeExact
		}
		if rt.Kind() == reflect.Array || rt.Kind() == reflect.Slice {
			return shapeExact
		}
	}
	return shapeNone
}

func (c *serCompiler) enum(e *typedesc.Enum) (Method, error) {
	name := e.Name
	if name == "" && e.GoType != nil {
		name = e.GoType.String()
	}
	if len(e.Members) == 0 {
		return nil, fmt.Errorf("typeconv: enum %s has no registered members", name)
	}
	wires := make([]any, len(e.Members))
	for i, m := range e.Members {
		wires[i] = wirePrimitive(m.Value)
	}
	return func(ctx context.Context, v any) (any, error) {
		wv := wirePrimitive(v)
		for _, w := range wires {
			if primitiveEqual(wv, w) {
				return wv, nil
			}
		}
		return nil, fmt.Errorf("typeconv: %v is not a member of enum %s", v, name)
	}, nil
}

func (c *serCompiler) literal(l *typedesc.Literal) (Method, error) {
	wires := make([]any, len(l.Values))
	for i, lv := range l.Values {
		wires[i] = wirePrimitive(lv)
	}
	return func(ctx context.Context, v any) (any, error) {
		wv := wirePrimitive(v)
		for _, w := range wires {
			if primitiveEqual(wv, w) {
				return wv, nil
			}
		}
		return nil, fmt.Errorf("typeconv: %v is not an accepted literal value", v)
	}, nil
}

func (c *serCompiler) annotated(a *typedesc.Annotated) (Method, error) {
	for _, tag := range a.Tags {
		if conv, ok := tag.(*typedesc.FieldConversion); ok && conv.Serialize != nil {
			return c.serFieldConversion(conv)
		}
	}
	ref, err := c.compile(a.Inner)
	if err != nil {
		return nil, err
	}
	return ref.call, nil
}

func (c *serCompiler) serFieldConversion(conv *typedesc.FieldConversion) (Method, error) {
	if conv.Target == nil {
		return nil, fmt.Errorf("typeconv: field conversion has no target description")
	}
	targetRef, err := c.inner().compile(conv.Target)
	if err != nil {
		return nil, err
	}
	fn := conv.Serialize
	return func(ctx context.Context, v any) (any, error) {
		wv, cerr := fn(v)
		if cerr != nil {
			return nil, &ConverterError{Target: "field conversion", Err: cerr}
		}
		return targetRef.call(ctx, wv)
	}, nil
}

// anyValue serializes a value by its runtime shape, resolving struct types
// on the fly. This is the Any fallback, also used for additional-properties
// payloads.
func (c *serCompiler) anyValue(ctx context.Context, v any) (any, error) {
	v = derefValue(v)
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return wirePrimitive(v), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), nil
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			wv, err := c.anyValue(ctx, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, wv)
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := formatMapKey(iter.Key())
			if err != nil {
				return nil, err
			}
			wv, err := c.anyValue(ctx, iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[k] = wv
		}
		return out, nil
	case reflect.Struct:
		t, err := typedesc.FromType(rv.Type())
		if err != nil {
			return nil, err
		}
		ref, err := c.sub().compile(t)
		if err != nil {
			return nil, err
		}
		return ref.call(ctx, v)
	}
	return nil, fmt.Errorf("typeconv: cannot serialize %T", v)
}

package typeconv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/reoring/typeconv/typedesc"
)

// compileDeserializer returns the cached deserialization procedure for the
// (description, options) pair, compiling it on first use. Recursive
// descriptions compile through a placeholder inserted before expansion, so
// the closure graph ties back on itself instead of unrolling.
func compileDeserializer(t typedesc.Type, opts compiledOptions) (*methodRef, error) {
	c := &dsrCompiler{opts: opts}
	return c.compile(t)
}

type dsrCompiler struct {
	opts compiledOptions
	// skipClass suppresses conversion interception for one class while that
	// class's own conversion source is compiled, so a self-sourced
	// conversion does not re-enter itself.
	skipClass reflect.Type
}

// sub is the compiler for child positions: the self-conversion guard applies
// to a single node only.
func (c *dsrCompiler) sub() *dsrCompiler { return &dsrCompiler{opts: c.opts} }

// inner is the compiler for positions past a non-container boundary, where
// dynamic conversions no longer apply.
func (c *dsrCompiler) inner() *dsrCompiler {
	return &dsrCompiler{opts: c.opts.withoutConversions()}
}

func (c *dsrCompiler) cacheKey(t typedesc.Type) string {
	key := "dsr|" + t.Fingerprint() + "|" + c.opts.key()
	if c.skipClass != nil {
		key += "|self=" + c.skipClass.String()
	}
	return key
}

func (c *dsrCompiler) compile(t typedesc.Type) (*methodRef, error) {
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

func (c *dsrCompiler) expand(t typedesc.Type) (Method, error) {
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
		return func(ctx context.Context, v any) (any, error) { return v, nil }, nil
	default:
		return nil, fmt.Errorf("typeconv: unknown description %T", t)
	}
}

// classOf returns the in-memory Go type a description deserializes into, for
// conversion lookup. Unnamed shapes have no class.
func classOf(t typedesc.Type) reflect.Type {
	switch tt := t.(type) {
	case *typedesc.Object:
		return tt.GoType
	case *typedesc.Enum:
		return tt.GoType
	case *typedesc.Primitive:
		if tt.GoType != nil && tt.GoType.PkgPath() != "" {
			return tt.GoType
		}
	case *typedesc.Collection:
		if tt.GoType != nil && tt.GoType.PkgPath() != "" {
			return tt.GoType
		}
	case *typedesc.Mapping:
		if tt.GoType != nil && tt.GoType.PkgPath() != "" {
			return tt.GoType
		}
	case *typedesc.Tuple:
		if tt.GoType != nil && tt.GoType.PkgPath() != "" {
			return tt.GoType
		}
	}
	return nil
}

func classMatches(entry, class reflect.Type) bool {
	if entry == nil || class == nil {
		return false
	}
	if entry == class {
		return true
	}
	return entry.Kind() == reflect.Interface && class.Implements(entry)
}

// convert intercepts compilation when the description's class has applicable
// conversions: dynamic (call-site) entries first, then registered ones, in
// order. Several entries form an implicit union of wire shapes.
func (c *dsrCompiler) convert(t typedesc.Type) (Method, bool, error) {
	class := classOf(t)
	if class == nil || class == c.skipClass {
		return nil, false, nil
	}
	var entries []ConversionEntry
	for _, e := range c.opts.conversions {
		if e.Source != nil && e.Fn != nil && classMatches(e.Class, class) {
			entries = append(entries, e)
		}
	}
	entries = append(entries, registry.resolveDeserialization(class)...)
	if len(entries) == 0 {
		return nil, false, nil
	}

	type branch struct {
		ref *methodRef
		fn  Converter
	}
	branches := make([]branch, 0, len(entries))
	for _, e := range entries {
		sc := c.inner()
		if classOf(e.Source) == class {
			sc.skipClass = class
		}
		ref, err := sc.compile(e.Source)
		if err != nil {
			return nil, false, err
		}
		branches = append(branches, branch{ref: ref, fn: e.Fn})
	}
	target := class.String()

	apply := func(ctx context.Context, b branch, v any) (any, error) {
		sv, err := b.ref.call(ctx, v)
		if err != nil {
			return nil, err
		}
		out, cerr := b.fn(sv)
		if cerr != nil {
			if ve, ok := asValidation(cerr); ok {
				return nil, ve
			}
			return nil, &ConverterError{Target: target, Err: cerr}
		}
		return out, nil
	}

	if len(branches) == 1 {
		b := branches[0]
		return func(ctx context.Context, v any) (any, error) {
			return apply(ctx, b, v)
		}, true, nil
	}
	return func(ctx context.Context, v any) (any, error) {
		var merged *ValidationError
		for _, b := range branches {
			out, err := apply(ctx, b, v)
			if err == nil {
				return out, nil
			}
			ve, ok := asValidation(err)
			if !ok {
				return nil, err
			}
			merged = merged.Merge(ve)
		}
		return nil, merged
	}, true, nil
}

func (c *dsrCompiler) primitive(p *typedesc.Primitive) (Method, error) {
	kind := p.Kind
	goType := p.GoType
	coercion := c.opts.coercion
	coercer := c.opts.coercer
	return func(ctx context.Context, v any) (any, error) {
		nv, ok := checkPrimitive(kind, v)
		if !ok && coercion && coercer != nil {
			cv, err := coercer(kind, v)
			if err != nil {
				if ve, isVE := asValidation(err); isVE {
					return nil, ve
				}
				return nil, err
			}
			nv, ok = checkPrimitive(kind, cv)
		}
		if !ok {
			return nil, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": kind.String()}))
		}
		if nv == nil || goType == nil {
			return nv, nil
		}
		rv, err := coerceToGo(nv, goType)
		if err != nil {
			var re *rangeError
			if errors.As(err, &re) {
				return nil, NewValidationError(msg(CodeOutOfRange, map[string]string{"want": re.target}))
			}
			return nil, err
		}
		return rv.Interface(), nil
	}, nil
}

// checkPrimitive reports whether a wire value structurally matches a
// primitive kind and returns its normalized form: bool, int64, float64,
// string or nil. Floats never pass for ints, not even integral ones.
func checkPrimitive(kind typedesc.PrimitiveKind, v any) (any, bool) {
	if v == nil {
		return nil, kind == typedesc.KindNull
	}
	if n, ok := v.(json.Number); ok {
		switch kind {
		case typedesc.KindInt:
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		case typedesc.KindFloat:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		}
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch kind {
	case typedesc.KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), true
		}
	case typedesc.KindInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if u := rv.Uint(); u <= math.MaxInt64 {
				return int64(u), true
			}
		}
	case typedesc.KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		}
	case typedesc.KindString:
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	}
	return nil, false
}

func (c *dsrCompiler) collection(cc *typedesc.Collection) (Method, error) {
	itemRef, err := c.compile(cc.Item)
	if err != nil {
		return nil, err
	}
	goType := cc.GoType
	return func(ctx context.Context, v any) (any, error) {
		arr, ok := v.([]any)
		if !ok {
			return nil, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": "array"}))
		}
		items := make([]any, 0, len(arr))
		var verr *ValidationError
		for i, ev := range arr {
			out, err := itemRef.call(ctx, ev)
			if err != nil {
				ve, isVE := asValidation(err)
				if !isVE {
					return nil, err
				}
				verr = verr.Merge(childError(strconv.Itoa(i), ve))
				continue
			}
			items = append(items, out)
		}
		if verr = verr.orNil(); verr != nil {
			return nil, verr
		}
		return buildCollection(items, goType)
	}, nil
}

func buildCollection(items []any, rt reflect.Type) (any, error) {
	if rt == nil {
		return items, nil
	}
	switch rt.Kind() {
	case reflect.Slice:
		sv := reflect.MakeSlice(rt, 0, len(items))
		for _, it := range items {
			ev, err := coerceToGo(it, rt.Elem())
			if err != nil {
				return nil, err
			}
			sv = reflect.Append(sv, ev)
		}
		return sv.Interface(), nil
	case reflect.Map:
		// set semantics: elements become keys, duplicates collapse
		mv := reflect.MakeMapWithSize(rt, len(items))
		for _, it := range items {
			kv, err := coerceToGo(it, rt.Key())
			if err != nil {
				return nil, err
			}
			mv.SetMapIndex(kv, reflect.Zero(rt.Elem()))
		}
		return mv.Interface(), nil
	}
	return nil, fmt.Errorf("typeconv: cannot build %s from an array", rt)
}

func (c *dsrCompiler) mapping(mm *typedesc.Mapping) (Method, error) {
	intKey := false
	if kp, ok := mm.Key.(*typedesc.Primitive); ok {
		switch kp.Kind {
		case typedesc.KindInt:
			intKey = true
		case typedesc.KindString:
		default:
			return nil, fmt.Errorf("typeconv: map key must be a string or integer, got %s", kp.Kind)
		}
	}
	valRef, err := c.compile(mm.Value)
	if err != nil {
		return nil, err
	}
	goType := mm.GoType
	return func(ctx context.Context, v any) (any, error) {
		src, ok := v.(map[string]any)
		if !ok {
			return nil, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": "object"}))
		}
		keys := make([]string, 0, len(src))
		for k := range src {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		type pair struct {
			key any
			val any
		}
		pairs := make([]pair, 0, len(src))
		var verr *ValidationError
		for _, k := range keys {
			var key any = k
			if intKey {
				i, perr := strconv.ParseInt(k, 10, 64)
				if perr != nil {
					verr = verr.Merge(childError(k, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": "int"}))))
					continue
				}
				key = i
			}
			out, err := valRef.call(ctx, src[k])
			if err != nil {
				ve, isVE := asValidation(err)
				if !isVE {
					return nil, err
				}
				verr = verr.Merge(childError(k, ve))
				continue
			}
			pairs = append(pairs, pair{key: key, val: out})
		}
		if verr = verr.orNil(); verr != nil {
			return nil, verr
		}
		if goType == nil {
			if intKey {
				out := make(map[int64]any, len(pairs))
				for _, p := range pairs {
					out[p.key.(int64)] = p.val
				}
				return out, nil
			}
			out := make(map[string]any, len(pairs))
			for _, p := range pairs {
				out[p.key.(string)] = p.val
			}
			return out, nil
		}
		mv := reflect.MakeMapWithSize(goType, len(pairs))
		for _, p := range pairs {
			kv, err := coerceToGo(p.key, goType.Key())
			if err != nil {
				return nil, err
			}
			vv, err := coerceToGo(p.val, goType.Elem())
			if err != nil {
				return nil, err
			}
			mv.SetMapIndex(kv, vv)
		}
		return mv.Interface(), nil
	}, nil
}

func (c *dsrCompiler) tuple(tt *typedesc.Tuple) (Method, error) {
	refs := make([]*methodRef, len(tt.Items))
	for i, it := range tt.Items {
		ref, err := c.compile(it)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	goType := tt.GoType
	arity := len(refs)
	return func(ctx context.Context, v any) (any, error) {
		arr, ok := v.([]any)
		if !ok {
			return nil, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": "array"}))
		}
		if len(arr) != arity {
			return nil, NewValidationError(msg(CodeWrongLength, map[string]string{"want": strconv.Itoa(arity)}))
		}
		items := make([]any, arity)
		var verr *ValidationError
		for i, ref := range refs {
			out, err := ref.call(ctx, arr[i])
			if err != nil {
				ve, isVE := asValidation(err)
				if !isVE {
					return nil, err
				}
				verr = verr.Merge(childError(strconv.Itoa(i), ve))
				continue
			}
			items[i] = out
		}
		if verr = verr.orNil(); verr != nil {
			return nil, verr
		}
		if goType == nil {
			return items, nil
		}
		av := reflect.New(goType).Elem()
		for i, it := range items {
			ev, err := coerceToGo(it, goType.Elem())
			if err != nil {
				return nil, err
			}
			av.Index(i).Set(ev)
		}
		return av.Interface(), nil
	}, nil
}

func isSkipped(t typedesc.Type) bool {
	a, ok := t.(*typedesc.Annotated)
	if !ok {
		return false
	}
	for _, tag := range a.Tags {
		if _, ok := tag.(typedesc.Skip); ok {
			return true
		}
	}
	return false
}

func (c *dsrCompiler) union(u *typedesc.Union) (Method, error) {
	refs := make([]*methodRef, 0, len(u.Alternatives))
	for _, alt := range u.Alternatives {
		if isSkipped(alt) {
			continue
		}
		ref, err := c.compile(alt)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("typeconv: union has no deserializable alternative")
	}
	return func(ctx context.Context, v any) (any, error) {
		var merged *ValidationError
		for _, ref := range refs {
			out, err := ref.call(ctx, v)
			if err == nil {
				return out, nil
			}
			ve, isVE := asValidation(err)
			if !isVE {
				return nil, err
			}
			merged = merged.Merge(ve)
		}
		return nil, merged
	}, nil
}

func (c *dsrCompiler) enum(e *typedesc.Enum) (Method, error) {
	name := e.Name
	if name == "" && e.GoType != nil {
		name = e.GoType.String()
	}
	if len(e.Members) == 0 {
		return nil, fmt.Errorf("typeconv: enum %s has no registered members", name)
	}
	wires := make([]any, len(e.Members))
	allowed := make([]string, len(e.Members))
	for i, m := range e.Members {
		wires[i] = wirePrimitive(m.Value)
		allowed[i] = fmt.Sprintf("%v", wires[i])
	}
	allowedList := strings.Join(allowed, ", ")
	members := e.Members
	goType := e.GoType
	return func(ctx context.Context, v any) (any, error) {
		for i, w := range wires {
			if !primitiveEqual(v, w) {
				continue
			}
			if goType == nil {
				return members[i].Value, nil
			}
			rv, err := coerceToGo(members[i].Value, goType)
			if err != nil {
				return nil, err
			}
			return rv.Interface(), nil
		}
		return nil, NewValidationError(msg(CodeInvalidEnum, map[string]string{"allowed": allowedList}))
	}, nil
}

func (c *dsrCompiler) literal(l *typedesc.Literal) (Method, error) {
	if len(l.Values) == 0 {
		return nil, fmt.Errorf("typeconv: literal has no values")
	}
	wires := make([]any, len(l.Values))
	allowed := make([]string, len(l.Values))
	for i, lv := range l.Values {
		wires[i] = wirePrimitive(lv)
		allowed[i] = fmt.Sprintf("%v", wires[i])
	}
	allowedList := strings.Join(allowed, ", ")
	values := l.Values
	return func(ctx context.Context, v any) (any, error) {
		for i, w := range wires {
			if primitiveEqual(v, w) {
				return values[i], nil
			}
		}
		return nil, NewValidationError(msg(CodeInvalidLiteral, map[string]string{"allowed": allowedList}))
	}, nil
}

// primitiveEqual compares a wire value against a normalized primitive,
// bridging the integer representations the sources produce.
func primitiveEqual(v, w any) bool {
	if w == nil || v == nil {
		return v == nil && w == nil
	}
	switch wv := w.(type) {
	case bool:
		b, ok := v.(bool)
		return ok && b == wv
	case string:
		s, ok := checkPrimitive(typedesc.KindString, v)
		return ok && s == wv
	case int64:
		n, ok := checkPrimitive(typedesc.KindInt, v)
		return ok && n == wv
	case float64:
		f, ok := checkPrimitive(typedesc.KindFloat, v)
		return ok && f == wv
	}
	return reflect.DeepEqual(v, w)
}

func (c *dsrCompiler) annotated(a *typedesc.Annotated) (Method, error) {
	var cs *typedesc.Constraints
	var conv *typedesc.FieldConversion
	for _, tag := range a.Tags {
		switch tv := tag.(type) {
		case *typedesc.Constraints:
			cs = cs.Merge(tv)
		case *typedesc.FieldConversion:
			conv = tv
		}
	}
	var inner Method
	if conv != nil && conv.Deserialize != nil {
		m, err := c.fieldConversion(conv)
		if err != nil {
			return nil, err
		}
		inner = m
	} else {
		ref, err := c.compile(a.Inner)
		if err != nil {
			return nil, err
		}
		inner = ref.call
	}
	if cs == nil {
		return inner, nil
	}
	return func(ctx context.Context, v any) (any, error) {
		out, err := inner(ctx, v)
		if err != nil {
			return nil, err
		}
		if cerr := evaluateConstraints(cs, out); cerr != nil {
			return nil, cerr
		}
		return out, nil
	}, nil
}

// fieldConversion compiles a per-position conversion override: the declared
// wire shape deserializes first, then the override maps it in-memory.
func (c *dsrCompiler) fieldConversion(conv *typedesc.FieldConversion) (Method, error) {
	if conv.Source == nil {
		return nil, fmt.Errorf("typeconv: field conversion has no source description")
	}
	srcRef, err := c.inner().compile(conv.Source)
	if err != nil {
		return nil, err
	}
	fn := conv.Deserialize
	return func(ctx context.Context, v any) (any, error) {
		sv, err := srcRef.call(ctx, v)
		if err != nil {
			return nil, err
		}
		out, cerr := fn(sv)
		if cerr != nil {
			if ve, ok := asValidation(cerr); ok {
				return nil, ve
			}
			return nil, &ConverterError{Target: "field conversion", Err: cerr}
		}
		return out, nil
	}, nil
}

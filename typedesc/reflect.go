package typedesc

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// HasConversion is injected by the root package so the resolver can accept
// otherwise-unsupported Go types that carry a registered conversion.
var HasConversion = func(rt reflect.Type) bool { return false }

// UnsupportedTypeError is the fatal resolution/compilation failure for a Go
// type that maps to no description variant and has no registered conversion.
type UnsupportedTypeError struct {
	GoType reflect.Type
	Path   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	msg := fmt.Sprintf("typeconv: unsupported type %s", e.GoType)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

var (
	resolvedMu sync.Mutex
	resolved   = map[reflect.Type]Type{}
)

func resetResolvedCache() {
	resolvedMu.Lock()
	resolved = map[reflect.Type]Type{}
	resolvedMu.Unlock()
}

// ResetResolved clears the resolution cache. Registration surfaces call it
// whenever a change alters how a Go type resolves.
func ResetResolved() { resetResolvedCache() }

// FromType resolves a Go type into its description. Results are cached per
// reflect.Type, so repeated resolution returns the identical description.
func FromType(rt reflect.Type) (Type, error) {
	resolvedMu.Lock()
	if t, ok := resolved[rt]; ok {
		resolvedMu.Unlock()
		return t, nil
	}
	resolvedMu.Unlock()

	r := &resolver{pending: map[reflect.Type]*futureObject{}}
	t, err := r.resolve(rt, "")
	if err != nil {
		return nil, err
	}
	resolvedMu.Lock()
	resolved[rt] = t
	resolvedMu.Unlock()
	return t, nil
}

// MustFromType is FromType panicking on error, for startup wiring.
func MustFromType(rt reflect.Type) Type {
	t, err := FromType(rt)
	if err != nil {
		panic(err)
	}
	return t
}

// futureObject lets a recursive position observe the finished Object after
// the enclosing resolution completes.
type futureObject struct{ obj Type }

type resolver struct {
	pending map[reflect.Type]*futureObject
}

var byteSliceType = reflect.TypeOf([]byte(nil))
var emptyStructType = reflect.TypeOf(struct{}{})

func (r *resolver) resolve(rt reflect.Type, path string) (Type, error) {
	if ms, ok := EnumMembersOf(rt); ok {
		return &Enum{Name: rt.Name(), GoType: rt, Members: ms}, nil
	}
	switch rt.Kind() {
	case reflect.Bool:
		return &Primitive{Kind: KindBool, GoType: rt}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Primitive{Kind: KindInt, GoType: rt}, nil
	case reflect.Float32, reflect.Float64:
		return &Primitive{Kind: KindFloat, GoType: rt}, nil
	case reflect.String:
		return &Primitive{Kind: KindString, GoType: rt}, nil
	case reflect.Pointer:
		inner, err := r.resolve(rt.Elem(), path)
		if err != nil {
			return nil, err
		}
		return Optional(inner), nil
	case reflect.Slice:
		if rt == byteSliceType || rt.Elem().Kind() == reflect.Uint8 {
			// wire form of byte slices is a string
			return &Primitive{Kind: KindString, GoType: rt}, nil
		}
		item, err := r.resolve(rt.Elem(), path+"/[]")
		if err != nil {
			return nil, err
		}
		return &Collection{Item: item, GoType: rt}, nil
	case reflect.Array:
		item, err := r.resolve(rt.Elem(), path+"/[]")
		if err != nil {
			return nil, err
		}
		items := make([]Type, rt.Len())
		for i := range items {
			items[i] = item
		}
		return &Tuple{Items: items, GoType: rt}, nil
	case reflect.Map:
		if rt.Elem() == emptyStructType {
			item, err := r.resolve(rt.Key(), path+"/[]")
			if err != nil {
				return nil, err
			}
			return &Collection{Item: item, Set: true, GoType: rt}, nil
		}
		key, err := r.resolveMapKey(rt.Key(), path)
		if err != nil {
			return nil, err
		}
		val, err := r.resolve(rt.Elem(), path+"/*")
		if err != nil {
			return nil, err
		}
		return &Mapping{Key: key, Value: val, GoType: rt}, nil
	case reflect.Interface:
		if rt.NumMethod() == 0 {
			return &Any{}, nil
		}
		if HasConversion(rt) {
			return &Object{Name: rt.String(), GoType: rt}, nil
		}
		return nil, &UnsupportedTypeError{GoType: rt, Path: path, Reason: "non-empty interface without registered conversion"}
	case reflect.Struct:
		return r.resolveStruct(rt, path)
	default:
		if HasConversion(rt) {
			return &Object{Name: rt.String(), GoType: rt}, nil
		}
		return nil, &UnsupportedTypeError{GoType: rt, Path: path}
	}
}

func (r *resolver) resolveMapKey(rt reflect.Type, path string) (Type, error) {
	switch rt.Kind() {
	case reflect.String:
		return &Primitive{Kind: KindString, GoType: rt}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Primitive{Kind: KindInt, GoType: rt}, nil
	default:
		return nil, &UnsupportedTypeError{GoType: rt, Path: path, Reason: "map keys must be string or integer kinds"}
	}
}

func (r *resolver) resolveStruct(rt reflect.Type, path string) (Type, error) {
	if fut, ok := r.pending[rt]; ok {
		// recursive position: defer to the finished object
		return &Lazy{Resolve: func() Type { return fut.obj }}, nil
	}
	// a registered conversion replaces field resolution entirely
	if HasConversion(rt) {
		return &Object{Name: rt.String(), GoType: rt}, nil
	}
	if !hasExportedFields(rt) {
		return nil, &UnsupportedTypeError{GoType: rt, Path: path, Reason: "struct has no exported fields and no registered conversion"}
	}

	fut := &futureObject{}
	r.pending[rt] = fut
	defer delete(r.pending, rt)

	fields := make([]Field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := ResolveStructKey(sf)
		if key == "-" || key == "" {
			continue
		}
		fo, err := parseFieldTag(sf)
		if err != nil {
			return nil, err
		}
		if fo.skip {
			continue
		}
		ft, err := r.resolve(sf.Type, path+"/"+key)
		if err != nil {
			return nil, err
		}
		f := Field{
			Name:        sf.Name,
			Type:        ft,
			Constraints: fo.cs,
			Flatten:     fo.flatten || (sf.Anonymous && sf.Type.Kind() == reflect.Struct),
			Additional:  fo.additional,
			ReadOnly:    fo.readOnly,
			WriteOnly:   fo.writeOnly,
			Index:       i,
		}
		if key != sf.Name {
			f.Alias = key
		}
		if fo.hasDefault {
			dv, err := parseDefault(fo.defaultRaw, sf.Type)
			if err != nil {
				return nil, fmt.Errorf("typedesc: field %s.%s: %v", rt, sf.Name, err)
			}
			f.Default = dv
		}
		f.Required = !fo.optional && !fo.hasDefault && !f.Flatten && !f.Additional &&
			sf.Type.Kind() != reflect.Pointer
		if fo.required {
			f.Required = true
		}
		if f.Additional {
			if sf.Type.Kind() != reflect.Map || sf.Type.Key().Kind() != reflect.String {
				return nil, fmt.Errorf("typedesc: field %s.%s: additional-properties field must be a string-keyed map", rt, sf.Name)
			}
		}
		if f.Flatten {
			if _, ok := baseObject(ft); !ok {
				return nil, fmt.Errorf("typedesc: field %s.%s: flattened field must be an object", rt, sf.Name)
			}
		}
		fields = append(fields, f)
	}

	obj := &Object{Name: structName(rt), GoType: rt, Fields: fields}
	fut.obj = obj
	return obj, nil
}

// BaseObject unwraps Annotated/Lazy wrappers down to an Object.
func BaseObject(t Type) (*Object, bool) { return baseObject(t) }

// baseObject unwraps Annotated/Lazy wrappers down to an Object.
func baseObject(t Type) (*Object, bool) {
	switch tt := t.(type) {
	case *Object:
		return tt, true
	case *Annotated:
		return baseObject(tt.Inner)
	case *Lazy:
		return baseObject(tt.Force())
	default:
		return nil, false
	}
}

func hasExportedFields(rt reflect.Type) bool {
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func structName(rt reflect.Type) string {
	if rt.Name() != "" {
		return rt.Name()
	}
	return strings.ReplaceAll(rt.String(), " ", "")
}

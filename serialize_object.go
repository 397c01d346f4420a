package typeconv

import (
	"context"
	"fmt"
	"reflect"

	"github.com/reoring/typeconv/typedesc"
)

type serField struct {
	name       string
	alias      string
	index      int
	call       Method
	flatten    bool
	additional bool
	hasDefault bool
	defaultFn  func() any
}

func (c *serCompiler) object(o *typedesc.Object) (Method, error) {
	if o.Fields == nil && o.GoType != nil {
		return nil, &UnsupportedTypeError{GoType: o.GoType, Reason: "no serialization conversion registered"}
	}
	child := c.inner()

	fields := make([]serField, 0, len(o.Fields))
	for i := range o.Fields {
		f := &o.Fields[i]
		if f.WriteOnly {
			continue
		}
		sf := serField{
			name:       f.Name,
			alias:      c.opts.aliaser(f.WireName()),
			index:      f.Index,
			flatten:    f.Flatten,
			additional: f.Additional,
			hasDefault: f.HasDefault(),
		}
		if sf.hasDefault {
			ff := f
			sf.defaultFn = func() any { return ff.DefaultValue() }
		}
		switch {
		case f.Conversion != nil && f.Conversion.Serialize != nil:
			m, err := child.serFieldConversion(f.Conversion)
			if err != nil {
				return nil, err
			}
			sf.call = m
		case f.Additional:
			mm, ok := baseMapping(f.Type)
			if !ok {
				return nil, fmt.Errorf("typeconv: additional-properties field %s.%s is not a string-keyed map", o.Name, f.Name)
			}
			ref, err := child.compile(mm)
			if err != nil {
				return nil, err
			}
			sf.call = ref.call
		default:
			ref, err := child.compile(f.Type)
			if err != nil {
				return nil, err
			}
			sf.call = ref.call
		}
		fields = append(fields, sf)
	}

	goType := o.GoType
	excludeUnset := c.opts.excludeUnset
	excludeDefaults := c.opts.excludeDefaults
	excludeNone := c.opts.excludeNone
	objName := o.Name

	return func(ctx context.Context, v any) (any, error) {
		v = derefValue(v)
		if v == nil {
			return nil, fmt.Errorf("typeconv: cannot serialize null as %s", objName)
		}

		var sv reflect.Value
		var asMap map[string]any
		if goType != nil {
			sv = reflect.ValueOf(v)
			if sv.Type() != goType {
				return nil, fmt.Errorf("typeconv: expected %s, got %T", goType, v)
			}
		} else {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("typeconv: expected object values for %s, got %T", objName, v)
			}
			asMap = m
		}

		pm := presenceFrom(ctx)
		base := pathFrom(ctx)
		out := make(map[string]any, len(fields))

		for i := range fields {
			f := &fields[i]
			var raw any
			if asMap != nil {
				var present bool
				raw, present = asMap[f.name]
				if !present && !f.flatten && !f.additional {
					continue
				}
			} else {
				if f.index < 0 {
					continue
				}
				raw = sv.Field(f.index).Interface()
			}

			switch {
			case f.flatten:
				sub, err := f.call(ctx, raw)
				if err != nil {
					return nil, err
				}
				subMap, ok := sub.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("typeconv: flattened field %s.%s did not serialize to an object", objName, f.name)
				}
				for k, wv := range subMap {
					out[k] = wv
				}
			case f.additional:
				sub, err := f.call(ctx, raw)
				if err != nil {
					return nil, err
				}
				subMap, ok := sub.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("typeconv: additional-properties field %s.%s did not serialize to an object", objName, f.name)
				}
				for k, wv := range subMap {
					out[k] = wv
				}
			default:
				path := base + "/" + escapePointer(f.alias)
				if excludeUnset && pm != nil && pm[path]&PresenceSeen == 0 {
					continue
				}
				if excludeNone && isNilValue(raw) {
					continue
				}
				if excludeDefaults && f.hasDefault && equalsDefault(raw, f.defaultFn()) {
					continue
				}
				fctx := ctx
				if pm != nil {
					fctx = withPath(ctx, path)
				}
				wv, err := f.call(fctx, raw)
				if err != nil {
					return nil, err
				}
				out[f.alias] = wv
			}
		}
		return out, nil
	}, nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// equalsDefault compares an in-memory field value against its declared
// default, bridging the representation gap between a parsed default (int64,
// float64, string) and the typed struct field.
func equalsDefault(v, def any) bool {
	if reflect.DeepEqual(v, def) {
		return true
	}
	if v == nil || def == nil {
		return false
	}
	rt := reflect.TypeOf(v)
	dv, err := coerceToGo(def, rt)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(v, dv.Interface())
}

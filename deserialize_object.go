package typeconv

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/reoring/typeconv/typedesc"
)

type dsrField struct {
	name        string
	alias       string
	call        Method
	required    bool
	hasDefault  bool
	defaultFn   func() any
	constraints *typedesc.Constraints
}

type dsrFlattened struct {
	name string
	ref  *methodRef
	keys map[string]struct{}
}

type dsrAdditional struct {
	name   string
	ref    *methodRef
	goType reflect.Type
}

func (c *dsrCompiler) object(o *typedesc.Object) (Method, error) {
	if o.Fields == nil && o.Construct == nil {
		return nil, &UnsupportedTypeError{GoType: o.GoType, Reason: "no deserialization conversion registered"}
	}
	child := c.inner()

	var fields []dsrField
	var flattened []dsrFlattened
	var additional *dsrAdditional
	claimed := map[string]struct{}{}

	for i := range o.Fields {
		f := &o.Fields[i]
		if f.ReadOnly {
			continue
		}
		switch {
		case f.Flatten:
			sub, ok := typedesc.BaseObject(f.Type)
			if !ok {
				return nil, fmt.Errorf("typeconv: flattened field %s.%s is not an object", o.Name, f.Name)
			}
			keys, catchAll, err := flattenedKeys(sub, c.opts.aliaser)
			if err != nil {
				return nil, err
			}
			if catchAll {
				return nil, &ConflictingFlattenedFieldsError{Object: o.Name, Keys: []string{f.Name}}
			}
			if shared := intersect(claimed, keys); len(shared) > 0 {
				return nil, &ConflictingFlattenedFieldsError{Object: o.Name, Keys: shared}
			}
			for k := range keys {
				claimed[k] = struct{}{}
			}
			ref, err := child.compile(f.Type)
			if err != nil {
				return nil, err
			}
			flattened = append(flattened, dsrFlattened{name: f.Name, ref: ref, keys: keys})

		case f.Additional:
			if additional != nil {
				return nil, fmt.Errorf("typeconv: %s has more than one additional-properties field", o.Name)
			}
			if len(flattened) > 0 {
				return nil, &ConflictingFlattenedFieldsError{Object: o.Name, Keys: []string{f.Name}}
			}
			mm, ok := baseMapping(f.Type)
			if !ok {
				return nil, fmt.Errorf("typeconv: additional-properties field %s.%s is not a string-keyed map", o.Name, f.Name)
			}
			ref, err := child.compile(mm.Value)
			if err != nil {
				return nil, err
			}
			additional = &dsrAdditional{name: f.Name, ref: ref, goType: mm.GoType}

		default:
			alias := c.opts.aliaser(f.WireName())
			if _, dup := claimed[alias]; dup {
				return nil, fmt.Errorf("typeconv: duplicate wire key %q in %s", alias, o.Name)
			}
			claimed[alias] = struct{}{}
			var call Method
			if f.Conversion != nil && f.Conversion.Deserialize != nil {
				m, err := child.fieldConversion(f.Conversion)
				if err != nil {
					return nil, err
				}
				call = m
			} else {
				ref, err := child.compile(f.Type)
				if err != nil {
					return nil, err
				}
				call = ref.call
			}
			df := dsrField{
				name:        f.Name,
				alias:       alias,
				call:        call,
				required:    f.Required,
				hasDefault:  f.HasDefault(),
				constraints: f.Constraints,
			}
			if df.hasDefault {
				ff := f
				df.defaultFn = func() any { return ff.DefaultValue() }
			}
			fields = append(fields, df)
		}
	}
	if additional != nil && len(flattened) > 0 {
		return nil, &ConflictingFlattenedFieldsError{Object: o.Name, Keys: []string{additional.name}}
	}

	validators := validatorsOf(o.GoType)
	aliasOf := func(name string) string {
		for i := range fields {
			if fields[i].name == name {
				return fields[i].alias
			}
		}
		return name
	}
	allowUnknown := c.opts.additionalProperties
	fallback := c.opts.fallBackOnDefault
	obj := o

	return func(ctx context.Context, v any) (any, error) {
		src, ok := v.(map[string]any)
		if !ok {
			return nil, NewValidationError(msg(CodeInvalidType, map[string]string{"expected": "object"}))
		}
		st := presenceStateFrom(ctx)
		base := pathFrom(ctx)

		var verr *ValidationError
		values := make(map[string]any, len(fields))
		valid := map[string]bool{}
		invalid := map[string]bool{}
		consumed := make(map[string]struct{}, len(src))

		fail := func(f *dsrField, ve *ValidationError) {
			if fallback && f.hasDefault {
				values[f.name] = f.defaultFn()
				valid[f.name] = true
				return
			}
			verr = verr.Merge(childError(f.alias, ve))
			invalid[f.name] = true
		}

		for i := range fields {
			f := &fields[i]
			raw, exists := src[f.alias]
			if !exists {
				switch {
				case f.hasDefault:
					values[f.name] = f.defaultFn()
					valid[f.name] = true
					if st != nil {
						st.pm[base+"/"+escapePointer(f.alias)] |= PresenceDefaultApplied
					}
				case f.required:
					verr = verr.Merge(childError(f.alias, NewValidationError(msg(CodeMissingProperty, nil))))
					invalid[f.name] = true
				default:
					valid[f.name] = true
				}
				continue
			}
			consumed[f.alias] = struct{}{}
			fctx := ctx
			if st != nil {
				path := base + "/" + escapePointer(f.alias)
				bits := PresenceSeen
				if raw == nil {
					bits |= PresenceWasNull
				}
				st.pm[path] |= bits
				fctx = withPath(ctx, path)
			}
			out, err := f.call(fctx, raw)
			if err != nil {
				ve, isVE := asValidation(err)
				if !isVE {
					return nil, err
				}
				fail(f, ve)
				continue
			}
			if cerr := evaluateConstraints(f.constraints, out); cerr != nil {
				fail(f, cerr)
				continue
			}
			values[f.name] = out
			valid[f.name] = true
		}

		for i := range flattened {
			b := &flattened[i]
			sub := make(map[string]any, len(b.keys))
			for k := range b.keys {
				if _, done := consumed[k]; done {
					continue
				}
				if raw, ok := src[k]; ok {
					sub[k] = raw
					consumed[k] = struct{}{}
				}
			}
			out, err := b.ref.call(ctx, sub)
			if err != nil {
				ve, isVE := asValidation(err)
				if !isVE {
					return nil, err
				}
				// branch errors are already keyed by the shared wire space
				verr = verr.Merge(ve)
				invalid[b.name] = true
				continue
			}
			values[b.name] = out
			valid[b.name] = true
		}

		leftover := make([]string, 0, len(src))
		for k := range src {
			if _, done := consumed[k]; !done {
				leftover = append(leftover, k)
			}
		}
		sort.Strings(leftover)
		if additional != nil {
			extra := make(map[string]any, len(leftover))
			extraOK := true
			for _, k := range leftover {
				out, err := additional.ref.call(ctx, src[k])
				if err != nil {
					ve, isVE := asValidation(err)
					if !isVE {
						return nil, err
					}
					verr = verr.Merge(childError(k, ve))
					extraOK = false
					continue
				}
				extra[k] = out
			}
			if extraOK {
				built, err := buildAdditional(extra, additional.goType)
				if err != nil {
					return nil, err
				}
				values[additional.name] = built
				valid[additional.name] = true
			} else {
				invalid[additional.name] = true
			}
		} else if !allowUnknown {
			for _, k := range leftover {
				verr = verr.Merge(childError(k, NewValidationError(msg(CodeUnexpectedProperty, nil))))
			}
		}

		if len(validators) > 0 {
			view := make(map[string]any, len(values))
			for name, val := range values {
				if valid[name] {
					view[name] = val
				}
			}
			vrr, fatal := runValidators(ctx, validators, view, invalid, aliasOf)
			if fatal != nil {
				return nil, fatal
			}
			verr = verr.Merge(vrr)
		}

		if verr = verr.orNil(); verr != nil {
			return nil, verr
		}
		return buildObject(obj, values)
	}, nil
}

// flattenedKeys collects the wire keys a flattened sub-object claims,
// recursing through its own flattened fields. catchAll reports an
// additional-properties field anywhere in the branch, which claims every
// key and therefore cannot be routed.
func flattenedKeys(o *typedesc.Object, aliaser Aliaser) (map[string]struct{}, bool, error) {
	keys := map[string]struct{}{}
	for i := range o.Fields {
		f := &o.Fields[i]
		if f.ReadOnly {
			continue
		}
		if f.Additional {
			return nil, true, nil
		}
		if f.Flatten {
			sub, ok := typedesc.BaseObject(f.Type)
			if !ok {
				return nil, false, fmt.Errorf("typeconv: flattened field %s.%s is not an object", o.Name, f.Name)
			}
			nested, catchAll, err := flattenedKeys(sub, aliaser)
			if err != nil || catchAll {
				return nil, catchAll, err
			}
			for k := range nested {
				keys[k] = struct{}{}
			}
			continue
		}
		keys[aliaser(f.WireName())] = struct{}{}
	}
	return keys, false, nil
}

func intersect(a, b map[string]struct{}) []string {
	var shared []string
	for k := range b {
		if _, ok := a[k]; ok {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	return shared
}

// baseMapping unwraps Annotated/Lazy down to a Mapping with string keys.
func baseMapping(t typedesc.Type) (*typedesc.Mapping, bool) {
	switch tt := t.(type) {
	case *typedesc.Mapping:
		if kp, ok := tt.Key.(*typedesc.Primitive); !ok || kp.Kind != typedesc.KindString {
			return nil, false
		}
		return tt, true
	case *typedesc.Annotated:
		return baseMapping(tt.Inner)
	case *typedesc.Lazy:
		return baseMapping(tt.Force())
	}
	return nil, false
}

func buildAdditional(extra map[string]any, rt reflect.Type) (any, error) {
	if rt == nil {
		return extra, nil
	}
	mv := reflect.MakeMapWithSize(rt, len(extra))
	for k, v := range extra {
		vv, err := coerceToGo(v, rt.Elem())
		if err != nil {
			return nil, err
		}
		mv.SetMapIndex(reflect.ValueOf(k), vv)
	}
	return mv.Interface(), nil
}

// buildObject materializes the in-memory value once the whole tree
// validated. Construction failures are programming errors and fatal.
func buildObject(o *typedesc.Object, values map[string]any) (any, error) {
	if o.Construct != nil {
		return o.Construct(values)
	}
	if o.GoType == nil {
		return values, nil
	}
	sv := reflect.New(o.GoType).Elem()
	for i := range o.Fields {
		f := &o.Fields[i]
		val, ok := values[f.Name]
		if !ok || f.Index < 0 {
			continue
		}
		if val == nil {
			continue
		}
		fv, err := coerceToGo(val, o.GoType.Field(f.Index).Type)
		if err != nil {
			return nil, fmt.Errorf("typeconv: building %s.%s: %w", o.Name, f.Name, err)
		}
		sv.Field(f.Index).Set(fv)
	}
	return sv.Interface(), nil
}

package jsonschema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/reoring/typeconv/typedesc"
)

// Option adjusts schema generation.
type Option func(*generator)

// WithAliaser applies a wire-key aliaser matching the one used for
// (de)serialization, so generated property names line up.
func WithAliaser(aliaser func(string) string) Option {
	return func(g *generator) { g.aliaser = aliaser }
}

// FromType generates the schema for a Go type.
func FromType(rt reflect.Type, opts ...Option) (*Schema, error) {
	t, err := typedesc.FromType(rt)
	if err != nil {
		return nil, err
	}
	return FromDescription(t, opts...)
}

// FromDescription generates the schema for a type description. Named
// objects land in $defs and are referenced, which keeps recursive types
// finite.
func FromDescription(t typedesc.Type, opts ...Option) (*Schema, error) {
	g := &generator{
		aliaser: func(s string) string { return s },
		defs:    map[string]*Schema{},
		started: map[string]bool{},
	}
	for _, opt := range opts {
		opt(g)
	}
	root, err := g.walk(t)
	if err != nil {
		return nil, err
	}
	if len(g.defs) > 0 {
		root = clone(root)
		root.Defs = g.defs
	}
	return root, nil
}

type generator struct {
	aliaser func(string) string
	defs    map[string]*Schema
	started map[string]bool
}

func (g *generator) walk(t typedesc.Type) (*Schema, error) {
	switch tt := t.(type) {
	case *typedesc.Primitive:
		return primitiveSchema(tt.Kind), nil
	case *typedesc.Collection:
		item, err := g.walk(tt.Item)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: item, UniqueItems: tt.Set}, nil
	case *typedesc.Mapping:
		val, err := g.walk(tt.Value)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: val}, nil
	case *typedesc.Tuple:
		n := len(tt.Items)
		prefix := make([]*Schema, n)
		for i, it := range tt.Items {
			s, err := g.walk(it)
			if err != nil {
				return nil, err
			}
			prefix[i] = s
		}
		return &Schema{Type: "array", PrefixItems: prefix, MinItems: &n, MaxItems: &n}, nil
	case *typedesc.Union:
		alts := make([]*Schema, 0, len(tt.Alternatives))
		for _, a := range tt.Alternatives {
			s, err := g.walk(a)
			if err != nil {
				return nil, err
			}
			alts = append(alts, s)
		}
		if len(alts) == 1 {
			return alts[0], nil
		}
		return &Schema{AnyOf: alts}, nil
	case *typedesc.Object:
		return g.object(tt)
	case *typedesc.Enum:
		values := make([]any, len(tt.Members))
		for i, m := range tt.Members {
			values[i] = m.Value
		}
		return &Schema{Enum: values}, nil
	case *typedesc.Literal:
		if len(tt.Values) == 1 {
			return &Schema{Const: tt.Values[0]}, nil
		}
		return &Schema{Enum: append([]any(nil), tt.Values...)}, nil
	case *typedesc.Annotated:
		s, err := g.walk(tt.Inner)
		if err != nil {
			return nil, err
		}
		for _, tag := range tt.Tags {
			if cs, ok := tag.(*typedesc.Constraints); ok {
				s = applyConstraints(s, cs)
			}
		}
		return s, nil
	case *typedesc.Generic:
		if tt.Expand == nil {
			return nil, fmt.Errorf("jsonschema: generic %s has no expansion", tt.Origin)
		}
		return g.walk(tt.Expand(tt.Args))
	case *typedesc.Lazy:
		return g.walk(tt.Force())
	case *typedesc.Any:
		return &Schema{}, nil
	}
	return nil, fmt.Errorf("jsonschema: unknown description %T", t)
}

func (g *generator) object(o *typedesc.Object) (*Schema, error) {
	name := o.Name
	if name == "" && o.GoType != nil {
		name = o.GoType.String()
	}
	if name == "" {
		return g.buildObject(o)
	}
	if !g.started[name] {
		g.started[name] = true
		s, err := g.buildObject(o)
		if err != nil {
			return nil, err
		}
		g.defs[name] = s
	}
	return &Schema{Ref: "#/$defs/" + name}, nil
}

func (g *generator) buildObject(o *typedesc.Object) (*Schema, error) {
	s := &Schema{Type: "object", Properties: map[string]*Schema{}}
	var required []string
	additional := false
	for i := range o.Fields {
		f := &o.Fields[i]
		if f.Flatten {
			sub, ok := typedesc.BaseObject(f.Type)
			if !ok {
				return nil, fmt.Errorf("jsonschema: flattened field %s.%s is not an object", o.Name, f.Name)
			}
			fs, err := g.buildObject(sub)
			if err != nil {
				return nil, err
			}
			for k, p := range fs.Properties {
				s.Properties[k] = p
			}
			required = append(required, fs.Required...)
			continue
		}
		if f.Additional {
			mm, ok := mappingOf(f.Type)
			if !ok {
				return nil, fmt.Errorf("jsonschema: additional-properties field %s.%s is not a map", o.Name, f.Name)
			}
			vs, err := g.walk(mm.Value)
			if err != nil {
				return nil, err
			}
			s.AdditionalProperties = vs
			additional = true
			continue
		}
		fs, err := g.walk(f.Type)
		if err != nil {
			return nil, err
		}
		fs = applyConstraints(fs, f.Constraints)
		if f.HasDefault() {
			fs = clone(fs)
			fs.Default = f.DefaultValue()
		}
		if f.ReadOnly {
			fs = clone(fs)
			fs.ReadOnly = true
		}
		if f.WriteOnly {
			fs = clone(fs)
			fs.WriteOnly = true
		}
		key := g.aliaser(f.WireName())
		s.Properties[key] = fs
		if f.Required {
			required = append(required, key)
		}
	}
	sort.Strings(required)
	s.Required = required
	if !additional {
		s.AdditionalProperties = false
	}
	return s, nil
}

func mappingOf(t typedesc.Type) (*typedesc.Mapping, bool) {
	switch tt := t.(type) {
	case *typedesc.Mapping:
		return tt, true
	case *typedesc.Annotated:
		return mappingOf(tt.Inner)
	case *typedesc.Lazy:
		return mappingOf(tt.Force())
	}
	return nil, false
}

func primitiveSchema(kind typedesc.PrimitiveKind) *Schema {
	switch kind {
	case typedesc.KindNull:
		return &Schema{Type: "null"}
	case typedesc.KindBool:
		return &Schema{Type: "boolean"}
	case typedesc.KindInt:
		return &Schema{Type: "integer"}
	case typedesc.KindFloat:
		return &Schema{Type: "number"}
	case typedesc.KindString:
		return &Schema{Type: "string"}
	}
	return &Schema{}
}

// applyConstraints folds declarative constraints into a schema, cloning when
// the schema is a shared $ref target.
func applyConstraints(s *Schema, cs *typedesc.Constraints) *Schema {
	if cs == nil {
		return s
	}
	s = clone(s)
	s.Minimum = cs.Min
	s.Maximum = cs.Max
	s.ExclusiveMinimum = cs.ExclusiveMin
	s.ExclusiveMaximum = cs.ExclusiveMax
	s.MultipleOf = cs.MultipleOf
	s.MinLength = cs.MinLen
	s.MaxLength = cs.MaxLen
	if cs.Pattern != nil {
		s.Pattern = cs.Pattern.String()
	}
	s.MinItems = cs.MinItems
	s.MaxItems = cs.MaxItems
	if cs.Unique {
		s.UniqueItems = true
	}
	return s
}

func clone(s *Schema) *Schema {
	c := *s
	return &c
}

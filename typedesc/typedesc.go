// Package typedesc defines the closed description model for every shape the
// typeconv engine can (de)serialize, together with the reflection resolver
// that maps Go types onto it.
//
// Descriptions are immutable once built. Each description exposes a stable
// Fingerprint used by the method compiler to memoize compiled procedures;
// two structurally equal descriptions always share a fingerprint.
package typedesc

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Type is the closed variant set of shape descriptions.
type Type interface {
	// Fingerprint returns a stable identity string for memoization.
	Fingerprint() string
	sealed()
}

// PrimitiveKind enumerates JSON-primitive value kinds.
type PrimitiveKind int

const (
	KindNull PrimitiveKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k PrimitiveKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Primitive describes a JSON-primitive value. GoType, when set, records the
// concrete in-memory type (e.g. a named int) the compiled method targets.
type Primitive struct {
	Kind   PrimitiveKind
	GoType reflect.Type
}

func (p *Primitive) Fingerprint() string {
	if p.GoType != nil {
		return p.Kind.String() + "(" + p.GoType.String() + ")"
	}
	return p.Kind.String()
}
func (*Primitive) sealed() {}

// Collection describes a homogeneous sequence. Set selects set semantics:
// the in-memory form is a map[T]struct{} and the wire form a list.
type Collection struct {
	Item   Type
	Set    bool
	GoType reflect.Type
}

func (c *Collection) Fingerprint() string {
	k := "list"
	if c.Set {
		k = "set"
	}
	return k + "[" + c.Item.Fingerprint() + "]" + goSuffix(c.GoType)
}
func (*Collection) sealed() {}

// Mapping describes a homogeneous map with string-or-integer wire keys.
type Mapping struct {
	Key    Type
	Value  Type
	GoType reflect.Type
}

func (m *Mapping) Fingerprint() string {
	return "map[" + m.Key.Fingerprint() + "]" + m.Value.Fingerprint() + goSuffix(m.GoType)
}
func (*Mapping) sealed() {}

// Tuple describes a fixed-arity heterogeneous sequence. Go arrays resolve to
// tuples of identical item types.
type Tuple struct {
	Items  []Type
	GoType reflect.Type
}

func (t *Tuple) Fingerprint() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.Fingerprint()
	}
	return "tuple[" + strings.Join(parts, ",") + "]" + goSuffix(t.GoType)
}
func (*Tuple) sealed() {}

// Union describes ordered alternatives; deserialization tries them in
// declaration order and the first structural match wins.
type Union struct {
	Alternatives []Type
}

func (u *Union) Fingerprint() string {
	parts := make([]string, len(u.Alternatives))
	for i, a := range u.Alternatives {
		parts[i] = a.Fingerprint()
	}
	return "union[" + strings.Join(parts, "|") + "]"
}
func (*Union) sealed() {}

// Optional wraps t into a union with null, the descriptor form of Go
// pointer-typed (nullable) values.
func Optional(t Type) Type {
	return &Union{Alternatives: []Type{t, &Primitive{Kind: KindNull}}}
}

// Object describes a record with ordered named fields. Construct, when set,
// builds the in-memory value from validated field values keyed by field name;
// otherwise the compiler builds GoType (a struct) by reflection, or returns
// the field map when GoType is nil.
type Object struct {
	Name      string
	GoType    reflect.Type
	Fields    []Field
	Construct func(fields map[string]any) (any, error)
}

func (o *Object) Fingerprint() string {
	if o.GoType != nil {
		return "object(" + o.GoType.String() + ")"
	}
	return "object(" + o.Name + ")"
}
func (*Object) sealed() {}

// EnumMember is one named member of an enumeration, serialized by value.
type EnumMember struct {
	Name  string
	Value any
}

// Enum describes an enumeration over registered members.
type Enum struct {
	Name    string
	GoType  reflect.Type
	Members []EnumMember
}

func (e *Enum) Fingerprint() string {
	if e.GoType != nil {
		return "enum(" + e.GoType.String() + ")"
	}
	return "enum(" + e.Name + ")"
}
func (*Enum) sealed() {}

// Literal describes a closed set of accepted primitive values.
type Literal struct {
	Values []any
}

func (l *Literal) Fingerprint() string {
	parts := make([]string, len(l.Values))
	for i, v := range l.Values {
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return "literal[" + strings.Join(parts, ",") + "]"
}
func (*Literal) sealed() {}

// Skip marks a union alternative to be ignored by the compiler.
type Skip struct{}

// Annotated wraps an inner description with compile-time tags. Recognized
// tags are *Constraints, Skip and *FieldConversion; anything else is ignored.
type Annotated struct {
	Inner Type
	Tags  []any
}

func (a *Annotated) Fingerprint() string {
	parts := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		switch t := tag.(type) {
		case *Constraints:
			parts = append(parts, t.fingerprint())
		case Skip:
			parts = append(parts, "skip")
		case *FieldConversion:
			parts = append(parts, t.fingerprint())
		}
	}
	return "annotated[" + a.Inner.Fingerprint() + ";" + strings.Join(parts, ",") + "]"
}
func (*Annotated) sealed() {}

// Generic describes a parameterized description. Expand substitutes the
// arguments and returns the concrete structure; distinct argument lists
// compile to distinct procedures.
type Generic struct {
	Origin string
	Args   []Type
	Expand func(args []Type) Type
}

func (g *Generic) Fingerprint() string {
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = a.Fingerprint()
	}
	return g.Origin + "[" + strings.Join(parts, ",") + "]"
}
func (*Generic) sealed() {}

// Lazy defers resolution of a description, breaking recursive type graphs.
// Identity (and therefore fingerprint) is per Lazy instance, so one distinct
// recursive position forces at most once.
type Lazy struct {
	Resolve func() Type

	forced Type
}

func (l *Lazy) Fingerprint() string { return fmt.Sprintf("lazy(%p)", l) }
func (*Lazy) sealed()               {}

// Force resolves the deferred description, caching the result.
func (l *Lazy) Force() Type {
	if l.forced == nil {
		l.forced = l.Resolve()
	}
	return l.forced
}

// Any accepts any already-decoded primitive tree unchanged.
type Any struct{}

func (*Any) Fingerprint() string { return "any" }
func (*Any) sealed()             {}

// FieldConversion overrides (de)serialization for a single field or
// annotated position. Source/Target describe the wire side.
type FieldConversion struct {
	Source      Type
	Target      Type
	Deserialize func(v any) (any, error)
	Serialize   func(v any) (any, error)
}

func (fc *FieldConversion) fingerprint() string {
	var b strings.Builder
	b.WriteString("conv{")
	if fc.Source != nil {
		b.WriteString("src=" + fc.Source.Fingerprint())
	}
	if fc.Target != nil {
		b.WriteString(",tgt=" + fc.Target.Fingerprint())
	}
	fmt.Fprintf(&b, ",d=%p,s=%p}", fc.Deserialize, fc.Serialize)
	return b.String()
}

// Constraints is the declarative constraint set evaluated after structural
// validation. Nil pointers mean "not constrained".
type Constraints struct {
	Min          *float64
	Max          *float64
	ExclusiveMin *float64
	ExclusiveMax *float64
	MultipleOf   *float64
	MinLen       *int
	MaxLen       *int
	Pattern      *regexp.Regexp
	MinItems     *int
	MaxItems     *int
	Unique       bool
}

// Merge combines two constraint sets; o wins where both are set.
func (c *Constraints) Merge(o *Constraints) *Constraints {
	if c == nil {
		return o
	}
	if o == nil {
		return c
	}
	out := *c
	if o.Min != nil {
		out.Min = o.Min
	}
	if o.Max != nil {
		out.Max = o.Max
	}
	if o.ExclusiveMin != nil {
		out.ExclusiveMin = o.ExclusiveMin
	}
	if o.ExclusiveMax != nil {
		out.ExclusiveMax = o.ExclusiveMax
	}
	if o.MultipleOf != nil {
		out.MultipleOf = o.MultipleOf
	}
	if o.MinLen != nil {
		out.MinLen = o.MinLen
	}
	if o.MaxLen != nil {
		out.MaxLen = o.MaxLen
	}
	if o.MinItems != nil {
		out.MinItems = o.MinItems
	}
	if o.MaxItems != nil {
		out.MaxItems = o.MaxItems
	}
	out.Unique = c.Unique || o.Unique
	return &out
}

func (c *Constraints) fingerprint() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 8)
	addF := func(name string, v *float64) {
		if v != nil {
			parts = append(parts, name+"="+strconv.FormatFloat(*v, 'g', -1, 64))
		}
	}
	addI := func(name string, v *int) {
		if v != nil {
			parts = append(parts, name+"="+strconv.Itoa(*v))
		}
	}
	addF("min", c.Min)
	addF("max", c.Max)
	addF("xmin", c.ExclusiveMin)
	addF("xmax", c.ExclusiveMax)
	addF("multipleOf", c.MultipleOf)
	addI("minLen", c.MinLen)
	addI("maxLen", c.MaxLen)
	addI("minItems", c.MinItems)
	addI("maxItems", c.MaxItems)
	if c.Pattern != nil {
		parts = append(parts, "pattern="+c.Pattern.String())
	}
	if c.Unique {
		parts = append(parts, "unique")
	}
	sort.Strings(parts)
	return "cs{" + strings.Join(parts, ",") + "}"
}

func goSuffix(rt reflect.Type) string {
	if rt == nil {
		return ""
	}
	return "@" + rt.String()
}

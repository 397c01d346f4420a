package typedesc_test

import (
	"reflect"
	"testing"

	"github.com/reoring/typeconv/typedesc"
)

type sample struct {
	Name     string  `json:"name"`
	Renamed  string  `conv:"name=alias_wins" json:"ignored"`
	Optional *int    `json:"opt"`
	Count    int     `json:"count" conv:"default=3"`
	Hidden   string  `json:"-"`
	Skipped  string  `json:"s" conv:"skip"`
	Blob     []byte  `json:"blob" conv:"optional"`
	Ratio    float64 `json:"ratio" conv:"optional"`
}

func fieldByName(o *typedesc.Object, name string) *typedesc.Field {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			return &o.Fields[i]
		}
	}
	return nil
}

func TestFromType_Struct(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(sample{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, ok := desc.(*typedesc.Object)
	if !ok {
		t.Fatalf("expected *Object, got %T", desc)
	}
	if len(o.Fields) != 6 {
		t.Fatalf("want 6 fields, got %d: %+v", len(o.Fields), o.Fields)
	}

	name := fieldByName(o, "Name")
	if name == nil || name.WireName() != "name" || !name.Required {
		t.Fatalf("unexpected Name field: %+v", name)
	}
	renamed := fieldByName(o, "Renamed")
	if renamed == nil || renamed.WireName() != "alias_wins" {
		t.Fatalf("conv name must win over the json tag: %+v", renamed)
	}
	opt := fieldByName(o, "Optional")
	if opt == nil || opt.Required {
		t.Fatalf("pointer fields must be optional: %+v", opt)
	}
	if _, ok := opt.Type.(*typedesc.Union); !ok {
		t.Fatalf("pointer fields must resolve to a nullable union, got %T", opt.Type)
	}
	count := fieldByName(o, "Count")
	if count == nil || count.Required || !count.HasDefault() {
		t.Fatalf("defaulted fields must be optional: %+v", count)
	}
	if count.DefaultValue() != int64(3) {
		t.Fatalf("unexpected default: %v", count.DefaultValue())
	}
	if fieldByName(o, "Hidden") != nil || fieldByName(o, "Skipped") != nil {
		t.Fatalf("disabled fields must not resolve: %+v", o.Fields)
	}
	blob := fieldByName(o, "Blob")
	if p, ok := blob.Type.(*typedesc.Primitive); !ok || p.Kind != typedesc.KindString {
		t.Fatalf("byte slices must resolve to string primitives, got %T", blob.Type)
	}
}

func TestFromType_CachesResolution(t *testing.T) {
	a, err := typedesc.FromType(reflect.TypeOf(sample{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := typedesc.FromType(reflect.TypeOf(sample{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("resolution must be cached per type")
	}
}

func TestFromType_SetAndMap(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(map[string]struct{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, ok := desc.(*typedesc.Collection)
	if !ok || !c.Set {
		t.Fatalf("map[T]struct{} must resolve to a set, got %T", desc)
	}

	desc, err = typedesc.FromType(reflect.TypeOf(map[int]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := desc.(*typedesc.Mapping)
	if !ok {
		t.Fatalf("expected *Mapping, got %T", desc)
	}
	if k, ok := m.Key.(*typedesc.Primitive); !ok || k.Kind != typedesc.KindInt {
		t.Fatalf("unexpected key description: %+v", m.Key)
	}
}

func TestFromType_BadMapKey(t *testing.T) {
	_, err := typedesc.FromType(reflect.TypeOf(map[float64]string{}))
	if _, ok := err.(*typedesc.UnsupportedTypeError); !ok {
		t.Fatalf("expected *UnsupportedTypeError, got %v", err)
	}
}

func TestFromType_UnsupportedKind(t *testing.T) {
	_, err := typedesc.FromType(reflect.TypeOf(make(chan int)))
	ute, ok := err.(*typedesc.UnsupportedTypeError)
	if !ok {
		t.Fatalf("expected *UnsupportedTypeError, got %v", err)
	}
	if ute.GoType != reflect.TypeOf(make(chan int)) {
		t.Fatalf("unexpected type in error: %v", ute.GoType)
	}
}

type link struct {
	Next *link `json:"next"`
	V    int   `json:"v"`
}

func TestFromType_RecursionProducesLazy(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(link{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := desc.(*typedesc.Object)
	next := fieldByName(o, "Next")
	u, ok := next.Type.(*typedesc.Union)
	if !ok {
		t.Fatalf("pointer field must be a union, got %T", next.Type)
	}
	l, ok := u.Alternatives[0].(*typedesc.Lazy)
	if !ok {
		t.Fatalf("recursive position must defer, got %T", u.Alternatives[0])
	}
	if l.Force() != desc {
		t.Fatalf("the deferred description must tie back to its object")
	}
}

func TestFromType_Array(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf([3]int{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tu, ok := desc.(*typedesc.Tuple)
	if !ok || len(tu.Items) != 3 {
		t.Fatalf("arrays must resolve to fixed tuples, got %T", desc)
	}
}

func TestConstraints_Merge(t *testing.T) {
	one := 1.0
	two := 2.0
	a := &typedesc.Constraints{Min: &one}
	b := &typedesc.Constraints{Min: &two, Unique: true}
	m := a.Merge(b)
	if *m.Min != 2.0 || !m.Unique {
		t.Fatalf("the right side must win on overlap: %+v", m)
	}
	if *a.Min != 1.0 {
		t.Fatalf("merge must not mutate its inputs")
	}
}

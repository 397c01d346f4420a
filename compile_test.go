package typeconv_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/reoring/typeconv"
	"github.com/reoring/typeconv/typedesc"
)

func TestCompile_SameDescriptionSameMethod(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m1, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("identical (description, options) pairs must share one compiled method")
	}
}

func TestCompile_DistinctOptionsDistinctMethods(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m1, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, err := typeconv.CompileDeserializer(desc, typeconv.Options{Coercion: typeconv.Bool(true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m1 == m2 {
		t.Fatalf("different options must compile different methods")
	}
}

func TestCompile_SerializerAndDeserializerAreSeparate(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := typeconv.CompileSerializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == s {
		t.Fatalf("directions must not share compiled methods")
	}
}

func TestCompile_RecursiveDescriptionTerminates(t *testing.T) {
	desc, err := typedesc.FromType(reflect.TypeOf(node{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := typeconv.CompileDeserializer(desc); err != nil {
		t.Fatalf("recursive compilation must terminate: %v", err)
	}
	if _, err := typeconv.CompileSerializer(desc); err != nil {
		t.Fatalf("recursive compilation must terminate: %v", err)
	}
}

func TestCompile_CallAfterCompile(t *testing.T) {
	ctx := context.Background()
	desc, err := typedesc.FromType(reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := m.Call(ctx, map[string]any{"name": "a", "age": int64(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := out.(profile)
	if !ok || p.Name != "a" || p.Age != 2 {
		t.Fatalf("unexpected value: %+v", out)
	}
}

func TestSettings_MutationInvalidatesCache(t *testing.T) {
	defer typeconv.ResetSettings()
	desc, err := typedesc.FromType(reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m1, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := typeconv.CurrentSettings()
	s.Coercion = true
	typeconv.SetSettings(s)
	m2, err := typeconv.CompileDeserializer(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m1 == m2 {
		t.Fatalf("changed settings must recompile")
	}
}

func TestCompile_GenericPerArgumentList(t *testing.T) {
	ctx := context.Background()
	box := func(arg typedesc.Type) *typedesc.Generic {
		return &typedesc.Generic{
			Origin: "Box",
			Args:   []typedesc.Type{arg},
			Expand: func(args []typedesc.Type) typedesc.Type {
				return &typedesc.Object{
					Name: "Box[" + args[0].Fingerprint() + "]",
					Fields: []typedesc.Field{
						{Name: "value", Type: args[0], Required: true},
					},
				}
			},
		}
	}
	intBox := box(&typedesc.Primitive{Kind: typedesc.KindInt})
	strBox := box(&typedesc.Primitive{Kind: typedesc.KindString})

	m1, err := typeconv.CompileDeserializer(intBox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, err := typeconv.CompileDeserializer(box(&typedesc.Primitive{Kind: typedesc.KindInt}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("same argument list must share one compiled method")
	}
	ms, err := typeconv.CompileDeserializer(strBox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms == m1 {
		t.Fatalf("distinct argument lists must compile distinct methods")
	}

	out, err := m1.Call(ctx, map[string]any{"value": int64(7)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["value"] != int64(7) {
		t.Fatalf("unexpected value: %#v", out)
	}
	if _, err := ms.Call(ctx, map[string]any{"value": int64(7)}); err == nil {
		t.Fatalf("string box must reject an integer value")
	}
}

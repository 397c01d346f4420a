package typeconv_test

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/reoring/typeconv"
	"github.com/reoring/typeconv/typedesc"
)

func TestSerialize_Struct(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[profile](ctx, profile{Name: "alice", Age: 30, Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", out)
	}
	if m["name"] != "alice" || m["age"] != int64(30) {
		t.Fatalf("unexpected wire value: %v", m)
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "a" {
		t.Fatalf("unexpected tags: %v", m["tags"])
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	ctx := context.Background()
	in := profile{Name: "bob", Age: 41, Tags: []string{"x", "y"}}
	wire, err := typeconv.Serialize[profile](ctx, in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, err := typeconv.Deserialize[profile](ctx, wire)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !reflect.DeepEqual(in, back) {
		t.Fatalf("round trip mismatch: %+v != %+v", in, back)
	}
}

func TestSerialize_ExcludeNone(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[withOptional](ctx, withOptional{},
		typeconv.Options{ExcludeNone: typeconv.Bool(true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if _, present := m["n"]; present {
		t.Fatalf("nil field must be excluded: %v", m)
	}

	out, err = typeconv.Serialize[withOptional](ctx, withOptional{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m = out.(map[string]any)
	if v, present := m["n"]; !present || v != nil {
		t.Fatalf("without the option a nil field serializes as null: %v", m)
	}
}

func TestSerialize_ExcludeDefaults(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[withDefault](ctx, withDefault{Name: "a", Count: 7},
		typeconv.Options{ExcludeDefaults: typeconv.Bool(true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if _, present := m["count"]; present {
		t.Fatalf("default value must be excluded: %v", m)
	}

	out, err = typeconv.Serialize[withDefault](ctx, withDefault{Name: "a", Count: 8},
		typeconv.Options{ExcludeDefaults: typeconv.Bool(true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m = out.(map[string]any)
	if m["count"] != int64(8) {
		t.Fatalf("non-default value must stay: %v", m)
	}
}

func TestSerialize_ExcludeUnsetWithPresence(t *testing.T) {
	ctx := context.Background()
	dec, err := typeconv.DeserializeWithMeta[withDefault](ctx, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := typeconv.Serialize[withDefault](ctx, dec.Value,
		typeconv.Options{Presence: dec.Presence})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if _, present := m["count"]; present {
		t.Fatalf("unset field must be excluded: %v", m)
	}
	if m["name"] != "a" {
		t.Fatalf("seen field must stay: %v", m)
	}
}

func TestSerialize_Flatten(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[person](ctx, person{
		Name:    "bob",
		Address: address{City: "kyoto", Zip: "600"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["name"] != "bob" || m["city"] != "kyoto" || m["zip"] != "600" {
		t.Fatalf("flattened keys must splice into the parent: %v", m)
	}
	if _, present := m["Address"]; present {
		t.Fatalf("the flattened field itself must not appear: %v", m)
	}
}

func TestSerialize_AdditionalProperties(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[bag](ctx, bag{ID: "1", Extra: map[string]string{"a": "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["id"] != "1" || m["a"] != "x" {
		t.Fatalf("unexpected wire value: %v", m)
	}
}

func TestSerialize_SetIsSorted(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[map[string]struct{}](ctx,
		map[string]struct{}{"b": {}, "a": {}, "c": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr := out.([]any)
	if len(arr) != 3 || arr[0] != "a" || arr[1] != "b" || arr[2] != "c" {
		t.Fatalf("set must serialize sorted: %v", arr)
	}
}

func TestSerialize_MapIntKeys(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[map[int]string](ctx, map[int]string{1: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["1"] != "a" {
		t.Fatalf("integer keys must format as strings: %v", m)
	}
}

func TestSerialize_Enum(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[colorKind](ctx, colorKind("blue"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "blue" {
		t.Fatalf("unexpected wire value: %v", out)
	}
	if _, err := typeconv.Serialize[colorKind](ctx, colorKind("green")); err == nil {
		t.Fatalf("non-member must fail")
	}
}

func TestSerialize_CheckSerializedTypes(t *testing.T) {
	ctx := context.Background()
	desc := &typedesc.Primitive{Kind: typedesc.KindInt}
	strict := typeconv.Options{CheckSerializedTypes: typeconv.Bool(true)}

	if _, err := typeconv.SerializeType(ctx, desc, "x", strict); err == nil {
		t.Fatalf("strict serialization must reject a kind mismatch")
	}
	out, err := typeconv.SerializeType(ctx, desc, 5, strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != int64(5) {
		t.Fatalf("unexpected wire value: %v", out)
	}
}

func TestSerialize_Aliaser(t *testing.T) {
	ctx := context.Background()
	type snake struct {
		FirstName string `json:"first_name"`
	}
	out, err := typeconv.Serialize[snake](ctx, snake{FirstName: "ada"},
		typeconv.Options{Aliaser: typeconv.CamelCaseAliaser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["firstName"] != "ada" {
		t.Fatalf("unexpected wire value: %v", m)
	}
}

type accessControlled struct {
	ID     string `json:"id"`
	Stats  int    `json:"stats" conv:"readonly,optional"`
	Secret string `json:"secret" conv:"writeonly,optional"`
}

func TestSerialize_ReadOnlyWriteOnly(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[accessControlled](ctx,
		accessControlled{ID: "1", Stats: 9, Secret: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["stats"] != int64(9) {
		t.Fatalf("read-only field must serialize: %v", m)
	}
	if _, present := m["secret"]; present {
		t.Fatalf("write-only field must not serialize: %v", m)
	}

	got, err := typeconv.Deserialize[accessControlled](ctx,
		map[string]any{"id": "1", "secret": "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Secret != "s" || got.Stats != 0 {
		t.Fatalf("unexpected value: %+v", got)
	}

	// a read-only key on the wire is unknown input
	if _, err := typeconv.Deserialize[accessControlled](ctx,
		map[string]any{"id": "1", "stats": int64(9)}); err == nil {
		t.Fatalf("read-only key must be rejected on deserialization")
	}
}

func TestSerializeAny(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.SerializeAny(ctx, profile{Name: "a", Age: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["name"] != "a" {
		t.Fatalf("unexpected wire value: %v", m)
	}
}

func TestSerialize_Literal(t *testing.T) {
	ctx := context.Background()
	lit := &typedesc.Literal{Values: []any{"asc", "desc"}}

	out, err := typeconv.SerializeType(ctx, lit, "desc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "desc" {
		t.Fatalf("unexpected wire value: %v", out)
	}
	if _, err := typeconv.SerializeType(ctx, lit, "up"); err == nil {
		t.Fatalf("non-member literal must fail")
	}
}

func TestSerialize_LargeUintKeepsValue(t *testing.T) {
	ctx := context.Background()
	out, err := typeconv.Serialize[uint64](ctx, uint64(math.MaxUint64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := out.(json.Number)
	if !ok || n.String() != "18446744073709551615" {
		t.Fatalf("unexpected wire value: %#v", out)
	}

	out, err = typeconv.Serialize[uint64](ctx, uint64(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != int64(7) {
		t.Fatalf("unexpected wire value: %#v", out)
	}
}

package gojson_test

import (
	"encoding/json"
	"testing"

	"github.com/reoring/typeconv/source/gojson"
)

func TestDecode_NumbersStayExact(t *testing.T) {
	v, err := gojson.Decode([]byte(`{"n": 5, "f": 5.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := v.(map[string]any)
	if n, ok := m["n"].(json.Number); !ok || n.String() != "5" {
		t.Fatalf("integers must decode as json.Number, got %T %v", m["n"], m["n"])
	}
	if f, ok := m["f"].(json.Number); !ok || f.String() != "5.5" {
		t.Fatalf("floats must decode as json.Number, got %T %v", m["f"], m["f"])
	}
}

func TestDecode_Nested(t *testing.T) {
	v, err := gojson.Decode([]byte(`{"a": [true, null, "s"], "o": {"k": 1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := v.(map[string]any)
	arr := m["a"].([]any)
	if arr[0] != true || arr[1] != nil || arr[2] != "s" {
		t.Fatalf("unexpected array: %v", arr)
	}
	o := m["o"].(map[string]any)
	if _, ok := o["k"].(json.Number); !ok {
		t.Fatalf("nested numbers must normalize too: %T", o["k"])
	}
}

func TestDecode_TrailingInputFails(t *testing.T) {
	if _, err := gojson.Decode([]byte(`{} garbage`)); err == nil {
		t.Fatalf("trailing input must fail")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in := map[string]any{"s": "x", "n": int64(3)}
	b, err := gojson.Encode(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := gojson.Decode(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := back.(map[string]any)
	if m["s"] != "x" {
		t.Fatalf("unexpected value: %v", m)
	}
	if n := m["n"].(json.Number); n.String() != "3" {
		t.Fatalf("unexpected number: %v", n)
	}
}

package yaml_test

import (
	"testing"

	"github.com/reoring/typeconv/source/yaml"
)

func TestDecode_Scalars(t *testing.T) {
	v, err := yaml.Decode([]byte("n: 5\nf: 5.5\ns: hello\nb: true\nz: null\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := v.(map[string]any)
	if m["n"] != int64(5) {
		t.Fatalf("integers must normalize to int64, got %T %v", m["n"], m["n"])
	}
	if m["f"] != 5.5 || m["s"] != "hello" || m["b"] != true || m["z"] != nil {
		t.Fatalf("unexpected values: %v", m)
	}
}

func TestDecode_NestedNormalization(t *testing.T) {
	v, err := yaml.Decode([]byte("outer:\n  items:\n    - 1\n    - two\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := v.(map[string]any)
	outer, ok := m["outer"].(map[string]any)
	if !ok {
		t.Fatalf("nested maps must be string-keyed, got %T", m["outer"])
	}
	items := outer["items"].([]any)
	if items[0] != int64(1) || items[1] != "two" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestDecodeAll_MultiDocument(t *testing.T) {
	docs, err := yaml.DecodeAll([]byte("a: 1\n---\nb: 2\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 documents, got %d", len(docs))
	}
	if docs[0].(map[string]any)["a"] != int64(1) {
		t.Fatalf("unexpected first document: %v", docs[0])
	}
}

func TestDecode_Empty(t *testing.T) {
	v, err := yaml.Decode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("empty input must decode to nil, got %v", v)
	}
}

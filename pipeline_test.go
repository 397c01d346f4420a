package typeconv_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/reoring/typeconv"
	"github.com/reoring/typeconv/source/gojson"
	"github.com/reoring/typeconv/source/yaml"
)

type order struct {
	ID   string   `json:"id"`
	Qty  int      `json:"qty" conv:"min=1"`
	Note *string  `json:"note"`
	Tags []string `json:"tags" conv:"optional"`
}

func TestPipeline_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	in := []byte(`{"id":"o-1","qty":2,"tags":["a","b"]}`)

	tree, err := gojson.Decode(in)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := typeconv.Deserialize[order](ctx, tree)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	want := order{ID: "o-1", Qty: 2, Tags: []string{"a", "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected value: %+v", got)
	}

	wire, err := typeconv.Serialize[order](ctx, got, typeconv.Options{ExcludeNone: typeconv.Bool(true)})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := gojson.Encode(wire)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := gojson.Decode(out)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	expect := map[string]any{
		"id":   "o-1",
		"qty":  json.Number("2"),
		"tags": []any{"a", "b"},
	}
	if !reflect.DeepEqual(back, expect) {
		t.Fatalf("unexpected wire tree: %#v", back)
	}
}

func TestPipeline_JSONConstraintFailure(t *testing.T) {
	ctx := context.Background()
	tree, err := gojson.Decode([]byte(`{"id":"o-2","qty":0}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err = typeconv.Deserialize[order](ctx, tree)
	var ve *typeconv.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(ve.Error(), "/qty") {
		t.Fatalf("unexpected error: %v", ve)
	}
}

func TestPipeline_YAMLSource(t *testing.T) {
	ctx := context.Background()
	tree, err := yaml.Decode([]byte("id: o-3\nqty: 5\ntags: [x]\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := typeconv.Deserialize[order](ctx, tree)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.ID != "o-3" || got.Qty != 5 || len(got.Tags) != 1 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

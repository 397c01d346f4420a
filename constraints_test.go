package typeconv_test

import (
	"context"
	"testing"

	"github.com/reoring/typeconv"
)

type constrained struct {
	Name string   `json:"name" conv:"minLen=2,pattern=^[a-z]+$"`
	Age  int      `json:"age" conv:"min=0,max=150"`
	Tags []string `json:"tags" conv:"optional,unique,maxItems=3"`
}

func TestConstraints_Valid(t *testing.T) {
	ctx := context.Background()
	got, err := typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": "alice",
		"age":  int64(30),
		"tags": []any{"a", "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestConstraints_NumericBounds(t *testing.T) {
	ctx := context.Background()
	_, err := typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": "ok",
		"age":  int64(200),
	})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok || ve.At("age") == nil {
		t.Fatalf("want error at /age, got %v", err)
	}

	_, err = typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": "ok",
		"age":  int64(-1),
	})
	ve, ok = err.(*typeconv.ValidationError)
	if !ok || ve.At("age") == nil {
		t.Fatalf("want error at /age, got %v", err)
	}
}

func TestConstraints_StringRules(t *testing.T) {
	ctx := context.Background()
	_, err := typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": "A",
		"age":  int64(1),
	})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	sub := ve.At("name")
	if sub == nil {
		t.Fatalf("want error at /name, got %v", ve)
	}
	// both the length and the pattern violation report
	if len(sub.Messages) != 2 {
		t.Fatalf("want 2 messages, got %v", sub.Messages)
	}
}

func TestConstraints_UniqueItems(t *testing.T) {
	ctx := context.Background()
	_, err := typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": "ok",
		"age":  int64(1),
		"tags": []any{"a", "a", "b", "a"},
	})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	// duplicates report at their indexes, and the length cap reports too
	if ve.At("tags", "1") == nil || ve.At("tags", "3") == nil {
		t.Fatalf("want duplicate errors at /tags/1 and /tags/3: %v", ve)
	}
	if ve.At("tags") == nil || len(ve.At("tags").Messages) != 1 {
		t.Fatalf("want the maxItems message on /tags: %v", ve)
	}
}

func TestConstraints_AppliedAfterStructure(t *testing.T) {
	ctx := context.Background()
	// a structurally invalid value reports the type error, not constraints
	_, err := typeconv.Deserialize[constrained](ctx, map[string]any{
		"name": int64(5),
		"age":  int64(1),
	})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	sub := ve.At("name")
	if sub == nil || len(sub.Messages) != 1 {
		t.Fatalf("want a single structural error at /name: %v", ve)
	}
}

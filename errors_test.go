package typeconv_test

import (
	"strings"
	"testing"

	"github.com/reoring/typeconv"
)

func TestValidationError_MergeCombinesPaths(t *testing.T) {
	a := typeconv.NewValidationError("first")
	b := typeconv.NewValidationError("second")
	m := a.Merge(b)
	if len(m.Messages) != 2 || m.Messages[0] != "first" || m.Messages[1] != "second" {
		t.Fatalf("merge must keep receiver messages first: %v", m.Messages)
	}
	// inputs stay untouched
	if len(a.Messages) != 1 || len(b.Messages) != 1 {
		t.Fatalf("merge must not mutate its inputs")
	}
}

func TestValidationError_FlattenSortsChildren(t *testing.T) {
	e := &typeconv.ValidationError{
		Children: map[string]*typeconv.ValidationError{
			"b": typeconv.NewValidationError("bee"),
			"a": typeconv.NewValidationError("ay"),
		},
	}
	iss := e.Flatten()
	if len(iss) != 2 || iss[0].Path != "/a" || iss[1].Path != "/b" {
		t.Fatalf("children must flatten in sorted key order: %v", iss)
	}
}

func TestValidationError_FlattenEscapesPointerSegments(t *testing.T) {
	e := &typeconv.ValidationError{
		Children: map[string]*typeconv.ValidationError{
			"a/b": typeconv.NewValidationError("x"),
			"c~d": typeconv.NewValidationError("y"),
		},
	}
	iss := e.Flatten()
	if iss[0].Path != "/a~1b" || iss[1].Path != "/c~0d" {
		t.Fatalf("segments must escape per RFC 6901: %v", iss)
	}
}

func TestValidationError_ErrorSummarizes(t *testing.T) {
	e := &typeconv.ValidationError{
		Children: map[string]*typeconv.ValidationError{
			"a": typeconv.NewValidationError("one"),
			"b": typeconv.NewValidationError("two"),
			"c": typeconv.NewValidationError("three"),
			"d": typeconv.NewValidationError("four"),
		},
	}
	s := e.Error()
	if !strings.Contains(s, "one at /a") {
		t.Fatalf("summary must include the first issue: %q", s)
	}
	if !strings.Contains(s, "(total 4)") {
		t.Fatalf("summary must mention the total: %q", s)
	}
}

func TestValidationError_EmptyTreeNeverSurfaces(t *testing.T) {
	var e *typeconv.ValidationError
	if !e.IsEmpty() {
		t.Fatalf("nil error must be empty")
	}
	e = &typeconv.ValidationError{Children: map[string]*typeconv.ValidationError{
		"x": {},
	}}
	if !e.IsEmpty() {
		t.Fatalf("a tree without messages must be empty")
	}
}

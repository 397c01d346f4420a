package typeconv_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/reoring/typeconv"
)

type span struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

func init() {
	typeconv.ValidatorsFor[span](typeconv.Validator{
		Name: "ordered",
		Deps: []string{"Lo", "Hi"},
		Fn: func(ctx context.Context, fields map[string]any) ([]typeconv.ValidatorIssue, error) {
			if fields["Lo"].(int) > fields["Hi"].(int) {
				return []typeconv.ValidatorIssue{{Path: []string{"Lo"}, Message: "must not exceed hi"}}, nil
			}
			return nil, nil
		},
	})
}

func TestValidator_RunsAfterFields(t *testing.T) {
	ctx := context.Background()

	got, err := typeconv.Deserialize[span](ctx, map[string]any{"lo": int64(1), "hi": int64(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Lo != 1 || got.Hi != 2 {
		t.Fatalf("unexpected value: %+v", got)
	}

	_, err = typeconv.Deserialize[span](ctx, map[string]any{"lo": int64(3), "hi": int64(2)})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	// the issue path maps the field name to its wire key
	if ve.At("lo") == nil {
		t.Fatalf("want validator issue at /lo, got %v", ve)
	}
}

func TestValidator_SkippedWhenDependencyInvalid(t *testing.T) {
	ctx := context.Background()
	// hi is invalid, so the ordered validator must not run (and must not
	// panic on the missing view entry)
	_, err := typeconv.Deserialize[span](ctx, map[string]any{"lo": int64(3), "hi": "x"})
	ve, ok := err.(*typeconv.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.At("hi") == nil {
		t.Fatalf("want field error at /hi, got %v", ve)
	}
	if ve.At("lo") != nil {
		t.Fatalf("gated validator must not contribute issues: %v", ve)
	}
}

type gatedChain struct {
	A int `json:"a"`
	B int `json:"b"`
}

var secondValidatorRuns atomic.Int64

func init() {
	typeconv.ValidatorsFor[gatedChain](
		typeconv.Validator{
			Name:    "reject-a",
			Deps:    []string{"A"},
			Discard: []string{"A"},
			Fn: func(ctx context.Context, fields map[string]any) ([]typeconv.ValidatorIssue, error) {
				if fields["A"].(int) < 0 {
					return []typeconv.ValidatorIssue{{Path: []string{"A"}, Message: "must be positive"}}, nil
				}
				return nil, nil
			},
		},
		typeconv.Validator{
			Name: "needs-a",
			Deps: []string{"A"},
			Fn: func(ctx context.Context, fields map[string]any) ([]typeconv.ValidatorIssue, error) {
				secondValidatorRuns.Add(1)
				return nil, nil
			},
		},
	)
}

func TestValidator_DiscardGatesLaterValidators(t *testing.T) {
	ctx := context.Background()

	before := secondValidatorRuns.Load()
	_, err := typeconv.Deserialize[gatedChain](ctx, map[string]any{"a": int64(-1), "b": int64(0)})
	if err == nil {
		t.Fatalf("expected error")
	}
	if secondValidatorRuns.Load() != before {
		t.Fatalf("discarded dependency must gate the second validator")
	}

	_, err = typeconv.Deserialize[gatedChain](ctx, map[string]any{"a": int64(1), "b": int64(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondValidatorRuns.Load() != before+1 {
		t.Fatalf("second validator must run when nothing is discarded")
	}
}

type explosive struct {
	X int `json:"x"`
}

func init() {
	typeconv.ValidatorsFor[explosive](typeconv.Validator{
		Name: "boom",
		Fn: func(ctx context.Context, fields map[string]any) ([]typeconv.ValidatorIssue, error) {
			return nil, errInternal
		},
	})
}

var errInternal = &internalError{}

type internalError struct{}

func (*internalError) Error() string { return "internal failure" }

func TestValidator_ProgrammingErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	_, err := typeconv.Deserialize[explosive](ctx, map[string]any{"x": int64(1)})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := err.(*typeconv.ValidationError); ok {
		t.Fatalf("a validator error must be fatal, not a validation outcome: %v", err)
	}
	if err != errInternal {
		t.Fatalf("cause must propagate unchanged, got %v", err)
	}
}

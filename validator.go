package typeconv

import (
	"context"
	"reflect"
	"sync"
)

// ValidatorIssue is one (path, message) pair accumulated by a validator.
// Path segments are field names relative to the validated object; an empty
// path attaches the message to the object itself.
type ValidatorIssue struct {
	Path    []string
	Message string
}

// Validator is a post-field validation hook declared for an object type.
// Validators run in declaration order after every field validated
// individually, against a provisional view holding only the fields that did
// validate; a validator never observes an invalid field value.
type Validator struct {
	Name string
	// Deps names the fields the validator reads. The validator is skipped
	// when any of them failed individual validation; an empty set means the
	// validator always runs.
	Deps []string
	// Discard names fields marked newly invalid when this validator fails,
	// gating subsequent validators within the same pass.
	Discard []string
	// Fn returns accumulated issues. A non-nil error is a programming error
	// and aborts the whole deserialization call.
	Fn func(ctx context.Context, fields map[string]any) ([]ValidatorIssue, error)
}

var (
	validatorsMu sync.RWMutex
	validators   = map[reflect.Type][]Validator{}
)

// RegisterValidator appends a validator for the given object type.
func RegisterValidator(rt reflect.Type, v Validator) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	validators[rt] = append(validators[rt], v)
	clearMethodCache()
}

// ValidatorsFor is the generic registration convenience for struct types.
func ValidatorsFor[T any](vs ...Validator) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for _, v := range vs {
		RegisterValidator(rt, v)
	}
}

// ResetValidators clears all validator registrations; intended for test
// isolation.
func ResetValidators() {
	validatorsMu.Lock()
	validators = map[reflect.Type][]Validator{}
	validatorsMu.Unlock()
	clearMethodCache()
}

func validatorsOf(rt reflect.Type) []Validator {
	if rt == nil {
		return nil
	}
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()
	vs := validators[rt]
	if len(vs) == 0 {
		return nil
	}
	return append([]Validator(nil), vs...)
}

// runValidators executes validators with dependency gating. view holds only
// the individually-valid fields keyed by in-memory name; invalid is the set
// of failed field names, grown by Discard as validators fail. aliasOf maps a
// field name to its wire key so issue paths line up with field error paths.
func runValidators(ctx context.Context, vs []Validator, view map[string]any, invalid map[string]bool, aliasOf func(string) string) (*ValidationError, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	var err *ValidationError
	for _, v := range vs {
		gated := false
		for _, dep := range v.Deps {
			if invalid[dep] {
				gated = true
				break
			}
		}
		if gated {
			continue
		}
		issues, fatal := v.Fn(ctx, view)
		if fatal != nil {
			return nil, fatal
		}
		if len(issues) == 0 {
			continue
		}
		for _, is := range issues {
			path := make([]string, len(is.Path))
			for i, seg := range is.Path {
				if i == 0 {
					path[i] = aliasOf(seg)
				} else {
					path[i] = seg
				}
			}
			err = err.Merge(errorAt(path, is.Message))
		}
		for _, name := range v.Discard {
			invalid[name] = true
		}
	}
	return err.orNil(), nil
}

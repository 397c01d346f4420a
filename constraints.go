package typeconv

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/reoring/typeconv/typedesc"
)

// evaluateConstraints applies a declarative constraint set to a value whose
// structural validation already succeeded. It runs before object
// validators and feeds the same error model; uniqueness failures are
// reported per duplicate index, not as a single boolean.
func evaluateConstraints(cs *typedesc.Constraints, v any) *ValidationError {
	if cs == nil || v == nil {
		return nil
	}
	var err *ValidationError
	if f, ok := asFloat(v); ok {
		err = err.Merge(numericConstraints(cs, f))
	}
	if s, ok := asString(v); ok {
		err = err.Merge(stringConstraints(cs, s))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if _, isStr := v.(string); !isStr {
			err = err.Merge(itemConstraints(cs, rv))
		}
	}
	return err.orNil()
}

func numericConstraints(cs *typedesc.Constraints, f float64) *ValidationError {
	var err *ValidationError
	if cs.Min != nil && f < *cs.Min {
		err = err.Merge(NewValidationError(msg(CodeTooSmall, map[string]string{"want": ">= " + fmtFloat(*cs.Min)})))
	}
	if cs.Max != nil && f > *cs.Max {
		err = err.Merge(NewValidationError(msg(CodeTooBig, map[string]string{"want": "<= " + fmtFloat(*cs.Max)})))
	}
	if cs.ExclusiveMin != nil && f <= *cs.ExclusiveMin {
		err = err.Merge(NewValidationError(msg(CodeTooSmall, map[string]string{"want": "> " + fmtFloat(*cs.ExclusiveMin)})))
	}
	if cs.ExclusiveMax != nil && f >= *cs.ExclusiveMax {
		err = err.Merge(NewValidationError(msg(CodeTooBig, map[string]string{"want": "< " + fmtFloat(*cs.ExclusiveMax)})))
	}
	if cs.MultipleOf != nil && *cs.MultipleOf != 0 {
		if r := math.Abs(math.Mod(f, *cs.MultipleOf)); r > 1e-9 && math.Abs(r-*cs.MultipleOf) > 1e-9 {
			err = err.Merge(NewValidationError(msg(CodeMultipleOf, map[string]string{"want": fmtFloat(*cs.MultipleOf)})))
		}
	}
	return err
}

func stringConstraints(cs *typedesc.Constraints, s string) *ValidationError {
	var err *ValidationError
	n := utf8.RuneCountInString(s)
	if cs.MinLen != nil && n < *cs.MinLen {
		err = err.Merge(NewValidationError(msg(CodeTooShort, map[string]string{"want": ">= " + strconv.Itoa(*cs.MinLen)})))
	}
	if cs.MaxLen != nil && n > *cs.MaxLen {
		err = err.Merge(NewValidationError(msg(CodeTooLong, map[string]string{"want": "<= " + strconv.Itoa(*cs.MaxLen)})))
	}
	if cs.Pattern != nil && !cs.Pattern.MatchString(s) {
		err = err.Merge(NewValidationError(msg(CodePattern, map[string]string{"want": cs.Pattern.String()})))
	}
	return err
}

func itemConstraints(cs *typedesc.Constraints, rv reflect.Value) *ValidationError {
	var err *ValidationError
	n := rv.Len()
	if cs.MinItems != nil && n < *cs.MinItems {
		err = err.Merge(NewValidationError(msg(CodeTooFewItems, map[string]string{"want": ">= " + strconv.Itoa(*cs.MinItems)})))
	}
	if cs.MaxItems != nil && n > *cs.MaxItems {
		err = err.Merge(NewValidationError(msg(CodeTooManyItems, map[string]string{"want": "<= " + strconv.Itoa(*cs.MaxItems)})))
	}
	if cs.Unique && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		seen := mapset.NewThreadUnsafeSet[string]()
		for i := 0; i < rv.Len(); i++ {
			repr := fmt.Sprintf("%#v", rv.Index(i).Interface())
			if !seen.Add(repr) {
				err = err.Merge(childError(strconv.Itoa(i), NewValidationError(msg(CodeDuplicate, nil))))
			}
		}
	}
	return err
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

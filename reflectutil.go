package typeconv

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

func funcID(fn any) uintptr {
	if fn == nil {
		return 0
	}
	return reflect.ValueOf(fn).Pointer()
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// rangeError reports a numeric value that does not fit the target type.
// The deserializer turns it into a validation failure at the value's path.
type rangeError struct {
	value  string
	target string
}

func (e *rangeError) Error() string {
	return fmt.Sprintf("typeconv: value %s out of range for %s", e.value, e.target)
}

// fitsNumeric reports whether rv's numeric value is exactly representable
// in rt. Negative values never fit unsigned targets and fractional floats
// never fit integer targets.
func fitsNumeric(rv reflect.Value, rt reflect.Type) bool {
	zero := reflect.Zero(rt)
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return !zero.OverflowInt(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			return u <= math.MaxInt64 && !zero.OverflowInt(int64(u))
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return false
			}
			return !zero.OverflowInt(int64(f))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			x := rv.Int()
			return x >= 0 && !zero.OverflowUint(uint64(x))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return !zero.OverflowUint(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return false
			}
			return !zero.OverflowUint(uint64(f))
		}
	case reflect.Float32, reflect.Float64:
		if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			return !zero.OverflowFloat(rv.Float())
		}
	}
	return true
}

// convertCompatible guards reflect conversion so that only value-preserving
// conversions happen; notably int->string (rune conversion) is excluded.
func convertCompatible(from, to reflect.Type) bool {
	if isNumericKind(from.Kind()) && isNumericKind(to.Kind()) {
		return true
	}
	if from.Kind() == to.Kind() {
		return true
	}
	if from.Kind() == reflect.String && to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.Uint8 {
		return true
	}
	if from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 && to.Kind() == reflect.String {
		return true
	}
	return false
}

// coerceToGo converts a deserialized value into the requested Go type,
// allocating pointers for optional positions and applying kind-preserving
// conversions (named ints, string aliases, byte slices).
func coerceToGo(v any, rt reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch rt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(rt), nil
		}
		return reflect.Value{}, fmt.Errorf("typeconv: cannot assign null to %s", rt)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(rt) {
		return rv, nil
	}
	if rt.Kind() == reflect.Pointer {
		ev, err := coerceToGo(v, rt.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		pv := reflect.New(rt.Elem())
		pv.Elem().Set(ev)
		return pv, nil
	}
	if convertCompatible(rv.Type(), rt) && rv.Type().ConvertibleTo(rt) {
		if isNumericKind(rv.Kind()) && isNumericKind(rt.Kind()) && !fitsNumeric(rv, rt) {
			return reflect.Value{}, &rangeError{value: fmt.Sprint(v), target: rt.String()}
		}
		return rv.Convert(rt), nil
	}
	return reflect.Value{}, fmt.Errorf("typeconv: cannot assign %s to %s", rv.Type(), rt)
}

// wirePrimitive flattens a typed in-memory primitive into its JSON-primitive
// wire form: plain bool, int64, float64 or string.
func wirePrimitive(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			// exact decimal form instead of a sign-flipped int64
			return json.Number(strconv.FormatUint(u, 10))
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
	}
	return v
}

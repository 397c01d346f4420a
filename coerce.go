package typeconv

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/reoring/typeconv/typedesc"
)

// Coercer converts a structurally-wrong-typed primitive into the expected
// kind. It returns the coerced value or an error when no sensible coercion
// exists; the compiled method re-validates the result's kind either way.
type Coercer func(kind typedesc.PrimitiveKind, v any) (any, error)

// strToBool accepts the usual textual boolean spellings.
var strToBool = map[string]bool{
	"0": false, "1": true,
	"f": false, "t": true,
	"n": false, "y": true,
	"no": false, "yes": true,
	"false": false, "true": true,
	"off": false, "on": true,
}

// DefaultCoercer is the built-in best-effort coercion used when
// Settings.Coercion is enabled without a custom Coercer.
func DefaultCoercer(kind typedesc.PrimitiveKind, v any) (any, error) {
	switch kind {
	case typedesc.KindNull:
		if s, ok := v.(string); ok && s == "" {
			return nil, nil
		}
		return nil, coercionError(kind, v)
	case typedesc.KindBool:
		if s, ok := v.(string); ok {
			if b, ok := strToBool[strings.ToLower(s)]; ok {
				return b, nil
			}
			return nil, coercionError(kind, v)
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, coercionError(kind, v)
		}
		return b, nil
	case typedesc.KindInt:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, coercionError(kind, v)
		}
		return n, nil
	case typedesc.KindFloat:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, coercionError(kind, v)
		}
		return f, nil
	case typedesc.KindString:
		switch v.(type) {
		case []any, map[string]any:
			return nil, coercionError(kind, v)
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, coercionError(kind, v)
		}
		return s, nil
	default:
		return nil, coercionError(kind, v)
	}
}

func coercionError(kind typedesc.PrimitiveKind, v any) *ValidationError {
	_ = v
	return NewValidationError(msg(CodeCoercionFailed, map[string]string{"expected": kind.String()}))
}

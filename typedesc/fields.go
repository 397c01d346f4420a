package typedesc

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Field is the normalized descriptor the compiler consumes for one object
// field. The origin representation (struct tag, registration call, builder)
// never leaks past this point.
type Field struct {
	Name     string // in-memory name
	Alias    string // wire name before the aliaser runs; empty means Name
	Type     Type
	Required bool
	// Default and DefaultFactory are mutually exclusive with Required.
	Default        any
	DefaultFactory func() any
	Constraints    *Constraints
	Conversion     *FieldConversion
	// Flatten splices the field's own object fields into the parent's wire
	// key space; Additional marks the single catch-all for unmatched keys.
	Flatten    bool
	Additional bool
	// ReadOnly fields only appear on serialization; WriteOnly fields only on
	// deserialization.
	ReadOnly  bool
	WriteOnly bool
	// Metadata carries open key->value annotations for external consumers
	// (schema generators and the like).
	Metadata map[string]any

	// Index is the struct field index used when building by reflection; -1
	// for non-struct origins.
	Index int
}

// WireName returns the alias or, when unset, the in-memory name.
func (f *Field) WireName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// HasDefault reports whether the field carries a default value or factory.
func (f *Field) HasDefault() bool { return f.Default != nil || f.DefaultFactory != nil }

// DefaultValue materializes the default, preferring the factory.
func (f *Field) DefaultValue() any {
	if f.DefaultFactory != nil {
		return f.DefaultFactory()
	}
	return f.Default
}

// ResolveStructKey applies the repository-wide rule to resolve a struct
// field's wire key. Priority: conv:"name=..." > json tag name > field name;
// "-" disables the field.
func ResolveStructKey(sf reflect.StructField) string {
	if ct := sf.Tag.Get("conv"); ct != "" {
		for _, p := range strings.Split(ct, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			return jt[:i]
		}
		return jt
	}
	return sf.Name
}

// fieldOptions is the parsed form of a conv struct tag.
type fieldOptions struct {
	required   bool
	optional   bool
	flatten    bool
	additional bool
	readOnly   bool
	writeOnly  bool
	skip       bool
	defaultRaw string
	hasDefault bool
	cs         *Constraints
}

// parseFieldTag parses the conv tag. Constraint values are validated here so
// malformed tags surface at resolution time rather than during a parse.
func parseFieldTag(sf reflect.StructField) (fieldOptions, error) {
	var fo fieldOptions
	tag := sf.Tag.Get("conv")
	if tag == "" {
		return fo, nil
	}
	cs := &Constraints{}
	used := false
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, hasVal := strings.Cut(part, "=")
		switch key {
		case "name":
			// handled by ResolveStructKey
		case "required":
			fo.required = true
		case "optional":
			fo.optional = true
		case "flatten":
			fo.flatten = true
		case "additional":
			fo.additional = true
		case "readonly":
			fo.readOnly = true
		case "writeonly":
			fo.writeOnly = true
		case "skip":
			fo.skip = true
		case "default":
			fo.defaultRaw = val
			fo.hasDefault = true
		case "min", "max", "xmin", "xmax", "multipleOf":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fo, fmt.Errorf("typedesc: field %s: bad %s value %q", sf.Name, key, val)
			}
			used = true
			switch key {
			case "min":
				cs.Min = &f
			case "max":
				cs.Max = &f
			case "xmin":
				cs.ExclusiveMin = &f
			case "xmax":
				cs.ExclusiveMax = &f
			case "multipleOf":
				cs.MultipleOf = &f
			}
		case "minLen", "maxLen", "minItems", "maxItems":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fo, fmt.Errorf("typedesc: field %s: bad %s value %q", sf.Name, key, val)
			}
			used = true
			switch key {
			case "minLen":
				cs.MinLen = &n
			case "maxLen":
				cs.MaxLen = &n
			case "minItems":
				cs.MinItems = &n
			case "maxItems":
				cs.MaxItems = &n
			}
		case "pattern":
			re, err := regexp.Compile(val)
			if err != nil {
				return fo, fmt.Errorf("typedesc: field %s: bad pattern %q: %v", sf.Name, val, err)
			}
			used = true
			cs.Pattern = re
		case "unique":
			used = true
			cs.Unique = true
		default:
			if !hasVal {
				// unknown bare option; ignored like unrecognized Annotated tags
				continue
			}
		}
	}
	if used {
		fo.cs = cs
	}
	return fo, nil
}

// parseDefault converts a tag default literal into the field's Go type.
func parseDefault(raw string, rt reflect.Type) (any, error) {
	switch rt.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(raw, 64)
	default:
		return nil, fmt.Errorf("typedesc: default literal unsupported for %s", rt)
	}
}

// Package typeconv derives serialization, deserialization and validation
// from Go type declarations. Struct types resolve once into descriptions,
// which compile into cached procedures specialized per options set, so the
// reflective cost is paid at first use rather than per value.
//
// Deserialization validates exhaustively: every invalid field, element and
// unknown key is reported in one *ValidationError tree annotated with JSON
// Pointer paths. Conversions registered for a Go type bridge custom wire
// shapes in both directions, and per-type validators run against the fields
// that did validate.
//
// The source/json and source/yaml packages decode raw bytes into the
// primitive trees this package consumes, and the jsonschema package
// generates JSON Schema documents from the same descriptions.
package typeconv

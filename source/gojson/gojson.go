// Package gojson decodes and encodes JSON wire data for typeconv, backed by
// goccy/go-json. Numbers decode as json.Number so integers survive without a
// float round-trip.
package gojson

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"

	j "github.com/goccy/go-json"
)

// Decode parses one JSON document into the primitive tree typeconv
// consumes: nil, bool, json.Number, string, []any and map[string]any.
// Trailing non-whitespace input is an error.
func Decode(data []byte) (any, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode over a stream.
func DecodeReader(r io.Reader) (any, error) {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("gojson: unexpected trailing document")
		}
		return nil, err
	}
	return normalize(v), nil
}

// Encode renders a wire primitive tree as compact JSON.
func Encode(v any) ([]byte, error) {
	return j.Marshal(v)
}

// EncodeIndent renders a wire primitive tree as indented JSON.
func EncodeIndent(v any, prefix, indent string) ([]byte, error) {
	return j.MarshalIndent(v, prefix, indent)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalize(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalize(vv)
		}
		return t
	case j.Number:
		return stdjson.Number(t)
	}
	return v
}

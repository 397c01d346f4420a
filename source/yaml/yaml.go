// Package yaml decodes YAML wire data for typeconv, normalizing the
// map[any]any shapes yaml.v3 produces into the JSON-like primitive tree the
// engine consumes.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	yamlv3 "gopkg.in/yaml.v3"
)

// Decode parses the first YAML document into a primitive tree: nil, bool,
// int64, float64, string, []any and map[string]any.
func Decode(data []byte) (any, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode over a stream.
func DecodeReader(r io.Reader) (any, error) {
	dec := yamlv3.NewDecoder(r)
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return normalize(v)
}

// DecodeAll parses a multi-document stream, one primitive tree per document.
func DecodeAll(data []byte) ([]any, error) {
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	var docs []any
	for {
		var v any
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, err
		}
		nv, err := normalize(v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, nv)
	}
}

// Encode renders a wire primitive tree as YAML.
func Encode(v any) ([]byte, error) {
	return yamlv3.Marshal(v)
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			nv, err := normalize(vv)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			nv, err := normalize(vv)
			if err != nil {
				return nil, err
			}
			out[ks] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			nv, err := normalize(vv)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case int:
		return int64(t), nil
	case uint64:
		if t > 1<<63-1 {
			return nil, fmt.Errorf("yaml: integer %d overflows int64", t)
		}
		return int64(t), nil
	}
	return v, nil
}

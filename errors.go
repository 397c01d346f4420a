package typeconv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reoring/typeconv/i18n"
	"github.com/reoring/typeconv/typedesc"
)

// msg renders the localized message for an issue code.
func msg(code string, data map[string]string) string { return i18n.T(code, data) }

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType        = "invalid_type"
	CodeMissingProperty    = "missing_property"
	CodeUnexpectedProperty = "unexpected_property"
	CodeInvalidEnum        = "invalid_enum"
	CodeInvalidLiteral     = "invalid_literal"
	CodeCoercionFailed     = "coercion_failed"
	CodeWrongLength        = "wrong_length"
	CodeOutOfRange         = "out_of_range"
	// constraint evaluation
	CodeTooSmall     = "too_small"
	CodeTooBig       = "too_big"
	CodeTooShort     = "too_short"
	CodeTooLong      = "too_long"
	CodeTooFewItems  = "too_few_items"
	CodeTooManyItems = "too_many_items"
	CodePattern      = "pattern"
	CodeMultipleOf   = "multiple_of"
	CodeDuplicate    = "duplicate_item"
)

// ValidationError is the structured, path-annotated error produced by
// deserialization. Messages apply at the current position; Children map a
// wire key or element index to the nested error. A tree with no messages
// anywhere is "no error" and is never surfaced.
type ValidationError struct {
	Messages []string
	Children map[string]*ValidationError
}

// NewValidationError builds a leaf error from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// childError nests err one level down under key.
func childError(key string, err *ValidationError) *ValidationError {
	if err == nil {
		return nil
	}
	return &ValidationError{Children: map[string]*ValidationError{key: err}}
}

// errorAt nests a single message under the given path segments.
func errorAt(path []string, msg string) *ValidationError {
	err := NewValidationError(msg)
	for i := len(path) - 1; i >= 0; i-- {
		err = childError(path[i], err)
	}
	return err
}

// Merge returns the path-wise union of e and o without mutating either.
// Overlapping paths concatenate message lists (receiver first) and merge
// children recursively.
func (e *ValidationError) Merge(o *ValidationError) *ValidationError {
	if e == nil {
		return o
	}
	if o == nil {
		return e
	}
	out := &ValidationError{}
	out.Messages = append(append([]string(nil), e.Messages...), o.Messages...)
	if len(e.Children) > 0 || len(o.Children) > 0 {
		out.Children = make(map[string]*ValidationError, len(e.Children)+len(o.Children))
		for k, c := range e.Children {
			out.Children[k] = c.Merge(o.Children[k])
		}
		for k, c := range o.Children {
			if _, seen := e.Children[k]; !seen {
				out.Children[k] = c
			}
		}
	}
	return out
}

// IsEmpty reports whether no message exists anywhere in the tree.
func (e *ValidationError) IsEmpty() bool {
	if e == nil {
		return true
	}
	if len(e.Messages) > 0 {
		return false
	}
	for _, c := range e.Children {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// orNil collapses an empty tree to nil so it never surfaces as a failure.
func (e *ValidationError) orNil() *ValidationError {
	if e.IsEmpty() {
		return nil
	}
	return e
}

// Issue is one flattened validation entry: a JSON Pointer path plus message.
type Issue struct {
	Path    string
	Message string
}

// Flatten renders the tree into JSON-Pointer-pathed issues, children in
// sorted key order, message order preserved within a path.
func (e *ValidationError) Flatten() []Issue {
	var out []Issue
	e.flatten("", &out)
	return out
}

func (e *ValidationError) flatten(path string, out *[]Issue) {
	if e == nil {
		return
	}
	p := path
	if p == "" {
		p = "/"
	}
	for _, m := range e.Messages {
		*out = append(*out, Issue{Path: p, Message: m})
	}
	keys := make([]string, 0, len(e.Children))
	for k := range e.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Children[k].flatten(path+"/"+escapePointer(k), out)
	}
}

// At returns the child error at the given path segments, or nil.
func (e *ValidationError) At(path ...string) *ValidationError {
	cur := e
	for _, seg := range path {
		if cur == nil {
			return nil
		}
		cur = cur.Children[seg]
	}
	return cur
}

// Error summarizes the first few issues.
func (e *ValidationError) Error() string {
	iss := e.Flatten()
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(iss)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Message, iss[i].Path)
	}
	if len(iss) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(iss))
	}
	return b.String()
}

// escapePointer applies RFC 6901 escaping to one path segment.
func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// UnsupportedTypeError is re-exported from typedesc: a type annotation maps
// to no description variant and has no registered conversion.
type UnsupportedTypeError = typedesc.UnsupportedTypeError

// ConflictingFlattenedFieldsError is the fatal compile-time failure for two
// flattened sub-objects sharing a wire key, or a flattened field coexisting
// with an additional-properties catch-all.
type ConflictingFlattenedFieldsError struct {
	Object string
	Keys   []string
}

func (e *ConflictingFlattenedFieldsError) Error() string {
	return fmt.Sprintf("typeconv: conflicting flattened fields in %s: %s", e.Object, strings.Join(e.Keys, ", "))
}

// ConverterError is the fatal run-time failure for a conversion function
// raising something other than a validation outcome. It propagates unwrapped
// semantics: the whole (de)serialization call aborts.
type ConverterError struct {
	Target string
	Err    error
}

func (e *ConverterError) Error() string {
	return fmt.Sprintf("typeconv: converter for %s failed: %v", e.Target, e.Err)
}

func (e *ConverterError) Unwrap() error { return e.Err }

// asValidation extracts a *ValidationError, distinguishing recoverable
// validation outcomes from fatal errors.
func asValidation(err error) (*ValidationError, bool) {
	if err == nil {
		return nil, false
	}
	ve, ok := err.(*ValidationError)
	return ve, ok
}

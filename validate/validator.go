package validate

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Result holds the outcome of a validation: exactly one of Content or Err is
// meaningful. When Err is nil, Content is the validated value.
type Result[T any] struct {
	Content T
	Err     error
}

// OK reports whether validation succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Validator checks an untrusted value against an expected shape.
type Validator[T any] interface {
	// Validate checks input and returns the validated content or an error
	// naming the violating field. It must never panic.
	Validate(input any) Result[T]

	// JSONSchema describes the accepted shape.
	JSONSchema() *jsonschema.Schema
}

// Error is returned for any shape mismatch. Path is empty for a mismatch at
// the root and otherwise a dotted path with bracketed array indices, e.g.
// "agents[2].tools[0]".
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// within returns err re-rooted under seg. Non *Error values are wrapped so
// that the caller always observes a *Error.
func within(err error, seg string) error {
	ve, ok := err.(*Error)
	if !ok {
		return &Error{Path: seg, Reason: err.Error()}
	}
	switch {
	case ve.Path == "":
		return &Error{Path: seg, Reason: ve.Reason}
	case strings.HasPrefix(ve.Path, "["):
		return &Error{Path: seg + ve.Path, Reason: ve.Reason}
	default:
		return &Error{Path: seg + "." + ve.Path, Reason: ve.Reason}
	}
}

func mismatch(want string, got any) *Error {
	return &Error{Reason: fmt.Sprintf("expected %s, got %s", want, kindOf(got))}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// funcValidator adapts a validation function and a schema constructor to the
// Validator interface.
type funcValidator[T any] struct {
	fn     func(input any) (T, error)
	schema func() *jsonschema.Schema
}

func (f *funcValidator[T]) Validate(input any) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = Result[T]{Content: zero, Err: &Error{Reason: fmt.Sprintf("validator panicked: %v", r)}}
		}
	}()
	v, err := f.fn(input)
	if err != nil {
		var zero T
		return Result[T]{Content: zero, Err: err}
	}
	return Result[T]{Content: v}
}

func (f *funcValidator[T]) JSONSchema() *jsonschema.Schema { return f.schema() }

// New builds a Validator from a validation function. It is the extension
// point for shapes the built-in combinators cannot express. Errors that are
// not *Error are wrapped.
func New[T any](fn func(input any) (T, error), schema func() *jsonschema.Schema) Validator[T] {
	if schema == nil {
		schema = func() *jsonschema.Schema { return &jsonschema.Schema{} }
	}
	return &funcValidator[T]{
		fn: func(input any) (T, error) {
			v, err := fn(input)
			if err != nil {
				if _, ok := err.(*Error); !ok {
					err = &Error{Reason: err.Error()}
				}
			}
			return v, err
		},
		schema: schema,
	}
}

// erase drops the static type of a validator so heterogeneous validators can
// be stored side by side in an object Shape.
func erase[T any](v Validator[T]) func(any) (any, error) {
	return func(input any) (any, error) {
		res := v.Validate(input)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Content, nil
	}
}

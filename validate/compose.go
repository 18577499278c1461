package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/invopop/jsonschema"
)

// Union accepts input matching a or b, trying a first. When both branches
// fail, the error of the last branch is reported.
func Union[A, B any](a Validator[A], b Validator[B]) Validator[any] {
	return &funcValidator[any]{
		fn: func(input any) (any, error) {
			if res := a.Validate(input); res.OK() {
				return res.Content, nil
			}
			res := b.Validate(input)
			if !res.OK() {
				return nil, res.Err
			}
			return res.Content, nil
		},
		schema: func() *jsonschema.Schema {
			return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{a.JSONSchema(), b.JSONSchema()}}
		},
	}
}

// Nullable accepts null or a value matching v. Null yields a nil pointer.
func Nullable[T any](v Validator[T]) Validator[*T] {
	return &funcValidator[*T]{
		fn: func(input any) (*T, error) {
			if input == nil {
				return nil, nil
			}
			res := v.Validate(input)
			if !res.OK() {
				return nil, res.Err
			}
			return &res.Content, nil
		},
		schema: func() *jsonschema.Schema {
			return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{v.JSONSchema(), {Type: "null"}}}
		},
	}
}

// Array accepts a sequence whose every element matches v. Validation stops
// at the first invalid element and the error path carries its index.
func Array[T any](v Validator[T]) Validator[[]T] {
	return &funcValidator[[]T]{
		fn: func(input any) ([]T, error) {
			items, ok := asSlice(input)
			if !ok {
				return nil, mismatch("array", input)
			}
			out := make([]T, 0, len(items))
			for i, item := range items {
				res := v.Validate(item)
				if !res.OK() {
					return nil, within(res.Err, fmt.Sprintf("[%d]", i))
				}
				out = append(out, res.Content)
			}
			return out, nil
		},
		schema: func() *jsonschema.Schema {
			return &jsonschema.Schema{Type: "array", Items: v.JSONSchema()}
		},
	}
}

func asSlice(input any) ([]any, bool) {
	if items, ok := input.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(input)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is binary data, not a JSON sequence.
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Field is one declared member of an object Shape.
type Field struct {
	validate func(any) (any, error)
	schema   func() *jsonschema.Schema
	required bool
}

// Required declares a field that must be present and match v.
func Required[T any](v Validator[T]) Field {
	return Field{validate: erase(v), schema: v.JSONSchema, required: true}
}

// Optional declares a field that may be absent; when present it must match v.
func Optional[T any](v Validator[T]) Field {
	return Field{validate: erase(v), schema: v.JSONSchema}
}

// Shape maps field names to their declarations.
type Shape map[string]Field

// Obj accepts a keyed record matching shape. The validated content contains
// only the declared fields that were present in the input; unknown fields are
// dropped. Fields are checked in lexical order so failures are deterministic.
func Obj(shape Shape) Validator[map[string]any] {
	keys := make([]string, 0, len(shape))
	for k := range shape {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return &funcValidator[map[string]any]{
		fn: func(input any) (map[string]any, error) {
			record, ok := input.(map[string]any)
			if !ok {
				return nil, mismatch("object", input)
			}
			out := make(map[string]any, len(keys))
			for _, k := range keys {
				field := shape[k]
				raw, present := record[k]
				if !present {
					if field.required {
						return nil, &Error{Path: k, Reason: "required field is missing"}
					}
					continue
				}
				v, err := field.validate(raw)
				if err != nil {
					return nil, within(err, k)
				}
				out[k] = v
			}
			return out, nil
		},
		schema: func() *jsonschema.Schema {
			props := jsonschema.NewProperties()
			var required []string
			for _, k := range keys {
				props.Set(k, shape[k].schema())
				if shape[k].required {
					required = append(required, k)
				}
			}
			return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
		},
	}
}

// Into converts the record produced by v into T by way of T's json tags.
// Conversion failures are reported as validation errors.
func Into[T any](v Validator[map[string]any]) Validator[T] {
	return &funcValidator[T]{
		fn: func(input any) (T, error) {
			var out T
			res := v.Validate(input)
			if !res.OK() {
				return out, res.Err
			}
			b, err := json.Marshal(res.Content)
			if err != nil {
				return out, &Error{Reason: fmt.Sprintf("cannot encode validated content: %v", err)}
			}
			if err := json.Unmarshal(b, &out); err != nil {
				return out, &Error{Reason: fmt.Sprintf("cannot convert to %T: %v", out, err)}
			}
			return out, nil
		},
		schema: v.JSONSchema,
	}
}

// Parse decodes raw JSON and validates the result. Malformed JSON is
// reported as a *Error rather than a decoder error.
func Parse[T any](v Validator[T], raw []byte) Result[T] {
	decoded, err := Decode(raw)
	if err != nil {
		var zero T
		return Result[T]{Content: zero, Err: &Error{Reason: fmt.Sprintf("malformed JSON: %v", err)}}
	}
	return v.Validate(decoded)
}

// Decode parses a single JSON value. Numbers are kept as json.Number so
// integers outside the float64 range reach Integer intact.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("invalid data after top-level value")
	}
	return out, nil
}

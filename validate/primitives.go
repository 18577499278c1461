package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
)

// String accepts string values.
func String() Validator[string] {
	return &funcValidator[string]{
		fn: func(input any) (string, error) {
			s, ok := input.(string)
			if !ok {
				return "", mismatch("string", input)
			}
			return s, nil
		},
		schema: func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} },
	}
}

// Number accepts any finite numeric value and normalizes it to float64,
// matching the representation produced by encoding/json.
func Number() Validator[float64] {
	return &funcValidator[float64]{
		fn: func(input any) (float64, error) {
			f, ok := toFloat(input)
			if !ok {
				return 0, mismatch("number", input)
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0, &Error{Reason: "expected finite number"}
			}
			return f, nil
		},
		schema: func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} },
	}
}

// Integer accepts whole numbers that fit in an int64. json.Number input is
// converted without passing through float64, so ids above 2^53 survive.
func Integer() Validator[int64] {
	return &funcValidator[int64]{
		fn: func(input any) (int64, error) {
			if n, ok := input.(json.Number); ok {
				if i, err := n.Int64(); err == nil {
					return i, nil
				}
			}
			if u, ok := input.(uint64); ok {
				if u > math.MaxInt64 {
					return 0, &Error{Reason: "integer out of range"}
				}
				return int64(u), nil
			}
			if u, ok := input.(uint); ok {
				if uint64(u) > math.MaxInt64 {
					return 0, &Error{Reason: "integer out of range"}
				}
				return int64(u), nil
			}
			f, ok := toFloat(input)
			if !ok {
				return 0, mismatch("integer", input)
			}
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return 0, &Error{Reason: fmt.Sprintf("expected integer, got %v", f)}
			}
			if f < -maxExactFloat || f > maxExactFloat {
				if i, ok := exactInt(input); ok {
					return i, nil
				}
				return 0, &Error{Reason: "integer out of range"}
			}
			return int64(f), nil
		},
		schema: func() *jsonschema.Schema { return &jsonschema.Schema{Type: "integer"} },
	}
}

// maxExactFloat is the largest magnitude at which every integer has an exact
// float64 representation.
const maxExactFloat = 1 << 53

func exactInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// Boolean accepts true and false.
func Boolean() Validator[bool] {
	return &funcValidator[bool]{
		fn: func(input any) (bool, error) {
			b, ok := input.(bool)
			if !ok {
				return false, mismatch("boolean", input)
			}
			return b, nil
		},
		schema: func() *jsonschema.Schema { return &jsonschema.Schema{Type: "boolean"} },
	}
}

// Null accepts only the absent value (JSON null).
func Null() Validator[any] {
	return &funcValidator[any]{
		fn: func(input any) (any, error) {
			if input != nil {
				return nil, mismatch("null", input)
			}
			return nil, nil
		},
		schema: func() *jsonschema.Schema { return &jsonschema.Schema{Type: "null"} },
	}
}

// Enum accepts a string equal to one of values.
func Enum(values ...string) Validator[string] {
	allowed := slices.Clone(values)
	return &funcValidator[string]{
		fn: func(input any) (string, error) {
			s, ok := input.(string)
			if !ok {
				return "", mismatch("string", input)
			}
			if !slices.Contains(allowed, s) {
				return "", &Error{Reason: fmt.Sprintf("expected one of [%s], got %q", strings.Join(allowed, ", "), s)}
			}
			return s, nil
		},
		schema: func() *jsonschema.Schema {
			enum := make([]any, len(allowed))
			for i, v := range allowed {
				enum[i] = v
			}
			return &jsonschema.Schema{Type: "string", Enum: enum}
		},
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

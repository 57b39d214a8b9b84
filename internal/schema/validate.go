package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

// Kind is the declared type of an argument field.
type Kind string

const (
	String      Kind = "string"
	Integer     Kind = "integer"
	Boolean     Kind = "boolean"
	StringArray Kind = "string_array"
	// OptionalNumber accepts absence, null or a number.
	OptionalNumber Kind = "optional_number"
)

// Range bounds an integer field, inclusive on both ends.
type Range struct {
	Min, Max int64
}

// Field declares one argument of an operation.
type Field struct {
	Name        string
	Description string
	Kind        Kind
	Required    bool
	Enum        []string
	Default     any
	Range       *Range
}

// Validate checks bag against fields and returns the normalized arguments.
// Fields not declared in fields are ignored.
func Validate(fields []Field, bag map[string]any) (Args, error) {
	args := Args{}
	for _, f := range fields {
		raw, present := bag[f.Name]
		v := FromAny(raw)
		if !present || v.Kind() == NullValue {
			if f.Required {
				return nil, apperr.FieldError(apperr.MissingField, f.Name,
					fmt.Sprintf("missing required field %q", f.Name))
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}

		val, err := narrow(f, v)
		if err != nil {
			return nil, err
		}
		args[f.Name] = val
	}
	return args, nil
}

func narrow(f Field, v Value) (any, error) {
	switch f.Kind {
	case String:
		if v.Kind() != StringValue {
			return nil, mismatch(f, "string", v)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, v.str) {
			return nil, apperr.FieldError(apperr.InvalidEnumValue, f.Name,
				fmt.Sprintf("field %q must be one of [%s], got %s", f.Name, strings.Join(f.Enum, ", "), v))
		}
		return v.str, nil

	case Integer:
		if v.Kind() != NumberValue {
			return nil, mismatch(f, "integer", v)
		}
		n, ok := integral(v)
		if !ok {
			return nil, mismatch(f, "integer", v)
		}
		if f.Range != nil && (n < f.Range.Min || n > f.Range.Max) {
			return nil, mismatch(f, fmt.Sprintf("integer between %d and %d", f.Range.Min, f.Range.Max), v)
		}
		return n, nil

	case Boolean:
		if v.Kind() != BoolValue {
			return nil, mismatch(f, "boolean", v)
		}
		return v.b, nil

	case StringArray:
		if v.Kind() != ArrayValue {
			return nil, mismatch(f, "array of string", v)
		}
		out := make([]string, 0, len(v.arr))
		for _, e := range v.arr {
			if e.Kind() != StringValue {
				return nil, mismatch(f, "array of string", e)
			}
			out = append(out, e.str)
		}
		return out, nil

	case OptionalNumber:
		if v.Kind() != NumberValue {
			return nil, mismatch(f, "number or null", v)
		}
		n, err := v.num.Float64()
		if err != nil {
			return nil, mismatch(f, "number or null", v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("field %q declares unknown kind %q", f.Name, f.Kind)
}

// integral accepts 5 and 5.0 but not 5.5.
func integral(v Value) (int64, bool) {
	if n, err := v.num.Int64(); err == nil {
		return n, true
	}
	f, err := v.num.Float64()
	if err != nil || math.Trunc(f) != f || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func mismatch(f Field, expected string, got Value) *apperr.Error {
	return apperr.FieldError(apperr.TypeMismatch, f.Name,
		fmt.Sprintf("field %q expects %s, got %s %s", f.Name, expected, got.Kind(), got))
}

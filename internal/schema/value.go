// Package schema validates loosely-typed argument bags against the field
// declarations of an operation and narrows them into typed arguments.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	NullValue ValueKind = iota
	StringValue
	NumberValue
	BoolValue
	ArrayValue
	ObjectValue
)

func (k ValueKind) String() string {
	switch k {
	case StringValue:
		return "string"
	case NumberValue:
		return "number"
	case BoolValue:
		return "boolean"
	case ArrayValue:
		return "array"
	case ObjectValue:
		return "object"
	default:
		return "null"
	}
}

// Value is a raw external value as received from the caller.
type Value struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	arr  []Value
}

// FromAny converts a decoded JSON value into a Value. Numbers may arrive as
// json.Number (decoder with UseNumber) or as Go numeric types.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{kind: NullValue}
	case string:
		return Value{kind: StringValue, str: x}
	case bool:
		return Value{kind: BoolValue, b: x}
	case json.Number:
		return Value{kind: NumberValue, num: x}
	case float64:
		return Value{kind: NumberValue, num: json.Number(strconv.FormatFloat(x, 'f', -1, 64))}
	case float32:
		return Value{kind: NumberValue, num: json.Number(strconv.FormatFloat(float64(x), 'f', -1, 32))}
	case int:
		return Value{kind: NumberValue, num: json.Number(strconv.Itoa(x))}
	case int64:
		return Value{kind: NumberValue, num: json.Number(strconv.FormatInt(x, 10))}
	case []any:
		arr := make([]Value, len(x))
		for i, e := range x {
			arr[i] = FromAny(e)
		}
		return Value{kind: ArrayValue, arr: arr}
	case []string:
		arr := make([]Value, len(x))
		for i, e := range x {
			arr[i] = Value{kind: StringValue, str: e}
		}
		return Value{kind: ArrayValue, arr: arr}
	default:
		return Value{kind: ObjectValue}
	}
}

func (v Value) Kind() ValueKind { return v.kind }

// String renders the value for error messages.
func (v Value) String() string {
	switch v.kind {
	case StringValue:
		return strconv.Quote(v.str)
	case NumberValue:
		return v.num.String()
	case BoolValue:
		return strconv.FormatBool(v.b)
	case ArrayValue:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case ObjectValue:
		return "object"
	default:
		return "null"
	}
}

// DecodeBag parses a JSON object into an argument bag, preserving numbers.
// An empty input yields an empty bag.
func DecodeBag(raw []byte) (map[string]any, error) {
	bag := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return bag, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&bag); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if bag == nil {
		bag = map[string]any{}
	}
	return bag, nil
}

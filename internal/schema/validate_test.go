package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

var perfFields = []Field{
	{Name: "action", Kind: String, Required: true, Enum: []string{"top_waits", "slow_queries"}},
	{Name: "top_n", Kind: Integer, Default: int64(20), Range: &Range{Min: 1, Max: 100}},
	{Name: "include_query_stats", Kind: Boolean, Default: true},
	{Name: "threshold", Kind: OptionalNumber},
	{Name: "parameters", Kind: StringArray},
}

func fieldErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	return e
}

func TestValidate_ConformingBag(t *testing.T) {
	bag, err := DecodeBag([]byte(`{"action":"slow_queries","top_n":5,"threshold":12.5,"parameters":["a","b"],"extra":"ignored"}`))
	require.NoError(t, err)

	args, err := Validate(perfFields, bag)
	require.NoError(t, err)

	assert.Equal(t, "slow_queries", args.String("action"))
	assert.Equal(t, int64(5), args.Int("top_n"))
	assert.True(t, args.Bool("include_query_stats"), "default applied")
	n, ok := args.Number("threshold")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, n, 0)
	assert.Equal(t, []string{"a", "b"}, args.Strings("parameters"))
	assert.False(t, args.Has("extra"))
}

func TestValidate_MissingFieldNamesTheField(t *testing.T) {
	e := fieldErr(t, func() error { _, err := Validate(perfFields, map[string]any{}); return err }())
	assert.Equal(t, apperr.MissingField, e.Kind)
	assert.Equal(t, "action", e.Field)

	e = fieldErr(t, func() error { _, err := Validate(perfFields, map[string]any{"action": nil}); return err }())
	assert.Equal(t, apperr.MissingField, e.Kind, "null counts as absent")
}

func TestValidate_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		bag  map[string]any
		want string
	}{
		{"string for integer", map[string]any{"action": "top_waits", "top_n": "123"}, "top_n"},
		{"fraction for integer", map[string]any{"action": "top_waits", "top_n": json.Number("2.5")}, "top_n"},
		{"out of range", map[string]any{"action": "top_waits", "top_n": json.Number("500")}, "top_n"},
		{"number for string", map[string]any{"action": json.Number("1")}, "action"},
		{"string for boolean", map[string]any{"action": "top_waits", "include_query_stats": "true"}, "include_query_stats"},
		{"string for optional number", map[string]any{"action": "top_waits", "threshold": "10"}, "threshold"},
		{"mixed array", map[string]any{"action": "top_waits", "parameters": []any{"a", json.Number("1")}}, "parameters"},
		{"scalar for array", map[string]any{"action": "top_waits", "parameters": "a"}, "parameters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(perfFields, tc.bag)
			e := fieldErr(t, err)
			assert.Equal(t, apperr.TypeMismatch, e.Kind)
			assert.Equal(t, tc.want, e.Field)
		})
	}
}

func TestValidate_IntegralFloatAccepted(t *testing.T) {
	args, err := Validate(perfFields, map[string]any{"action": "top_waits", "top_n": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), args.Int("top_n"))

	args, err = Validate(perfFields, map[string]any{"action": "top_waits", "top_n": json.Number("8.0")})
	require.NoError(t, err)
	assert.Equal(t, int64(8), args.Int("top_n"))
}

func TestValidate_OptionalNumberAcceptsNull(t *testing.T) {
	args, err := Validate(perfFields, map[string]any{"action": "top_waits", "threshold": nil})
	require.NoError(t, err)
	_, ok := args.Number("threshold")
	assert.False(t, ok)
}

func TestValidate_InvalidEnum(t *testing.T) {
	_, err := Validate(perfFields, map[string]any{"action": "reboot"})
	e := fieldErr(t, err)
	assert.Equal(t, apperr.InvalidEnumValue, e.Kind)
	assert.Equal(t, "action", e.Field)
	assert.Contains(t, e.Message, "top_waits, slow_queries")
}

func TestInputSchema(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(InputSchema(perfFields), &doc))

	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"action"}, doc["required"])

	props := doc["properties"].(map[string]any)
	action := props["action"].(map[string]any)
	assert.Equal(t, []any{"top_waits", "slow_queries"}, action["enum"])
	topN := props["top_n"].(map[string]any)
	assert.Equal(t, "integer", topN["type"])
	assert.EqualValues(t, 100, topN["maximum"])
	params := props["parameters"].(map[string]any)
	assert.Equal(t, "array", params["type"])
}

func TestDecodeBag_Empty(t *testing.T) {
	bag, err := DecodeBag(nil)
	require.NoError(t, err)
	assert.Empty(t, bag)

	bag, err = DecodeBag([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, bag)

	_, err = DecodeBag([]byte("{"))
	assert.Error(t, err)
}

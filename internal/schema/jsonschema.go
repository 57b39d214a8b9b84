package schema

import "encoding/json"

// InputSchema renders fields as the JSON Schema object advertised for a tool.
func InputSchema(fields []Field) json.RawMessage {
	props := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		p := map[string]any{}
		switch f.Kind {
		case String:
			p["type"] = "string"
			if len(f.Enum) > 0 {
				p["enum"] = f.Enum
			}
		case Integer:
			p["type"] = "integer"
			if f.Range != nil {
				p["minimum"] = f.Range.Min
				p["maximum"] = f.Range.Max
			}
		case Boolean:
			p["type"] = "boolean"
		case StringArray:
			p["type"] = "array"
			p["items"] = map[string]string{"type": "string"}
		case OptionalNumber:
			p["type"] = []string{"number", "null"}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}

	out, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	return out
}

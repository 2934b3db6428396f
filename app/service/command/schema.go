package command

import "slices"

const (
	FunctionName = "get_direction"

	ParamRight = "right_motors"
	ParamLeft  = "left_motors"
	ParamSpeed = "speed"

	DefaultSpeed = "7"
)

type Parameter struct {
	Name        string
	Type        string
	Description string
	Default     string
	Required    bool
}

// Schema describes the single function the model may invoke
type Schema struct {
	Name        string
	Description string
	Parameters  []Parameter
}

var directionSchema = Schema{
	Name: FunctionName,
	Description: "Return the direction each motor should move for a four-wheel robot car.\n" +
		"Allowed values for each motor: 1 (forward), 0 (stop), -1 (backward).",
	Parameters: []Parameter{
		{
			Name:        ParamRight,
			Type:        "string",
			Description: "Direction of the right side motors: 1, 0 or -1",
			Required:    true,
		},
		{
			Name:        ParamLeft,
			Type:        "string",
			Description: "Direction of the left side motors: 1, 0 or -1",
			Required:    true,
		},
		{
			Name:        ParamSpeed,
			Type:        "string",
			Description: "Speed of the motors in percentage (default is '7')",
			Default:     DefaultSpeed,
		},
	},
}

// Direction returns the get_direction descriptor. Every call returns an independent copy.
func Direction() Schema {
	result := directionSchema
	result.Parameters = slices.Clone(directionSchema.Parameters)
	return result
}

func (s Schema) Required() []string {
	var result []string
	for _, p := range s.Parameters {
		if p.Required {
			result = append(result, p.Name)
		}
	}
	return result
}

// JSONSchema renders the parameters as a JSON schema object
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))

	for _, p := range s.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != "" {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   s.Required(),
	}
}

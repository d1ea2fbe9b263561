// README: JSON schema for model-generated plans, derived from the closed intent and tool enums.
package planner

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"concierge/internal/types"
)

const schemaURL = "mem://planner/plan.json"

// PlanSchema returns the schema every model-generated plan must satisfy.
// Unknown properties are rejected at every level except tool args, which the
// dispatcher validates per tool.
func PlanSchema() json.RawMessage {
	toolNames := make([]string, 0, len(types.AllToolNames))
	for _, t := range types.AllToolNames {
		toolNames = append(toolNames, string(t))
	}
	intents := make([]string, 0, len(types.AllIntents))
	for _, i := range types.AllIntents {
		intents = append(intents, string(i))
	}

	toolCall := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"tool", "args"},
		"properties": map[string]any{
			"tool": map[string]any{"enum": toolNames},
			"args": map[string]any{"type": "object"},
		},
	}
	toolCalls := map[string]any{
		"type":     "array",
		"maxItems": types.MaxToolCallsPerTurn,
		"items":    map[string]any{"$ref": "#/$defs/toolCall"},
	}

	schema := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"intent", "missingInfoQuestions", "recommendedToolCalls", "userVisibleMessage"},
		"properties": map[string]any{
			"intent": map[string]any{"enum": intents},
			"missingInfoQuestions": map[string]any{
				"type":     "array",
				"maxItems": types.MaxMissingInfoQuestions,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
			"recommendedToolCalls": toolCalls,
			"userVisibleMessage":   map[string]any{"type": "string", "minLength": 1},
			"proposedAction": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "null"},
					map[string]any{"$ref": "#/$defs/proposedAction"},
				},
			},
		},
		"$defs": map[string]any{
			"toolCall": toolCall,
			"proposedAction": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"action", "confirmationRequired"},
				"properties": map[string]any{
					"action":               map[string]any{"type": "string", "minLength": 1},
					"confirmationRequired": map[string]any{"type": "boolean"},
					"summary":              map[string]any{"type": "string"},
					"bookingId":            map[string]any{"type": "string"},
					"toolCalls":            toolCalls,
				},
			},
		},
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func compilePlanSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(string(PlanSchema()))); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

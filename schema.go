package statebag

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Parameter shapes for each action, reflected into JSON schemas for hosts
// that render parameter forms. The store value itself is schemaless beyond
// "object", so value parameters are open objects.

type setParams struct {
	Key   string         `json:"key" jsonschema:"required,description=Key to store the value under"`
	Value map[string]any `json:"value" jsonschema:"required,description=JSON object to store"`
}

type getParams struct {
	Key string `json:"key" jsonschema:"required,description=Key to read"`
}

type getWithDefaultParams struct {
	Key          string         `json:"key" jsonschema:"required,description=Key to read"`
	DefaultValue map[string]any `json:"defaultValue" jsonschema:"required,description=JSON object stored and returned when the key is absent"`
}

type deleteParams struct {
	Key string `json:"key" jsonschema:"required,description=Key to delete"`
}

type keysParams struct {
	FilterPattern string `json:"filterPattern,omitempty" jsonschema:"description=Regular expression matched anywhere in each key; empty or invalid patterns match everything"`
	GetValues     bool   `json:"getValues,omitempty" jsonschema:"description=Pair each key with its value"`
}

var actionParams = map[Action]any{
	ActionSet:            setParams{},
	ActionGet:            getParams{},
	ActionGetWithDefault: getWithDefaultParams{},
	ActionDelete:         deleteParams{},
	ActionKeys:           keysParams{},
}

// ActionSchema returns a JSON Schema describing the parameters of the given
// action, as a generic map suitable for serialization to a host.
func ActionSchema(action Action) (map[string]any, error) {
	params, ok := actionParams[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}

	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(params)

	// Marshal and unmarshal to convert to a map[string]any
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %q: %w", action, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("decoding schema for %q: %w", action, err)
	}

	if _, exists := schemaMap["type"]; !exists {
		schemaMap["type"] = "object"
	}
	if _, exists := schemaMap["properties"]; !exists {
		schemaMap["properties"] = map[string]any{}
	}

	return schemaMap, nil
}

// Actions returns the supported action selectors in a fixed order.
func Actions() []Action {
	return []Action{ActionSet, ActionGet, ActionGetWithDefault, ActionDelete, ActionKeys}
}

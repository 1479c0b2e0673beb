package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "dependencies": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    },
    "parallel_groups": {
      "type": "array",
      "items": {
        "type": "array",
        "minItems": 2,
        "items": {"type": "string", "minLength": 1}
      }
    },
    "timeout": {"type": "integer", "minimum": 0},
    "priority": {"type": "integer", "minimum": 0, "maximum": 3}
  },
  "additionalProperties": false
}`

var definitionValidator = jsonschema.MustCompileString("workflow-definition.json", definitionSchema)

// ValidateDefinitionJSON checks a raw definition payload against the
// embedded schema before it is decoded and registered. Graph-level checks
// (dependency and group references) happen in RegisterWorkflow.
func ValidateDefinitionJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid definition json: %w", err)
	}
	if err := definitionValidator.Validate(doc); err != nil {
		return fmt.Errorf("definition schema: %w", err)
	}
	return nil
}

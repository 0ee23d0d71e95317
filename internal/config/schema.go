package config

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes the configuration keys accepted in CONFIG_FILE and the environment.
func JSONSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:              "env",
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "messaging-api configuration"
	schema.Description = "Environment variables and CONFIG_FILE keys for the messaging API"
	schema.Required = nil

	data, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

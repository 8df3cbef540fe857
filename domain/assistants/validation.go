package assistants

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateTools rejects malformed Function tool parameter schemas at
// create/update time rather than only surfacing the error later when the
// Function-Call Generator tries to use them (EXPANDED MODULE LIST,
// [Assistant]).
func ValidateTools(tools ToolList) error {
	seen := make(map[string]bool, len(tools))
	for i, t := range tools {
		switch t.Kind {
		case ToolKindFunction:
			if t.Function == nil {
				return fmt.Errorf("tool %d: function tool missing function config", i)
			}
			if t.Function.Name == "" {
				return fmt.Errorf("tool %d: function tool missing name", i)
			}
			if seen[t.Function.Name] {
				return fmt.Errorf("tool %d: duplicate function name %q", i, t.Function.Name)
			}
			seen[t.Function.Name] = true
			if len(t.Function.Parameters) > 0 {
				if err := validateSchema(t.Function.Parameters); err != nil {
					return fmt.Errorf("tool %d (%s): invalid parameters schema: %w", i, t.Function.Name, err)
				}
			}
		case ToolKindAction:
			if t.Action == nil {
				return fmt.Errorf("tool %d: action tool missing action config", i)
			}
			if t.Action.Domain == "" || t.Action.Path == "" || t.Action.Method == "" {
				return fmt.Errorf("tool %d: action tool requires domain, path and method", i)
			}
		case ToolKindRetrieval, ToolKindCodeInterpreter:
			// no per-call config to validate
		default:
			return fmt.Errorf("tool %d: unknown tool kind %q", i, t.Kind)
		}
	}
	return nil
}

// MaxMetadataValueLength is the bound spec §3 places on an Assistant's
// metadata map values.
const MaxMetadataValueLength = 512

// ValidateMetadata rejects an Assistant's metadata map if any value
// exceeds MaxMetadataValueLength characters (spec §3 [Assistant]: "values
// bounded to 512 characters").
func ValidateMetadata(metadata Metadata) error {
	for k, v := range metadata {
		if utf8.RuneCountInString(v) > MaxMetadataValueLength {
			return fmt.Errorf("metadata key %q: value exceeds %d characters", k, MaxMetadataValueLength)
		}
	}
	return nil
}

// validateSchema parses a raw JSON-schema document and ensures it at least
// resolves as a schema; it is not asked to validate any particular
// instance here, only to reject malformed schema documents up front.
func validateSchema(raw json.RawMessage) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	if _, err := schema.Resolve(nil); err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}
	return nil
}

// ValidateArguments checks a Function tool call's arguments payload against
// its stored parameter schema. Used by the run executor's dispatchFunctions
// and dispatchActions on each generated call, before it is surfaced as a
// pending tool call or executed.
func ValidateArguments(paramSchema json.RawMessage, argumentsJSON string) error {
	if len(paramSchema) == 0 {
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(paramSchema, &schema); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal([]byte(argumentsJSON), &instance); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	return resolved.Validate(instance)
}

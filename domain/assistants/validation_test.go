package assistants

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTools(t *testing.T) {
	t.Run("accepts valid function schema", func(t *testing.T) {
		tools := ToolList{{
			Kind: ToolKindFunction,
			Function: &FunctionTool{
				Name:       "get_weather",
				Parameters: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
			},
		}}
		require.NoError(t, ValidateTools(tools))
	})

	t.Run("rejects malformed schema", func(t *testing.T) {
		tools := ToolList{{
			Kind: ToolKindFunction,
			Function: &FunctionTool{
				Name:       "broken",
				Parameters: json.RawMessage(`{"type": 123}`),
			},
		}}
		assert.Error(t, ValidateTools(tools))
	})

	t.Run("rejects duplicate function names", func(t *testing.T) {
		tools := ToolList{
			{Kind: ToolKindFunction, Function: &FunctionTool{Name: "dup"}},
			{Kind: ToolKindFunction, Function: &FunctionTool{Name: "dup"}},
		}
		assert.Error(t, ValidateTools(tools))
	})

	t.Run("rejects action tool missing method", func(t *testing.T) {
		tools := ToolList{{
			Kind:   ToolKindAction,
			Action: &ActionTool{Domain: "https://api.example.com", Path: "/v1/things"},
		}}
		assert.Error(t, ValidateTools(tools))
	})

	t.Run("accepts retrieval and code_interpreter with no config", func(t *testing.T) {
		tools := ToolList{
			{Kind: ToolKindRetrieval},
			{Kind: ToolKindCodeInterpreter},
		}
		require.NoError(t, ValidateTools(tools))
	})
}

func TestValidateMetadata(t *testing.T) {
	t.Run("accepts values at the bound", func(t *testing.T) {
		meta := Metadata{"note": strings.Repeat("a", MaxMetadataValueLength)}
		require.NoError(t, ValidateMetadata(meta))
	})

	t.Run("rejects values over the bound", func(t *testing.T) {
		meta := Metadata{"note": strings.Repeat("a", MaxMetadataValueLength+1)}
		assert.Error(t, ValidateMetadata(meta))
	})

	t.Run("accepts empty metadata", func(t *testing.T) {
		require.NoError(t, ValidateMetadata(nil))
	})
}

func TestValidateArguments(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)

	t.Run("accepts arguments satisfying the schema", func(t *testing.T) {
		require.NoError(t, ValidateArguments(schema, `{"city":"nyc"}`))
	})

	t.Run("rejects arguments with the wrong type", func(t *testing.T) {
		assert.Error(t, ValidateArguments(schema, `{"city":123}`))
	})

	t.Run("rejects arguments missing a required property", func(t *testing.T) {
		assert.Error(t, ValidateArguments(schema, `{}`))
	})

	t.Run("rejects malformed argument JSON", func(t *testing.T) {
		assert.Error(t, ValidateArguments(schema, `{not json`))
	})

	t.Run("no schema means no validation", func(t *testing.T) {
		require.NoError(t, ValidateArguments(nil, `{"anything":"goes"}`))
	})
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "get_weather", Tool{Kind: ToolKindFunction, Function: &FunctionTool{Name: "get_weather"}}.Name())
	assert.Equal(t, "createWidget", Tool{Kind: ToolKindAction, Action: &ActionTool{OperationID: "createWidget"}}.Name())
	assert.Equal(t, "retrieval", Tool{Kind: ToolKindRetrieval}.Name())
}

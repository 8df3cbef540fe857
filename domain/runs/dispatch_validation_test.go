package runs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/pkg/llm"
)

// TestDispatchFunctions_RejectsArgumentsFailingSchema exercises the
// ValidateArguments wiring added to dispatchFunctions: a generated
// function call whose arguments don't satisfy the tool's own parameter
// schema must fail the run rather than being queued as a pending tool
// call (spec §7's function_call_error class).
func TestDispatchFunctions_RejectsArgumentsFailingSchema(t *testing.T) {
	fake := &fakeLLM{resp: &llm.ChatResponse{Message: llm.Message{
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "get_weather", Arguments: `{"city":123}`}},
	}}}
	ex := &Executor{functionGen: NewFunctionCallGenerator(fake, testLogger())}

	assistant := &assistants.Assistant{Tools: assistants.ToolList{{
		Kind: assistants.ToolKindFunction,
		Function: &assistants.FunctionTool{
			Name: "get_weather",
			Parameters: []byte(`{
				"type": "object",
				"properties": {"city": {"type": "string"}},
				"required": ["city"]
			}`),
		},
	}}}

	suspended, err := ex.dispatchFunctions(context.Background(), &Run{}, assistant, "what's the weather in 123?")
	require.Error(t, err)
	assert.False(t, suspended)
	assert.Contains(t, err.Error(), "failed schema validation")
}

package runs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/assistants-executor/pkg/llm"
)

func TestFunctionCallGenerator_ReturnsGeneratedCalls(t *testing.T) {
	fake := &fakeLLM{resp: &llm.ChatResponse{Message: llm.Message{
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "get_weather", Arguments: `{"city":"nyc"}`}},
	}}}
	gen := NewFunctionCallGenerator(fake, testLogger())

	calls, err := gen.Generate(context.Background(), llm.ToolSchema{Name: "get_weather"}, "what's the weather?")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, `{"city":"nyc"}`, calls[0].Arguments)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []llm.ToolSchema{{Name: "get_weather"}}, fake.calls[0].Tools)
}

func TestFunctionCallGenerator_ZeroCallsIsNotAnError(t *testing.T) {
	fake := &fakeLLM{resp: &llm.ChatResponse{Message: llm.Message{Content: "no function call needed"}}}
	gen := NewFunctionCallGenerator(fake, testLogger())

	calls, err := gen.Generate(context.Background(), llm.ToolSchema{Name: "f"}, "hello")
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestFunctionCallGenerator_PropagatesModelError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("boom")}
	gen := NewFunctionCallGenerator(fake, testLogger())

	_, err := gen.Generate(context.Background(), llm.ToolSchema{Name: "f"}, "hello")
	assert.Error(t, err)
}

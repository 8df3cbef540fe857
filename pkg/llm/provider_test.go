package llm

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestToOpenAIMessages_CarriesToolCallsAndID(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "42", ToolCallID: "tc-1"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "tc-2", Name: "get_weather", Arguments: `{"city":"nyc"}`}}},
	}

	out := toOpenAIMessages(msgs)
	assert.Len(t, out, 3)
	assert.Equal(t, "hi", out[0].Content)
	assert.Equal(t, "tc-1", out[1].ToolCallID)
	assert.Equal(t, "get_weather", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, openai.ToolTypeFunction, out[2].ToolCalls[0].Type)
}

func TestToOpenAIToolCalls_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, toOpenAIToolCalls(nil))
}

func TestFromOpenAIMessage_ExtractsToolCalls(t *testing.T) {
	m := openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "",
		ToolCalls: []openai.ToolCall{
			{ID: "tc-1", Function: openai.FunctionCall{Name: "get_weather", Arguments: `{"city":"nyc"}`}},
		},
	}

	got := fromOpenAIMessage(m)
	assert.Equal(t, "assistant", got.Role)
	assert.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "get_weather", got.ToolCalls[0].Name)
	assert.Equal(t, `{"city":"nyc"}`, got.ToolCalls[0].Arguments)
}

func TestToOpenAITools_MapsSchema(t *testing.T) {
	tools := []ToolSchema{{Name: "f", Description: "does f", Parameters: map[string]any{"type": "object"}}}

	out := toOpenAITools(tools)
	tool := out[0]
	assert.Equal(t, openai.ToolTypeFunction, tool.Type)
	assert.Equal(t, "f", tool.Function.Name)
	assert.Equal(t, "does f", tool.Function.Description)
}

func TestNewClient_DisabledReturnsNotConfigured(t *testing.T) {
	c := &openaiClient{}
	assert.False(t, c.IsConfigured())

	_, err := c.Complete(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

package runs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/domain/threads"
)

func TestFormatMessages_PreservesOrderAndRole(t *testing.T) {
	msgs := []*threads.Message{
		{Role: threads.RoleUser, Content: "hi"},
		{Role: threads.RoleAssistant, Content: "hello"},
	}
	out := formatMessages(msgs)
	assert.Equal(t, []string{"user: hi", "assistant: hello"}, out)
}

func TestLastUserMessage_SkipsTrailingAssistantMessages(t *testing.T) {
	msgs := []*threads.Message{
		{Role: threads.RoleUser, Content: "first question"},
		{Role: threads.RoleAssistant, Content: "an answer"},
		{Role: threads.RoleUser, Content: "second question"},
		{Role: threads.RoleAssistant, Content: "another answer"},
	}
	assert.Equal(t, "second question", lastUserMessage(msgs))
}

func TestLastUserMessage_NoUserMessage(t *testing.T) {
	msgs := []*threads.Message{{Role: threads.RoleAssistant, Content: "hello"}}
	assert.Equal(t, "", lastUserMessage(msgs))
}

func TestUnionFileIDs_DedupesAndDropsEmpty(t *testing.T) {
	got := unionFileIDs([]string{"a", "b", ""}, []string{"b", "c", ""})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFormatToolCallIO(t *testing.T) {
	assert.Equal(t, "<input>{}</input><output>42</output>", formatToolCallIO("{}", "42"))
}

func TestToolDescriptions(t *testing.T) {
	tools := assistants.ToolList{
		{Kind: assistants.ToolKindFunction, Function: &assistants.FunctionTool{Name: "get_weather", Description: "fetches weather"}},
		{Kind: assistants.ToolKindAction, Action: &assistants.ActionTool{OperationID: "random_fact", Method: "get", Path: "/facts"}},
		{Kind: assistants.ToolKindRetrieval},
	}
	out := toolDescriptions(tools)
	require.Len(t, out, 3)
	assert.Equal(t, "get_weather: fetches weather", out[0])
	assert.Equal(t, "random_fact: get /facts", out[1])
	assert.Equal(t, "retrieval: retrieval", out[2])
}

func TestFunctionToolSchema_DefaultsEmptyParameters(t *testing.T) {
	schema, err := functionToolSchema(&assistants.FunctionTool{Name: "determine_number", Description: "returns a number"})
	require.NoError(t, err)
	assert.Equal(t, "determine_number", schema.Name)
	assert.Equal(t, "object", schema.Parameters["type"])
}

func TestFunctionToolSchema_RejectsMalformedJSON(t *testing.T) {
	_, err := functionToolSchema(&assistants.FunctionTool{Name: "bad", Parameters: []byte("{not json")})
	assert.Error(t, err)
}

func TestActionToolSchema_DescribesMethodAndPath(t *testing.T) {
	schema := actionToolSchema(&assistants.ActionTool{OperationID: "get_fact", Method: "get", Path: "/fact"})
	assert.Equal(t, "get_fact", schema.Name)
	assert.Equal(t, "GET /fact", schema.Description)
}

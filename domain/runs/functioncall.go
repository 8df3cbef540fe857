package runs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// GeneratedCall is one {name, arguments-as-JSON-string} pair produced
// by the Function-Call Generator (spec §4.6).
type GeneratedCall struct {
	Name      string
	Arguments string
}

// FunctionCallGenerator asks the model to produce function-call-shaped
// output for a single schema. It is shared across Function tools, the
// code interpreter's synthetic exec(code) function, and Action tool
// operations (spec §9's "funneling them all through the Function-Call
// Generator").
type FunctionCallGenerator struct {
	llm llm.Client
	log *slog.Logger
}

func NewFunctionCallGenerator(client llm.Client, log *slog.Logger) *FunctionCallGenerator {
	return &FunctionCallGenerator{llm: client, log: log.With(logger.Scope("runs.function_call_generator"))}
}

// Generate asks the model for zero or more calls against schema given
// prompt as the current user-facing context. Zero calls is a valid
// outcome; the caller decides whether that means "no call required" or
// an error.
func (g *FunctionCallGenerator) Generate(ctx context.Context, schema llm.ToolSchema, prompt string) ([]GeneratedCall, error) {
	resp, err := g.llm.Complete(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Call the provided function with arguments satisfying its parameter schema. Only call the function; do not respond conversationally."},
			{Role: "user", Content: prompt},
		},
		Tools: []llm.ToolSchema{schema},
	})
	if err != nil {
		return nil, fmt.Errorf("function call generation: %w", err)
	}

	if len(resp.Message.ToolCalls) == 0 {
		return nil, nil
	}

	calls := make([]GeneratedCall, 0, len(resp.Message.ToolCalls))
	for _, tc := range resp.Message.ToolCalls {
		calls = append(calls, GeneratedCall{Name: tc.Name, Arguments: tc.Arguments})
	}
	return calls, nil
}

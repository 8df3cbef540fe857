// Package llm wraps the chat-completion transport used by the tool router,
// function-call generator, and final-answer model call (spec §6).
package llm

import (
	"context"
	"errors"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/fx"

	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Module provides the Client as an fx module.
var Module = fx.Module("llm",
	fx.Provide(NewClient),
)

// ErrNotConfigured is returned when a completion is requested but no API
// key is configured.
var ErrNotConfigured = errors.New("llm: not configured")

// Message is one chat-completion message, matching spec §6's
// {role, content, tool_calls?, tool_call_id?} shape.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a single function-style tool call surfaced on an assistant
// message, or fed back in as context for a previous call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSchema describes one callable tool offered to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest is the request shape from spec §6:
// {model, messages, temperature, max_tokens, stop, top_p, tool schemas?}.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stop        []string
	TopP        float64
	Tools       []ToolSchema
}

// ChatResponse mirrors {choices: [{message: {role, content, tool_calls?}}]}
// collapsed to the first choice, which is all callers ever need.
type ChatResponse struct {
	Message Message
}

// Client performs chat-completion calls against a configured model.
type Client interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	IsConfigured() bool
}

type openaiClient struct {
	inner *openai.Client
	cfg   *config.Config
	log   *slog.Logger
}

// NewClient builds a go-openai-backed Client. When LLM.IsEnabled() is
// false the returned client still satisfies the interface but Complete
// always returns ErrNotConfigured, matching the teacher's pattern of a
// safely-disabled collaborator rather than a nil pointer.
func NewClient(cfg *config.Config, log *slog.Logger) Client {
	log = log.With(logger.Scope("llm"))

	if !cfg.LLM.IsEnabled() {
		log.Warn("llm client disabled - no API key configured")
		return &openaiClient{cfg: cfg, log: log}
	}

	clientCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientCfg.BaseURL = cfg.LLM.BaseURL
	}

	return &openaiClient{
		inner: openai.NewClientWithConfig(clientCfg),
		cfg:   cfg,
		log:   log,
	}
}

func (c *openaiClient) IsConfigured() bool {
	return c.inner != nil
}

func (c *openaiClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.inner == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LLM.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.cfg.LLM.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.LLM.MaxOutputTokens
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		MaxTokens:   maxTokens,
		Stop:        req.Stop,
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = toOpenAITools(req.Tools)
	}

	resp, err := c.inner.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		c.log.Error("chat completion failed", logger.Error(err))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: empty choices in response")
	}

	choice := resp.Choices[0].Message
	return &ChatResponse{Message: fromOpenAIMessage(choice)}, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toOpenAIToolCalls(m.ToolCalls),
		})
	}
	return out
}

func toOpenAIToolCalls(calls []ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{Role: m.Role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

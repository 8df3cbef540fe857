package runs

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// ToolKind is one of the four tool subsystems the router may select
// (spec §4.2).
type ToolKind string

const (
	ToolFunction        ToolKind = "function"
	ToolRetrieval       ToolKind = "retrieval"
	ToolCodeInterpreter ToolKind = "code_interpreter"
	ToolAction          ToolKind = "action"
)

// toolOrder fixes function first, then the rest alphabetically (spec
// §4.1 step 5 / §5's ordering guarantee).
var toolOrder = map[ToolKind]int{
	ToolFunction:        0,
	ToolAction:          1,
	ToolCodeInterpreter: 2,
	ToolRetrieval:       3,
}

var tagPattern = regexp.MustCompile(`<([A-Za-z0-9_]+)>?`)

const toolRouterSystemPrompt = `You decide which tool categories apply to the user's latest message given
the assistant's declared tools and recent conversation. Respond only with
tags naming the categories that apply, chosen from: <function> <retrieval>
<code_interpreter> <action>. Emit one tag per applicable category and
nothing else. If none apply, respond with nothing.`

// ToolRouter decides which tool kinds an assistant should invoke for the
// current turn (spec §4.2).
type ToolRouter struct {
	llm llm.Client
	log *slog.Logger
}

func NewToolRouter(client llm.Client, log *slog.Logger) *ToolRouter {
	return &ToolRouter{llm: client, log: log.With(logger.Scope("runs.tool_router"))}
}

// Route returns a deduplicated, priority-ordered subset of
// {function, retrieval, code_interpreter, action}, restricted to tool
// kinds the assistant actually declares. If function was already routed
// (the run is mid requires_action cycle) and every pending id has a
// submitted output, function is dropped from the result so the executor
// doesn't loop.
func (tr *ToolRouter) Route(ctx context.Context, assistant *assistants.Assistant, recentMessages []string, run *Run, submitted []*SubmittedToolCall) ([]ToolKind, error) {
	declared := declaredKinds(assistant.Tools)
	if len(declared) == 0 {
		return nil, nil
	}

	prompt := buildRouterPrompt(assistant.Tools, recentMessages)
	resp, err := tr.llm.Complete(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: toolRouterSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool router model call: %w", err)
	}

	selected := extractTags(resp.Message.Content, declared)

	if selected[ToolFunction] && run.RequiredAction != nil && allSubmitted(run.RequiredAction.ToolCalls, submitted) {
		delete(selected, ToolFunction)
	}

	out := make([]ToolKind, 0, len(selected))
	for k := range selected {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return toolOrder[out[i]] < toolOrder[out[j]] })
	return out, nil
}

func declaredKinds(tools assistants.ToolList) map[ToolKind]bool {
	out := map[ToolKind]bool{}
	for _, t := range tools {
		switch t.Kind {
		case assistants.ToolKindFunction:
			out[ToolFunction] = true
		case assistants.ToolKindRetrieval:
			out[ToolRetrieval] = true
		case assistants.ToolKindCodeInterpreter:
			out[ToolCodeInterpreter] = true
		case assistants.ToolKindAction:
			out[ToolAction] = true
		}
	}
	return out
}

func buildRouterPrompt(tools assistants.ToolList, recentMessages []string) string {
	var sb strings.Builder
	sb.WriteString("Declared tools:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Kind, toolDescription(t)))
	}
	sb.WriteString("\nRecent messages:\n")
	for _, m := range recentMessages {
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	return sb.String()
}

func toolDescription(t assistants.Tool) string {
	switch t.Kind {
	case assistants.ToolKindFunction:
		if t.Function != nil {
			return fmt.Sprintf("%s: %s", t.Function.Name, t.Function.Description)
		}
	case assistants.ToolKindAction:
		if t.Action != nil {
			return fmt.Sprintf("%s %s (%s)", t.Action.Method, t.Action.Path, t.Action.OperationID)
		}
	}
	return string(t.Kind)
}

// extractTags parses model-emitted tags with a tolerant regex accepting
// both closed (<x>) and unclosed (<x) forms, lowercases, strips to
// alphanumerics/underscore, and drops anything not in allowed.
func extractTags(text string, allowed map[ToolKind]bool) map[ToolKind]bool {
	out := map[ToolKind]bool{}
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := ToolKind(strings.ToLower(m[1]))
		if allowed[tag] {
			out[tag] = true
		}
	}
	return out
}

func allSubmitted(pending []PendingToolCall, submitted []*SubmittedToolCall) bool {
	have := make(map[string]bool, len(submitted))
	for _, s := range submitted {
		have[s.ID] = true
	}
	for _, p := range pending {
		if !have[p.ID] {
			return false
		}
	}
	return true
}

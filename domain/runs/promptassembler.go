package runs

import (
	"fmt"
	"strings"

	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/pkg/tokenizer"
)

// PromptInput carries every context source the Prompt Assembler may
// include, in spec §4.3's declared shape.
type PromptInput struct {
	Instructions     string
	ToolCallIO       []string // pre-formatted "<input>...</input><output>...</output>" pairs
	Tools            []string // name/description lines
	PreviousMessages []string // formatted "role: content" lines, oldest first
	CodeOutput       string
	FileContents     []string
	Chunks           []string // formatted chunk descriptors
	Budget           int      // 0 means use configured default
}

// PromptAssembler produces a single bounded prompt string from
// heterogeneous context sources (spec §4.3).
type PromptAssembler struct {
	defaultBudget int
}

func NewPromptAssembler(cfg *config.Config) *PromptAssembler {
	return &PromptAssembler{defaultBudget: cfg.Executor.PromptTokenBudget}
}

// Assemble wraps each present section in its semantic delimiter tag and
// appends sections in fixed priority order until the token budget is
// exhausted. Instructions are always included. File contents, when
// present, suppress retrieval chunks to avoid duplicating content.
func (p *PromptAssembler) Assemble(in PromptInput) string {
	budget := in.Budget
	if budget <= 0 {
		budget = p.defaultBudget
	}

	var sb strings.Builder
	total := 0

	instructionsBlock := wrapTag("instructions", in.Instructions)
	sb.WriteString(instructionsBlock)
	total += tokenizer.Count(instructionsBlock)

	fileContentsAdded := false

	type part struct {
		name string
		text string
	}

	parts := []part{
		{"tool_calls", wrapTag("tool_calls", strings.Join(in.ToolCallIO, ""))},
		{"tools", wrapTag("tools", strings.Join(in.Tools, "\n"))},
		{"previous_messages", wrapTag("previous_messages", strings.Join(in.PreviousMessages, "\n"))},
		{"math_solution", wrapTag("math_solution", in.CodeOutput)},
		{"file", joinWrapped("file", in.FileContents)},
		{"chunk", joinWrapped("chunk", in.Chunks)},
	}

	for _, pt := range parts {
		if pt.name == "chunk" && fileContentsAdded {
			continue
		}
		if pt.text == "" {
			continue
		}
		cost := tokenizer.Count(pt.text)
		if total+cost > budget {
			break
		}
		sb.WriteString(pt.text)
		total += cost
		if pt.name == "file" {
			fileContentsAdded = true
		}
	}

	return sb.String()
}

// Count returns the prompt's token count under the same tokenizer the
// budget is measured against, for callers that need to verify §8
// property 4 without re-running Assemble.
func (p *PromptAssembler) Count(prompt string) int {
	return tokenizer.Count(prompt)
}

func wrapTag(tag, content string) string {
	if content == "" {
		return ""
	}
	return fmt.Sprintf("<%s>%s</%s>", tag, content, tag)
}

func joinWrapped(tag string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(wrapTag(tag, item))
	}
	return sb.String()
}

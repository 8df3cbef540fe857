package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arclane/assistants-executor/domain/sandbox"
	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// execFunctionSchema is the synthetic function the code interpreter's
// calls are generated against (spec §4.4/§4.6's "funneled through the
// Function-Call Generator like any other function tool").
var execFunctionSchema = llm.ToolSchema{
	Name:        "exec",
	Description: "Execute Python code and return its stdout/stderr.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python source code to execute.",
			},
		},
		"required": []string{"code"},
	},
}

// SafeInterpreter is the code_interpreter tool's orchestration layer: it
// asks the Function-Call Generator for a candidate exec(code) call, runs
// it in the sandbox via sandbox.Interpreter.Run, and on failure
// regenerates a different candidate informed by the previous failure, up
// to a configured retry bound (spec §4.4). Each attempt gets a fresh
// generation pass rather than rerunning the same code.
type SafeInterpreter struct {
	generator   *FunctionCallGenerator
	interpreter *sandbox.Interpreter
	maxRetries  int
	log         *slog.Logger
}

func NewSafeInterpreter(generator *FunctionCallGenerator, interpreter *sandbox.Interpreter, cfg *config.Config, log *slog.Logger) *SafeInterpreter {
	return &SafeInterpreter{
		generator:   generator,
		interpreter: interpreter,
		maxRetries:  cfg.Executor.CodeInterpreterMaxRetries,
		log:         log.With(logger.Scope("runs.safe_interpreter")),
	}
}

// Invoke runs the code_interpreter tool end to end for one turn: generate
// code from prompt, execute it, and on failure regenerate with the prior
// failure appended to the prompt. Returns the code actually executed on
// the winning (or last) attempt and its sandbox result.
func (si *SafeInterpreter) Invoke(ctx context.Context, prompt string) (code string, result *sandbox.Result, err error) {
	attempts := si.maxRetries + 1
	currentPrompt := prompt

	for i := 0; i < attempts; i++ {
		calls, genErr := si.generator.Generate(ctx, execFunctionSchema, currentPrompt)
		if genErr != nil {
			return "", nil, fmt.Errorf("code generation: %w", genErr)
		}
		if len(calls) == 0 {
			return "", nil, fmt.Errorf("code generation: model produced no exec call")
		}

		var argErr error
		code, argErr = extractCode(calls[0].Arguments)
		if argErr != nil {
			return "", nil, fmt.Errorf("code generation: %w", argErr)
		}
		code = stripCodeFences(code)

		runResult, runErr := si.interpreter.Run(ctx, code)
		if runErr != nil {
			return code, runResult, fmt.Errorf("sandbox execution: %w", runErr)
		}
		if !runResult.Failed {
			return code, runResult, nil
		}

		si.log.Warn("code interpreter attempt failed, retrying with a new generation",
			slog.Int("attempt", i+1), slog.String("stderr", runResult.Stderr))
		currentPrompt = fmt.Sprintf("%s\n\nThe previous attempt failed:\n<failed_code>%s</failed_code>\n<error>%s</error>\nProduce a different solution that avoids this error.",
			prompt, code, runResult.Stderr)
		result = runResult
	}

	return code, result, nil
}

func extractCode(argumentsJSON string) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("parse exec arguments: %w", err)
	}
	return args.Code, nil
}

// stripCodeFences removes a leading/trailing ``` or ```python fence the
// model sometimes wraps generated code in despite being asked to call a
// function.
func stripCodeFences(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && !strings.Contains(trimmed[:idx], " ") {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/domain/threads"
	"github.com/arclane/assistants-executor/pkg/apperror"
	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Executor is the top-level Run Executor loop (spec §4.1): it loads a
// run's full context, decides and dispatches tools via the Tool Router,
// assembles a bounded prompt, calls the model, and persists the result.
type Executor struct {
	runs        *Repository
	assistants  *assistants.Repository
	threads     *threads.Repository
	toolRouter  *ToolRouter
	functionGen *FunctionCallGenerator
	actionExec  *ActionExecutor
	prompt      *PromptAssembler
	retrieval   *Retrieval
	sandbox     *SafeInterpreter
	llm         llm.Client
	log         *slog.Logger
}

func NewExecutor(
	runsRepo *Repository,
	assistantsRepo *assistants.Repository,
	threadsRepo *threads.Repository,
	toolRouter *ToolRouter,
	functionGen *FunctionCallGenerator,
	actionExec *ActionExecutor,
	prompt *PromptAssembler,
	retrieval *Retrieval,
	sandbox *SafeInterpreter,
	llmClient llm.Client,
	log *slog.Logger,
) *Executor {
	return &Executor{
		runs:        runsRepo,
		assistants:  assistantsRepo,
		threads:     threadsRepo,
		toolRouter:  toolRouter,
		functionGen: functionGen,
		actionExec:  actionExec,
		prompt:      prompt,
		retrieval:   retrieval,
		sandbox:     sandbox,
		llm:         llmClient,
		log:         log.With(logger.Scope("runs.executor")),
	}
}

// turnContext accumulates everything the tool dispatch loop gathers for
// this execute() pass, threaded into the final Prompt Assembler call
// (spec §4.1 steps 6-7).
type turnContext struct {
	toolCallIO   []string
	fileContents []string
	chunks       []string
	codeOutput   string
}

// Execute runs the state machine for one dequeued run (spec §4.1's
// execute(run-id) operation). The caller (the worker loop) does the
// dequeue itself: Repository.Dequeue has already claimed the run and moved
// it to InProgress. Execute does not check the run's prior status.
func (ex *Executor) Execute(ctx context.Context, runID uuid.UUID) error {
	run, assistant, thread, messages, err := ex.load(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return nil
	}

	if err := ex.runs.UpdateStatus(ctx, run, StatusInProgress); err != nil {
		return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
	}

	turn := &turnContext{}

	if run.RequiredAction != nil {
		done, err := ex.resume(ctx, run, turn)
		if err != nil {
			return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
		}
		if !done {
			// No outputs submitted yet; we were re-enqueued prematurely.
			return nil
		}
	}

	recentMessages := formatMessages(messages)
	submitted, err := ex.runs.ListSubmittedToolCalls(ctx, run.ID)
	if err != nil {
		return ex.fail(ctx, run, apperror.ErrLoadError.WithInternal(err))
	}

	selected, err := ex.toolRouter.Route(ctx, assistant, recentMessages, run, submitted)
	if err != nil {
		return ex.fail(ctx, run, apperror.ErrToolRouterError.WithInternal(err))
	}

	queryContext := lastUserMessage(messages)

	for _, kind := range selected {
		switch kind {
		case ToolFunction:
			if run.RequiredAction != nil {
				// Already processed in the resume branch above.
				continue
			}
			suspended, err := ex.dispatchFunctions(ctx, run, assistant, queryContext)
			if err != nil {
				return ex.fail(ctx, run, apperror.ErrFunctionCallError.WithInternal(err))
			}
			if suspended {
				return nil
			}
		case ToolRetrieval:
			if err := ex.dispatchRetrieval(ctx, run, assistant, queryContext, turn); err != nil {
				return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
			}
		case ToolCodeInterpreter:
			if err := ex.dispatchCodeInterpreter(ctx, run, assistant, queryContext, turn); err != nil {
				return ex.fail(ctx, run, apperror.ErrSandboxError.WithInternal(err))
			}
		case ToolAction:
			if err := ex.dispatchActions(ctx, run, assistant, queryContext, turn); err != nil {
				return ex.fail(ctx, run, apperror.ErrActionError.WithInternal(err))
			}
		}
	}

	return ex.finalize(ctx, run, assistant, thread, recentMessages, turn)
}

func (ex *Executor) load(ctx context.Context, runID uuid.UUID) (*Run, *assistants.Assistant, *threads.Thread, []*threads.Message, error) {
	run, err := ex.runs.GetByID(ctx, runID)
	if err != nil {
		// No row was loaded, so there is nothing safe to persist a
		// failure against: a full-row Save with a stub Run would zero
		// out every other column. The run is not marked Failed and is not
		// retried: Dequeue only claims queued rows, so it stays in_progress
		// until the stale-run sweep marks it expired.
		ex.log.Error("failed to load run", slog.String("run_id", runID.String()), logger.Error(err))
		return nil, nil, nil, nil, apperror.ErrLoadError.WithInternal(err)
	}
	if run == nil {
		ex.log.Warn("run not found, dropping", slog.String("run_id", runID.String()))
		return nil, nil, nil, nil, nil
	}

	assistant, err := ex.assistants.GetByID(ctx, run.AssistantID)
	if err != nil || assistant == nil {
		return nil, nil, nil, nil, ex.fail(ctx, run, apperror.ErrLoadError.WithMessage("failed to load assistant").WithInternal(err))
	}

	thread, err := ex.threads.GetThread(ctx, run.ThreadID)
	if err != nil || thread == nil {
		return nil, nil, nil, nil, ex.fail(ctx, run, apperror.ErrLoadError.WithMessage("failed to load thread").WithInternal(err))
	}

	messages, err := ex.threads.ListMessages(ctx, run.ThreadID, 0)
	if err != nil {
		return nil, nil, nil, nil, ex.fail(ctx, run, apperror.ErrLoadError.WithMessage("failed to load messages").WithInternal(err))
	}

	return run, assistant, thread, messages, nil
}

// resume processes a run entering execute() with a RequiredAction already
// set (spec §4.1 step 3): it patches the pending ToolCalls steps with
// caller-submitted outputs and formats them as tool_call I/O pairs. It
// returns done=false if no outputs have been submitted yet (premature
// re-enqueue), in which case the caller should simply return.
func (ex *Executor) resume(ctx context.Context, run *Run, turn *turnContext) (bool, error) {
	submitted, err := ex.runs.ListSubmittedToolCalls(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("load submitted tool calls: %w", err)
	}
	if len(submitted) == 0 {
		return false, nil
	}

	outputs := make(map[string]string, len(submitted))
	for _, s := range submitted {
		outputs[s.ID] = s.Output
	}

	steps, err := ex.runs.ListSteps(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("load run steps: %w", err)
	}

	for _, step := range steps {
		if step.Type != StepTypeToolCalls || step.Status != StatusInProgress || step.Details == nil {
			continue
		}
		patched := false
		for i := range step.Details.ToolCalls {
			tc := &step.Details.ToolCalls[i]
			output, ok := outputs[tc.ID]
			if !ok {
				continue
			}
			tc.Output = &output
			patched = true
			turn.toolCallIO = append(turn.toolCallIO, formatToolCallIO(tc.Arguments, output))
		}
		if patched {
			if err := ex.runs.CompleteStep(ctx, step); err != nil {
				return false, fmt.Errorf("complete resumed step: %w", err)
			}
		}
	}

	return true, nil
}

// dispatchFunctions runs Function-Call Generator once per Function tool
// the assistant declares, and if any calls come back, suspends the run
// into RequiresAction (spec §4.1 step 6 "function" branch).
func (ex *Executor) dispatchFunctions(ctx context.Context, run *Run, assistant *assistants.Assistant, prompt string) (bool, error) {
	var pending []PendingToolCall
	var steps []*RunStep

	for _, tool := range assistant.Tools {
		if tool.Kind != assistants.ToolKindFunction || tool.Function == nil {
			continue
		}
		schema, err := functionToolSchema(tool.Function)
		if err != nil {
			return false, fmt.Errorf("function tool %s schema: %w", tool.Function.Name, err)
		}

		calls, err := ex.functionGen.Generate(ctx, schema, prompt)
		if err != nil {
			return false, fmt.Errorf("function tool %s generation: %w", tool.Function.Name, err)
		}

		for _, call := range calls {
			if err := assistants.ValidateArguments(tool.Function.Parameters, call.Arguments); err != nil {
				return false, fmt.Errorf("function tool %s: generated arguments failed schema validation: %w", tool.Function.Name, err)
			}

			id := uuid.New().String()
			pending = append(pending, PendingToolCall{ID: id, FunctionName: call.Name, Arguments: call.Arguments})
			steps = append(steps, &RunStep{
				RunID:       run.ID,
				AssistantID: assistant.ID,
				ThreadID:    run.ThreadID,
				UserID:      run.UserID,
				Type:        StepTypeToolCalls,
				Status:      StatusInProgress,
				Details: &StepDetails{
					ToolCalls: []StepToolCall{{Kind: StepToolCallFunction, ID: id, Name: call.Name, Arguments: call.Arguments}},
				},
			})
		}
	}

	if len(pending) == 0 {
		return false, nil
	}

	for _, step := range steps {
		if err := ex.runs.CreateStep(ctx, step); err != nil {
			return false, fmt.Errorf("create tool call step: %w", err)
		}
	}

	run.RequiredAction = &RequiredAction{ToolCalls: pending}
	if err := ex.runs.UpdateStatus(ctx, run, StatusRequiresAction); err != nil {
		return false, fmt.Errorf("suspend run: %w", err)
	}
	metricsRunsTotal.WithLabelValues(string(StatusRequiresAction)).Inc()
	return true, nil
}

// dispatchRetrieval unions the run's and assistant's file ids, fetches
// file contents and chunk-query hits concurrently, and records one
// ToolCalls/retrieval step (spec §4.1 step 6 "retrieval" branch).
func (ex *Executor) dispatchRetrieval(ctx context.Context, run *Run, assistant *assistants.Assistant, queryContext string, turn *turnContext) error {
	fileIDs := unionFileIDs(run.FileIDs, assistant.FileIDs)
	if len(fileIDs) == 0 {
		return nil
	}

	start := time.Now()
	result, err := ex.retrieval.Fetch(ctx, fileIDs, queryContext)
	metricsStepDuration.WithLabelValues("retrieval").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("retrieval fetch: %w", err)
	}

	turn.fileContents = append(turn.fileContents, result.FileContents...)
	turn.chunks = append(turn.chunks, result.Chunks...)

	step := &RunStep{
		RunID:       run.ID,
		AssistantID: assistant.ID,
		ThreadID:    run.ThreadID,
		UserID:      run.UserID,
		Type:        StepTypeToolCalls,
		Status:      StatusInProgress,
		Details: &StepDetails{
			ToolCalls: []StepToolCall{{
				Kind: StepToolCallRetrieval,
				ID:   uuid.New().String(),
				RetrievalMetadata: map[string]string{
					"files_fetched": fmt.Sprintf("%d", len(result.FileContents)),
					"chunks_found":  fmt.Sprintf("%d", len(result.Chunks)),
				},
			}},
		},
	}
	if err := ex.runs.CreateStep(ctx, step); err != nil {
		return fmt.Errorf("create retrieval step: %w", err)
	}
	return ex.runs.CompleteStep(ctx, step)
}

// dispatchCodeInterpreter invokes the Safe Interpreter and records a
// ToolCalls/code step on success; a failure here fails the run (spec
// §4.1 step 6 "code_interpreter" branch).
func (ex *Executor) dispatchCodeInterpreter(ctx context.Context, run *Run, assistant *assistants.Assistant, queryContext string, turn *turnContext) error {
	start := time.Now()
	code, result, err := ex.sandbox.Invoke(ctx, queryContext)
	metricsStepDuration.WithLabelValues("code").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("code interpreter: %w", err)
	}
	if result == nil || result.Failed {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return fmt.Errorf("code interpreter exhausted retries: %s", stderr)
	}

	outputs := []string{result.Stdout}
	if result.Stderr != "" {
		outputs = append(outputs, result.Stderr)
	}
	turn.codeOutput = result.Stdout

	step := &RunStep{
		RunID:       run.ID,
		AssistantID: assistant.ID,
		ThreadID:    run.ThreadID,
		UserID:      run.UserID,
		Type:        StepTypeToolCalls,
		Status:      StatusInProgress,
		Details: &StepDetails{
			ToolCalls: []StepToolCall{{Kind: StepToolCallCode, ID: uuid.New().String(), InputCode: code, Outputs: outputs}},
		},
	}
	if err := ex.runs.CreateStep(ctx, step); err != nil {
		return fmt.Errorf("create code step: %w", err)
	}
	return ex.runs.CompleteStep(ctx, step)
}

// dispatchActions generates and performs every declared Action tool's
// HTTP call concurrently (spec §5's "join-all" requirement); any single
// failure fails the run (spec §4.1 step 6 "action" branch).
func (ex *Executor) dispatchActions(ctx context.Context, run *Run, assistant *assistants.Assistant, prompt string, turn *turnContext) error {
	var actionTools []*assistants.ActionTool
	for _, tool := range assistant.Tools {
		if tool.Kind == assistants.ToolKindAction && tool.Action != nil {
			actionTools = append(actionTools, tool.Action)
		}
	}
	if len(actionTools) == 0 {
		return nil
	}

	type outcome struct {
		step *RunStep
		io   string
	}
	results := make([]outcome, len(actionTools))

	g, gctx := errgroup.WithContext(ctx)
	for i, tool := range actionTools {
		i, tool := i, tool
		g.Go(func() error {
			schema := actionToolSchema(tool)
			calls, err := ex.functionGen.Generate(gctx, schema, prompt)
			if err != nil {
				return fmt.Errorf("action %s generation: %w", tool.OperationID, err)
			}
			if len(calls) == 0 {
				return nil
			}
			call := calls[0]

			if err := assistants.ValidateArguments(tool.Params, call.Arguments); err != nil {
				return fmt.Errorf("action %s: generated arguments failed schema validation: %w", tool.OperationID, err)
			}

			start := time.Now()
			result, err := ex.actionExec.Execute(gctx, tool, call.Arguments)
			metricsStepDuration.WithLabelValues("action").Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("action %s: %w", tool.OperationID, err)
			}

			output := result.Body
			step := &RunStep{
				RunID:       run.ID,
				AssistantID: assistant.ID,
				ThreadID:    run.ThreadID,
				UserID:      run.UserID,
				Type:        StepTypeToolCalls,
				Status:      StatusCompleted,
				Details: &StepDetails{
					ToolCalls: []StepToolCall{{Kind: StepToolCallFunction, ID: uuid.New().String(), Name: tool.OperationID, Arguments: call.Arguments, Output: &output}},
				},
			}
			results[i] = outcome{step: step, io: formatToolCallIO(call.Arguments, output)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		if r.step == nil {
			continue
		}
		if err := ex.runs.CreateStep(ctx, r.step); err != nil {
			return fmt.Errorf("create action step: %w", err)
		}
		turn.toolCallIO = append(turn.toolCallIO, r.io)
	}
	return nil
}

// finalize assembles the prompt, calls the model, appends the assistant
// message, writes its MessageCreation step, and marks the run Completed
// (spec §4.1 steps 7-9).
func (ex *Executor) finalize(ctx context.Context, run *Run, assistant *assistants.Assistant, thread *threads.Thread, recentMessages []string, turn *turnContext) error {
	instructions := run.Instructions
	if instructions == "" {
		instructions = assistant.Instructions
	}

	assembled := ex.prompt.Assemble(PromptInput{
		Instructions:     instructions,
		ToolCallIO:       turn.toolCallIO,
		Tools:            toolDescriptions(assistant.Tools),
		PreviousMessages: recentMessages,
		CodeOutput:       turn.codeOutput,
		FileContents:     turn.fileContents,
		Chunks:           turn.chunks,
	})

	start := time.Now()
	resp, err := ex.llm.Complete(ctx, llm.ChatRequest{
		Model:       run.Model,
		Temperature: assistant.Temperature,
		TopP:        assistant.TopP,
		Messages: []llm.Message{
			{Role: "system", Content: "You are executing one bounded run for an assistant. Respond with the final answer for the user."},
			{Role: "user", Content: assembled},
		},
	})
	metricsStepDuration.WithLabelValues("message_creation").Observe(time.Since(start).Seconds())
	if err != nil {
		return ex.fail(ctx, run, apperror.ErrModelError.WithInternal(err))
	}

	message := &threads.Message{
		ThreadID: thread.ID,
		Role:     threads.RoleAssistant,
		Content:  resp.Message.Content,
		RunID:    &run.ID,
	}
	if err := ex.threads.AppendMessage(ctx, message); err != nil {
		return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
	}

	step := &RunStep{
		RunID:       run.ID,
		AssistantID: assistant.ID,
		ThreadID:    run.ThreadID,
		UserID:      run.UserID,
		Type:        StepTypeMessageCreation,
		Status:      StatusCompleted,
		Details:     &StepDetails{MessageID: &message.ID},
	}
	if err := ex.runs.CreateStep(ctx, step); err != nil {
		return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
	}

	if err := ex.runs.UpdateStatus(ctx, run, StatusCompleted); err != nil {
		return ex.fail(ctx, run, apperror.ErrServerError.WithInternal(err))
	}
	metricsRunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	return nil
}

func (ex *Executor) fail(ctx context.Context, run *Run, appErr *apperror.Error) error {
	ex.log.Error("run failed", slog.String("run_id", run.ID.String()), slog.String("code", appErr.Code), logger.Error(appErr))
	if err := ex.runs.Fail(ctx, run, appErr.Code, appErr.Error()); err != nil {
		ex.log.Error("failed to persist run failure", logger.Error(err))
	}
	metricsRunsTotal.WithLabelValues(string(StatusFailed)).Inc()
	return appErr
}

func formatMessages(messages []*threads.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return out
}

func lastUserMessage(messages []*threads.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == threads.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func unionFileIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func formatToolCallIO(input, output string) string {
	return fmt.Sprintf("<input>%s</input><output>%s</output>", input, output)
}

func toolDescriptions(tools assistants.ToolList) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, fmt.Sprintf("%s: %s", t.Name(), toolSummary(t)))
	}
	return out
}

func toolSummary(t assistants.Tool) string {
	switch t.Kind {
	case assistants.ToolKindFunction:
		if t.Function != nil {
			return t.Function.Description
		}
	case assistants.ToolKindAction:
		if t.Action != nil {
			return fmt.Sprintf("%s %s", t.Action.Method, t.Action.Path)
		}
	}
	return string(t.Kind)
}

func functionToolSchema(t *assistants.FunctionTool) (llm.ToolSchema, error) {
	params, err := rawSchemaToMap(t.Parameters)
	if err != nil {
		return llm.ToolSchema{}, err
	}
	return llm.ToolSchema{Name: t.Name, Description: t.Description, Parameters: params}, nil
}

func actionToolSchema(t *assistants.ActionTool) llm.ToolSchema {
	params, _ := rawSchemaToMap(t.Params)
	return llm.ToolSchema{
		Name:        t.OperationID,
		Description: fmt.Sprintf("%s %s", strings.ToUpper(t.Method), t.Path),
		Parameters:  params,
	}
}

func rawSchemaToMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return m, nil
}

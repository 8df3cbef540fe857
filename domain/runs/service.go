package runs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/domain/threads"
	"github.com/arclane/assistants-executor/pkg/apperror"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// CreateRunInput is the caller-supplied shape for enqueuing a new run
// (spec §6's "enqueue-and-create-run" upward interface).
type CreateRunInput struct {
	ThreadID     uuid.UUID
	AssistantID  uuid.UUID
	UserID       string
	Model        string
	Instructions string
	FileIDs      []string
}

// SubmittedOutput is one caller-supplied {tool_call_id, output} pair for
// the submit-tool-outputs operation.
type SubmittedOutput struct {
	ToolCallID string
	Output     string
}

// Service is the Run Executor's upward-facing interface (spec §6):
// enqueue-and-create-run, submit-tool-outputs, and plain status reads.
type Service struct {
	runs       *Repository
	assistants *assistants.Repository
	threads    *threads.Repository
	log        *slog.Logger
}

func NewService(runsRepo *Repository, assistantsRepo *assistants.Repository, threadsRepo *threads.Repository, log *slog.Logger) *Service {
	return &Service{runs: runsRepo, assistants: assistantsRepo, threads: threadsRepo, log: log.With(logger.Scope("runs.service"))}
}

// CreateRun persists a new run in Queued status. Nothing else has to
// hand the run id to a queue: the polling worker dequeues Queued runs
// directly from the store, so persistence alone is sufficient (see
// module.go's worker wiring).
func (s *Service) CreateRun(ctx context.Context, in CreateRunInput) (*Run, error) {
	assistant, err := s.assistants.GetByID(ctx, in.AssistantID)
	if err != nil {
		return nil, apperror.ErrLoadError.WithMessage("failed to load assistant").WithInternal(err)
	}
	if assistant == nil {
		return nil, apperror.NewNotFound("assistant", in.AssistantID.String())
	}

	thread, err := s.threads.GetThread(ctx, in.ThreadID)
	if err != nil {
		return nil, apperror.ErrLoadError.WithMessage("failed to load thread").WithInternal(err)
	}
	if thread == nil {
		return nil, apperror.NewNotFound("thread", in.ThreadID.String())
	}

	model := in.Model
	if model == "" {
		model = assistant.Model
	}

	run := &Run{
		ThreadID:     in.ThreadID,
		AssistantID:  in.AssistantID,
		UserID:       in.UserID,
		Model:        model,
		Instructions: in.Instructions,
		FileIDs:      in.FileIDs,
		Status:       StatusQueued,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to create run").WithInternal(err)
	}
	return run, nil
}

// GetRun returns a run's current state, or a not-found error.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to load run").WithInternal(err)
	}
	if run == nil {
		return nil, apperror.NewNotFound("run", id.String())
	}
	return run, nil
}

// ListSteps returns a run's steps in insertion order.
func (s *Service) ListSteps(ctx context.Context, runID uuid.UUID) ([]*RunStep, error) {
	return s.runs.ListSteps(ctx, runID)
}

// SubmitToolOutputs validates and persists caller-supplied tool outputs,
// then re-enqueues the run (spec §6's submit-tool-outputs operation,
// resolving §9's open questions on partial submissions and racing
// submits).
//
// The submitted set must exactly match the run's required set: a partial
// submission is rejected rather than accepted and left pending, since the
// executor's resume() has no way to tell "still waiting on more outputs"
// from "caller forgot one" once it has already reconstructed its context
// from the store. An optimistic expected_status=requires_action check
// guards against two submissions racing an in-flight executor pass: only
// the first submission against a given requires_action run succeeds.
func (s *Service) SubmitToolOutputs(ctx context.Context, runID uuid.UUID, outputs []SubmittedOutput) (*Run, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to load run").WithInternal(err)
	}
	if run == nil {
		return nil, apperror.NewNotFound("run", runID.String())
	}
	if run.Status != StatusRequiresAction || run.RequiredAction == nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("run %s is not awaiting tool outputs (status=%s)", runID, run.Status))
	}

	required := make(map[string]bool, len(run.RequiredAction.ToolCalls))
	for _, tc := range run.RequiredAction.ToolCalls {
		required[tc.ID] = true
	}
	submitted := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		if !required[o.ToolCallID] {
			return nil, apperror.NewBadRequest(fmt.Sprintf("tool_call_id %s is not pending on this run", o.ToolCallID))
		}
		submitted[o.ToolCallID] = true
	}
	if len(submitted) != len(required) {
		return nil, apperror.NewBadRequest("submitted tool outputs must cover every pending tool call, partial submission is not accepted")
	}

	calls := make([]*SubmittedToolCall, 0, len(outputs))
	for _, o := range outputs {
		calls = append(calls, &SubmittedToolCall{ID: o.ToolCallID, RunID: runID, UserID: run.UserID, Output: o.Output})
	}
	if err := s.runs.SaveSubmittedToolCalls(ctx, calls); err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to save tool outputs").WithInternal(err)
	}

	// Re-read immediately before flipping status so a concurrent submit
	// against the same requires_action run (the race §9 calls out) is
	// rejected rather than silently re-enqueuing the run twice.
	current, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to reload run").WithInternal(err)
	}
	if current == nil || current.Status != StatusRequiresAction {
		return nil, apperror.NewBadRequest(fmt.Sprintf("run %s is no longer awaiting tool outputs", runID))
	}

	if err := s.runs.UpdateStatus(ctx, current, StatusQueued); err != nil {
		return nil, apperror.ErrServerError.WithMessage("failed to re-enqueue run").WithInternal(err)
	}
	return current, nil
}

package runs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/internal/jobs"
	"github.com/arclane/assistants-executor/pkg/apperror"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Repository provides persistence for runs, run steps, and submitted tool
// calls (spec §3's Run Store / Step Store / Tool-Call Store).
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("runs.repository"))}
}

// Create persists a new run in Queued status.
func (r *Repository) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusQueued
	}
	if _, err := r.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return apperror.NewInternal("failed to create run", err)
	}
	return nil
}

// GetByID loads a run, or (nil, nil) if it doesn't exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := new(Run)
	err := r.db.NewSelect().Model(run).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperror.NewInternal("failed to load run", err)
	}
	return run, nil
}

// UpdateStatus transitions a run's status and updates the lifecycle
// timestamp matching the new status.
func (r *Repository) UpdateStatus(ctx context.Context, run *Run, status Status) error {
	run.Status = status
	now := time.Now()
	switch status {
	case StatusInProgress:
		run.StartedAt = &now
	case StatusCompleted:
		run.CompletedAt = &now
	case StatusFailed:
		run.FailedAt = &now
	case StatusCancelled:
		run.CancelledAt = &now
	case StatusExpired:
		run.ExpiredAt = &now
	}
	_, err := r.db.NewUpdate().Model(run).WherePK().Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to update run status", err)
	}
	return nil
}

// Save persists the run's current in-memory state in full (used after
// setting RequiredAction/LastError alongside a status change).
func (r *Repository) Save(ctx context.Context, run *Run) error {
	_, err := r.db.NewUpdate().Model(run).WherePK().Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to save run", err)
	}
	return nil
}

// Fail marks a run Failed with the given last_error and fails every
// non-terminal step belonging to it (spec §7's failure propagation).
func (r *Repository) Fail(ctx context.Context, run *Run, code, message string) error {
	run.LastError = &LastError{Code: code, Message: jobs.TruncateError(message)}
	if err := r.UpdateStatus(ctx, run, StatusFailed); err != nil {
		return err
	}
	return r.failNonTerminalSteps(ctx, run.ID)
}

func (r *Repository) failNonTerminalSteps(ctx context.Context, runID uuid.UUID) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*RunStep)(nil)).
		Set("status = ?", StatusFailed).
		Set("failed_at = ?", now).
		Where("run_id = ?", runID).
		Where("status = ?", StatusInProgress).
		Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to fail non-terminal steps", err)
	}
	return nil
}

// CreateStep persists a new InProgress (or already-terminal) run step.
func (r *Repository) CreateStep(ctx context.Context, step *RunStep) error {
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	if step.Status == "" {
		step.Status = StatusInProgress
	}
	if _, err := r.db.NewInsert().Model(step).Exec(ctx); err != nil {
		return apperror.NewInternal("failed to create run step", err)
	}
	return nil
}

// CompleteStep marks a step Completed, optionally replacing its details.
func (r *Repository) CompleteStep(ctx context.Context, step *RunStep) error {
	now := time.Now()
	step.Status = StatusCompleted
	step.CompletedAt = &now
	_, err := r.db.NewUpdate().Model(step).WherePK().Exec(ctx)
	if err != nil {
		return apperror.NewInternal("failed to complete run step", err)
	}
	return nil
}

// ListSteps returns a run's steps in creation order (spec §3's "listing
// steps by run id yields all work performed in insertion order").
func (r *Repository) ListSteps(ctx context.Context, runID uuid.UUID) ([]*RunStep, error) {
	var out []*RunStep
	err := r.db.NewSelect().
		Model(&out).
		Where("run_id = ?", runID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to list run steps", err)
	}
	return out, nil
}

// SaveSubmittedToolCalls persists caller-supplied tool outputs for a run
// entering the Queued state from RequiresAction.
func (r *Repository) SaveSubmittedToolCalls(ctx context.Context, calls []*SubmittedToolCall) error {
	if len(calls) == 0 {
		return nil
	}
	if _, err := r.db.NewInsert().Model(&calls).Exec(ctx); err != nil {
		return apperror.NewInternal("failed to save submitted tool calls", err)
	}
	return nil
}

// ListSubmittedToolCalls returns every SubmittedToolCall recorded for a
// run.
func (r *Repository) ListSubmittedToolCalls(ctx context.Context, runID uuid.UUID) ([]*SubmittedToolCall, error) {
	var out []*SubmittedToolCall
	err := r.db.NewSelect().Model(&out).Where("run_id = ?", runID).Scan(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to list submitted tool calls", err)
	}
	return out, nil
}

// Dequeue atomically claims the oldest Queued run for processing,
// transitioning it to InProgress in the same statement so concurrent
// workers never claim the same run twice (FOR UPDATE SKIP LOCKED against
// executor.runs directly, using the run state machine's own status
// vocabulary rather than a generic job-row's pending/processing pair).
func (r *Repository) Dequeue(ctx context.Context) (*Run, error) {
	query := `
		WITH cte AS (
			SELECT id FROM executor.runs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE executor.runs r
		SET status = 'in_progress', started_at = now()
		FROM cte WHERE r.id = cte.id
		RETURNING r.id`

	var id uuid.UUID
	err := r.db.NewRaw(query).Scan(ctx, &id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue run: %w", err)
	}
	return r.GetByID(ctx, id)
}

// ExpireStale marks every run stuck InProgress past the given age as
// Expired (spec §5's "Expired is set externally based on a configurable
// wall-clock bound"). Returns the number of runs expired.
func (r *Repository) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.db.NewUpdate().
		Model((*Run)(nil)).
		Set("status = ?", StatusExpired).
		Set("expired_at = now()").
		Where("status = ?", StatusInProgress).
		Where("started_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, apperror.NewInternal("failed to expire stale runs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

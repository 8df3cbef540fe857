package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/arclane/assistants-executor/domain/runs"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// StaleRunExpiryTask marks runs stuck InProgress past the configured
// wall-clock bound as Expired (spec §5's "Expired is set externally").
type StaleRunExpiryTask struct {
	runs      *runs.Repository
	log       *slog.Logger
	olderThan time.Duration
}

func NewStaleRunExpiryTask(runsRepo *runs.Repository, olderThan time.Duration, log *slog.Logger) *StaleRunExpiryTask {
	return &StaleRunExpiryTask{runs: runsRepo, olderThan: olderThan, log: log.With(logger.Scope("scheduler.stale_run_expiry"))}
}

// Run executes the stale run expiry sweep.
func (t *StaleRunExpiryTask) Run(ctx context.Context) error {
	start := time.Now()
	n, err := t.runs.ExpireStale(ctx, t.olderThan)
	if err != nil {
		t.log.Error("failed to expire stale runs", logger.Error(err))
		return err
	}
	if n > 0 {
		t.log.Info("expired stale runs", slog.Int("count", n), slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no stale runs to expire", slog.Duration("duration", time.Since(start)))
	}
	return nil
}

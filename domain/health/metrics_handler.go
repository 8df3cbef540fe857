package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/domain/scheduler"
)

// MetricsHandler exposes operational counters for the run queue (spec §6)
// and the scheduler's registered sweeps.
type MetricsHandler struct {
	db        *bun.DB
	scheduler *scheduler.Scheduler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(db *bun.DB, sched *scheduler.Scheduler) *MetricsHandler {
	return &MetricsHandler{
		db:        db,
		scheduler: sched,
	}
}

// RunQueueMetrics represents the run queue's status distribution.
type RunQueueMetrics struct {
	Queued         int64 `json:"queued"`
	InProgress     int64 `json:"in_progress"`
	RequiresAction int64 `json:"requires_action"`
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Cancelled      int64 `json:"cancelled"`
	Expired        int64 `json:"expired"`
	Total          int64 `json:"total"`
	LastHour       int64 `json:"last_hour"`
	Last24Hours    int64 `json:"last_24_hours"`
}

// AllJobMetrics contains the run queue's metrics snapshot.
type AllJobMetrics struct {
	RunQueue  RunQueueMetrics `json:"run_queue"`
	Timestamp string          `json:"timestamp"`
}

// JobMetrics returns the run queue's status counts (spec §6's run_queue).
func (h *MetricsHandler) JobMetrics(c echo.Context) error {
	ctx := c.Request().Context()

	metrics, err := h.getRunQueueMetrics(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load run queue metrics")
	}

	return c.JSON(http.StatusOK, AllJobMetrics{
		RunQueue:  *metrics,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *MetricsHandler) getRunQueueMetrics(ctx context.Context) (*RunQueueMetrics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued') as queued,
			COUNT(*) FILTER (WHERE status = 'in_progress') as in_progress,
			COUNT(*) FILTER (WHERE status = 'requires_action') as requires_action,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') as cancelled,
			COUNT(*) FILTER (WHERE status = 'expired') as expired,
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '1 hour') as last_hour,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '24 hours') as last_24_hours
		FROM executor.runs`

	var metrics struct {
		Queued         int64 `bun:"queued"`
		InProgress     int64 `bun:"in_progress"`
		RequiresAction int64 `bun:"requires_action"`
		Completed      int64 `bun:"completed"`
		Failed         int64 `bun:"failed"`
		Cancelled      int64 `bun:"cancelled"`
		Expired        int64 `bun:"expired"`
		Total          int64 `bun:"total"`
		LastHour       int64 `bun:"last_hour"`
		Last24Hours    int64 `bun:"last_24_hours"`
	}

	if err := h.db.NewRaw(query).Scan(ctx, &metrics); err != nil {
		return nil, err
	}

	return &RunQueueMetrics{
		Queued:         metrics.Queued,
		InProgress:     metrics.InProgress,
		RequiresAction: metrics.RequiresAction,
		Completed:      metrics.Completed,
		Failed:         metrics.Failed,
		Cancelled:      metrics.Cancelled,
		Expired:        metrics.Expired,
		Total:          metrics.Total,
		LastHour:       metrics.LastHour,
		Last24Hours:    metrics.Last24Hours,
	}, nil
}

// SchedulerMetrics returns the scheduler's registered tasks and their next
// run times (e.g. the stale-run expiry sweep).
func (h *MetricsHandler) SchedulerMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": h.scheduler.IsRunning(),
		"tasks":   h.scheduler.GetTaskInfo(),
	})
}

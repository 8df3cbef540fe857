package scheduler

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/arclane/assistants-executor/domain/runs"
	"github.com/arclane/assistants-executor/internal/config"
)

// Module provides scheduled task functionality: a single periodic sweep
// that expires runs stuck in_progress past their wall-clock bound (spec
// §5's "Expired is set externally based on a configurable wall-clock
// bound").
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
		ProvideStaleRunExpiryTask,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// staleRunTaskParams are the minimal deps needed to build the stale run
// expiry task.
type staleRunTaskParams struct {
	fx.In
	RunsRepo    *runs.Repository
	ExecutorCfg *config.Config
	Log         *slog.Logger
}

// ProvideStaleRunExpiryTask creates the stale run expiry task, sourcing
// its wall-clock bound from config.ExecutorConfig rather than duplicating
// it on scheduler.Config.
func ProvideStaleRunExpiryTask(p staleRunTaskParams) *StaleRunExpiryTask {
	return NewStaleRunExpiryTask(p.RunsRepo, p.ExecutorCfg.Executor.StaleRunTimeout, p.Log)
}

// TaskParams contains dependencies for creating scheduled tasks.
type TaskParams struct {
	fx.In
	Scheduler    *Scheduler
	Log          *slog.Logger
	Cfg          *Config
	ExecutorCfg  *config.Config
	StaleRunTask *StaleRunExpiryTask
}

// RegisterTasks registers all scheduled tasks.
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	if err := addScheduledTask(p.Scheduler, p.Log, "stale_run_expiry",
		p.Cfg.StaleRunExpirySchedule, p.ExecutorCfg.Executor.StaleRunSweepInterval, p.StaleRunTask.Run); err != nil {
		p.Log.Error("failed to register stale run expiry task", slog.String("error", err.Error()))
	}

	p.Log.Info("registered scheduled tasks", slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// addScheduledTask registers a task using a cron schedule if provided, otherwise using an interval.
// The cron schedule takes precedence over the interval when both are specified.
// If the cron schedule is invalid, falls back to using the interval.
func addScheduledTask(s *Scheduler, log *slog.Logger, name, cronSchedule string, interval time.Duration, task TaskFunc) error {
	if cronSchedule != "" {
		log.Info("using cron schedule for task",
			slog.String("name", name),
			slog.String("schedule", cronSchedule))
		err := s.AddCronTask(name, cronSchedule, task)
		if err != nil {
			log.Warn("invalid cron schedule, falling back to interval",
				slog.String("name", name),
				slog.String("schedule", cronSchedule),
				slog.Duration("interval", interval),
				slog.String("error", err.Error()))
			return s.AddIntervalTask(name, interval, task)
		}
		return nil
	}
	return s.AddIntervalTask(name, interval, task)
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle.
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}

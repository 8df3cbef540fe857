package runs

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/internal/jobs"
)

// Module wires the Run Executor subsystem: persistence, every tool
// collaborator, the state machine, its caller-facing service, and the
// polling worker that drives runs off the queue (spec §6's run_queue).
var Module = fx.Module("runs",
	fx.Provide(
		NewRepository,
		NewToolRouter,
		NewFunctionCallGenerator,
		NewActionExecutor,
		NewPromptAssembler,
		NewRetrieval,
		NewSafeInterpreter,
		NewExecutor,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes, RegisterWorkerLifecycle),
)

// RegisterWorkerLifecycle starts a poll loop that dequeues Queued runs and
// drives them through the Executor, stopping it gracefully on shutdown
// (spec §6's run_queue consumer).
func RegisterWorkerLifecycle(lc fx.Lifecycle, cfg *config.Config, repo *Repository, executor *Executor, log *slog.Logger) {
	workerCfg := jobs.DefaultWorkerConfig("run_executor")
	workerCfg.PollInterval = cfg.Queue.PollInterval
	workerCfg.BatchSize = cfg.Queue.BatchSize

	worker := jobs.NewWorker(workerCfg, log, func(ctx context.Context) error {
		for i := 0; i < workerCfg.BatchSize; i++ {
			run, err := repo.Dequeue(ctx)
			if err != nil {
				return err
			}
			if run == nil {
				return nil
			}
			processRun(ctx, executor, run, log)
		}
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return worker.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return worker.Stop(ctx) },
	})
}

func processRun(ctx context.Context, executor *Executor, run *Run, log *slog.Logger) {
	if err := executor.Execute(ctx, run.ID); err != nil {
		log.Error("run execution failed", slog.String("run_id", run.ID.String()), slog.Any("error", err))
	}
}

// Package main provides the entry point for the Assistants Run Executor
// service: the queue-driven worker that drives Assistant runs through
// their state machine, plus the minimal HTTP stub boundary it exposes for
// enqueuing runs and submitting tool outputs (spec §6).
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/domain/chunks"
	"github.com/arclane/assistants-executor/domain/files"
	"github.com/arclane/assistants-executor/domain/health"
	"github.com/arclane/assistants-executor/domain/runs"
	"github.com/arclane/assistants-executor/domain/sandbox"
	"github.com/arclane/assistants-executor/domain/scheduler"
	"github.com/arclane/assistants-executor/domain/threads"
	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/internal/database"
	"github.com/arclane/assistants-executor/internal/jobs"
	"github.com/arclane/assistants-executor/internal/server"
	"github.com/arclane/assistants-executor/internal/storage"
	"github.com/arclane/assistants-executor/pkg/kreuzberg"
	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

func main() {
	// Load .env files if present (for local development).
	// Order matters: .env.local overrides .env. Load() won't overwrite
	// existing vars, Overload() will.
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		storage.Module,
		jobs.Module,

		// External collaborators (spec §6)
		kreuzberg.Module,
		llm.Module,

		// Domain modules
		health.Module,
		assistants.Module,
		threads.Module,
		files.Module,
		chunks.Module,
		sandbox.Module,
		runs.Module,
		scheduler.Module,
	).Run()
}

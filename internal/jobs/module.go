package jobs

import "go.uber.org/fx"

// Module provides background worker infrastructure.
// Domain modules build their own poll loop around Worker with a custom
// process function and register it with fx lifecycle for start/stop
// (see domain/runs/module.go's RegisterWorkerLifecycle).
var Module = fx.Module("jobs",
	// No direct providers - this is a library module
	// Domain modules create their own Worker instances
)

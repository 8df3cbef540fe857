package chunks

import (
	"go.uber.org/fx"
)

// Module provides chunks dependencies via fx. Chunks have no HTTP surface
// of their own; they are an internal collaborator consumed by the
// retrieval subsystem during run execution.
var Module = fx.Module("chunks",
	fx.Provide(
		NewRepository,
		NewService,
	),
)

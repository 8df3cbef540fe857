package threads

import "go.uber.org/fx"

// Module provides the threads repository as an fx module.
var Module = fx.Module("threads",
	fx.Provide(NewRepository),
)

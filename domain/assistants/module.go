package assistants

import (
	"go.uber.org/fx"
)

// Module provides the assistants repository as an fx module.
var Module = fx.Module("assistants",
	fx.Provide(NewRepository),
)

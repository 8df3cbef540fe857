package runs

import (
	"io"
	"log/slog"
)

// testLogger returns a *slog.Logger that discards output, for
// collaborators in this package that require one but whose tests don't
// care about log content.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

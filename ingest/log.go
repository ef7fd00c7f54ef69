package ingest

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("INGS", nil)

// UseLogger sets the package-wide logger used by ingest.
func UseLogger(logger slog.Logger) {
	log = logger
}

package status

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("STAT", nil)

// UseLogger sets the package-wide logger used by status.
func UseLogger(logger slog.Logger) {
	log = logger
}

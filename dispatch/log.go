package dispatch

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("DISP", nil)

// UseLogger sets the package-wide logger used by dispatch.
func UseLogger(logger slog.Logger) {
	log = logger
}

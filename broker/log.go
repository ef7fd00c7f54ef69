package broker

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("BROK", nil)

// UseLogger sets the package-wide logger used by broker.
func UseLogger(logger slog.Logger) {
	log = logger
}

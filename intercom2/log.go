package intercom2

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

// log is the package-level logger used throughout intercom2. It starts
// disabled and is replaced by the root SetupLoggers call via UseLogger.
var log = build.NewSubLogger("ICOM", nil)

// UseLogger sets the package-wide logger used by intercom2. It should be
// called before the first connection is dialed or accepted.
func UseLogger(logger slog.Logger) {
	log = logger
}

package walletdb

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("WDB", nil)

// UseLogger sets the package-wide logger used by walletdb.
func UseLogger(logger slog.Logger) {
	log = logger
}

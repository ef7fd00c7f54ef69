package session

import (
	"github.com/decred/slog"
	"github.com/decred/walletbroker/build"
)

var log = build.NewSubLogger("SESN", nil)

// UseLogger sets the package-wide logger used by session.
func UseLogger(logger slog.Logger) {
	log = logger
}

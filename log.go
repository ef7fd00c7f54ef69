package walletbroker

import (
	"github.com/decred/dcrd/connmgr"
	"github.com/decred/slog"
	"github.com/decred/walletbroker/broker"
	"github.com/decred/walletbroker/build"
	"github.com/decred/walletbroker/dispatch"
	"github.com/decred/walletbroker/ingest"
	"github.com/decred/walletbroker/intercom2"
	"github.com/decred/walletbroker/session"
	"github.com/decred/walletbroker/status"
	"github.com/decred/walletbroker/walletdb"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

// Loggers are disabled until SetupLoggers is called with the root
// RotatingLogWriter, which writes to stdout; attaching a log file with
// InitLogRotator() on that writer is optional.
var (
	// pkgLoggers is a list of all root-package loggers that are
	// registered. They are tracked here so they can be replaced once
	// SetupLoggers is called with the final root logger.
	pkgLoggers []*replaceableLogger

	// addPkgLogger creates a new replaceable root-package logger and adds
	// it to the list of loggers that are replaced again later, once the
	// final root logger is ready.
	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	// brokLog is used by this package's own broker-wiring code
	// (walletbroker.go), distinct from the broker façade's own "BROK"
	// subsystem registered in SetupLoggers below.
	brokLog = addPkgLogger("WBRK")
)

// SetupLoggers initializes all package-global logger variables against the
// given root logger, and wires each subsystem package's own logger.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "ICOM", intercom2.UseLogger)
	AddSubLogger(root, "SESN", session.UseLogger)
	AddSubLogger(root, "DISP", dispatch.UseLogger)
	AddSubLogger(root, "INGS", ingest.UseLogger)
	AddSubLogger(root, "STAT", status.UseLogger)
	AddSubLogger(root, "WDB", walletdb.UseLogger)
	AddSubLogger(root, "BROK", broker.UseLogger)
	AddSubLogger(root, "CMGR", connmgr.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more subsystems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// subsystem.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger slog.Logger, useLoggers ...func(slog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they aren't performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string,
// itself providing a Stringer interface so it can be used with the logging
// system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

package build

import (
	"io"
	"os"

	"github.com/decred/slog"
)

const (
	// LogTypeStdOut is the LoggingType that writes to stdout.
	LogTypeStdOut = iota

	// LogTypeFile is the LoggingType that writes to a rotated file, built
	// with -tags filelog (see log_filelog.go).
	LogTypeFile
)

// RotatingLogWriter wraps a size/age-based rotating file writer
// (github.com/jrick/logrotate) and hands out per-subsystem slog.Logger
// instances backed by it.
type RotatingLogWriter struct {
	rotator io.WriteCloser
	backend *slog.Backend

	loggers map[string]slog.Logger
}

// NewRotatingLogWriter creates a RotatingLogWriter with no rotator attached;
// callers that want file rotation call InitLogRotator before logging starts.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &RotatingLogWriter{
		loggers: make(map[string]slog.Logger),
	}
	w.backend = slog.NewBackend(w)
	return w
}

// InitLogRotator attaches a size/age-rotated file as an additional log sink.
// Must be called before any logger obtained from this writer is used for the
// rotation to take effect.
func (w *RotatingLogWriter) InitLogRotator(logFile string, maxRolls int) error {
	r, err := NewRotator(logFile, maxRolls)
	if err != nil {
		return err
	}
	w.rotator = r
	return nil
}

// Write satisfies io.Writer, fanning out to the attached file rotator (if
// any) and to stdout so operators see logs even without a configured file.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	if w.rotator != nil {
		_, _ = w.rotator.Write(b)
	}
	return os.Stdout.Write(b)
}

// GenSubLogger returns a new slog.Logger for the given subsystem tag, backed
// by this writer.
func (w *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	return w.backend.Logger(subsystem)
}

// RegisterSubLogger records the logger assigned to a subsystem so it can be
// looked up again (e.g. to change its level at runtime).
func (w *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	w.loggers[subsystem] = logger
}

// SetLogLevel sets the logging level of the named subsystem, a no-op if the
// subsystem hasn't been registered.
func (w *RotatingLogWriter) SetLogLevel(subsystem, level string) {
	logger, ok := w.loggers[subsystem]
	if !ok {
		return
	}
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return
	}
	logger.SetLevel(lvl)
}

// Close releases the underlying file rotator, if any.
func (w *RotatingLogWriter) Close() error {
	if w.rotator != nil {
		return w.rotator.Close()
	}
	return nil
}

// NewSubLogger creates a new slog.Logger for the given subsystem. If gen is
// nil a disabled logger is returned so packages can safely log before
// SetupLoggers has wired up the real root logger.
func NewSubLogger(subsystem string, gen func(string) slog.Logger) slog.Logger {
	if gen == nil {
		return slog.Disabled
	}
	logger := gen(subsystem)
	logger.SetLevel(slog.LevelInfo)
	return logger
}

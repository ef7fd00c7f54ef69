// walletbrokerd runs the custodial-wallet broker as a long-lived daemon: it
// loads configuration from the environment, wires up the broker, and runs
// until a termination signal is received.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	walletbroker "github.com/decred/walletbroker"
	"github.com/decred/walletbroker/build"
	"github.com/decred/walletbroker/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnvironment(os.Args[1:])
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logWriter := build.NewRotatingLogWriter()
	if build.LoggingType == build.LogTypeFile {
		if err := logWriter.InitLogRotator(cfg.LogDir+"/walletbrokerd.log", 10); err != nil {
			return fmt.Errorf("initializing log rotator: %w", err)
		}
	}
	walletbroker.SetupLoggers(logWriter)
	for _, subsystem := range []string{
		"WBRK", "ICOM", "SESN", "DISP", "INGS", "STAT", "WDB", "BROK", "CMGR",
	} {
		logWriter.SetLogLevel(subsystem, cfg.DebugLevel)
	}
	defer logWriter.Close()

	brok, err := walletbroker.New(cfg)
	if err != nil {
		// Failure here means TLS material could not be loaded or the
		// database is unreachable; neither is recoverable.
		return fmt.Errorf("building broker: %w", err)
	}

	if err := brok.Start(); err != nil {
		// Failure to bind the local listener is fatal.
		return fmt.Errorf("starting broker: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	brok.Stop()
	return nil
}

// Package config defines the broker's injected configuration record. Every
// value needed to construct a broker is represented here, and only
// FromEnvironment reads the process environment, so tests can build brokers
// without touching it.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// Default values for fields that the environment may leave unset.
const (
	DefaultConfirmThreshold      = 3
	DefaultDecimalPrecision      = 8
	DefaultMaxFrame              = 4 * 1024 * 1024
	DefaultRequestTimeout        = 30 * time.Second
	DefaultHandlerShutdownGrace  = 10 * time.Second
	DefaultDispatchWorkers       = 8
	DefaultDispatchRatePerSecond = 50.0
	DefaultDispatchBurst         = 100
)

// Intercom mode values for IntercomMode, per the wire protocol's security
// modes.
const (
	ModePlaintext = 1
	ModeMutualTLS = 2
)

// Config is the full set of values needed to construct a broker. Field tags
// follow the installed jessevdk/go-flags convention so the same struct can
// be populated from either a flags.Parser or FromEnvironment.
type Config struct {
	IntercomMode       int    `long:"intercom_mode" env:"INTERCOM_MODE" description:"1=plaintext, 2=mTLS" default:"1"`
	IntercomID         uint32 `long:"intercom_id" env:"INTERCOM_ID" description:"this broker's Intercom2 endpoint id"`
	IntercomPort       int    `long:"intercom_port" env:"INTERCOM_PORT" description:"local Intercom2 listen port"`
	IntercomSiteName   string `long:"intercom_sitename" env:"INTERCOM_SITENAME" description:"certificate directory name under <config>/cert/"`
	IntercomPassphrase string `long:"intercom_passphrase" env:"INTERCOM_PASSPHRASE" description:"passphrase protecting this site's TLS private keys"`

	SiteIntercomID   uint32 `long:"site_intercom_id" env:"SITE_INTERCOM_ID" description:"the wallet peer's Intercom2 endpoint id"`
	SiteIntercomPort int    `long:"site_intercom_port" env:"SITE_INTERCOM_PORT" description:"the wallet peer's listen port"`
	SiteIntercomHost string `long:"site_intercom_host" env:"SITE_INTERCOM_HOST" description:"the wallet peer's host"`

	CertDir string `long:"cert_dir" description:"directory holding CA.pem and the per-site key/cert pairs" default:"./cert"`

	DatabaseDSN string `long:"database_dsn" env:"DATABASE_DSN" description:"Postgres connection string for the persistence gateway"`

	ConfirmThreshold int64 `long:"confirm_threshold" env:"CONFIRM_THRESHOLD" description:"confirmations required before a transaction is credited" default:"3"`

	// DecimalPrecisionDefault is DECIMAL_PRECISION: the smallest-unit
	// fractional digit count applied to any coin absent from
	// DecimalPrecision below. DECIMAL_PRECISION is a per-coin constant per
	// the wire protocol (a NOTIFY's balances are smallest-unit integer
	// strings whose scale depends on the reporting coin), so this is only
	// the fallback, not the sole value.
	DecimalPrecisionDefault int `long:"decimal_precision" env:"DECIMAL_PRECISION" description:"fallback fractional digits for coins with no per-coin override" default:"8"`

	// DecimalPrecisionOverrides is a comma-separated coin:digits list,
	// e.g. "BTC:8,ETH:18", parsed into DecimalPrecision by
	// FromEnvironment. Left as a string here (rather than a map field)
	// because go-flags/env has no map-valued tag convention to draw on.
	DecimalPrecisionOverrides string `long:"decimal_precision_overrides" env:"DECIMAL_PRECISION_OVERRIDES" description:"comma-separated coin:digits precision overrides, e.g. BTC:8,ETH:18"`

	// DecimalPrecision maps a coin symbol to its DECIMAL_PRECISION
	// override. A coin not present here uses DecimalPrecisionDefault; see
	// PrecisionFor.
	DecimalPrecision map[string]int `long:"-"`

	MaxFrame             uint32        `long:"max_frame" description:"maximum Intercom2 frame payload size in bytes" default:"4194304"`
	RequestTimeout       time.Duration `long:"request_timeout" description:"outbound request timeout" default:"30s"`
	HandlerShutdownGrace time.Duration `long:"handler_shutdown_grace" description:"grace period for in-flight handlers at shutdown" default:"10s"`

	DispatchWorkers       int     `long:"dispatch_workers" description:"worker pool size for inbound handler dispatch" default:"8"`
	DispatchRatePerSecond float64 `long:"dispatch_rate" description:"inbound frame rate limit, 0 to disable" default:"50"`
	DispatchBurst         int     `long:"dispatch_burst" description:"inbound frame rate limit burst size" default:"100"`

	LogDir     string `long:"logdir" description:"directory for log files when built with the filelog tag" default:"./logs"`
	DebugLevel string `long:"debuglevel" description:"logging level applied to all subsystems (per-subsystem subsystem=level lists are not parsed)" default:"info"`
}

// Default returns a Config populated with the package defaults. Callers
// typically start from this and override fields from the environment or
// from flags.
func Default() *Config {
	return &Config{
		IntercomMode:            ModePlaintext,
		ConfirmThreshold:        DefaultConfirmThreshold,
		DecimalPrecisionDefault: DefaultDecimalPrecision,
		DecimalPrecision:        make(map[string]int),
		MaxFrame:                DefaultMaxFrame,
		RequestTimeout:          DefaultRequestTimeout,
		HandlerShutdownGrace:    DefaultHandlerShutdownGrace,
		DispatchWorkers:         DefaultDispatchWorkers,
		DispatchRatePerSecond:   DefaultDispatchRatePerSecond,
		DispatchBurst:           DefaultDispatchBurst,
		CertDir:                 "./cert",
		LogDir:                  "./logs",
		DebugLevel:              "info",
	}
}

// FromEnvironment parses process environment variables and command-line
// flags into a Config seeded with Default. This is the sole edge adapter
// between the process environment and the injected configuration record
// the rest of the broker is built against.
func FromEnvironment(args []string) (*Config, error) {
	cfg := Default()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.parsePrecisionOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePrecisionOverrides fills DecimalPrecision from
// DecimalPrecisionOverrides, the "COIN:digits,COIN:digits" string form
// go-flags can populate from the environment or command line.
func (c *Config) parsePrecisionOverrides() error {
	if c.DecimalPrecision == nil {
		c.DecimalPrecision = make(map[string]int)
	}
	if c.DecimalPrecisionOverrides == "" {
		return nil
	}
	for _, entry := range strings.Split(c.DecimalPrecisionOverrides, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		coin, digits, ok := strings.Cut(entry, ":")
		if !ok {
			return fmt.Errorf("invalid decimal_precision_overrides entry %q: want COIN:digits", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(digits))
		if err != nil {
			return fmt.Errorf("invalid decimal_precision_overrides entry %q: %w", entry, err)
		}
		c.DecimalPrecision[strings.TrimSpace(coin)] = n
	}
	return nil
}

// PrecisionFor returns DECIMAL_PRECISION for coin: its per-coin override if
// one is configured, otherwise DecimalPrecisionDefault.
func (c *Config) PrecisionFor(coin string) int {
	if p, ok := c.DecimalPrecision[coin]; ok {
		return p
	}
	return c.DecimalPrecisionDefault
}

// Validate checks that Config describes a usable broker.
func (c *Config) Validate() error {
	if c.IntercomMode != ModePlaintext && c.IntercomMode != ModeMutualTLS {
		return fmt.Errorf("invalid intercom_mode %d: must be %d or %d",
			c.IntercomMode, ModePlaintext, ModeMutualTLS)
	}
	if c.IntercomMode == ModeMutualTLS && c.IntercomSiteName == "" {
		return fmt.Errorf("intercom_sitename is required in mTLS mode")
	}
	if c.SiteIntercomHost == "" {
		return fmt.Errorf("site_intercom_host is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn is required")
	}
	if c.ConfirmThreshold < 0 {
		return fmt.Errorf("confirm_threshold must be non-negative")
	}
	if c.DecimalPrecisionDefault < 0 {
		return fmt.Errorf("decimal_precision must be non-negative")
	}
	for coin, p := range c.DecimalPrecision {
		if p < 0 {
			return fmt.Errorf("decimal_precision_overrides: precision for %q must be non-negative", coin)
		}
	}
	if c.MaxFrame == 0 {
		return fmt.Errorf("max_frame must be positive")
	}
	return nil
}

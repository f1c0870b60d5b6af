package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinelgov/auditchain/pkg/canon"
)

// Logger is the process-wide root logger. It discards everything until
// Init runs, so library consumers and tests that never configure
// logging stay silent.
var Logger = zerolog.New(io.Discard)

// Config controls the root logger.
type Config struct {
	// Level is a zerolog level name: debug, info, warn or error.
	// Unknown names fall back to info; a broken logging flag must
	// never keep the audit subsystem from starting.
	Level string

	// Console switches from JSON lines to human-readable console
	// output for interactive use.
	Console bool

	// Output defaults to stdout.
	Output io.Writer
}

// Init builds the root logger. Every line it emits carries the
// service name, so the audit subsystem's logs stay separable from the
// surrounding product's when both ship to the same collector.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "auditchain").
		Logger()
}

// WithComponent tags a child logger with the emitting component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTenant tags a child logger with the raw tenant id and the
// sanitized silo name. Operators grep by silo when correlating log
// lines with on-disk paths, and the two differ for any tenant id that
// needed sanitizing.
func WithTenant(tenantID string) zerolog.Logger {
	ctx := Logger.With().Str("tenant_id", tenantID)
	if silo := canon.SanitizeTenantID(tenantID); silo != tenantID {
		ctx = ctx.Str("silo", silo)
	}
	return ctx.Logger()
}

// WithReceipt tags a child logger with one chain entry's receipt id on
// top of the tenant context.
func WithReceipt(tenantID, receiptID string) zerolog.Logger {
	return WithTenant(tenantID).With().Str("receipt_id", receiptID).Logger()
}

// Critical returns an error-level event pre-tagged for the failures
// that demand an operator lockdown: a chain that stops verifying, a
// rotation that strands a ledger under an unwritable key. The lockdown
// field lets alerting route these away from ordinary errors.
func Critical(component string) *zerolog.Event {
	return Logger.Error().Str("component", component).Bool("lockdown", true)
}

// Package logging configures zerolog for pivot processes and adapts it to
// the pivot Telemetry interface.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level  string
	Format string // "json" or "console"
	Output io.Writer
}

// New builds a timestamped logger. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// Telemetry forwards pivot telemetry events to a zerolog logger at debug
// level. Events carrying an "error" field are logged as warnings.
type Telemetry struct {
	logger zerolog.Logger
}

var _ pivot.Telemetry = Telemetry{}

// NewTelemetry wraps logger.
func NewTelemetry(logger zerolog.Logger) Telemetry {
	return Telemetry{logger: logger.With().Str("component", "pivot").Logger()}
}

// Record implements pivot.Telemetry.
func (t Telemetry) Record(ctx context.Context, event string, payload map[string]any) {
	logger := t.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = l.With().Str("component", "pivot").Logger()
	}
	e := logger.Debug()
	if _, failed := payload["error"]; failed {
		e = logger.Warn()
	}
	e.Fields(payload).Str("event", event).Msg("pivot telemetry")
}

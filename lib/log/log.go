// Package log carries a slog.Logger in a context.Context.
package log

import (
	"context"
	stdlog "log"
	"os"
	"testing"
	"time"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"cdr.dev/slog/sloggers/slogtest"

	"oss.terrastruct.com/impactmap/lib/env"
)

type ctxKey struct{}

// fallback is used when a context carries no logger, as in library calls made
// outside xmain.
var fallback = slog.Make(sloghuman.Sink(os.Stderr)).Named("impactmap")

func With(ctx context.Context, l slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Logger returns the logger carried by ctx.
func Logger(ctx context.Context) slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(slog.Logger); ok {
		return l
	}
	return fallback
}

// WithTB carries a slogtest logger for t. $DEBUG lowers it to debug.
func WithTB(ctx context.Context, t testing.TB, opts *slogtest.Options) context.Context {
	return With(ctx, debugIf(slogtest.Make(t, opts), false))
}

// Stderr carries a human readable stderr logger and redirects the standard library
// logger into it.
func Stderr(ctx context.Context, verbose bool) context.Context {
	ctx = With(ctx, debugIf(slog.Make(sloghuman.Sink(os.Stderr)), verbose))
	stdlog.SetOutput(slog.Stdlib(ctx, Logger(ctx), slog.LevelInfo).Writer())
	return ctx
}

func debugIf(l slog.Logger, verbose bool) slog.Logger {
	if verbose || env.Debug() {
		return l.Leveled(slog.LevelDebug)
	}
	return l
}

func Named(ctx context.Context, name string) context.Context {
	return With(ctx, Logger(ctx).Named(name))
}

func Leveled(ctx context.Context, level slog.Level) context.Context {
	return With(ctx, Logger(ctx).Leveled(level))
}

func Debug(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	Logger(ctx).Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	Logger(ctx).Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	Logger(ctx).Warn(ctx, msg, fields...)
}

// WithTimeout is context.WithTimeout with timeout replaced by $IMPACTMAP_TIMEOUT when
// that is set. A timeout of zero or less means no deadline.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if override, ok := env.Timeout(); ok {
		timeout = override
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

package plugin

import (
	"context"

	"github.com/felixgeelhaar/plughost/internal/ports"
)

// nopLogger stands in when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...ports.Field) {}
func (nopLogger) Info(context.Context, string, ...ports.Field) {}
func (nopLogger) Warn(context.Context, string, ...ports.Field) {}
func (nopLogger) Error(context.Context, string, ...ports.Field) {}
func (l nopLogger) With(...ports.Field) ports.Logger { return l }
func (nopLogger) Level() ports.Level { return ports.LevelError }
func (nopLogger) SetLevel(ports.Level) {}

// contextLogger prefers the logger attached to ctx, which carries the
// check run's fields.
func contextLogger(ctx context.Context, fallback ports.Logger) ports.Logger {
	if l := ports.LoggerFromContext(ctx); l != nil {
		return l
	}
	return fallback
}

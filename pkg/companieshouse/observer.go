package companieshouse

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logger is the subset of a structured logger the client writes to. Both
// *zap.Logger and the application loggers built on zap fields satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

var nopLogger Logger = zap.NewNop()

// Observer receives per-request measurements, typically to feed metrics.
type Observer interface {
	ObserveResponse(endpoint string, statusCode int, elapsed time.Duration)
	ObserveRateLimitWait(endpoint string, wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveResponse(string, int, time.Duration) {}
func (nopObserver) ObserveRateLimitWait(string, time.Duration) {}

type endpointKey struct{}

func withEndpoint(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, endpointKey{}, name)
}

func endpointFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(endpointKey{}).(string); ok && name != "" {
		return name
	}
	return "unknown"
}

package shell

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	logAttrTraceID = "trace_id"
	logAttrSpanID  = "span_id"
)

// ZapLogger adapts a zap logger to marketplace.Logger and marketplace.ContextualLogger.
// Arguments are alternating keys and values, as with slog.
// The context variants add trace_id and span_id when ctx carries a valid span.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps logger.
func NewZapLogger(logger *zap.Logger) ZapLogger {
	return ZapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debug implements marketplace.Logger.
func (l ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info implements marketplace.Logger.
func (l ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn implements marketplace.Logger.
func (l ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error implements marketplace.Logger.
func (l ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// DebugContext implements marketplace.ContextualLogger.
func (l ZapLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Debugw(msg, withTraceFields(ctx, args)...)
}

// InfoContext implements marketplace.ContextualLogger.
func (l ZapLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Infow(msg, withTraceFields(ctx, args)...)
}

// WarnContext implements marketplace.ContextualLogger.
func (l ZapLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Warnw(msg, withTraceFields(ctx, args)...)
}

// ErrorContext implements marketplace.ContextualLogger.
func (l ZapLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Errorw(msg, withTraceFields(ctx, args)...)
}

// Sync flushes buffered entries.
func (l ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func withTraceFields(ctx context.Context, args []any) []any {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return args
	}

	fields := make([]any, 0, len(args)+4)
	fields = append(fields, args...)

	return append(fields,
		logAttrTraceID, spanCtx.TraceID().String(),
		logAttrSpanID, spanCtx.SpanID().String(),
	)
}

package postgresengine

import (
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Operation outcomes and durations (production-safe)
// Warn level: Non-critical issues like a cart row that was already gone during checkout cleanup
// Error level: Critical failures that cause operation failures.
func WithLogger(logger marketplace.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// It receives the same messages as the plain logger, with the context for trace correlation.
func WithContextualLogger(logger marketplace.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations, error counts by error type, and rejected stock debits.
func WithMetrics(collector marketplace.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// Every public operation gets one span; checkout spans carry the line count and order id.
func WithTracing(collector marketplace.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

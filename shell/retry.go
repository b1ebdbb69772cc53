package shell

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

const (
	// RetryAttemptsMetric counts retries by command type, attempt number and error type.
	RetryAttemptsMetric = "commandhandler_retries_total"

	// RetryDelayMetric records the backoff delay before each retry.
	RetryDelayMetric = "commandhandler_retry_delay_seconds"

	// MaxRetriesReachedMetric counts commands that ran out of attempts.
	MaxRetriesReachedMetric = "commandhandler_max_retries_reached_total"

	labelCommandType    = "command_type"
	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
)

const (
	errorTypeNone                    = "none"
	errorTypeTransactionConflict     = "transaction_conflict"
	errorTypeContextCanceled         = "context_canceled"
	errorTypeContextDeadlineExceeded = "context_deadline_exceeded"
	errorTypeOther                   = "other"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyCommandType is returned when an empty command type is provided to WithMetrics.
	ErrEmptyCommandType = errors.New("command type must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryMetrics describes how a retried call went.
type RetryMetrics struct {
	// Attempts is the number of calls made, 1 when the first call settled it.
	Attempts int

	// TotalDelay is the time spent waiting between attempts.
	TotalDelay time.Duration

	// LastErrorType classifies the final error, "none" on success.
	LastErrorType string

	// RetriesExhausted is true when every attempt failed with a retryable error.
	RetriesExhausted bool
}

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector marketplace.MetricsCollector
	commandType      string
}

// RetryWithExponentialBackoff runs fn and retries it while it fails with a transaction conflict.
//
// Retry Schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms (with 30% jitter)
//
// Only marketplace.ErrTransactionConflict is retried. Business rejections such as
// ErrInsufficientStock and context errors fail fast.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) (RetryMetrics, error) {

	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryMetrics{}, err
		}
	}

	metrics := RetryMetrics{LastErrorType: errorTypeNone}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelay(ctx, config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				metrics.TotalDelay += backoffDelay
			case <-ctx.Done():
				metrics.LastErrorType = errorTypeOf(ctx.Err())
				return metrics, ctx.Err()
			}
		}

		metrics.Attempts++

		lastErr = fn(ctx)
		metrics.LastErrorType = errorTypeOf(lastErr)

		if lastErr == nil {
			return metrics, nil
		}

		if !isRetryableError(lastErr) {
			return metrics, lastErr
		}

		if attempt < config.maxAttempts-1 {
			recordRetryAttempt(ctx, config, attempt+1, lastErr)
		}
	}

	metrics.RetriesExhausted = true
	recordMaxRetriesReached(ctx, config, lastErr)

	return metrics, lastErr
}

func isRetryableError(err error) bool {
	return errors.Is(err, marketplace.ErrTransactionConflict)
}

func errorTypeOf(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, marketplace.ErrTransactionConflict):
		return errorTypeTransactionConflict
	case errors.Is(err, context.Canceled):
		return errorTypeContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeContextDeadlineExceeded
	default:
		return errorTypeOther
	}
}

func recordRetryDelay(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelCommandType:   config.commandType,
		labelAttemptNumber: strconv.Itoa(attempt),
	}

	if contextual, ok := config.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, RetryDelayMetric, backoffDelay, labels)
		return
	}

	config.metricsCollector.RecordDuration(RetryDelayMetric, backoffDelay, labels)
}

func recordRetryAttempt(ctx context.Context, config *retryConfig, attemptNumber int, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelCommandType:   config.commandType,
		labelAttemptNumber: strconv.Itoa(attemptNumber),
		labelErrorType:     errorTypeOf(lastErr),
	}

	if contextual, ok := config.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, RetryAttemptsMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(RetryAttemptsMetric, labels)
}

func recordMaxRetriesReached(ctx context.Context, config *retryConfig, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelCommandType:    config.commandType,
		labelFinalErrorType: errorTypeOf(lastErr),
	}

	if contextual, ok := config.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, MaxRetriesReachedMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(MaxRetriesReachedMetric, labels)
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added as a share of each backoff delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector for retry instrumentation, labeled with commandType.
func WithMetrics(collector marketplace.MetricsCollector, commandType string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if commandType == "" {
			return ErrEmptyCommandType
		}

		config.metricsCollector = collector
		config.commandType = commandType

		return nil
	}
}

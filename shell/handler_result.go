package shell

import "time"

// HandlerResult carries the execution metadata of a command handler run.
type HandlerResult struct {
	// RetryAttempts is the total number of attempts made (1 for no retries, 2+ for retries).
	RetryAttempts int

	// TotalRetryDelay is the cumulative time spent in retry backoff delays.
	TotalRetryDelay time.Duration

	// LastErrorType describes the final error: "none", "transaction_conflict",
	// "context_canceled", "context_deadline_exceeded" or "other".
	LastErrorType string

	// RetriesExhausted indicates whether all attempts failed with a retryable error.
	RetriesExhausted bool
}

// NewHandlerResult creates a HandlerResult from retry metrics.
func NewHandlerResult(retryMetrics RetryMetrics) HandlerResult {
	return HandlerResult{
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
	}
}

package marketplace

import "context"

// ConsistencyLevel defines which database node read operations are routed to.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. It is the default, and every write path uses it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica, if one is configured.
	// Suitable for order history views, which tolerate slightly stale data.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "marketplace.consistency_level"

// WithStrongConsistency returns a context that routes reads to the primary.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows reads from a replica.
//
// Example usage:
//
//	ctx = marketplace.WithEventualConsistency(ctx)
//	orders, err := store.OrdersForBuyer(ctx, buyerID)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, defaulting to StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}

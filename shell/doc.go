// Package shell is the application layer around the marketplace store.
//
// It holds what sits between an inbound request and the store: retrying transaction
// conflicts with exponential backoff, reporting handler outcomes, and adapting zap to
// the store's logger interfaces. Feature handlers such as shell/checkout build on it.
package shell

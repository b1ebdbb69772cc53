// Package checkout contains the command handler that turns a buyer's cart snapshot into an order.
//
// The handler authorizes the actor against every line, commits through the store with
// retry on transaction conflicts, then publishes OrderPlaced and invalidates cached order
// views. The commit is authoritative: notification and cache failures are logged and never
// turn a committed checkout into an error.
package checkout

// Package rediscache provides a Redis read-through cache in front of the order query service.
//
// Order views are cached per buyer and per seller as JSON under the keys
// "orders:buyer:<id>" and "orders:seller:<id>". A committed checkout must call
// Invalidate for the buyer and every seller whose product was sold, otherwise readers
// see the previous views until the TTL expires. Order lines show the seller's current
// default address, so a change to it must call InvalidateSeller, which also drops the
// views of every buyer who ordered from that seller.
//
// Cache failures never fail a read: a broken or unreachable Redis degrades to a direct
// query against the wrapped service, and the failure is logged at warn level.
package rediscache

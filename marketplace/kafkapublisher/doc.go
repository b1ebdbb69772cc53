// Package kafkapublisher publishes OrderPlaced notifications to Kafka after a checkout commits.
//
// The message key is the order id, so all messages of one order land on the same partition.
// The W3C trace context of the publishing request travels in the message headers, and
// DecodeOrderPlaced restores it on the consuming side.
package kafkapublisher

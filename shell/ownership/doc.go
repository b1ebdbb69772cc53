// Package ownership contains the actor-checked handlers for cart items and addresses.
//
// Every mutation of an existing cart item or address first loads the resource from the primary
// and rejects the call with marketplace.ErrUnauthorized when the actor is not its owner.
// Owners never change, so the check does not need to share the mutation's transaction.
//
// The address handler also drops cached order views after a change that can move the owner's
// default address, because order lines show the seller's default address.
package ownership

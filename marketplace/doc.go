// Package marketplace provides the core types of the marketplace checkout subsystem.
//
// It defines the entities shared by every storage engine (products as inventory ledger
// entries, addresses, cart items, orders and order lines), the read-side views built by
// the order query service, the error taxonomy, and the dependency-free observability
// interfaces that engines accept as options.
//
// Invariants owned by this package:
//   - A product's Status is a pure function of its quantity (see StatusFor).
//   - An order's Total equals its Subtotal; tax and shipping are reserved at zero.
//   - A line total is always unit price x quantity, with the price captured at commit time.
//
// Common usage pattern:
//
//	store, _ := postgresengine.NewStoreFromPGXPool(pool)
//
//	item, err := store.AddCartItem(ctx, buyerID, productID, 2)
//	if errors.Is(err, marketplace.ErrInsufficientStock) {
//		// tell the buyer
//	}
//
//	result, err := store.Checkout(ctx, buyerID, marketplace.CheckoutLinesFrom(cartLines))
//	if err != nil {
//		// errors.Is(err, marketplace.ErrCheckoutFailed) is always true here
//	}
//	_ = result.OrderID
package marketplace

package ownership

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

// ManagesCartItems is the part of the cart the handler guards.
type ManagesCartItems interface {
	GetCartItem(ctx context.Context, cartItemID uuid.UUID) (marketplace.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, cartItemID uuid.UUID, quantity int) (marketplace.CartItem, error)
	RemoveCartItem(ctx context.Context, cartItemID uuid.UUID) error
}

// CartItems changes existing cart rows on behalf of their owner.
type CartItems struct {
	store ManagesCartItems
	settings
}

// NewCartItems creates a CartItems handler.
func NewCartItems(store ManagesCartItems, opts ...Option) CartItems {
	return CartItems{store: store, settings: newSettings(opts)}
}

// UpdateQuantity replaces the quantity of the actor's cart row.
func (h CartItems) UpdateQuantity(
	ctx context.Context,
	actorID uuid.UUID,
	cartItemID uuid.UUID,
	quantity int,
) (marketplace.CartItem, error) {

	if err := h.authorize(ctx, actorID, cartItemID); err != nil {
		return marketplace.CartItem{}, err
	}

	return h.store.UpdateCartItemQuantity(ctx, cartItemID, quantity)
}

// Remove deletes the actor's cart row. Removing a missing row is not an error.
func (h CartItems) Remove(ctx context.Context, actorID uuid.UUID, cartItemID uuid.UUID) error {
	err := h.authorize(ctx, actorID, cartItemID)
	if errors.Is(err, marketplace.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	return h.store.RemoveCartItem(ctx, cartItemID)
}

func (h CartItems) authorize(ctx context.Context, actorID uuid.UUID, cartItemID uuid.UUID) error {
	item, err := h.store.GetCartItem(marketplace.WithStrongConsistency(ctx), cartItemID)
	if err != nil {
		return err
	}

	return h.checkOwner(ctx, actorID, item.OwnerID, cartItemID)
}

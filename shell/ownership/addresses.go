package ownership

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

// ManagesAddresses is the address registry the handler guards.
type ManagesAddresses interface {
	GetAddress(ctx context.Context, addressID uuid.UUID) (marketplace.Address, error)
	CreateAddress(
		ctx context.Context,
		ownerID uuid.UUID,
		fields marketplace.AddressFields,
		isDefault bool,
	) (marketplace.Address, error)
	UpdateAddress(ctx context.Context, addressID uuid.UUID, patch marketplace.AddressPatch) (marketplace.Address, error)
	SetDefaultAddress(ctx context.Context, addressID uuid.UUID) (marketplace.Address, error)
	RemoveAddress(ctx context.Context, addressID uuid.UUID) error
}

// Addresses manages addresses on behalf of their owner.
type Addresses struct {
	store ManagesAddresses
	settings
}

// NewAddresses creates an Addresses handler.
func NewAddresses(store ManagesAddresses, opts ...Option) Addresses {
	return Addresses{store: store, settings: newSettings(opts)}
}

// Create adds an address owned by the actor.
func (h Addresses) Create(
	ctx context.Context,
	actorID uuid.UUID,
	fields marketplace.AddressFields,
	isDefault bool,
) (marketplace.Address, error) {

	address, err := h.store.CreateAddress(ctx, actorID, fields, isDefault)
	if err != nil {
		return marketplace.Address{}, err
	}

	if address.IsDefault {
		h.invalidate(ctx, actorID)
	}

	return address, nil
}

// Update applies a partial update to the actor's address.
func (h Addresses) Update(
	ctx context.Context,
	actorID uuid.UUID,
	addressID uuid.UUID,
	patch marketplace.AddressPatch,
) (marketplace.Address, error) {

	current, err := h.authorize(ctx, actorID, addressID)
	if err != nil {
		return marketplace.Address{}, err
	}

	updated, err := h.store.UpdateAddress(ctx, addressID, patch)
	if err != nil {
		return marketplace.Address{}, err
	}

	if current.IsDefault || updated.IsDefault {
		h.invalidate(ctx, actorID)
	}

	return updated, nil
}

// SetDefault makes the actor's address the default.
func (h Addresses) SetDefault(ctx context.Context, actorID uuid.UUID, addressID uuid.UUID) (marketplace.Address, error) {
	current, err := h.authorize(ctx, actorID, addressID)
	if err != nil {
		return marketplace.Address{}, err
	}

	address, err := h.store.SetDefaultAddress(ctx, addressID)
	if err != nil {
		return marketplace.Address{}, err
	}

	if !current.IsDefault {
		h.invalidate(ctx, actorID)
	}

	return address, nil
}

// Remove deletes the actor's non-default address.
func (h Addresses) Remove(ctx context.Context, actorID uuid.UUID, addressID uuid.UUID) error {
	if _, err := h.authorize(ctx, actorID, addressID); err != nil {
		return err
	}

	return h.store.RemoveAddress(ctx, addressID)
}

func (h Addresses) authorize(ctx context.Context, actorID uuid.UUID, addressID uuid.UUID) (marketplace.Address, error) {
	address, err := h.store.GetAddress(marketplace.WithStrongConsistency(ctx), addressID)
	if err != nil {
		return marketplace.Address{}, err
	}

	if err = h.checkOwner(ctx, actorID, address.OwnerID, addressID); err != nil {
		return marketplace.Address{}, err
	}

	return address, nil
}

// invalidate drops the owner's cached order views. The address change is committed at this
// point, so a cache failure is logged and not returned.
func (h Addresses) invalidate(ctx context.Context, ownerID uuid.UUID) {
	if h.cache == nil {
		return
	}

	if err := h.cache.InvalidateSeller(ctx, ownerID); err != nil {
		h.logWarn(ctx, logMsgInvalidateFailed, logAttrOwnerID, ownerID.String(), logAttrError, err.Error())
	}
}

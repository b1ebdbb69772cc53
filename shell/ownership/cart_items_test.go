package ownership_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/ownership"
	"github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper/postgreswrapper" //nolint:revive
)

type cartStoreStub struct {
	items      map[uuid.UUID]marketplace.CartItem
	getLevels  []marketplace.ConsistencyLevel
	updatedIDs []uuid.UUID
	removedIDs []uuid.UUID
}

func newCartStoreStub(items ...marketplace.CartItem) *cartStoreStub {
	stub := &cartStoreStub{items: make(map[uuid.UUID]marketplace.CartItem)}
	for _, item := range items {
		stub.items[item.ID] = item
	}

	return stub
}

func (s *cartStoreStub) GetCartItem(ctx context.Context, cartItemID uuid.UUID) (marketplace.CartItem, error) {
	s.getLevels = append(s.getLevels, marketplace.GetConsistencyLevel(ctx))

	item, ok := s.items[cartItemID]
	if !ok {
		return marketplace.CartItem{}, marketplace.ErrNotFound
	}

	return item, nil
}

func (s *cartStoreStub) UpdateCartItemQuantity(_ context.Context, cartItemID uuid.UUID, quantity int) (marketplace.CartItem, error) {
	s.updatedIDs = append(s.updatedIDs, cartItemID)

	item := s.items[cartItemID]
	item.Quantity = quantity

	return item, nil
}

func (s *cartStoreStub) RemoveCartItem(_ context.Context, cartItemID uuid.UUID) error {
	s.removedIDs = append(s.removedIDs, cartItemID)
	return nil
}

func Test_CartItems_When_Actor_Is_Not_The_Owner_Should_Reject_Without_Change(t *testing.T) {
	// setup
	ownerID, actorID := uuid.New(), uuid.New()
	item := marketplace.CartItem{ID: uuid.New(), OwnerID: ownerID, ProductID: uuid.New(), Quantity: 1}
	store := newCartStoreStub(item)
	loggerSpy := helper.NewContextualLoggerSpy()
	handler := ownership.NewCartItems(store, ownership.WithContextualLogger(loggerSpy))

	// act
	_, updateErr := handler.UpdateQuantity(marketplace.WithEventualConsistency(context.Background()), actorID, item.ID, 3)
	removeErr := handler.Remove(context.Background(), actorID, item.ID)

	// assert
	assert.ErrorIs(t, updateErr, marketplace.ErrUnauthorized)
	assert.ErrorIs(t, removeErr, marketplace.ErrUnauthorized)
	assert.Empty(t, store.updatedIDs)
	assert.Empty(t, store.removedIDs)
	assert.Equal(t, marketplace.StrongConsistency, store.getLevels[0])

	rejections := loggerSpy.RecordsWithMessage("warn", "rejected: actor does not own the resource")
	assert.Len(t, rejections, 2)
	assert.Contains(t, rejections[0].Args, actorID.String())
	assert.Contains(t, rejections[0].Args, item.ID.String())
}

func Test_CartItems_When_Actor_Is_The_Owner_Should_Delegate(t *testing.T) {
	// setup
	ownerID := uuid.New()
	item := marketplace.CartItem{ID: uuid.New(), OwnerID: ownerID, ProductID: uuid.New(), Quantity: 1}
	store := newCartStoreStub(item)
	handler := ownership.NewCartItems(store)

	// act
	updated, updateErr := handler.UpdateQuantity(context.Background(), ownerID, item.ID, 4)
	removeErr := handler.Remove(context.Background(), ownerID, item.ID)

	// assert
	assert.NoError(t, updateErr)
	assert.NoError(t, removeErr)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, []uuid.UUID{item.ID}, store.updatedIDs)
	assert.Equal(t, []uuid.UUID{item.ID}, store.removedIDs)
}

func Test_CartItems_Remove_When_Row_Is_Missing_Should_Succeed(t *testing.T) {
	// setup
	store := newCartStoreStub()
	handler := ownership.NewCartItems(store)

	// act
	err := handler.Remove(context.Background(), uuid.New(), uuid.New())

	// assert
	assert.NoError(t, err)
	assert.Empty(t, store.removedIDs)
}

func Test_CartItems_UpdateQuantity_When_Row_Is_Missing_Should_Return_NotFound(t *testing.T) {
	// setup
	handler := ownership.NewCartItems(newCartStoreStub())

	// act
	_, err := handler.UpdateQuantity(context.Background(), uuid.New(), uuid.New(), 1)

	// assert
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
}

func Test_CartItems_Against_Postgres_Should_Only_Let_The_Owner_Change_A_Row(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()
	handler := ownership.NewCartItems(store)

	// arrange
	CleanUp(t, wrapper)
	sellerID := helper.GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := helper.GivenUser(t, ctxWithTimeout, store, "Ann")
	strangerID := helper.GivenUser(t, ctxWithTimeout, store, "Mallory")
	product := helper.GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	item := helper.GivenCartItem(t, ctxWithTimeout, store, buyerID, product.ID, 1)

	// act
	_, strangerUpdateErr := handler.UpdateQuantity(ctxWithTimeout, strangerID, item.ID, 5)
	strangerRemoveErr := handler.Remove(ctxWithTimeout, strangerID, item.ID)
	updated, ownerUpdateErr := handler.UpdateQuantity(ctxWithTimeout, buyerID, item.ID, 2)

	// assert
	assert.ErrorIs(t, strangerUpdateErr, marketplace.ErrUnauthorized)
	assert.ErrorIs(t, strangerRemoveErr, marketplace.ErrUnauthorized)
	assert.NoError(t, ownerUpdateErr)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, 1, CountRows(t, wrapper, "cart_items", ""))
}

package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_ProductStatus_Follows_Quantity_After_Every_Mutation(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")

	// act
	created := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 0)
	restocked, restockErr := store.SetQuantity(ctxWithTimeout, created.ID, 3)
	emptied, emptyErr := store.SetQuantity(ctxWithTimeout, created.ID, 0)

	// assert
	assert.Equal(t, StatusOutOfStock, created.Status)
	assert.NoError(t, restockErr)
	assert.Equal(t, StatusAvailable, restocked.Status)
	assert.Equal(t, 3, restocked.Quantity)
	assert.NoError(t, emptyErr)
	assert.Equal(t, StatusOutOfStock, emptied.Status)
	assert.Equal(t, StatusFor(emptied.Quantity), emptied.Status)
}

func Test_SetQuantity_When_Negative_ShouldFail_And_Keep_Stock(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 4)

	// act
	_, err := store.SetQuantity(ctxWithTimeout, product.ID, -1)

	// assert
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	reloaded, getErr := store.GetProduct(ctxWithTimeout, product.ID)
	assert.NoError(t, getErr)
	assert.Equal(t, 4, reloaded.Quantity)
}

func Test_GetProduct_When_Unknown_ShouldReturn_NotFound(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// act
	_, err := store.GetProduct(ctxWithTimeout, GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_CreateProduct_When_Owner_Is_Unknown_ShouldReturn_NotFound(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// act
	_, err := store.CreateProduct(ctxWithTimeout, NewProduct{
		OwnerID:  GivenUniqueID(t),
		Name:     "orphan",
		Price:    decimal.RequireFromString("1.00"),
		Quantity: 1,
	})

	// assert
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_HasQuantity_And_IsActive(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 2)

	// act
	enough, enoughErr := store.HasQuantity(ctxWithTimeout, product.ID, 2)
	tooMany, tooManyErr := store.HasQuantity(ctxWithTimeout, product.ID, 3)
	activeBefore, _ := store.IsActive(ctxWithTimeout, product.ID)
	assert.NoError(t, store.SoftRemove(ctxWithTimeout, product.ID))
	activeAfter, _ := store.IsActive(ctxWithTimeout, product.ID)

	// assert
	assert.NoError(t, enoughErr)
	assert.NoError(t, tooManyErr)
	assert.True(t, enough)
	assert.False(t, tooMany)
	assert.True(t, activeBefore)
	assert.False(t, activeAfter)
}

func Test_SoftRemove_Removes_The_Product_From_Every_Cart(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	GivenCartItem(t, ctxWithTimeout, store, GivenUser(t, ctxWithTimeout, store, "Ann"), product.ID, 1)
	GivenCartItem(t, ctxWithTimeout, store, GivenUser(t, ctxWithTimeout, store, "Bob"), product.ID, 2)

	// act
	err := store.SoftRemove(ctxWithTimeout, product.ID)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, CountRows(t, wrapper, "cart_items", ""))
	_, addErr := store.AddCartItem(ctxWithTimeout, sellerID, product.ID, 1)
	assert.ErrorIs(t, addErr, ErrNotAvailable)
}

func Test_HardRemove_When_Product_Was_Sold_ShouldReturn_Conflict(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	item := GivenCartItem(t, ctxWithTimeout, store, buyerID, product.ID, 1)
	_, checkoutErr := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{
		{CartItemID: item.ID, BuyerID: buyerID, ProductID: product.ID, Quantity: 1},
	})
	assert.NoError(t, checkoutErr, "error in arranging test data")

	// act
	err := store.HardRemove(ctxWithTimeout, product.ID)

	// assert
	assert.ErrorIs(t, err, ErrConflict)
	sold, soldErr := store.HasEverBeenSold(ctxWithTimeout, product.ID)
	assert.NoError(t, soldErr)
	assert.True(t, sold)
	assert.Equal(t, 1, CountRows(t, wrapper, "products", ""))
}

func Test_HardRemove_When_Never_Sold_Deletes_Product_Photos_And_CartRows(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	assert.NoError(t, store.AddPhoto(ctxWithTimeout, product.ID, "img-1"))
	GivenCartItem(t, ctxWithTimeout, store, GivenUser(t, ctxWithTimeout, store, "Ann"), product.ID, 1)
	assert.NoError(t, store.SoftRemove(ctxWithTimeout, product.ID))

	// act
	err := store.HardRemove(ctxWithTimeout, product.ID)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, CountRows(t, wrapper, "products", ""))
	assert.Equal(t, 0, CountRows(t, wrapper, "product_photos", ""))
	assert.Equal(t, 0, CountRows(t, wrapper, "cart_items", ""))
	assert.ErrorIs(t, store.HardRemove(ctxWithTimeout, product.ID), ErrNotFound)
}

func Test_Photos_Are_Listed_In_Insertion_Order_And_Removal_Is_Idempotent(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)

	// act
	assert.NoError(t, store.AddPhoto(ctxWithTimeout, product.ID, "b-front"))
	assert.NoError(t, store.AddPhoto(ctxWithTimeout, product.ID, "a-back"))
	assert.NoError(t, store.AddPhoto(ctxWithTimeout, product.ID, "b-front"))
	assert.NoError(t, store.RemovePhoto(ctxWithTimeout, product.ID, "missing"))
	photos, listErr := store.ListPhotos(ctxWithTimeout, product.ID)
	reloaded, getErr := store.GetProduct(ctxWithTimeout, product.ID)

	// assert
	assert.NoError(t, listErr)
	assert.NoError(t, getErr)
	assert.Len(t, photos, 2)
	assert.ElementsMatch(t, []string{"a-back", "b-front"}, photos)
	assert.Equal(t, photos, reloaded.Photos)
}

func Test_SetPrice_Affects_Future_Checkouts_Only(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	_, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 2}})
	assert.NoError(t, err, "error in arranging test data")

	// act
	updated, priceErr := store.SetPrice(ctxWithTimeout, product.ID, decimal.RequireFromString("12.50"))

	// assert
	assert.NoError(t, priceErr)
	assert.True(t, decimal.RequireFromString("12.50").Equal(updated.Price))
	orders, queryErr := store.OrdersForBuyer(ctxWithTimeout, buyerID)
	assert.NoError(t, queryErr)
	assert.Len(t, orders, 1)
	assert.True(t, decimal.RequireFromString("10.00").Equal(orders[0].Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("20.00").Equal(orders[0].Total))
}

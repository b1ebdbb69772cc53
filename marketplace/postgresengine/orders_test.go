package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_OrdersForSeller_Only_Contains_The_Sellers_Lines(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerA := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	sellerB := GivenSeller(t, ctxWithTimeout, store, "Fresno")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	productA := GivenProduct(t, ctxWithTimeout, store, sellerA, "10.00", 5)
	productB := GivenProduct(t, ctxWithTimeout, store, sellerB, "4.00", 5)
	result, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{
		{BuyerID: buyerID, ProductID: productA.ID, Quantity: 1},
		{BuyerID: buyerID, ProductID: productB.ID, Quantity: 2},
	})
	assert.NoError(t, err, "error in arranging test data")

	// act
	sellerViews, sellerErr := store.OrdersForSeller(ctxWithTimeout, sellerA)
	buyerViews, buyerErr := store.OrdersForBuyer(ctxWithTimeout, buyerID)

	// assert
	assert.NoError(t, sellerErr)
	assert.Len(t, sellerViews, 1)
	assert.Equal(t, result.OrderID, sellerViews[0].ID)
	assert.Len(t, sellerViews[0].Lines, 1)
	assert.Equal(t, productA.ID, sellerViews[0].Lines[0].ProductID)
	assert.Equal(t, sellerA, sellerViews[0].Lines[0].Seller.ID)
	assert.Equal(t, "Ann", sellerViews[0].Buyer.FirstName)

	assert.NoError(t, buyerErr)
	assert.Len(t, buyerViews, 1)
	assert.Len(t, buyerViews[0].Lines, 2)
	assert.Equal(t, productA.ID, buyerViews[0].Lines[0].ProductID, "lines keep snapshot order")
	assert.Equal(t, productB.ID, buyerViews[0].Lines[1].ProductID)
	assert.Equal(t, "Fresno", buyerViews[0].Lines[1].SellerLocation.City)
	assert.Equal(t, result.TransactionID, buyerViews[0].TransactionID)
	assert.Equal(t, buyerViews[0].LinesOwnedBy(sellerA)[0].ID, sellerViews[0].Lines[0].ID)
}

func Test_OrdersForBuyer_When_Seller_Has_No_Default_Address_Keeps_The_Line(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenUser(t, ctxWithTimeout, store, "Homeless")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	_, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 1}})
	assert.NoError(t, err, "error in arranging test data")

	// act
	views, queryErr := store.OrdersForBuyer(ctxWithTimeout, buyerID)

	// assert
	assert.NoError(t, queryErr)
	assert.Len(t, views, 1)
	assert.Len(t, views[0].Lines, 1)
	assert.Nil(t, views[0].Lines[0].SellerLocation)
}

func Test_Orders_When_None_Exist_Return_An_Empty_Slice(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// act
	buyerViews, buyerErr := store.OrdersForBuyer(ctxWithTimeout, uuid.New())
	sellerViews, sellerErr := store.OrdersForSeller(ctxWithTimeout, uuid.New())

	// assert
	assert.NoError(t, buyerErr)
	assert.NoError(t, sellerErr)
	assert.NotNil(t, buyerViews)
	assert.Empty(t, buyerViews)
	assert.NotNil(t, sellerViews)
	assert.Empty(t, sellerViews)
}

func Test_OrdersForBuyer_With_EventualConsistency_Reads_From_The_Replica(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	primary := CreateWrapperWithTestConfig(t)
	defer primary.Close()
	wrapper := CreateWrapperWithReplica(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, primary)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	_, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 1}})
	assert.NoError(t, err, "error in arranging test data")

	// act
	views, queryErr := store.OrdersForBuyer(WithEventualConsistency(ctxWithTimeout), buyerID)

	// assert
	assert.NoError(t, queryErr)
	assert.Len(t, views, 1)
}

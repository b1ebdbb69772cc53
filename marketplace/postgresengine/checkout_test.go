package postgresengine_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_Checkout_Commits_Order_Debits_Stock_And_Clears_Cart(t *testing.T) {
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
	first := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	second := GivenProduct(t, ctxWithTimeout, store, sellerID, "2.50", 3)
	GivenCartItem(t, ctxWithTimeout, store, buyerID, first.ID, 2)
	GivenCartItem(t, ctxWithTimeout, store, buyerID, second.ID, 3)
	cart, err := store.ListCart(ctxWithTimeout, buyerID)
	assert.NoError(t, err, "error in arranging test data")

	// act
	result, err := store.Checkout(ctxWithTimeout, buyerID, CheckoutLinesFrom(cart.Lines))

	// assert
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.OrderID)
	assert.NotEmpty(t, result.TransactionID)
	assert.True(t, decimal.RequireFromString("27.50").Equal(result.Subtotal))
	assert.True(t, result.Subtotal.Equal(result.Total))
	assert.Len(t, result.Lines, 2)
	assert.Equal(t, []uuid.UUID{sellerID}, result.SellerIDs)

	reloadedFirst, _ := store.GetProduct(ctxWithTimeout, first.ID)
	reloadedSecond, _ := store.GetProduct(ctxWithTimeout, second.ID)
	assert.Equal(t, 3, reloadedFirst.Quantity)
	assert.Equal(t, 0, reloadedSecond.Quantity)
	assert.Equal(t, StatusOutOfStock, reloadedSecond.Status)

	assert.Equal(t, 1, CountRows(t, wrapper, "orders", ""))
	assert.Equal(t, 2, CountRows(t, wrapper, "order_lines", ""))
	assert.Equal(t, 0, CountRows(t, wrapper, "cart_items", ""))
}

func Test_Checkout_When_Debit_Of_Second_Line_Fails_Nothing_Is_Committed(t *testing.T) {
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
	first := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	second := GivenProduct(t, ctxWithTimeout, store, sellerID, "2.50", 1)
	GivenCartItem(t, ctxWithTimeout, store, buyerID, first.ID, 2)
	GivenCartItem(t, ctxWithTimeout, store, buyerID, second.ID, 1)
	cart, err := store.ListCart(ctxWithTimeout, buyerID)
	assert.NoError(t, err, "error in arranging test data")
	_, err = store.SetQuantity(ctxWithTimeout, second.ID, 0)
	assert.NoError(t, err, "error in arranging test data")

	// act
	_, err = store.Checkout(ctxWithTimeout, buyerID, CheckoutLinesFrom(cart.Lines))

	// assert
	assert.ErrorIs(t, err, ErrCheckoutFailed)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0, CountRows(t, wrapper, "orders", ""))
	assert.Equal(t, 0, CountRows(t, wrapper, "order_lines", ""))
	assert.Equal(t, 2, CountRows(t, wrapper, "cart_items", ""))

	reloadedFirst, _ := store.GetProduct(ctxWithTimeout, first.ID)
	assert.Equal(t, 5, reloadedFirst.Quantity, "debit of the first line must be rolled back")
}

func Test_Checkout_When_Two_Buyers_Race_For_The_Last_Units_Exactly_One_Wins(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	buyers := []uuid.UUID{
		GivenUser(t, ctxWithTimeout, store, "Ann"),
		GivenUser(t, ctxWithTimeout, store, "Bob"),
	}
	snapshots := make([][]CheckoutLine, 0, len(buyers))
	for _, buyerID := range buyers {
		item := GivenCartItem(t, ctxWithTimeout, store, buyerID, product.ID, 3)
		snapshots = append(snapshots, []CheckoutLine{
			{CartItemID: item.ID, BuyerID: buyerID, ProductID: product.ID, Quantity: 3, UnitPrice: product.Price},
		})
	}

	// act
	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	start := make(chan struct{})

	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = store.Checkout(ctxWithTimeout, buyers[i], snapshots[i])
		}(i)
	}

	close(start)
	wg.Wait()

	// assert
	succeeded, failed := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		failed++
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.ErrorIs(t, err, ErrCheckoutFailed)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	reloaded, err := store.GetProduct(ctxWithTimeout, product.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, reloaded.Quantity)
	assert.Equal(t, 1, CountRows(t, wrapper, "orders", ""))
}

func Test_Checkout_Rejects_Invalid_Snapshots(t *testing.T) {
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
	otherID := GivenUser(t, ctxWithTimeout, store, "Bob")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	removed := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	assert.NoError(t, store.SoftRemove(ctxWithTimeout, removed.ID), "error in arranging test data")

	tests := []struct {
		name        string
		lines       []CheckoutLine
		expectedErr error
	}{
		{
			name:        "empty snapshot",
			lines:       nil,
			expectedErr: ErrEmptyCheckout,
		},
		{
			name:        "line of another buyer",
			lines:       []CheckoutLine{{BuyerID: otherID, ProductID: product.ID, Quantity: 1}},
			expectedErr: ErrUnauthorized,
		},
		{
			name:        "non positive quantity",
			lines:       []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 0}},
			expectedErr: ErrInvalidQuantity,
		},
		{
			name:        "price changed since it was added",
			lines:       []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")}},
			expectedErr: ErrPriceChanged,
		},
		{
			name:        "soft removed product",
			lines:       []CheckoutLine{{BuyerID: buyerID, ProductID: removed.ID, Quantity: 1}},
			expectedErr: ErrNotAvailable,
		},
		{
			name:        "unknown product",
			lines:       []CheckoutLine{{BuyerID: buyerID, ProductID: GivenUniqueID(t), Quantity: 1}},
			expectedErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			_, err := store.Checkout(ctxWithTimeout, buyerID, tt.lines)

			// assert
			assert.ErrorIs(t, err, ErrCheckoutFailed)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}

	assert.Equal(t, 0, CountRows(t, wrapper, "orders", ""))
}

func Test_Checkout_When_Cart_Row_Is_Already_Gone_Logs_A_Warning_And_Commits(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandler := NewLogHandlerSpy(false)
	wrapper := CreateWrapperWithTestConfig(t, WithLogger(slog.New(logHandler)))
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)
	item := GivenCartItem(t, ctxWithTimeout, store, buyerID, product.ID, 1)
	assert.NoError(t, store.RemoveCartItem(ctxWithTimeout, item.ID), "error in arranging test data")
	logHandler.Reset()

	// act
	_, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{
		{CartItemID: item.ID, BuyerID: buyerID, ProductID: product.ID, Quantity: 1},
	})

	// assert
	assert.NoError(t, err)
	assert.True(t, logHandler.HasLogWithAttr(slog.LevelWarn, "cart row already removed during checkout", "cart_item_id", item.ID.String()))
	assert.Equal(t, 1, CountRows(t, wrapper, "orders", ""))
}

package helper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
)

// GivenUniqueID returns a fresh time ordered id.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenUser stores a user with a unique email and returns its id.
func GivenUser(t testing.TB, ctx context.Context, store postgresengine.Store, firstName string) uuid.UUID {
	id := GivenUniqueID(t)

	err := store.CreateUser(ctx, marketplace.NewUser{
		ID:        id,
		FirstName: firstName,
		LastName:  "Tester",
		Email:     id.String() + "@example.com",
	})
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenSeller stores a user that has a default address in the given city.
func GivenSeller(t testing.TB, ctx context.Context, store postgresengine.Store, city string) uuid.UUID {
	sellerID := GivenUser(t, ctx, store, "Seller")
	GivenAddress(t, ctx, store, sellerID, city, true)

	return sellerID
}

// GivenAddress stores an address for ownerID.
func GivenAddress(
	t testing.TB,
	ctx context.Context,
	store postgresengine.Store,
	ownerID uuid.UUID,
	city string,
	isDefault bool,
) marketplace.Address {

	address, err := store.CreateAddress(ctx, ownerID, FixtureAddressFields(city), isDefault)
	assert.NoError(t, err, "error in arranging test data")

	return address
}

// GivenProduct lists a product of sellerID.
func GivenProduct(
	t testing.TB,
	ctx context.Context,
	store postgresengine.Store,
	sellerID uuid.UUID,
	price string,
	quantity int,
) marketplace.Product {

	product, err := store.CreateProduct(ctx, marketplace.NewProduct{
		OwnerID:     sellerID,
		Name:        "Product of " + sellerID.String()[:8],
		Description: "fixture",
		Price:       decimal.RequireFromString(price),
		Quantity:    quantity,
	})
	assert.NoError(t, err, "error in arranging test data")

	return product
}

// GivenCartItem stages quantity units of productID in ownerID's cart.
func GivenCartItem(
	t testing.TB,
	ctx context.Context,
	store postgresengine.Store,
	ownerID uuid.UUID,
	productID uuid.UUID,
	quantity int,
) marketplace.CartItem {

	item, err := store.AddCartItem(ctx, ownerID, productID, quantity)
	assert.NoError(t, err, "error in arranging test data")

	return item
}

// FixtureAddressFields returns address fields located in city.
func FixtureAddressFields(city string) marketplace.AddressFields {
	return marketplace.AddressFields{
		Line:    "1 Main Street",
		City:    city,
		State:   "CA",
		Zipcode: "90001",
	}
}

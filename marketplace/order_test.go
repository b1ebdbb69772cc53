package marketplace

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_LineTotal_And_Subtotal(t *testing.T) {
	lines := []OrderLine{
		{Quantity: 3, LineTotal: LineTotal(decimal.RequireFromString("2.50"), 3)},
		{Quantity: 1, LineTotal: LineTotal(decimal.RequireFromString("10.00"), 1)},
	}

	subtotal := Subtotal(lines)

	assert.True(t, decimal.RequireFromString("17.50").Equal(subtotal))
	assert.True(t, subtotal.Equal(TotalFor(subtotal)), "total must equal subtotal")
}

func Test_ValidateCheckout(t *testing.T) {
	buyerID := uuid.New()
	validLine := CheckoutLine{BuyerID: buyerID, ProductID: uuid.New(), Quantity: 1}

	assert.ErrorIs(t, ValidateCheckout(buyerID, nil), ErrEmptyCheckout)
	assert.NoError(t, ValidateCheckout(buyerID, []CheckoutLine{validLine}))

	foreignLine := validLine
	foreignLine.BuyerID = uuid.New()
	assert.ErrorIs(t, ValidateCheckout(buyerID, []CheckoutLine{validLine, foreignLine}), ErrUnauthorized)

	zeroLine := validLine
	zeroLine.Quantity = 0
	assert.ErrorIs(t, ValidateCheckout(buyerID, []CheckoutLine{zeroLine}), ErrInvalidQuantity)
}

func Test_OrderView_LinesOwnedBy(t *testing.T) {
	sellerA, sellerB := uuid.New(), uuid.New()
	view := OrderView{Lines: []OrderLineView{
		{Seller: Party{ID: sellerA}},
		{Seller: Party{ID: sellerB}},
		{Seller: Party{ID: sellerA}},
	}}

	owned := view.LinesOwnedBy(sellerA)

	assert.Len(t, owned, 2)
	for _, line := range owned {
		assert.Equal(t, sellerA, line.Seller.ID)
	}
}

func Test_CheckoutLinesFrom(t *testing.T) {
	ownerID := uuid.New()
	cartLine := CartLine{
		CartItem:  CartItem{ID: uuid.New(), OwnerID: ownerID, ProductID: uuid.New(), Quantity: 2},
		UnitPrice: decimal.RequireFromString("4.20"),
	}

	lines := CheckoutLinesFrom([]CartLine{cartLine})

	assert.Len(t, lines, 1)
	assert.Equal(t, cartLine.ID, lines[0].CartItemID)
	assert.Equal(t, ownerID, lines[0].BuyerID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, cartLine.UnitPrice.Equal(lines[0].UnitPrice))
}

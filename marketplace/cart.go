package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is a staged line in a buyer's cart. There is at most one per (owner, product).
type CartItem struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CreatedAt time.Time
}

// CartLine is a cart item joined with the current product state and the seller's default location.
type CartLine struct {
	CartItem
	ProductName       string
	UnitPrice         decimal.Decimal
	AvailableQuantity int
	SellerID          uuid.UUID
	SellerLocation    AddressFields
}

// Cart is a buyer's listable cart.
//
// A cart item whose seller currently has no default address cannot be displayed with a
// location, so it is not part of Lines. Its id is reported in Unlistable instead of being dropped.
type Cart struct {
	Lines      []CartLine
	Unlistable []uuid.UUID
}

// CheckoutLinesFrom converts listed cart lines into the snapshot the checkout committer consumes.
func CheckoutLinesFrom(lines []CartLine) []CheckoutLine {
	checkoutLines := make([]CheckoutLine, 0, len(lines))

	for _, line := range lines {
		checkoutLines = append(checkoutLines, CheckoutLine{
			CartItemID: line.ID,
			BuyerID:    line.OwnerID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		})
	}

	return checkoutLines
}

// ValidateCartQuantity checks that a requested cart quantity is positive.
func ValidateCartQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	return nil
}

package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutLine is one entry of the cart snapshot handed to the checkout committer.
//
// UnitPrice is the price the buyer saw. When it is non-zero, the commit fails with
// ErrPriceChanged if the product's current price differs. The line total is always
// computed from the price read inside the commit.
type CheckoutLine struct {
	CartItemID uuid.UUID
	BuyerID    uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Order is immutable once committed.
type Order struct {
	ID            uuid.UUID
	BuyerID       uuid.UUID
	TransactionID string
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// OrderLine captures quantity and price of one product at commit time.
type OrderLine struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// CheckoutResult is returned by a successful commit. OrderID is the authoritative result.
type CheckoutResult struct {
	OrderID       uuid.UUID
	TransactionID string
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	Lines         []OrderLine
	SellerIDs     []uuid.UUID
}

// LineTotal computes unit price x quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Subtotal sums the line totals.
func Subtotal(lines []OrderLine) decimal.Decimal {
	subtotal := decimal.Zero

	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}

	return subtotal
}

// TotalFor returns the order total for a subtotal. Tax and shipping are not computed.
func TotalFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal
}

// ValidateCheckout checks the snapshot before any write happens.
func ValidateCheckout(buyerID uuid.UUID, lines []CheckoutLine) error {
	if len(lines) == 0 {
		return ErrEmptyCheckout
	}

	for _, line := range lines {
		if line.BuyerID != buyerID {
			return ErrUnauthorized
		}

		if line.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}

	return nil
}

// Party holds the identity fields shown for a buyer or seller.
type Party struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
}

// OrderLineView is an order line decorated with product and seller data.
// SellerLocation is nil when the seller has no default address.
type OrderLineView struct {
	OrderLine
	ProductName    string
	Seller         Party
	SellerLocation *AddressFields
}

// OrderView is an order as shown to a buyer or a seller.
type OrderView struct {
	Order
	Buyer Party
	Lines []OrderLineView
}

// LinesOwnedBy returns the subset of lines whose product belongs to sellerID.
func (v OrderView) LinesOwnedBy(sellerID uuid.UUID) []OrderLineView {
	owned := make([]OrderLineView, 0, len(v.Lines))

	for _, line := range v.Lines {
		if line.Seller.ID == sellerID {
			owned = append(owned, line)
		}
	}

	return owned
}

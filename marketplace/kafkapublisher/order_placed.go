package kafkapublisher

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

// OrderPlacedEventType is the value of the event type header for OrderPlaced messages.
const OrderPlacedEventType = "OrderPlaced"

// OrderPlaced is the payload published for a committed checkout.
type OrderPlaced struct {
	OrderID       uuid.UUID         `json:"orderId"`
	BuyerID       uuid.UUID         `json:"buyerId"`
	TransactionID string            `json:"transactionId"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Total         decimal.Decimal   `json:"total"`
	SellerIDs     []uuid.UUID       `json:"sellerIds"`
	Lines         []OrderPlacedLine `json:"lines"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// OrderPlacedLine is one order line of an OrderPlaced payload.
type OrderPlacedLine struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// OrderPlacedFrom builds the payload from a checkout result.
func OrderPlacedFrom(buyerID uuid.UUID, result marketplace.CheckoutResult, occurredAt time.Time) OrderPlaced {
	lines := make([]OrderPlacedLine, 0, len(result.Lines))
	for _, line := range result.Lines {
		lines = append(lines, OrderPlacedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}

	return OrderPlaced{
		OrderID:       result.OrderID,
		BuyerID:       buyerID,
		TransactionID: result.TransactionID,
		Subtotal:      result.Subtotal,
		Total:         result.Total,
		SellerIDs:     result.SellerIDs,
		Lines:         lines,
		OccurredAt:    occurredAt.UTC(),
	}
}

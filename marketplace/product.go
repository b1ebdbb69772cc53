package marketplace

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is derived from a product's quantity and never set on its own.
type ProductStatus string

const (
	StatusAvailable  ProductStatus = "available"
	StatusOutOfStock ProductStatus = "out_of_stock"
)

// StatusFor returns the status a product with the given quantity must have.
func StatusFor(quantity int) ProductStatus {
	if quantity == 0 {
		return StatusOutOfStock
	}

	return StatusAvailable
}

// Product is an entry of the inventory ledger.
type Product struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Active      bool
	Status      ProductStatus
	Photos      []string
}

// HasQuantity reports whether the product currently holds at least requested units.
func (p Product) HasQuantity(requested int) bool {
	return p.Quantity >= requested
}

// NewProduct carries what a seller supplies when listing a product.
type NewProduct struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
}

// Validate checks the business rules for a new listing.
func (np NewProduct) Validate() error {
	if np.Quantity < 0 {
		return ErrInvalidQuantity
	}

	if np.Price.IsNegative() {
		return ErrInvalidQuantity
	}

	return nil
}

package marketplace

import "errors"

// Business errors. Engines join them with the underlying cause, so callers should match with errors.Is.
var (
	ErrNotFound          = errors.New("referenced entity not found")
	ErrInvalidState      = errors.New("operation violates a lifecycle or default address invariant")
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	ErrNotAvailable      = errors.New("product is no longer available")
	ErrUnauthorized      = errors.New("actor does not own the resource")
	ErrCheckoutFailed    = errors.New("checkout failed")
	ErrConflict          = errors.New("product has been sold and cannot be deleted")
	ErrInvalidQuantity   = errors.New("quantity is out of range")
	ErrEmptyCheckout     = errors.New("checkout requires at least one line")
	ErrPriceChanged      = errors.New("product price changed since it was added to the cart")
	ErrMustKeepDefault   = errors.New("must keep one default address")
	ErrAlreadyExists     = errors.New("entity already exists")
)

// Infrastructure errors.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrTransactionConflict   = errors.New("transaction conflict, the operation can be retried")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingFailed        = errors.New("querying failed")
	ErrExecFailed            = errors.New("executing statement failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrBeginTxFailed         = errors.New("beginning transaction failed")
	ErrCommitTxFailed        = errors.New("committing transaction failed")
)

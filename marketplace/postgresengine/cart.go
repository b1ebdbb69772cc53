package postgresengine

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine/internal/adapters"
)

const (
	colCreatedAt  = "created_at"
	aliasCart     = "ci"
	aliasProduct  = "p"
	aliasAddress  = "a"
	lockScopeCart = "cart"
)

func cartItemColumns() []any {
	return []any{colID, colOwnerID, colProductID, colQuantity, colCreatedAt}
}

func scanCartItem(rows adapters.DBRows) (marketplace.CartItem, error) {
	var item marketplace.CartItem

	err := rows.Scan(&item.ID, &item.OwnerID, &item.ProductID, &item.Quantity, &item.CreatedAt)

	return item, err
}

// AddCartItem stages quantity units of a product in the owner's cart.
// If the owner already has a row for the product, the quantities are summed and the sum is
// validated like an update. On any rejection the existing row stays unchanged.
//
// Adds of one owner are serialized, so concurrent first adds of a product merge into one row.
// The product row is share locked: a concurrent SoftRemove either waits for the add and then
// clears the new row, or commits first and the add fails with ErrNotAvailable.
func (s Store) AddCartItem(
	ctx context.Context,
	ownerID uuid.UUID,
	productID uuid.UUID,
	quantity int,
) (marketplace.CartItem, error) {

	ctx, observer := s.startOperation(ctx, opAddCartItem, nil)

	if err := marketplace.ValidateCartQuantity(quantity); err != nil {
		return marketplace.CartItem{}, observer.finish(ctx, err)
	}

	var item marketplace.CartItem
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		if txErr := s.lockOwner(ctx, tx, lockScopeCart, ownerID.String()); txErr != nil {
			return txErr
		}

		product, txErr := s.shareLockProduct(ctx, tx, productID)
		if txErr != nil {
			return txErr
		}

		if !product.Active {
			return marketplace.ErrNotAvailable
		}

		existing, found, txErr := s.findCartItem(ctx, tx,
			goqu.C(colOwnerID).Eq(ownerID.String()),
			goqu.C(colProductID).Eq(productID.String()),
		)
		if txErr != nil {
			return txErr
		}

		if found {
			item, txErr = s.updateCartItemQuantity(ctx, tx, existing, product, existing.Quantity+quantity)
			return txErr
		}

		if !product.HasQuantity(quantity) {
			return marketplace.ErrInsufficientStock
		}

		item, txErr = s.insertCartItem(ctx, tx, ownerID, productID, quantity)

		return txErr
	})

	return item, observer.finish(ctx, err)
}

// UpdateCartItemQuantity replaces the quantity of a cart row after revalidating stock.
// The product is share locked before the cart row, the same order checkout takes its locks in.
func (s Store) UpdateCartItemQuantity(
	ctx context.Context,
	cartItemID uuid.UUID,
	quantity int,
) (marketplace.CartItem, error) {

	ctx, observer := s.startOperation(ctx, opUpdateCartItem, nil)

	if err := marketplace.ValidateCartQuantity(quantity); err != nil {
		return marketplace.CartItem{}, observer.finish(ctx, err)
	}

	var item marketplace.CartItem
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		current, txErr := s.getCartItem(ctx, tx, cartItemID)
		if txErr != nil {
			return txErr
		}

		product, txErr := s.shareLockProduct(ctx, tx, current.ProductID)
		if txErr != nil {
			return txErr
		}

		if !product.Active {
			return marketplace.ErrNotAvailable
		}

		existing, found, txErr := s.findCartItem(ctx, tx, goqu.C(colID).Eq(cartItemID.String()))
		if txErr != nil {
			return txErr
		}

		if !found {
			return marketplace.ErrNotFound
		}

		item, txErr = s.updateCartItemQuantity(ctx, tx, existing, product, quantity)

		return txErr
	})

	return item, observer.finish(ctx, err)
}

// RemoveCartItem deletes one cart row. Removing a missing row is not an error.
func (s Store) RemoveCartItem(ctx context.Context, cartItemID uuid.UUID) error {
	ctx, observer := s.startOperation(ctx, opRemoveCartItem, nil)

	_, err := s.exec(ctx, s.db, builder().Delete(tableCartItems).Where(goqu.C(colID).Eq(cartItemID.String())))

	return observer.finish(ctx, err)
}

// RemoveAllCartItemsForProduct deletes the product from every cart.
func (s Store) RemoveAllCartItemsForProduct(ctx context.Context, productID uuid.UUID) error {
	ctx, observer := s.startOperation(ctx, opRemoveCartForProduct, nil)

	_, err := s.exec(ctx, s.db, deleteCartItemsForProduct(productID))

	return observer.finish(ctx, err)
}

// GetCartItem returns one cart row. The ownership handlers use it to check the actor.
func (s Store) GetCartItem(ctx context.Context, cartItemID uuid.UUID) (marketplace.CartItem, error) {
	ctx, observer := s.startOperation(ctx, opGetCartItem, nil)

	item, err := s.getCartItem(ctx, s.db, cartItemID)

	return item, observer.finish(ctx, err)
}

func (s Store) getCartItem(ctx context.Context, q adapters.Querier, cartItemID uuid.UUID) (marketplace.CartItem, error) {
	stmt := builder().From(tableCartItems).
		Select(cartItemColumns()...).
		Where(goqu.C(colID).Eq(cartItemID.String()))

	var item marketplace.CartItem
	found := false

	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		var scanErr error
		item, scanErr = scanCartItem(rows)
		found = scanErr == nil

		return scanErr
	})
	if err != nil {
		return marketplace.CartItem{}, err
	}

	if !found {
		return marketplace.CartItem{}, marketplace.ErrNotFound
	}

	return item, nil
}

// ListCart returns the owner's cart in the order items were added, joined with the current product
// state and the seller's default address. Items whose seller has no default address are reported
// in Cart.Unlistable.
func (s Store) ListCart(ctx context.Context, ownerID uuid.UUID) (marketplace.Cart, error) {
	ctx, observer := s.startOperation(ctx, opListCart, nil)

	stmt := builder().
		From(goqu.T(tableCartItems).As(aliasCart)).
		Join(
			goqu.T(tableProducts).As(aliasProduct),
			goqu.On(goqu.T(aliasProduct).Col(colID).Eq(goqu.T(aliasCart).Col(colProductID))),
		).
		LeftJoin(
			goqu.T(tableAddresses).As(aliasAddress),
			goqu.On(
				goqu.T(aliasAddress).Col(colOwnerID).Eq(goqu.T(aliasProduct).Col(colOwnerID)),
				goqu.T(aliasAddress).Col(colIsDefault).IsTrue(),
			),
		).
		Select(
			goqu.T(aliasCart).Col(colID),
			goqu.T(aliasCart).Col(colOwnerID),
			goqu.T(aliasCart).Col(colProductID),
			goqu.T(aliasCart).Col(colQuantity),
			goqu.T(aliasCart).Col(colCreatedAt),
			goqu.T(aliasProduct).Col(colName),
			goqu.T(aliasProduct).Col(colPrice),
			goqu.T(aliasProduct).Col(colQuantity),
			goqu.T(aliasProduct).Col(colOwnerID),
			goqu.T(aliasAddress).Col(colLine),
			goqu.T(aliasAddress).Col(colCity),
			goqu.T(aliasAddress).Col(colState),
			goqu.T(aliasAddress).Col(colZipcode),
		).
		Where(goqu.T(aliasCart).Col(colOwnerID).Eq(ownerID.String())).
		Order(goqu.T(aliasCart).Col(colCreatedAt).Asc(), goqu.T(aliasCart).Col(colID).Asc())

	cart := marketplace.Cart{Lines: make([]marketplace.CartLine, 0), Unlistable: make([]uuid.UUID, 0)}

	err := s.query(ctx, s.db, stmt, func(rows adapters.DBRows) error {
		var line marketplace.CartLine
		var addrLine, city, state, zipcode sql.NullString

		scanErr := rows.Scan(
			&line.ID, &line.OwnerID, &line.ProductID, &line.Quantity, &line.CreatedAt,
			&line.ProductName, &line.UnitPrice, &line.AvailableQuantity, &line.SellerID,
			&addrLine, &city, &state, &zipcode,
		)
		if scanErr != nil {
			return scanErr
		}

		if !addrLine.Valid {
			cart.Unlistable = append(cart.Unlistable, line.ID)
			return nil
		}

		line.SellerLocation = marketplace.AddressFields{
			Line:    addrLine.String,
			City:    city.String,
			State:   state.String,
			Zipcode: zipcode.String,
		}
		cart.Lines = append(cart.Lines, line)

		return nil
	})
	if err != nil {
		return marketplace.Cart{}, observer.finish(ctx, err)
	}

	return cart, observer.finish(ctx, nil)
}

// findCartItem selects at most one cart row FOR UPDATE.
func (s Store) findCartItem(
	ctx context.Context,
	tx adapters.DBTx,
	where ...exp.Expression,
) (marketplace.CartItem, bool, error) {

	stmt := builder().From(tableCartItems).
		Select(cartItemColumns()...).
		Where(where...).
		ForUpdate(exp.Wait)

	var item marketplace.CartItem
	found := false

	err := s.query(ctx, tx, stmt, func(rows adapters.DBRows) error {
		var scanErr error
		item, scanErr = scanCartItem(rows)
		found = scanErr == nil

		return scanErr
	})

	return item, found, err
}

func (s Store) updateCartItemQuantity(
	ctx context.Context,
	tx adapters.DBTx,
	item marketplace.CartItem,
	product marketplace.Product,
	quantity int,
) (marketplace.CartItem, error) {

	if !product.HasQuantity(quantity) {
		return marketplace.CartItem{}, marketplace.ErrInsufficientStock
	}

	stmt := builder().Update(tableCartItems).
		Set(goqu.Record{colQuantity: quantity}).
		Where(goqu.C(colID).Eq(item.ID.String()))

	if _, err := s.exec(ctx, tx, stmt); err != nil {
		return marketplace.CartItem{}, err
	}

	item.Quantity = quantity

	return item, nil
}

func (s Store) insertCartItem(
	ctx context.Context,
	tx adapters.DBTx,
	ownerID uuid.UUID,
	productID uuid.UUID,
	quantity int,
) (marketplace.CartItem, error) {

	id, err := uuid.NewV7()
	if err != nil {
		return marketplace.CartItem{}, err
	}

	stmt := builder().Insert(tableCartItems).Rows(goqu.Record{
		colID:        id.String(),
		colOwnerID:   ownerID.String(),
		colProductID: productID.String(),
		colQuantity:  quantity,
	}).Returning(cartItemColumns()...)

	var item marketplace.CartItem
	err = s.query(ctx, tx, stmt, func(rows adapters.DBRows) error {
		var scanErr error
		item, scanErr = scanCartItem(rows)

		return scanErr
	})

	return item, err
}

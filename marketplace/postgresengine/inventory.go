package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine/internal/adapters"
)

const (
	colID          = "id"
	colOwnerID     = "owner_id"
	colProductID   = "product_id"
	colName        = "name"
	colDescription = "description"
	colPrice       = "price"
	colQuantity    = "quantity"
	colActive      = "active"
	colStatus      = "status"
	colPhotoKey    = "photo_key"
	colAddedAt     = "added_at"
)

func productColumns() []any {
	return []any{colID, colOwnerID, colName, colDescription, colPrice, colQuantity, colActive, colStatus}
}

func scanProduct(rows adapters.DBRows) (marketplace.Product, error) {
	var p marketplace.Product
	var status string

	if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Active, &status); err != nil {
		return marketplace.Product{}, err
	}

	p.Status = marketplace.ProductStatus(status)

	return p, nil
}

// queryOneProduct runs stmt, which must select or return productColumns, and expects exactly one row.
func (s Store) queryOneProduct(ctx context.Context, q adapters.Querier, stmt sqlStatement) (marketplace.Product, error) {
	var product marketplace.Product
	found := false

	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		p, scanErr := scanProduct(rows)
		if scanErr != nil {
			return scanErr
		}

		product = p
		found = true

		return nil
	})
	if err != nil {
		return marketplace.Product{}, err
	}

	if !found {
		return marketplace.Product{}, marketplace.ErrNotFound
	}

	return product, nil
}

// CreateProduct lists a new product. Its status is derived from the quantity by the database.
func (s Store) CreateProduct(ctx context.Context, np marketplace.NewProduct) (marketplace.Product, error) {
	ctx, observer := s.startOperation(ctx, opCreateProduct, nil)

	if err := np.Validate(); err != nil {
		return marketplace.Product{}, observer.finish(ctx, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return marketplace.Product{}, observer.finish(ctx, err)
	}

	stmt := builder().Insert(tableProducts).Rows(goqu.Record{
		colID:          id.String(),
		colOwnerID:     np.OwnerID.String(),
		colName:        np.Name,
		colDescription: np.Description,
		colPrice:       np.Price.String(),
		colQuantity:    np.Quantity,
	}).Returning(productColumns()...)

	var product marketplace.Product
	err = s.withTx(ctx, func(tx adapters.DBTx) error {
		var txErr error
		product, txErr = s.queryOneProduct(ctx, tx, stmt)
		return txErr
	})

	return product, observer.finish(ctx, err)
}

// GetProduct returns the product with its photo identifiers.
func (s Store) GetProduct(ctx context.Context, productID uuid.UUID) (marketplace.Product, error) {
	ctx, observer := s.startOperation(ctx, opGetProduct, nil)

	product, err := s.getProduct(ctx, s.db, productID)
	if err != nil {
		return marketplace.Product{}, observer.finish(ctx, err)
	}

	product.Photos, err = s.listPhotos(ctx, s.db, productID)

	return product, observer.finish(ctx, err)
}

func (s Store) getProduct(ctx context.Context, q adapters.Querier, productID uuid.UUID) (marketplace.Product, error) {
	stmt := builder().From(tableProducts).
		Select(productColumns()...).
		Where(goqu.C(colID).Eq(productID.String()))

	return s.queryOneProduct(ctx, q, stmt)
}

// shareLockProduct selects the product FOR SHARE. Writers of the product row, such as SoftRemove,
// wait for the transaction to end, and a product deactivated in the meantime is seen as inactive.
func (s Store) shareLockProduct(ctx context.Context, tx adapters.DBTx, productID uuid.UUID) (marketplace.Product, error) {
	stmt := builder().From(tableProducts).
		Select(productColumns()...).
		Where(goqu.C(colID).Eq(productID.String())).
		ForShare(exp.Wait)

	return s.queryOneProduct(ctx, tx, stmt)
}

// lockProducts selects the given products FOR UPDATE in ascending id order, which keeps
// concurrent lockers from deadlocking each other. Missing products are absent from the result.
func (s Store) lockProducts(
	ctx context.Context,
	tx adapters.DBTx,
	productIDs []uuid.UUID,
) (map[uuid.UUID]marketplace.Product, error) {

	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, id.String())
	}

	stmt := builder().From(tableProducts).
		Select(productColumns()...).
		Where(goqu.C(colID).In(ids)).
		Order(goqu.C(colID).Asc()).
		ForUpdate(exp.Wait)

	products := make(map[uuid.UUID]marketplace.Product, len(productIDs))
	err := s.query(ctx, tx, stmt, func(rows adapters.DBRows) error {
		p, scanErr := scanProduct(rows)
		if scanErr != nil {
			return scanErr
		}

		products[p.ID] = p

		return nil
	})

	return products, err
}

// SetQuantity replaces the stock level. The status follows the new quantity.
func (s Store) SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) (marketplace.Product, error) {
	ctx, observer := s.startOperation(ctx, opSetQuantity, nil)

	if quantity < 0 {
		return marketplace.Product{}, observer.finish(ctx, marketplace.ErrInvalidQuantity)
	}

	stmt := builder().Update(tableProducts).
		Set(goqu.Record{colQuantity: quantity}).
		Where(goqu.C(colID).Eq(productID.String())).
		Returning(productColumns()...)

	var product marketplace.Product
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		var txErr error
		product, txErr = s.queryOneProduct(ctx, tx, stmt)
		return txErr
	})

	return product, observer.finish(ctx, err)
}

// SetPrice changes the price used by future checkouts. Committed order lines keep their price.
func (s Store) SetPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) (marketplace.Product, error) {
	ctx, observer := s.startOperation(ctx, opSetPrice, nil)

	if price.IsNegative() {
		return marketplace.Product{}, observer.finish(ctx, marketplace.ErrInvalidQuantity)
	}

	stmt := builder().Update(tableProducts).
		Set(goqu.Record{colPrice: price.String()}).
		Where(goqu.C(colID).Eq(productID.String())).
		Returning(productColumns()...)

	var product marketplace.Product
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		var txErr error
		product, txErr = s.queryOneProduct(ctx, tx, stmt)
		return txErr
	})

	return product, observer.finish(ctx, err)
}

// HasQuantity reports whether the product currently holds at least quantity units.
// It is a gate only and reserves nothing.
func (s Store) HasQuantity(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	ctx, observer := s.startOperation(ctx, opHasQuantity, nil)

	product, err := s.getProduct(ctx, s.db, productID)
	if err != nil {
		return false, observer.finish(ctx, err)
	}

	return product.HasQuantity(quantity), observer.finish(ctx, nil)
}

// IsActive reports whether the product has not been soft removed.
func (s Store) IsActive(ctx context.Context, productID uuid.UUID) (bool, error) {
	ctx, observer := s.startOperation(ctx, opIsActive, nil)

	product, err := s.getProduct(ctx, s.db, productID)
	if err != nil {
		return false, observer.finish(ctx, err)
	}

	return product.Active, observer.finish(ctx, nil)
}

// SoftRemove deactivates the product and removes it from every cart, in one transaction.
func (s Store) SoftRemove(ctx context.Context, productID uuid.UUID) error {
	ctx, observer := s.startOperation(ctx, opSoftRemove, nil)

	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		deactivate := builder().Update(tableProducts).
			Set(goqu.Record{colActive: false}).
			Where(goqu.C(colID).Eq(productID.String()))

		rowsAffected, err := s.exec(ctx, tx, deactivate)
		if err != nil {
			return err
		}

		if rowsAffected == 0 {
			return marketplace.ErrNotFound
		}

		_, err = s.exec(ctx, tx, deleteCartItemsForProduct(productID))

		return err
	})

	return observer.finish(ctx, err)
}

// HardRemove deletes a product that was never sold, together with its cart rows and photo ids.
// A product that appears in any order line can only be soft removed.
func (s Store) HardRemove(ctx context.Context, productID uuid.UUID) error {
	ctx, observer := s.startOperation(ctx, opHardRemove, nil)

	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		locked, err := s.lockProducts(ctx, tx, []uuid.UUID{productID})
		if err != nil {
			return err
		}

		if _, ok := locked[productID]; !ok {
			return marketplace.ErrNotFound
		}

		sold, err := s.hasEverBeenSold(ctx, tx, productID)
		if err != nil {
			return err
		}

		if sold {
			return marketplace.ErrConflict
		}

		_, err = s.exec(ctx, tx, builder().Delete(tableProducts).Where(goqu.C(colID).Eq(productID.String())))

		return err
	})

	return observer.finish(ctx, err)
}

// HasEverBeenSold reports whether any order line references the product.
func (s Store) HasEverBeenSold(ctx context.Context, productID uuid.UUID) (bool, error) {
	ctx, observer := s.startOperation(ctx, opHasEverBeenSold, nil)

	sold, err := s.hasEverBeenSold(ctx, s.db, productID)

	return sold, observer.finish(ctx, err)
}

func (s Store) hasEverBeenSold(ctx context.Context, q adapters.Querier, productID uuid.UUID) (bool, error) {
	stmt := builder().From(tableOrderLines).
		Select(goqu.COUNT("*")).
		Where(goqu.C(colProductID).Eq(productID.String()))

	var count int64
	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&count)
	})

	return count > 0, err
}

// AddPhoto attaches an image store identifier to the product. Adding the same key twice is a no-op.
func (s Store) AddPhoto(ctx context.Context, productID uuid.UUID, photoKey string) error {
	ctx, observer := s.startOperation(ctx, opAddPhoto, nil)

	stmt := builder().Insert(tablePhotos).
		Rows(goqu.Record{colProductID: productID.String(), colPhotoKey: photoKey}).
		OnConflict(goqu.DoNothing())

	_, err := s.exec(ctx, s.db, stmt)

	return observer.finish(ctx, err)
}

// RemovePhoto detaches an image store identifier. Removing an unknown key is a no-op.
func (s Store) RemovePhoto(ctx context.Context, productID uuid.UUID, photoKey string) error {
	ctx, observer := s.startOperation(ctx, opRemovePhoto, nil)

	stmt := builder().Delete(tablePhotos).Where(
		goqu.C(colProductID).Eq(productID.String()),
		goqu.C(colPhotoKey).Eq(photoKey),
	)

	_, err := s.exec(ctx, s.db, stmt)

	return observer.finish(ctx, err)
}

// ListPhotos returns the product's image store identifiers in the order they were added.
func (s Store) ListPhotos(ctx context.Context, productID uuid.UUID) ([]string, error) {
	ctx, observer := s.startOperation(ctx, opListPhotos, nil)

	photos, err := s.listPhotos(ctx, s.db, productID)

	return photos, observer.finish(ctx, err)
}

func (s Store) listPhotos(ctx context.Context, q adapters.Querier, productID uuid.UUID) ([]string, error) {
	stmt := builder().From(tablePhotos).
		Select(colPhotoKey).
		Where(goqu.C(colProductID).Eq(productID.String())).
		Order(goqu.C(colAddedAt).Asc(), goqu.C(colPhotoKey).Asc())

	photos := make([]string, 0)
	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		var key string
		if scanErr := rows.Scan(&key); scanErr != nil {
			return scanErr
		}

		photos = append(photos, key)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return photos, nil
}

func deleteCartItemsForProduct(productID uuid.UUID) sqlStatement {
	return builder().Delete(tableCartItems).Where(goqu.C(colProductID).Eq(productID.String()))
}

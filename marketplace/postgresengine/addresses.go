package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine/internal/adapters"
)

const (
	colLine       = "line"
	colCity       = "city"
	colState      = "state"
	colZipcode    = "zipcode"
	colIsDefault  = "is_default"
	lockScopeAddr = "addresses"
)

func addressColumns() []any {
	return []any{colID, colOwnerID, colLine, colCity, colState, colZipcode, colIsDefault}
}

func scanAddress(rows adapters.DBRows) (marketplace.Address, error) {
	var a marketplace.Address

	err := rows.Scan(&a.ID, &a.OwnerID, &a.Line, &a.City, &a.State, &a.Zipcode, &a.IsDefault)

	return a, err
}

// CreateAddress adds an address for ownerID. The owner's first address always becomes the default.
// When the new address is the default, the previous default is demoted in the same transaction.
func (s Store) CreateAddress(
	ctx context.Context,
	ownerID uuid.UUID,
	fields marketplace.AddressFields,
	isDefault bool,
) (marketplace.Address, error) {

	ctx, observer := s.startOperation(ctx, opCreateAddress, nil)

	id, err := uuid.NewV7()
	if err != nil {
		return marketplace.Address{}, observer.finish(ctx, err)
	}

	address := marketplace.Address{ID: id, OwnerID: ownerID, IsDefault: isDefault, AddressFields: fields}

	err = s.withTx(ctx, func(tx adapters.DBTx) error {
		if lockErr := s.lockOwner(ctx, tx, lockScopeAddr, ownerID.String()); lockErr != nil {
			return lockErr
		}

		existing, listErr := s.listAddresses(ctx, tx, ownerID)
		if listErr != nil {
			return listErr
		}

		if len(existing) == 0 {
			address.IsDefault = true
		}

		if address.IsDefault {
			if demoteErr := s.demoteDefault(ctx, tx, ownerID); demoteErr != nil {
				return demoteErr
			}
		}

		stmt := builder().Insert(tableAddresses).Rows(goqu.Record{
			colID:        address.ID.String(),
			colOwnerID:   ownerID.String(),
			colLine:      fields.Line,
			colCity:      fields.City,
			colState:     fields.State,
			colZipcode:   fields.Zipcode,
			colIsDefault: address.IsDefault,
		})

		_, insertErr := s.exec(ctx, tx, stmt)

		return insertErr
	})
	if err != nil {
		return marketplace.Address{}, observer.finish(ctx, err)
	}

	return address, observer.finish(ctx, nil)
}

// SetDefaultAddress makes the address its owner's only default.
func (s Store) SetDefaultAddress(ctx context.Context, addressID uuid.UUID) (marketplace.Address, error) {
	ctx, observer := s.startOperation(ctx, opSetDefaultAddress, nil)

	var address marketplace.Address
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		var txErr error
		address, txErr = s.lockAddressOwner(ctx, tx, addressID)
		if txErr != nil {
			return txErr
		}

		if address.IsDefault {
			return nil
		}

		if txErr = s.demoteDefault(ctx, tx, address.OwnerID); txErr != nil {
			return txErr
		}

		address.IsDefault = true

		return s.promote(ctx, tx, addressID)
	})

	return address, observer.finish(ctx, err)
}

// UpdateAddress applies a partial update. Clearing the default flag of the owner's current default
// is rejected, because it would leave the owner without one. Setting it demotes the previous default.
func (s Store) UpdateAddress(
	ctx context.Context,
	addressID uuid.UUID,
	patch marketplace.AddressPatch,
) (marketplace.Address, error) {

	ctx, observer := s.startOperation(ctx, opUpdateAddress, nil)

	var updated marketplace.Address
	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		current, txErr := s.lockAddressOwner(ctx, tx, addressID)
		if txErr != nil {
			return txErr
		}

		if txErr = marketplace.CheckDefaultTransition(current, patch); txErr != nil {
			return errors.Join(marketplace.ErrInvalidState, txErr)
		}

		updated = patch.Apply(current)

		if updated.IsDefault && !current.IsDefault {
			if txErr = s.demoteDefault(ctx, tx, current.OwnerID); txErr != nil {
				return txErr
			}
		}

		stmt := builder().Update(tableAddresses).
			Set(goqu.Record{
				colLine:      updated.Line,
				colCity:      updated.City,
				colState:     updated.State,
				colZipcode:   updated.Zipcode,
				colIsDefault: updated.IsDefault,
			}).
			Where(goqu.C(colID).Eq(addressID.String()))

		_, txErr = s.exec(ctx, tx, stmt)

		return txErr
	})
	if err != nil {
		return marketplace.Address{}, observer.finish(ctx, err)
	}

	return updated, observer.finish(ctx, nil)
}

// RemoveAddress deletes a non-default address. Removing the default is rejected with ErrInvalidState.
func (s Store) RemoveAddress(ctx context.Context, addressID uuid.UUID) error {
	ctx, observer := s.startOperation(ctx, opRemoveAddress, nil)

	err := s.withTx(ctx, func(tx adapters.DBTx) error {
		current, txErr := s.lockAddressOwner(ctx, tx, addressID)
		if txErr != nil {
			return txErr
		}

		if txErr = marketplace.CheckRemovable(current); txErr != nil {
			return errors.Join(marketplace.ErrInvalidState, txErr)
		}

		_, txErr = s.exec(ctx, tx, builder().Delete(tableAddresses).Where(goqu.C(colID).Eq(addressID.String())))

		return txErr
	})

	return observer.finish(ctx, err)
}

// GetAddress returns one address.
func (s Store) GetAddress(ctx context.Context, addressID uuid.UUID) (marketplace.Address, error) {
	ctx, observer := s.startOperation(ctx, opGetAddress, nil)

	address, err := s.getAddress(ctx, s.db, addressID)

	return address, observer.finish(ctx, err)
}

// ListAddresses returns the owner's addresses, the default first.
func (s Store) ListAddresses(ctx context.Context, ownerID uuid.UUID) ([]marketplace.Address, error) {
	ctx, observer := s.startOperation(ctx, opListAddresses, nil)

	addresses, err := s.listAddresses(ctx, s.db, ownerID)

	return addresses, observer.finish(ctx, err)
}

func (s Store) getAddress(ctx context.Context, q adapters.Querier, addressID uuid.UUID) (marketplace.Address, error) {
	stmt := builder().From(tableAddresses).
		Select(addressColumns()...).
		Where(goqu.C(colID).Eq(addressID.String()))

	var address marketplace.Address
	found := false

	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		a, scanErr := scanAddress(rows)
		if scanErr != nil {
			return scanErr
		}

		address = a
		found = true

		return nil
	})
	if err != nil {
		return marketplace.Address{}, err
	}

	if !found {
		return marketplace.Address{}, marketplace.ErrNotFound
	}

	return address, nil
}

func (s Store) listAddresses(ctx context.Context, q adapters.Querier, ownerID uuid.UUID) ([]marketplace.Address, error) {
	stmt := builder().From(tableAddresses).
		Select(addressColumns()...).
		Where(goqu.C(colOwnerID).Eq(ownerID.String())).
		Order(goqu.C(colIsDefault).Desc(), goqu.C(colID).Asc())

	addresses := make([]marketplace.Address, 0)
	err := s.query(ctx, q, stmt, func(rows adapters.DBRows) error {
		a, scanErr := scanAddress(rows)
		if scanErr != nil {
			return scanErr
		}

		addresses = append(addresses, a)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return addresses, nil
}

// lockAddressOwner takes the owner's advisory lock and returns the address as seen after locking.
func (s Store) lockAddressOwner(ctx context.Context, tx adapters.DBTx, addressID uuid.UUID) (marketplace.Address, error) {
	address, err := s.getAddress(ctx, tx, addressID)
	if err != nil {
		return marketplace.Address{}, err
	}

	if err = s.lockOwner(ctx, tx, lockScopeAddr, address.OwnerID.String()); err != nil {
		return marketplace.Address{}, err
	}

	// re-read, a concurrent writer may have changed the flag before we got the lock
	return s.getAddress(ctx, tx, addressID)
}

// demoteDefault clears the owner's default. It must run before the promoting statement,
// because the partial unique index is checked row by row.
func (s Store) demoteDefault(ctx context.Context, tx adapters.DBTx, ownerID uuid.UUID) error {
	stmt := builder().Update(tableAddresses).
		Set(goqu.Record{colIsDefault: false}).
		Where(
			goqu.C(colOwnerID).Eq(ownerID.String()),
			goqu.C(colIsDefault).IsTrue(),
		)

	_, err := s.exec(ctx, tx, stmt)

	return err
}

func (s Store) promote(ctx context.Context, tx adapters.DBTx, addressID uuid.UUID) error {
	stmt := builder().Update(tableAddresses).
		Set(goqu.Record{colIsDefault: true}).
		Where(goqu.C(colID).Eq(addressID.String()))

	rowsAffected, err := s.exec(ctx, tx, stmt)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return marketplace.ErrNotFound
	}

	return nil
}

package postgresengine

import (
	"context"
	"errors"
	"strconv"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine/internal/adapters"
)

const (
	colBuyerID       = "buyer_id"
	colTransactionID = "transaction_id"
	colSubtotal      = "subtotal"
	colTotal         = "total"
	colOrderID       = "order_id"
	colUnitPrice     = "unit_price"
	colLineTotal     = "line_total"
	colPosition      = "position"
)

// Checkout converts a cart snapshot into an order.
//
// Everything happens in one transaction: the order row, one order line per snapshot line with the
// price read under the row lock, a conditional stock debit per line, and the removal of the consumed
// cart rows. If any step fails nothing is committed, and the returned error joins ErrCheckoutFailed
// with the cause, e.g. ErrInsufficientStock for the line whose debit was rejected.
func (s Store) Checkout(
	ctx context.Context,
	buyerID uuid.UUID,
	lines []marketplace.CheckoutLine,
) (marketplace.CheckoutResult, error) {

	ctx, observer := s.startOperation(ctx, opCheckout, map[string]string{
		spanAttrLineCount: strconv.Itoa(len(lines)),
	})

	if err := marketplace.ValidateCheckout(buyerID, lines); err != nil {
		return marketplace.CheckoutResult{}, observer.finish(ctx, errors.Join(marketplace.ErrCheckoutFailed, err))
	}

	result, err := s.commitCheckout(ctx, buyerID, lines)
	if err != nil {
		s.recordValueMetrics(ctx, metricCheckoutLines, float64(len(lines)), opCheckout, statusError)
		return marketplace.CheckoutResult{}, observer.finish(ctx, errors.Join(marketplace.ErrCheckoutFailed, err))
	}

	s.recordValueMetrics(ctx, metricCheckoutLines, float64(len(lines)), opCheckout, statusSuccess)

	return result, observer.finish(ctx, nil, spanAttrOrderID, result.OrderID.String())
}

func (s Store) commitCheckout(
	ctx context.Context,
	buyerID uuid.UUID,
	lines []marketplace.CheckoutLine,
) (marketplace.CheckoutResult, error) {

	orderID, err := uuid.NewV7()
	if err != nil {
		return marketplace.CheckoutResult{}, err
	}

	result := marketplace.CheckoutResult{
		OrderID:       orderID,
		TransactionID: uuid.NewString(),
		Lines:         make([]marketplace.OrderLine, 0, len(lines)),
		SellerIDs:     make([]uuid.UUID, 0, len(lines)),
	}

	err = s.withTx(ctx, func(tx adapters.DBTx) error {
		productIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}

		locked, txErr := s.lockProducts(ctx, tx, productIDs)
		if txErr != nil {
			return txErr
		}

		sellers := make(map[uuid.UUID]struct{}, len(lines))
		for _, line := range lines {
			product, ok := locked[line.ProductID]
			if !ok {
				return marketplace.ErrNotFound
			}

			if !line.UnitPrice.IsZero() && !line.UnitPrice.Equal(product.Price) {
				return marketplace.ErrPriceChanged
			}

			lineID, idErr := uuid.NewV7()
			if idErr != nil {
				return idErr
			}

			result.Lines = append(result.Lines, marketplace.OrderLine{
				ID:        lineID,
				OrderID:   orderID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
				LineTotal: marketplace.LineTotal(product.Price, line.Quantity),
			})

			if _, seen := sellers[product.OwnerID]; !seen {
				sellers[product.OwnerID] = struct{}{}
				result.SellerIDs = append(result.SellerIDs, product.OwnerID)
			}
		}

		result.Subtotal = marketplace.Subtotal(result.Lines)
		result.Total = marketplace.TotalFor(result.Subtotal)

		if txErr = s.insertOrder(ctx, tx, buyerID, result); txErr != nil {
			return txErr
		}

		for i, orderLine := range result.Lines {
			if !locked[orderLine.ProductID].Active {
				return marketplace.ErrNotAvailable
			}

			if txErr = s.insertOrderLine(ctx, tx, orderLine, i); txErr != nil {
				return txErr
			}

			if txErr = s.debitStock(ctx, tx, orderLine.ProductID, orderLine.Quantity); txErr != nil {
				return txErr
			}

			if txErr = s.consumeCartItem(ctx, tx, buyerID, lines[i].CartItemID); txErr != nil {
				return txErr
			}
		}

		return nil
	})
	if err != nil {
		return marketplace.CheckoutResult{}, err
	}

	return result, nil
}

func (s Store) insertOrder(
	ctx context.Context,
	tx adapters.DBTx,
	buyerID uuid.UUID,
	result marketplace.CheckoutResult,
) error {

	stmt := builder().Insert(tableOrders).Rows(goqu.Record{
		colID:            result.OrderID.String(),
		colBuyerID:       buyerID.String(),
		colTransactionID: result.TransactionID,
		colSubtotal:      result.Subtotal.String(),
		colTotal:         result.Total.String(),
	})

	_, err := s.exec(ctx, tx, stmt)

	return err
}

func (s Store) insertOrderLine(ctx context.Context, tx adapters.DBTx, line marketplace.OrderLine, position int) error {
	stmt := builder().Insert(tableOrderLines).Rows(goqu.Record{
		colID:        line.ID.String(),
		colOrderID:   line.OrderID.String(),
		colProductID: line.ProductID.String(),
		colQuantity:  line.Quantity,
		colUnitPrice: line.UnitPrice.String(),
		colLineTotal: line.LineTotal.String(),
		colPosition:  position,
	})

	_, err := s.exec(ctx, tx, stmt)

	return err
}

// debitStock decrements the product's quantity only if enough is left and the product is active.
// When no row matches, the product is re-read to tell the two rejections apart.
func (s Store) debitStock(ctx context.Context, tx adapters.DBTx, productID uuid.UUID, quantity int) error {
	stmt := builder().Update(tableProducts).
		Set(goqu.Record{colQuantity: goqu.L("? - ?", goqu.C(colQuantity), quantity)}).
		Where(
			goqu.C(colID).Eq(productID.String()),
			goqu.C(colQuantity).Gte(quantity),
			goqu.C(colActive).IsTrue(),
		)

	rowsAffected, err := s.exec(ctx, tx, stmt)
	if err != nil {
		return err
	}

	if rowsAffected == 1 {
		return nil
	}

	product, err := s.getProduct(ctx, tx, productID)
	if err != nil {
		return err
	}

	if !product.Active {
		return marketplace.ErrNotAvailable
	}

	return marketplace.ErrInsufficientStock
}

// consumeCartItem removes the buyer's cart row for a committed line.
// A row that is already gone does not fail the checkout.
func (s Store) consumeCartItem(ctx context.Context, tx adapters.DBTx, buyerID uuid.UUID, cartItemID uuid.UUID) error {
	if cartItemID == uuid.Nil {
		return nil
	}

	stmt := builder().Delete(tableCartItems).Where(
		goqu.C(colID).Eq(cartItemID.String()),
		goqu.C(colOwnerID).Eq(buyerID.String()),
	)

	rowsAffected, err := s.exec(ctx, tx, stmt)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		s.logWarn(ctx, logMsgCartRowGone, logAttrCartItemID, cartItemID.String())
	}

	return nil
}

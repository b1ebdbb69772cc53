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
	aliasOrder     = "o"
	aliasOrderLine = "ol"
	aliasBuyer     = "b"
	aliasSeller    = "s"
)

// OrdersForBuyer returns the buyer's orders, newest first, with every line.
// With marketplace.WithEventualConsistency(ctx) the read may be served by the replica.
func (s Store) OrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]marketplace.OrderView, error) {
	ctx, observer := s.startOperation(ctx, opOrdersForBuyer, nil)

	views, err := s.orderViews(ctx, goqu.T(aliasOrder).Col(colBuyerID).Eq(buyerID.String()))

	return views, observer.finish(ctx, err)
}

// OrdersForSeller returns every order that contains at least one of the seller's products,
// newest first. Each view only carries the seller's own lines.
func (s Store) OrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]marketplace.OrderView, error) {
	ctx, observer := s.startOperation(ctx, opOrdersForSeller, nil)

	views, err := s.orderViews(ctx, goqu.T(aliasProduct).Col(colOwnerID).Eq(sellerID.String()))

	return views, observer.finish(ctx, err)
}

func (s Store) orderViews(ctx context.Context, filter exp.Expression) ([]marketplace.OrderView, error) {
	o := goqu.T(aliasOrder)
	ol := goqu.T(aliasOrderLine)
	p := goqu.T(aliasProduct)
	b := goqu.T(aliasBuyer)
	sl := goqu.T(aliasSeller)
	a := goqu.T(aliasAddress)

	stmt := builder().
		From(goqu.T(tableOrders).As(aliasOrder)).
		Join(goqu.T(tableUsers).As(aliasBuyer), goqu.On(b.Col(colID).Eq(o.Col(colBuyerID)))).
		Join(goqu.T(tableOrderLines).As(aliasOrderLine), goqu.On(ol.Col(colOrderID).Eq(o.Col(colID)))).
		Join(goqu.T(tableProducts).As(aliasProduct), goqu.On(p.Col(colID).Eq(ol.Col(colProductID)))).
		Join(goqu.T(tableUsers).As(aliasSeller), goqu.On(sl.Col(colID).Eq(p.Col(colOwnerID)))).
		LeftJoin(
			goqu.T(tableAddresses).As(aliasAddress),
			goqu.On(a.Col(colOwnerID).Eq(p.Col(colOwnerID)), a.Col(colIsDefault).IsTrue()),
		).
		Select(
			o.Col(colID), o.Col(colBuyerID), o.Col(colTransactionID), o.Col(colSubtotal), o.Col(colTotal), o.Col(colCreatedAt),
			b.Col(colFirstName), b.Col(colLastName), b.Col(colEmail),
			ol.Col(colID), ol.Col(colProductID), ol.Col(colQuantity), ol.Col(colUnitPrice), ol.Col(colLineTotal),
			p.Col(colName),
			sl.Col(colID), sl.Col(colFirstName), sl.Col(colLastName), sl.Col(colEmail),
			a.Col(colLine), a.Col(colCity), a.Col(colState), a.Col(colZipcode),
		).
		Where(filter).
		Order(o.Col(colCreatedAt).Desc(), o.Col(colID).Asc(), ol.Col(colPosition).Asc())

	views := make([]marketplace.OrderView, 0)
	index := make(map[uuid.UUID]int)

	err := s.query(ctx, s.db, stmt, func(rows adapters.DBRows) error {
		var order marketplace.Order
		var buyer marketplace.Party
		var line marketplace.OrderLineView
		var addrLine, city, state, zipcode sql.NullString

		scanErr := rows.Scan(
			&order.ID, &order.BuyerID, &order.TransactionID, &order.Subtotal, &order.Total, &order.CreatedAt,
			&buyer.FirstName, &buyer.LastName, &buyer.Email,
			&line.ID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.LineTotal,
			&line.ProductName,
			&line.Seller.ID, &line.Seller.FirstName, &line.Seller.LastName, &line.Seller.Email,
			&addrLine, &city, &state, &zipcode,
		)
		if scanErr != nil {
			return scanErr
		}

		line.OrderID = order.ID
		if addrLine.Valid {
			line.SellerLocation = &marketplace.AddressFields{
				Line:    addrLine.String,
				City:    city.String,
				State:   state.String,
				Zipcode: zipcode.String,
			}
		}

		i, ok := index[order.ID]
		if !ok {
			buyer.ID = order.BuyerID
			views = append(views, marketplace.OrderView{Order: order, Buyer: buyer})
			i = len(views) - 1
			index[order.ID] = i
		}

		views[i].Lines = append(views[i].Lines, line)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return views, nil
}

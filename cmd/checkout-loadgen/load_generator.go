package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/checkout"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/ownership"
)

var (
	// ErrInvalidFlags is returned when units per checkout is not between 1 and the stock.
	ErrInvalidFlags = errors.New("units must be between 1 and the initial stock")

	// ErrOversold means more units were committed than were in stock.
	ErrOversold = errors.New("stock was oversold")

	// ErrStockMismatch means the remaining stock does not match the committed orders.
	ErrStockMismatch = errors.New("remaining stock does not match committed orders")
)

// Report summarizes one checkout race.
type Report struct {
	Committed                 int
	RejectedInsufficientStock int
	Failed                    int
	RemainingStock            int
	OrdersForSeller           int
}

// Verify checks the race outcome against the initial stock.
func (r Report) Verify(initialStock int, unitsPerCheckout int) error {
	sold := r.Committed * unitsPerCheckout

	if sold > initialStock || r.RemainingStock < 0 {
		return fmt.Errorf("%w: sold %d of %d", ErrOversold, sold, initialStock)
	}

	if r.RemainingStock != initialStock-sold || r.OrdersForSeller != r.Committed {
		return fmt.Errorf(
			"%w: remaining %d, sold %d of %d, seller sees %d orders",
			ErrStockMismatch, r.RemainingStock, sold, initialStock, r.OrdersForSeller,
		)
	}

	return nil
}

// LoadGenerator seeds a contested product and drives concurrent checkouts against it.
type LoadGenerator struct {
	store     postgresengine.Store
	handler   checkout.CommandHandler
	addresses ownership.Addresses
	flags     Flags
	logger    marketplace.Logger
}

// NewLoadGenerator creates a LoadGenerator.
func NewLoadGenerator(
	store postgresengine.Store,
	handler checkout.CommandHandler,
	addresses ownership.Addresses,
	flags Flags,
	logger marketplace.Logger,
) *LoadGenerator {

	return &LoadGenerator{
		store:     store,
		handler:   handler,
		addresses: addresses,
		flags:     flags,
		logger:    logger,
	}
}

// Run seeds the data, starts all checkouts at once and collects the outcome.
func (g *LoadGenerator) Run(ctx context.Context) (Report, error) {
	sellerID, product, err := g.seedProduct(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("seeding product: %w", err)
	}

	commands, err := g.seedBuyers(ctx, product.ID)
	if err != nil {
		return Report{}, fmt.Errorf("seeding buyers: %w", err)
	}

	g.logger.Info("starting checkout race", "product_id", product.ID.String(), "buyers", len(commands))

	report := g.race(ctx, commands)

	reloaded, err := g.store.GetProduct(ctx, product.ID)
	if err != nil {
		return Report{}, err
	}
	report.RemainingStock = reloaded.Quantity

	orders, err := g.store.OrdersForSeller(ctx, sellerID)
	if err != nil {
		return Report{}, err
	}
	report.OrdersForSeller = len(orders)

	return report, nil
}

func (g *LoadGenerator) race(ctx context.Context, commands []checkout.Command) Report {
	var (
		report Report
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	start := make(chan struct{})

	for _, command := range commands {
		wg.Add(1)

		go func(command checkout.Command) {
			defer wg.Done()
			<-start

			_, _, err := g.handler.Handle(ctx, command)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				report.Committed++
			case errors.Is(err, marketplace.ErrInsufficientStock):
				report.RejectedInsufficientStock++
			default:
				report.Failed++
				g.logger.Error("checkout failed", "buyer_id", command.ActorID.String(), "error", err.Error())
			}
		}(command)
	}

	close(start)
	wg.Wait()

	return report
}

func (g *LoadGenerator) seedProduct(ctx context.Context) (uuid.UUID, marketplace.Product, error) {
	sellerID := uuid.New()

	if err := g.store.CreateUser(ctx, marketplace.NewUser{
		ID:        sellerID,
		FirstName: "Load",
		LastName:  "Seller",
		Email:     "seller+" + sellerID.String() + "@example.com",
	}); err != nil {
		return uuid.Nil, marketplace.Product{}, err
	}

	if _, err := g.addresses.Create(ctx, sellerID, marketplace.AddressFields{
		Line:    "1 Warehouse Way",
		City:    "Oakland",
		State:   "CA",
		Zipcode: "94607",
	}, true); err != nil {
		return uuid.Nil, marketplace.Product{}, err
	}

	product, err := g.store.CreateProduct(ctx, marketplace.NewProduct{
		OwnerID:     sellerID,
		Name:        "contested item",
		Description: "seeded by checkout-loadgen",
		Price:       decimal.RequireFromString("9.99"),
		Quantity:    g.flags.Stock,
	})
	if err != nil {
		return uuid.Nil, marketplace.Product{}, err
	}

	return sellerID, product, nil
}

func (g *LoadGenerator) seedBuyers(ctx context.Context, productID uuid.UUID) ([]checkout.Command, error) {
	commands := make([]checkout.Command, 0, g.flags.Buyers)

	for i := 0; i < g.flags.Buyers; i++ {
		buyerID := uuid.New()

		if err := g.store.CreateUser(ctx, marketplace.NewUser{
			ID:        buyerID,
			FirstName: "Buyer",
			LastName:  fmt.Sprintf("%03d", i),
			Email:     "buyer+" + buyerID.String() + "@example.com",
		}); err != nil {
			return nil, err
		}

		if _, err := g.store.AddCartItem(ctx, buyerID, productID, g.flags.UnitsPerCheckout); err != nil {
			return nil, err
		}

		cart, err := g.store.ListCart(ctx, buyerID)
		if err != nil {
			return nil, err
		}

		commands = append(commands, checkout.BuildCommand(buyerID, marketplace.CheckoutLinesFrom(cart.Lines)))
	}

	return commands, nil
}

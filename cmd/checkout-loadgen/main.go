// Command checkout-loadgen seeds one product and races many buyers checking it out at once,
// then verifies that stock never went negative and matches the committed orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/kafkapublisher"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/oteladapters"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/rediscache"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/checkout"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/config"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell/ownership"
)

const (
	defaultBuyers           = 20
	defaultStock            = 50
	defaultUnitsPerCheckout = 3
	instrumentationName     = "marketplace-checkout-loadgen"
)

// Flags holds the command line options.
type Flags struct {
	ConfigPath       string
	Buyers           int
	Stock            int
	UnitsPerCheckout int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "checkout-loadgen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := parseFlags()
	if flags.UnitsPerCheckout <= 0 || flags.UnitsPerCheckout > flags.Stock {
		return ErrInvalidFlags
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	providers, err := config.SetupObservability(ctx, cfg.Observability, cfg.Service)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	var logProvider log.LoggerProvider
	if providers.LoggerProvider != nil {
		logProvider = providers.LoggerProvider
	}

	zapLogger, err := config.NewZapLogger(cfg.Log, cfg.Service, logProvider)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()

	logger := shell.NewZapLogger(zapLogger)

	storeOptions := []postgresengine.Option{
		postgresengine.WithLogger(logger),
		postgresengine.WithContextualLogger(logger),
	}
	if providers.MeterProvider != nil {
		storeOptions = append(storeOptions, postgresengine.WithMetrics(
			oteladapters.NewMetricsCollector(otel.Meter(instrumentationName)),
		))
	}
	if providers.TracerProvider != nil {
		storeOptions = append(storeOptions, postgresengine.WithTracing(
			oteladapters.NewTracingCollector(otel.Tracer(instrumentationName)),
		))
	}

	store, closeStore, err := config.NewStore(ctx, cfg.Postgres, storeOptions...)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer closeStore()

	if err = store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	addressOptions := []ownership.Option{ownership.WithContextualLogger(logger)}

	handlerOptions := []checkout.Option{
		checkout.WithContextualLogger(logger),
		checkout.WithRetryOptions(
			shell.WithMaxAttempts(cfg.Retry.MaxAttempts),
			shell.WithBaseDelay(cfg.Retry.BaseDelay),
			shell.WithJitterFactor(cfg.Retry.JitterFactor),
		),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, publisherErr := kafkapublisher.NewPublisher(
			kafkapublisher.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			kafkapublisher.WithContextualLogger(logger),
		)
		if publisherErr != nil {
			return publisherErr
		}
		defer func() { _ = publisher.Close() }()

		handlerOptions = append(handlerOptions, checkout.WithPublisher(publisher))
	}

	if redisClient := config.NewRedisClient(cfg.Redis); redisClient != nil {
		defer func() { _ = redisClient.Close() }()

		orderViews, cacheErr := rediscache.NewOrderQueries(redisClient, store,
			rediscache.WithTTL(cfg.Redis.TTL),
			rediscache.WithLogger(logger),
		)
		if cacheErr != nil {
			return cacheErr
		}

		handlerOptions = append(handlerOptions, checkout.WithOrderViewCache(orderViews))
		addressOptions = append(addressOptions, ownership.WithSellerViewCache(orderViews))
	}

	handler := checkout.NewCommandHandler(store, handlerOptions...)
	addresses := ownership.NewAddresses(store, addressOptions...)

	generator := NewLoadGenerator(store, handler, addresses, flags, logger)

	report, err := generator.Run(ctx)
	if err != nil {
		return err
	}

	zapLogger.Info("checkout race finished",
		zap.Int("buyers", flags.Buyers),
		zap.Int("committed", report.Committed),
		zap.Int("rejected_insufficient_stock", report.RejectedInsufficientStock),
		zap.Int("failed", report.Failed),
		zap.Int("remaining_stock", report.RemainingStock),
		zap.Int("orders_for_seller", report.OrdersForSeller),
	)

	return report.Verify(flags.Stock, flags.UnitsPerCheckout)
}

func parseFlags() Flags {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file (optional, env MARKET_* also applies)")
		buyers     = flag.Int("buyers", defaultBuyers, "Number of buyers checking out concurrently")
		stock      = flag.Int("stock", defaultStock, "Initial stock of the contested product")
		units      = flag.Int("units", defaultUnitsPerCheckout, "Units each buyer checks out")
	)

	flag.Parse()

	return Flags{
		ConfigPath:       *configPath,
		Buyers:           *buyers,
		Stock:            *stock,
		UnitsPerCheckout: *units,
	}
}

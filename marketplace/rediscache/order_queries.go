package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	defaultTTL = 5 * time.Minute

	keyPrefixBuyer  = "orders:buyer:"
	keyPrefixSeller = "orders:seller:"
)

const (
	logMsgCacheReadFailed  = "order view cache read failed"
	logMsgCacheWriteFailed = "order view cache write failed"
	logMsgCacheDecodeFail  = "order view cache entry is corrupt"
	logMsgInvalidateFailed = "order view cache invalidation failed"
	logMsgCacheHit         = "order view cache hit"
	logMsgCacheMiss        = "order view cache miss"

	logAttrKey   = "key"
	logAttrError = "error"
)

const (
	metricCacheHits   = "marketplace_order_cache_hits_total"
	metricCacheMisses = "marketplace_order_cache_misses_total"

	metricLabelView = "view"

	viewBuyer  = "buyer"
	viewSeller = "seller"
)

var (
	// ErrNilClient is returned when no Redis client is given.
	ErrNilClient = errors.New("redis client must not be nil")

	// ErrNilQueries is returned when no order query service is given.
	ErrNilQueries = errors.New("order query service must not be nil")

	// ErrInvalidTTL is returned when the TTL is not positive.
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// QueriesOrders is the order query service being cached.
type QueriesOrders interface {
	OrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]marketplace.OrderView, error)
	OrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]marketplace.OrderView, error)
}

// OrderQueries wraps a QueriesOrders with a Redis read-through cache.
type OrderQueries struct {
	client           Client
	next             QueriesOrders
	ttl              time.Duration
	logger           marketplace.Logger
	metricsCollector marketplace.MetricsCollector
}

// Option defines a functional option for configuring OrderQueries.
type Option func(*OrderQueries) error

// WithTTL sets how long cached views live.
func WithTTL(ttl time.Duration) Option {
	return func(q *OrderQueries) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}

		q.ttl = ttl

		return nil
	}
}

// WithLogger sets the logger for cache failures and hit/miss debugging.
func WithLogger(logger marketplace.Logger) Option {
	return func(q *OrderQueries) error {
		q.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for hit/miss counters.
func WithMetrics(collector marketplace.MetricsCollector) Option {
	return func(q *OrderQueries) error {
		q.metricsCollector = collector
		return nil
	}
}

// NewOrderQueries creates a cached order query service.
func NewOrderQueries(client Client, next QueriesOrders, options ...Option) (OrderQueries, error) {
	if client == nil {
		return OrderQueries{}, ErrNilClient
	}

	if next == nil {
		return OrderQueries{}, ErrNilQueries
	}

	q := OrderQueries{
		client: client,
		next:   next,
		ttl:    defaultTTL,
	}

	for _, option := range options {
		if err := option(&q); err != nil {
			return OrderQueries{}, err
		}
	}

	return q, nil
}

// BuyerKey returns the cache key for a buyer's order views.
func BuyerKey(buyerID uuid.UUID) string {
	return keyPrefixBuyer + buyerID.String()
}

// SellerKey returns the cache key for a seller's order views.
func SellerKey(sellerID uuid.UUID) string {
	return keyPrefixSeller + sellerID.String()
}

// OrdersForBuyer returns the cached views for the buyer, loading them on a miss.
func (q OrderQueries) OrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]marketplace.OrderView, error) {
	return q.readThrough(ctx, BuyerKey(buyerID), viewBuyer, func() ([]marketplace.OrderView, error) {
		return q.next.OrdersForBuyer(ctx, buyerID)
	})
}

// OrdersForSeller returns the cached views for the seller, loading them on a miss.
func (q OrderQueries) OrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]marketplace.OrderView, error) {
	return q.readThrough(ctx, SellerKey(sellerID), viewSeller, func() ([]marketplace.OrderView, error) {
		return q.next.OrdersForSeller(ctx, sellerID)
	})
}

// Invalidate drops the cached views of a buyer and the given sellers.
func (q OrderQueries) Invalidate(ctx context.Context, buyerID uuid.UUID, sellerIDs ...uuid.UUID) error {
	keys := make([]string, 0, len(sellerIDs)+1)
	keys = append(keys, BuyerKey(buyerID))

	for _, sellerID := range sellerIDs {
		keys = append(keys, SellerKey(sellerID))
	}

	if err := q.client.Del(ctx, keys...).Err(); err != nil {
		q.logWarn(logMsgInvalidateFailed, logAttrError, err.Error())
		return err
	}

	return nil
}

// InvalidateSeller drops the seller's views and the views of every buyer who ordered from the seller.
// Both show the seller's default address, so this runs after that address changes. The buyers are
// read from the primary.
func (q OrderQueries) InvalidateSeller(ctx context.Context, sellerID uuid.UUID) error {
	views, err := q.next.OrdersForSeller(marketplace.WithStrongConsistency(ctx), sellerID)
	if err != nil {
		q.logWarn(logMsgInvalidateFailed, logAttrKey, SellerKey(sellerID), logAttrError, err.Error())
		return err
	}

	keys := []string{SellerKey(sellerID)}
	seen := make(map[uuid.UUID]struct{}, len(views))

	for _, view := range views {
		if _, ok := seen[view.Buyer.ID]; ok {
			continue
		}

		seen[view.Buyer.ID] = struct{}{}
		keys = append(keys, BuyerKey(view.Buyer.ID))
	}

	if err = q.client.Del(ctx, keys...).Err(); err != nil {
		q.logWarn(logMsgInvalidateFailed, logAttrKey, SellerKey(sellerID), logAttrError, err.Error())
		return err
	}

	return nil
}

func (q OrderQueries) readThrough(
	ctx context.Context,
	key string,
	view string,
	load func() ([]marketplace.OrderView, error),
) ([]marketplace.OrderView, error) {

	if views, ok := q.cached(ctx, key); ok {
		q.logDebug(logMsgCacheHit, logAttrKey, key)
		q.incrementCounter(metricCacheHits, view)

		return views, nil
	}

	q.logDebug(logMsgCacheMiss, logAttrKey, key)
	q.incrementCounter(metricCacheMisses, view)

	views, err := load()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(views)
	if err != nil {
		q.logWarn(logMsgCacheWriteFailed, logAttrKey, key, logAttrError, err.Error())
		return views, nil
	}

	if setErr := q.client.Set(ctx, key, data, q.ttl).Err(); setErr != nil {
		q.logWarn(logMsgCacheWriteFailed, logAttrKey, key, logAttrError, setErr.Error())
	}

	return views, nil
}

func (q OrderQueries) cached(ctx context.Context, key string) ([]marketplace.OrderView, bool) {
	data, err := q.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			q.logWarn(logMsgCacheReadFailed, logAttrKey, key, logAttrError, err.Error())
		}

		return nil, false
	}

	views := make([]marketplace.OrderView, 0)
	if err = json.Unmarshal(data, &views); err != nil {
		q.logWarn(logMsgCacheDecodeFail, logAttrKey, key, logAttrError, err.Error())
		return nil, false
	}

	return views, true
}

func (q OrderQueries) logDebug(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Debug(msg, args...)
	}
}

func (q OrderQueries) logWarn(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Warn(msg, args...)
	}
}

func (q OrderQueries) incrementCounter(metric string, view string) {
	if q.metricsCollector != nil {
		q.metricsCollector.IncrementCounter(metric, map[string]string{metricLabelView: view})
	}
}

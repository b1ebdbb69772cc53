package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/shell"
)

const (
	logMsgPublishFailed    = "order placed notification failed after commit"
	logMsgInvalidateFailed = "order view cache invalidation failed after commit"
	logMsgUnauthorized     = "checkout rejected: actor does not own every line"

	logAttrOrderID = "order_id"
	logAttrActorID = "actor_id"
	logAttrError   = "error"
)

// CommitsCheckout is the store operation the handler drives.
type CommitsCheckout interface {
	Checkout(ctx context.Context, buyerID uuid.UUID, lines []marketplace.CheckoutLine) (marketplace.CheckoutResult, error)
}

// PublishesOrderPlaced notifies other systems about a committed order.
type PublishesOrderPlaced interface {
	PublishOrderPlaced(ctx context.Context, buyerID uuid.UUID, result marketplace.CheckoutResult) error
}

// InvalidatesOrderViews drops cached order views of the buyer and the sellers.
type InvalidatesOrderViews interface {
	Invalidate(ctx context.Context, buyerID uuid.UUID, sellerIDs ...uuid.UUID) error
}

// CommandHandler processes checkout commands.
type CommandHandler struct {
	store        CommitsCheckout
	publisher    PublishesOrderPlaced
	cache        InvalidatesOrderViews
	logger       marketplace.ContextualLogger
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// WithPublisher sets the OrderPlaced publisher.
func WithPublisher(publisher PublishesOrderPlaced) Option {
	return func(h *CommandHandler) {
		h.publisher = publisher
	}
}

// WithOrderViewCache sets the cache that is invalidated after each commit.
func WithOrderViewCache(cache InvalidatesOrderViews) Option {
	return func(h *CommandHandler) {
		h.cache = cache
	}
}

// WithContextualLogger sets the logger for post-commit failures.
func WithContextualLogger(logger marketplace.ContextualLogger) Option {
	return func(h *CommandHandler) {
		h.logger = logger
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(store CommitsCheckout, opts ...Option) CommandHandler {
	handler := CommandHandler{
		store: store,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle authorizes and commits the checkout, retrying transaction conflicts.
// A rejected line (e.g. insufficient stock) fails the whole command and nothing is written.
func (h CommandHandler) Handle(ctx context.Context, command Command) (marketplace.CheckoutResult, shell.HandlerResult, error) {
	if err := authorize(command); err != nil {
		h.logWarn(ctx, logMsgUnauthorized, logAttrActorID, command.ActorID.String())
		return marketplace.CheckoutResult{}, shell.HandlerResult{}, err
	}

	ctx = marketplace.WithStrongConsistency(ctx)

	var result marketplace.CheckoutResult

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var commitErr error
		result, commitErr = h.store.Checkout(retryCtx, command.ActorID, command.Lines)

		return commitErr
	}, h.retryOptions...)

	if err != nil {
		return marketplace.CheckoutResult{}, shell.NewHandlerResult(retryMetrics), err
	}

	h.afterCommit(ctx, command.ActorID, result)

	return result, shell.NewHandlerResult(retryMetrics), nil
}

func authorize(command Command) error {
	for _, line := range command.Lines {
		if line.BuyerID != command.ActorID {
			return errors.Join(marketplace.ErrCheckoutFailed, marketplace.ErrUnauthorized)
		}
	}

	return nil
}

func (h CommandHandler) afterCommit(ctx context.Context, buyerID uuid.UUID, result marketplace.CheckoutResult) {
	if h.publisher != nil {
		if err := h.publisher.PublishOrderPlaced(ctx, buyerID, result); err != nil {
			h.logWarn(ctx, logMsgPublishFailed, logAttrOrderID, result.OrderID.String(), logAttrError, err.Error())
		}
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, buyerID, result.SellerIDs...); err != nil {
			h.logWarn(ctx, logMsgInvalidateFailed, logAttrOrderID, result.OrderID.String(), logAttrError, err.Error())
		}
	}
}

func (h CommandHandler) logWarn(ctx context.Context, msg string, args ...any) {
	if h.logger != nil {
		h.logger.WarnContext(ctx, msg, args...)
	}
}

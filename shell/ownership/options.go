package ownership

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	logMsgUnauthorized     = "rejected: actor does not own the resource"
	logMsgInvalidateFailed = "order view cache invalidation failed after address change"

	logAttrActorID    = "actor_id"
	logAttrResourceID = "resource_id"
	logAttrOwnerID    = "owner_id"
	logAttrError      = "error"
)

// InvalidatesSellerViews drops the cached order views that show a seller's default address.
type InvalidatesSellerViews interface {
	InvalidateSeller(ctx context.Context, sellerID uuid.UUID) error
}

type settings struct {
	logger marketplace.ContextualLogger
	cache  InvalidatesSellerViews
}

// Option configures a handler of this package.
type Option func(*settings)

// WithContextualLogger sets the logger for rejected actors and cache failures.
func WithContextualLogger(logger marketplace.ContextualLogger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithSellerViewCache sets the order view cache the address handler invalidates.
// The cart item handler ignores it.
func WithSellerViewCache(cache InvalidatesSellerViews) Option {
	return func(s *settings) {
		s.cache = cache
	}
}

func newSettings(opts []Option) settings {
	var s settings

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

func (s settings) checkOwner(ctx context.Context, actorID uuid.UUID, ownerID uuid.UUID, resourceID uuid.UUID) error {
	if actorID == ownerID {
		return nil
	}

	s.logWarn(ctx, logMsgUnauthorized, logAttrActorID, actorID.String(), logAttrResourceID, resourceID.String())

	return marketplace.ErrUnauthorized
}

func (s settings) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

package postgresengine

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	logMsgBuildQueryFailed  = "failed to build sql statement"
	logMsgDBFailed          = "database statement failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgRollbackFailed    = "failed to roll back transaction"
	logMsgCartRowGone       = "cart row already removed during checkout"
	logMsgOperationFailed   = "marketplace operation failed"
	logMsgSQLExecuted       = "executed sql for: "
	logMsgOperation         = "marketplace operation: "
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrDurationMS       = "duration_ms"
	logAttrOperation        = "operation"
	logAttrCartItemID       = "cart_item_id"
	logAttrErrorType        = "error_type"
	actionQuery             = "query"
	actionExec              = "exec"
	metricOperationDuration = "marketplace_operation_duration_seconds"
	metricOperationErrors   = "marketplace_operation_errors_total"
	metricStockRejections   = "marketplace_stock_rejections_total"
	metricCheckoutLines     = "marketplace_checkout_lines"
	spanAttrOperation       = "operation"
	spanAttrErrorType       = "error_type"
	spanAttrDurationMS      = "duration_ms"
	spanAttrLineCount       = "line_count"
	spanAttrOrderID         = "order_id"
	statusSuccess           = "success"
	statusError             = "error"
	errorTypeNotFound       = "not_found"
	errorTypeInvalidState   = "invalid_state"
	errorTypeInsufficient   = "insufficient_stock"
	errorTypeNotAvailable   = "not_available"
	errorTypeUnauthorized   = "unauthorized"
	errorTypeConflict       = "conflict"
	errorTypeAlreadyExists  = "already_exists"
	errorTypeInvalidInput   = "invalid_input"
	errorTypePriceChanged   = "price_changed"
	errorTypeTxConflict     = "transaction_conflict"
	errorTypeCanceled       = "canceled"
	errorTypeDatabase       = "database"
)

// Operation names used as span names and the operation label of every metric.
const (
	opCreateUser           = "create_user"
	opCreateProduct        = "create_product"
	opGetProduct           = "get_product"
	opSetQuantity          = "set_quantity"
	opSetPrice             = "set_price"
	opSoftRemove           = "soft_remove_product"
	opHardRemove           = "hard_remove_product"
	opHasEverBeenSold      = "has_ever_been_sold"
	opAddPhoto             = "add_photo"
	opRemovePhoto          = "remove_photo"
	opListPhotos           = "list_photos"
	opCreateAddress        = "create_address"
	opSetDefaultAddress    = "set_default_address"
	opUpdateAddress        = "update_address"
	opRemoveAddress        = "remove_address"
	opGetAddress           = "get_address"
	opListAddresses        = "list_addresses"
	opAddCartItem          = "add_cart_item"
	opUpdateCartItem       = "update_cart_item"
	opRemoveCartItem       = "remove_cart_item"
	opRemoveCartForProduct = "remove_cart_items_for_product"
	opGetCartItem          = "get_cart_item"
	opListCart             = "list_cart"
	opHasQuantity          = "has_quantity"
	opIsActive             = "is_active"
	opCheckout             = "checkout"
	opOrdersForBuyer       = "orders_for_buyer"
	opOrdersForSeller      = "orders_for_seller"
)

// operationObserver carries the timing and the span of one public Store operation.
type operationObserver struct {
	store     Store
	operation string
	start     time.Time
	span      marketplace.SpanContext
}

// startOperation opens a span for operation and starts its clock.
// The returned context carries the span and should be used for every statement of the operation.
func (s Store) startOperation(
	ctx context.Context,
	operation string,
	attrs map[string]string,
) (context.Context, *operationObserver) {

	spanAttrs := map[string]string{spanAttrOperation: operation}
	for k, v := range attrs {
		spanAttrs[k] = v
	}

	var span marketplace.SpanContext
	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, operation, spanAttrs)
	}

	return ctx, &operationObserver{store: s, operation: operation, start: time.Now(), span: span}
}

// finish records the outcome of the operation. It returns err unchanged, so callers can write
// `return observer.finish(ctx, err)`.
func (o *operationObserver) finish(ctx context.Context, err error, attrs ...string) error {
	duration := time.Since(o.start)
	status := statusSuccess
	finishAttrs := map[string]string{spanAttrDurationMS: formatMilliseconds(duration)}

	for i := 0; i+1 < len(attrs); i += 2 {
		finishAttrs[attrs[i]] = attrs[i+1]
	}

	if err != nil {
		status = statusError
		errorType := errorTypeOf(err)
		finishAttrs[spanAttrErrorType] = errorType
		o.store.recordErrorMetrics(ctx, o.operation, errorType)
		o.store.logOperationFailed(ctx, o.operation, errorType, err)
	} else {
		o.store.logOperation(ctx, o.operation, logAttrDurationMS, toMilliseconds(duration))
	}

	o.store.recordDurationMetrics(ctx, metricOperationDuration, duration, o.operation, status)

	if o.store.tracingCollector != nil && o.span != nil {
		o.store.tracingCollector.FinishSpan(o.span, status, finishAttrs)
	}

	return err
}

// errorTypeOf maps an error onto a low-cardinality label value.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorTypeCanceled
	case errors.Is(err, marketplace.ErrInsufficientStock):
		return errorTypeInsufficient
	case errors.Is(err, marketplace.ErrNotAvailable):
		return errorTypeNotAvailable
	case errors.Is(err, marketplace.ErrPriceChanged):
		return errorTypePriceChanged
	case errors.Is(err, marketplace.ErrUnauthorized):
		return errorTypeUnauthorized
	case errors.Is(err, marketplace.ErrConflict):
		return errorTypeConflict
	case errors.Is(err, marketplace.ErrAlreadyExists):
		return errorTypeAlreadyExists
	case errors.Is(err, marketplace.ErrInvalidState):
		return errorTypeInvalidState
	case errors.Is(err, marketplace.ErrInvalidQuantity), errors.Is(err, marketplace.ErrEmptyCheckout):
		return errorTypeInvalidInput
	case errors.Is(err, marketplace.ErrTransactionConflict):
		return errorTypeTxConflict
	case errors.Is(err, marketplace.ErrNotFound):
		return errorTypeNotFound
	default:
		return errorTypeDatabase
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, operation string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+operation, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+operation, args...)
	}
}

// logOperationFailed logs business rejections at info level and everything else at error level.
func (s Store) logOperationFailed(ctx context.Context, operation string, errorType string, err error) {
	if errorType == errorTypeDatabase || errorType == errorTypeTxConflict {
		s.logError(ctx, logMsgOperationFailed, err, logAttrOperation, operation, logAttrErrorType, errorType)
		return
	}

	s.logOperation(ctx, operation, logAttrErrorType, errorType, logAttrError, err.Error())
}

// logWarn logs non-critical issues at warn level.
func (s Store) logWarn(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at error level.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// recordErrorMetrics counts failed operations by error type.
func (s Store) recordErrorMetrics(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricOperationErrors, labels)
	} else {
		s.metricsCollector.IncrementCounter(metricOperationErrors, labels)
	}

	if errorType == errorTypeInsufficient || errorType == errorTypeNotAvailable {
		if contextualCollector, ok := s.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
			contextualCollector.IncrementCounterContext(ctx, metricStockRejections, labels)
		} else {
			s.metricsCollector.IncrementCounter(metricStockRejections, labels)
		}
	}
}

// recordDurationMetrics records an operation duration.
func (s Store) recordDurationMetrics(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := s.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordValueMetrics records a plain value such as the number of lines of a checkout.
func (s Store) recordValueMetrics(ctx context.Context, metricName string, value float64, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := s.metricsCollector.(marketplace.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
	} else {
		s.metricsCollector.RecordValue(metricName, value, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}

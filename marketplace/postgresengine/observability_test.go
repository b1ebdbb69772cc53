package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	. "github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper"
	. "github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_Observability_Checkout_Success_Records_Span_Metrics_And_Logs(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandler := NewLogHandlerSpy(false)
	metricsCollector := NewMetricsCollectorSpy()
	tracingCollector := NewTracingCollectorSpy()

	wrapper := CreateWrapperWithTestConfig(
		t,
		WithLogger(slog.New(logHandler)),
		WithMetrics(metricsCollector),
		WithTracing(tracingCollector),
	)
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 5)

	// act
	result, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 1}})

	// assert
	assert.NoError(t, err)

	spans := tracingCollector.FinishedSpans("checkout")
	assert.Len(t, spans, 1)
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "1", spans[0].StartAttributes["line_count"])
	assert.Equal(t, result.OrderID.String(), spans[0].EndAttributes["order_id"])

	assert.True(t, metricsCollector.HasDurationRecord(
		"marketplace_operation_duration_seconds",
		map[string]string{"operation": "checkout", "status": "success"},
	))
	assert.True(t, metricsCollector.HasValueRecord(
		"marketplace_checkout_lines",
		map[string]string{"operation": "checkout", "status": "success"},
	))

	assert.True(t, logHandler.HasDebugLogWithDurationMS("executed sql for: exec"))
	assert.True(t, logHandler.HasLog(slog.LevelInfo, "marketplace operation: checkout"))
}

func Test_Observability_Checkout_Rejection_Records_Error_Type(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsCollector := NewMetricsCollectorSpy()
	tracingCollector := NewTracingCollectorSpy()

	wrapper := CreateWrapperWithTestConfig(t, WithMetrics(metricsCollector), WithTracing(tracingCollector))
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	buyerID := GivenUser(t, ctxWithTimeout, store, "Ann")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 1)

	// act
	_, err := store.Checkout(ctxWithTimeout, buyerID, []CheckoutLine{{BuyerID: buyerID, ProductID: product.ID, Quantity: 2}})

	// assert
	assert.ErrorIs(t, err, ErrInsufficientStock)

	errorLabels := map[string]string{"operation": "checkout", "status": "error", "error_type": "insufficient_stock"}
	assert.True(t, metricsCollector.HasCounterRecord("marketplace_operation_errors_total", errorLabels))
	assert.True(t, metricsCollector.HasCounterRecord("marketplace_stock_rejections_total", errorLabels))

	spans := tracingCollector.FinishedSpans("checkout")
	assert.Len(t, spans, 1)
	assert.Equal(t, "error", spans[0].Status)
	assert.Equal(t, "insufficient_stock", spans[0].EndAttributes["error_type"])
}

func Test_Observability_ContextualLogger_Receives_Operation_Logs(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandler := NewLogHandlerSpy(false)

	wrapper := CreateWrapperWithTestConfig(t, WithContextualLogger(slog.New(logHandler)))
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)

	// act
	GivenUser(t, ctxWithTimeout, store, "Ann")

	// assert
	assert.True(t, logHandler.HasLog(slog.LevelInfo, "marketplace operation: create_user"))
}

func Test_Observability_HasQuantity_And_IsActive_Record_Spans_And_Metrics(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsCollector := NewMetricsCollectorSpy()
	tracingCollector := NewTracingCollectorSpy()

	wrapper := CreateWrapperWithTestConfig(t, WithMetrics(metricsCollector), WithTracing(tracingCollector))
	defer wrapper.Close()
	store := wrapper.GetStore()

	// arrange
	CleanUp(t, wrapper)
	sellerID := GivenSeller(t, ctxWithTimeout, store, "Oakland")
	product := GivenProduct(t, ctxWithTimeout, store, sellerID, "10.00", 1)

	// act
	_, hasErr := store.HasQuantity(ctxWithTimeout, product.ID, 1)
	_, activeErr := store.IsActive(ctxWithTimeout, GivenUniqueID(t))

	// assert
	assert.NoError(t, hasErr)
	assert.ErrorIs(t, activeErr, ErrNotFound)

	hasSpans := tracingCollector.FinishedSpans("has_quantity")
	assert.Len(t, hasSpans, 1)
	assert.Equal(t, "success", hasSpans[0].Status)

	activeSpans := tracingCollector.FinishedSpans("is_active")
	assert.Len(t, activeSpans, 1)
	assert.Equal(t, "not_found", activeSpans[0].EndAttributes["error_type"])

	assert.True(t, metricsCollector.HasDurationRecord(
		"marketplace_operation_duration_seconds",
		map[string]string{"operation": "has_quantity", "status": "success"},
	))
	assert.True(t, metricsCollector.HasCounterRecord(
		"marketplace_operation_errors_total",
		map[string]string{"operation": "is_active", "error_type": "not_found"},
	))
}

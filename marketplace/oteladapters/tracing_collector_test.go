package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/oteladapters"
)

func newTracingCollector() (*oteladapters.TracingCollector, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), recorder
}

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}

	return ""
}

func Test_TracingCollector_Success_Span(t *testing.T) {
	// arrange
	collector, recorder := newTracingCollector()

	// act
	ctx, span := collector.StartSpan(context.Background(), "checkout", map[string]string{"line_count": "2"})
	span.AddAttribute("order_id", "o-1")
	collector.FinishSpan(span, "success", map[string]string{"duration_ms": "1.25"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "context should carry the span")

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "checkout", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, "2", attributeValue(ended[0].Attributes(), "line_count"))
	assert.Equal(t, "o-1", attributeValue(ended[0].Attributes(), "order_id"))
	assert.Equal(t, "1.25", attributeValue(ended[0].Attributes(), "duration_ms"))
}

func Test_TracingCollector_Error_Span_Uses_Error_Type_As_Description(t *testing.T) {
	// arrange
	collector, recorder := newTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "checkout", nil)
	collector.FinishSpan(span, "error", map[string]string{"error_type": "insufficient_stock"})

	// assert
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "insufficient_stock", ended[0].Status().Description)
}

func Test_TracingCollector_Nested_Spans_Share_The_Trace(t *testing.T) {
	// arrange
	collector, recorder := newTracingCollector()

	// act
	ctx, parent := collector.StartSpan(context.Background(), "checkout_command", nil)
	_, child := collector.StartSpan(ctx, "checkout", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	// assert
	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

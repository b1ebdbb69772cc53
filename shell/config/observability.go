package config

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ObservabilityProviders holds the OpenTelemetry providers. A nil provider means the
// corresponding exporter is not configured.
type ObservabilityProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Resource       *resource.Resource
}

// SetupObservability creates the providers for the configured endpoints and registers them globally,
// together with the W3C trace context propagator.
func SetupObservability(ctx context.Context, cfg ObservabilityConfig, service ServiceConfig) (*ObservabilityProviders, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service.Name),
			semconv.ServiceVersionKey.String(service.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	providers := &ObservabilityProviders{Resource: res}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.TraceEndpoint != "" {
		traceExporter, traceErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.TraceEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if traceErr != nil {
			return nil, traceErr
		}

		providers.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(providers.TracerProvider)
	}

	if cfg.MetricEndpoint != "" {
		metricExporter, metricErr := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.MetricEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if metricErr != nil {
			return nil, errors.Join(metricErr, providers.Shutdown(ctx))
		}

		providers.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(cfg.MetricInterval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(providers.MeterProvider)
	}

	if cfg.LogEndpoint != "" {
		logExporter, logErr := otlploghttp.New(ctx,
			otlploghttp.WithEndpoint(cfg.LogEndpoint),
			otlploghttp.WithInsecure(),
		)
		if logErr != nil {
			return nil, errors.Join(logErr, providers.Shutdown(ctx))
		}

		providers.LoggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(providers.LoggerProvider)
	}

	return providers, nil
}

// Shutdown flushes and stops every configured provider.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	var err error

	if p.TracerProvider != nil {
		err = errors.Join(err, p.TracerProvider.Shutdown(ctx))
	}

	if p.MeterProvider != nil {
		err = errors.Join(err, p.MeterProvider.Shutdown(ctx))
	}

	if p.LoggerProvider != nil {
		err = errors.Join(err, p.LoggerProvider.Shutdown(ctx))
	}

	return err
}

// Package oteladapters implements the marketplace observability interfaces on top of OpenTelemetry.
//
// MetricsCollector maps durations to histograms, counters to counters and values to gauges.
// TracingCollector opens one span per store operation. SlogBridgeLogger and OTelLogger satisfy
// marketplace.ContextualLogger, so log records carry the active trace and span ids.
package oteladapters

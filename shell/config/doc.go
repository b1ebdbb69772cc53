// Package config loads the marketplace configuration and builds the infrastructure it describes:
// Postgres pools for the three supported drivers, the store on top of them, the Redis client,
// the Kafka writer, the zap logger and the OpenTelemetry providers.
//
// Values come from an optional YAML file and from environment variables prefixed with
// MARKET_, where nested keys are joined by underscores, e.g. MARKET_POSTGRES_DSN.
package config

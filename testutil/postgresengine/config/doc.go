// Package config provides database connection settings for the integration tests of the marketplace store.
//
// All tests run against a real PostgreSQL at localhost:5432, database "marketplace", user/password "test".
package config

// Package helper provides fixtures and observability spies for the marketplace store tests.
package helper

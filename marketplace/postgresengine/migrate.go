package postgresengine

import (
	"context"
	_ "embed"
	"errors"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL the Store expects. It is idempotent.
func Schema() string {
	return schemaSQL
}

// Migrate creates all tables and indexes on the primary if they do not exist yet.
func (s Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		s.logError(ctx, logMsgDBFailed, err)
		return errors.Join(marketplace.ErrExecFailed, err)
	}

	return nil
}

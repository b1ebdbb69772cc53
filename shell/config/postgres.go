package config

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
)

const driverName = "postgres"

// NewPGXPool creates and pings a pgx pool for dsn.
func NewPGXPool(ctx context.Context, cfg PostgresConfig, dsn string) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // pool sizes are small
	dbConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // pool sizes are small
	dbConfig.MaxConnLifetime = cfg.MaxConnLifetime
	dbConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	dbConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, pingErr
	}

	return pool, nil
}

// NewSQLDB opens and pings a *sql.DB on the lib/pq driver.
func NewSQLDB(ctx context.Context, cfg PostgresConfig, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db, cfg)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

// NewSQLX opens and pings a *sqlx.DB on the lib/pq driver.
func NewSQLX(ctx context.Context, cfg PostgresConfig, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db.DB, cfg)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

func configureSQLPool(db *sql.DB, cfg PostgresConfig) {
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
}

// NewStore opens the configured driver, with a replica when ReplicaDSN is set, and builds the store.
// The returned close function releases every opened pool.
func NewStore(
	ctx context.Context,
	cfg PostgresConfig,
	options ...postgresengine.Option,
) (postgresengine.Store, func(), error) {

	switch cfg.Adapter {
	case AdapterSQLDB:
		return newSQLDBStore(ctx, cfg, options...)
	case AdapterSQLX:
		return newSQLXStore(ctx, cfg, options...)
	case AdapterPGXPool:
		return newPGXStore(ctx, cfg, options...)
	default:
		return postgresengine.Store{}, nil, ErrUnsupportedAdapter
	}
}

func newPGXStore(ctx context.Context, cfg PostgresConfig, options ...postgresengine.Option) (postgresengine.Store, func(), error) {
	primary, err := NewPGXPool(ctx, cfg, cfg.DSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	if cfg.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromPGXPool(primary, options...)
		if storeErr != nil {
			primary.Close()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, primary.Close, nil
	}

	replica, err := NewPGXPool(ctx, cfg, cfg.ReplicaDSN)
	if err != nil {
		primary.Close()
		return postgresengine.Store{}, nil, err
	}

	closeAll := func() {
		replica.Close()
		primary.Close()
	}

	store, err := postgresengine.NewStoreFromPGXPoolAndReplica(primary, replica, options...)
	if err != nil {
		closeAll()
		return postgresengine.Store{}, nil, err
	}

	return store, closeAll, nil
}

func newSQLDBStore(ctx context.Context, cfg PostgresConfig, options ...postgresengine.Option) (postgresengine.Store, func(), error) {
	primary, err := NewSQLDB(ctx, cfg, cfg.DSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	closePrimary := func() { _ = primary.Close() }

	if cfg.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromSQLDB(primary, options...)
		if storeErr != nil {
			closePrimary()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, closePrimary, nil
	}

	replica, err := NewSQLDB(ctx, cfg, cfg.ReplicaDSN)
	if err != nil {
		closePrimary()
		return postgresengine.Store{}, nil, err
	}

	closeAll := func() {
		_ = replica.Close()
		closePrimary()
	}

	store, err := postgresengine.NewStoreFromSQLDBAndReplica(primary, replica, options...)
	if err != nil {
		closeAll()
		return postgresengine.Store{}, nil, err
	}

	return store, closeAll, nil
}

func newSQLXStore(ctx context.Context, cfg PostgresConfig, options ...postgresengine.Option) (postgresengine.Store, func(), error) {
	primary, err := NewSQLX(ctx, cfg, cfg.DSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	closePrimary := func() { _ = primary.Close() }

	if cfg.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromSQLX(primary, options...)
		if storeErr != nil {
			closePrimary()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, closePrimary, nil
	}

	replica, err := NewSQLX(ctx, cfg, cfg.ReplicaDSN)
	if err != nil {
		closePrimary()
		return postgresengine.Store{}, nil, err
	}

	closeAll := func() {
		_ = replica.Close()
		closePrimary()
	}

	store, err := postgresengine.NewStoreFromSQLXAndReplica(primary, replica, options...)
	if err != nil {
		closeAll()
		return postgresengine.Store{}, nil, err
	}

	return store, closeAll, nil
}

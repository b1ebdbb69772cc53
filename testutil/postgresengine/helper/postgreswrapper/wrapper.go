package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine"
	"github.com/AntonStoeckl/marketplace-checkout-go/testutil/postgresengine/config"
)

// Adapter type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

const truncateAll = `TRUNCATE TABLE order_lines, orders, cart_items, product_photos, addresses, products, users CASCADE`

// Wrapper interface to abstract over different adapter types
type Wrapper interface {
	GetStore() postgresengine.Store
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store postgresengine.Store
}

func (e *PGXPoolWrapper) GetStore() postgresengine.Store {
	return e.store
}

func (e *PGXPoolWrapper) Close() {
	e.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db    *sql.DB
	store postgresengine.Store
}

func (e *SQLDBWrapper) GetStore() postgresengine.Store {
	return e.store
}

func (e *SQLDBWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db    *sqlx.DB
	store postgresengine.Store
}

func (e *SQLXWrapper) GetStore() postgresengine.Store {
	return e.store
}

func (e *SQLXWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE and migrates the schema.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	var wrapper Wrapper

	switch adapterTypeFromEnv() {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		store, err := postgresengine.NewStoreFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating store")

		wrapper = &PGXPoolWrapper{pool: connPool, store: store}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating store")

		wrapper = &SQLDBWrapper{db: db, store: store}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		assert.NoError(t, err, "error creating store")

		wrapper = &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv()))
	}

	assert.NoError(t, wrapper.GetStore().Migrate(context.Background()), "error migrating the schema")

	return wrapper
}

// CreateWrapperWithReplica creates a wrapper whose store has a replica configured.
func CreateWrapperWithReplica(t testing.TB, options ...postgresengine.Option) Wrapper {
	switch adapterTypeFromEnv() {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		replicaPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolReplicaConfig())
		assert.NoError(t, err, "error connecting to replica DB pool in test setup")

		store, err := postgresengine.NewStoreFromPGXPoolAndReplica(connPool, replicaPool, options...)
		assert.NoError(t, err, "error creating store")

		return &PGXPoolWrapper{pool: connPool, store: store}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()
		replica := config.PostgresSQLDBReplicaConfig()

		store, err := postgresengine.NewStoreFromSQLDBAndReplica(db, replica, options...)
		assert.NoError(t, err, "error creating store")

		return &SQLDBWrapper{db: db, store: store}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()
		replica := config.PostgresSQLXReplicaConfig()

		store, err := postgresengine.NewStoreFromSQLXAndReplica(db, replica, options...)
		assert.NoError(t, err, "error creating store")

		return &SQLXWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv()))
	}
}

// CleanUp empties every marketplace table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	_, err := exec(wrapper, truncateAll)
	assert.NoError(t, err, "error cleaning up the marketplace tables")
}

// CountRows counts the rows of table that match the optional where clause.
func CountRows(t testing.TB, wrapper Wrapper, table string, where string) int {
	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var cnt int
	var err error

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		err = e.pool.QueryRow(context.Background(), query).Scan(&cnt)

	case *SQLDBWrapper:
		err = e.db.QueryRow(query).Scan(&cnt)

	case *SQLXWrapper:
		err = e.db.QueryRow(query).Scan(&cnt)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}

	assert.NoError(t, err, "error counting rows")

	return cnt
}

// Exec runs a raw statement, e.g. to put the database into a state the store API refuses to produce.
func Exec(t testing.TB, wrapper Wrapper, query string) int64 {
	rowsAffected, err := exec(wrapper, query)
	assert.NoError(t, err, "error executing raw statement")

	return rowsAffected
}

func exec(wrapper Wrapper, query string) (int64, error) {
	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		cmdTag, err := e.pool.Exec(context.Background(), query)
		if err != nil {
			return 0, err
		}
		return cmdTag.RowsAffected(), nil

	case *SQLDBWrapper:
		result, err := e.db.Exec(query)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()

	case *SQLXWrapper:
		result, err := e.db.Exec(query)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}

func adapterTypeFromEnv() string {
	return strings.ToLower(os.Getenv("ADAPTER_TYPE"))
}

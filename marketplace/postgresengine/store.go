package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace/postgresengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	tableUsers         = "users"
	tableProducts      = "products"
	tablePhotos        = "product_photos"
	tableAddresses     = "addresses"
	tableCartItems     = "cart_items"
	tableOrders        = "orders"
	tableOrderLines    = "order_lines"
	sqlStateSerialize  = "40001"
	sqlStateDeadlock   = "40P01"
	sqlStateUnique     = "23505"
	sqlStateForeignKey = "23503"
)

// Store is the PostgreSQL implementation of the inventory ledger, the address registry, the cart,
// the checkout committer and the order query service.
//
// Store is a value type and safe for concurrent use; all shared state lives in the database.
type Store struct {
	db               adapters.DBAdapter
	logger           marketplace.Logger
	contextualLogger marketplace.ContextualLogger
	metricsCollector marketplace.MetricsCollector
	tracingCollector marketplace.TracingCollector
}

// sqlStatement is implemented by every goqu dataset.
type sqlStatement interface {
	ToSQL() (string, []interface{}, error)
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica creates a new Store using a primary and a replica pgx Pool.
// The replica only serves reads from contexts marked with marketplace.WithEventualConsistency.
func NewStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLDBAndReplica creates a new Store using a primary and a replica sql.DB.
func NewStoreFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// NewStoreFromSQLXAndReplica creates a new Store using a primary and a replica sqlx.DB.
func NewStoreFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, marketplace.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapterWithReplica(db, replica), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{db: db}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// toSQL renders a goqu statement with interpolated values.
func (s Store) toSQL(ctx context.Context, stmt sqlStatement) (string, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return "", errors.Join(marketplace.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// query runs stmt and calls scan once per row. Rows are always closed before query returns,
// which pgx requires before the next statement on the same transaction.
func (s Store) query(
	ctx context.Context,
	q adapters.Querier,
	stmt sqlStatement,
	scan func(rows adapters.DBRows) error,
) error {

	sqlQuery, err := s.toSQL(ctx, stmt)
	if err != nil {
		return err
	}

	start := time.Now()
	rows, queryErr := q.Query(ctx, sqlQuery)
	if queryErr != nil {
		s.logQueryWithDuration(ctx, sqlQuery, actionQuery, time.Since(start))
		return s.dbError(ctx, marketplace.ErrQueryingFailed, queryErr, sqlQuery)
	}
	defer s.closeRows(ctx, rows)

	for rows.Next() {
		if scanErr := scan(rows); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return errors.Join(marketplace.ErrScanningDBRowFailed, scanErr)
		}
	}

	s.logQueryWithDuration(ctx, sqlQuery, actionQuery, time.Since(start))

	if rowsErr := rows.Err(); rowsErr != nil {
		return s.dbError(ctx, marketplace.ErrQueryingFailed, rowsErr, sqlQuery)
	}

	return nil
}

// exec runs stmt and returns the number of affected rows.
func (s Store) exec(ctx context.Context, q adapters.Querier, stmt sqlStatement) (int64, error) {
	sqlQuery, err := s.toSQL(ctx, stmt)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, execErr := q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, actionExec, time.Since(start))

	if execErr != nil {
		return 0, s.dbError(ctx, marketplace.ErrExecFailed, execErr, sqlQuery)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, s.dbError(ctx, marketplace.ErrExecFailed, rowsAffectedErr, sqlQuery)
	}

	return rowsAffected, nil
}

// withTx runs fn inside one transaction on the primary. fn's error rolls everything back.
func (s Store) withTx(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		return s.dbError(ctx, marketplace.ErrBeginTxFailed, beginErr, "")
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return s.dbError(ctx, marketplace.ErrCommitTxFailed, commitErr, "")
	}

	committed = true

	return nil
}

// lockOwner serializes writers of one owner's address set until the transaction ends.
func (s Store) lockOwner(ctx context.Context, tx adapters.DBTx, scope string, ownerID string) error {
	stmt := builder().Select(
		goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtext", scope+":"+ownerID)),
	)

	_, err := s.exec(ctx, tx, stmt)

	return err
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// dbError logs a database failure and joins it with its sentinel and, where the SQLSTATE
// tells us more, with a business or retryable error.
func (s Store) dbError(ctx context.Context, sentinel error, err error, sqlQuery string) error {
	if sqlQuery != "" {
		s.logError(ctx, logMsgDBFailed, err, logAttrQuery, sqlQuery)
	} else {
		s.logError(ctx, logMsgDBFailed, err)
	}

	return errors.Join(sentinel, classifyDBError(err), err)
}

// classifyDBError maps SQLSTATE codes from pgx and lib/pq onto marketplace errors.
func classifyDBError(err error) error {
	switch sqlState(err) {
	case sqlStateSerialize, sqlStateDeadlock:
		return marketplace.ErrTransactionConflict
	case sqlStateUnique:
		return marketplace.ErrAlreadyExists
	case sqlStateForeignKey:
		return marketplace.ErrNotFound
	default:
		return nil
	}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

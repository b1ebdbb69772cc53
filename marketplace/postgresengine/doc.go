// Package postgresengine provides the PostgreSQL implementation of the marketplace stores.
//
// One Store value covers the inventory ledger, the address registry, the cart, the checkout
// committer, and the order queries. It can run on top of pgx/v5 (pgxpool.Pool), database/sql
// with lib/pq, or sqlx. All three adapters share the same SQL, which is built with goqu.
//
// Checkout commits in a single READ COMMITTED transaction. The product rows of the checkout are
// locked with SELECT ... FOR UPDATE in ascending id order, and every stock debit is a conditional
// UPDATE that only succeeds when enough quantity is left. Either every debit, the order, its
// lines, and the cart cleanup commit together, or nothing does.
//
// Address writes of one owner are serialized with a transaction-scoped advisory lock, and a
// partial unique index guarantees at most one default address per owner.
package postgresengine

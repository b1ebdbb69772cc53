// Package postgreswrapper lets the marketplace store tests run against every supported PostgreSQL adapter
// (pgx, sql.DB, sqlx.DB) through one Wrapper interface. The ADAPTER_TYPE environment variable selects the adapter.
//
// Usage:
//
//	wrapper := CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//	CleanUp(t, wrapper)
//	store := wrapper.GetStore()
package postgreswrapper

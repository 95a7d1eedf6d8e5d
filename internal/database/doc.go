// Package database provides SurrealDB connectivity for the security event store.
//
// The Database interface abstracts the three query shapes the audit sink and
// the retention job need:
//   - Query: Returns multiple results
//   - QueryOne: Returns a single result
//   - Execute: No return value (CREATE from the sink, DELETE from retention)
//
// Migrate defines the security_event table. It is idempotent and runs at
// startup when the SurrealDB sink is enabled.
//
// # Error Handling
//
//   - ErrNotFound: Record does not exist
//   - ErrConnection: Database connection issues
//   - ErrQuery: Query execution failures
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrConnection) {
//	    // fall back to the file sink
//	}
package database

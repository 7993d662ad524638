// Package conn defines the connection collaborator contract used by the bulk
// mutation engine. The engine never opens connections itself: it asks a
// Provider for a read-write handle and is told whether it owns that handle
// (and therefore must close it when it is done).
package conn

import "context"

// Statement is a compiled mutation statement that executes many parameter
// rows in one round trip.
//
// ExecBatch returns one affected-row count per submitted row. A non-positive
// count marks that row as rejected. Drivers that abort the whole batch at the
// first failing row return a short slice (fewer counts than rows) together
// with the error that caused the abort; rows past the short position were
// never executed and may be resubmitted against the same statement.
type Statement interface {
	ExecBatch(ctx context.Context, rows [][]any) ([]int64, error)
	Close() error
}

// Handle is an open read-write connection to one target database.
type Handle interface {
	// Dialect reports the SQL vendor behind this handle, used for table
	// qualification and placeholder style when building statement text.
	Dialect() Dialect

	// Prepare compiles a statement on this connection.
	Prepare(ctx context.Context, sql string) (Statement, error)

	Close() error
}

// Provider hands out read-write handles for a target database.
//
// The second return value reports ownership: when true the caller must close
// the handle once finished with it, when false the handle is shared (for
// example it is scoped to a caller-managed transaction) and must be left
// open.
type Provider interface {
	AcquireReadWrite(ctx context.Context) (h Handle, owned bool, err error)
}

// Package query declares the read-side collaborator contracts of keel. The
// lazily-evaluated query builder itself lives with the code generator; the
// bulk engine consumes it only as a source of records, so this package holds
// interfaces and small stream helpers, not an implementation.
package query

import (
	"context"

	"github.com/keeldb/keel/record"
)

// Direction orders query results.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Condition is an opaque filter predicate, composed by generated field code.
type Condition interface {
	// Not negates the condition.
	Not() Condition
}

// Query is a lazily-evaluated read statement over one record type. Builder
// methods return derived queries and execute no SQL; terminal methods
// (Count, First, List, Records) run the statement.
type Query interface {
	// Where adds filter conditions, ANDed together.
	Where(conditions ...Condition) Query

	// Exclude filters out rows matching the conditions.
	Exclude(conditions ...Condition) Query

	// OrderBy sets the result ordering. The direction applies to all the
	// given fields; chain calls for mixed directions.
	OrderBy(dir Direction, fields ...record.Field) Query

	// Limit caps the number of returned rows.
	Limit(n int) Query

	// Distinct sets the distinct keyword on the select statement.
	Distinct() Query

	// OnlyFields restricts the select statement to the given fields.
	OnlyFields(fields ...record.Field) Query

	// Count returns the database-computed row count without transferring
	// rows.
	Count(ctx context.Context) (int64, error)

	// First returns the first matching record, or nil if none match.
	First(ctx context.Context) (*record.Record, error)

	// List materializes all matching records in memory.
	List(ctx context.Context) ([]*record.Record, error)

	// Records opens a single-pass stream of matching records without
	// materializing the result set, suitable for feeding the bulk engine.
	Records(ctx context.Context) (RecordSource, error)
}

// Package keel is a data-access layer over relational stores: typed records
// with field-level presence and change tracking, a lazily-evaluated query
// contract, and a streaming bulk mutation engine that batches inserts,
// updates and deletes without ever materializing its input.
//
// The packages compose bottom-up:
//
//	record   schema descriptors, field-set signatures, records, row changes
//	query    read-side collaborator interfaces and stream sources
//	conn     connection collaborator contract and SQL dialects
//	sqlconn  conn implementation over database/sql
//	bulk     the batching mutation engine
//
// A typical store-to-store transfer:
//
//	pool := sqlconn.NewPool(db, conn.Postgres)
//	eng := keel.NewEngine(pool)
//	n, err := eng.InsertAll(ctx, src)
package keel

import (
	"github.com/keeldb/keel/bulk"
	"github.com/keeldb/keel/conn"
)

// Version is the build version of the library.
const Version = "0.4.0"

// NewEngine creates a bulk mutation engine over the given connection
// provider.
func NewEngine(provider conn.Provider, opts ...bulk.Option) *bulk.Engine {
	return bulk.New(provider, opts...)
}

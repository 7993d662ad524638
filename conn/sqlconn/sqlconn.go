// Package sqlconn implements the conn collaborator contracts on top of
// database/sql. Two providers are offered: Pool, which checks a dedicated
// connection out of a *sql.DB per acquisition and hands ownership to the
// engine, and Tx, which shares one caller-managed transaction across every
// acquisition so the caller keeps transaction demarcation.
package sqlconn

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/logging"
)

// Pool is a conn.Provider backed by a *sql.DB. Every acquisition checks a
// single connection out of the pool; the engine owns it and returns it to
// the pool by closing it.
type Pool struct {
	db      *sql.DB
	dialect conn.Dialect
	logger  logging.Logger
}

// Option configures a provider.
type Option func(*Pool)

// WithLogger sets the provider logger. Default is noop.
func WithLogger(l logging.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool-backed provider for the given database and dialect.
func NewPool(db *sql.DB, dialect conn.Dialect, opts ...Option) *Pool {
	p := &Pool{db: db, dialect: dialect, logger: logging.NewNoop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AcquireReadWrite implements conn.Provider. The returned handle is owned by
// the caller.
func (p *Pool) AcquireReadWrite(ctx context.Context) (conn.Handle, bool, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "acquire connection")
	}
	p.logger.Debug("connection acquired", logging.String("dialect", p.dialect.String()))
	return &poolHandle{c: c, dialect: p.dialect}, true, nil
}

type poolHandle struct {
	c       *sql.Conn
	dialect conn.Dialect
}

func (h *poolHandle) Dialect() conn.Dialect { return h.dialect }

func (h *poolHandle) Prepare(ctx context.Context, query string) (conn.Statement, error) {
	st, err := h.c.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %q", query)
	}
	return &statement{st: st}, nil
}

func (h *poolHandle) Close() error {
	return h.c.Close()
}

// Tx is a conn.Provider scoped to one caller-managed transaction. Every
// acquisition returns the same shared handle with ownership false, so the
// engine leaves it open and the caller decides when to commit or roll back.
type Tx struct {
	handle *txHandle
}

// InTx wraps an open transaction as a provider.
func InTx(tx *sql.Tx, dialect conn.Dialect) *Tx {
	return &Tx{handle: &txHandle{tx: tx, dialect: dialect}}
}

// AcquireReadWrite implements conn.Provider.
func (t *Tx) AcquireReadWrite(ctx context.Context) (conn.Handle, bool, error) {
	return t.handle, false, nil
}

type txHandle struct {
	tx      *sql.Tx
	dialect conn.Dialect
}

func (h *txHandle) Dialect() conn.Dialect { return h.dialect }

func (h *txHandle) Prepare(ctx context.Context, query string) (conn.Statement, error) {
	st, err := h.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %q", query)
	}
	return &statement{st: st}, nil
}

// Close is a no-op: the transaction outlives the bulk call. The engine never
// calls it because ownership is false, but the handle stays safe either way.
func (h *txHandle) Close() error {
	return nil
}

// statement executes a batch row-by-row over a prepared statement.
// database/sql has no batch API, so a row failure naturally yields the
// short-result shape of an abort-on-first-error driver: counts for the rows
// that ran, plus the error. The engine's classification loop resumes after
// the failed row.
type statement struct {
	st *sql.Stmt
}

func (s *statement) ExecBatch(ctx context.Context, rows [][]any) ([]int64, error) {
	results := make([]int64, 0, len(rows))
	for _, args := range rows {
		res, err := s.st.ExecContext(ctx, args...)
		if err != nil {
			return results, errors.Wrap(err, "execute batch row")
		}
		n, err := res.RowsAffected()
		if err != nil {
			// Driver cannot report a count; the row executed, count it once.
			n = 1
		}
		results = append(results, n)
	}
	return results, nil
}

func (s *statement) Close() error {
	return s.st.Close()
}

package bulk

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/logging"
	"github.com/keeldb/keel/record"
)

// batchCapacity is the number of records a group buffers before flushing a
// batch to the target.
const batchCapacity = 64

// RejectFunc receives rows that failed batch execution, in arrival order.
// Registering one turns per-row failures into a side channel instead of a
// call-aborting error. A non-nil return aborts the bulk operation.
type RejectFunc func(rejects []*record.Record) error

// group accumulates same-shaped records for one mutation kind, compiles one
// statement on first use and flushes batches through it. Lifecycle:
// uninitialized until the first flush, then buffering/flushing until finish,
// which is terminal and idempotent.
type group struct {
	kind     record.ChangeKind
	sig      record.FieldSet
	provider conn.Provider
	logger   logging.Logger
	reject   RejectFunc

	buf    []*record.Record
	schema *record.Schema
	fields []record.Field // bound order; update/delete carry pk fields last
	pkLen  int

	handle      conn.Handle
	ownsHandle  bool
	stmt        conn.Statement
	initialized bool
	failed      bool
	finished    bool

	count int64
}

func newGroup(kind record.ChangeKind, sig record.FieldSet, provider conn.Provider, logger logging.Logger, reject RejectFunc) *group {
	return &group{
		kind:     kind,
		sig:      sig,
		provider: provider,
		logger:   logger,
		reject:   reject,
		buf:      make([]*record.Record, 0, batchCapacity),
	}
}

// push buffers a record and reports whether a batch went out.
func (g *group) push(ctx context.Context, r *record.Record) (bool, error) {
	g.buf = append(g.buf, r)
	if len(g.buf) < batchCapacity {
		return false, nil
	}
	if err := g.flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// flush sends the buffered batch: pre-hook, execute with per-row
// classification, post-hook. On failure the group is poisoned: the buffer is
// retained untouched and finish only releases resources, never re-executes.
func (g *group) flush(ctx context.Context) error {
	if len(g.buf) == 0 {
		return nil
	}
	if err := g.flushLocked(ctx); err != nil {
		g.failed = true
		return err
	}
	return nil
}

func (g *group) flushLocked(ctx context.Context) error {
	if !g.initialized {
		if err := g.init(ctx, g.buf[0]); err != nil {
			return err
		}
	}

	batch := make([]*record.Record, len(g.buf))
	copy(batch, g.buf)

	if pre := g.schema.Hooks.Pre(g.kind); pre != nil {
		if err := pre(ctx, batch, g.handle); err != nil {
			return newMutationError(CodeHookFailed, g.kind, g.schema.TableName, "pre-hook failed", err)
		}
	}

	if err := g.execRange(ctx, 0, len(g.buf)); err != nil {
		return err
	}

	if post := g.schema.Hooks.Post(g.kind); post != nil {
		if err := post(ctx, batch, g.handle); err != nil {
			return newMutationError(CodeHookFailed, g.kind, g.schema.TableName, "post-hook failed", err)
		}
	}

	g.buf = g.buf[:0]
	g.logger.Debug("batch flushed",
		logging.String("op", g.kind.String()),
		logging.String("table", g.schema.TableName),
		logging.Int("rows", len(batch)),
		logging.Int64("total", g.count),
		logging.Uint64("signature", g.sig.Hash()))
	return nil
}

// init runs exactly once, on the first flush: it derives the bound field
// list from the group signature, acquires a connection and compiles the
// statement. Field derivation runs first so a schema without a primary key
// fails before any connection is acquired.
func (g *group) init(ctx context.Context, first *record.Record) error {
	g.schema = first.Schema()

	if err := g.bindFields(); err != nil {
		return err
	}

	handle, owned, err := g.provider.AcquireReadWrite(ctx)
	if err != nil {
		return newMutationError(CodeAcquireFailed, g.kind, g.schema.TableName, "acquire read-write connection", err)
	}
	g.handle = handle
	g.ownsHandle = owned

	sqlText := buildSQL(g.kind, handle.Dialect(), g.schema, g.fields, g.pkLen)
	stmt, err := handle.Prepare(ctx, sqlText)
	if err != nil {
		return newMutationError(CodePrepareFailed, g.kind, g.schema.TableName, fmt.Sprintf("compile %q", sqlText), err)
	}
	g.stmt = stmt
	g.initialized = true

	g.logger.Debug("batch group initialized",
		logging.String("op", g.kind.String()),
		logging.String("table", g.schema.TableName),
		logging.String("sql", sqlText),
		logging.Uint64("signature", g.sig.Hash()))
	return nil
}

// bindFields derives the bound field list from the mutation kind and the
// group signature: insert binds the signature fields, update binds the
// signature fields with the primary key appended, delete binds the primary
// key alone.
func (g *group) bindFields() error {
	var fields []record.Field
	switch g.kind {
	case record.Add:
		for _, f := range g.schema.Fields {
			if g.sig.Test(f.Index) {
				fields = append(fields, f)
			}
		}
	case record.Update:
		if !g.schema.HasPrimaryKey() {
			return newMutationError(CodeNoPrimaryKey, g.kind, g.schema.TableName, "updates require a primary key", nil)
		}
		for _, f := range g.schema.Fields {
			if g.sig.Test(f.Index) {
				fields = append(fields, f)
			}
		}
		if len(fields) == 0 {
			return newMutationError(CodeNoChangedFields, g.kind, g.schema.TableName, "update binds no changed fields", nil)
		}
		pks := g.schema.PrimaryKeyFields()
		fields = append(fields, pks...)
		g.pkLen = len(pks)
	case record.Delete:
		if !g.schema.HasPrimaryKey() {
			return newMutationError(CodeNoPrimaryKey, g.kind, g.schema.TableName, "deletes require a primary key", nil)
		}
		fields = g.schema.PrimaryKeyFields()
		g.pkLen = len(fields)
	}
	g.fields = fields
	return nil
}

// execRange executes buf[start:end) as batches, classifying every row. A
// full result list classifies each row independently. A short result list
// means the driver aborted at the first failing row: that row is rejected
// and the unexecuted suffix is resubmitted against the same statement, the
// range shrinking until every row is classified.
func (g *group) execRange(ctx context.Context, start, end int) error {
	var rejects []*record.Record
	var cause error

	for start < end {
		rows := make([][]any, 0, end-start)
		for _, r := range g.buf[start:end] {
			rows = append(rows, g.bindRow(r))
		}

		traceID := uuid.New().String()
		results, err := g.stmt.ExecBatch(ctx, rows)
		n := end - start
		if len(results) > n {
			results = results[:n]
		}

		for i, res := range results {
			if res <= 0 {
				rejects = append(rejects, g.buf[start+i])
			} else {
				g.count += res
			}
		}

		if len(results) == n {
			// Every submitted row was classified; no retry.
			cause = err
			if err != nil && len(rejects) == 0 {
				return newMutationError(CodeExecFailed, g.kind, g.schema.TableName, "batch execute failed", err)
			}
			break
		}

		if err == nil {
			return newMutationError(CodeExecFailed, g.kind, g.schema.TableName,
				fmt.Sprintf("driver returned %d results for %d rows without an error", len(results), n), nil)
		}

		// The row at the short position caused the abort.
		cause = err
		rejects = append(rejects, g.buf[start+len(results)])
		g.logger.Debug("short batch result, resubmitting suffix",
			logging.String("op", g.kind.String()),
			logging.String("table", g.schema.TableName),
			logging.String("trace_id", traceID),
			logging.Int("reported", len(results)),
			logging.Int("submitted", n))
		start += len(results) + 1
	}

	if len(rejects) == 0 {
		return nil
	}
	if g.reject != nil {
		return g.reject(rejects)
	}
	return &RejectedError{Table: g.schema.TableName, Rejects: rejects, Cause: cause}
}

func (g *group) bindRow(r *record.Record) []any {
	args := make([]any, len(g.fields))
	for i, f := range g.fields {
		args[i] = r.Normalized(f)
	}
	return args
}

// finish flushes any remainder, then releases the statement and, if owned,
// the connection. It is idempotent and never re-executes after a failed
// flush; release errors are swallowed.
func (g *group) finish(ctx context.Context) error {
	if g.finished {
		return nil
	}
	g.finished = true

	var err error
	if !g.failed && len(g.buf) > 0 {
		err = g.flush(ctx)
	}
	g.release()
	return err
}

func (g *group) release() {
	if g.stmt != nil {
		_ = g.stmt.Close()
		g.stmt = nil
	}
	if g.handle != nil && g.ownsHandle {
		_ = g.handle.Close()
		g.handle = nil
	}
}

// buildSQL renders the statement text for one group deterministically from
// the schema and the bound field list.
func buildSQL(kind record.ChangeKind, dialect conn.Dialect, schema *record.Schema, fields []record.Field, pkLen int) string {
	table := dialect.QualifyTable(schema.SchemaName, schema.TableName)
	var b strings.Builder

	switch kind {
	case record.Add:
		b.WriteString("INSERT INTO ")
		b.WriteString(table)
		b.WriteString(" (")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
		}
		b.WriteString(") VALUES (")
		for i := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(dialect.Placeholder(i + 1))
		}
		b.WriteString(")")

	case record.Update:
		b.WriteString("UPDATE ")
		b.WriteString(table)
		b.WriteString(" SET ")
		setLen := len(fields) - pkLen
		for i := 0; i < setLen; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fields[i].Name)
			b.WriteString("=")
			b.WriteString(dialect.Placeholder(i + 1))
		}
		b.WriteString(" WHERE ")
		for i := setLen; i < len(fields); i++ {
			if i > setLen {
				b.WriteString(" AND ")
			}
			b.WriteString(fields[i].Name)
			b.WriteString("=")
			b.WriteString(dialect.Placeholder(i + 1))
		}

	case record.Delete:
		b.WriteString("DELETE FROM ")
		b.WriteString(table)
		b.WriteString(" WHERE ")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(f.Name)
			b.WriteString("=")
			b.WriteString(dialect.Placeholder(i + 1))
		}
	}

	return b.String()
}

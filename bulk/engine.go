// Package bulk implements the streaming bulk mutation engine: it turns a
// single-pass sequence of records or row changes into batched insert, update
// and delete statements against a live connection. Records are grouped by
// mutation kind and exact field-set signature, buffered up to a fixed batch
// capacity and flushed in one round trip per batch, so unbounded transfers
// run in constant memory. Per-row failures are recovered even from drivers
// that abort a batch at the first failing row.
package bulk

import (
	"context"
	"errors"
	"io"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/logging"
	"github.com/keeldb/keel/query"
	"github.com/keeldb/keel/record"
)

// Engine is the bulk mutation engine for one target database. It is cheap
// to construct and safe to reuse across calls; each call routes through its
// own set of batch groups. Calls are synchronous and single-threaded: the
// engine pulls one element at a time from the source and never materializes
// it.
//
// Transaction demarcation is the caller's: wrap the provider with
// sqlconn.InTx (or equivalent) to run a whole call inside one transaction.
type Engine struct {
	provider conn.Provider
	logger   logging.Logger
}

// New creates an engine over the given connection provider.
func New(provider conn.Provider, opts ...Option) *Engine {
	e := &Engine{provider: provider, logger: logging.NewNoop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InsertAll inserts every record from the source, batching by fetched
// field-set. Any rejected row aborts the call. Returns the total affected
// row count.
func (e *Engine) InsertAll(ctx context.Context, src query.RecordSource, opts ...CallOption) (int64, error) {
	return e.run(ctx, src, record.Add, true, opts)
}

// UpdateAll updates every record from the source by primary key, batching
// by the record's own changed field-set. Record types without a primary key
// fail on the first flush.
func (e *Engine) UpdateAll(ctx context.Context, src query.RecordSource, opts ...CallOption) (int64, error) {
	return e.run(ctx, src, record.Update, true, opts)
}

// DeleteAll deletes every record from the source by primary key. Progress
// is checked after every pushed record since delete batches never vary in
// shape.
func (e *Engine) DeleteAll(ctx context.Context, src query.RecordSource, opts ...CallOption) (int64, error) {
	return e.run(ctx, src, record.Delete, false, opts)
}

// run drives insert-all, update-all and delete-all: one routing pass over
// the source, then a flush of every group. gateOnFlush restricts progress
// reports to moments right after a batch went out.
func (e *Engine) run(ctx context.Context, src query.RecordSource, kind record.ChangeKind, gateOnFlush bool, opts []CallOption) (int64, error) {
	rt := newRouter(e.provider, e.logger)
	t := newTracker(newCallConfig(opts))

	for {
		if interrupted(ctx) {
			return e.abandon(ctx, rt, kind)
		}
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if interruption(err) {
			return e.abandon(ctx, rt, kind)
		}
		if err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), &MutationError{Code: CodeSourceFailed, Op: kind.String(), Message: "record source failed", Cause: err}
		}

		flushed, err := rt.route(ctx, change(kind, rec))
		if err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), err
		}
		t.observe(!gateOnFlush || flushed, rt.total)
	}

	err := rt.finishAll(ctx)
	return rt.total(), err
}

// InsertOrUpdateAll inserts every record from the source; any row rejected
// by its insert group (typically an identity conflict) is immediately
// re-routed into an update group keyed by the record's own changed
// field-set, preserving arrival order of the retries. An update failure
// aborts the call.
func (e *Engine) InsertOrUpdateAll(ctx context.Context, src query.RecordSource, opts ...CallOption) (int64, error) {
	rt := newRouter(e.provider, e.logger)
	t := newTracker(newCallConfig(opts))

	var rejected []*record.Record
	rt.insertReject = func(rs []*record.Record) error {
		rejected = append(rejected, rs...)
		return nil
	}

	// drain re-routes rejected inserts as record-driven updates. Pushing an
	// update can flush, and in principle reject again, so loop until quiet.
	drain := func(ctx context.Context) error {
		for len(rejected) > 0 {
			rs := rejected
			rejected = nil
			for _, r := range rs {
				if _, err := rt.route(ctx, record.RowChange{Kind: record.Update, Record: r}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for {
		if interrupted(ctx) {
			return e.abandon(ctx, rt, record.Add)
		}
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if interruption(err) {
			return e.abandon(ctx, rt, record.Add)
		}
		if err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), &MutationError{Code: CodeSourceFailed, Op: record.Add.String(), Message: "record source failed", Cause: err}
		}

		if _, err := rt.route(ctx, record.AddChange(rec)); err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), err
		}
		if err := drain(ctx); err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), err
		}
		t.observe(true, rt.total)
	}

	// Final insert flush may reject stragglers; redirect them before the
	// update groups flush.
	if err := rt.finishInserters(ctx); err != nil {
		_ = rt.finishRemaining(ctx)
		return rt.total(), err
	}
	if err := drain(ctx); err != nil {
		_ = rt.finishRemaining(ctx)
		return rt.total(), err
	}
	err := rt.finishRemaining(ctx)
	return rt.total(), err
}

// CommitDiff applies a sequence of row changes: adds batch by the record's
// fetched field-set, updates by the diff's explicit changed field-set and
// deletes by record type. Returns the summed affected-row count.
func (e *Engine) CommitDiff(ctx context.Context, src query.ChangeSource) (int64, error) {
	rt := newRouter(e.provider, e.logger)

	for {
		if interrupted(ctx) {
			return e.abandon(ctx, rt, record.Update)
		}
		rc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if interruption(err) {
			return e.abandon(ctx, rt, record.Update)
		}
		if err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), &MutationError{Code: CodeSourceFailed, Op: "diff", Message: "change source failed", Cause: err}
		}

		if _, err := rt.route(ctx, rc); err != nil {
			_ = rt.finishAll(ctx)
			return rt.total(), err
		}
	}

	err := rt.finishAll(ctx)
	return rt.total(), err
}

// abandon handles mid-stream interruption: in-flight groups are flushed
// best-effort outside the cancelled context and the count accumulated so
// far is returned without an error.
func (e *Engine) abandon(ctx context.Context, rt *router, kind record.ChangeKind) (int64, error) {
	e.logger.Warn("bulk operation interrupted, flushing in-flight batches",
		logging.String("op", kind.String()))
	if err := rt.finishAll(context.WithoutCancel(ctx)); err != nil {
		e.logger.Error("best-effort flush after interruption failed",
			logging.String("op", kind.String()),
			logging.Error("error", err))
	}
	return rt.total(), nil
}

func change(kind record.ChangeKind, rec *record.Record) record.RowChange {
	switch kind {
	case record.Add:
		return record.AddChange(rec)
	case record.Update:
		return record.RowChange{Kind: record.Update, Record: rec}
	default:
		return record.DeleteChange(rec)
	}
}

func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}

func interruption(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

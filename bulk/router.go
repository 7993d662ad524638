package bulk

import (
	"context"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/logging"
	"github.com/keeldb/keel/record"
)

// groupKey batches records by record type and exact field-set signature.
// Two records share a compiled statement only when both match.
type groupKey struct {
	schema *record.Schema
	sig    record.FieldSet
}

// router groups incoming row changes into batch groups, creating them on
// demand. Insert and update groups are keyed by field-set signature; delete
// groups never vary in shape, so there is one per record type. Flush order
// is group creation order: all inserts, then all updates, then deletes.
type router struct {
	provider     conn.Provider
	logger       logging.Logger
	insertReject RejectFunc

	inserters map[groupKey]*group
	updaters  map[groupKey]*group
	deleters  map[*record.Schema]*group

	inserterOrder []*group
	updaterOrder  []*group
	deleterOrder  []*group
}

func newRouter(provider conn.Provider, logger logging.Logger) *router {
	return &router{
		provider:  provider,
		logger:    logger,
		inserters: make(map[groupKey]*group),
		updaters:  make(map[groupKey]*group),
		deleters:  make(map[*record.Schema]*group),
	}
}

// route forwards one row change to its batch group and reports whether a
// batch went out.
func (rt *router) route(ctx context.Context, rc record.RowChange) (bool, error) {
	switch rc.Kind {
	case record.Add:
		return rt.inserter(rc.Record).push(ctx, rc.Record)

	case record.Update:
		// An explicit diff keys the group; an empty diff falls back to the
		// record's own change tracking.
		sig := rc.Changed
		if sig.Empty() {
			sig = rc.Record.Changed()
		}
		return rt.updater(rc.Record.Schema(), sig).push(ctx, rc.Record)

	case record.Delete:
		return rt.deleter(rc.Record.Schema()).push(ctx, rc.Record)

	default:
		return false, newMutationError(CodeBadChange, rc.Kind, rc.Record.Schema().TableName, "unknown change kind", nil)
	}
}

func (rt *router) inserter(r *record.Record) *group {
	key := groupKey{schema: r.Schema(), sig: r.Fetched()}
	g, ok := rt.inserters[key]
	if !ok {
		g = newGroup(record.Add, key.sig, rt.provider, rt.logger, rt.insertReject)
		rt.inserters[key] = g
		rt.inserterOrder = append(rt.inserterOrder, g)
	}
	return g
}

func (rt *router) updater(s *record.Schema, sig record.FieldSet) *group {
	key := groupKey{schema: s, sig: sig}
	g, ok := rt.updaters[key]
	if !ok {
		g = newGroup(record.Update, sig, rt.provider, rt.logger, nil)
		rt.updaters[key] = g
		rt.updaterOrder = append(rt.updaterOrder, g)
	}
	return g
}

func (rt *router) deleter(s *record.Schema) *group {
	g, ok := rt.deleters[s]
	if !ok {
		g = newGroup(record.Delete, record.FieldSet{}, rt.provider, rt.logger, nil)
		rt.deleters[s] = g
		rt.deleterOrder = append(rt.deleterOrder, g)
	}
	return g
}

// total returns the running success count across every group.
func (rt *router) total() int64 {
	var n int64
	for _, g := range rt.inserterOrder {
		n += g.count
	}
	for _, g := range rt.updaterOrder {
		n += g.count
	}
	for _, g := range rt.deleterOrder {
		n += g.count
	}
	return n
}

// finishInserters flushes and releases every insert group.
func (rt *router) finishInserters(ctx context.Context) error {
	return finishGroups(ctx, rt.inserterOrder)
}

// finishRemaining flushes and releases update and delete groups.
func (rt *router) finishRemaining(ctx context.Context) error {
	err := finishGroups(ctx, rt.updaterOrder)
	if derr := finishGroups(ctx, rt.deleterOrder); err == nil {
		err = derr
	}
	return err
}

// finishAll finishes every group. Every group is finished even when one
// fails, so statements and owned connections are always released; the first
// error is reported.
func (rt *router) finishAll(ctx context.Context) error {
	err := rt.finishInserters(ctx)
	if rerr := rt.finishRemaining(ctx); err == nil {
		err = rerr
	}
	return err
}

func finishGroups(ctx context.Context, groups []*group) error {
	var first error
	for _, g := range groups {
		if err := g.finish(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

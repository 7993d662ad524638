// Package mock provides an in-memory, scriptable implementation of the conn
// collaborator contracts for tests. Exec behavior is injected per provider,
// every prepare/exec/close is recorded, and helpers simulate the two driver
// families the bulk engine must cope with: full-report drivers that return
// one result per row, and abort-on-first-error drivers that return a short
// result list.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/keeldb/keel/conn"
)

// ExecFunc scripts statement execution: it receives the statement text and
// the bound rows and returns the per-row results the driver would report.
type ExecFunc func(sql string, rows [][]any) ([]int64, error)

// Provider is a scriptable conn.Provider.
type Provider struct {
	mu sync.Mutex

	// DialectValue is reported by every handle. Defaults to Generic.
	DialectValue conn.Dialect

	// Owned is the ownership flag handed to the engine. Defaults to true.
	Owned bool

	// AcquireErr, when set, fails every acquisition.
	AcquireErr error

	// PrepareErr, when set, fails every prepare.
	PrepareErr error

	// Exec scripts batch execution. Nil means every row reports one
	// affected row.
	Exec ExecFunc

	handles []*Handle
}

// NewProvider creates a provider whose handles succeed at everything.
func NewProvider() *Provider {
	return &Provider{Owned: true}
}

// AcquireReadWrite implements conn.Provider.
func (p *Provider) AcquireReadWrite(ctx context.Context) (conn.Handle, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AcquireErr != nil {
		return nil, false, p.AcquireErr
	}
	h := &Handle{provider: p}
	p.handles = append(p.handles, h)
	return h, p.Owned, nil
}

// Acquires returns how many handles were acquired.
func (p *Provider) Acquires() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Handles returns every handle acquired so far.
func (p *Provider) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Handle{}, p.handles...)
}

// Statements returns every statement prepared on any handle, in prepare
// order.
func (p *Provider) Statements() []*Statement {
	var all []*Statement
	for _, h := range p.Handles() {
		all = append(all, h.Statements()...)
	}
	return all
}

// StatementFor returns the first prepared statement whose text equals sql.
func (p *Provider) StatementFor(sql string) (*Statement, bool) {
	for _, s := range p.Statements() {
		if s.SQL == sql {
			return s, true
		}
	}
	return nil, false
}

// ExecBatches returns the total number of ExecBatch round trips across all
// statements.
func (p *Provider) ExecBatches() int {
	n := 0
	for _, s := range p.Statements() {
		n += s.Execs()
	}
	return n
}

// Handle is a recorded mock connection.
type Handle struct {
	provider *Provider

	mu     sync.Mutex
	stmts  []*Statement
	closes int
}

// Dialect implements conn.Handle.
func (h *Handle) Dialect() conn.Dialect {
	return h.provider.DialectValue
}

// Prepare implements conn.Handle.
func (h *Handle) Prepare(ctx context.Context, sql string) (conn.Statement, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.provider.PrepareErr != nil {
		return nil, h.provider.PrepareErr
	}
	s := &Statement{handle: h, SQL: sql}
	h.stmts = append(h.stmts, s)
	return s, nil
}

// Close implements conn.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

// Closes returns how many times the handle was closed.
func (h *Handle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Statements returns the statements prepared on this handle.
func (h *Handle) Statements() []*Statement {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Statement{}, h.stmts...)
}

// Statement is a recorded mock statement.
type Statement struct {
	handle *Handle
	SQL    string

	mu      sync.Mutex
	batches [][][]any
	closes  int
}

// ExecBatch implements conn.Statement.
func (s *Statement) ExecBatch(ctx context.Context, rows [][]any) ([]int64, error) {
	s.mu.Lock()
	batch := make([][]any, len(rows))
	for i, row := range rows {
		batch[i] = append([]any{}, row...)
	}
	s.batches = append(s.batches, batch)
	exec := s.handle.provider.Exec
	s.mu.Unlock()

	if exec != nil {
		return exec(s.SQL, rows)
	}
	results := make([]int64, len(rows))
	for i := range results {
		results[i] = 1
	}
	return results, nil
}

// Close implements conn.Statement.
func (s *Statement) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times the statement was closed.
func (s *Statement) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Execs returns the number of ExecBatch round trips on this statement.
func (s *Statement) Execs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Batches returns every submitted batch, each a slice of bound rows.
func (s *Statement) Batches() [][][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][][]any{}, s.batches...)
}

// Rows returns every bound row across all batches, in submission order.
func (s *Statement) Rows() [][]any {
	var out [][]any
	for _, b := range s.Batches() {
		out = append(out, b...)
	}
	return out
}

// FullReport scripts a driver that executes every row and reports one result
// per row: 0 for rows where fail returns true, 1 otherwise.
func FullReport(fail func(row []any) bool) ExecFunc {
	return func(sql string, rows [][]any) ([]int64, error) {
		results := make([]int64, len(rows))
		failed := false
		for i, row := range rows {
			if fail != nil && fail(row) {
				results[i] = 0
				failed = true
			} else {
				results[i] = 1
			}
		}
		if failed {
			return results, fmt.Errorf("mock: batch had failing rows")
		}
		return results, nil
	}
}

// AbortOnFailure scripts a driver that stops at the first failing row and
// reports nothing beyond it: the result list covers only the rows before the
// failure, the short-count quirk the engine recovers from by resubmitting
// the unexecuted suffix.
func AbortOnFailure(fail func(row []any) bool) ExecFunc {
	return func(sql string, rows [][]any) ([]int64, error) {
		results := make([]int64, 0, len(rows))
		for _, row := range rows {
			if fail != nil && fail(row) {
				return results, fmt.Errorf("mock: row failed, batch aborted")
			}
			results = append(results, 1)
		}
		return results, nil
	}
}

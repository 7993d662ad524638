package sqlconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeldb/keel/bulk"
	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/query"
	"github.com/keeldb/keel/testutil"
)

// stubDriver is a minimal database/sql driver whose statements succeed with
// one affected row unless the scripted fail func vetoes the bound args.
type stubDriver struct {
	mu   sync.Mutex
	fail func(args []driver.Value) error
}

func (d *stubDriver) setFail(fn func(args []driver.Value) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fn
}

func (d *stubDriver) check(args []driver.Value) error {
	d.mu.Lock()
	fn := d.fail
	d.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(args)
}

func (d *stubDriver) Open(name string) (driver.Conn, error) {
	return &stubConn{d: d}, nil
}

type stubConn struct {
	d *stubDriver
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{d: c.d}, nil
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubStmt struct {
	d *stubDriver
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	if err := s.d.check(args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("stub: queries not supported")
}

var stub = &stubDriver{}

func init() {
	sql.Register("sqlconnstub", stub)
}

func openStub(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlconnstub", "")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	t.Cleanup(func() {
		stub.setFail(nil)
		db.Close()
	})
	return db
}

func TestPoolExecBatchReportsEveryRow(t *testing.T) {
	db := openStub(t)
	pool := NewPool(db, conn.MySQL)

	h, owned, err := pool.AcquireReadWrite(context.Background())
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, conn.MySQL, h.Dialect())

	st, err := h.Prepare(context.Background(), "INSERT INTO users (id) VALUES (?)")
	require.NoError(t, err)

	results, err := st.ExecBatch(context.Background(), [][]any{{int64(1)}, {int64(2)}, {int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1}, results)

	require.NoError(t, st.Close())
	require.NoError(t, h.Close())
}

func TestPoolExecBatchShortCountOnRowError(t *testing.T) {
	db := openStub(t)
	stub.setFail(func(args []driver.Value) error {
		if args[0] == int64(2) {
			return errors.New("duplicate key")
		}
		return nil
	})
	pool := NewPool(db, conn.Generic)

	h, _, err := pool.AcquireReadWrite(context.Background())
	require.NoError(t, err)
	defer h.Close()

	st, err := h.Prepare(context.Background(), "INSERT INTO users (id) VALUES (?)")
	require.NoError(t, err)
	defer st.Close()

	// A failure at row k yields exactly k results plus the error, the
	// short-count shape the engine's classification loop expects.
	results, err := st.ExecBatch(context.Background(), [][]any{{int64(1)}, {int64(2)}, {int64(3)}})
	require.Error(t, err)
	assert.Equal(t, []int64{1}, results)

	// The statement survives the error; the unexecuted suffix can be
	// resubmitted against it.
	results, err = st.ExecBatch(context.Background(), [][]any{{int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, results)
}

func TestTxProviderSharesOneUnownedHandle(t *testing.T) {
	db := openStub(t)
	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	prov := InTx(tx, conn.Postgres)

	h1, owned, err := prov.AcquireReadWrite(context.Background())
	require.NoError(t, err)
	assert.False(t, owned)

	h2, _, err := prov.AcquireReadWrite(context.Background())
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, conn.Postgres, h1.Dialect())

	// Close is a no-op; the transaction stays usable.
	require.NoError(t, h1.Close())
	st, err := h1.Prepare(context.Background(), "INSERT INTO users (id) VALUES ($1)")
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestEngineRecoversOverPool(t *testing.T) {
	db := openStub(t)
	stub.setFail(func(args []driver.Value) error {
		if args[0] == int64(2) {
			return errors.New("duplicate key")
		}
		return nil
	})

	s := testutil.UserSchema()
	eng := bulk.New(NewPool(db, conn.Generic))

	total, err := eng.InsertAll(context.Background(), query.Records(testutil.NewUsers(s, 3)...))
	assert.Equal(t, int64(2), total)

	var rerr *bulk.RejectedError
	require.ErrorAs(t, err, &rerr)
	require.Len(t, rerr.Rejects, 1)
	assert.Equal(t, int64(2), rerr.Rejects[0].Get(testutil.UserID))
}

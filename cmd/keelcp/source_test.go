package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/record"
)

// rowsDriver is a database/sql driver that answers every query with a fixed
// column list and row set.
type rowsDriver struct {
	cols []string
	data [][]driver.Value
}

func (d *rowsDriver) Open(name string) (driver.Conn, error) {
	return &rowsConn{d: d}, nil
}

type rowsConn struct {
	d *rowsDriver
}

func (c *rowsConn) Prepare(query string) (driver.Stmt, error) {
	return &rowsStmt{d: c.d}, nil
}

func (c *rowsConn) Close() error { return nil }

func (c *rowsConn) Begin() (driver.Tx, error) { return nil, errors.New("stub: no transactions") }

type rowsStmt struct {
	d *rowsDriver
}

func (s *rowsStmt) Close() error  { return nil }
func (s *rowsStmt) NumInput() int { return 0 }

func (s *rowsStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("stub: no writes")
}

func (s *rowsStmt) Query(args []driver.Value) (driver.Rows, error) {
	data := make([][]driver.Value, len(s.d.data))
	copy(data, s.d.data)
	return &stubRows{cols: s.d.cols, data: data}, nil
}

type stubRows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

var usersTable = &rowsDriver{
	cols: []string{"id", "name", "email"},
	data: [][]driver.Value{
		{int64(1), "alice", "alice@example.com"},
		{int64(2), "bob", "bob@example.com"},
	},
}

func init() {
	sql.Register("keelcprows", usersTable)
}

func openUsersDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("keelcprows", "")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenTableSourceInfersSchema(t *testing.T) {
	db := openUsersDB(t)

	src, err := openTableSource(context.Background(), db, conn.Generic, "", "users", []string{"id"}, false)
	if err != nil {
		t.Fatalf("openTableSource failed: %v", err)
	}
	defer src.Close()

	if len(src.schema.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(src.schema.Fields))
	}
	if !src.schema.HasPrimaryKey() || src.schema.PrimaryKey[0] != 0 {
		t.Errorf("expected id as primary key, got %v", src.schema.PrimaryKey)
	}

	r, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if r.Get(0) != int64(1) || r.Get(1) != "alice" {
		t.Errorf("unexpected first row: %s", r)
	}
	// Plain copy mode streams clean records.
	if r.Dirty() {
		t.Errorf("expected no changed fields, got %s", r.Changed())
	}

	if _, err := src.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestOpenTableSourceMarksNonKeyColumnsChanged(t *testing.T) {
	db := openUsersDB(t)

	src, err := openTableSource(context.Background(), db, conn.Generic, "", "users", []string{"id"}, true)
	if err != nil {
		t.Fatalf("openTableSource failed: %v", err)
	}
	defer src.Close()

	r, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	// Upsert mode needs an update shape: every column except the key is
	// marked changed, so a rejected insert can fall back to an update.
	want := record.FieldSetOf(1, 2)
	if r.Changed() != want {
		t.Errorf("expected changed %s, got %s", want, r.Changed())
	}
	if r.Get(2) != "alice@example.com" {
		t.Errorf("expected email preserved, got %v", r.Get(2))
	}
}

func TestOpenTableSourceRejectsUnknownKey(t *testing.T) {
	db := openUsersDB(t)

	_, err := openTableSource(context.Background(), db, conn.Generic, "", "users", []string{"uuid"}, true)
	if err == nil {
		t.Fatal("expected error for unknown key column")
	}
}

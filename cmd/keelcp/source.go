package main

import (
	"context"
	"database/sql"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/record"
)

// tableSource is a cursor-backed record source over a full-table select.
// Rows are decoded lazily, one per Next call, so the copy runs in constant
// memory regardless of table size.
type tableSource struct {
	rows    *sql.Rows
	schema  *record.Schema
	indices []int
	changed []int
	dest    []any
}

// openTableSource starts a streaming select over the named table and infers
// a record schema from the result columns. keys names the primary key
// columns; every key must exist in the result set. With markChanged set,
// every non-key column is marked changed on each record, giving rejected
// inserts an update shape to fall back to.
func openTableSource(ctx context.Context, db *sql.DB, dialect conn.Dialect, dbSchema, table string, keys []string, markChanged bool) (*tableSource, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+dialect.QualifyTable(dbSchema, table))
	if err != nil {
		return nil, errors.Wrapf(err, "select from %s", table)
	}

	cols, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "describe source columns")
	}

	fields := make([]record.Field, len(cols))
	for i, c := range cols {
		fields[i] = record.Field{
			Name:  c.Name(),
			Type:  fieldType(c.DatabaseTypeName()),
			Index: i,
		}
	}

	var pk []int
	for _, key := range keys {
		found := -1
		for i, f := range fields {
			if strings.EqualFold(f.Name, key) {
				found = i
				break
			}
		}
		if found < 0 {
			rows.Close()
			return nil, errors.Errorf("key column %q not present in %s", key, table)
		}
		pk = append(pk, found)
	}

	schema, err := record.NewSchema(dbSchema, table, fields, pk)
	if err != nil {
		rows.Close()
		return nil, err
	}

	var changed []int
	if markChanged {
		isKey := make(map[int]bool, len(pk))
		for _, i := range pk {
			isKey[i] = true
		}
		for i := range fields {
			if !isKey[i] {
				changed = append(changed, i)
			}
		}
	}

	src := &tableSource{
		rows:    rows,
		schema:  schema,
		indices: make([]int, len(fields)),
		changed: changed,
		dest:    make([]any, len(fields)),
	}
	for i := range src.indices {
		src.indices[i] = i
	}
	return src, nil
}

// Next decodes the next row into a fresh record, or returns io.EOF at the
// end of the cursor.
func (s *tableSource) Next(ctx context.Context) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, errors.Wrap(err, "read source row")
		}
		return nil, io.EOF
	}

	values := make([]any, len(s.dest))
	for i := range s.dest {
		s.dest[i] = &values[i]
	}
	if err := s.rows.Scan(s.dest...); err != nil {
		return nil, errors.Wrap(err, "scan source row")
	}
	r, err := record.FromRow(s.schema, s.indices, values)
	if err != nil {
		return nil, err
	}
	for _, idx := range s.changed {
		r.Set(idx, values[idx])
	}
	return r, nil
}

// Close releases the cursor.
func (s *tableSource) Close() error {
	return s.rows.Close()
}

// fieldType maps a driver-reported column type to a record field type.
// Unknown vendor types fall back to STRING, which binds unchanged.
func fieldType(dbType string) record.FieldType {
	switch strings.ToUpper(dbType) {
	case "INT", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "TINYINT", "INTEGER", "SERIAL", "BIGSERIAL":
		return record.INT
	case "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "REAL", "DECIMAL", "NUMERIC", "MONEY":
		return record.FLOAT
	case "BOOL", "BOOLEAN", "BIT":
		return record.BOOLEAN
	case "DATE", "TIME", "DATETIME", "DATETIME2", "TIMESTAMP", "TIMESTAMPTZ":
		return record.DATETIME
	case "BLOB", "BYTEA", "BINARY", "VARBINARY", "LONGBLOB", "MEDIUMBLOB":
		return record.BYTES
	case "JSON", "JSONB":
		return record.JSON
	default:
		return record.STRING
	}
}

package query

import (
	"context"
	"io"

	"github.com/keeldb/keel/record"
)

// RecordSource is a finite or infinite single-pass stream of records. Next
// returns io.EOF when the stream is exhausted. Implementations may be backed
// by a network cursor; callers must not assume random access or replay.
type RecordSource interface {
	Next(ctx context.Context) (*record.Record, error)
}

// ChangeSource is a single-pass stream of row changes, ending with io.EOF.
type ChangeSource interface {
	Next(ctx context.Context) (record.RowChange, error)
}

// Records wraps an in-memory slice as a RecordSource.
func Records(recs ...*record.Record) RecordSource {
	return &recordSlice{recs: recs}
}

type recordSlice struct {
	recs []*record.Record
	pos  int
}

func (s *recordSlice) Next(ctx context.Context) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	r := s.recs[s.pos]
	s.pos++
	return r, nil
}

// Changes wraps an in-memory slice as a ChangeSource.
func Changes(changes ...record.RowChange) ChangeSource {
	return &changeSlice{changes: changes}
}

type changeSlice struct {
	changes []record.RowChange
	pos     int
}

func (s *changeSlice) Next(ctx context.Context) (record.RowChange, error) {
	if err := ctx.Err(); err != nil {
		return record.RowChange{}, err
	}
	if s.pos >= len(s.changes) {
		return record.RowChange{}, io.EOF
	}
	c := s.changes[s.pos]
	s.pos++
	return c, nil
}

// RecordFunc adapts a function to a RecordSource.
type RecordFunc func(ctx context.Context) (*record.Record, error)

// Next calls the function.
func (f RecordFunc) Next(ctx context.Context) (*record.Record, error) {
	return f(ctx)
}

package record

import (
	"fmt"
	"strings"
)

// Record is one mutable row of a record type. It tracks two field sets:
// the fetched set (fields populated by the read path or by setters) and the
// changed set (fields modified since construction or fetch). The bulk engine
// batches inserts by the fetched set and updates by the changed set.
type Record struct {
	schema  *Schema
	values  []any
	fetched FieldSet
	changed FieldSet
}

// New creates an empty record of the given type. No fields are fetched or
// changed until a setter runs.
func New(s *Schema) *Record {
	return &Record{
		schema: s,
		values: make([]any, len(s.Fields)),
	}
}

// FromRow builds a record from a fetched row. indices names the schema
// fields the row covers, values carries their column values in the same
// order. Only the fetched set is marked; the changed set stays empty.
func FromRow(s *Schema, indices []int, values []any) (*Record, error) {
	if len(indices) != len(values) {
		return nil, fmt.Errorf("record: row for %q has %d indices but %d values", s.TableName, len(indices), len(values))
	}
	r := New(s)
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.Fields) {
			return nil, fmt.Errorf("record: row for %q references field index %d out of range", s.TableName, idx)
		}
		r.values[idx] = values[i]
		r.fetched.Set(idx)
	}
	return r, nil
}

// Schema returns the record's type descriptor.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Get returns the value of the field at index i, or nil if it was never
// fetched or set.
func (r *Record) Get(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Set stores a value for the field at index i, marking it both fetched and
// changed.
func (r *Record) Set(i int, v any) {
	if i < 0 || i >= len(r.values) {
		panic(fmt.Sprintf("record: set field index %d out of range for %q", i, r.schema.TableName))
	}
	r.values[i] = v
	r.fetched.Set(i)
	r.changed.Set(i)
}

// Fetched returns the set of populated fields.
func (r *Record) Fetched() FieldSet {
	return r.fetched
}

// Changed returns the set of fields modified since construction or the last
// ResetChanges.
func (r *Record) Changed() FieldSet {
	return r.changed
}

// Dirty reports whether any field was modified.
func (r *Record) Dirty() bool {
	return !r.changed.Empty()
}

// ResetChanges clears the changed set, typically after a successful commit.
// Fetched bits are untouched.
func (r *Record) ResetChanges() {
	r.changed = FieldSet{}
}

// PrimaryKey returns the record's identity values in primary-key order. The
// second return value is false when the schema declares no primary key.
func (r *Record) PrimaryKey() ([]any, bool) {
	if !r.schema.HasPrimaryKey() {
		return nil, false
	}
	vals := make([]any, len(r.schema.PrimaryKey))
	for i, idx := range r.schema.PrimaryKey {
		vals[i] = r.values[idx]
	}
	return vals, true
}

// Normalized returns the bind-ready value of a field, passing it through the
// schema's normalization hook when one is registered.
func (r *Record) Normalized(f Field) any {
	v := r.Get(f.Index)
	if r.schema.Normalize != nil {
		return r.schema.Normalize(f, v)
	}
	return v
}

// String renders the record's fetched fields for debugging.
func (r *Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[", r.schema.TableName)
	first := true
	for _, f := range r.schema.Fields {
		if !r.fetched.Test(f.Index) {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", f.Name, r.values[f.Index])
		first = false
	}
	b.WriteByte(']')
	return b.String()
}

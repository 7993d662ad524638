package record

import (
	"context"
	"fmt"

	"github.com/keeldb/keel/conn"
)

// NormalizeFunc converts a field value into a form the target driver can
// bind, e.g. formatting times or widening runes to strings. It is applied to
// every value right before binding. A nil func binds values as-is.
type NormalizeFunc func(f Field, v any) any

// HookFunc is a mutation hook. It receives the full batch about to be (or
// just) flushed and the connection handle it is flushed on. A hook error
// aborts the whole bulk operation.
type HookFunc func(ctx context.Context, batch []*Record, target conn.Handle) error

// Hooks carries the optional per-mutation-kind hooks of a record type. Each
// slot is set once at registration; nil slots are skipped.
type Hooks struct {
	PreInsert  HookFunc
	PostInsert HookFunc
	PreUpdate  HookFunc
	PostUpdate HookFunc
	PreDelete  HookFunc
	PostDelete HookFunc
}

// Pre returns the pre-hook for the given mutation kind, or nil.
func (h Hooks) Pre(k ChangeKind) HookFunc {
	switch k {
	case Add:
		return h.PreInsert
	case Update:
		return h.PreUpdate
	case Delete:
		return h.PreDelete
	}
	return nil
}

// Post returns the post-hook for the given mutation kind, or nil.
func (h Hooks) Post(k ChangeKind) HookFunc {
	switch k {
	case Add:
		return h.PostInsert
	case Update:
		return h.PostUpdate
	case Delete:
		return h.PostDelete
	}
	return nil
}

// Schema is the static descriptor of one record type: table identity, the
// ordered field list, the primary-key subset and the optional hook and
// normalization capabilities. Schemas are created once at type registration
// and treated as read-only afterwards.
type Schema struct {
	SchemaName string
	TableName  string
	Fields     []Field
	PrimaryKey []int // indices into Fields; may be empty

	Hooks     Hooks
	Normalize NormalizeFunc
}

// NewSchema validates and builds a schema descriptor. Field indices must be
// exactly 0..len(fields)-1 in order; primary-key entries must reference
// declared fields.
func NewSchema(schemaName, tableName string, fields []Field, primaryKey []int) (*Schema, error) {
	if tableName == "" {
		return nil, fmt.Errorf("record: schema requires a table name")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("record: schema %q declares no fields", tableName)
	}
	if len(fields) > MaxFields {
		return nil, fmt.Errorf("record: schema %q declares %d fields, limit is %d", tableName, len(fields), MaxFields)
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("record: schema %q field %d has no name", tableName, i)
		}
		if f.Index != i {
			return nil, fmt.Errorf("record: schema %q field %q has index %d, want %d", tableName, f.Name, f.Index, i)
		}
	}
	for _, pk := range primaryKey {
		if pk < 0 || pk >= len(fields) {
			return nil, fmt.Errorf("record: schema %q primary key index %d out of range", tableName, pk)
		}
	}
	return &Schema{
		SchemaName: schemaName,
		TableName:  tableName,
		Fields:     fields,
		PrimaryKey: primaryKey,
	}, nil
}

// MustSchema is NewSchema that panics on error, for static registration.
func MustSchema(schemaName, tableName string, fields []Field, primaryKey []int) *Schema {
	s, err := NewSchema(schemaName, tableName, fields, primaryKey)
	if err != nil {
		panic(err)
	}
	return s
}

// HasPrimaryKey reports whether the schema declares a primary key.
func (s *Schema) HasPrimaryKey() bool {
	return len(s.PrimaryKey) > 0
}

// PrimaryKeyFields returns the primary-key fields in declaration order.
func (s *Schema) PrimaryKeyFields() []Field {
	pks := make([]Field, len(s.PrimaryKey))
	for i, idx := range s.PrimaryKey {
		pks[i] = s.Fields[idx]
	}
	return pks
}

// FieldByName looks a field up by column name.
func (s *Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

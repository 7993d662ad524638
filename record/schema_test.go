package record

import (
	"context"
	"testing"

	"github.com/keeldb/keel/conn"
)

func TestNewSchemaValidation(t *testing.T) {
	fields := []Field{
		{Name: "id", Type: INT, Index: 0},
		{Name: "name", Type: STRING, Index: 1},
	}

	tests := []struct {
		name    string
		table   string
		fields  []Field
		pk      []int
		wantErr bool
	}{
		{"valid", "users", fields, []int{0}, false},
		{"keyless", "audit_log", fields, nil, false},
		{"compound key", "members", fields, []int{0, 1}, false},
		{"no table name", "", fields, nil, true},
		{"no fields", "users", nil, nil, true},
		{"pk out of range", "users", fields, []int{2}, true},
		{"negative pk", "users", fields, []int{-1}, true},
		{"unnamed field", "users", []Field{{Index: 0}}, nil, true},
		{"wrong index", "users", []Field{{Name: "id", Index: 1}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema("app", tt.table, tt.fields, tt.pk)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSchema error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaPrimaryKeyFields(t *testing.T) {
	s := MustSchema("app", "members", []Field{
		{Name: "org", Type: STRING, Index: 0},
		{Name: "user", Type: STRING, Index: 1},
		{Name: "role", Type: STRING, Index: 2},
	}, []int{1, 0})

	if !s.HasPrimaryKey() {
		t.Fatal("expected primary key")
	}
	pks := s.PrimaryKeyFields()
	if len(pks) != 2 || pks[0].Name != "user" || pks[1].Name != "org" {
		t.Errorf("expected [user org] in declaration order, got %v", pks)
	}
}

func TestFieldByName(t *testing.T) {
	s := MustSchema("", "users", []Field{
		{Name: "id", Type: INT, Index: 0},
		{Name: "name", Type: STRING, Index: 1},
	}, []int{0})

	f, ok := s.FieldByName("name")
	if !ok || f.Index != 1 {
		t.Errorf("expected name at index 1, got %v ok=%v", f, ok)
	}
	if _, ok := s.FieldByName("missing"); ok {
		t.Error("expected miss for unknown field")
	}
}

func TestHooksByKind(t *testing.T) {
	var called string
	mark := func(name string) HookFunc {
		return func(ctx context.Context, batch []*Record, target conn.Handle) error {
			called = name
			return nil
		}
	}
	h := Hooks{
		PreInsert:  mark("pre-insert"),
		PostUpdate: mark("post-update"),
	}

	if h.Pre(Add) == nil {
		t.Fatal("expected pre-insert hook")
	}
	_ = h.Pre(Add)(context.Background(), nil, nil)
	if called != "pre-insert" {
		t.Errorf("expected pre-insert, got %s", called)
	}

	if h.Post(Update) == nil {
		t.Fatal("expected post-update hook")
	}
	if h.Pre(Delete) != nil || h.Post(Add) != nil {
		t.Error("expected unset slots to be nil")
	}
}

func TestChangeKindString(t *testing.T) {
	if Add.String() != "insert" || Update.String() != "update" || Delete.String() != "delete" {
		t.Errorf("unexpected kind names: %s %s %s", Add, Update, Delete)
	}
}

package record

import (
	"testing"
)

func TestFieldSetOf(t *testing.T) {
	s := FieldSetOf(0, 2, 5)

	if !s.Test(0) || !s.Test(2) || !s.Test(5) {
		t.Errorf("expected bits 0, 2, 5 set, got %s", s)
	}
	if s.Test(1) || s.Test(3) {
		t.Errorf("expected bits 1, 3 clear, got %s", s)
	}
	if s.Count() != 3 {
		t.Errorf("expected count=3, got %d", s.Count())
	}
}

func TestFieldSetZeroValueIsEmpty(t *testing.T) {
	var s FieldSet
	if !s.Empty() {
		t.Error("expected zero value to be empty")
	}
	if s.Count() != 0 {
		t.Errorf("expected count=0, got %d", s.Count())
	}
}

func TestFieldSetEquality(t *testing.T) {
	a := FieldSetOf(1, 64, 127)
	b := FieldSetOf(127, 64, 1)

	if a != b {
		t.Errorf("expected %s == %s", a, b)
	}

	b.Clear(64)
	if a == b {
		t.Errorf("expected %s != %s after clear", a, b)
	}
}

func TestFieldSetAsMapKey(t *testing.T) {
	groups := map[FieldSet]int{}
	groups[FieldSetOf(0, 1)]++
	groups[FieldSetOf(1, 0)]++
	groups[FieldSetOf(0, 2)]++

	if len(groups) != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", len(groups))
	}
	if groups[FieldSetOf(0, 1)] != 2 {
		t.Errorf("expected {0,1} counted twice, got %d", groups[FieldSetOf(0, 1)])
	}
}

func TestFieldSetHighWord(t *testing.T) {
	s := FieldSetOf(64)

	if s.Test(0) {
		t.Error("bit 64 must not alias bit 0")
	}
	if !s.Test(64) {
		t.Error("expected bit 64 set")
	}

	s.Set(127)
	if s.Count() != 2 {
		t.Errorf("expected count=2, got %d", s.Count())
	}
}

func TestFieldSetClear(t *testing.T) {
	s := FieldSetOf(3, 7)
	s.Clear(3)

	if s.Test(3) {
		t.Error("expected bit 3 cleared")
	}
	if !s.Test(7) {
		t.Error("expected bit 7 still set")
	}

	// Clearing an absent bit is a no-op.
	s.Clear(9)
	if s.Count() != 1 {
		t.Errorf("expected count=1, got %d", s.Count())
	}
}

func TestFieldSetHashDistinguishesWords(t *testing.T) {
	a := FieldSetOf(0)
	b := FieldSetOf(64)

	if a.Hash() == b.Hash() {
		t.Error("expected different digests for bit 0 and bit 64")
	}
	if a.Hash() != FieldSetOf(0).Hash() {
		t.Error("expected digest to be stable")
	}
}

func TestFieldSetString(t *testing.T) {
	if got := FieldSetOf(0, 2, 5).String(); got != "{0,2,5}" {
		t.Errorf("expected {0,2,5}, got %s", got)
	}
	var empty FieldSet
	if got := empty.String(); got != "{}" {
		t.Errorf("expected {}, got %s", got)
	}
}

func TestFieldSetOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for index 128")
		}
	}()
	var s FieldSet
	s.Set(MaxFields)
}

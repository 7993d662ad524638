package record

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/cespare/xxhash"
)

// MaxFields is the largest field index a schema may declare. FieldSet is a
// fixed-width bit vector so that two sets compare with == and a set can be
// used directly as a map key.
const MaxFields = 128

// FieldSet is a fixed-width bitmask over field indices. The zero value is the
// empty set. It identifies exactly which columns of a record are present or
// changed and is the batching key of the bulk engine: two records share a
// compiled statement only if their sets are identical.
type FieldSet struct {
	words [2]uint64
}

// FieldSetOf builds a set from the given field indices.
func FieldSetOf(indices ...int) FieldSet {
	var s FieldSet
	for _, i := range indices {
		s.Set(i)
	}
	return s
}

// Set marks the field at index i as present.
func (s *FieldSet) Set(i int) {
	checkIndex(i)
	s.words[i/64] |= 1 << (uint(i) % 64)
}

// Clear removes the field at index i.
func (s *FieldSet) Clear(i int) {
	checkIndex(i)
	s.words[i/64] &^= 1 << (uint(i) % 64)
}

// Test reports whether the field at index i is present.
func (s FieldSet) Test(i int) bool {
	checkIndex(i)
	return s.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Count returns the number of fields in the set.
func (s FieldSet) Count() int {
	return bits.OnesCount64(s.words[0]) + bits.OnesCount64(s.words[1])
}

// Empty reports whether no field is set.
func (s FieldSet) Empty() bool {
	return s.words[0] == 0 && s.words[1] == 0
}

// Hash returns a stable 64-bit digest of the set, suitable as a compact
// group identity in logs and traces.
func (s FieldSet) Hash() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.words[0])
	binary.LittleEndian.PutUint64(buf[8:16], s.words[1])
	return xxhash.Sum64(buf[:])
}

// String renders the set as a list of indices, e.g. "{0,2,5}".
func (s FieldSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i := 0; i < MaxFields; i++ {
		if !s.Test(i) {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", i)
		first = false
	}
	b.WriteByte('}')
	return b.String()
}

func checkIndex(i int) {
	if i < 0 || i >= MaxFields {
		panic(fmt.Sprintf("record: field index %d out of range [0,%d)", i, MaxFields))
	}
}

package pag

import "fmt"

// LocationSet is a field projection within an aggregate object: a
// (field index, byte offset) pair, per spec.md §3.4. GEP chains
// compose additively into a single NormalGep by summing LocationSets.
type LocationSet struct {
	FieldIdx   int64
	ByteOffset int64
}

// ZeroLocationSet is the identity projection (field 0, byte 0).
var ZeroLocationSet = LocationSet{}

// Add returns the composition of ls and rhs: l.FieldIdx+rhs.FieldIdx,
// l.ByteOffset+rhs.ByteOffset. This is how successive GEP instructions
// along a base→...→use chain accumulate into one offset.
func (l LocationSet) Add(rhs LocationSet) LocationSet {
	return LocationSet{
		FieldIdx:   l.FieldIdx + rhs.FieldIdx,
		ByteOffset: l.ByteOffset + rhs.ByteOffset,
	}
}

// Mod reduces l's field index modulo maxFieldOffset, implementing
// spec.md §3.4's "bounded field expansion": "offset is taken modulo
// the object's max field-offset limit when building GepObjectNodes".
// A non-positive maxFieldOffset (field-insensitive or scalar object)
// collapses everything to field 0.
func (l LocationSet) Mod(maxFieldOffset int64) LocationSet {
	if maxFieldOffset <= 0 {
		return LocationSet{FieldIdx: 0, ByteOffset: 0}
	}
	idx := l.FieldIdx % maxFieldOffset
	if idx < 0 {
		idx += maxFieldOffset
	}
	return LocationSet{FieldIdx: idx, ByteOffset: l.ByteOffset}
}

// IsZero reports whether l is the identity projection.
func (l LocationSet) IsZero() bool {
	return l.FieldIdx == 0 && l.ByteOffset == 0
}

func (l LocationSet) String() string {
	return fmt.Sprintf("<%d, %d>", l.FieldIdx, l.ByteOffset)
}

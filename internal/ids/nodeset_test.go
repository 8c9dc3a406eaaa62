package ids

import "testing"

func TestNodeSetBasic(t *testing.T) {
	s := NewNodeSet()
	if !s.IsEmpty() {
		t.Fatalf("new set should be empty")
	}

	if !s.Add(5) {
		t.Fatalf("first add of 5 should report change")
	}
	if s.Add(5) {
		t.Fatalf("second add of 5 should report no change")
	}
	if !s.Has(5) {
		t.Fatalf("expected 5 to be present")
	}
	if s.Has(6) {
		t.Fatalf("expected 6 to be absent")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len 1, got %d", s.Len())
	}
}

func TestNodeSetUnionIsMonotone(t *testing.T) {
	a := NewNodeSet()
	a.Add(1)
	a.Add(64)
	a.Add(1000)

	b := NewNodeSet()
	b.Add(64)
	b.Add(2000)

	changed := a.UnionWith(b)
	if !changed {
		t.Fatalf("union should have changed a")
	}
	for _, n := range []NodeID{1, 64, 1000, 2000} {
		if !a.Has(n) {
			t.Fatalf("expected %d in union", n)
		}
	}

	if a.UnionWith(b) {
		t.Fatalf("re-union of already-contained set should not change a")
	}
}

func TestNodeSetIntersectsAndContainsAll(t *testing.T) {
	a := NewNodeSet()
	a.Add(1)
	a.Add(2)

	b := NewNodeSet()
	b.Add(2)
	b.Add(3)

	if !a.Intersects(b) {
		t.Fatalf("expected intersection on 2")
	}

	c := NewNodeSet()
	c.Add(3)
	if a.Intersects(c) {
		t.Fatalf("did not expect intersection")
	}

	if !a.ContainsAll(NewNodeSet()) {
		t.Fatalf("every set contains the empty set")
	}
	if a.ContainsAll(b) {
		t.Fatalf("a does not contain b fully")
	}
}

func TestNodeSetForEachAscending(t *testing.T) {
	s := NewNodeSet()
	for _, n := range []NodeID{500, 3, 129, 0, 64} {
		s.Add(n)
	}
	got := s.Slice()
	want := []NodeID{0, 3, 64, 129, 500}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("out of order at %d: got %v want %v", i, got, want)
		}
	}
}

func TestNodeSetCloneIndependence(t *testing.T) {
	a := NewNodeSet()
	a.Add(1)
	b := a.Clone()
	b.Add(2)
	if a.Has(2) {
		t.Fatalf("clone should be independent")
	}
}

func TestAllocatorOverflowPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on overflow")
		}
	}()
	a := &Allocator{kind: "node", max: 1}
	a.Next()
	a.Next() // should panic
}

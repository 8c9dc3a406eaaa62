package scc

import (
	"reflect"
	"testing"

	"github.com/picatz/goa/internal/ids"
)

// adjGraph is a trivial Graph backed by an explicit adjacency map, used
// to exercise Tarjan SCC detection against spec.md §8's S1-S3 fixtures.
type adjGraph struct {
	order []ids.NodeID
	edges map[ids.NodeID][]ids.NodeID
}

func (g *adjGraph) DirectChildren(n ids.NodeID) []ids.NodeID { return g.edges[n] }
func (g *adjGraph) NodeIDs() []ids.NodeID                    { return g.order }

func TestSCCSelfLoop(t *testing.T) {
	// S1: graph {1 -> 1}.
	g := &adjGraph{
		order: []ids.NodeID{1},
		edges: map[ids.NodeID][]ids.NodeID{1: {1}},
	}
	d := NewDetector(g)
	d.Find()

	if d.Rep(1) != 1 {
		t.Fatalf("expected rep(1) == 1")
	}
	if d.SubNodes(1).Len() != 1 || !d.SubNodes(1).Has(1) {
		t.Fatalf("expected sub_nodes(1) == {1}")
	}
	if !d.IsInCycle(1) {
		t.Fatalf("expected is_in_cycle(1) == true")
	}
}

func TestSCCChain(t *testing.T) {
	// S2: graph {1 -> 2, 2 -> 3}; each in its own SCC, no cycles.
	g := &adjGraph{
		order: []ids.NodeID{1, 2, 3},
		edges: map[ids.NodeID][]ids.NodeID{1: {2}, 2: {3}, 3: {}},
	}
	d := NewDetector(g)
	d.Find()

	roots := d.Representatives()
	for _, n := range []ids.NodeID{1, 2, 3} {
		if !roots.Has(n) {
			t.Fatalf("expected %d to be its own representative", n)
		}
		if d.IsInCycle(n) {
			t.Fatalf("node %d should not be in a cycle", n)
		}
		if d.SubNodes(d.Rep(n)).Len() != 1 {
			t.Fatalf("node %d's SCC should be a singleton", n)
		}
	}
}

func TestSCCTrueCycleWithTail(t *testing.T) {
	// S3: graph {1->2, 2->3, 3->4, 3->5, 4->2}.
	// SCCs: {2,3,4}, {1}, {5}; rep stack pop order [1, 2, 5].
	g := &adjGraph{
		order: []ids.NodeID{1, 2, 3, 4, 5},
		edges: map[ids.NodeID][]ids.NodeID{
			1: {2},
			2: {3},
			3: {4, 5},
			4: {2},
			5: {},
		},
	}
	d := NewDetector(g)
	d.Find()

	if d.Rep(1) != 1 {
		t.Fatalf("expected rep(1) == 1, got %d", d.Rep(1))
	}
	if d.Rep(5) != 5 {
		t.Fatalf("expected rep(5) == 5, got %d", d.Rep(5))
	}
	rep234 := d.Rep(2)
	if d.Rep(3) != rep234 || d.Rep(4) != rep234 {
		t.Fatalf("expected 2,3,4 to share a representative")
	}
	sub := d.SubNodes(rep234)
	if sub.Len() != 3 || !sub.Has(2) || !sub.Has(3) || !sub.Has(4) {
		t.Fatalf("expected subNodes(rep) == {2,3,4}, got %v", sub)
	}
	if !d.IsInCycle(2) || !d.IsInCycle(3) || !d.IsInCycle(4) {
		t.Fatalf("expected 2,3,4 to be in a cycle")
	}
	if d.IsInCycle(1) || d.IsInCycle(5) {
		t.Fatalf("expected 1 and 5 to not be in a cycle")
	}

	got := d.RepStack()
	want := []ids.NodeID{1, rep234, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected rep stack pop order %v, got %v", want, got)
	}
}

func TestSCCStaleStateBeforeFind(t *testing.T) {
	g := &adjGraph{order: []ids.NodeID{1}, edges: map[ids.NodeID][]ids.NodeID{1: {}}}
	d := NewDetector(g)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic querying SCC state before Find")
		}
	}()
	d.Rep(1)
}

func TestSCCDeepChainDoesNotOverflowStack(t *testing.T) {
	// A long straight-line chain 1->2->...->N exercises visit's
	// explicit-stack DFS at a depth well beyond what a Go-recursive
	// walk would comfortably sustain in a tight loop; every node should
	// still end up its own singleton SCC, none in a cycle.
	const n = 50000
	order := make([]ids.NodeID, n)
	edges := make(map[ids.NodeID][]ids.NodeID, n)
	for i := 1; i <= n; i++ {
		order[i-1] = ids.NodeID(i)
		if i < n {
			edges[ids.NodeID(i)] = []ids.NodeID{ids.NodeID(i + 1)}
		} else {
			edges[ids.NodeID(i)] = nil
		}
	}
	g := &adjGraph{order: order, edges: edges}
	d := NewDetector(g)
	d.Find()

	if d.IsInCycle(1) || d.IsInCycle(ids.NodeID(n)) {
		t.Fatalf("chain nodes should not be in a cycle")
	}
	if d.SubNodes(d.Rep(1)).Len() != 1 {
		t.Fatalf("expected node 1's SCC to be a singleton")
	}
	stack := d.RepStack()
	if len(stack) != n {
		t.Fatalf("expected %d representatives, got %d", n, len(stack))
	}
	if stack[0] != 1 || stack[n-1] != ids.NodeID(n) {
		t.Fatalf("expected rep stack to start at 1 and end at %d, got [%d ... %d]", n, stack[0], stack[n-1])
	}
}

func TestSCCFindIsIdempotentAcrossReruns(t *testing.T) {
	g := &adjGraph{
		order: []ids.NodeID{1, 2, 3, 4, 5},
		edges: map[ids.NodeID][]ids.NodeID{
			1: {2},
			2: {3},
			3: {4, 5},
			4: {2},
			5: {},
		},
	}
	d := NewDetector(g)
	d.Find()
	first := d.RepStack()
	d.Find()
	second := d.RepStack()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic re-run, got %v then %v", first, second)
	}
}

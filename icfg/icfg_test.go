package icfg

import (
	"testing"
)

type instr struct{ name string }
type fn struct{ name string }

func TestGetOrAddIsMemoised(t *testing.T) {
	c := New()
	f := &fn{"f"}
	i := &instr{"i1"}

	a := c.GetOrAddIntraNode(f, i)
	b := c.GetOrAddIntraNode(f, i)
	if a != b {
		t.Fatalf("expected GetOrAddIntraNode to memoise on instr, got distinct ids %d and %d", a, b)
	}

	e1 := c.GetOrAddFunEntryNode(f)
	e2 := c.GetOrAddFunEntryNode(f)
	if e1 != e2 {
		t.Fatalf("expected GetOrAddFunEntryNode to memoise on fn, got distinct ids %d and %d", e1, e2)
	}
}

func TestCallAndRetArePaired(t *testing.T) {
	c := New()
	f := &fn{"f"}
	call := &instr{"call"}

	callNode := c.GetOrAddCallNode(f, call)
	retNode, ok := c.RetNodeOf(call)
	if !ok {
		t.Fatalf("expected GetOrAddCallNode to also create the paired RetNode")
	}
	if callNode == retNode {
		t.Fatalf("expected distinct Call/Ret node ids, got both n%d", callNode)
	}
}

func TestIntraEdgeWithinSameFunctionSucceeds(t *testing.T) {
	c := New()
	f := &fn{"f"}
	a := c.GetOrAddIntraNode(f, &instr{"a"})
	b := c.GetOrAddIntraNode(f, &instr{"b"})
	e := c.AddIntraEdge(a, b)
	if e.Kind() != IntraCF {
		t.Fatalf("expected an IntraCF edge, got %s", KindString(e.Kind()))
	}
}

func TestIntraEdgeAcrossFunctionsPanics(t *testing.T) {
	c := New()
	f1 := &fn{"f1"}
	f2 := &fn{"f2"}
	a := c.GetOrAddIntraNode(f1, &instr{"a"})
	b := c.GetOrAddIntraNode(f2, &instr{"b"})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected AddIntraEdge across functions to panic (invariant I1)")
		}
	}()
	c.AddIntraEdge(a, b)
}

func TestConditionalIntraEdgeCarriesCondAndBranch(t *testing.T) {
	c := New()
	f := &fn{"f"}
	a := c.GetOrAddIntraNode(f, &instr{"a"})
	b := c.GetOrAddIntraNode(f, &instr{"b"})
	e := c.AddConditionalIntraEdge(a, b, "cond-value", 1)

	cond, branch, has := e.(*Edge).Cond()
	if !has || cond != "cond-value" || branch != 1 {
		t.Fatalf("expected the edge to carry (cond, branchID), got (%v, %d, %v)", cond, branch, has)
	}
}

// fakeCG is a minimal PTACallGraph fixture for UpdateCallGraph.
type fakeCG struct {
	indirect map[any][]any
}

func (f *fakeCG) IndirectCallSites() []any {
	out := make([]any, 0, len(f.indirect))
	for k := range f.indirect {
		out = append(out, k)
	}
	return out
}
func (f *fakeCG) ResolvedCallees(instr any) []any { return f.indirect[instr] }

func TestUpdateCallGraphIsIdempotent(t *testing.T) {
	c := New()
	caller := &fn{"caller"}
	callee := &fn{"callee"}
	call := &instr{"call"}
	c.GetOrAddCallNode(caller, call)

	cg := &fakeCG{indirect: map[any][]any{call: {callee}}}

	c.UpdateCallGraph(cg)
	edgesAfterFirst := c.g.NumEdges()
	c.UpdateCallGraph(cg)
	if c.g.NumEdges() != edgesAfterFirst {
		t.Fatalf("expected UpdateCallGraph to be idempotent, edge count grew from %d to %d", edgesAfterFirst, c.g.NumEdges())
	}
}

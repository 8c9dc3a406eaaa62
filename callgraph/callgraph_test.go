package callgraph

import "testing"

type fn struct{ name string }
type instr struct{ name string }

func TestAddCallSiteReturnsExistingID(t *testing.T) {
	g := New()
	caller, callee := &fn{"caller"}, &fn{"callee"}
	call := &instr{"call"}

	id1 := g.AddDirectCallSite(caller, callee, call, CallRet)
	id2 := g.AddCallSite(call, callee)
	if id1 != id2 {
		t.Fatalf("expected re-adding the same (instr, callee) to return the same CallSiteId, got %d and %d", id1, id2)
	}

	gotInstr, gotCallee, ok := g.CallSiteOf(id1)
	if !ok || gotInstr != call || gotCallee != callee {
		t.Fatalf("CallSiteOf did not round-trip: got (%v, %v, %v)", gotInstr, gotCallee, ok)
	}
}

func TestDirectAndIndirectCallSitesAreDisjoint(t *testing.T) {
	g := New()
	caller, calleeA, calleeB := &fn{"caller"}, &fn{"a"}, &fn{"b"}
	directCall := &instr{"direct"}
	indirectCall := &instr{"indirect"}

	g.AddDirectCallSite(caller, calleeA, directCall, CallRet)
	g.AddIndirectCallSite(caller, calleeB, indirectCall, CallRet)

	edgeA := g.EdgesFrom(caller)
	if len(edgeA) != 2 {
		t.Fatalf("expected two edges from caller (one per callee), got %d", len(edgeA))
	}
	for _, e := range edgeA {
		switch e.Callee {
		case calleeA:
			if e.Direct.IsEmpty() || !e.Indirect.IsEmpty() {
				t.Fatalf("expected calleeA's edge to carry only a direct callsite")
			}
		case calleeB:
			if e.Indirect.IsEmpty() || !e.Direct.IsEmpty() {
				t.Fatalf("expected calleeB's edge to carry only an indirect callsite")
			}
		}
	}
}

func TestIndirectCallSitesAndResolvedCallees(t *testing.T) {
	g := New()
	caller, calleeA, calleeB := &fn{"caller"}, &fn{"a"}, &fn{"b"}
	fp := &instr{"fp()"}

	g.MarkIndirectInstr(fp) // recorded at PAG-build time, before any callee resolves
	sites := g.IndirectCallSites()
	if len(sites) != 1 || sites[0] != fp {
		t.Fatalf("expected the unresolved indirect callsite to be tracked, got %v", sites)
	}
	if callees := g.ResolvedCallees(fp); len(callees) != 0 {
		t.Fatalf("expected zero resolved callees before any points-to fact, got %v", callees)
	}

	g.AddIndirectCallSite(caller, calleeA, fp, CallRet)
	g.AddIndirectCallSite(caller, calleeB, fp, CallRet)

	callees := g.ResolvedCallees(fp)
	if len(callees) != 2 {
		t.Fatalf("expected both callees resolved for fp, got %v", callees)
	}
}

func TestReachabilityDiagnosesOrphans(t *testing.T) {
	g := New()
	root, reachable, orphan := &fn{"root"}, &fn{"reachable"}, &fn{"orphan"}
	g.SetRoot(root)
	g.AddDirectCallSite(root, reachable, &instr{"c1"}, CallRet)
	g.GetOrAddNode(orphan) // present in the graph but never called

	diags := g.CheckReachability()
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic for the orphan function, got %v", diags)
	}
	if !g.IsReachable(root) || !g.IsReachable(reachable) {
		t.Fatalf("expected root and reachable to be marked reachable")
	}
	if g.IsReachable(orphan) {
		t.Fatalf("expected orphan to be marked unreachable")
	}
}

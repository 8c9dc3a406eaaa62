package pta

import (
	"testing"

	"github.com/picatz/goa/callgraph"
	"github.com/picatz/goa/cg"
	"github.com/picatz/goa/icfg"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/vfg"
)

type testSymtab struct {
	fi map[ids.SymID]bool
}

func (s testSymtab) ValSym(v any) ids.SymID     { return v.(ids.SymID) }
func (s testSymtab) ObjSym(v any) ids.SymID     { return v.(ids.SymID) }
func (s testSymtab) RetSym(fn any) ids.SymID    { return fn.(ids.SymID) }
func (s testSymtab) VarArgSym(fn any) ids.SymID { return fn.(ids.SymID) }
func (s testSymtab) ObjInfo(sym ids.SymID) pag.ObjectInfo {
	return pag.ObjectInfo{MaxFieldOffset: 8, IsFieldInsensitive: s.fi[sym]}
}
func (s testSymtab) BlackHoleID() ids.SymID { return 0 }
func (s testSymtab) NullID() ids.SymID      { return 1 }
func (s testSymtab) BlkPtrID() ids.SymID    { return 2 }
func (s testSymtab) ConstantID() ids.SymID  { return 3 }

func newTestPAG(fi map[ids.SymID]bool) *pag.PAG {
	return pag.New(testSymtab{fi: fi}, nil, pag.DefaultOptions(), 4)
}

func TestAliasDisjointIsNoAlias(t *testing.T) {
	p := newTestPAG(nil)
	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	const a, oa, b, ob = 10, 11, 12, 13
	bv.AddPts(a, oa)
	bv.AddPts(b, ob)

	if got := bv.Alias(a, b); got != NoAlias {
		t.Fatalf("expected NoAlias for disjoint points-to sets, got %s", got)
	}
}

func TestAliasSingletonMatchIsMustAlias(t *testing.T) {
	p := newTestPAG(nil)
	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	const a, b, o = 20, 21, 22
	bv.AddPts(a, o)
	bv.AddPts(b, o)

	if got := bv.Alias(a, b); got != MustAlias {
		t.Fatalf("expected MustAlias for matching singleton points-to sets, got %s", got)
	}
}

func TestAliasMultiMemberOverlapIsMayAlias(t *testing.T) {
	p := newTestPAG(nil)
	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	const a, b, o1, o2 = 30, 31, 32, 33
	bv.AddPts(a, o1)
	bv.AddPts(a, o2)
	bv.AddPts(b, o2)

	if got := bv.Alias(a, b); got != MayAlias {
		t.Fatalf("expected MayAlias for an overlapping but non-identical pair, got %s", got)
	}
}

func TestAliasThroughBlackHoleIsMayAlias(t *testing.T) {
	p := newTestPAG(nil)
	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	const a = 40
	bv.AddPts(a, p.BlackHoleObject())
	const b, ob = 41, 42
	bv.AddPts(b, ob)

	if got := bv.Alias(a, b); got != MayAlias {
		t.Fatalf("expected MayAlias whenever either side reaches the black-hole object, got %s", got)
	}
}

func TestSolvePropagatesCopyChain(t *testing.T) {
	p := newTestPAG(nil)
	const o, a, b, c = 50, 51, 52, 53
	p.AddAddr(o, a) // a = &o
	p.AddCopy(a, b) // b = a
	p.AddCopy(b, c) // c = b

	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))
	bv.Solve()

	pts := bv.GetPts(c)
	if !pts.Has(o) {
		t.Fatalf("expected c's points-to set to contain o after a copy chain, got %s", pts)
	}
}

func TestSolvePropagatesLoadStore(t *testing.T) {
	p := newTestPAG(nil)
	// o1, o2 are two distinct objects; cell is a third object that xp
	// points to, used as the indirection cell for *xp = y; z = *xp.
	const o1, o2, cell, x, y, xp, z = 60, 61, 66, 62, 63, 64, 65
	p.AddAddr(o1, x)     // x = &o1 (unused by the assertion, establishes x as a value)
	p.AddAddr(o2, y)     // y = &o2
	p.AddAddr(cell, xp)  // xp = &cell
	p.AddStore(y, xp, 0) // *xp = y
	p.AddLoad(xp, z)     // z = *xp

	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))
	bv.Solve()

	if pts := bv.GetPts(z); !pts.Has(o2) {
		t.Fatalf("expected z to point to o2 after *xp = y; z = *xp, got %s", pts)
	}
}

func TestSolveFieldSensitiveGep(t *testing.T) {
	p := newTestPAG(nil)
	const o, a, b = 70, 71, 72
	p.AddAddr(o, a) // a = &o
	p.AddGep(a, b, pag.LocationSet{FieldIdx: 1}, true) // b = &a.field1

	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))
	bv.Solve()

	pts := bv.GetPts(b)
	if pts.Len() != 1 {
		t.Fatalf("expected b to point to exactly one field-projected object, got %s", pts)
	}
	var field ids.NodeID
	pts.ForEach(func(n ids.NodeID) bool { field = n; return true })
	gob, ok := p.MustNode(field).(*pag.GepObjectNode)
	if !ok {
		t.Fatalf("expected b's pointee to be a GepObjectNode, got %T", p.MustNode(field))
	}
	if gob.Base != ids.NodeID(o) || gob.Location.FieldIdx != 1 {
		t.Fatalf("expected field projection base=o field=1, got base=%d field=%d", gob.Base, gob.Location.FieldIdx)
	}
}

func TestNormalizePtsCollapsesFieldInsensitiveObject(t *testing.T) {
	p := newTestPAG(map[ids.SymID]bool{80: true}) // object 80 is statically field-insensitive
	const o, a, b = 80, 81, 82
	p.AddAddr(o, a)
	p.AddGep(a, b, pag.LocationSet{FieldIdx: 2}, true)

	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))
	bv.Solve()

	raw := bv.GetPts(b)
	norm := bv.NormalizePts(raw)

	fi := p.FieldInsensitiveNodeOf(ids.NodeID(o))
	if !norm.Has(fi) {
		t.Fatalf("expected normalize_pts to collapse the field projection to the FI node, got %s", norm)
	}
}

type stubResolver struct {
	obj  ids.NodeID
	fn   any
	info CalleeInfo
}

func (r stubResolver) FuncOfObject(obj ids.NodeID) (any, bool) {
	if obj == r.obj {
		return r.fn, true
	}
	return nil, false
}

func (r stubResolver) CalleeInfo(fn any) CalleeInfo { return r.info }

func TestSolveResolvesIndirectCallAndWiresEverything(t *testing.T) {
	p := newTestPAG(nil)
	const (
		fnObjSym        ids.SymID = 100
		fnPtrSym        ids.SymID = 101
		actualArgSym    ids.SymID = 102
		actualRetSym    ids.SymID = 103
		formalArgSym    ids.SymID = 104
		formalRetSym    ids.SymID = 105
		actualArgObjSym ids.SymID = 110
		actualRetObjSym ids.SymID = 111
		formalArgObjSym ids.SymID = 112
		formalRetObjSym ids.SymID = 113
	)
	p.AddAddr(fnObjSym, fnPtrSym)
	p.AddAddr(actualArgObjSym, actualArgSym)
	p.AddAddr(actualRetObjSym, actualRetSym)
	p.AddAddr(formalArgObjSym, formalArgSym)
	p.AddAddr(formalRetObjSym, formalRetSym)

	icfgG := icfg.New()
	cgphG := callgraph.New()
	vfgG := vfg.Build(p)
	cgG := cg.BuildFromPAG(p)

	callerFn, calleeFn := "caller", "callee"
	instr := "call fp()"
	callNode := icfgG.GetOrAddCallNode(callerFn, instr)
	retNode, _ := icfgG.RetNodeOf(instr)

	bv := New(p, icfgG, cgG, cgphG, vfgG)
	bv.SetCalleeResolver(stubResolver{
		obj: ids.NodeID(fnObjSym),
		fn:  calleeFn,
		info: CalleeInfo{
			Fn:           calleeFn,
			FormalParams: []ids.SymID{formalArgSym},
			FormalRetSym: formalRetSym,
		},
	})
	bv.RegisterIndirectSite(&IndirectSite{
		Instr:        instr,
		Caller:       callerFn,
		ICFGCallNode: callNode,
		FnPtrNode:    ids.NodeID(fnPtrSym),
		ActualParams: []ids.SymID{actualArgSym},
		ActualRetSym: actualRetSym,
	})

	bv.Solve()

	callees := cgphG.ResolvedCallees(instr)
	if len(callees) != 1 || callees[0] != calleeFn {
		t.Fatalf("expected callee to be resolved for the indirect site, got %v", callees)
	}

	entry := icfgG.GetOrAddFunEntryNode(calleeFn)
	exit := icfgG.GetOrAddFunExitNode(calleeFn)
	callEdges := icfgG.Graph().OutEdges(callNode, icfg.CallCF)
	if len(callEdges) != 1 || callEdges[0].Dst() != entry {
		t.Fatalf("expected a CallCF edge callNode->entry, got %v", callEdges)
	}
	retEdges := icfgG.Graph().OutEdges(exit, icfg.RetCF)
	if len(retEdges) != 1 || retEdges[0].Dst() != retNode {
		t.Fatalf("expected a RetCF edge exit->retNode, got %v", retEdges)
	}

	actualArgDef, _ := vfgG.DefOf(ids.NodeID(actualArgSym))
	formalArgDef, _ := vfgG.DefOf(ids.NodeID(formalArgSym))
	callVF := vfgG.Graph().OutEdges(actualArgDef, vfg.CallDirectVF)
	if len(callVF) != 1 || callVF[0].Dst() != formalArgDef {
		t.Fatalf("expected a CallDirectVF edge actualArg->formalArg, got %v", callVF)
	}

	formalRetDef, _ := vfgG.DefOf(ids.NodeID(formalRetSym))
	actualRetDef, _ := vfgG.DefOf(ids.NodeID(actualRetSym))
	retVF := vfgG.Graph().OutEdges(formalRetDef, vfg.RetDirectVF)
	if len(retVF) != 1 || retVF[0].Dst() != actualRetDef {
		t.Fatalf("expected a RetDirectVF edge formalRet->actualRet, got %v", retVF)
	}
}

// TestSolveWiresIndirectCallWithNoPriorFormalDef exercises the gap a
// prior build of this analysis silently dropped: a formal parameter
// and actual-return temp are never the dst of an Addr/Copy/etc. edge
// (they're defined only by a Call/Ret edge, which pass1DefNodes
// deliberately excludes), so unlike
// TestSolveResolvesIndirectCallAndWiresEverything this test adds no
// synthetic AddAddr edges onto formalArgSym/formalRetSym — exactly
// the shape a real ssair-built program hands ConnectCallerAndCallee.
func TestSolveWiresIndirectCallWithNoPriorFormalDef(t *testing.T) {
	p := newTestPAG(nil)
	const (
		fnObjSym     ids.SymID = 200
		fnPtrSym     ids.SymID = 201
		actualArgSym ids.SymID = 202
		actualRetSym ids.SymID = 203
		formalArgSym ids.SymID = 204
		formalRetSym ids.SymID = 205
	)
	p.AddAddr(fnObjSym, fnPtrSym)

	icfgG := icfg.New()
	cgphG := callgraph.New()
	vfgG := vfg.Build(p)
	cgG := cg.BuildFromPAG(p)

	callerFn, calleeFn := "caller2", "callee2"
	instr := "call fp2()"
	callNode := icfgG.GetOrAddCallNode(callerFn, instr)

	bv := New(p, icfgG, cgG, cgphG, vfgG)
	bv.SetCalleeResolver(stubResolver{
		obj: ids.NodeID(fnObjSym),
		fn:  calleeFn,
		info: CalleeInfo{
			Fn:           calleeFn,
			FormalParams: []ids.SymID{formalArgSym},
			FormalRetSym: formalRetSym,
		},
	})
	bv.RegisterIndirectSite(&IndirectSite{
		Instr:        instr,
		Caller:       callerFn,
		ICFGCallNode: callNode,
		FnPtrNode:    ids.NodeID(fnPtrSym),
		ActualParams: []ids.SymID{actualArgSym},
		ActualRetSym: actualRetSym,
	})

	bv.Solve()

	actualArgDef, ok := vfgG.DefOf(ids.NodeID(actualArgSym))
	if !ok {
		t.Fatal("expected ConnectCallerAndCallee to allocate a def node for the actual argument")
	}
	formalArgDef, ok := vfgG.DefOf(ids.NodeID(formalArgSym))
	if !ok {
		t.Fatal("expected ConnectCallerAndCallee to allocate a def node for the formal parameter")
	}
	callVF := vfgG.Graph().OutEdges(actualArgDef, vfg.CallDirectVF)
	if len(callVF) != 1 || callVF[0].Dst() != formalArgDef {
		t.Fatalf("expected a CallDirectVF edge actualArg->formalArg even with no prior def, got %v", callVF)
	}

	formalRetDef, ok := vfgG.DefOf(ids.NodeID(formalRetSym))
	if !ok {
		t.Fatal("expected ConnectCallerAndCallee to allocate a def node for the formal return")
	}
	actualRetDef, ok := vfgG.DefOf(ids.NodeID(actualRetSym))
	if !ok {
		t.Fatal("expected ConnectCallerAndCallee to allocate a def node for the actual-return temp")
	}
	retVF := vfgG.Graph().OutEdges(formalRetDef, vfg.RetDirectVF)
	if len(retVF) != 1 || retVF[0].Dst() != actualRetDef {
		t.Fatalf("expected a RetDirectVF edge formalRet->actualRet even with no prior def, got %v", retVF)
	}
}

func TestClearPtsRetractsAFact(t *testing.T) {
	p := newTestPAG(nil)
	bv := New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	const n, o ids.NodeID = 90, 91
	bv.AddPts(n, o)
	if !bv.GetPts(n).Has(o) {
		t.Fatalf("expected o in pts(n) right after AddPts")
	}
	bv.ClearPts(n, o)
	if bv.GetPts(n).Has(o) {
		t.Fatalf("expected ClearPts to retract the fact")
	}
}

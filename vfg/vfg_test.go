package vfg

import (
	"testing"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
)

type testSymtab struct{}

func (testSymtab) ValSym(v any) ids.SymID     { return v.(ids.SymID) }
func (testSymtab) ObjSym(v any) ids.SymID     { return v.(ids.SymID) }
func (testSymtab) RetSym(fn any) ids.SymID    { return fn.(ids.SymID) }
func (testSymtab) VarArgSym(fn any) ids.SymID { return fn.(ids.SymID) }
func (testSymtab) ObjInfo(sym ids.SymID) pag.ObjectInfo {
	return pag.ObjectInfo{MaxFieldOffset: 8}
}
func (testSymtab) BlackHoleID() ids.SymID { return 0 }
func (testSymtab) NullID() ids.SymID      { return 1 }
func (testSymtab) BlkPtrID() ids.SymID    { return 2 }
func (testSymtab) ConstantID() ids.SymID  { return 3 }

func newTestPAG() *pag.PAG {
	return pag.New(testSymtab{}, nil, pag.DefaultOptions(), 4)
}

func TestEachTopLevelValueGetsExactlyOneDefNode(t *testing.T) {
	p := newTestPAG()
	const o, a, b = 10, 11, 12
	p.AddAddr(o, a) // a = &o
	p.AddCopy(a, b) // b = a

	v := Build(p)

	aDef, ok := v.DefOf(a)
	if !ok {
		t.Fatalf("expected a def node for a")
	}
	bDef, ok := v.DefOf(b)
	if !ok {
		t.Fatalf("expected a def node for b")
	}
	if aDef == bDef {
		t.Fatalf("a and b must not share a definition node")
	}

	aNode, _ := v.Graph().Node(aDef)
	if aNode.Kind() != KindAddr {
		t.Fatalf("expected a's def node to be KindAddr, got %s", aNode.Kind())
	}
	bNode, _ := v.Graph().Node(bDef)
	if bNode.Kind() != KindCopy {
		t.Fatalf("expected b's def node to be KindCopy, got %s", bNode.Kind())
	}

	edges := v.Graph().OutEdges(aDef, IntraDirectVF)
	if len(edges) != 1 || edges[0].Dst() != bDef {
		t.Fatalf("expected one IntraDirectVF edge a->b, got %v", edges)
	}
}

func TestMultipleIncomingCopiesBecomePhi(t *testing.T) {
	p := newTestPAG()
	const a, b, c = 20, 21, 22
	p.AddCopy(a, c) // c receives from two predecessors: a phi merge
	p.AddCopy(b, c)

	v := Build(p)

	cDef, ok := v.DefOf(c)
	if !ok {
		t.Fatalf("expected a def node for c")
	}
	cNode, _ := v.Graph().Node(cDef)
	if cNode.Kind() != KindPhi {
		t.Fatalf("expected c's def node to be KindPhi, got %s", cNode.Kind())
	}
	if len(cNode.Operands()) != 2 {
		t.Fatalf("expected two ordered operands, got %v", cNode.Operands())
	}
	if cNode.Operands()[0] != ids.NodeID(a) || cNode.Operands()[1] != ids.NodeID(b) {
		t.Fatalf("expected operands ordered by source id, got %v", cNode.Operands())
	}
}

func TestCmpGetsSingleNodeRegardlessOfOperandCount(t *testing.T) {
	p := newTestPAG()
	const x, y, z = 30, 31, 32
	p.AddCmp([]ids.SymID{x, y}, z) // z = x cmp y

	v := Build(p)

	zDef, ok := v.DefOf(z)
	if !ok {
		t.Fatalf("expected a def node for z")
	}
	zNode, _ := v.Graph().Node(zDef)
	if zNode.Kind() != KindCmp {
		t.Fatalf("expected z's def node to be KindCmp, got %s", zNode.Kind())
	}
	if len(zNode.Operands()) != 2 {
		t.Fatalf("expected two operands for cmp, got %v", zNode.Operands())
	}
}

func TestDirectDefEdgesExcludeCallAndRet(t *testing.T) {
	p := newTestPAG()
	const callerFn, calleeFn ids.SymID = 40, 41
	const actual, formal ids.SymID = 42, 43
	p.AddCall(actual, formal, ids.NodeID(99))

	v := Build(p)
	_ = callerFn
	_ = calleeFn

	if _, ok := v.DefOf(ids.NodeID(formal)); ok {
		t.Fatalf("expected no intra-procedural def node to be synthesised from a Call edge")
	}
}

func TestConnectCallerAndCalleeWiresDirectFamilies(t *testing.T) {
	p := newTestPAG()
	const actualArg, formalArg, actualRet, formalRet = 50, 51, 52, 53
	p.AddAddr(60, actualArg) // actualArg defined in the caller
	p.AddAddr(61, formalArg) // formalArg defined in the callee
	p.AddAddr(62, formalRet) // formalRet defined in the callee
	p.AddAddr(63, actualRet) // actualRet defined in the caller

	v := Build(p)

	const csid ids.CallSiteID = 7
	out := v.ConnectCallerAndCallee(csid,
		[]ids.NodeID{actualArg}, []ids.NodeID{formalArg},
		actualRet, formalRet)

	if len(out) != 2 {
		t.Fatalf("expected one CallDirectVF and one RetDirectVF edge, got %d", len(out))
	}

	actualArgDef, _ := v.DefOf(actualArg)
	formalArgDef, _ := v.DefOf(formalArg)
	callEdges := v.Graph().OutEdges(actualArgDef, CallDirectVF)
	if len(callEdges) != 1 || callEdges[0].Dst() != formalArgDef {
		t.Fatalf("expected CallDirectVF actualArg->formalArg, got %v", callEdges)
	}
	if e, ok := callEdges[0].(*Edge); !ok || e.CallSiteID() != csid {
		t.Fatalf("expected CallDirectVF edge labelled with csid %d", csid)
	}

	formalRetDef, _ := v.DefOf(formalRet)
	actualRetDef, _ := v.DefOf(actualRet)
	retEdges := v.Graph().OutEdges(formalRetDef, RetDirectVF)
	if len(retEdges) != 1 || retEdges[0].Dst() != actualRetDef {
		t.Fatalf("expected RetDirectVF formalRet->actualRet, got %v", retEdges)
	}
}

func TestConnectCallerAndCalleeAllocatesMissingDefNodes(t *testing.T) {
	p := newTestPAG()
	const actualArg, formalArg, actualRet, formalRet = 90, 91, 92, 93

	v := Build(p)
	if _, ok := v.DefOf(formalArg); ok {
		t.Fatalf("expected no pre-existing def node for a bare formal parameter")
	}

	const csid ids.CallSiteID = 9
	out := v.ConnectCallerAndCallee(csid,
		[]ids.NodeID{actualArg}, []ids.NodeID{formalArg},
		actualRet, formalRet)
	if len(out) != 2 {
		t.Fatalf("expected one CallDirectVF and one RetDirectVF edge even with no prior defs, got %d", len(out))
	}

	formalArgDef, ok := v.DefOf(formalArg)
	if !ok {
		t.Fatalf("expected ConnectCallerAndCallee to allocate a def node for the formal parameter")
	}
	if node, _ := v.Graph().Node(formalArgDef); node.Kind() != KindFormalParam {
		t.Fatalf("expected the allocated formal-parameter node to be KindFormalParam, got %s", node.Kind())
	}

	actualRetDef, ok := v.DefOf(actualRet)
	if !ok {
		t.Fatalf("expected ConnectCallerAndCallee to allocate a def node for the actual-return temp")
	}
	if node, _ := v.Graph().Node(actualRetDef); node.Kind() != KindActualRet {
		t.Fatalf("expected the allocated actual-return node to be KindActualRet, got %s", node.Kind())
	}

	actualArgDef, ok := v.DefOf(actualArg)
	if !ok {
		t.Fatalf("expected ConnectCallerAndCallee to allocate a def node for the actual argument")
	}
	if node, _ := v.Graph().Node(actualArgDef); node.Kind() != KindRootValue {
		t.Fatalf("expected the allocated actual-argument node to be KindRootValue, got %s", node.Kind())
	}
}

func TestConnectCallerAndCalleeIsIdempotent(t *testing.T) {
	p := newTestPAG()
	const actualArg, formalArg = 70, 71
	p.AddAddr(80, actualArg)
	p.AddAddr(81, formalArg)

	v := Build(p)
	const csid ids.CallSiteID = 3
	v.ConnectCallerAndCallee(csid, []ids.NodeID{actualArg}, []ids.NodeID{formalArg}, 0, 0)
	v.ConnectCallerAndCallee(csid, []ids.NodeID{actualArg}, []ids.NodeID{formalArg}, 0, 0)

	actualArgDef, _ := v.DefOf(actualArg)
	edges := v.Graph().OutEdges(actualArgDef, CallDirectVF)
	if len(edges) != 1 {
		t.Fatalf("expected re-connecting the same callsite to not duplicate the edge, got %d edges", len(edges))
	}
}

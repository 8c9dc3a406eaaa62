// Package vfg implements the top-level Value-Flow Graph: the def-use
// graph layered over PAG (spec.md §3.8, §4.7). Build constructs the
// top-level definition nodes and their direct value-flow edges, and
// ConnectCallerAndCallee adds the direct call and return edges. The
// SVFG memory-SSA node kinds and indirect edge kinds are declared
// here, but nothing in this package constructs them.
package vfg

import (
	"fmt"
	"sort"

	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
)

// NodeKind discriminates the closed set of VFG/SVFG node variants.
type NodeKind uint8

const (
	KindAddr NodeKind = iota
	KindCopy
	KindGep
	KindLoad
	KindStore
	KindCmp
	KindBinaryOp
	KindUnaryOp
	KindPhi
	// SVFG memory-SSA additions (spec.md §3.8/§4.7).
	KindFormalIn
	KindFormalOut
	KindActualIn
	KindActualOut
	KindMssaPhi
	// Call-boundary definitions ConnectCallerAndCallee allocates
	// on demand, mirroring SVF's FormalParmVFGNode/ActualRetVFGNode:
	// these PAG nodes are never the dst of an intra-procedural
	// directDefKinds edge, so pass1DefNodes never sees them, yet they
	// still need a defOf entry before a Call*/Ret*VF edge can name them
	// as an endpoint.
	KindFormalParam
	KindActualRet
	// KindRootValue is the fallback for any other PAG node
	// ConnectCallerAndCallee is handed with no defOf entry (e.g. a
	// caller's own parameter forwarded unchanged as an actual
	// argument): a value with no intra-procedural def visible to this
	// pass.
	KindRootValue
)

func (k NodeKind) String() string {
	switch k {
	case KindAddr:
		return "Addr"
	case KindCopy:
		return "Copy"
	case KindGep:
		return "Gep"
	case KindLoad:
		return "Load"
	case KindStore:
		return "Store"
	case KindCmp:
		return "Cmp"
	case KindBinaryOp:
		return "BinaryOp"
	case KindUnaryOp:
		return "UnaryOp"
	case KindPhi:
		return "IntraPhi"
	case KindFormalIn:
		return "FormalIn"
	case KindFormalOut:
		return "FormalOut"
	case KindActualIn:
		return "ActualIn"
	case KindActualOut:
		return "ActualOut"
	case KindMssaPhi:
		return "MssaPhi"
	case KindFormalParam:
		return "FormalParam"
	case KindActualRet:
		return "ActualRet"
	case KindRootValue:
		return "RootValue"
	default:
		return "UnknownVFGNodeKind"
	}
}

// Node is a VFG/SVFG node: either a top-level value-definition node
// (def(PagNode) = this, invariant V1) with its ordered operand PAG
// nodes, or a memory-SSA node (SVFG only) labelled with a PointsTo set.
type Node struct {
	id         ids.NodeID
	kind       NodeKind
	pagNode    ids.NodeID // the PAG node this is the definition of (top-level kinds)
	operands   []ids.NodeID
	csid       ids.CallSiteID // set for memory-SSA nodes tied to a callsite
	fn         any            // owning function, for memory-SSA nodes
	pointsTo   *ids.NodeSet   // SVFG memory-SSA region label
}

func (n *Node) ID() ids.NodeID          { return n.id }
func (n *Node) Kind() NodeKind          { return n.kind }
func (n *Node) PAGNode() ids.NodeID     { return n.pagNode }
func (n *Node) Operands() []ids.NodeID  { return n.operands }
func (n *Node) CallSiteID() ids.CallSiteID { return n.csid }
func (n *Node) Fn() any                 { return n.fn }
func (n *Node) PointsTo() *ids.NodeSet  { return n.pointsTo }
func (n *Node) String() string          { return fmt.Sprintf("%s(n%d)", n.kind, n.id) }

// EdgeKind enumerates the closed set of VFG/SVFG edges (spec.md §3.8).
type EdgeKind = graph.Kind

const (
	IntraDirectVF EdgeKind = iota
	CallDirectVF
	RetDirectVF
	IntraIndVF
	CallIndVF
	RetIndVF
	ThreadMhpIndVF
)

func KindString(k EdgeKind) string {
	switch k {
	case IntraDirectVF:
		return "IntraDirectVF"
	case CallDirectVF:
		return "CallDirectVF"
	case RetDirectVF:
		return "RetDirectVF"
	case IntraIndVF:
		return "IntraIndVF"
	case CallIndVF:
		return "CallIndVF"
	case RetIndVF:
		return "RetIndVF"
	case ThreadMhpIndVF:
		return "ThreadMhpIndVF"
	default:
		return "UnknownVFGEdgeKind"
	}
}

// Edge is a VFG/SVFG value-flow edge. CallSiteID labels the Call*/Ret*
// kinds; PointsTo labels the indirect (memory-SSA) kinds.
type Edge struct {
	graph.EdgeHeader
	src, dst ids.NodeID
	kind     EdgeKind
	csid     ids.CallSiteID
	pointsTo *ids.NodeSet
}

func (e *Edge) Src() ids.NodeID  { return e.src }
func (e *Edge) Dst() ids.NodeID  { return e.dst }
func (e *Edge) Kind() EdgeKind   { return e.kind }
func (e *Edge) Label() uint64    { return uint64(e.csid) }
func (e *Edge) CallSiteID() ids.CallSiteID { return e.csid }
func (e *Edge) PointsTo() *ids.NodeSet     { return e.pointsTo }

func newEdge(src, dst ids.NodeID, k EdgeKind, csid ids.CallSiteID) *Edge {
	return &Edge{src: src, dst: dst, kind: k, csid: csid}
}

// directDefKinds are the PAG statement-kind edges whose dst is a
// top-level value definition (spec.md §4.7 pass 1). Call/Ret are
// deliberately excluded: their dst belongs to a different function, so
// they are wired exclusively through ConnectCallerAndCallee instead of
// the generic intra-procedural two-pass build.
var directDefKinds = []pag.EdgeKind{pag.Addr, pag.Copy, pag.NormalGep, pag.VariantGep, pag.Load, pag.Store, pag.Cmp, pag.BinaryOp, pag.UnaryOp}

// VFG is the (top-level-only) Value-Flow Graph.
type VFG struct {
	g     *graph.Graph[*Node]
	alloc *ids.Allocator
	defOf map[ids.NodeID]ids.NodeID // PAG node id -> its definition VFG node id
	p     *pag.PAG
}

// Build runs the two-pass construction of spec.md §4.7 over p.
func Build(p *pag.PAG) *VFG {
	v := &VFG{
		g:     graph.New[*Node](),
		alloc: ids.NewNodeAllocator(),
		defOf: make(map[ids.NodeID]ids.NodeID),
		p:     p,
	}
	v.pass1DefNodes()
	v.pass2DirectEdges()
	return v
}

// Graph exposes the underlying generic graph for read-only consumers.
func (v *VFG) Graph() *graph.Graph[*Node] { return v.g }

// DefOf returns the VFG node defining pagNode, if one was allocated.
func (v *VFG) DefOf(pagNode ids.NodeID) (ids.NodeID, bool) {
	id, ok := v.defOf[pagNode]
	return id, ok
}

// getOrCreateDef returns pagNode's existing def node, allocating a
// zero-operand one of the given kind if pass1DefNodes never saw
// pagNode as the dst of a directDefKinds edge. This is how a formal
// parameter or actual-return temp — defined only by a Call/Ret edge
// pass1 deliberately ignores — still gets a defOf entry by the time
// ConnectCallerAndCallee needs to name it as an edge endpoint.
func (v *VFG) getOrCreateDef(pagNode ids.NodeID, kind NodeKind) ids.NodeID {
	if id, ok := v.defOf[pagNode]; ok {
		return id
	}
	id := ids.NodeID(v.alloc.Next())
	v.g.AddNode(id, &Node{id: id, kind: kind, pagNode: pagNode})
	v.defOf[pagNode] = id
	return id
}

func (v *VFG) pass1DefNodes() {
	pg := v.p.Graph()
	for _, dst := range pg.NodeIDs() {
		var incoming []graph.Edge
		for _, k := range directDefKinds {
			incoming = append(incoming, pg.InEdges(dst, k)...)
		}
		if len(incoming) == 0 {
			continue
		}
		sort.Slice(incoming, func(i, j int) bool { return incoming[i].Src() < incoming[j].Src() })

		kind := classify(incoming)
		operands := make([]ids.NodeID, 0, len(incoming))
		for _, e := range incoming {
			operands = append(operands, e.Src())
		}

		id := ids.NodeID(v.alloc.Next())
		v.g.AddNode(id, &Node{id: id, kind: kind, pagNode: dst, operands: operands})
		v.defOf[dst] = id
	}
}

func classify(incoming []graph.Edge) NodeKind {
	allSameKind := true
	for _, e := range incoming[1:] {
		if e.Kind() != incoming[0].Kind() {
			allSameKind = false
			break
		}
	}
	if allSameKind && incoming[0].Kind() == pag.Copy && len(incoming) > 1 {
		return KindPhi
	}
	switch incoming[0].Kind() {
	case pag.Addr:
		return KindAddr
	case pag.Copy:
		return KindCopy
	case pag.NormalGep, pag.VariantGep:
		return KindGep
	case pag.Load:
		return KindLoad
	case pag.Store:
		return KindStore
	case pag.Cmp:
		return KindCmp
	case pag.BinaryOp:
		return KindBinaryOp
	case pag.UnaryOp:
		return KindUnaryOp
	default:
		return KindCopy
	}
}

func (v *VFG) pass2DirectEdges() {
	pg := v.p.Graph()
	for dst, dstVFG := range v.defOf {
		var incoming []graph.Edge
		for _, k := range directDefKinds {
			incoming = append(incoming, pg.InEdges(dst, k)...)
		}
		for _, e := range incoming {
			srcVFG, ok := v.defOf[e.Src()]
			if !ok {
				continue // src has no definition within this walk: a root value
			}
			v.g.AddEdge(newEdge(srcVFG, dstVFG, IntraDirectVF, 0))
		}
	}
}

// ConnectCallerAndCallee implements connect_caller_and_callee(cs,
// callee, edges_out): the single entry point the analysis core uses
// when a new call edge (direct or newly-resolved indirect) is
// discovered. It emits the direct AP→FP/FR→AR families, wiring the
// actual-parameter VFG nodes (actualParams/actualRet, caller side) to
// the formal-parameter VFG nodes (formalParams/formalRet, callee
// side), labelled by csid.
func (v *VFG) ConnectCallerAndCallee(csid ids.CallSiteID, actualParams, formalParams []ids.NodeID, actualRet, formalRet ids.NodeID) []graph.Edge {
	var out []graph.Edge
	n := len(actualParams)
	if len(formalParams) < n {
		n = len(formalParams)
	}
	for i := 0; i < n; i++ {
		apVFG := v.getOrCreateDef(actualParams[i], KindRootValue)
		fpVFG := v.getOrCreateDef(formalParams[i], KindFormalParam)
		out = append(out, v.g.AddEdge(newEdge(apVFG, fpVFG, CallDirectVF, csid)))
	}
	if actualRet != 0 && formalRet != 0 {
		frVFG := v.getOrCreateDef(formalRet, KindRootValue)
		arVFG := v.getOrCreateDef(actualRet, KindActualRet)
		out = append(out, v.g.AddEdge(newEdge(frVFG, arVFG, RetDirectVF, csid)))
	}
	return out
}

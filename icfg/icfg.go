// Package icfg implements the Interprocedural Control-Flow Graph:
// intra-procedural control flow plus paired call/return nodes per
// callsite, the structure the VFG/SVFG layers memory-SSA def-use edges
// on top of (spec.md §3.5, §4.5).
package icfg

import (
	"fmt"

	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/internal/ptaerr"
)

// NodeKind discriminates the closed set of ICFG node variants.
type NodeKind uint8

const (
	KindGlobal NodeKind = iota
	KindIntra
	KindFunEntry
	KindFunExit
	KindCall
	KindRet
)

func (k NodeKind) String() string {
	switch k {
	case KindGlobal:
		return "Global"
	case KindIntra:
		return "Intra"
	case KindFunEntry:
		return "FunEntry"
	case KindFunExit:
		return "FunExit"
	case KindCall:
		return "Call"
	case KindRet:
		return "Ret"
	default:
		return "UnknownICFGNodeKind"
	}
}

// Node is the common interface satisfied by every ICFG node variant.
type Node interface {
	ID() ids.NodeID
	Kind() NodeKind
	// Fn returns the owning function handle (opaque IR function),
	// shared identity with pag.ReturnNode/VarArgNode's Fn field. Global
	// has no owning function.
	Fn() any
	String() string
}

type nodeHeader struct {
	id ids.NodeID
	fn any
}

func (h *nodeHeader) ID() ids.NodeID { return h.id }
func (h *nodeHeader) Fn() any        { return h.fn }

// GlobalNode is the single per-module node holding global initialisers.
type GlobalNode struct{ nodeHeader }

func (n *GlobalNode) Kind() NodeKind { return KindGlobal }
func (n *GlobalNode) String() string { return fmt.Sprintf("Global(n%d)", n.id) }

// IntraNode wraps a single intra-procedural instruction.
type IntraNode struct {
	nodeHeader
	Instr any
}

func (n *IntraNode) Kind() NodeKind { return KindIntra }
func (n *IntraNode) String() string { return fmt.Sprintf("Intra(n%d)", n.id) }

// FunEntryNode is a function's unique entry node.
type FunEntryNode struct{ nodeHeader }

func (n *FunEntryNode) Kind() NodeKind { return KindFunEntry }
func (n *FunEntryNode) String() string { return fmt.Sprintf("FunEntry(n%d)", n.id) }

// FunExitNode is a function's unique exit node.
type FunExitNode struct{ nodeHeader }

func (n *FunExitNode) Kind() NodeKind { return KindFunExit }
func (n *FunExitNode) String() string { return fmt.Sprintf("FunExit(n%d)", n.id) }

// CallNode represents a callsite's call-half; paired 1:1 with a RetNode.
type CallNode struct {
	nodeHeader
	Instr any
}

func (n *CallNode) Kind() NodeKind { return KindCall }
func (n *CallNode) String() string { return fmt.Sprintf("Call(n%d)", n.id) }

// RetNode represents a callsite's return-half; paired 1:1 with a CallNode.
type RetNode struct {
	nodeHeader
	Instr any
}

func (n *RetNode) Kind() NodeKind { return KindRet }
func (n *RetNode) String() string { return fmt.Sprintf("Ret(n%d)", n.id) }

// EdgeKind enumerates the closed set of ICFG edges (spec.md §3.5).
type EdgeKind = graph.Kind

const (
	IntraCF EdgeKind = iota
	CallCF
	RetCF
)

func KindString(k EdgeKind) string {
	switch k {
	case IntraCF:
		return "IntraCF"
	case CallCF:
		return "CallCF"
	case RetCF:
		return "RetCF"
	default:
		return "UnknownICFGEdgeKind"
	}
}

// Edge is an ICFG control-flow edge. IntraCF edges optionally carry a
// (cond, branchID) pair for conditional branches; Label packs instr's
// identity for CallCF/RetCF the same way pag.Edge does.
type Edge struct {
	graph.EdgeHeader
	src, dst  ids.NodeID
	kind      EdgeKind
	label     uint64
	cond      any
	branchID  int
	hasCond   bool
}

func (e *Edge) Src() ids.NodeID  { return e.src }
func (e *Edge) Dst() ids.NodeID  { return e.dst }
func (e *Edge) Kind() EdgeKind   { return e.kind }
func (e *Edge) Label() uint64    { return e.label }

// Cond returns the edge's (condValue, branchID), and whether it has one.
func (e *Edge) Cond() (any, int, bool) { return e.cond, e.branchID, e.hasCond }

func (e *Edge) String() string {
	if e.hasCond {
		return fmt.Sprintf("n%d --[%s branch=%d]--> n%d", e.src, KindString(e.kind), e.branchID, e.dst)
	}
	return fmt.Sprintf("n%d --[%s]--> n%d", e.src, KindString(e.kind), e.dst)
}

func newEdge(src, dst ids.NodeID, k EdgeKind, label uint64) *Edge {
	return &Edge{src: src, dst: dst, kind: k, label: label}
}

func rebuildEdge(src, dst ids.NodeID, k EdgeKind, label uint64) graph.Edge {
	return newEdge(src, dst, k, label)
}

// ICFG is the Interprocedural Control-Flow Graph.
type ICFG struct {
	g     *graph.Graph[Node]
	alloc *ids.Allocator

	global    ids.NodeID
	hasGlobal bool

	intraOf    map[any]ids.NodeID
	entryOf    map[any]ids.NodeID
	exitOf     map[any]ids.NodeID
	callOf     map[any]ids.NodeID
	retOf      map[any]ids.NodeID
	fnOfIntra  map[ids.NodeID]any
}

// New returns an empty ICFG.
func New() *ICFG {
	return &ICFG{
		g:         graph.New[Node](),
		alloc:     ids.NewNodeAllocator(),
		intraOf:   make(map[any]ids.NodeID),
		entryOf:   make(map[any]ids.NodeID),
		exitOf:    make(map[any]ids.NodeID),
		callOf:    make(map[any]ids.NodeID),
		retOf:     make(map[any]ids.NodeID),
		fnOfIntra: make(map[ids.NodeID]any),
	}
}

// Graph exposes the underlying generic graph for read-only consumers.
func (c *ICFG) Graph() *graph.Graph[Node] { return c.g }

// Node returns the node registered at id.
func (c *ICFG) Node(id ids.NodeID) (Node, bool) { return c.g.Node(id) }

// GetOrAddGlobalNode returns the module's single GlobalNode, creating it
// on first call.
func (c *ICFG) GetOrAddGlobalNode() ids.NodeID {
	if c.hasGlobal {
		return c.global
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &GlobalNode{nodeHeader{id: id}})
	c.global = id
	c.hasGlobal = true
	return id
}

// GetOrAddIntraNode memoises one IntraNode per (fn, instr) pair.
func (c *ICFG) GetOrAddIntraNode(fn, instr any) ids.NodeID {
	if id, ok := c.intraOf[instr]; ok {
		return id
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &IntraNode{nodeHeader{id: id, fn: fn}, instr})
	c.intraOf[instr] = id
	c.fnOfIntra[id] = fn
	return id
}

// GetOrAddFunEntryNode memoises one FunEntryNode per fn.
func (c *ICFG) GetOrAddFunEntryNode(fn any) ids.NodeID {
	if id, ok := c.entryOf[fn]; ok {
		return id
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &FunEntryNode{nodeHeader{id: id, fn: fn}})
	c.entryOf[fn] = id
	return id
}

// GetOrAddFunExitNode memoises one FunExitNode per fn.
func (c *ICFG) GetOrAddFunExitNode(fn any) ids.NodeID {
	if id, ok := c.exitOf[fn]; ok {
		return id
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &FunExitNode{nodeHeader{id: id, fn: fn}})
	c.exitOf[fn] = id
	return id
}

// GetOrAddCallNode memoises one CallNode per (fn, instr) callsite and
// its paired RetNode, since Call and Ret are paired 1:1 (spec.md §3.5).
func (c *ICFG) GetOrAddCallNode(fn, instr any) ids.NodeID {
	if id, ok := c.callOf[instr]; ok {
		return id
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &CallNode{nodeHeader{id: id, fn: fn}, instr})
	c.callOf[instr] = id
	c.GetOrAddRetNode(fn, instr)
	return id
}

// GetOrAddRetNode memoises one RetNode per (fn, instr) callsite.
func (c *ICFG) GetOrAddRetNode(fn, instr any) ids.NodeID {
	if id, ok := c.retOf[instr]; ok {
		return id
	}
	id := ids.NodeID(c.alloc.Next())
	c.g.AddNode(id, &RetNode{nodeHeader{id: id, fn: fn}, instr})
	c.retOf[instr] = id
	return id
}

// CallNodeOf/RetNodeOf look up the paired node for an already-created
// callsite, without creating anything.
func (c *ICFG) CallNodeOf(instr any) (ids.NodeID, bool) { id, ok := c.callOf[instr]; return id, ok }
func (c *ICFG) RetNodeOf(instr any) (ids.NodeID, bool)  { id, ok := c.retOf[instr]; return id, ok }

func (c *ICFG) fnOf(n ids.NodeID) (any, bool) {
	node, ok := c.g.Node(n)
	if !ok {
		return nil, false
	}
	fn := node.Fn()
	return fn, fn != nil
}

// AddIntraEdge implements add_intra_edge(src, dst), enforcing invariant
// I1: both endpoints must belong to the same function.
func (c *ICFG) AddIntraEdge(src, dst ids.NodeID) graph.Edge {
	c.checkSameFunction(src, dst)
	return c.g.AddEdge(newEdge(src, dst, IntraCF, 0))
}

// AddConditionalIntraEdge is AddIntraEdge additionally storing
// (cond, branchID) on the edge.
func (c *ICFG) AddConditionalIntraEdge(src, dst ids.NodeID, cond any, branchID int) graph.Edge {
	c.checkSameFunction(src, dst)
	e := newEdge(src, dst, IntraCF, 0)
	e.cond, e.branchID, e.hasCond = cond, branchID, true
	return c.g.AddEdge(e)
}

func (c *ICFG) checkSameFunction(src, dst ids.NodeID) {
	srcFn, srcHasFn := c.fnOf(src)
	dstFn, dstHasFn := c.fnOf(dst)
	// a Global node (no owning fn) may be on either side of an IntraCF
	// edge only when initialising package-level state; treat it as
	// wildcard rather than a violation.
	if !srcHasFn || !dstHasFn {
		return
	}
	if srcFn != dstFn {
		panic(ptaerr.New(ptaerr.InvalidIntraEdge,
			"IntraCF edge n%d -> n%d crosses function boundary", src, dst))
	}
}

// AddCallEdge implements the call-half of a callsite's control-flow
// wiring: an edge from the call node to the callee's FunEntryNode,
// labelled by the callsite's own CallNode id (spec.md §3.3's "56-bit
// auxiliary label derived from the ICFG node of the instruction").
func (c *ICFG) AddCallEdge(callNode, funEntry ids.NodeID, instr any) graph.Edge {
	return c.g.AddEdge(newEdge(callNode, funEntry, CallCF, uint64(callNode)))
}

// AddRetEdge implements the return-half: an edge from the callee's
// FunExitNode to the ret node, labelled by the callsite's RetNode id.
func (c *ICFG) AddRetEdge(funExit, retNode ids.NodeID, instr any) graph.Edge {
	return c.g.AddEdge(newEdge(funExit, retNode, RetCF, uint64(retNode)))
}

// PTACallGraph is the minimal read view update_call_graph needs: for
// each indirect callsite, its currently resolved callee set.
type PTACallGraph interface {
	// IndirectCallSites returns every callsite recorded as indirect.
	IndirectCallSites() []any
	// ResolvedCallees returns the functions currently resolved as
	// possible callees of the given callsite instruction.
	ResolvedCallees(instr any) []any
}

// UpdateCallGraph implements update_call_graph(pta_cg): for each
// indirect callsite whose resolved callee set has grown, insert the
// corresponding CallCF/RetCF edges. Idempotent: edges already present
// are left untouched by graph.Graph's AddEdge idempotence.
func (c *ICFG) UpdateCallGraph(ptaCG PTACallGraph) {
	for _, instr := range ptaCG.IndirectCallSites() {
		callNode, ok := c.CallNodeOf(instr)
		if !ok {
			continue
		}
		retNode, ok := c.RetNodeOf(instr)
		if !ok {
			continue
		}
		for _, callee := range ptaCG.ResolvedCallees(instr) {
			entry := c.GetOrAddFunEntryNode(callee)
			exit := c.GetOrAddFunExitNode(callee)
			c.AddCallEdge(callNode, entry, instr)
			c.AddRetEdge(exit, retNode, instr)
		}
	}
}

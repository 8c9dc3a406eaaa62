// Package callgraph implements PTACallGraph: the pointer-analysis call
// graph the on-the-fly solve loop grows as indirect callsites resolve
// (spec.md §3.7, §4.6).
//
// This supersedes picatz-taint's SSA-specific *callgraph.Graph: that
// logic (resolving ssa.Call/ssa.Go targets, including the
// ChangeInterface-cast tracking) is IR-frontend work and lives on in
// the ssair adapter, which populates a PTACallGraph through AddCallSite
// rather than building its own bespoke graph type.
package callgraph

import (
	"fmt"
	"sort"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/internal/ptaerr"
)

// Kind discriminates the edge kinds spec.md §3.7 names.
type Kind uint8

const (
	CallRet Kind = iota
	ThreadFork
	ThreadJoin
	HareParFor
)

func (k Kind) String() string {
	switch k {
	case CallRet:
		return "CallRet"
	case ThreadFork:
		return "ThreadFork"
	case ThreadJoin:
		return "ThreadJoin"
	case HareParFor:
		return "HareParFor"
	default:
		return "UnknownCallgraphEdgeKind"
	}
}

// Node is a PTACallGraphNode(fn): fn is an opaque IR function handle,
// shared identity with pag.ReturnNode/VarArgNode.Fn and icfg.Node.Fn.
type Node struct {
	Fn any
}

// edgeKey identifies one (caller, callee, kind) edge; CallSiteIds are
// tracked per edge, not per key, since one edge can accumulate many
// callsites over the course of the solve.
type edgeKey struct {
	caller, callee any
	kind           Kind
}

// Edge holds the two disjoint sets of callsites (direct and indirect)
// discovered so far for one (caller, callee, kind) pair.
type Edge struct {
	Caller, Callee any
	Kind           Kind
	Direct         *ids.NodeSet // CallSiteIds added via AddDirectCallSite
	Indirect       *ids.NodeSet // CallSiteIds added via AddIndirectCallSite
}

// Graph is PTACallGraph.
type Graph struct {
	nodes map[any]*Node
	edges map[edgeKey]*Edge

	// callSiteOf / siteOf keep the two lock-step maps spec.md §4.6
	// requires: add_call_site(cs, callee) must return an existing id if
	// (cs, callee) was seen before.
	callSiteOf map[callSiteKey]ids.CallSiteID
	siteOf     map[ids.CallSiteID]callSiteKey
	csAlloc    *ids.Allocator

	// indirectInstr tracks, per indirect-callsite instruction handle,
	// the set of callees resolved for it so far — the view icfg.Update
	// CallGraph's PTACallGraph collaborator interface needs.
	indirectInstr map[any]map[any]bool

	// reachable is populated by CheckReachability; nil before the first
	// call.
	reachable map[any]bool
	root      any
}

type callSiteKey struct {
	instr  any
	callee any
}

// New returns an empty PTACallGraph.
func New() *Graph {
	return &Graph{
		nodes:         make(map[any]*Node),
		edges:         make(map[edgeKey]*Edge),
		callSiteOf:    make(map[callSiteKey]ids.CallSiteID),
		siteOf:        make(map[ids.CallSiteID]callSiteKey),
		csAlloc:       ids.NewCallSiteAllocator(),
		indirectInstr: make(map[any]map[any]bool),
	}
}

// SetRoot designates the program's entry function, used by
// CheckReachability.
func (g *Graph) SetRoot(fn any) { g.root = fn; g.GetOrAddNode(fn) }

// GetOrAddNode returns (creating if necessary) the node for fn.
func (g *Graph) GetOrAddNode(fn any) *Node {
	if n, ok := g.nodes[fn]; ok {
		return n
	}
	n := &Node{Fn: fn}
	g.nodes[fn] = n
	return n
}

// Node returns the existing node for fn, if any.
func (g *Graph) Node(fn any) (*Node, bool) {
	n, ok := g.nodes[fn]
	return n, ok
}

// Nodes returns every node's function handle.
func (g *Graph) Nodes() []any {
	out := make([]any, 0, len(g.nodes))
	for fn := range g.nodes {
		out = append(out, fn)
	}
	return out
}

// AddCallSite implements add_call_site(cs, callee): returns an existing
// CallSiteId for (cs, callee) if one was already issued, otherwise
// allocates a fresh one and records it in both lock-step maps.
// CallSiteIds are 1-based (ids.MaxCallSiteID is reserved as "no
// callsite").
func (g *Graph) AddCallSite(instr, callee any) ids.CallSiteID {
	key := callSiteKey{instr: instr, callee: callee}
	if id, ok := g.callSiteOf[key]; ok {
		return id
	}
	id := ids.CallSiteID(g.csAlloc.Next() + 1)
	g.callSiteOf[key] = id
	g.siteOf[id] = key
	return id
}

// CallSiteOf returns the (instr, callee) pair a previously issued
// CallSiteID was assigned to.
func (g *Graph) CallSiteOf(id ids.CallSiteID) (instr, callee any, ok bool) {
	key, ok := g.siteOf[id]
	if !ok {
		return nil, nil, false
	}
	return key.instr, key.callee, true
}

func (g *Graph) getOrAddEdge(caller, callee any, kind Kind) *Edge {
	key := edgeKey{caller: caller, callee: callee, kind: kind}
	if e, ok := g.edges[key]; ok {
		return e
	}
	e := &Edge{Caller: caller, Callee: callee, Kind: kind, Direct: ids.NewNodeSet(), Indirect: ids.NewNodeSet()}
	g.edges[key] = e
	return e
}

// AddDirectCallSite records a statically-resolved call (the PAG builder
// calls this eagerly for every direct call it sees).
func (g *Graph) AddDirectCallSite(caller, callee any, instr any, kind Kind) ids.CallSiteID {
	g.GetOrAddNode(caller)
	g.GetOrAddNode(callee)
	id := g.AddCallSite(instr, callee)
	e := g.getOrAddEdge(caller, callee, kind)
	e.Direct.Add(ids.NodeID(id))
	return id
}

// AddIndirectCallSite records a callee discovered by the analysis core
// as a points-to set for a function-pointer node grows (spec.md §4.8).
func (g *Graph) AddIndirectCallSite(caller, callee any, instr any, kind Kind) ids.CallSiteID {
	g.GetOrAddNode(caller)
	g.GetOrAddNode(callee)
	id := g.AddCallSite(instr, callee)
	e := g.getOrAddEdge(caller, callee, kind)
	e.Indirect.Add(ids.NodeID(id))

	if g.indirectInstr[instr] == nil {
		g.indirectInstr[instr] = make(map[any]bool)
	}
	g.indirectInstr[instr][callee] = true
	return id
}

// MarkIndirectInstr records instr as an indirect callsite with no callee
// yet (e.g. at PAG-build time, before any points-to fact is known),
// so IndirectCallSites reports it even before the first callee resolves.
func (g *Graph) MarkIndirectInstr(instr any) {
	if g.indirectInstr[instr] == nil {
		g.indirectInstr[instr] = make(map[any]bool)
	}
}

// IndirectCallSites implements icfg.PTACallGraph: every instruction
// handle ever marked or resolved as an indirect callsite.
func (g *Graph) IndirectCallSites() []any {
	out := make([]any, 0, len(g.indirectInstr))
	for instr := range g.indirectInstr {
		out = append(out, instr)
	}
	return out
}

// ResolvedCallees implements icfg.PTACallGraph: the callees currently
// resolved for instr.
func (g *Graph) ResolvedCallees(instr any) []any {
	callees := g.indirectInstr[instr]
	out := make([]any, 0, len(callees))
	for fn := range callees {
		out = append(out, fn)
	}
	return out
}

// EdgesFrom returns every edge whose caller is fn.
func (g *Graph) EdgesFrom(fn any) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Caller == fn {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns every edge whose callee is fn.
func (g *Graph) EdgesTo(fn any) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Callee == fn {
			out = append(out, e)
		}
	}
	return out
}

// UnresolvedIndirect reports instr as an indirect callsite with no
// resolved callee yet — non-fatal per spec.md §4.9 ("the callgraph
// records the edge as indirect-unresolved and surfaces a warning").
func (g *Graph) UnresolvedIndirect(instr any) *ptaerr.Error {
	g.MarkIndirectInstr(instr)
	return ptaerr.New(ptaerr.UnresolvedIndirectCall, "callsite %v has no resolved callee yet", instr)
}

// CheckReachability implements the finalisation check of spec.md §4.6:
// every function transitively reachable only through an unresolved
// indirect site produces a diagnostic (returned, not panicked) rather
// than failing the analysis. Must be called after SetRoot.
func (g *Graph) CheckReachability() []string {
	if g.root == nil {
		return nil
	}
	g.reachable = make(map[any]bool)
	var walk func(fn any)
	walk = func(fn any) {
		if g.reachable[fn] {
			return
		}
		g.reachable[fn] = true
		for _, e := range g.EdgesFrom(fn) {
			walk(e.Callee)
		}
	}
	walk(g.root)

	var diagnostics []string
	for fn := range g.nodes {
		if g.reachable[fn] {
			continue
		}
		diagnostics = append(diagnostics, fmt.Sprintf(
			"function %v is not reachable from the program entry except possibly through an unresolved indirect call", fn))
	}
	sort.Strings(diagnostics)
	return diagnostics
}

// IsReachable reports whether fn was found reachable by the most recent
// CheckReachability call.
func (g *Graph) IsReachable(fn any) bool {
	if g.reachable == nil {
		return false
	}
	return g.reachable[fn]
}

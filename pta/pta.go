// Package pta implements BvDataPta: the bit-vector points-to analysis
// core that solves the Constraint Graph to a fixpoint, refining
// indirect callsites on the fly and growing the PAG/ICFG/PTACallGraph/
// VFG it is built over as new callees resolve (spec.md §3.6-3.8,
// §4.8, §5).
package pta

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/picatz/goa/callgraph"
	"github.com/picatz/goa/cg"
	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/icfg"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/scc"
	"github.com/picatz/goa/vfg"
)

// AliasResult is the three-valued outcome of Alias, per spec.md §4.8.
type AliasResult uint8

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "NoAlias"
	case MayAlias:
		return "MayAlias"
	case MustAlias:
		return "MustAlias"
	default:
		return "UnknownAliasResult"
	}
}

// IndirectSite is one function-pointer callsite the solve loop watches:
// when pts(FnPtrNode) grows, each newly-discovered object is resolved
// to a callee and wired into the callgraph/ICFG/VFG (spec.md §4.8).
type IndirectSite struct {
	Instr        any
	Caller       any
	ICFGCallNode ids.NodeID
	FnPtrNode    ids.NodeID
	ActualParams []ids.SymID
	ActualRetSym ids.SymID // zero means no return value
	Virtual      bool      // true: resolve via ClassHierarchyResolver instead of CalleeResolver
	Method       any       // the invoked method's identity (e.g. *types.Func), set when Virtual; nil otherwise
}

// CalleeInfo describes a concrete callee once FuncOfObject (or CHA)
// names it, the shape wireCallee needs to extend PAG/ICFG/VFG.
type CalleeInfo struct {
	Fn            any
	EntryICFGNode ids.NodeID
	FormalParams  []ids.SymID
	FormalRetSym  ids.SymID // zero means no return value
}

// CalleeResolver is the external collaborator mapping a points-to
// member object back to the function it represents, and a function to
// its callable shape (spec.md §6).
type CalleeResolver interface {
	FuncOfObject(obj ids.NodeID) (fn any, ok bool)
	CalleeInfo(fn any) CalleeInfo
}

// ClassHierarchyResolver is the external collaborator resolving a
// virtual/interface callsite's vtable points-to set to concrete
// receiver functions (spec.md §6, and SPEC_FULL.md's CHA/VTA addition).
// method is the invoked method's identity off the call site's
// IndirectSite.Method (e.g. *types.Func); a resolver uses it to filter
// candidates down to the one method actually being invoked instead of
// returning every method the receiver's concrete type has.
type ClassHierarchyResolver interface {
	ResolveVirtualCallees(vtablePts *ids.NodeSet, method any) []any
}

// BvDataPta is the bit-vector points-to analysis core (spec.md §4.8).
// Its pts table is the single source of truth every other query
// (Alias, ExpandFIObjs, the solve loop itself) reads and grows.
type BvDataPta struct {
	p *pag.PAG
	i *icfg.ICFG
	c *cg.Graph
	g *callgraph.Graph
	v *vfg.VFG

	sccMode cg.EdgeProjectionMode
	workers int

	resolver CalleeResolver
	cha      ClassHierarchyResolver

	ptsMu sync.RWMutex
	pts   map[ids.NodeID]*ids.SyncNodeSet

	sitesMu sync.Mutex
	sites   []*IndirectSite

	// cgMu serialises the critical section spec.md §5's resource table
	// names explicitly: callgraph/ICFG/VFG mutation when a new indirect
	// callee is wired. PAG node/edge addition is append-only and does
	// not need this lock (only its own graph's AddNode/AddEdge do).
	cgMu sync.Mutex
	sf   singleflight.Group
}

// New binds a BvDataPta to an already-built PAG/ICFG/CG/PTACallGraph/
// VFG quintet (spec.md §4.8: "the analysis core is constructed over an
// existing PAG/ICFG/CG/PTACallGraph/VFG, not a fresh one it owns
// outright — those graphs are shared, mutable-by-append state").
func New(p *pag.PAG, i *icfg.ICFG, c *cg.Graph, g *callgraph.Graph, v *vfg.VFG) *BvDataPta {
	return &BvDataPta{
		p:       p,
		i:       i,
		c:       c,
		g:       g,
		v:       v,
		sccMode: cg.AllDirect,
		workers: 1,
		pts:     make(map[ids.NodeID]*ids.SyncNodeSet),
	}
}

// SetCalleeResolver installs the collaborator resolving ordinary
// (non-virtual) indirect callees.
func (b *BvDataPta) SetCalleeResolver(r CalleeResolver) { b.resolver = r }

// SetClassHierarchyResolver installs the collaborator resolving
// virtual/interface-dispatch callees.
func (b *BvDataPta) SetClassHierarchyResolver(r ClassHierarchyResolver) { b.cha = r }

// SetWorkers bounds the fan-out degree of the parallel propagation
// phases (spec.md §5: "implementations may parallelise the points-to
// set unions across nodes between iterations").
func (b *BvDataPta) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	b.workers = n
}

// SetEdgeProjectionMode selects the SCC projection (spec.md §4.2) the
// solve loop re-derives each iteration.
func (b *BvDataPta) SetEdgeProjectionMode(mode cg.EdgeProjectionMode) { b.sccMode = mode }

// RegisterIndirectSite tells the solve loop about a function-pointer
// callsite to watch, and marks it indirect in the callgraph so
// CheckReachability and ICFG.UpdateCallGraph both see it even before
// any callee resolves.
func (b *BvDataPta) RegisterIndirectSite(site *IndirectSite) {
	b.g.MarkIndirectInstr(site.Instr)
	b.sitesMu.Lock()
	b.sites = append(b.sites, site)
	b.sitesMu.Unlock()
}

func (b *BvDataPta) entry(n ids.NodeID) *ids.SyncNodeSet {
	b.ptsMu.RLock()
	s, ok := b.pts[n]
	b.ptsMu.RUnlock()
	if ok {
		return s
	}
	b.ptsMu.Lock()
	defer b.ptsMu.Unlock()
	if s, ok = b.pts[n]; ok {
		return s
	}
	s = &ids.SyncNodeSet{}
	b.pts[n] = s
	return s
}

// GetPts implements get_pts(n): a snapshot of n's current points-to set.
func (b *BvDataPta) GetPts(n ids.NodeID) *ids.NodeSet {
	return b.entry(n).Snapshot()
}

// AddPts implements add_pts(n, o): inserts a single object into n's
// points-to set, returning whether it grew.
func (b *BvDataPta) AddPts(n, o ids.NodeID) bool {
	return b.entry(n).Add(o)
}

// UnionPts implements union_pts(n, rhs): merges rhs into n's points-to
// set, returning whether it grew.
func (b *BvDataPta) UnionPts(n ids.NodeID, rhs *ids.NodeSet) bool {
	return b.entry(n).UnionWith(rhs)
}

// ClearPts implements clear_pts(n, o): removes a single object from n's
// points-to set. The only non-grow-only mutation of the pts table,
// used to retract a points-to fact an external caller determined was
// unsound (e.g. a strong update).
func (b *BvDataPta) ClearPts(n, o ids.NodeID) bool {
	return b.entry(n).Remove(o)
}

// ExpandFIObjs implements expand_fi_objs(pts): every member that is a
// FieldInsensitiveObjectNode is replaced by the set of its known
// GepObjectNode fields (or left as-is if none have been created yet),
// per spec.md §4.8's alias-query expansion step.
func (b *BvDataPta) ExpandFIObjs(pts *ids.NodeSet) *ids.NodeSet {
	out := ids.NewNodeSet()
	pts.ForEach(func(o ids.NodeID) bool {
		if n, ok := b.p.Node(o); ok {
			if fi, isFI := n.(*pag.FieldInsensitiveObjectNode); isFI {
				fields := b.p.AllFieldsOf(fi.Base)
				if fields.IsEmpty() {
					out.Add(o)
				} else {
					out.UnionWith(fields)
				}
				return true
			}
		}
		out.Add(o)
		return true
	})
	return out
}

// NormalizePts implements normalize_pts(pts): every GepObjectNode member
// whose base is statically field-insensitive, or has been forced
// field-insensitive by a positive-weight cycle (invariant C2), is
// replaced by its FieldInsensitiveObjectNode (spec.md §4.8). Idempotent.
func (b *BvDataPta) NormalizePts(pts *ids.NodeSet) *ids.NodeSet {
	out := ids.NewNodeSet()
	pts.ForEach(func(o ids.NodeID) bool {
		if n, ok := b.p.Node(o); ok {
			if gob, isGep := n.(*pag.GepObjectNode); isGep {
				if b.p.ObjectInfoOf(gob.Base).IsFieldInsensitive || b.c.IsPWC(b.c.Rep(gob.Base)) {
					out.Add(b.p.FieldInsensitiveNodeOf(gob.Base))
					return true
				}
			}
		}
		out.Add(o)
		return true
	})
	return out
}

// Alias implements alias(a, b) over normalised, FI-expanded points-to
// sets: a set containing the black-hole object makes the answer
// conservatively MayAlias whatever the other set holds (it stands for
// "unknown"); otherwise disjoint is NoAlias, an exact match of two
// singleton sets is MustAlias, and any other overlap is MayAlias
// (spec.md §4.8, §8).
func (b *BvDataPta) Alias(a, bNode ids.NodeID) AliasResult {
	pa := b.ExpandFIObjs(b.NormalizePts(b.GetPts(a)))
	pb := b.ExpandFIObjs(b.NormalizePts(b.GetPts(bNode)))

	bh := b.p.BlackHoleObject()
	if pa.Has(bh) || pb.Has(bh) {
		return MayAlias
	}
	if !pa.Intersects(pb) {
		return NoAlias
	}
	if pa.Len() == 1 && pb.Len() == 1 && pa.Equal(pb) {
		return MustAlias
	}
	return MayAlias
}

// objectBaseAndLocation resolves an arbitrary points-to member object
// back to its ultimate base and accumulated LocationSet. pag.baseAndLocation
// only walks GepValueNode chains for top-level values; this is the
// object-node equivalent the solve loop's Gep propagation needs.
func (b *BvDataPta) objectBaseAndLocation(obj ids.NodeID) (ids.NodeID, pag.LocationSet) {
	switch n := b.p.MustNode(obj).(type) {
	case *pag.GepObjectNode:
		return n.Base, n.Location
	case *pag.FieldInsensitiveObjectNode:
		return n.Base, pag.ZeroLocationSet
	default:
		return obj, pag.ZeroLocationSet
	}
}

func partition(nodeIDs []ids.NodeID, workers int) [][]ids.NodeID {
	if workers < 1 {
		workers = 1
	}
	out := make([][]ids.NodeID, workers)
	for i, id := range nodeIDs {
		out[i%workers] = append(out[i%workers], id)
	}
	return out
}

// parallelOverNodes applies fn to every id in nodeIDs across b.workers
// goroutines, returning whether any call reported a change.
func (b *BvDataPta) parallelOverNodes(nodeIDs []ids.NodeID, fn func(ids.NodeID) bool) bool {
	var changed atomic.Bool
	var grp errgroup.Group
	for _, part := range partition(nodeIDs, b.workers) {
		part := part
		grp.Go(func() error {
			for _, id := range part {
				if fn(id) {
					changed.Store(true)
				}
			}
			return nil
		})
	}
	_ = grp.Wait() // fn never returns an error
	return changed.Load()
}

// Solve runs the fixpoint loop of spec.md §4.8/§5: seed points-to sets
// from Addr edges, then alternate SCC collapse, direct/Gep/Load/Store
// propagation (iterating PAG's own stable edges, not CG's collapse-
// mutated ones — see propagateGep's doc comment), and indirect-callsite
// resolution, until nothing changes.
func (b *BvDataPta) Solve() {
	b.seedAddr()
	for {
		b.collapseCycles()
		changed := false
		if b.propagateDirect() {
			changed = true
		}
		if b.propagateMemory() {
			changed = true
		}
		if b.resolveIndirectSites() {
			changed = true
		}
		if !changed {
			return
		}
	}
}

func (b *BvDataPta) seedAddr() {
	pg := b.p.Graph()
	for _, id := range pg.NodeIDs() {
		for _, e := range pg.OutEdges(id, pag.Addr) {
			b.AddPts(e.Dst(), e.Src())
		}
	}
}

func (b *BvDataPta) collapseCycles() {
	view := &cg.SCCView{C: b.c, Mode: b.sccMode}
	det := scc.NewDetector(view)
	det.Find()
	det.Representatives().ForEach(func(rep ids.NodeID) bool {
		if !det.IsInCycle(rep) {
			return true
		}
		sub := det.SubNodes(rep)
		// union every member's points-to set into rep's *before*
		// structurally collapsing, so no fact computed pre-collapse is lost.
		sub.ForEach(func(member ids.NodeID) bool {
			if member == rep {
				return true
			}
			b.UnionPts(rep, b.GetPts(member))
			return true
		})
		b.c.Collapse(rep, sub)
		return true
	})
}

func (b *BvDataPta) propagateDirect() bool {
	return b.parallelOverNodes(b.p.Graph().NodeIDs(), b.propagateNodeDirect)
}

func (b *BvDataPta) propagateNodeDirect(id ids.NodeID) bool {
	changed := false
	pg := b.p.Graph()
	for _, e := range pg.OutEdges(id, pag.Copy) {
		if b.UnionPts(e.Dst(), b.GetPts(e.Src())) {
			changed = true
		}
	}
	for _, e := range pg.OutEdges(id, pag.Call) {
		if b.UnionPts(e.Dst(), b.GetPts(e.Src())) {
			changed = true
		}
	}
	for _, e := range pg.OutEdges(id, pag.Ret) {
		if b.UnionPts(e.Dst(), b.GetPts(e.Src())) {
			changed = true
		}
	}
	for _, k := range []pag.EdgeKind{pag.NormalGep, pag.VariantGep} {
		for _, e := range pg.OutEdges(id, k) {
			if b.propagateGep(e) {
				changed = true
			}
		}
	}
	return changed
}

// propagateGep implements the Gep propagation rule: for every object o
// currently in pts(src), project o through e's offset and add the
// result to pts(dst).
//
// This walks e directly from PAG, not from cg.Graph: after SCC
// collapse retargets a surviving Gep edge's endpoint to an SCC
// representative, cg.Edge only remembers nonZeroOffset (a bool), not
// the LocationSet the projection itself needs — so field-sensitive
// propagation must read the offset from PAG's own (never-retargeted)
// GepValueNode payload instead.
//
// The PWC check is keyed on e.Dst()'s own CG representative, not on
// the pointee object: a positive-weight cycle is a property of the
// pointer-value chain the Gep edge belongs to (e.g. "next = &next.field"
// in a loop), per invariant C2 — the pointee object is forced
// field-insensitive as a consequence, but the cycle itself lives among
// value nodes, which is exactly what SCC collapses over directKinds.
func (b *BvDataPta) propagateGep(e graph.Edge) bool {
	dstNode, ok := b.p.Node(e.Dst())
	if !ok {
		return false
	}
	gv, ok := dstNode.(*pag.GepValueNode)
	if !ok {
		return false
	}
	pwc := e.Kind() == pag.VariantGep || b.c.IsPWC(b.c.Rep(e.Dst()))
	changed := false
	b.GetPts(e.Src()).ForEach(func(obj ids.NodeID) bool {
		base, loc := b.objectBaseAndLocation(obj)
		var target ids.NodeID
		if pwc {
			target = b.p.FieldInsensitiveNodeOf(base)
		} else {
			target = b.p.GetGepObj(base, loc.Add(gv.Location))
		}
		if b.AddPts(e.Dst(), target) {
			changed = true
		}
		return true
	})
	return changed
}

func (b *BvDataPta) propagateMemory() bool {
	return b.parallelOverNodes(b.p.Graph().NodeIDs(), b.propagateNodeMemory)
}

func (b *BvDataPta) propagateNodeMemory(id ids.NodeID) bool {
	changed := false
	pg := b.p.Graph()
	// x = *y: for every object y points to, union its pts into x.
	for _, e := range pg.OutEdges(id, pag.Load) {
		ptr := b.GetPts(e.Src())
		ptr.ForEach(func(obj ids.NodeID) bool {
			if b.UnionPts(e.Dst(), b.GetPts(obj)) {
				changed = true
			}
			return true
		})
	}
	// *x = y: for every object x points to, union y's pts into it.
	for _, e := range pg.OutEdges(id, pag.Store) {
		ptr := b.GetPts(e.Dst())
		val := b.GetPts(e.Src())
		ptr.ForEach(func(obj ids.NodeID) bool {
			if b.UnionPts(obj, val) {
				changed = true
			}
			return true
		})
	}
	return changed
}

func (b *BvDataPta) resolveIndirectSites() bool {
	b.sitesMu.Lock()
	sites := append([]*IndirectSite(nil), b.sites...)
	b.sitesMu.Unlock()

	return b.parallelOverSites(sites, b.resolveSite)
}

func (b *BvDataPta) parallelOverSites(sites []*IndirectSite, fn func(*IndirectSite) bool) bool {
	parts := make([][]*IndirectSite, b.workers)
	for i, s := range sites {
		idx := i % len(parts)
		parts[idx] = append(parts[idx], s)
	}
	var changed atomic.Bool
	var grp errgroup.Group
	for _, part := range parts {
		part := part
		grp.Go(func() error {
			for _, s := range part {
				if fn(s) {
					changed.Store(true)
				}
			}
			return nil
		})
	}
	_ = grp.Wait()
	return changed.Load()
}

func (b *BvDataPta) resolveSite(site *IndirectSite) bool {
	pts := b.GetPts(site.FnPtrNode)
	if pts.IsEmpty() {
		return false
	}

	var callees []any
	if site.Virtual && b.cha != nil {
		callees = b.cha.ResolveVirtualCallees(pts, site.Method)
	} else if b.resolver != nil {
		pts.ForEach(func(obj ids.NodeID) bool {
			if fn, ok := b.resolver.FuncOfObject(obj); ok {
				callees = append(callees, fn)
			}
			return true
		})
	}

	changed := false
	for _, fn := range callees {
		if b.wireCallee(site, fn) {
			changed = true
		}
	}
	return changed
}

// wireCallee dedups concurrent discovery of the same (site, callee)
// pair via singleflight, then wires it under cgMu.
func (b *BvDataPta) wireCallee(site *IndirectSite, fn any) bool {
	key := fmt.Sprintf("%p|%v", site, fn)
	v, _, _ := b.sf.Do(key, func() (any, error) {
		return b.doWireCallee(site, fn), nil
	})
	return v.(bool)
}

func (b *BvDataPta) doWireCallee(site *IndirectSite, fn any) bool {
	b.cgMu.Lock()
	defer b.cgMu.Unlock()

	for _, already := range b.g.ResolvedCallees(site.Instr) {
		if already == fn {
			return false
		}
	}
	if b.resolver == nil {
		return false
	}
	info := b.resolver.CalleeInfo(fn)

	csid := b.g.AddIndirectCallSite(site.Caller, fn, site.Instr, callgraph.CallRet)

	n := len(site.ActualParams)
	if len(info.FormalParams) < n {
		n = len(info.FormalParams)
	}
	actualNodes := make([]ids.NodeID, 0, n)
	formalNodes := make([]ids.NodeID, 0, n)
	for i := 0; i < n; i++ {
		b.p.AddCall(site.ActualParams[i], info.FormalParams[i], site.ICFGCallNode)
		actualNodes = append(actualNodes, ids.NodeID(site.ActualParams[i]))
		formalNodes = append(formalNodes, ids.NodeID(info.FormalParams[i]))
	}

	var actualRetNode, formalRetNode ids.NodeID
	if site.ActualRetSym != 0 && info.FormalRetSym != 0 {
		b.p.AddRet(info.FormalRetSym, site.ActualRetSym, site.ICFGCallNode)
		actualRetNode = ids.NodeID(site.ActualRetSym)
		formalRetNode = ids.NodeID(info.FormalRetSym)
	}

	b.i.UpdateCallGraph(b.g)
	b.v.ConnectCallerAndCallee(csid, actualNodes, formalNodes, actualRetNode, formalRetNode)

	return true
}

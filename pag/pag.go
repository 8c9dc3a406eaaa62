// Package pag implements the Program Assignment Graph: the polymorphic
// node/edge graph of abstract values, objects, and assignment-like
// statements that everything else in the analysis core — the
// Constraint Graph, the VFG/SVFG, the on-the-fly callgraph solve —
// is derived from or keyed against (spec.md §3.2-3.4, §4.4).
package pag

import (
	"fmt"

	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/internal/ids"
)

// Options configures PAG-construction policy choices spec.md leaves as
// explicit mode flags rather than fixed behavior.
type Options struct {
	// BlackholeAddrIsAddrEdge selects add_blackhole_addr's behavior:
	// true emits an Addr edge from the black-hole object; false emits a
	// Copy edge from the null pointer (spec.md §4.4).
	BlackholeAddrIsAddrEdge bool
	// FirstFieldEqualsBase enables get_gep_obj's "first field equals
	// base" shortcut: an object-field projection at offset 0 returns
	// the base object node verbatim instead of a distinct GepObjectNode
	// (spec.md §4.4, and Open Question #1 in SPEC_FULL.md).
	FirstFieldEqualsBase bool
}

// DefaultOptions matches the reference implementation's defaults: a
// Copy-from-null blackhole mode and no first-field-equals-base
// shortcut, the more conservative (more distinct nodes) choice.
func DefaultOptions() Options {
	return Options{}
}

type gepObjKey struct {
	base ids.NodeID
	ls   LocationSet
}

// PAG is the Program Assignment Graph.
type PAG struct {
	g       *graph.Graph[Node]
	symtab  SymbolTable
	opts    Options
	threads ThreadApi // optional; nil if the frontend has no concurrency model

	extra *ids.Allocator // allocates ids for GepObject/FI/Return/VarArg nodes

	valueNodes  map[ids.SymID]ids.NodeID
	objectNodes map[ids.SymID]ids.NodeID
	retNodes    map[any]ids.NodeID
	varArgNodes map[any]ids.NodeID

	fiNodeOf    map[ids.NodeID]ids.NodeID   // base object -> its FieldInsensitiveObjectNode
	allFieldsOf map[ids.NodeID]*ids.NodeSet // base object -> all GepObjectNodes of it (invariant N1)
	gepObjCache map[gepObjKey]ids.NodeID
	variantBase map[ids.NodeID]bool // base (value) node -> a VariantGep has been built from it or from a pointer derived from it

	blackHoleObj ids.NodeID
	blackHolePtr ids.NodeID
	nullPtr      ids.NodeID
	constantObj  ids.NodeID
}

// New constructs an empty PAG bound to symtab. numExtraIDStart must be
// at least as large as any SymID symtab will ever hand out: value and
// object NodeIDs equal their SymID by construction (spec.md §3.1), and
// PAG-internal nodes (GepObject/FieldInsensitive/Return/VarArg) are
// allocated starting at numExtraIDStart to avoid colliding with them.
// GepValueNodes take their own value SymID, and imported dummy nodes
// take the id the caller names.
func New(symtab SymbolTable, threads ThreadApi, opts Options, numExtraIDStart uint32) *PAG {
	p := &PAG{
		g:           graph.New[Node](),
		symtab:      symtab,
		opts:        opts,
		threads:     threads,
		extra:       &ids.Allocator{},
		valueNodes:  make(map[ids.SymID]ids.NodeID),
		objectNodes: make(map[ids.SymID]ids.NodeID),
		retNodes:    make(map[any]ids.NodeID),
		varArgNodes: make(map[any]ids.NodeID),
		fiNodeOf:    make(map[ids.NodeID]ids.NodeID),
		allFieldsOf: make(map[ids.NodeID]*ids.NodeSet),
		gepObjCache: make(map[gepObjKey]ids.NodeID),
		variantBase: make(map[ids.NodeID]bool),
	}
	*p.extra = *ids.NewNodeAllocator()
	for i := uint32(0); i < numExtraIDStart; i++ {
		p.extra.Next()
	}

	p.blackHoleObj = p.getOrCreateObjectNode(symtab.BlackHoleID())
	p.blackHolePtr = p.getOrCreateValueNode(symtab.BlkPtrID())
	p.nullPtr = p.getOrCreateValueNode(symtab.NullID())
	p.constantObj = p.getOrCreateObjectNode(symtab.ConstantID())
	// the black hole object always points everywhere: seed it with the
	// Addr edge a real add_blackhole_addr would produce for blkPtr.
	p.g.AddEdge(newEdge(ids.NodeID(p.blackHoleObj), ids.NodeID(p.blackHolePtr), Addr, 0))

	return p
}

// Graph exposes the underlying generic graph for read-only downstream
// consumers (ICFG-independent traversal, dot/graph export, etc).
func (p *PAG) Graph() *graph.Graph[Node] { return p.g }

// Symtab returns the bound SymbolTable.
func (p *PAG) Symtab() SymbolTable { return p.symtab }

// BlackHoleObject, BlackHolePointer, NullPointer, ConstantObject return
// the sentinel node ids reserved at construction.
func (p *PAG) BlackHoleObject() ids.NodeID  { return p.blackHoleObj }
func (p *PAG) BlackHolePointer() ids.NodeID { return p.blackHolePtr }
func (p *PAG) NullPointer() ids.NodeID      { return p.nullPtr }
func (p *PAG) ConstantObject() ids.NodeID   { return p.constantObj }

// Node returns the node registered at id.
func (p *PAG) Node(id ids.NodeID) (Node, bool) { return p.g.Node(id) }

// MustNode is Node but panics (MissingEntity) if id is unregistered,
// per spec.md §7/§4.9 ("missing PAG node for a queried IR value:
// programmer error").
func (p *PAG) MustNode(id ids.NodeID) Node {
	n, ok := p.g.Node(id)
	if !ok {
		panic(fmt.Sprintf("pag: MissingEntity: no node registered for id %d", id))
	}
	return n
}

// getOrCreateValueNode returns the NodeID for sym, creating a plain
// ValueNode if nothing is registered there yet. It checks the graph
// itself rather than p.valueNodes, since a GepValueNode may already
// have been registered at this same SymID-derived NodeID by AddGep.
func (p *PAG) getOrCreateValueNode(sym ids.SymID) ids.NodeID {
	id := ids.NodeID(sym)
	if p.g.HasNode(id) {
		return id
	}
	p.g.AddNode(id, &ValueNode{nodeHeader: nodeHeader{id: id, topLevel: true}})
	p.valueNodes[sym] = id
	return id
}

func (p *PAG) getOrCreateObjectNode(sym ids.SymID) ids.NodeID {
	id := ids.NodeID(sym)
	if p.g.HasNode(id) {
		return id
	}
	info := p.symtab.ObjInfo(sym)
	p.g.AddNode(id, &ObjectNode{nodeHeader: nodeHeader{id: id, addrTaken: true}, Info: info})
	p.objectNodes[sym] = id
	if info.IsFieldInsensitive {
		p.ensureFieldInsensitiveNode(id)
	}
	return id
}

// RetNode returns (creating if necessary) the ReturnNode for fn.
func (p *PAG) RetNode(fn any) ids.NodeID {
	if id, ok := p.retNodes[fn]; ok {
		return id
	}
	id := ids.NodeID(p.extra.Next())
	p.g.AddNode(id, &ReturnNode{nodeHeader: nodeHeader{id: id, topLevel: true}, Fn: fn})
	p.retNodes[fn] = id
	return id
}

// VarArgNode returns (creating if necessary) the VarArgNode for fn.
func (p *PAG) VarArgNode(fn any) ids.NodeID {
	if id, ok := p.varArgNodes[fn]; ok {
		return id
	}
	id := ids.NodeID(p.extra.Next())
	p.g.AddNode(id, &VarArgNode{nodeHeader: nodeHeader{id: id, topLevel: true}, Fn: fn})
	p.varArgNodes[fn] = id
	return id
}

func (p *PAG) ensureFieldInsensitiveNode(base ids.NodeID) ids.NodeID {
	if id, ok := p.fiNodeOf[base]; ok {
		return id
	}
	baseNode := p.MustNode(base)
	var info ObjectInfo
	switch n := baseNode.(type) {
	case *ObjectNode:
		info = n.Info
	case *DummyObjectNode:
		info = n.Info
	}
	id := ids.NodeID(p.extra.Next())
	p.g.AddNode(id, &FieldInsensitiveObjectNode{nodeHeader: nodeHeader{id: id, addrTaken: true}, Base: base, Info: info})
	p.fiNodeOf[base] = id
	return id
}

// FieldInsensitiveNodeOf returns the FieldInsensitiveObjectNode id for
// base, creating it on demand (invariant N1).
func (p *PAG) FieldInsensitiveNodeOf(base ids.NodeID) ids.NodeID {
	return p.ensureFieldInsensitiveNode(base)
}

// AllFieldsOf returns every GepObjectNode created so far for base.
func (p *PAG) AllFieldsOf(base ids.NodeID) *ids.NodeSet {
	if s, ok := p.allFieldsOf[base]; ok {
		return s.Clone()
	}
	return ids.NewNodeSet()
}

// GetGepObj implements get_gep_obj (spec.md §4.4): given (baseObj, ls),
// if baseObj is field-insensitive, returns its FI node; otherwise
// computes ls' = ls mod max_field_offset(baseObj) and caches
// (base, ls') -> node id. Under Options.FirstFieldEqualsBase, ls'
// with a zero field index returns baseObj verbatim.
func (p *PAG) GetGepObj(baseObj ids.NodeID, ls LocationSet) ids.NodeID {
	info := p.objectInfoOf(baseObj)
	if info.IsFieldInsensitive {
		return p.ensureFieldInsensitiveNode(baseObj)
	}

	ls2 := ls.Mod(info.MaxFieldOffset)
	if p.opts.FirstFieldEqualsBase && ls2.FieldIdx == 0 {
		return baseObj
	}

	key := gepObjKey{base: baseObj, ls: ls2}
	if id, ok := p.gepObjCache[key]; ok {
		return id
	}

	id := ids.NodeID(p.extra.Next())
	p.g.AddNode(id, &GepObjectNode{nodeHeader: nodeHeader{id: id, addrTaken: true}, Base: baseObj, Location: ls2})
	p.gepObjCache[key] = id

	if _, ok := p.allFieldsOf[baseObj]; !ok {
		p.allFieldsOf[baseObj] = ids.NewNodeSet()
	}
	p.allFieldsOf[baseObj].Add(id)
	// invariant N1: the FI node of base must exist whenever a gep node does.
	p.ensureFieldInsensitiveNode(baseObj)

	return id
}

// ObjectInfoOf returns the static ObjectInfo governing n, resolving
// through a GepObjectNode's Base chain to find it. Exported for the
// analysis core's normalize_pts, which must tell a statically
// field-insensitive object apart from one only forced insensitive by a
// positive-weight cycle (spec.md §4.8).
func (p *PAG) ObjectInfoOf(n ids.NodeID) ObjectInfo {
	return p.objectInfoOf(n)
}

func (p *PAG) objectInfoOf(n ids.NodeID) ObjectInfo {
	switch node := p.MustNode(n).(type) {
	case *ObjectNode:
		return node.Info
	case *DummyObjectNode:
		return node.Info
	case *FieldInsensitiveObjectNode:
		return node.Info
	case *GepObjectNode:
		return p.objectInfoOf(node.Base)
	default:
		return ObjectInfo{IsFieldInsensitive: true}
	}
}

// baseAndLocation resolves n to (ultimate base NodeID, accumulated
// LocationSet from that base to n), used by AddGep to compose chained
// GEPs into a single NormalGep (spec.md §4.4).
func (p *PAG) baseAndLocation(n ids.NodeID) (ids.NodeID, LocationSet) {
	switch node := p.MustNode(n).(type) {
	case *GepValueNode:
		return node.Base, node.Location
	default:
		return n, ZeroLocationSet
	}
}

// ---------- add_* statement constructors (spec.md §4.4) ----------

// AddAddr implements add_addr: x = &o.
func (p *PAG) AddAddr(objSym, valSym ids.SymID) graph.Edge {
	obj := p.getOrCreateObjectNode(objSym)
	val := p.getOrCreateValueNode(valSym)
	return p.g.AddEdge(newEdge(obj, val, Addr, 0))
}

// AddCopy implements add_copy: x = y.
func (p *PAG) AddCopy(ySym, xSym ids.SymID) graph.Edge {
	y := p.getOrCreateValueNode(ySym)
	x := p.getOrCreateValueNode(xSym)
	return p.g.AddEdge(newEdge(y, x, Copy, 0))
}

// AddLoad implements add_load: x = *y.
func (p *PAG) AddLoad(ySym, xSym ids.SymID) graph.Edge {
	y := p.getOrCreateValueNode(ySym)
	x := p.getOrCreateValueNode(xSym)
	return p.g.AddEdge(newEdge(y, x, Load, 0))
}

// AddStore implements add_store(instr_icfg_node): *x = y.
func (p *PAG) AddStore(ySym, xSym ids.SymID, icfgNode ids.NodeID) graph.Edge {
	y := p.getOrCreateValueNode(ySym)
	x := p.getOrCreateValueNode(xSym)
	return p.g.AddEdge(newEdge(y, x, Store, uint64(icfgNode)))
}

// AddGep implements add_gep(offset_set, const_gep?): x = gep y, ls.
//
// If a VariantGep has already been built from y's base (directly or
// from a pointer derived from it), or constGep is false, the edge
// degrades to VariantGep. Otherwise a NormalGep is produced whose
// LocationSet is ls summed with the location set accumulated from y
// back to its base.
func (p *PAG) AddGep(ySym, xSym ids.SymID, ls LocationSet, constGep bool) graph.Edge {
	y := p.getOrCreateValueNode(ySym)
	base, accumulated := p.baseAndLocation(y)

	degrade := p.variantBase[base] || !constGep

	x := ids.NodeID(xSym)
	if !p.g.HasNode(x) {
		if degrade {
			p.g.AddNode(x, &GepValueNode{nodeHeader: nodeHeader{id: x, topLevel: true}, Base: base, Location: LocationSet{}})
		} else {
			p.g.AddNode(x, &GepValueNode{nodeHeader: nodeHeader{id: x, topLevel: true}, Base: base, Location: accumulated.Add(ls)})
		}
	}

	if degrade {
		p.variantBase[base] = true
		return p.g.AddEdge(newEdge(y, x, VariantGep, 0))
	}
	return p.g.AddEdge(newEdge(y, x, NormalGep, 0))
}

// AddCall implements add_call(call_icfg_node): an actual argument
// flowing into a formal parameter at a callsite.
func (p *PAG) AddCall(actualSym, formalSym ids.SymID, icfgNode ids.NodeID) graph.Edge {
	a := p.getOrCreateValueNode(actualSym)
	f := p.getOrCreateValueNode(formalSym)
	return p.g.AddEdge(newEdge(a, f, Call, uint64(icfgNode)))
}

// AddRet implements add_ret(call_icfg_node): a formal return value
// flowing into the actual call-result value at a callsite.
func (p *PAG) AddRet(formalRetSym, actualRetSym ids.SymID, icfgNode ids.NodeID) graph.Edge {
	f := p.getOrCreateValueNode(formalRetSym)
	a := p.getOrCreateValueNode(actualRetSym)
	return p.g.AddEdge(newEdge(f, a, Ret, uint64(icfgNode)))
}

// AddFork implements add_fork: an actual argument flowing into a
// goroutine-entry formal parameter.
func (p *PAG) AddFork(actualSym, formalSym ids.SymID, icfgNode ids.NodeID) graph.Edge {
	a := p.getOrCreateValueNode(actualSym)
	f := p.getOrCreateValueNode(formalSym)
	return p.g.AddEdge(newEdge(a, f, ThreadFork, uint64(icfgNode)))
}

// AddJoin implements add_join: a goroutine's return value flowing into
// the joining actual result.
func (p *PAG) AddJoin(formalRetSym, actualRetSym ids.SymID, icfgNode ids.NodeID) graph.Edge {
	f := p.getOrCreateValueNode(formalRetSym)
	a := p.getOrCreateValueNode(actualRetSym)
	return p.g.AddEdge(newEdge(f, a, ThreadJoin, uint64(icfgNode)))
}

// AddCmp implements a Cmp statement: dst = operands[0] `cmp` operands[1].
func (p *PAG) AddCmp(operandSyms []ids.SymID, dstSym ids.SymID) []graph.Edge {
	return p.addMultiOperand(operandSyms, dstSym, Cmp)
}

// AddBinaryOp implements a BinaryOp statement.
func (p *PAG) AddBinaryOp(operandSyms []ids.SymID, dstSym ids.SymID) []graph.Edge {
	return p.addMultiOperand(operandSyms, dstSym, BinaryOp)
}

// AddUnaryOp implements a UnaryOp statement.
func (p *PAG) AddUnaryOp(operandSym, dstSym ids.SymID) graph.Edge {
	edges := p.addMultiOperand([]ids.SymID{operandSym}, dstSym, UnaryOp)
	return edges[0]
}

func (p *PAG) addMultiOperand(operandSyms []ids.SymID, dstSym ids.SymID, k EdgeKind) []graph.Edge {
	dst := p.getOrCreateValueNode(dstSym)
	out := make([]graph.Edge, 0, len(operandSyms))
	for _, opSym := range operandSyms {
		op := p.getOrCreateValueNode(opSym)
		out = append(out, p.g.AddEdge(newEdge(op, dst, k, 0)))
	}
	return out
}

// AddBlackholeAddr implements add_blackhole_addr: under
// Options.BlackholeAddrIsAddrEdge, either emits an Addr from the
// black-hole object, or a Copy from the null pointer.
func (p *PAG) AddBlackholeAddr(valSym ids.SymID) graph.Edge {
	val := p.getOrCreateValueNode(valSym)
	if p.opts.BlackholeAddrIsAddrEdge {
		return p.g.AddEdge(newEdge(p.blackHoleObj, val, Addr, 0))
	}
	return p.g.AddEdge(newEdge(p.nullPtr, val, Copy, 0))
}

// ImportDummyValue creates (if absent) a DummyValueNode at id, for
// external-PAG-import use (spec.md §6).
func (p *PAG) ImportDummyValue(id ids.NodeID) ids.NodeID {
	if !p.g.HasNode(id) {
		p.g.AddNode(id, &DummyValueNode{nodeHeader: nodeHeader{id: id, topLevel: true}})
	}
	return id
}

// ImportDummyObject creates (if absent) a DummyObjectNode at id, for
// external-PAG-import use (spec.md §6).
func (p *PAG) ImportDummyObject(id ids.NodeID, info ObjectInfo) ids.NodeID {
	if !p.g.HasNode(id) {
		p.g.AddNode(id, &DummyObjectNode{nodeHeader: nodeHeader{id: id, addrTaken: true}, Info: info})
	}
	return id
}

// ImportEdge wires an edge between two already-imported dummy nodes,
// for external-PAG-import use.
func (p *PAG) ImportEdge(src, dst ids.NodeID, k EdgeKind, labelOrOffset uint64) graph.Edge {
	return p.g.AddEdge(newEdge(src, dst, k, labelOrOffset))
}

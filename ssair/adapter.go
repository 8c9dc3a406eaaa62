package ssair

import (
	"go/token"
	"go/types"

	"github.com/picatz/goa/icfg"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/threadapi"
	"golang.org/x/tools/go/ssa"
)

// Adapter translates a set of ssa.Function bodies into the pag.Stmt
// stream pag.IrAdapter promises, and wires matching icfg.ICFG nodes as
// it goes. It does not aim for exhaustive ssa.Instruction coverage —
// the scope below mirrors spec.md §3's statement vocabulary plus the
// handful of ssa-specific assignment-like instructions
// (ChangeType/ChangeInterface/MakeInterface/Convert, Phi) that
// translate naturally onto Copy, and MakeClosure which is modeled as
// Addr so indirect calls through a closure value can still resolve via
// CalleeResolver.FuncOfObject. Anything outside this set (Select,
// Extract/aggregate instructions, complex-number and string-builtin
// ops, etc.) contributes no PAG statement: the value simply has no
// points-to set, which is sound for instructions that never produce or
// propagate a pointer.
type Adapter struct {
	Symtab  *SymbolTable
	Threads threadapi.GoStatements
	ICFG    *icfg.ICFG

	// FuncObjs maps an object SymID back to the *ssa.Function it
	// represents, for both plain function values (ensureFunctionValue)
	// and closures (MakeClosure) — Build hands this to the
	// CalleeResolver whose FuncOfObject reads it.
	FuncObjs map[ids.SymID]*ssa.Function

	funcObjEmitted   map[*ssa.Function]bool
	globalObjEmitted map[*ssa.Global]bool

	stmts []pag.Stmt

	// CallSites records every ssa.CallInstruction this adapter
	// translated, static or not, together with its ICFG call node, for
	// Build to read back when registering indirect sites.
	CallSites []CallSite

	nextCallSiteID uint64
}

// CallSite records enough about one call instruction for Build to
// decide whether it needs an IndirectSite registered, and how to shape
// one if so.
type CallSite struct {
	Instr        ssa.CallInstruction
	ICFGCallNode ids.NodeID
	FnPtrSym     ids.SymID // valid only when Static == nil
	Static       *ssa.Function
	ActualParams []ids.SymID
	ActualRetSym ids.SymID
	Virtual      bool
	Fork         bool
	// Method is the invoked interface method's identity (valid only when
	// Virtual), for chresolver.Resolver to filter a vtable's points-to
	// set down to the one method actually being called instead of every
	// method the receiver's concrete type has.
	Method *types.Func
}

// NewAdapter returns an Adapter over an already-constructed SymbolTable
// and ICFG.
func NewAdapter(symtab *SymbolTable, cfg *icfg.ICFG) *Adapter {
	return &Adapter{
		Symtab:           symtab,
		ICFG:             cfg,
		FuncObjs:         make(map[ids.SymID]*ssa.Function),
		funcObjEmitted:   make(map[*ssa.Function]bool),
		globalObjEmitted: make(map[*ssa.Global]bool),
	}
}

// Statements implements pag.IrAdapter.
func (a *Adapter) Statements() []pag.Stmt {
	return a.stmts
}

func (a *Adapter) emit(s pag.Stmt) {
	a.stmts = append(a.stmts, s)
}

// AddFunction walks every block/instruction of fn, emitting PAG
// statements and wiring fn's ICFG intra-procedural edges. Call it once
// per reachable *ssa.Function before handing the Adapter to
// pag.New(..., adapter, ...)-equivalent construction.
func (a *Adapter) AddFunction(fn *ssa.Function) {
	if fn == nil || fn.Blocks == nil {
		return
	}

	entry := a.ICFG.GetOrAddFunEntryNode(fn)
	exit := a.ICFG.GetOrAddFunExitNode(fn)

	// Bind formal parameters' ValSyms now so CalleeInfo (built
	// elsewhere from the same SymbolTable) sees them regardless of
	// whether the body ever reads a given parameter.
	for _, p := range fn.Params {
		a.Symtab.ValSym(p)
	}
	a.Symtab.RetSym(fn)

	blockNode := make(map[*ssa.BasicBlock]ids.NodeID, len(fn.Blocks))
	blockLast := make(map[*ssa.BasicBlock]ids.NodeID, len(fn.Blocks))

	for _, b := range fn.Blocks {
		var prev ids.NodeID
		havePrev := false
		for _, instr := range b.Instrs {
			n := a.nodeFor(fn, instr)
			if !havePrev {
				blockNode[b] = n
			} else {
				a.ICFG.AddIntraEdge(prev, n)
			}
			prev = n
			havePrev = true
			a.translate(fn, instr, n)
		}
		if havePrev {
			blockLast[b] = prev
		} else {
			// Empty block (unreachable or a pure jump target): give it
			// a synthetic intra node so successors still have
			// something to connect from/to.
			n := a.ICFG.GetOrAddIntraNode(fn, b)
			blockNode[b] = n
			blockLast[b] = n
		}
	}

	for _, b := range fn.Blocks {
		last := blockLast[b]
		switch len(b.Succs) {
		case 0:
			a.ICFG.AddIntraEdge(last, exit)
		case 1:
			a.ICFG.AddIntraEdge(last, blockNode[b.Succs[0]])
		case 2:
			var cond any
			if ifInstr, ok := b.Instrs[len(b.Instrs)-1].(*ssa.If); ok {
				cond = ifInstr.Cond
			}
			a.ICFG.AddConditionalIntraEdge(last, blockNode[b.Succs[0]], cond, 0)
			a.ICFG.AddConditionalIntraEdge(last, blockNode[b.Succs[1]], cond, 1)
		default:
			for i, succ := range b.Succs {
				a.ICFG.AddConditionalIntraEdge(last, blockNode[succ], nil, i)
			}
		}
	}

	if len(fn.Blocks) > 0 {
		a.ICFG.AddIntraEdge(entry, blockNode[fn.Blocks[0]])
	}
}

// nodeFor returns the ICFG node instr should be attributed to: a
// CallNode for call instructions (so ICFG.UpdateCallGraph can find it
// later), an IntraNode otherwise.
func (a *Adapter) nodeFor(fn *ssa.Function, instr ssa.Instruction) ids.NodeID {
	if _, ok := instr.(ssa.CallInstruction); ok {
		return a.ICFG.GetOrAddCallNode(fn, instr)
	}
	return a.ICFG.GetOrAddIntraNode(fn, instr)
}

func (a *Adapter) translate(fn *ssa.Function, instr ssa.Instruction, node ids.NodeID) {
	switch v := instr.(type) {
	case *ssa.Alloc:
		a.translateAlloc(v)
	case *ssa.FieldAddr:
		a.translateFieldAddr(v)
	case *ssa.IndexAddr:
		a.translateIndexAddr(v)
	case *ssa.UnOp:
		a.translateUnOp(v)
	case *ssa.Store:
		a.translateStore(v, node)
	case *ssa.BinOp:
		a.translateBinOp(v)
	case *ssa.Convert:
		a.copyLike(v, v.X)
	case *ssa.ChangeType:
		a.copyLike(v, v.X)
	case *ssa.ChangeInterface:
		a.copyLike(v, v.X)
	case *ssa.MakeInterface:
		a.copyLike(v, v.X)
	case *ssa.Phi:
		a.translatePhi(v)
	case *ssa.MakeClosure:
		a.translateMakeClosure(v)
	case *ssa.Call:
		a.translateCall(fn, v, node, a.Threads.IsFork(v))
	case *ssa.Go:
		a.translateCall(fn, v, node, a.Threads.IsFork(v))
	case *ssa.Defer:
		a.translateCall(fn, v, node, a.Threads.IsFork(v))
	case *ssa.Return:
		a.translateReturn(fn, v)
	}
}

func (a *Adapter) translateAlloc(v *ssa.Alloc) {
	elemType := v.Type() // *ssa.Alloc.Type() is always a *types.Pointer to the allocated type
	if p, ok := elemType.(*types.Pointer); ok {
		elemType = p.Elem()
	}

	objSym := a.Symtab.ObjSym(v)
	valSym := a.Symtab.ValSym(v)

	count, _ := fieldCountOf(elemType)
	a.Symtab.SetObjInfo(objSym, pag.ObjectInfo{
		MaxFieldOffset:     int64(count),
		IsFieldInsensitive: a.Symtab.isFieldInsensitive(elemType),
		IsHeapObject:       v.Heap,
		IsStackObject:      !v.Heap,
		Type:               elemType,
	})

	a.emit(pag.Stmt{Kind: pag.Addr, Src: objSym, Dst: valSym})
}

// valueSym resolves v's ValSym, lazily emitting the Addr statement that
// makes a function or global usable as a pointee the first time it
// appears as an operand (ssa represents both as address-of-able
// package-level values rather than instructions that produce them).
func (a *Adapter) valueSym(v ssa.Value) ids.SymID {
	switch vv := v.(type) {
	case *ssa.Function:
		return a.ensureFunctionValue(vv)
	case *ssa.Global:
		return a.ensureGlobalValue(vv)
	default:
		return a.Symtab.ValSym(v)
	}
}

func (a *Adapter) ensureFunctionValue(fn *ssa.Function) ids.SymID {
	valSym := a.Symtab.ValSym(fn)
	if a.funcObjEmitted[fn] {
		return valSym
	}
	a.funcObjEmitted[fn] = true

	objSym := a.Symtab.ObjSym(fn)
	a.Symtab.SetObjInfo(objSym, pag.ObjectInfo{
		IsConstantData: true,
		IsGlobalObject: true,
		Type:           fn.Signature,
	})
	a.FuncObjs[objSym] = fn
	a.emit(pag.Stmt{Kind: pag.Addr, Src: objSym, Dst: valSym})
	return valSym
}

func (a *Adapter) ensureGlobalValue(g *ssa.Global) ids.SymID {
	valSym := a.Symtab.ValSym(g)
	if a.globalObjEmitted[g] {
		return valSym
	}
	a.globalObjEmitted[g] = true

	elemType := g.Type()
	if p, ok := elemType.(*types.Pointer); ok {
		elemType = p.Elem()
	}
	count, _ := fieldCountOf(elemType)

	objSym := a.Symtab.ObjSym(g)
	a.Symtab.SetObjInfo(objSym, pag.ObjectInfo{
		MaxFieldOffset:     int64(count),
		IsFieldInsensitive: a.Symtab.isFieldInsensitive(elemType),
		IsGlobalObject:     true,
		Type:               elemType,
	})
	a.emit(pag.Stmt{Kind: pag.Addr, Src: objSym, Dst: valSym})
	return valSym
}

// copyLike models every SSA instruction that is semantically "dst = a
// reinterpretation of x" for points-to purposes: Convert, ChangeType,
// ChangeInterface, and MakeInterface all preserve (or widen, for
// MakeInterface) whatever x points to without projecting through a
// field, so they translate onto a plain Copy edge.
func (a *Adapter) copyLike(dst ssa.Value, x ssa.Value) {
	a.emit(pag.Stmt{Kind: pag.Copy, Src: a.valueSym(x), Dst: a.Symtab.ValSym(dst)})
}

func (a *Adapter) translateFieldAddr(v *ssa.FieldAddr) {
	ls := pag.LocationSet{FieldIdx: int64(v.Field)}
	a.emit(pag.Stmt{
		Kind:     pag.NormalGep,
		Src:      a.valueSym(v.X),
		Dst:      a.Symtab.ValSym(v),
		Location: ls,
		ConstGep: true,
	})
}

func (a *Adapter) translateIndexAddr(v *ssa.IndexAddr) {
	if c, ok := v.Index.(*ssa.Const); ok && c.Value != nil {
		if idx, ok := constantInt64(c); ok {
			a.emit(pag.Stmt{
				Kind:     pag.NormalGep,
				Src:      a.valueSym(v.X),
				Dst:      a.Symtab.ValSym(v),
				Location: pag.LocationSet{FieldIdx: idx},
				ConstGep: true,
			})
			return
		}
	}
	// Dynamic index: AddGep degrades to VariantGep on its own whenever
	// constGep is false, collapsing the base to its field-insensitive
	// node (spec.md §4.4).
	a.emit(pag.Stmt{
		Kind:     pag.VariantGep,
		Src:      a.valueSym(v.X),
		Dst:      a.Symtab.ValSym(v),
		ConstGep: false,
	})
}

func (a *Adapter) translateUnOp(v *ssa.UnOp) {
	if v.Op == token.MUL {
		a.emit(pag.Stmt{Kind: pag.Load, Src: a.valueSym(v.X), Dst: a.Symtab.ValSym(v)})
		return
	}
	a.emit(pag.Stmt{Kind: pag.UnaryOp, Src: a.valueSym(v.X), Dst: a.Symtab.ValSym(v)})
}

func (a *Adapter) translateStore(v *ssa.Store, node ids.NodeID) {
	a.emit(pag.Stmt{
		Kind:     pag.Store,
		Src:      a.valueSym(v.Val),
		Dst:      a.valueSym(v.Addr),
		ICFGNode: node,
	})
}

func isComparisonOp(op token.Token) bool {
	switch op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return true
	default:
		return false
	}
}

func (a *Adapter) translateBinOp(v *ssa.BinOp) {
	kind := pag.BinaryOp
	if isComparisonOp(v.Op) {
		kind = pag.Cmp
	}
	dst := a.Symtab.ValSym(v)
	a.emit(pag.Stmt{Kind: kind, Src: a.valueSym(v.X), Dst: dst})
	a.emit(pag.Stmt{Kind: kind, Src: a.valueSym(v.Y), Dst: dst})
}

func (a *Adapter) translatePhi(v *ssa.Phi) {
	dst := a.Symtab.ValSym(v)
	for _, edge := range v.Edges {
		if edge == nil {
			continue
		}
		a.emit(pag.Stmt{Kind: pag.Copy, Src: a.valueSym(edge), Dst: dst})
	}
}

// translateMakeClosure models a closure value as an address-of a
// synthetic object identified with the MakeClosure instruction itself
// (not v.Fn, since distinct closures over the same function literal
// are distinct callable values). Bound free-variable flow
// (v.Bindings) is not modeled: tracking which bound variable reaches
// which of fn.FreeVars would require walking fn's own body alongside
// the closure's creation site, which is out of scope here.
func (a *Adapter) translateMakeClosure(v *ssa.MakeClosure) {
	fn, ok := v.Fn.(*ssa.Function)
	if !ok {
		return
	}
	objSym := a.Symtab.ObjSym(v)
	valSym := a.Symtab.ValSym(v)
	a.Symtab.SetObjInfo(objSym, pag.ObjectInfo{IsConstantData: true, Type: fn.Signature})
	a.FuncObjs[objSym] = fn
	a.emit(pag.Stmt{Kind: pag.Addr, Src: objSym, Dst: valSym})
}

func (a *Adapter) translateCall(fn *ssa.Function, instr ssa.CallInstruction, node ids.NodeID, fork bool) {
	// A RetNode is needed even for calls with no result value: ICFG.
	// UpdateCallGraph looks one up for every indirect callsite it wires,
	// regardless of whether the call produces a used value.
	a.ICFG.GetOrAddRetNode(fn, instr)

	common := instr.Common()

	actualParams := make([]ids.SymID, 0, len(common.Args))
	for _, arg := range common.Args {
		actualParams = append(actualParams, a.valueSym(arg))
	}

	var actualRetSym ids.SymID
	if v, ok := instr.(ssa.Value); ok && v.Type() != nil {
		if _, isTuple := v.Type().Underlying().(*types.Tuple); !isTuple {
			actualRetSym = a.Symtab.ValSym(v)
		}
	}

	cs := CallSite{
		Instr:        instr,
		ICFGCallNode: node,
		ActualParams: actualParams,
		ActualRetSym: actualRetSym,
		Fork:         fork,
	}

	switch {
	case common.IsInvoke():
		cs.Virtual = true
		cs.FnPtrSym = a.valueSym(common.Value)
		cs.Method = common.Method
	case common.StaticCallee() != nil:
		cs.Static = common.StaticCallee()
		a.wireStaticCall(cs, node, fork)
	default:
		cs.FnPtrSym = a.valueSym(common.Value)
	}

	a.CallSites = append(a.CallSites, cs)
}

// wireStaticCall emits Call/ThreadFork + Ret edges immediately for a
// statically-known callee: no IndirectSite or CalleeResolver round
// trip is needed since the formal parameter/return SymIDs are already
// derivable from cs.Static directly.
func (a *Adapter) wireStaticCall(cs CallSite, node ids.NodeID, fork bool) {
	entry := a.ICFG.GetOrAddFunEntryNode(cs.Static)
	exit := a.ICFG.GetOrAddFunExitNode(cs.Static)
	a.ICFG.AddCallEdge(node, entry, cs.Instr)
	if retNode, ok := a.ICFG.RetNodeOf(cs.Instr); ok {
		a.ICFG.AddRetEdge(exit, retNode, cs.Instr)
	}

	kind := pag.Call
	if fork {
		kind = pag.ThreadFork
	}

	n := len(cs.ActualParams)
	if len(cs.Static.Params) < n {
		n = len(cs.Static.Params)
	}
	for i := 0; i < n; i++ {
		formalSym := a.Symtab.ValSym(cs.Static.Params[i])
		a.emit(pag.Stmt{Kind: kind, Src: cs.ActualParams[i], Dst: formalSym, ICFGNode: node})
	}

	if !fork && cs.ActualRetSym != 0 {
		formalRetSym := a.Symtab.RetSym(cs.Static)
		a.emit(pag.Stmt{Kind: pag.Ret, Src: formalRetSym, Dst: cs.ActualRetSym, ICFGNode: node})
	}
}

func (a *Adapter) translateReturn(fn *ssa.Function, v *ssa.Return) {
	retSym := a.Symtab.RetSym(fn)
	for _, res := range v.Results {
		a.emit(pag.Stmt{Kind: pag.Copy, Src: a.valueSym(res), Dst: retSym})
	}
}

// constantInt64 extracts an integer constant's value, for IndexAddr's
// constant-index fast path.
func constantInt64(c *ssa.Const) (int64, bool) {
	if c.Value == nil {
		return 0, false
	}
	return c.Int64(), true
}

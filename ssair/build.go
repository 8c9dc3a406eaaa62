package ssair

import (
	"github.com/picatz/goa/callgraph"
	"github.com/picatz/goa/cg"
	"github.com/picatz/goa/chresolver"
	"github.com/picatz/goa/config"
	"github.com/picatz/goa/icfg"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/pta"
	"github.com/picatz/goa/threadapi"
	"github.com/picatz/goa/vfg"
	"golang.org/x/tools/go/ssa"
)

// Program is the fully wired whole-program analysis built from an
// ssa.Program: every collaborator spec.md §6 names, plus the Solve
// entrypoint to run the fixpoint.
type Program struct {
	Prog      *ssa.Program
	Symtab    *SymbolTable
	PAG       *pag.PAG
	ICFG      *icfg.ICFG
	CG        *cg.Graph
	CallGraph *callgraph.Graph
	VFG       *vfg.VFG
	PTA       *pta.BvDataPta
}

// Solve runs the points-to fixpoint.
func (p *Program) Solve() { p.PTA.Solve() }

// Apply translates adapter's emitted Stmt stream into PAG mutations,
// dispatching each Stmt.Kind to the matching pag.PAG.Add* method. This
// is the consumption side of pag.IrAdapter (spec.md §6): the PAG
// package itself only exposes the Add* constructive API and never
// walks a Stmt stream on its own, so whichever frontend builds the
// stream is also responsible for replaying it.
func Apply(p *pag.PAG, stmts []pag.Stmt) {
	for _, s := range stmts {
		switch s.Kind {
		case pag.Addr:
			p.AddAddr(s.Src, s.Dst)
		case pag.Copy:
			p.AddCopy(s.Src, s.Dst)
		case pag.Load:
			p.AddLoad(s.Src, s.Dst)
		case pag.Store:
			p.AddStore(s.Src, s.Dst, s.ICFGNode)
		case pag.NormalGep, pag.VariantGep:
			p.AddGep(s.Src, s.Dst, s.Location, s.ConstGep)
		case pag.Call:
			p.AddCall(s.Src, s.Dst, s.ICFGNode)
		case pag.Ret:
			p.AddRet(s.Src, s.Dst, s.ICFGNode)
		case pag.ThreadFork:
			p.AddFork(s.Src, s.Dst, s.ICFGNode)
		case pag.ThreadJoin:
			p.AddJoin(s.Src, s.Dst, s.ICFGNode)
		case pag.Cmp:
			p.AddCmp([]ids.SymID{s.Src}, s.Dst)
		case pag.BinaryOp:
			p.AddBinaryOp([]ids.SymID{s.Src}, s.Dst)
		case pag.UnaryOp:
			p.AddUnaryOp(s.Src, s.Dst)
		}
	}
}

// funcObjResolver implements pta.CalleeResolver over an Adapter's
// recorded function-object map.
type funcObjResolver struct {
	symtab   *SymbolTable
	icfg     *icfg.ICFG
	funcObjs map[ids.SymID]*ssa.Function
}

func (r *funcObjResolver) FuncOfObject(obj ids.NodeID) (any, bool) {
	fn, ok := r.funcObjs[ids.SymID(obj)]
	return fn, ok
}

func (r *funcObjResolver) CalleeInfo(fn any) pta.CalleeInfo {
	f := fn.(*ssa.Function)
	formalParams := make([]ids.SymID, len(f.Params))
	for i, p := range f.Params {
		formalParams[i] = r.symtab.ValSym(p)
	}
	return pta.CalleeInfo{
		Fn:            f,
		EntryICFGNode: r.icfg.GetOrAddFunEntryNode(f),
		FormalParams:  formalParams,
		FormalRetSym:  r.symtab.RetSym(f),
	}
}

// Build translates every function in fns into PAG/ICFG statements, then
// wires a complete Program over them: cg.Graph's SCC projection,
// callgraph.Graph's direct callsites (indirect ones are registered as
// pta.IndirectSite for the solve loop to resolve), vfg.VFG, and a
// BvDataPta configured per opts, with chresolver's class-hierarchy
// resolution and funcObjResolver's ordinary-indirect-callee resolution
// both installed.
//
// fns is typically golang.org/x/tools/go/ssa/ssautil.AllFunctions's key
// set, or a caller-narrowed reachable subset of it.
func Build(prog *ssa.Program, fns []*ssa.Function, opts config.Options) *Program {
	symtab := NewSymbolTable()
	symtab.FieldInsensitiveThreshold = opts.FieldInsensitiveThreshold

	cfg := icfg.New()
	adapter := NewAdapter(symtab, cfg)

	for _, fn := range fns {
		adapter.AddFunction(fn)
	}

	p := pag.New(symtab, threadapi.GoStatements{}, opts.PAGOptions(), uint32(symtab.next))
	Apply(p, adapter.Statements())

	cGraph := cg.BuildFromPAG(p)
	ptaCG := callgraph.New()
	if len(fns) > 0 {
		ptaCG.SetRoot(fns[0])
	}

	v := vfg.Build(p)

	for _, cs := range adapter.CallSites {
		if cs.Static == nil {
			continue
		}
		caller := callerFuncOf(cs.Instr)
		kind := callgraph.CallRet
		if cs.Fork {
			kind = callgraph.ThreadFork
		}
		csid := ptaCG.AddDirectCallSite(caller, cs.Static, cs.Instr, kind)

		n := len(cs.ActualParams)
		if len(cs.Static.Params) < n {
			n = len(cs.Static.Params)
		}
		actualNodes := make([]ids.NodeID, 0, n)
		formalNodes := make([]ids.NodeID, 0, n)
		for i := 0; i < n; i++ {
			actualNodes = append(actualNodes, ids.NodeID(cs.ActualParams[i]))
			formalNodes = append(formalNodes, ids.NodeID(symtab.ValSym(cs.Static.Params[i])))
		}

		var actualRetNode, formalRetNode ids.NodeID
		if !cs.Fork && cs.ActualRetSym != 0 {
			actualRetNode = ids.NodeID(cs.ActualRetSym)
			formalRetNode = ids.NodeID(symtab.RetSym(cs.Static))
		}

		v.ConnectCallerAndCallee(csid, actualNodes, formalNodes, actualRetNode, formalRetNode)
	}

	bv := pta.New(p, cfg, cGraph, ptaCG, v)
	opts.ApplyTo(bv)

	bv.SetCalleeResolver(&funcObjResolver{symtab: symtab, icfg: cfg, funcObjs: adapter.FuncObjs})
	byType := chresolver.MethodsByType(prog)
	bv.SetClassHierarchyResolver(chresolver.NewResolver(p, byType))

	for _, cs := range adapter.CallSites {
		if cs.Static != nil {
			continue
		}
		bv.RegisterIndirectSite(&pta.IndirectSite{
			Instr:        cs.Instr,
			Caller:       callerFuncOf(cs.Instr),
			ICFGCallNode: cs.ICFGCallNode,
			FnPtrNode:    ids.NodeID(cs.FnPtrSym),
			ActualParams: cs.ActualParams,
			ActualRetSym: cs.ActualRetSym,
			Virtual:      cs.Virtual,
			Method:       cs.Method,
		})
	}

	return &Program{
		Prog:      prog,
		Symtab:    symtab,
		PAG:       p,
		ICFG:      cfg,
		CG:        cGraph,
		CallGraph: ptaCG,
		VFG:       v,
		PTA:       bv,
	}
}

func callerFuncOf(instr ssa.CallInstruction) *ssa.Function {
	return instr.Parent()
}

// Package chresolver implements pta.ClassHierarchyResolver by grouping
// every concrete method in an ssa.Program by receiver type, following
// golang.org/x/tools/go/callgraph/cha's construction of the full
// class-hierarchy call graph.
package chresolver

import (
	"go/types"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
)

// MethodsByType builds the receiver-type -> methods index a Resolver
// consults, by walking the CHA call graph's node set once. cha.CallGraph
// visits every *ssa.Function reachable from the program's method sets
// regardless of whether any call site statically reaches it, which is
// exactly the conservative over-approximation class-hierarchy resolution
// wants.
func MethodsByType(prog *ssa.Program) map[types.Type][]*ssa.Function {
	byType := make(map[types.Type][]*ssa.Function)

	g := cha.CallGraph(prog)
	for fn := range g.Nodes {
		if fn == nil || fn.Signature == nil {
			continue
		}
		recv := fn.Signature.Recv()
		if recv == nil {
			continue
		}
		t := recv.Type()
		byType[t] = append(byType[t], fn)
	}

	return byType
}

// Resolver implements pag's (via pta.ClassHierarchyResolver) virtual
// callee resolution for interface and virtual-dispatch call sites.
//
// ResolveVirtualCallees is handed the invoked method's identity
// alongside the call site's points-to set (pta.IndirectSite.Method,
// threaded through from ssa.CallCommon.Method by ssair's adapter at
// the call site), so it filters byType[t] down to the single method
// actually being invoked on each concrete type, by name — Go has no
// method overloading, so a receiver type's method name alone already
// identifies which method an interface call site dispatches to.
type Resolver struct {
	p      *pag.PAG
	byType map[types.Type][]*ssa.Function
}

// NewResolver builds a Resolver over p's object nodes and the receiver-
// type index byType (normally produced by MethodsByType).
func NewResolver(p *pag.PAG, byType map[types.Type][]*ssa.Function) *Resolver {
	return &Resolver{p: p, byType: byType}
}

// ResolveVirtualCallees returns, for every concrete type present in
// vtablePts, the single method matching method's name (or, if method
// is nil or not a *types.Func, every method of the type, the
// conservative fallback for a call site chresolver was not given
// method identity for). Objects whose static type
// (pag.ObjectInfo.Type) isn't a go/types.Type, or isn't present in
// byType, contribute nothing.
func (r *Resolver) ResolveVirtualCallees(vtablePts *ids.NodeSet, method any) []any {
	if vtablePts == nil {
		return nil
	}

	wantName, filter := method.(*types.Func)
	var wanted string
	if filter {
		wanted = wantName.Name()
	}

	seen := make(map[*ssa.Function]bool)
	var callees []any

	vtablePts.ForEach(func(obj ids.NodeID) bool {
		info := r.p.ObjectInfoOf(obj)
		t, ok := info.Type.(types.Type)
		if !ok || t == nil {
			return true
		}
		for _, fn := range r.byType[t] {
			if filter && fn.Name() != wanted {
				continue
			}
			if seen[fn] {
				continue
			}
			seen[fn] = true
			callees = append(callees, fn)
		}
		return true
	})

	return callees
}

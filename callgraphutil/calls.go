package callgraphutil

import (
	"fmt"

	"github.com/picatz/goa/callgraph"
	"golang.org/x/tools/go/ssa"
)

// funcString renders a PTACallGraph function handle (always an
// *ssa.Function in this module's frontend, but held as any per
// callgraph.Graph's IR-agnostic design) the way ssa.Function.String
// does, falling back to %v for anything else a future frontend might
// hand the graph.
func funcString(fn any) string {
	if f, ok := fn.(*ssa.Function); ok {
		return f.String()
	}
	return fmt.Sprintf("%v", fn)
}

// CalleesOf returns the distinct functions called by caller.
func CalleesOf(g *callgraph.Graph, caller any) []any {
	seen := make(map[any]bool)
	var callees []any
	for _, e := range g.EdgesFrom(caller) {
		if !seen[e.Callee] {
			seen[e.Callee] = true
			callees = append(callees, e.Callee)
		}
	}
	return callees
}

// CallersOf returns the distinct functions that call callee.
func CallersOf(g *callgraph.Graph, callee any) []any {
	seen := make(map[any]bool)
	var callers []any
	for _, e := range g.EdgesTo(callee) {
		if !seen[e.Caller] {
			seen[e.Caller] = true
			callers = append(callers, e.Caller)
		}
	}
	return callers
}

// Package callgraphutil provides read-only query helpers over a built
// callgraph.Graph: path search from a caller to a matching callee, and
// flexible function-name matching, for the downstream passes spec.md
// §6 says get "read-only access to … PTACallGraph." Graph construction
// itself is ssair's job (see callgraph.Graph's own doc comment); this
// package never builds a graph, only walks one.
package callgraphutil

import (
	"bytes"

	"github.com/picatz/goa/callgraph"
)

// Path is a sequence of callgraph.Edges, where each edge represents a
// call from a caller to a callee, making up a "chain" of calls, e.g.:
// main → foo → bar → baz.
type Path []*callgraph.Edge

// Empty returns true if the path is empty, false otherwise.
func (p Path) Empty() bool {
	return len(p) == 0
}

// First returns the first edge in the path, or nil if the path is empty.
func (p Path) First() *callgraph.Edge {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Last returns the last edge in the path, or nil if the path is empty.
func (p Path) Last() *callgraph.Edge {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// String returns a string representation of the path, a sequence of
// function handles separated by " → ". Intended for debugging.
func (p Path) String() string {
	var buf bytes.Buffer
	firstPrinted := false
	for _, e := range p {
		if e == nil || e.Caller == nil || e.Callee == nil {
			continue
		}
		if !firstPrinted {
			buf.WriteString(funcString(e.Caller))
			firstPrinted = true
		}
		buf.WriteString(" → ")
		buf.WriteString(funcString(e.Callee))
	}
	return buf.String()
}

// Paths is a collection of paths, which may be logically grouped
// together, e.g.: all paths from main to foo, or all paths from main
// to bar.
type Paths []Path

// Shortest returns the shortest path in the collection of paths, or
// nil if there are none. Ties return the first path found.
func (p Paths) Shortest() Path {
	if len(p) == 0 {
		return nil
	}
	shortest := p[0]
	for _, path := range p {
		if len(path) < len(shortest) {
			shortest = path
		}
	}
	return shortest
}

// Longest returns the longest path in the collection of paths, or nil
// if there are none. Ties return the first path found.
func (p Paths) Longest() Path {
	if len(p) == 0 {
		return nil
	}
	longest := p[0]
	for _, path := range p {
		if len(path) > len(longest) {
			longest = path
		}
	}
	return longest
}

// PathSearch returns the first path found from start to a function
// matching isMatch, via depth-first search of g's edges. This may not
// be the shortest path; use PathsSearch for every path.
func PathSearch(g *callgraph.Graph, start any, isMatch func(fn any) bool) Path {
	var (
		stack  = make(Path, 0, 32)
		seen   = make(map[any]bool)
		search func(fn any) Path
	)

	search = func(fn any) Path {
		if seen[fn] {
			return nil
		}
		seen[fn] = true
		if isMatch(fn) {
			return stack
		}
		for _, e := range g.EdgesFrom(fn) {
			stack = append(stack, e)
			if found := search(e.Callee); found != nil {
				return found
			}
			stack = stack[:len(stack)-1]
		}
		return nil
	}
	return search(start)
}

// PathsSearch returns every path found from start to a function
// matching isMatch, via depth-first search of g's edges.
func PathsSearch(g *callgraph.Graph, start any, isMatch func(fn any) bool) Paths {
	var (
		paths  Paths
		stack  = make(Path, 0, 32)
		seen   = make(map[any]bool)
		search func(fn any)
	)

	search = func(fn any) {
		if fn == nil || seen[fn] {
			return
		}
		seen[fn] = true
		defer delete(seen, fn)
		if isMatch(fn) {
			pathCopy := make(Path, len(stack))
			copy(pathCopy, stack)
			paths = append(paths, pathCopy)
		}
		for _, e := range g.EdgesFrom(fn) {
			stack = append(stack, e)
			search(e.Callee)
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	search(start)
	return paths
}

// PathSearchCallTo returns the first path found from start to a
// function whose name (per funcString) exactly matches fn.
func PathSearchCallTo(g *callgraph.Graph, start any, fn string) Path {
	return PathSearch(g, start, func(callee any) bool {
		return funcString(callee) == fn
	})
}

// PathsSearchCallTo returns every path from start to a function whose
// name exactly matches fn, using SSA function name syntax, e.g.
// "(*database/sql.DB).Query".
func PathsSearchCallTo(g *callgraph.Graph, start any, fn string) Paths {
	return PathsSearch(g, start, func(callee any) bool {
		return funcString(callee) == fn
	})
}

// Package threadapi implements pag.ThreadApi over Go's concurrency
// primitives: the `go` statement as ThreadFork, and sync.WaitGroup.Wait
// as ThreadJoin (spec.md §6's optional ThreadApi collaborator).
package threadapi

import "golang.org/x/tools/go/ssa"

// GoStatements recognises goroutine fork/join sites in an SSA
// translation unit. ssair's Adapter calls IsFork on every call
// instruction it walks to decide whether to emit a ThreadFork
// statement instead of an ordinary Call. IsJoin/IsHareParFor round out
// the pag.ThreadApi interface for a caller that wants to recognise
// join points directly; the adapter does not correlate a join call
// back to a specific fork site (see its doc comment on MakeClosure's
// scope limits for the same kind of deliberate simplification), so it
// does not call IsJoin itself today.
type GoStatements struct{}

// IsFork reports whether callInstr is a `go f(...)` statement.
func (GoStatements) IsFork(callInstr any) bool {
	_, ok := callInstr.(*ssa.Go)
	return ok
}

// IsJoin reports whether callInstr is a call to (*sync.WaitGroup).Wait,
// the conventional goroutine join point in idiomatic Go. Channel-based
// joins (receiving on a done channel) have no single syntactic marker
// the way WaitGroup.Wait does, so they are not recognised here.
func (GoStatements) IsJoin(callInstr any) bool {
	call, ok := callInstr.(*ssa.Call)
	if !ok {
		return false
	}
	fn := call.Call.StaticCallee()
	if fn == nil || fn.Name() != "Wait" {
		return false
	}
	recv := fn.Signature.Recv()
	if recv == nil {
		return false
	}
	switch t := recv.Type().String(); t {
	case "*sync.WaitGroup", "sync.WaitGroup":
		return true
	default:
		return false
	}
}

// IsHareParFor always reports false: Go has no parallel-for construct
// analogous to the Hare/OpenMP one the reference implementation models,
// so HareParFor callgraph edges are never produced by this frontend.
// The kind stays in callgraph.Kind's vocabulary for a hypothetical
// frontend that does recognise one (e.g. golang.org/x/sync/errgroup's
// bounded-loop pattern, which this package deliberately does not treat
// as a par-for: an errgroup.Group is just a collection of independent
// goroutines from the type system's point of view, indistinguishable
// from any other `go` statement without deeper call-site heuristics).
func (GoStatements) IsHareParFor(callInstr any) bool { return false }

// Package ptaerr defines the closed set of error kinds the analysis core
// surfaces to callers (spec.md §7). Fatal kinds are raised as panics
// carrying an *Error so that a builder bug cannot be silently masked and
// corrupt downstream points-to sets; recoverable kinds are ordinary
// error values.
package ptaerr

import "fmt"

// Kind enumerates the error kinds named in spec.md §7.
type Kind int

const (
	// DuplicateRegistration: attempt to add a second node/edge with an
	// existing identity. Fatal.
	DuplicateRegistration Kind = iota
	// MissingEntity: query for a node/edge/function never registered. Fatal.
	MissingEntity
	// UnresolvedIndirectCall: callgraph could not refine a function-pointer
	// site to any concrete callee. Recoverable (warning).
	UnresolvedIndirectCall
	// IDOverflow: dense id counter exhausted. Fatal.
	IDOverflow
	// InvalidIntraEdge: an intra-CFG edge crosses a function boundary. Fatal.
	InvalidIntraEdge
	// SCCStateStale: find() invoked without a prior clear() on re-run. Fatal.
	SCCStateStale
)

func (k Kind) String() string {
	switch k {
	case DuplicateRegistration:
		return "DuplicateRegistration"
	case MissingEntity:
		return "MissingEntity"
	case UnresolvedIndirectCall:
		return "UnresolvedIndirectCall"
	case IDOverflow:
		return "IDOverflow"
	case InvalidIntraEdge:
		return "InvalidIntraEdge"
	case SCCStateStale:
		return "SCCStateStale"
	default:
		return "UnknownKind"
	}
}

// Fatal reports whether errors of this kind must never be continued
// from: they are raised as panics rather than returned.
func (k Kind) Fatal() bool {
	switch k {
	case UnresolvedIndirectCall:
		return false
	default:
		return true
	}
}

// Error is the concrete error value carried by both panics (fatal kinds)
// and ordinary returns (recoverable kinds).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error for the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error for the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Panic raises a fatal *Error. It panics unconditionally; callers
// should only invoke it for kinds where Kind.Fatal() is true.
func Panic(kind Kind, format string, args ...any) {
	panic(New(kind, format, args...))
}

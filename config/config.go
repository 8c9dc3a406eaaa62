// Package config collects the analysis-wide policy choices spec.md
// leaves to the implementation into one plain value type, mirroring
// the teacher's preference for an explicit options struct passed into
// a constructor over a flag/env-parsing layer: CLI plumbing is out of
// scope for this repo, so Options stops at the struct boundary and is
// never read from flags or environment variables here.
package config

import (
	"github.com/picatz/goa/cg"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/pta"
)

// Options configures a whole analysis run: how the PAG is built, which
// points-to representation the solve loop uses, how SCC collapse
// projects edges, and how much worker-pool parallelism to use.
type Options struct {
	// FieldInsensitiveThreshold caps how many distinct fields an
	// object may have before it is modeled field-insensitively
	// regardless of what the source-level type declares, bounding the
	// field-object blowup a wide struct or array would otherwise cause
	// (spec.md §4.4's get_gep_obj assumes some objects are field-
	// insensitive; this is the policy a SymbolTable implementation
	// consults to decide which ones). Zero means no threshold: an
	// object is field-insensitive only when its SymbolTable explicitly
	// says so.
	FieldInsensitiveThreshold int

	// BlackholeAddrIsAddrEdge and FirstFieldEqualsBase are passed
	// straight through to pag.Options; see pag.Options's own doc
	// comments for what each selects.
	BlackholeAddrIsAddrEdge bool
	FirstFieldEqualsBase    bool

	// Conditional selects pta.CondPta's richer (cond, node_id)
	// representation over pta.BvDataPta's flat bitvector. Most callers
	// want the bitvector core; conditional tracking is for a client
	// that needs context- or path-sensitive facts.
	Conditional bool

	// EdgeProjectionMode is passed to pta.BvDataPta.SetEdgeProjectionMode,
	// selecting which PAG edge kinds scc.Detector treats as direct
	// children during cycle collapse (spec.md §4.2).
	EdgeProjectionMode cg.EdgeProjectionMode

	// Workers bounds the errgroup worker pool pta.BvDataPta fans its
	// propagation and indirect-site-resolution phases across. Zero or
	// negative falls back to 1 (sequential) in pta.BvDataPta.SetWorkers.
	Workers int
}

// Default returns the reference implementation's defaults: no field-
// insensitive threshold, a Copy-from-null blackhole mode, no first-
// field-equals-base shortcut, the bitvector points-to representation,
// AllDirect edge projection, and a single worker.
func Default() Options {
	return Options{
		EdgeProjectionMode: cg.AllDirect,
		Workers:            1,
	}
}

// PAGOptions projects the subset of Options that configures PAG
// construction.
func (o Options) PAGOptions() pag.Options {
	return pag.Options{
		BlackholeAddrIsAddrEdge: o.BlackholeAddrIsAddrEdge,
		FirstFieldEqualsBase:    o.FirstFieldEqualsBase,
	}
}

// ApplyTo pushes the solve-loop-shaping fields of o (worker count,
// SCC edge-projection mode) into an already-constructed BvDataPta.
// Conditional and the PAG-construction fields have no analogue on
// BvDataPta — a Conditional run is built from pta.NewCondPta directly
// instead of pta.New — so this only ever touches the two fields
// BvDataPta actually exposes setters for.
func (o Options) ApplyTo(b *pta.BvDataPta) {
	b.SetWorkers(o.Workers)
	b.SetEdgeProjectionMode(o.EdgeProjectionMode)
}

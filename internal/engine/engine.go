// Package engine defines the contracts of the external search and lattice
// collaborators the bridge drives, together with a deterministic stub
// implementation used when no native backend is registered.
package engine

// Scorer is the capability set a search engine polls while decoding:
// frame-indexed log-likelihood lookup by arc label, terminal-frame queries
// and a readiness counter.
type Scorer interface {
	LogLikelihood(frame, label int) (float64, error)
	IsLastFrame(frame int) bool
	NumFramesReady() int
}

// Hypothesis is an ordered word-identifier sequence with a total weight.
// Lower weights rank higher.
type Hypothesis struct {
	Words  []int
	Weight float64
}

// Lattice is an opaque handle to an engine's compact representation of
// competing hypotheses. Its concrete type is shared between a SearchEngine
// and the LatticeTools of the same provider.
type Lattice interface{}

// EndpointConfig parameterises the engine's independent endpoint predicate.
type EndpointConfig struct {
	SilenceClasses     []int
	MinTrailingSilence int
	// FrameShift is the frame duration in seconds.
	FrameShift float64
}

// SearchEngine decodes exactly one utterance. Instances are constructed
// fresh per utterance via a Provider and never reused.
type SearchEngine interface {
	// Advance consumes every frame the scorer has ready.
	Advance(sc Scorer) error
	// Finalize completes decoding; no Advance may follow.
	Finalize() error
	FramesDecoded() int
	// BestPath extracts the single best current path.
	BestPath(final bool) (Hypothesis, error)
	// RawLattice extracts the utterance lattice.
	RawLattice(final bool) (Lattice, error)
	// EndpointDetected reports whether the engine considers the utterance
	// finished independently of the stream's endpoint probes.
	EndpointDetected(cfg EndpointConfig) bool
}

// LabelModel maps search-graph arc labels to scoring class indices.
type LabelModel interface {
	ClassOf(label int) int
	NumClasses() int
}

// LatticeTools is the lattice post-processing collaborator used on the
// final-result path.
type LatticeTools interface {
	// Rescale applies the language-model weight. Acoustic scaling happened
	// upstream and is never reapplied.
	Rescale(lat Lattice, lmWeight float64)
	// AlignWordBoundaries aligns the lattice against word-boundary metadata.
	AlignWordBoundaries(lat Lattice, info *WordBoundaryInfo) (Lattice, error)
	// NBest extracts up to n hypotheses in shortest-path order.
	NBest(lat Lattice, n int) ([]Hypothesis, error)
}

// Provider bundles a search backend: per-utterance engine construction plus
// the label model and lattice tools shared across the session.
type Provider interface {
	NewSearch() (SearchEngine, error)
	Labels() LabelModel
	Lattice() LatticeTools
	Close() error
}

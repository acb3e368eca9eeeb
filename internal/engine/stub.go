package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// StubProvider is a deterministic in-process search backend. It picks the
// best class per frame, collapses runs into a label sequence and fabricates
// N-best variants by truncation. It exists so the bridge can run and be
// tested end to end without a native decoder, and its endpoint predicate
// honours the configured silence classes.
type StubProvider struct {
	log    *slog.Logger
	labels identityLabels
	tools  stubTools
}

// NewStubProvider returns a stub backend scoring numClasses classes.
func NewStubProvider(logger *slog.Logger, numClasses int) *StubProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubProvider{
		log:    logger.With("component", "engine.stub"),
		labels: identityLabels{n: numClasses},
	}
}

// NewSearch implements the Provider interface.
func (p *StubProvider) NewSearch() (SearchEngine, error) {
	return &stubSearch{labels: p.labels}, nil
}

// Labels implements the Provider interface.
func (p *StubProvider) Labels() LabelModel { return p.labels }

// Lattice implements the Provider interface.
func (p *StubProvider) Lattice() LatticeTools { return p.tools }

// Close implements the Provider interface.
func (p *StubProvider) Close() error { return nil }

// identityLabels maps every arc label to itself.
type identityLabels struct{ n int }

func (l identityLabels) ClassOf(label int) int {
	if l.n == 0 {
		return 0
	}
	if label < 0 {
		label = -label
	}
	return label % l.n
}

func (l identityLabels) NumClasses() int { return l.n }

type stubSearch struct {
	labels    identityLabels
	classes   []int
	loglikes  []float64
	finalized bool
}

func (s *stubSearch) Advance(sc Scorer) error {
	if s.finalized {
		return errors.New("engine: advance after finalize")
	}
	for frame := len(s.classes); frame < sc.NumFramesReady(); frame++ {
		best, bestScore := 0, math.Inf(-1)
		for class := 0; class < s.labels.NumClasses(); class++ {
			v, err := sc.LogLikelihood(frame, class)
			if err != nil {
				return err
			}
			if v > bestScore {
				best, bestScore = class, v
			}
		}
		s.classes = append(s.classes, best)
		s.loglikes = append(s.loglikes, bestScore)
	}
	return nil
}

func (s *stubSearch) Finalize() error {
	if s.finalized {
		return errors.New("engine: already finalized")
	}
	s.finalized = true
	return nil
}

func (s *stubSearch) FramesDecoded() int { return len(s.classes) }

func (s *stubSearch) BestPath(final bool) (Hypothesis, error) {
	return s.hypothesis(), nil
}

func (s *stubSearch) RawLattice(final bool) (Lattice, error) {
	if len(s.classes) == 0 {
		return nil, errors.New("engine: no frames decoded")
	}
	best := s.hypothesis()
	lat := &stubLattice{hyps: []Hypothesis{best}}
	// Truncated variants stand in for alternative paths, each a little worse.
	for n := len(best.Words) - 1; n >= 1; n-- {
		words := make([]int, n)
		copy(words, best.Words[:n])
		lat.hyps = append(lat.hyps, Hypothesis{
			Words:  words,
			Weight: best.Weight + float64(len(best.Words)-n),
		})
	}
	return lat, nil
}

func (s *stubSearch) EndpointDetected(cfg EndpointConfig) bool {
	if cfg.MinTrailingSilence <= 0 || len(cfg.SilenceClasses) == 0 {
		return false
	}
	silent := make(map[int]bool, len(cfg.SilenceClasses))
	for _, c := range cfg.SilenceClasses {
		silent[c] = true
	}
	run := 0
	for i := len(s.classes) - 1; i >= 0 && silent[s.classes[i]]; i-- {
		run++
	}
	return run >= cfg.MinTrailingSilence
}

// hypothesis collapses consecutive identical classes into one label each and
// negates the accumulated log-likelihood as the path weight.
func (s *stubSearch) hypothesis() Hypothesis {
	var hyp Hypothesis
	for i, class := range s.classes {
		if i == 0 || class != s.classes[i-1] {
			hyp.Words = append(hyp.Words, class)
		}
		hyp.Weight -= s.loglikes[i]
	}
	return hyp
}

type stubLattice struct {
	hyps []Hypothesis
}

type stubTools struct{}

func (stubTools) Rescale(lat Lattice, lmWeight float64) {
	sl, ok := lat.(*stubLattice)
	if !ok {
		return
	}
	for i := range sl.hyps {
		sl.hyps[i].Weight *= lmWeight
	}
}

func (stubTools) AlignWordBoundaries(lat Lattice, info *WordBoundaryInfo) (Lattice, error) {
	if info == nil {
		return nil, errors.New("engine: word boundary info missing")
	}
	// The stub carries no phone alignments, so the lattice passes through.
	return lat, nil
}

func (stubTools) NBest(lat Lattice, n int) ([]Hypothesis, error) {
	sl, ok := lat.(*stubLattice)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected lattice type %T", lat)
	}
	if n > len(sl.hyps) {
		n = len(sl.hyps)
	}
	out := make([]Hypothesis, n)
	copy(out, sl.hyps[:n])
	return out, nil
}

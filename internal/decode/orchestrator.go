// Package decode drives a single utterance through the external search
// engine: chunks are pulled from the frame channel into the score window,
// the engine advances incrementally, and partial results stream out until a
// boundary is reached and the final result is emitted.
package decode

import (
	"context"
	"log/slog"

	"github.com/scorebridge/scorebridge/internal/channel"
	"github.com/scorebridge/scorebridge/internal/emit"
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/score"
	"github.com/scorebridge/scorebridge/internal/telemetry"
)

// State enumerates the utterance lifecycle phases.
type State int

const (
	StateAwaitingData State = iota
	StateDecoding
	StateBoundaryReached
	StateFinalizing
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateAwaitingData:
		return "awaiting-data"
	case StateDecoding:
		return "decoding"
	case StateBoundaryReached:
		return "boundary-reached"
	case StateFinalizing:
		return "finalizing"
	case StateEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Result summarises one orchestrator run.
type Result struct {
	// Terminated is set when a termination chunk aborted the utterance.
	Terminated    bool
	FramesDecoded int
}

// Orchestrator owns one utterance: a fresh score window and a fresh search
// engine instance, both discarded when the utterance ends.
type Orchestrator struct {
	log      *slog.Logger
	ch       *channel.FrameChannel
	window   *score.Window
	search   engine.SearchEngine
	adapter  *Adapter
	emitter  *emit.Emitter
	endpoint engine.EndpointConfig
	metrics  *telemetry.UtteranceMetrics

	state State
}

// New constructs an orchestrator for one utterance.
func New(
	ch *channel.FrameChannel,
	window *score.Window,
	search engine.SearchEngine,
	labels engine.LabelModel,
	emitter *emit.Emitter,
	endpoint engine.EndpointConfig,
	metrics *telemetry.UtteranceMetrics,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		log:      logger.With("component", "decode"),
		ch:       ch,
		window:   window,
		search:   search,
		adapter:  NewAdapter(window, labels),
		emitter:  emitter,
		endpoint: endpoint,
		metrics:  metrics,
		state:    StateAwaitingData,
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State { return o.state }

// Run decodes one utterance to completion. A termination chunk aborts
// without finalizing; channel and engine errors are returned unchanged.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	for {
		chunk, err := o.ch.ReadChunk(ctx)
		if err != nil {
			return Result{}, err
		}

		if chunk.Flag == channel.FlagTermination {
			o.log.Debug("termination chunk received", "state", o.state.String(),
				"frames_decoded", o.search.FramesDecoded())
			return Result{Terminated: true, FramesDecoded: o.search.FramesDecoded()}, nil
		}

		if err := o.window.Accept(chunk); err != nil {
			return Result{}, err
		}
		o.metrics.RecordChunk(chunk.FrameCount)

		if chunk.FrameCount > 0 {
			o.state = StateDecoding
			if err := o.search.Advance(o.adapter); err != nil {
				return Result{}, err
			}
		}

		if o.window.IsLastFrame(o.window.FramesReady()) {
			o.state = StateBoundaryReached
			break
		}
		if o.search.EndpointDetected(o.endpoint) {
			o.log.Debug("endpoint detected", "frames_decoded", o.search.FramesDecoded())
			o.state = StateBoundaryReached
			break
		}

		hyp, err := o.search.BestPath(false)
		if err != nil {
			return Result{}, err
		}
		if err := o.emitter.Partial(hyp); err != nil {
			return Result{}, err
		}
		o.metrics.RecordPartial(len(hyp.Words))
	}

	return o.finalize()
}

func (o *Orchestrator) finalize() (Result, error) {
	o.state = StateFinalizing
	if err := o.search.Finalize(); err != nil {
		return Result{}, err
	}

	frames := o.search.FramesDecoded()
	if frames == 0 {
		if err := o.emitter.Empty(); err != nil {
			return Result{}, err
		}
		o.metrics.RecordEmpty()
		o.state = StateEmitted
		return Result{FramesDecoded: 0}, nil
	}

	lat, err := o.search.RawLattice(true)
	if err != nil {
		return Result{}, err
	}
	hyps, err := o.emitter.Final(lat)
	if err != nil {
		return Result{}, err
	}
	o.metrics.RecordFinal(hyps)
	o.state = StateEmitted
	return Result{FramesDecoded: frames}, nil
}

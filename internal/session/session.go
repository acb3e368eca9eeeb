// Package session runs the outer decode loop: one utterance after another
// over a single input stream, with a fresh score window and a fresh search
// engine instance per utterance, until a termination chunk arrives.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/rs/xid"

	"github.com/scorebridge/scorebridge/internal/channel"
	"github.com/scorebridge/scorebridge/internal/config"
	"github.com/scorebridge/scorebridge/internal/decode"
	"github.com/scorebridge/scorebridge/internal/emit"
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/score"
	"github.com/scorebridge/scorebridge/internal/telemetry"
)

// Loop owns one decode session over a byte-stream pair.
type Loop struct {
	cfg      config.Config
	log      *slog.Logger
	id       string
	ch       *channel.FrameChannel
	emitter  *emit.Emitter
	provider engine.Provider
	metrics  *telemetry.Recorder
}

// New wires a session over in/out. The channel's class count follows the
// provider's label model so chunk payload sizes always match the engine.
func New(
	cfg config.Config,
	in io.Reader,
	out io.Writer,
	provider engine.Provider,
	recorder *telemetry.Recorder,
	logger *slog.Logger,
) (*Loop, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id := xid.New().String()
	logger = logger.With("session_id", id)

	wordBoundary, err := engine.LoadWordBoundaryInfo(cfg.WordBoundaryFile)
	if err != nil {
		return nil, err
	}

	ch := channel.New(in, channel.Options{
		NumClasses:     provider.Labels().NumClasses(),
		MaxChunkFrames: cfg.ChunkFrames,
		ReadTimeout:    cfg.ReadTimeout,
	}, logger)

	emitter := emit.New(out, provider.Lattice(), emit.Options{
		LMScale:      cfg.LMScale,
		NBest:        cfg.NBest,
		WordBoundary: wordBoundary,
	}, logger)

	return &Loop{
		cfg:      cfg,
		log:      logger.With("component", "session"),
		id:       id,
		ch:       ch,
		emitter:  emitter,
		provider: provider,
		metrics:  recorder,
	}, nil
}

// ID returns the session identifier used in logs and telemetry.
func (l *Loop) ID() string { return l.id }

// Run decodes utterances until a termination chunk arrives, emits the
// termination ack and performs the end-of-session handshake. Channel
// failures end the session; engine failures end it unless the configuration
// says to discard the utterance and continue.
func (l *Loop) Run(ctx context.Context) (err error) {
	sm := l.metrics.StartSession(l.id)
	defer func() { sm.Finish(err) }()
	// A session abandoned mid-stream must not leave the scanner blocked on
	// unread input.
	defer l.ch.Close()

	endpoint := engine.EndpointConfig{
		SilenceClasses:     l.cfg.Endpoint.SilenceClasses,
		MinTrailingSilence: l.cfg.Endpoint.MinTrailingSilence,
		FrameShift:         l.cfg.Endpoint.FrameShift,
	}

	for {
		search, err := l.provider.NewSearch()
		if err != nil {
			return err
		}
		window := score.NewWindow(l.cfg.ChunkFrames, l.provider.Labels().NumClasses())
		um := sm.StartUtterance(xid.New().String())

		orch := decode.New(l.ch, window, search, l.provider.Labels(),
			l.emitter, endpoint, um, l.log)
		res, err := orch.Run(ctx)
		um.Finish(res.FramesDecoded, err)

		if err != nil {
			if isChannelFailure(err) || ctx.Err() != nil {
				return err
			}
			// Engine failure: the utterance's window and engine instance are
			// discarded either way.
			if l.cfg.ContinueOnEngineError {
				l.log.Error("engine failed; discarding utterance", "error", err)
				continue
			}
			return err
		}

		if res.Terminated {
			if err := l.emitter.TerminationAck(); err != nil {
				return err
			}
			break
		}
	}

	return l.ch.AwaitHandshake(ctx)
}

func isChannelFailure(err error) bool {
	return errors.Is(err, channel.ErrTimeout) || errors.Is(err, channel.ErrProtocol)
}

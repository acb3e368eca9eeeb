// Package emit serializes recognition results to the output stream in the
// compact textual protocol: "-1" partial records, "-2" final records made of
// concatenated partial records, and a single "-3" termination ack.
package emit

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"

	"github.com/scorebridge/scorebridge/internal/engine"
)

// Options configures the final-result path.
type Options struct {
	// LMScale is the language-model weight applied to final lattices.
	// Acoustic scaling happened upstream and is never reapplied.
	LMScale float64
	// NBest bounds the hypotheses extracted per final result.
	NBest int
	// WordBoundary enables best-effort alignment when non-nil.
	WordBoundary *engine.WordBoundaryInfo
}

// Emitter writes result records. Each record is assembled in memory and
// handed to the writer as exactly one Write of one line, however large the
// record, so a message-oriented transport never splits a record.
type Emitter struct {
	log   *slog.Logger
	w     io.Writer
	buf   bytes.Buffer
	tools engine.LatticeTools
	opts  Options

	ackSent bool
}

// New constructs an Emitter over w using the provider's lattice tools.
func New(w io.Writer, tools engine.LatticeTools, opts Options, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		log:   logger.With("component", "emit"),
		w:     w,
		tools: tools,
		opts:  opts,
	}
}

// Partial writes the best current path as a "-1" record. No rescoring.
func (e *Emitter) Partial(hyp engine.Hypothesis) error {
	e.writeRecord(hyp.Words)
	return e.flushLine()
}

// Final rescales the lattice by the language-model weight, aligns it against
// word-boundary metadata when configured (best effort), extracts up to NBest
// hypotheses and writes them as one "-2" record. It returns the number of
// hypotheses written.
func (e *Emitter) Final(lat engine.Lattice) (int, error) {
	e.tools.Rescale(lat, e.opts.LMScale)

	if e.opts.WordBoundary != nil {
		aligned, err := e.tools.AlignWordBoundaries(lat, e.opts.WordBoundary)
		if err != nil {
			e.log.Warn("word boundary alignment failed; emitting unaligned lattice", "error", err)
		} else {
			lat = aligned
		}
	}

	hyps, err := e.tools.NBest(lat, e.opts.NBest)
	if err != nil {
		return 0, err
	}

	e.buf.WriteString("-2")
	for _, hyp := range hyps {
		e.buf.WriteByte(' ')
		e.writeRecord(hyp.Words)
	}
	return len(hyps), e.flushLine()
}

// Empty writes the bare "-2" record for an utterance that finalized with
// zero decoded frames.
func (e *Emitter) Empty() error {
	e.buf.WriteString("-2")
	return e.flushLine()
}

// TerminationAck writes the "-3" marker. Repeated calls are no-ops so the
// ack goes out exactly once per session.
func (e *Emitter) TerminationAck() error {
	if e.ackSent {
		return nil
	}
	e.ackSent = true
	e.buf.WriteString("-3")
	return e.flushLine()
}

func (e *Emitter) writeRecord(words []int) {
	e.buf.WriteString("-1")
	for _, w := range words {
		e.buf.WriteByte(' ')
		e.buf.WriteString(strconv.Itoa(w))
	}
}

func (e *Emitter) flushLine() error {
	e.buf.WriteByte('\n')
	_, err := e.w.Write(e.buf.Bytes())
	e.buf.Reset()
	return err
}

// Package score holds the per-utterance frame score buffer the search
// engine reads from. Frame indices are global within one utterance: the
// window slides forward by whole chunks and only the newest chunk is
// addressable at any time.
package score

import (
	"errors"
	"fmt"

	"github.com/scorebridge/scorebridge/internal/channel"
)

var (
	// ErrOutOfRange reports a lookup outside the currently buffered window.
	ErrOutOfRange = errors.New("score: lookup outside the valid window")
	// ErrWindowClosed reports a chunk arriving after the terminal frame.
	ErrWindowClosed = errors.New("score: window already reached its last frame")
)

// Window is a fixed-capacity buffer of frame scores for one utterance.
// Values are stored verbatim; any acoustic scaling happens upstream.
type Window struct {
	capacity   int
	numClasses int

	beginFrame      int
	availableFrames int
	framesReady     int
	lastFrame       int
	scores          []float64
}

// NewWindow returns an empty window holding up to capacity frames of
// numClasses scores each.
func NewWindow(capacity, numClasses int) *Window {
	return &Window{
		capacity:   capacity,
		numClasses: numClasses,
		lastFrame:  -1,
		scores:     make([]float64, capacity*numClasses),
	}
}

// Accept lands a chunk in the window. The window start advances by the
// previous chunk's frame count, so frame indices stay globally monotonic
// within the utterance. An endpoint probe marks the terminal frame and
// closes the window whether or not it carried frames.
func (w *Window) Accept(chunk channel.Chunk) error {
	if chunk.Flag != channel.FlagActivity && chunk.Flag != channel.FlagEndpointProbe {
		return fmt.Errorf("score: cannot accept %s chunk", chunk.Flag)
	}
	if w.lastFrame >= 0 {
		return ErrWindowClosed
	}
	if chunk.FrameCount > w.capacity {
		return fmt.Errorf("score: chunk of %d frames exceeds capacity %d", chunk.FrameCount, w.capacity)
	}

	w.beginFrame += w.availableFrames
	if chunk.FrameCount > 0 {
		copy(w.scores, chunk.Scores[:chunk.FrameCount*w.numClasses])
	}
	w.availableFrames = chunk.FrameCount
	w.framesReady += chunk.FrameCount

	if chunk.Flag == channel.FlagEndpointProbe {
		w.lastFrame = w.framesReady
	}
	return nil
}

// ScoreAt returns the buffered log-likelihood for (frame, class).
func (w *Window) ScoreAt(frame, class int) (float64, error) {
	if frame < w.beginFrame || frame >= w.beginFrame+w.availableFrames {
		return 0, fmt.Errorf("%w: frame %d not in [%d, %d)",
			ErrOutOfRange, frame, w.beginFrame, w.beginFrame+w.availableFrames)
	}
	if class < 0 || class >= w.numClasses {
		return 0, fmt.Errorf("%w: class %d not in [0, %d)", ErrOutOfRange, class, w.numClasses)
	}
	return w.scores[(frame-w.beginFrame)*w.numClasses+class], nil
}

// IsLastFrame reports whether frame is the utterance's terminal frame.
func (w *Window) IsLastFrame(frame int) bool {
	return w.lastFrame >= 0 && frame == w.lastFrame
}

// Closed reports whether the terminal frame has been marked.
func (w *Window) Closed() bool { return w.lastFrame >= 0 }

// FramesReady returns the cumulative number of frames landed so far.
func (w *Window) FramesReady() int { return w.framesReady }

// BeginFrame returns the first frame index of the current window.
func (w *Window) BeginFrame() int { return w.beginFrame }

// AvailableFrames returns the number of addressable frames in the window.
func (w *Window) AvailableFrames() int { return w.availableFrames }

// NumClasses returns the score columns per frame.
func (w *Window) NumClasses() int { return w.numClasses }

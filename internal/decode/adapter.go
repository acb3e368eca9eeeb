package decode

import (
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/score"
)

// Adapter exposes the score window through the scorer capability the search
// engine consumes, translating arc labels to scoring classes via the label
// model. It holds no state of its own.
type Adapter struct {
	window *score.Window
	labels engine.LabelModel
}

// NewAdapter binds a window and a label model.
func NewAdapter(window *score.Window, labels engine.LabelModel) *Adapter {
	return &Adapter{window: window, labels: labels}
}

// LogLikelihood returns the buffered score for the frame and the label's
// scoring class. No scaling is applied.
func (a *Adapter) LogLikelihood(frame, label int) (float64, error) {
	return a.window.ScoreAt(frame, a.labels.ClassOf(label))
}

// IsLastFrame reports whether frame is the utterance's terminal frame.
func (a *Adapter) IsLastFrame(frame int) bool {
	return a.window.IsLastFrame(frame)
}

// NumFramesReady returns the cumulative frames available for decoding.
func (a *Adapter) NumFramesReady() int {
	return a.window.FramesReady()
}

package channel

import "fmt"

// Flag identifies the kind of a framed chunk on the wire.
type Flag int

const (
	// FlagActivity marks a normal batch of score frames.
	FlagActivity Flag = -1
	// FlagEndpointProbe marks a possibly empty batch whose last frame ends the utterance.
	FlagEndpointProbe Flag = -2
	// FlagTermination ends the whole session. It carries no payload.
	FlagTermination Flag = -3
)

func (f Flag) String() string {
	switch f {
	case FlagActivity:
		return "activity"
	case FlagEndpointProbe:
		return "endpoint-probe"
	case FlagTermination:
		return "termination"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// Chunk is one framed unit of input: a flag, a frame count and a
// row-major FrameCount x classes matrix of log-likelihoods.
// Termination chunks carry neither frame count nor scores.
type Chunk struct {
	Flag       Flag
	FrameCount int
	Scores     []float64
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultListenAddr is used by serve mode when no address is injected.
	DefaultListenAddr = "127.0.0.1:8320"
	DefaultLogLevel   = "info"
	DefaultBackend    = "stub"

	DefaultNumClasses  = 40
	DefaultChunkFrames = 64
	DefaultNBest       = 10

	DefaultReadTimeout  = 30 * time.Minute
	DefaultPollInterval = 10 * time.Millisecond

	DefaultAcousticScale = 0.1
	DefaultLMScale       = 1.0

	DefaultBeam          = 16.0
	DefaultMaxActive     = 7000
	DefaultMinActive     = 200
	DefaultLatticeBeam   = 10.0
	DefaultPruneInterval = 25
	DefaultBeamDelta     = 0.5
	DefaultHashRatio     = 2.0
	DefaultPruneScale    = 0.1

	DefaultFrameShift         = 0.01
	DefaultMinTrailingSilence = 30
)

// Search groups the beam and pruning parameters handed opaquely to the
// search engine. The bridge never interprets them.
type Search struct {
	Beam          float64
	MaxActive     int
	MinActive     int
	LatticeBeam   float64
	PruneInterval int
	BeamDelta     float64
	HashRatio     float64
	PruneScale    float64
}

// Endpoint configures the engine's independent endpoint predicate.
type Endpoint struct {
	// SilenceClasses lists the scoring classes treated as silence.
	SilenceClasses []int
	// MinTrailingSilence is the trailing silence run, in frames, that ends
	// an utterance.
	MinTrailingSilence int
	// FrameShift is the frame duration in seconds.
	FrameShift float64
}

// Config captures the full configuration surface of the bridge.
type Config struct {
	LogLevel   string
	ListenAddr string

	// Backend selects the search engine provider; "stub" is built in.
	Backend string
	// NumClasses is the score columns per frame the upstream scorer emits.
	NumClasses int
	// ChunkFrames is the score window capacity and maximum chunk size.
	ChunkFrames int

	ReadTimeout  time.Duration
	PollInterval time.Duration

	// AcousticScale is recorded for the engine's benefit only: scores arrive
	// already scaled and are never rescaled here.
	AcousticScale float64
	LMScale       float64
	NBest         int

	// WordBoundaryFile names the word-boundary metadata used to align final
	// lattices. Empty or "None" disables alignment.
	WordBoundaryFile string

	// ContinueOnEngineError keeps the session alive across utterances whose
	// engine failed; channel failures always end the session.
	ContinueOnEngineError bool

	Search   Search
	Endpoint Endpoint
}

// Default returns a Config populated with every default value.
func Default() Config {
	return Config{
		LogLevel:     DefaultLogLevel,
		ListenAddr:   DefaultListenAddr,
		Backend:      DefaultBackend,
		NumClasses:   DefaultNumClasses,
		ChunkFrames:  DefaultChunkFrames,
		ReadTimeout:  DefaultReadTimeout,
		PollInterval: DefaultPollInterval,

		AcousticScale: DefaultAcousticScale,
		LMScale:       DefaultLMScale,
		NBest:         DefaultNBest,

		Search: Search{
			Beam:          DefaultBeam,
			MaxActive:     DefaultMaxActive,
			MinActive:     DefaultMinActive,
			LatticeBeam:   DefaultLatticeBeam,
			PruneInterval: DefaultPruneInterval,
			BeamDelta:     DefaultBeamDelta,
			HashRatio:     DefaultHashRatio,
			PruneScale:    DefaultPruneScale,
		},
		Endpoint: Endpoint{
			MinTrailingSilence: DefaultMinTrailingSilence,
			FrameShift:         DefaultFrameShift,
		},
	}
}

// Validate applies defaults for empty fields and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("config: classes must be > 0, got %d", c.NumClasses)
	}
	if c.ChunkFrames <= 0 {
		return fmt.Errorf("config: chunk-frames must be > 0, got %d", c.ChunkFrames)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("config: timeout must be > 0, got %s", c.ReadTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll-interval must be > 0, got %s", c.PollInterval)
	}
	if c.NBest < 1 {
		return fmt.Errorf("config: n-best must be >= 1, got %d", c.NBest)
	}
	if c.Search.Beam <= 0 {
		return fmt.Errorf("config: beam must be > 0, got %g", c.Search.Beam)
	}
	if c.Search.MaxActive <= 1 {
		return fmt.Errorf("config: max-active must be > 1, got %d", c.Search.MaxActive)
	}
	if c.Search.MinActive >= c.Search.MaxActive {
		return fmt.Errorf("config: min-active %d must be below max-active %d",
			c.Search.MinActive, c.Search.MaxActive)
	}
	if c.Search.LatticeBeam <= 0 {
		return fmt.Errorf("config: lattice-beam must be > 0, got %g", c.Search.LatticeBeam)
	}
	if c.Search.PruneInterval <= 0 {
		return fmt.Errorf("config: prune-interval must be > 0, got %d", c.Search.PruneInterval)
	}
	if c.Search.BeamDelta <= 0 {
		return fmt.Errorf("config: beam-delta must be > 0, got %g", c.Search.BeamDelta)
	}
	if c.Search.HashRatio < 1 {
		return fmt.Errorf("config: hash-ratio must be >= 1, got %g", c.Search.HashRatio)
	}
	if c.Search.PruneScale <= 0 || c.Search.PruneScale >= 1 {
		return fmt.Errorf("config: prune-scale must be in (0, 1), got %g", c.Search.PruneScale)
	}
	if c.Endpoint.MinTrailingSilence < 0 {
		return fmt.Errorf("config: min-trailing-silence must be >= 0, got %d", c.Endpoint.MinTrailingSilence)
	}
	if c.Endpoint.FrameShift <= 0 {
		return fmt.Errorf("config: frame-shift must be > 0, got %g", c.Endpoint.FrameShift)
	}
	for _, class := range c.Endpoint.SilenceClasses {
		if class < 0 || class >= c.NumClasses {
			return fmt.Errorf("config: silence class %d not in [0, %d)", class, c.NumClasses)
		}
	}
	if strings.EqualFold(c.WordBoundaryFile, "None") {
		c.WordBoundaryFile = ""
	}
	return nil
}

// ParseSilenceClasses parses the colon-separated class list used on the
// command line and in environment overrides, e.g. "1:2:3:4".
func ParseSilenceClasses(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ":")
	classes := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("config: malformed silence class %q", p)
		}
		classes = append(classes, v)
	}
	return classes, nil
}

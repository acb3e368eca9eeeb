package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scorebridge/scorebridge/internal/bridge"
	"github.com/scorebridge/scorebridge/internal/bridgeinfo"
	"github.com/scorebridge/scorebridge/internal/config"
	"github.com/scorebridge/scorebridge/internal/engine"
	"github.com/scorebridge/scorebridge/internal/session"
	"github.com/scorebridge/scorebridge/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options carries the raw flag values; only flags the user actually set
// override the loaded configuration.
type options struct {
	configPath string
	logLevel   string

	backend     string
	classes     int
	chunkFrames int
	nBest       int

	timeout      time.Duration
	pollInterval time.Duration

	acousticScale float64
	lmScale       float64

	beam          float64
	maxActive     int
	minActive     int
	latticeBeam   float64
	pruneInterval int
	beamDelta     float64
	hashRatio     float64
	pruneScale    float64

	silenceClasses     string
	minTrailingSilence int
	frameShift         float64

	wordBoundary    string
	continueOnError bool

	listenAddr string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           bridgeinfo.Info.BinaryName,
		Short:         bridgeinfo.Info.Description,
		Version:       bridgeinfo.Info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")

	pf.StringVar(&opts.backend, "engine", config.DefaultBackend, "search engine backend")
	pf.IntVar(&opts.classes, "classes", config.DefaultNumClasses, "scoring classes per frame")
	pf.IntVar(&opts.chunkFrames, "chunk-frames", config.DefaultChunkFrames, "score window capacity in frames")
	pf.IntVar(&opts.nBest, "n-best", config.DefaultNBest, "hypotheses per final result")

	pf.DurationVar(&opts.timeout, "timeout", config.DefaultReadTimeout, "input read timeout")
	pf.DurationVar(&opts.pollInterval, "poll-interval", config.DefaultPollInterval, "input poll interval")

	pf.Float64Var(&opts.acousticScale, "acoustic-scale", config.DefaultAcousticScale, "acoustic scale the upstream scorer applied")
	pf.Float64Var(&opts.lmScale, "lm-scale", config.DefaultLMScale, "language model weight for final results")

	pf.Float64Var(&opts.beam, "beam", config.DefaultBeam, "decoding beam")
	pf.IntVar(&opts.maxActive, "max-active", config.DefaultMaxActive, "max active search states")
	pf.IntVar(&opts.minActive, "min-active", config.DefaultMinActive, "min active search states")
	pf.Float64Var(&opts.latticeBeam, "lattice-beam", config.DefaultLatticeBeam, "lattice generation beam")
	pf.IntVar(&opts.pruneInterval, "prune-interval", config.DefaultPruneInterval, "frames between lattice prunes")
	pf.Float64Var(&opts.beamDelta, "beam-delta", config.DefaultBeamDelta, "beam adjustment increment")
	pf.Float64Var(&opts.hashRatio, "hash-ratio", config.DefaultHashRatio, "state hash table ratio")
	pf.Float64Var(&opts.pruneScale, "prune-scale", config.DefaultPruneScale, "pruning cost scale")

	pf.StringVar(&opts.silenceClasses, "silence-classes", "", "colon-separated silence classes, e.g. 1:2:3:4")
	pf.IntVar(&opts.minTrailingSilence, "min-trailing-silence", config.DefaultMinTrailingSilence, "trailing silence frames that end an utterance")
	pf.Float64Var(&opts.frameShift, "frame-shift", config.DefaultFrameShift, "frame shift in seconds")

	pf.StringVar(&opts.wordBoundary, "word-boundary", "", "word boundary file, or None to disable alignment")
	pf.BoolVar(&opts.continueOnError, "continue-on-engine-error", false, "keep the session alive across engine failures")

	root.AddCommand(newDecodeCmd(opts), newServeCmd(opts))
	return root
}

func newDecodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode",
		Short: "Run one decode session over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			recorder := telemetry.NewRecorder(logger)
			provider, err := resolveProvider(cfg, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			// Results own stdout; logs go to stderr.
			loop, err := session.New(cfg, os.Stdin, os.Stdout, provider, recorder, logger)
			if err != nil {
				logger.Error("session setup failed", "error", err)
				return err
			}

			runErr := loop.Run(ctx)
			logTotals(logger, recorder)
			if runErr != nil {
				logger.Error("session ended with error", "error", runErr)
			}
			return runErr
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve decode sessions over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			recorder := telemetry.NewRecorder(logger)
			provider, err := resolveProvider(cfg, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			server := bridge.NewServer(cfg, provider, recorder, logger)
			serveErr := server.ListenAndServe(ctx)
			logTotals(logger, recorder)
			if serveErr != nil {
				logger.Error("bridge server terminated with error", "error", serveErr)
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&opts.listenAddr, "listen", config.DefaultListenAddr, "bridge listen address")
	return cmd
}

func setup(cmd *cobra.Command, opts *options) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return config.Config{}, nil, err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	logger.Info("starting "+bridgeinfo.Info.Name,
		"version", bridgeinfo.Info.Version,
		"backend", cfg.Backend,
		"classes", cfg.NumClasses,
		"chunk_frames", cfg.ChunkFrames,
	)
	return cfg, logger, nil
}

// loadConfig layers the file/env configuration with the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Loader{Path: opts.configPath}.Load()
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool {
		if f := cmd.Flags().Lookup(name); f != nil {
			return f.Changed
		}
		return false
	}

	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("engine") {
		cfg.Backend = opts.backend
	}
	if changed("classes") {
		cfg.NumClasses = opts.classes
	}
	if changed("chunk-frames") {
		cfg.ChunkFrames = opts.chunkFrames
	}
	if changed("n-best") {
		cfg.NBest = opts.nBest
	}
	if changed("timeout") {
		cfg.ReadTimeout = opts.timeout
	}
	if changed("poll-interval") {
		cfg.PollInterval = opts.pollInterval
	}
	if changed("acoustic-scale") {
		cfg.AcousticScale = opts.acousticScale
	}
	if changed("lm-scale") {
		cfg.LMScale = opts.lmScale
	}
	if changed("beam") {
		cfg.Search.Beam = opts.beam
	}
	if changed("max-active") {
		cfg.Search.MaxActive = opts.maxActive
	}
	if changed("min-active") {
		cfg.Search.MinActive = opts.minActive
	}
	if changed("lattice-beam") {
		cfg.Search.LatticeBeam = opts.latticeBeam
	}
	if changed("prune-interval") {
		cfg.Search.PruneInterval = opts.pruneInterval
	}
	if changed("beam-delta") {
		cfg.Search.BeamDelta = opts.beamDelta
	}
	if changed("hash-ratio") {
		cfg.Search.HashRatio = opts.hashRatio
	}
	if changed("prune-scale") {
		cfg.Search.PruneScale = opts.pruneScale
	}
	if changed("silence-classes") {
		classes, err := config.ParseSilenceClasses(opts.silenceClasses)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Endpoint.SilenceClasses = classes
	}
	if changed("min-trailing-silence") {
		cfg.Endpoint.MinTrailingSilence = opts.minTrailingSilence
	}
	if changed("frame-shift") {
		cfg.Endpoint.FrameShift = opts.frameShift
	}
	if changed("word-boundary") {
		cfg.WordBoundaryFile = opts.wordBoundary
	}
	if changed("continue-on-engine-error") {
		cfg.ContinueOnEngineError = opts.continueOnError
	}
	if changed("listen") {
		cfg.ListenAddr = opts.listenAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveProvider(cfg config.Config, logger *slog.Logger) (engine.Provider, error) {
	provider, err := engine.New(cfg, logger)
	if err != nil {
		if provider != nil && errors.Is(err, engine.ErrBackendUnavailable) {
			logger.Warn("engine initialised with warnings", "error", err)
			return provider, nil
		}
		logger.Error("failed to initialise engine", "error", err)
		return nil, err
	}
	return provider, nil
}

func logTotals(logger *slog.Logger, recorder *telemetry.Recorder) {
	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions == 0 {
		return
	}
	logger.Info("telemetry totals",
		"total_sessions", snapshot.TotalSessions,
		"total_utterances", snapshot.TotalUtterances,
		"total_chunks", snapshot.TotalChunks,
		"total_frames", snapshot.TotalFrames,
		"total_partials", snapshot.TotalPartials,
		"total_finals", snapshot.TotalFinals,
		"total_empties", snapshot.TotalEmpties,
	)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

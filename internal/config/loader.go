package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable pointing at a YAML config
// file when no explicit path is given.
const EnvConfigPath = "SCOREBRIDGE_CONFIG"

// Loader loads configuration from an optional YAML file and environment
// overrides. Tests can override Lookup to inject deterministic maps.
type Loader struct {
	// Path names the config file; falls back to SCOREBRIDGE_CONFIG.
	Path   string
	Lookup func(string) (string, bool)
}

// Load builds the configuration: defaults, then the YAML file, then
// environment overrides, then validation.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Default()

	path := l.Path
	if path == "" {
		if p, ok := l.Lookup(EnvConfigPath); ok {
			path = strings.TrimSpace(p)
		}
	}
	if path != "" {
		if err := applyFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "SCOREBRIDGE_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "SCOREBRIDGE_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "SCOREBRIDGE_BACKEND", &cfg.Backend)
	overrideString(l.Lookup, "SCOREBRIDGE_WORD_BOUNDARY", &cfg.WordBoundaryFile)
	if err := overrideInt(l.Lookup, "SCOREBRIDGE_CLASSES", &cfg.NumClasses); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SCOREBRIDGE_CHUNK_FRAMES", &cfg.ChunkFrames); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SCOREBRIDGE_N_BEST", &cfg.NBest); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "SCOREBRIDGE_TIMEOUT", &cfg.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "SCOREBRIDGE_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if raw, ok := l.Lookup("SCOREBRIDGE_SILENCE_CLASSES"); ok && strings.TrimSpace(raw) != "" {
		classes, err := ParseSilenceClasses(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Endpoint.SilenceClasses = classes
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// yamlConfig mirrors Config with wire-friendly field types. Durations are
// strings in Go duration syntax.
type yamlConfig struct {
	LogLevel   string `yaml:"log_level"`
	ListenAddr string `yaml:"listen_addr"`
	Backend    string `yaml:"backend"`

	Classes     int `yaml:"classes"`
	ChunkFrames int `yaml:"chunk_frames"`
	NBest       int `yaml:"n_best"`

	Timeout      string `yaml:"timeout"`
	PollInterval string `yaml:"poll_interval"`

	AcousticScale *float64 `yaml:"acoustic_scale"`
	LMScale       *float64 `yaml:"lm_scale"`

	WordBoundaryFile      string `yaml:"word_boundary_file"`
	ContinueOnEngineError *bool  `yaml:"continue_on_engine_error"`

	Search struct {
		Beam          *float64 `yaml:"beam"`
		MaxActive     *int     `yaml:"max_active"`
		MinActive     *int     `yaml:"min_active"`
		LatticeBeam   *float64 `yaml:"lattice_beam"`
		PruneInterval *int     `yaml:"prune_interval"`
		BeamDelta     *float64 `yaml:"beam_delta"`
		HashRatio     *float64 `yaml:"hash_ratio"`
		PruneScale    *float64 `yaml:"prune_scale"`
	} `yaml:"search"`

	Endpoint struct {
		SilenceClasses     []int    `yaml:"silence_classes"`
		MinTrailingSilence *int     `yaml:"min_trailing_silence"`
		FrameShift         *float64 `yaml:"frame_shift"`
	} `yaml:"endpoint"`
}

func applyFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var payload yamlConfig
	if err := yaml.NewDecoder(f).Decode(&payload); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}

	setString(payload.LogLevel, &cfg.LogLevel)
	setString(payload.ListenAddr, &cfg.ListenAddr)
	setString(payload.Backend, &cfg.Backend)
	setString(payload.WordBoundaryFile, &cfg.WordBoundaryFile)
	if payload.Classes > 0 {
		cfg.NumClasses = payload.Classes
	}
	if payload.ChunkFrames > 0 {
		cfg.ChunkFrames = payload.ChunkFrames
	}
	if payload.NBest > 0 {
		cfg.NBest = payload.NBest
	}
	if err := setDuration(payload.Timeout, &cfg.ReadTimeout); err != nil {
		return fmt.Errorf("config: timeout: %w", err)
	}
	if err := setDuration(payload.PollInterval, &cfg.PollInterval); err != nil {
		return fmt.Errorf("config: poll_interval: %w", err)
	}
	setFloat(payload.AcousticScale, &cfg.AcousticScale)
	setFloat(payload.LMScale, &cfg.LMScale)
	if payload.ContinueOnEngineError != nil {
		cfg.ContinueOnEngineError = *payload.ContinueOnEngineError
	}

	setFloat(payload.Search.Beam, &cfg.Search.Beam)
	setInt(payload.Search.MaxActive, &cfg.Search.MaxActive)
	setInt(payload.Search.MinActive, &cfg.Search.MinActive)
	setFloat(payload.Search.LatticeBeam, &cfg.Search.LatticeBeam)
	setInt(payload.Search.PruneInterval, &cfg.Search.PruneInterval)
	setFloat(payload.Search.BeamDelta, &cfg.Search.BeamDelta)
	setFloat(payload.Search.HashRatio, &cfg.Search.HashRatio)
	setFloat(payload.Search.PruneScale, &cfg.Search.PruneScale)

	if payload.Endpoint.SilenceClasses != nil {
		cfg.Endpoint.SilenceClasses = payload.Endpoint.SilenceClasses
	}
	setInt(payload.Endpoint.MinTrailingSilence, &cfg.Endpoint.MinTrailingSilence)
	setFloat(payload.Endpoint.FrameShift, &cfg.Endpoint.FrameShift)
	return nil
}

func setString(value string, target *string) {
	if strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func setInt(value *int, target *int) {
	if value != nil {
		*target = *value
	}
}

func setFloat(value *float64, target *float64) {
	if value != nil {
		*target = *value
	}
}

func setDuration(value string, target *time.Duration) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*target = d
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = v
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scorebridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(nil)}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != DefaultBackend {
		t.Fatalf("expected backend %q, got %q", DefaultBackend, cfg.Backend)
	}
	if cfg.NumClasses != DefaultNumClasses {
		t.Fatalf("expected %d classes, got %d", DefaultNumClasses, cfg.NumClasses)
	}
	if cfg.ReadTimeout != DefaultReadTimeout {
		t.Fatalf("expected timeout %s, got %s", DefaultReadTimeout, cfg.ReadTimeout)
	}
	if cfg.Search.Beam != DefaultBeam {
		t.Fatalf("expected beam %g, got %g", DefaultBeam, cfg.Search.Beam)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level: debug
backend: stub
classes: 8
chunk_frames: 32
n_best: 3
timeout: 90s
lm_scale: 0.7
word_boundary_file: /models/word_boundary.int
continue_on_engine_error: true
search:
  beam: 12.5
  max_active: 5000
endpoint:
  silence_classes: [1, 2]
  min_trailing_silence: 20
  frame_shift: 0.02
`)

	cfg, err := Loader{Path: path, Lookup: mapLookup(nil)}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.NumClasses != 8 || cfg.ChunkFrames != 32 || cfg.NBest != 3 {
		t.Fatalf("unexpected sizes: classes=%d chunk_frames=%d n_best=%d",
			cfg.NumClasses, cfg.ChunkFrames, cfg.NBest)
	}
	if cfg.ReadTimeout != 90*time.Second {
		t.Fatalf("expected 90s timeout, got %s", cfg.ReadTimeout)
	}
	if cfg.LMScale != 0.7 {
		t.Fatalf("expected lm scale 0.7, got %g", cfg.LMScale)
	}
	if cfg.WordBoundaryFile != "/models/word_boundary.int" {
		t.Fatalf("unexpected word boundary file %q", cfg.WordBoundaryFile)
	}
	if !cfg.ContinueOnEngineError {
		t.Fatal("expected continue_on_engine_error to be set")
	}
	if cfg.Search.Beam != 12.5 || cfg.Search.MaxActive != 5000 {
		t.Fatalf("unexpected search params: beam=%g max_active=%d", cfg.Search.Beam, cfg.Search.MaxActive)
	}
	// Untouched search fields keep their defaults.
	if cfg.Search.LatticeBeam != DefaultLatticeBeam {
		t.Fatalf("expected default lattice beam, got %g", cfg.Search.LatticeBeam)
	}
	if len(cfg.Endpoint.SilenceClasses) != 2 || cfg.Endpoint.SilenceClasses[0] != 1 {
		t.Fatalf("unexpected silence classes %v", cfg.Endpoint.SilenceClasses)
	}
	if cfg.Endpoint.MinTrailingSilence != 20 || cfg.Endpoint.FrameShift != 0.02 {
		t.Fatalf("unexpected endpoint config %+v", cfg.Endpoint)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "classes: 8\nbackend: stub\n")
	env := map[string]string{
		"SCOREBRIDGE_LOG_LEVEL":       "warn",
		"SCOREBRIDGE_CLASSES":         "16",
		"SCOREBRIDGE_TIMEOUT":         "45s",
		"SCOREBRIDGE_SILENCE_CLASSES": "1:2:3",
	}

	cfg, err := Loader{Path: path, Lookup: mapLookup(env)}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log level warn, got %q", cfg.LogLevel)
	}
	if cfg.NumClasses != 16 {
		t.Fatalf("expected env to win with 16 classes, got %d", cfg.NumClasses)
	}
	if cfg.ReadTimeout != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %s", cfg.ReadTimeout)
	}
	if len(cfg.Endpoint.SilenceClasses) != 3 {
		t.Fatalf("unexpected silence classes %v", cfg.Endpoint.SilenceClasses)
	}
}

func TestLoadFilePathFromEnv(t *testing.T) {
	path := writeConfigFile(t, "n_best: 5\n")
	env := map[string]string{EnvConfigPath: path}

	cfg, err := Loader{Lookup: mapLookup(env)}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NBest != 5 {
		t.Fatalf("expected n-best 5, got %d", cfg.NBest)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "missing file", env: map[string]string{EnvConfigPath: "/nonexistent/scorebridge.yaml"}},
		{name: "bad yaml", file: "classes: [not an int\n"},
		{name: "bad duration", file: "timeout: soon\n"},
		{name: "bad env int", env: map[string]string{"SCOREBRIDGE_CLASSES": "many"}},
		{name: "bad env duration", env: map[string]string{"SCOREBRIDGE_TIMEOUT": "later"}},
		{name: "bad env silence classes", env: map[string]string{"SCOREBRIDGE_SILENCE_CLASSES": "a:b"}},
		{name: "fails validation", file: "search:\n  prune_scale: 2\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loader := Loader{Lookup: mapLookup(tc.env)}
			if tc.file != "" {
				loader.Path = writeConfigFile(t, tc.file)
			}
			if _, err := loader.Load(); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

package config

import (
	"testing"
	"time"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateFillsEmptyStrings(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = ""
	cfg.ListenAddr = ""
	cfg.Backend = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("expected listen addr %q, got %q", DefaultListenAddr, cfg.ListenAddr)
	}
	if cfg.Backend != DefaultBackend {
		t.Fatalf("expected backend %q, got %q", DefaultBackend, cfg.Backend)
	}
}

func TestValidateNormalizesWordBoundaryNone(t *testing.T) {
	cfg := Default()
	cfg.WordBoundaryFile = "None"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.WordBoundaryFile != "" {
		t.Fatalf("expected None to normalize to empty, got %q", cfg.WordBoundaryFile)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "classes", mutate: func(c *Config) { c.NumClasses = 0 }},
		{name: "chunk frames", mutate: func(c *Config) { c.ChunkFrames = -1 }},
		{name: "timeout", mutate: func(c *Config) { c.ReadTimeout = 0 }},
		{name: "poll interval", mutate: func(c *Config) { c.PollInterval = -time.Second }},
		{name: "n-best", mutate: func(c *Config) { c.NBest = 0 }},
		{name: "beam", mutate: func(c *Config) { c.Search.Beam = 0 }},
		{name: "max active", mutate: func(c *Config) { c.Search.MaxActive = 1 }},
		{name: "min over max", mutate: func(c *Config) { c.Search.MinActive = c.Search.MaxActive }},
		{name: "lattice beam", mutate: func(c *Config) { c.Search.LatticeBeam = 0 }},
		{name: "prune interval", mutate: func(c *Config) { c.Search.PruneInterval = 0 }},
		{name: "beam delta", mutate: func(c *Config) { c.Search.BeamDelta = 0 }},
		{name: "hash ratio", mutate: func(c *Config) { c.Search.HashRatio = 0.5 }},
		{name: "prune scale", mutate: func(c *Config) { c.Search.PruneScale = 1 }},
		{name: "trailing silence", mutate: func(c *Config) { c.Endpoint.MinTrailingSilence = -1 }},
		{name: "frame shift", mutate: func(c *Config) { c.Endpoint.FrameShift = 0 }},
		{name: "silence class range", mutate: func(c *Config) { c.Endpoint.SilenceClasses = []int{99} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseSilenceClasses(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int
		wantErr bool
	}{
		{name: "typical", raw: "1:2:3:4", want: []int{1, 2, 3, 4}},
		{name: "single", raw: "0", want: []int{0}},
		{name: "spaced", raw: " 1 : 2 ", want: []int{1, 2}},
		{name: "empty", raw: "", want: nil},
		{name: "malformed", raw: "1:x", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSilenceClasses(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSilenceClasses: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scorebridge/scorebridge/internal/config"
)

// ErrBackendUnavailable indicates that the requested native search backend
// is not registered in this build.
var ErrBackendUnavailable = errors.New("engine: search backend unavailable")

// Constructor builds a Provider for a registered backend.
type Constructor func(cfg config.Config, logger *slog.Logger) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a native backend constructor available under name.
// Typically called from an init function of a backend package.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("engine: backend %q registered twice", name))
	}
	registry[name] = ctor
}

func lookup(name string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	return ctor, ok
}

// New resolves the configured backend. When the backend is unknown the stub
// provider is returned together with ErrBackendUnavailable so callers can
// log the degradation and continue.
func New(cfg config.Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Backend == "" || cfg.Backend == "stub" {
		return NewStubProvider(logger, cfg.NumClasses), nil
	}

	ctor, ok := lookup(cfg.Backend)
	if !ok {
		logger.Warn("search backend not registered; using stub engine", "backend", cfg.Backend)
		return NewStubProvider(logger, cfg.NumClasses),
			fmt.Errorf("%w: %s", ErrBackendUnavailable, cfg.Backend)
	}
	return ctor(cfg, logger)
}

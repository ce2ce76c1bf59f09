package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter that logs to logger.
type Factory func(logger *slog.Logger) Adapter

// sources maps a source type (the source.type config key) to its factory.
var sources = struct {
	sync.RWMutex
	byType map[string]Factory
}{byType: make(map[string]Factory)}

// Register makes a source type available to NewAdapter. It panics on an
// empty type, a nil factory or a type registered twice.
func Register(sourceType string, factory Factory) {
	if sourceType == "" || factory == nil {
		panic("adapter: Register needs a source type and a factory")
	}
	sources.Lock()
	defer sources.Unlock()
	if _, dup := sources.byType[sourceType]; dup {
		panic("adapter: source type registered twice: " + sourceType)
	}
	sources.byType[sourceType] = factory
}

// NewAdapter returns an unconnected adapter for cfg.Type.
// A nil logger discards output.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not set (one of %s)", strings.Join(Types(), ", "))
	}
	sources.RLock()
	factory, ok := sources.byType[cfg.Type]
	sources.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Types()}
	}
	return factory(logger), nil
}

// Types lists the registered source types in sorted order.
func Types() []string {
	sources.RLock()
	defer sources.RUnlock()
	return slices.Sorted(maps.Keys(sources.byType))
}

// Supported reports whether sourceType has been registered.
func Supported(sourceType string) bool {
	sources.RLock()
	defer sources.RUnlock()
	_, ok := sources.byType[sourceType]
	return ok
}

// UnknownAdapterError names a source type nothing registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown source type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

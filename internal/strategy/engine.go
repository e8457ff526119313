package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/crossbt/internal/core"
	"go.uber.org/zap"
)

// Factory builds a fresh strategy instance from its configuration.
type Factory func(cfg Config) (Strategy, error)

// Registry maps strategy names to factories. Every lookup builds a new
// instance, so concurrent runs never share derived state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates a new strategy registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory, replacing any previous one of that name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		r.logger.Warn("replacing strategy factory", zap.String("strategy", name))
	}
	r.factories[name] = f
}

// Has reports whether a strategy is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// New builds a strategy by name.
func (r *Registry) New(name string, cfg Config) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("unknown strategy %q", name))
	}

	s, err := f(cfg)
	if err != nil {
		r.logger.Warn("strategy construction failed",
			zap.String("strategy", name),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("strategy created",
		zap.String("strategy", name),
		zap.String("description", s.Description()),
	)
	return s, nil
}

// Names returns all registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.factories))
	for name := range r.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

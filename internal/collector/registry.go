package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/crossbt/internal/core"
)

// Registry manages market data sources by name
type Registry struct {
	mu      sync.RWMutex
	sources map[string]MarketData
}

// NewRegistry creates a new collector registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]MarketData),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(m MarketData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[m.Name()] = m
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (MarketData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sources[name]
	if !ok {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unknown source %q", name))
	}
	return m, nil
}

// Names returns all registered source names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.sources))
	for name := range r.sources {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

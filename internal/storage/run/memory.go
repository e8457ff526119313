package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/crossbt/internal/core"
)

// MemoryStore is an in-memory run store.
type MemoryStore struct {
	runs    []Record
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]Record, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds a run to the store.
func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m.runs = append(m.runs, rec)

	// Trim if over capacity (remove oldest)
	if len(m.runs) > m.maxSize {
		m.runs = m.runs[len(m.runs)-m.maxSize:]
	}

	return nil
}

// GetByID retrieves a run by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].ID == id {
			rec := m.runs[i]
			return &rec, nil
		}
	}
	return nil, core.WrapError(core.ErrRunNotFound, fmt.Errorf("id %s", id))
}

// List returns runs matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Record{}
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.matches(m.runs[i], filter) {
			result = append(result, m.runs[i])
		}
	}

	// Apply offset and limit
	if filter.Offset >= len(result) && filter.Offset > 0 {
		return []Record{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching runs.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.runs {
		if m.matches(rec, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) matches(rec Record, filter ListFilter) bool {
	if filter.Symbol != "" && rec.Symbol != filter.Symbol {
		return false
	}
	if filter.Strategy != "" && rec.Strategy != filter.Strategy {
		return false
	}
	if !filter.From.IsZero() && rec.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && rec.CreatedAt.After(filter.To) {
		return false
	}
	return true
}

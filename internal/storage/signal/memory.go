package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/newthinker/vanguard/internal/core"
)

// DefaultMaxSize bounds the history when no size is given.
const DefaultMaxSize = 1000

// MemoryStore is a bounded in-memory history. The oldest signals are dropped
// first.
type MemoryStore struct {
	signals []core.ConsensusSignal
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryStore{
		signals: make([]core.ConsensusSignal, 0, maxSize),
		maxSize: maxSize,
	}
}

// SaveBatch appends the batch, assigning IDs to signals that have none.
func (m *MemoryStore) SaveBatch(ctx context.Context, batch []core.ConsensusSignal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sig := range batch {
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}
		m.signals = append(m.signals, sig)
	}

	// Trim if over capacity (remove oldest)
	if len(m.signals) > m.maxSize {
		m.signals = append([]core.ConsensusSignal(nil), m.signals[len(m.signals)-m.maxSize:]...)
	}
	return nil
}

// GetByID retrieves a signal by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.ConsensusSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.signals {
		if m.signals[i].ID == id {
			sig := m.signals[i]
			return &sig, nil
		}
	}
	return nil, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
}

// List returns signals matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.ConsensusSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []core.ConsensusSignal{}
	for i := len(m.signals) - 1; i >= 0; i-- {
		if matches(m.signals[i], filter) {
			result = append(result, m.signals[i])
		}
	}

	// Apply offset and limit
	if filter.Offset >= len(result) {
		return []core.ConsensusSignal{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching signals.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sig := range m.signals {
		if matches(sig, filter) {
			count++
		}
	}
	return count, nil
}

func matches(sig core.ConsensusSignal, filter ListFilter) bool {
	if filter.Symbol != "" && sig.Symbol != filter.Symbol {
		return false
	}
	if filter.Action != "" && sig.Action != filter.Action {
		return false
	}
	if !filter.From.IsZero() && sig.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && sig.Timestamp.After(filter.To) {
		return false
	}
	return true
}

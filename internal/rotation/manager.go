package rotation

import (
	"slices"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"go.uber.org/zap"
)

// Manager exclusively owns the live tracked set.
type Manager struct {
	mu       sync.RWMutex
	set      []core.TrackedInstrument
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

// NewManager creates a manager with an empty set.
func NewManager(capacity int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Manager{
		capacity: capacity,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the clock (for testing).
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetCapacity changes K. A shrink takes effect on the next Apply.
func (m *Manager) SetCapacity(k int) {
	if k < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = k
}

// Capacity returns the current K.
func (m *Manager) Capacity() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capacity
}

// Apply runs one rotation pass against the live set.
func (m *Manager) Apply(candidates []string, feedSymbols map[string]struct{}) Output {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Rotate(Input{
		Candidates:  candidates,
		Current:     m.set,
		FeedSymbols: feedSymbols,
		Capacity:    m.capacity,
		Now:         m.now(),
	})
	m.set = out.Set

	if out.Changed() {
		m.logger.Info("tracked set rotated",
			zap.Strings("added", out.Added),
			zap.Strings("evicted", out.Evicted),
			zap.Strings("removed", out.Removed),
			zap.Int("size", len(out.Set)),
		)
	}

	out.Set = slices.Clone(out.Set)
	return out
}

// Snapshot returns a copy of the tracked set.
func (m *Manager) Snapshot() []core.TrackedInstrument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.set)
}

// Symbols returns the tracked symbols in set order.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.set))
	for i, t := range m.set {
		out[i] = t.Symbol
	}
	return out
}

// RecordActivity stamps LastSeen on members present in seen and adds the
// per-symbol signal counts.
func (m *Manager) RecordActivity(now time.Time, seen map[string]struct{}, counts map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.set {
		sym := m.set[i].Symbol
		if _, ok := seen[sym]; ok {
			m.set[i].LastSeen = now
		}
		m.set[i].SignalCount += counts[sym]
	}
}

// Restore replaces the set with persisted members, dropping duplicates and
// anything beyond capacity.
func (m *Manager) Restore(set []core.TrackedInstrument) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(set))
	restored := make([]core.TrackedInstrument, 0, len(set))
	for _, t := range set {
		if t.Symbol == "" {
			continue
		}
		if _, dup := seen[t.Symbol]; dup {
			continue
		}
		seen[t.Symbol] = struct{}{}
		restored = append(restored, t)
	}
	if len(restored) > m.capacity {
		restored, _ = truncate(restored, m.capacity, nil)
	}
	m.set = restored
}

package rotation

import (
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ApplyAndSnapshot(t *testing.T) {
	m := NewManager(2, nil)
	clock := t0
	m.SetClock(func() time.Time { return clock })

	out := m.Apply([]string{"A", "B", "C"}, feedOf("A", "B", "C"))
	assert.Equal(t, []string{"A", "B"}, out.Added)
	assert.Equal(t, []string{"A", "B"}, m.Symbols())

	clock = t0.Add(time.Minute)
	out = m.Apply([]string{"C", "A"}, feedOf("A", "B", "C"))
	assert.Equal(t, []string{"A"}, out.Evicted)
	assert.Equal(t, []string{"C", "B"}, m.Symbols())

	snap := m.Snapshot()
	snap[0].Symbol = "MUTATED"
	assert.Equal(t, "C", m.Snapshot()[0].Symbol, "snapshot is a copy")
}

func TestManager_RecordActivity(t *testing.T) {
	m := NewManager(3, nil)
	m.SetClock(func() time.Time { return t0 })
	m.Apply([]string{"A", "B"}, feedOf("A", "B"))

	later := t0.Add(time.Minute)
	m.RecordActivity(later, feedOf("A"), map[string]int{"A": 2, "B": 1})

	set := m.Snapshot()
	require.Len(t, set, 2)
	assert.Equal(t, later, set[0].LastSeen)
	assert.Equal(t, 2, set[0].SignalCount)
	assert.Equal(t, t0, set[1].LastSeen)
	assert.Equal(t, 1, set[1].SignalCount)
}

func TestManager_SetCapacity(t *testing.T) {
	m := NewManager(3, nil)
	m.SetClock(func() time.Time { return t0 })
	m.Apply([]string{"A", "B", "C"}, feedOf("A", "B", "C"))

	m.SetCapacity(0)
	assert.Equal(t, 3, m.Capacity(), "invalid capacity ignored")

	m.SetCapacity(1)
	m.Apply(nil, feedOf("A", "B", "C"))
	assert.Len(t, m.Snapshot(), 1)
}

func TestManager_Restore(t *testing.T) {
	m := NewManager(2, nil)
	m.Restore([]core.TrackedInstrument{
		tracked("A", t0),
		tracked("A", t0.Add(time.Second)),
		tracked("", t0),
		tracked("B", t0.Add(2*time.Second)),
		tracked("C", t0.Add(3*time.Second)),
	})

	assert.Equal(t, []string{"B", "C"}, m.Symbols())
}

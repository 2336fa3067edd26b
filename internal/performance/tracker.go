// Package performance keeps rolling aggregate statistics of consensus batches.
package performance

import (
	"math"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"gonum.org/v1/gonum/stat"
)

const (
	// DailyWindow is the length of the rolling daily series.
	DailyWindow = 7
	dateLayout  = "2006-01-02"
)

// Tracker recomputes the performance snapshot from each consensus batch.
type Tracker struct {
	mu       sync.RWMutex
	snapshot core.PerformanceSnapshot
	now      func() time.Time
}

// NewTracker creates a tracker with an empty seven-day series ending today.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		snapshot: Empty(now()),
		now:      now,
	}
}

// Empty returns a zero snapshot whose daily series ends on the day of at.
func Empty(at time.Time) core.PerformanceSnapshot {
	day := at.UTC()
	daily := make([]core.DailyPerformance, DailyWindow)
	for i := range daily {
		daily[i].Date = day.AddDate(0, 0, i-(DailyWindow-1)).Format(dateLayout)
	}
	return core.PerformanceSnapshot{Daily: daily}
}

// Snapshot returns a copy of the latest snapshot.
func (t *Tracker) Snapshot() core.PerformanceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Clone()
}

// Restore replaces the snapshot with a persisted one. A malformed daily
// series is rebuilt around the persisted entries.
func (t *Tracker) Restore(p core.PerformanceSnapshot) {
	p = p.Clone()
	if len(p.Daily) != DailyWindow {
		p.Daily = normalizeDaily(p.Daily, t.now())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = p
}

// Update recomputes the snapshot from a consensus batch and the models that
// took part in producing it. Best and worst are picked among the active ones.
func (t *Tracker) Update(batch []core.ConsensusSignal, models []core.ModelDescriptor) core.PerformanceSnapshot {
	now := t.now().UTC()

	accuracies := make([]float64, len(batch))
	rewards := make([]float64, len(batch))
	for i, s := range batch {
		accuracies[i] = s.Accuracy
		if s.EntryPrice > 0 {
			rewards[i] = math.Abs(s.TakeProfit-s.EntryPrice) / s.EntryPrice * 100
		}
	}

	var overall, avgReward float64
	if len(batch) > 0 {
		overall = stat.Mean(accuracies, nil)
		avgReward = stat.Mean(rewards, nil)
	}
	rate := SuccessRate(overall)
	best, worst := bestWorst(models)

	today := core.DailyPerformance{
		Date:        now.Format(dateLayout),
		Accuracy:    overall,
		SignalCount: len(batch),
		ReturnPct:   avgReward * (2*rate - 1),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	daily := t.snapshot.Daily
	if len(daily) != DailyWindow {
		daily = normalizeDaily(daily, now)
	}
	daily = roll(daily, today)

	t.snapshot = core.PerformanceSnapshot{
		OverallAccuracy:   overall,
		TotalSignals:      len(batch),
		SuccessfulSignals: int(math.Round(float64(len(batch)) * rate)),
		BestModelID:       best,
		WorstModelID:      worst,
		Daily:             daily,
		UpdatedAt:         now,
	}
	return t.snapshot.Clone()
}

// SuccessRate is the synthetic success estimate: 90% of the mean accuracy,
// bounded to [0.5, 0.95]. No execution feedback exists to measure it.
func SuccessRate(overallAccuracy float64) float64 {
	return core.Clamp(0.9*overallAccuracy/100, 0.5, 0.95)
}

// roll replaces the last entry when it is today, otherwise shifts the window.
func roll(daily []core.DailyPerformance, today core.DailyPerformance) []core.DailyPerformance {
	out := make([]core.DailyPerformance, 0, DailyWindow)
	if daily[len(daily)-1].Date == today.Date {
		out = append(out, daily[:len(daily)-1]...)
	} else {
		out = append(out, daily[1:]...)
	}
	return append(out, today)
}

func normalizeDaily(daily []core.DailyPerformance, now time.Time) []core.DailyPerformance {
	base := Empty(now).Daily
	if len(daily) > DailyWindow {
		return append([]core.DailyPerformance(nil), daily[len(daily)-DailyWindow:]...)
	}
	return append(base[:DailyWindow-len(daily)], daily...)
}

func bestWorst(models []core.ModelDescriptor) (string, string) {
	var best, worst *core.ModelDescriptor
	for i := range models {
		m := &models[i]
		if !m.IsActive() {
			continue
		}
		if best == nil || m.Accuracy > best.Accuracy {
			best = m
		}
		if worst == nil || m.Accuracy < worst.Accuracy {
			worst = m
		}
	}
	if best == nil {
		return "", ""
	}
	return best.ID, worst.ID
}

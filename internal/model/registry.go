// Package model holds the predictor catalogue and its lifecycle.
package model

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"go.uber.org/zap"
)

const (
	maxMetric       = 98.0
	retrainDeltaMin = -2.0
	retrainDeltaMax = 3.0
)

// Registry owns the model descriptors. Models are never removed.
type Registry struct {
	mu     sync.RWMutex
	models []core.ModelDescriptor
	rng    *rand.Rand
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithSeed makes retrain perturbations reproducible.
func WithSeed(seed int64) Option {
	return func(r *Registry) {
		r.rng = rand.New(rand.NewSource(seed))
	}
}

// WithClock overrides the clock used for LastTrainedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry seeded with one default model per family.
func NewRegistry(enabled []core.ModelType, opts ...Option) *Registry {
	r := &Registry{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.models = Defaults(enabled)
	now := r.now()
	for i := range r.models {
		r.models[i].LastTrainedAt = now
	}
	return r
}

// Restore merges persisted descriptors into the catalogue by ID. A persisted
// descriptor replaces the seeded one with the same ID; unknown IDs are
// appended. Seeded models missing from the list are kept.
func (r *Registry) Restore(models []core.ModelDescriptor) {
	if len(models) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := make(map[string]int, len(r.models))
	for i, m := range r.models {
		index[m.ID] = i
	}

	restored := 0
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if i, ok := index[m.ID]; ok {
			r.models[i] = m.Clone()
		} else {
			index[m.ID] = len(r.models)
			r.models = append(r.models, m.Clone())
		}
		restored++
	}
	r.logger.Debug("models restored", zap.Int("restored", restored), zap.Int("total", len(r.models)))
}

// Snapshot returns deep copies of every descriptor.
func (r *Registry) Snapshot() []core.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ModelDescriptor, len(r.models))
	for i, m := range r.models {
		out[i] = m.Clone()
	}
	return out
}

// Active returns deep copies of the active descriptors.
func (r *Registry) Active() []core.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.ModelDescriptor
	for _, m := range r.models {
		if m.IsActive() {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Get returns a copy of one descriptor.
func (r *Registry) Get(id string) (core.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.models {
		if m.ID == id {
			return m.Clone(), nil
		}
	}
	return core.ModelDescriptor{}, core.WrapError(core.ErrModelNotFound, fmt.Errorf("id %s", id))
}

// Retrain perturbs the metrics of every enabled model and sets each model's
// status from enabled. It returns the number of retrained models.
func (r *Registry) Retrain(enabled []core.ModelType) int {
	on := make(map[core.ModelType]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	retrained := 0
	for i := range r.models {
		m := &r.models[i]
		if !on[m.Type] {
			m.Status = core.StatusInactive
			continue
		}

		m.Accuracy = r.perturb(m.Accuracy, 1)
		m.Precision = r.perturb(m.Precision, 1)
		m.Recall = r.perturb(m.Recall, 1)
		m.F1 = r.perturb(m.F1, 1)

		m.Performance.WinRate = r.perturb(m.Performance.WinRate, 1)
		m.Performance.AvgReturn = r.perturb(m.Performance.AvgReturn, 0.1)
		m.Performance.SharpeRatio = r.perturb(m.Performance.SharpeRatio, 0.1)
		m.Performance.MaxDrawdown = r.perturb(m.Performance.MaxDrawdown, 0.5)
		m.Performance.ProfitFactor = r.perturb(m.Performance.ProfitFactor, 0.1)

		m.LastTrainedAt = now
		m.Status = core.StatusActive
		retrained++
	}

	r.logger.Info("models retrained",
		zap.Int("retrained", retrained),
		zap.Int("total", len(r.models)),
	)
	return retrained
}

// perturb shifts v by a random delta in [-2, +3] scaled by scale and clamps
// the result to [0, 98].
func (r *Registry) perturb(v, scale float64) float64 {
	delta := retrainDeltaMin + r.rng.Float64()*(retrainDeltaMax-retrainDeltaMin)
	return core.Clamp(v+delta*scale, 0, maxMetric)
}

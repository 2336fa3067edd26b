// Package router filters consensus batches and fans them out to the sinks.
package router

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/metrics"
	"github.com/newthinker/vanguard/internal/notifier"
	"go.uber.org/zap"
)

// Router routes consensus signals to notifiers with filtering
type Router struct {
	cfg       config.RouterConfig
	registry  *notifier.Registry
	metrics   *metrics.Registry
	logger    *zap.Logger
	now       func() time.Time
	cooldowns map[cooldownKey]time.Time
	mu        sync.Mutex
}

// A direction flip on a symbol is not held back by the previous direction's
// cooldown.
type cooldownKey struct {
	symbol string
	action core.Action
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records per-sink publish outcomes.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Router) { r.metrics = reg }
}

// WithClock overrides the time source used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a new signal router. A zero config forwards everything.
func New(cfg config.RouterConfig, registry *notifier.Registry, opts ...Option) *Router {
	r := &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    zap.NewNop(),
		now:       time.Now,
		cooldowns: make(map[cooldownKey]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sinks returns the number of registered notifiers.
func (r *Router) Sinks() int {
	if r.registry == nil {
		return 0
	}
	return r.registry.Len()
}

// Route filters the batch and publishes what is left to every notifier. It
// returns the publish failures by notifier name.
func (r *Router) Route(ctx context.Context, batch []core.ConsensusSignal) map[string]error {
	filtered := r.Filter(batch)
	if len(filtered) == 0 {
		r.logger.Debug("batch filtered out", zap.Int("total", len(batch)))
		return nil
	}
	if r.Sinks() == 0 {
		return nil
	}

	errs := r.registry.PublishAll(ctx, filtered)
	for _, n := range r.registry.GetAll() {
		err := errs[n.Name()]
		r.metrics.RecordSinkPublish(n.Name(), err)
		if err != nil {
			r.logger.Error("notifier failed on batch",
				zap.String("notifier", n.Name()),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("batch routed",
		zap.Int("total", len(batch)),
		zap.Int("filtered", len(filtered)),
		zap.Int("errors", len(errs)),
	)
	return errs
}

// Filter returns the signals that pass the confidence, action and cooldown
// checks, and starts a cooldown for each of them.
func (r *Router) Filter(batch []core.ConsensusSignal) []core.ConsensusSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.cleanupLocked(now)

	var out []core.ConsensusSignal
	for _, sig := range batch {
		if !r.passesFilters(sig, now) {
			continue
		}
		if r.cfg.Cooldown > 0 {
			r.cooldowns[cooldownKey{sig.Symbol, sig.Action}] = now
		}
		out = append(out, sig)
	}
	return out
}

// passesFilters checks if a signal passes all configured filters
func (r *Router) passesFilters(sig core.ConsensusSignal, now time.Time) bool {
	if sig.Confidence < r.cfg.MinConfidence {
		return false
	}

	if len(r.cfg.EnabledActions) > 0 && !slices.Contains(r.cfg.EnabledActions, sig.Action) {
		return false
	}

	last, exists := r.cooldowns[cooldownKey{sig.Symbol, sig.Action}]
	if exists && now.Sub(last) < r.cfg.Cooldown {
		return false
	}

	return true
}

// cleanupLocked removes cooldown entries older than twice the cooldown.
func (r *Router) cleanupLocked(now time.Time) int {
	expiry := r.cfg.Cooldown * 2
	removed := 0
	for key, last := range r.cooldowns {
		if now.Sub(last) > expiry {
			delete(r.cooldowns, key)
			removed++
		}
	}
	return removed
}

// ClearCooldown removes the cooldowns of a symbol in both directions.
func (r *Router) ClearCooldown(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cooldowns {
		if key.symbol == symbol {
			delete(r.cooldowns, key)
		}
	}
}

// ClearAllCooldowns removes all cooldowns
func (r *Router) ClearAllCooldowns() {
	r.mu.Lock()
	r.cooldowns = make(map[cooldownKey]time.Time)
	r.mu.Unlock()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]any{
		"cooldowns_active": len(r.cooldowns),
		"min_confidence":   r.cfg.MinConfidence,
		"cooldown_seconds": r.cfg.Cooldown.Seconds(),
		"enabled_actions":  r.cfg.EnabledActions,
		"sinks":            r.Sinks(),
	}
}

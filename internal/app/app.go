// Package app wires configuration into a running engine.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/vanguard/internal/advisory"
	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/engine"
	"github.com/newthinker/vanguard/internal/feed"
	"github.com/newthinker/vanguard/internal/llm/factory"
	"github.com/newthinker/vanguard/internal/metrics"
	"github.com/newthinker/vanguard/internal/notifier"
	"github.com/newthinker/vanguard/internal/notifier/kafka"
	"github.com/newthinker/vanguard/internal/notifier/webhook"
	"github.com/newthinker/vanguard/internal/persistence"
	"github.com/newthinker/vanguard/internal/router"
	"github.com/newthinker/vanguard/internal/scorer"
	"github.com/newthinker/vanguard/internal/storage/kv"
	"github.com/newthinker/vanguard/internal/storage/signal"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    *engine.Engine
	store     kv.Store
	history   signal.Store
	notifiers *notifier.Registry
	router    *router.Router
	metrics   *metrics.Registry
	closers   []func() error
}

type options struct {
	feed       feed.Feed
	engineOpts []engine.Option
}

// Option configures an App.
type Option func(*options)

// WithFeed replaces the configured market feed.
func WithFeed(f feed.Feed) Option {
	return func(o *options) { o.feed = f }
}

// WithEngineOptions passes options through to the engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New builds every component named by the configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		history:   signal.NewMemoryStore(signal.DefaultMaxSize),
		notifiers: notifier.NewRegistry(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	src := o.feed
	if src == nil {
		f, err := feed.New(cfg.Feed)
		if err != nil {
			return nil, fmt.Errorf("creating feed: %w", err)
		}
		src = f
	}

	var advisor *advisory.Analyzer
	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider != nil {
		advisor = advisory.NewAnalyzer(provider, logger.Named("advisory"))
	}

	store, err := kv.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating state store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() error { return kv.Close(store) })

	if err := a.registerNotifiers(cfg.Notifiers); err != nil {
		a.Close()
		return nil, err
	}

	gateway := persistence.New(store, cfg.Storage,
		persistence.WithLogger(logger.Named("persistence")),
		persistence.WithMetrics(a.metrics),
	)

	dispatch := router.New(cfg.Notifiers.Routing, a.notifiers,
		router.WithLogger(logger.Named("router")),
		router.WithMetrics(a.metrics),
	)
	a.router = dispatch

	deps := engine.Dependencies{
		Feed:        src,
		FeedTimeout: cfg.Feed.Timeout,
		Scorer:      scorer.New(cfg.Scorer),
		Gateway:     gateway,
		History:     a.history,
		Notifiers:   a.notifiers,
		Router:      dispatch,
		Metrics:     a.metrics,
		Logger:      logger.Named("engine"),
	}
	if advisor != nil {
		deps.Advisor = advisor
	}

	e, err := engine.New(cfg.Engine, deps, o.engineOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = e

	logger.Info("VANGUARD assembled",
		zap.String("feed", src.Name()),
		zap.String("storage", cfg.Storage.Type),
		zap.String("llm", cfg.LLM.Provider),
		zap.Strings("notifiers", a.notifierNames()),
	)

	return a, nil
}

func (a *App) registerNotifiers(cfg config.NotifiersConfig) error {
	if cfg.Webhook.Enabled {
		w, err := webhook.New(cfg.Webhook)
		if err != nil {
			return fmt.Errorf("creating webhook notifier: %w", err)
		}
		if err := a.notifiers.Register(w); err != nil {
			return err
		}
	}
	if cfg.Kafka.Enabled {
		k, err := kafka.New(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("creating kafka notifier: %w", err)
		}
		a.closers = append(a.closers, k.Close)
		if err := a.notifiers.Register(k); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) notifierNames() []string {
	all := a.notifiers.GetAll()
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = n.Name()
	}
	return names
}

// Start runs the engine until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("VANGUARD starting",
		zap.Duration("rotation_interval", a.cfg.Engine.RotationInterval),
		zap.Duration("analysis_interval", a.cfg.Engine.AnalysisInterval),
		zap.Int("capacity", a.cfg.Engine.Capacity),
	)
	err := a.engine.Run(ctx)
	a.logger.Info("VANGUARD shutting down")
	return err
}

// Stop stops the engine loops.
func (a *App) Stop() {
	a.engine.Stop()
}

// RunOnce restores saved state and performs one rotation tick followed by
// one analysis tick.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.engine.Restore(ctx); err != nil {
		a.logger.Warn("restored with fallbacks", zap.Error(err))
	}
	if err := a.engine.ForceRotationTick(ctx); err != nil {
		return err
	}
	return a.engine.ForceAnalysisTick(ctx)
}

// Close releases stores and sinks.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Engine returns the engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Metrics returns the metrics registry, nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// History returns the consensus history store.
func (a *App) History() signal.Store { return a.history }

// Notifiers returns the sink registry.
func (a *App) Notifiers() *notifier.Registry { return a.notifiers }

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	status := a.engine.Status()
	return map[string]any{
		"running":        status.Running,
		"feed_available": status.FeedAvailable,
		"tracked":        status.Tracked,
		"active_models":  status.ActiveModels,
		"consensus":      status.Consensus,
		"notifiers":      a.notifiers.Len(),
		"storage":        a.cfg.Storage.Type,
		"router":         a.router.GetStats(),
	}
}

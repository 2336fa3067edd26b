// Package engine runs the rotation and analysis loops and exposes the
// consumer operations over the engine state.
package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/ensemble"
	"github.com/newthinker/vanguard/internal/feed"
	"github.com/newthinker/vanguard/internal/generator"
	"github.com/newthinker/vanguard/internal/metrics"
	"github.com/newthinker/vanguard/internal/model"
	"github.com/newthinker/vanguard/internal/notifier"
	"github.com/newthinker/vanguard/internal/performance"
	"github.com/newthinker/vanguard/internal/persistence"
	"github.com/newthinker/vanguard/internal/rotation"
	"github.com/newthinker/vanguard/internal/router"
	"github.com/newthinker/vanguard/internal/scorer"
	"github.com/newthinker/vanguard/internal/storage/signal"
	"go.uber.org/zap"
)

const (
	loopRotation = "rotation"
	loopAnalysis = "analysis"

	defaultFeedTimeout = 10 * time.Second
	sinkTimeout        = 30 * time.Second
)

// Dependencies are the collaborators of an Engine. Only Feed is required.
// Notifiers without a Router are published to unfiltered.
type Dependencies struct {
	Feed        feed.Feed
	FeedTimeout time.Duration
	Scorer      *scorer.Scorer
	Advisor     generator.Advisor
	Gateway     *persistence.Gateway
	History     signal.Store
	Notifiers   *notifier.Registry
	Router      *router.Router
	Metrics     *metrics.Registry
	Logger      *zap.Logger
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running         bool      `json:"running"`
	FeedAvailable   bool      `json:"feed_available"`
	Tracked         int       `json:"tracked"`
	Capacity        int       `json:"capacity"`
	ActiveModels    int       `json:"active_models"`
	Consensus       int       `json:"consensus"`
	RotationTicks   int       `json:"rotation_ticks"`
	AnalysisTicks   int       `json:"analysis_ticks"`
	SkippedTicks    int       `json:"skipped_ticks"`
	LastRotationAt  time.Time `json:"last_rotation_at,omitzero"`
	LastAnalysisAt  time.Time `json:"last_analysis_at,omitzero"`
	LastTickError   string    `json:"last_tick_error,omitempty"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	PersistenceUsed bool      `json:"persistence"`
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	now        func() time.Time
	seed       *int64
	sampler    func() float64
	predictors func(core.ModelType) model.Predictor
}

// WithClock overrides the clock of every owned component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSeed makes retrain perturbations reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithSampler overrides the advisory sampling source.
func WithSampler(f func() float64) Option {
	return func(o *options) { o.sampler = f }
}

// WithPredictors overrides the predictor lookup.
func WithPredictors(f func(core.ModelType) model.Predictor) Option {
	return func(o *options) { o.predictors = f }
}

// Engine owns all mutable engine state.
type Engine struct {
	feed        feed.Feed
	feedTimeout time.Duration
	scorer      *scorer.Scorer
	rotation    *rotation.Manager
	models      *model.Registry
	generator   *generator.Generator
	aggregator  *ensemble.Aggregator
	tracker     *performance.Tracker
	gateway     *persistence.Gateway
	history     signal.Store
	router      *router.Router
	metrics     *metrics.Registry
	logger      *zap.Logger
	now         func() time.Time

	// one tick of each kind at a time
	rotationMu sync.Mutex
	analysisMu sync.Mutex

	mu        sync.RWMutex
	cfg       config.EngineConfig
	consensus []core.ConsensusSignal
	status    Status

	// life is cancelled by Stop and renewed by the next Start; every tick,
	// looped or forced, runs under it
	lifeMu  sync.Mutex
	life    context.Context
	halt    context.CancelFunc
	running bool
	loops   sync.WaitGroup
	forced  sync.WaitGroup
	publish sync.WaitGroup
}

// New creates an engine. cfg must be valid.
func New(cfg config.EngineConfig, deps Dependencies, opts ...Option) (*Engine, error) {
	if deps.Feed == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("market feed is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Scorer == nil {
		deps.Scorer = scorer.New(config.Defaults().Scorer, scorer.WithClock(o.now))
	}
	if deps.FeedTimeout <= 0 {
		deps.FeedTimeout = defaultFeedTimeout
	}

	rot := rotation.NewManager(cfg.Capacity, logger.Named("rotation"))
	rot.SetClock(o.now)

	regOpts := []model.Option{model.WithClock(o.now), model.WithLogger(logger.Named("models"))}
	if o.seed != nil {
		regOpts = append(regOpts, model.WithSeed(*o.seed))
	}

	genOpts := []generator.Option{generator.WithClock(o.now), generator.WithLogger(logger.Named("generator"))}
	if deps.Advisor != nil {
		genOpts = append(genOpts, generator.WithAdvisor(deps.Advisor))
	}
	if o.sampler != nil {
		genOpts = append(genOpts, generator.WithSampler(o.sampler))
	}
	if o.predictors != nil {
		genOpts = append(genOpts, generator.WithPredictors(o.predictors))
	}

	if deps.Router == nil && deps.Notifiers != nil {
		deps.Router = router.New(config.RouterConfig{}, deps.Notifiers,
			router.WithLogger(logger.Named("router")),
			router.WithMetrics(deps.Metrics),
			router.WithClock(o.now),
		)
	}

	e := &Engine{
		feed:        deps.Feed,
		feedTimeout: deps.FeedTimeout,
		scorer:      deps.Scorer,
		rotation:    rot,
		models:      model.NewRegistry(cfg.EnabledModelTypes, regOpts...),
		generator:   generator.New(genOpts...),
		aggregator:  ensemble.New(),
		tracker:     performance.NewTracker(o.now),
		gateway:     deps.Gateway,
		history:     deps.History,
		router:      deps.Router,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         o.now,
		cfg:         cfg.Clone(),
	}
	e.life, e.halt = context.WithCancel(context.Background())
	e.status.FeedAvailable = true
	e.status.PersistenceUsed = deps.Gateway != nil
	e.metrics.SetActiveModels(len(e.models.Active()))
	return e, nil
}

// Restore loads persisted state into the owned components. Failures leave the
// defaults in place.
func (e *Engine) Restore(ctx context.Context) error {
	if e.gateway == nil {
		return nil
	}

	st, err := e.gateway.Load(ctx, e.state())

	e.mu.Lock()
	e.cfg = st.Config.Clone()
	e.mu.Unlock()

	e.rotation.SetCapacity(st.Config.Capacity)
	e.rotation.Restore(st.Tracked)
	e.models.Restore(st.Models)
	e.tracker.Restore(st.Performance)
	e.metrics.SetActiveModels(len(e.models.Active()))
	e.metrics.RecordRotation(0, 0, 0, len(e.rotation.Snapshot()))
	return err
}

// Start restores persisted state and launches both loops.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.running {
		return core.ErrEngineRunning
	}
	if e.life.Err() != nil {
		e.life, e.halt = context.WithCancel(context.Background())
	}

	if err := e.Restore(ctx); err != nil {
		e.logger.Warn("continuing with default state", zap.Error(err))
	}

	loopCtx := e.life
	e.running = true

	e.mu.Lock()
	e.status.Running = true
	e.status.StartedAt = e.now()
	cfg := e.cfg
	e.mu.Unlock()

	e.logger.Info("engine starting",
		zap.Int("capacity", cfg.Capacity),
		zap.Duration("rotation_interval", cfg.RotationInterval),
		zap.Duration("analysis_interval", cfg.AnalysisInterval),
		zap.String("ensemble", string(cfg.EnsembleMethod)),
	)

	e.loops.Add(2)
	go e.loop(loopCtx, loopRotation, true, func(c config.EngineConfig) time.Duration { return c.RotationInterval }, e.rotationTick)
	go e.loop(loopCtx, loopAnalysis, false, func(c config.EngineConfig) time.Duration { return c.AnalysisInterval }, e.analysisTick)
	return nil
}

// Stop cancels both loops, any forced tick and their in-flight advisory calls,
// waits for them and flushes state. It is a no-op when the engine is not
// running. Forced ticks are rejected until the next Start.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.running {
		return
	}
	e.halt()
	e.loops.Wait()
	e.forced.Wait()
	e.publish.Wait()
	e.running = false

	e.mu.Lock()
	e.status.Running = false
	e.mu.Unlock()

	if e.gateway != nil {
		if err := e.gateway.Flush(context.Background(), e.state()); err != nil {
			e.logger.Warn("final state flush failed", zap.Error(err))
		}
	}
	e.logger.Info("engine stopped")
}

// Run starts the engine, blocks until ctx is done and stops it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	e.Stop()
	return nil
}

// loop fires tick on a timer whose interval is re-read from the live config
// after every tick.
func (e *Engine) loop(ctx context.Context, name string, immediate bool, interval func(config.EngineConfig) time.Duration, tick func(context.Context) error) {
	defer e.loops.Done()

	if immediate {
		e.runTick(ctx, name, tick)
	}

	timer := time.NewTimer(interval(e.GetConfig()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.runTick(ctx, name, tick)
			timer.Reset(interval(e.GetConfig()))
		}
	}
}

// runTick runs one tick under its loop's guard. A busy guard skips the tick.
func (e *Engine) runTick(ctx context.Context, name string, tick func(context.Context) error) (err error) {
	guard := &e.rotationMu
	if name == loopAnalysis {
		guard = &e.analysisMu
	}
	if !guard.TryLock() {
		e.mu.Lock()
		e.status.SkippedTicks++
		e.mu.Unlock()
		e.metrics.RecordTick(name, "skipped", 0)
		e.logger.Debug("tick skipped, previous still running", zap.String("loop", name))
		return core.ErrTickInProgress
	}
	defer guard.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s tick panicked: %v", name, r)
			e.logger.Error("tick panicked", zap.String("loop", name), zap.Any("panic", r), zap.Stack("stack"))
		}

		outcome := "ok"
		switch {
		case err != nil:
			outcome = "failed"
		case !e.FeedAvailable():
			outcome = "feed_unavailable"
		}
		e.metrics.RecordTick(name, outcome, time.Since(start).Seconds())

		e.mu.Lock()
		if err != nil {
			e.status.LastTickError = err.Error()
		}
		e.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			e.logger.Error("tick failed", zap.String("loop", name), zap.Error(err))
		}
	}()

	return tick(ctx)
}

// ForceRotationTick runs a rotation tick now. It returns ErrTickInProgress if
// one is already running and ErrEngineStopped after Stop.
func (e *Engine) ForceRotationTick(ctx context.Context) error {
	return e.forceTick(ctx, loopRotation, e.rotationTick)
}

// ForceAnalysisTick runs an analysis tick now. It returns ErrTickInProgress if
// one is already running and ErrEngineStopped after Stop.
func (e *Engine) ForceAnalysisTick(ctx context.Context) error {
	return e.forceTick(ctx, loopAnalysis, e.analysisTick)
}

// forceTick runs a tick under the caller's ctx, cancelled as well when the
// engine stops. Stop waits for it before the final flush.
func (e *Engine) forceTick(ctx context.Context, name string, tick func(context.Context) error) error {
	e.lifeMu.Lock()
	life := e.life
	if life.Err() != nil {
		e.lifeMu.Unlock()
		return core.ErrEngineStopped
	}
	e.forced.Add(1)
	e.lifeMu.Unlock()
	defer e.forced.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(life, cancel)
	defer stop()

	return e.runTick(ctx, name, tick)
}

// snapshots fetches the feed. An error or an empty feed marks the feed
// unavailable and reports ok=false.
func (e *Engine) snapshots(ctx context.Context) ([]core.MarketSnapshot, bool) {
	fctx, cancel := context.WithTimeout(ctx, e.feedTimeout)
	defer cancel()

	snaps, err := e.feed.GetLatestSnapshots(fctx)
	if err != nil && ctx.Err() != nil {
		// cancelled, not a feed outage
		return nil, false
	}
	if err == nil {
		snaps = feed.Dedupe(snaps)
	}
	available := err == nil && len(snaps) > 0

	e.mu.Lock()
	wasAvailable := e.status.FeedAvailable
	e.status.FeedAvailable = available
	e.mu.Unlock()

	switch {
	case !available && wasAvailable:
		e.logger.Warn("market feed unavailable", zap.String("feed", e.feed.Name()), zap.Error(err))
	case available && !wasAvailable:
		e.logger.Info("market feed recovered", zap.String("feed", e.feed.Name()))
	}
	return snaps, available
}

func (e *Engine) rotationTick(ctx context.Context) error {
	snaps, ok := e.snapshots(ctx)
	if !ok {
		return nil
	}

	cfg := e.GetConfig()
	candidates := e.scorer.Rank(snaps, cfg.SymbolAllowlist)
	out := e.rotation.Apply(scorer.Symbols(candidates), feed.Symbols(snaps))

	e.mu.Lock()
	e.status.RotationTicks++
	e.status.LastRotationAt = e.now()
	e.mu.Unlock()

	e.metrics.RecordRotation(len(out.Added), len(out.Evicted), len(out.Removed), len(out.Set))
	if out.Changed() {
		e.save()
	}
	return nil
}

func (e *Engine) analysisTick(ctx context.Context) error {
	snaps, ok := e.snapshots(ctx)
	if !ok {
		return nil
	}

	cfg := e.GetConfig()
	tracked := e.rotation.Symbols()

	var models []core.ModelDescriptor
	for _, m := range e.models.Active() {
		if cfg.ModelEnabled(m.Type) {
			models = append(models, m)
		}
	}

	batch, err := e.generator.Generate(ctx, generator.Input{
		Snapshots:     snaps,
		Tracked:       tracked,
		Models:        models,
		Config:        cfg,
		PromptContext: promptContext(cfg, tracked),
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		// cancelled mid-tick; nothing from this tick is applied
		return err
	}

	consensus := e.aggregator.Aggregate(batch.Signals, cfg.EnsembleMethod, cfg.MaxSignals)
	now := e.now()

	e.rotation.RecordActivity(now, batch.Seen, batch.Counts)
	e.tracker.Update(consensus, models)

	e.mu.Lock()
	e.consensus = consensus
	e.status.AnalysisTicks++
	e.status.LastAnalysisAt = now
	e.mu.Unlock()

	for _, s := range batch.Signals {
		e.metrics.RecordRawSignal(string(s.ModelType), string(s.Action))
	}
	e.metrics.SetConsensusSignals(len(consensus))
	e.metrics.RecordAdvisory(batch.AdvisoryEnhanced, batch.AdvisoryTimeouts, batch.AdvisoryFailures)

	e.logger.Debug("analysis tick complete",
		zap.Int("tracked", len(tracked)),
		zap.Int("models", len(models)),
		zap.Int("raw_signals", len(batch.Signals)),
		zap.Int("consensus", len(consensus)),
		zap.Int("advisory_enhanced", batch.AdvisoryEnhanced),
	)

	if len(consensus) > 0 {
		if e.history != nil {
			if err := e.history.SaveBatch(ctx, consensus); err != nil {
				e.logger.Warn("failed to record consensus history", zap.Error(err))
			}
		}
		e.publishBatch(consensus)
	}
	e.save()
	return nil
}

// publishBatch hands the batch to the router without blocking the tick.
func (e *Engine) publishBatch(batch []core.ConsensusSignal) {
	if e.router == nil || e.router.Sinks() == 0 {
		return
	}

	batch = slices.Clone(batch)
	e.publish.Add(1)
	go func() {
		defer e.publish.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		e.router.Route(ctx, batch)
	}()
}

func (e *Engine) save() {
	if e.gateway == nil {
		return
	}
	e.gateway.Save(e.state())
}

func (e *Engine) state() persistence.State {
	return persistence.State{
		Tracked:     e.rotation.Snapshot(),
		Models:      e.models.Snapshot(),
		Performance: e.tracker.Snapshot(),
		Config:      e.GetConfig(),
	}
}

func promptContext(cfg config.EngineConfig, tracked []string) string {
	return fmt.Sprintf("Tracked instruments: %s. Timeframes: %s. Max risk per trade: %.2f%%.",
		strings.Join(tracked, ", "), strings.Join(cfg.Timeframes, ", "), cfg.MaxRiskPercent)
}

// GetConsensusSignals returns the latest consensus batch.
func (e *Engine) GetConsensusSignals() []core.ConsensusSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.consensus)
}

// GetTrackedInstruments returns the tracked set.
func (e *Engine) GetTrackedInstruments() []core.TrackedInstrument {
	return e.rotation.Snapshot()
}

// GetPerformance returns the latest performance snapshot.
func (e *Engine) GetPerformance() core.PerformanceSnapshot {
	return e.tracker.Snapshot()
}

// GetModels returns every model descriptor.
func (e *Engine) GetModels() []core.ModelDescriptor {
	return e.models.Snapshot()
}

// GetModel returns one model descriptor.
func (e *Engine) GetModel(id string) (core.ModelDescriptor, error) {
	return e.models.Get(id)
}

// GetConfig returns a copy of the live config.
func (e *Engine) GetConfig() config.EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// UpdateConfig applies patch atomically. On error the previous config is
// returned unchanged.
func (e *Engine) UpdateConfig(patch config.EngineConfigPatch) (config.EngineConfig, error) {
	e.mu.Lock()
	next, err := e.cfg.Update(patch)
	if err != nil {
		prev := e.cfg.Clone()
		e.mu.Unlock()
		e.logger.Warn("config update rejected", zap.Error(err))
		return prev, err
	}
	e.cfg = next
	e.mu.Unlock()

	e.rotation.SetCapacity(next.Capacity)
	e.logger.Info("config updated",
		zap.Int("capacity", next.Capacity),
		zap.Float64("min_accuracy", next.MinAccuracy),
		zap.String("ensemble", string(next.EnsembleMethod)),
	)
	e.save()
	return next.Clone(), nil
}

// Retrain perturbs every enabled model and refreshes statuses.
func (e *Engine) Retrain() error {
	cfg := e.GetConfig()
	e.models.Retrain(cfg.EnabledModelTypes)
	e.metrics.SetActiveModels(len(e.models.Active()))
	e.save()
	return nil
}

// FeedAvailable reports whether the last feed fetch returned data.
func (e *Engine) FeedAvailable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status.FeedAvailable
}

// Status returns scheduler state and counters.
func (e *Engine) Status() Status {
	e.mu.RLock()
	s := e.status
	s.Consensus = len(e.consensus)
	s.Capacity = e.cfg.Capacity
	e.mu.RUnlock()

	s.Tracked = len(e.rotation.Snapshot())
	s.ActiveModels = len(e.models.Active())
	return s
}

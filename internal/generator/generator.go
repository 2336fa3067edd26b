// Package generator produces raw signals for every tracked instrument and
// active model.
package generator

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/advisory"
	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const (
	neutral          = 50.0
	minEstimated     = 60.0
	maxEstimated     = 98.0
	advisoryBonusMax = 5.0
)

// Advisor supplies optional advisory analysis.
type Advisor interface {
	Analyze(ctx context.Context, req advisory.Request) (*advisory.Result, error)
}

// Input is one analysis tick's view of the engine.
type Input struct {
	Snapshots     []core.MarketSnapshot
	Tracked       []string
	Models        []core.ModelDescriptor // active models
	Config        config.EngineConfig
	PromptContext string
}

// Batch is the output of one analysis tick.
type Batch struct {
	Signals []core.RawSignal
	Seen    map[string]struct{} // tracked symbols that had a snapshot
	Counts  map[string]int      // raw signals per symbol

	AdvisoryEnhanced int
	AdvisoryTimeouts int
	AdvisoryFailures int
}

// Generator turns snapshots into raw signals.
type Generator struct {
	advisor    Advisor
	predictors func(core.ModelType) model.Predictor
	sample     func() float64
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithAdvisor enables advisory analysis.
func WithAdvisor(a Advisor) Option {
	return func(g *Generator) {
		g.advisor = a
	}
}

// WithPredictors overrides the predictor lookup.
func WithPredictors(f func(core.ModelType) model.Predictor) Option {
	return func(g *Generator) {
		g.predictors = f
	}
}

// WithSampler overrides the [0,1) source used by the advisory sampling gate.
func WithSampler(f func() float64) Option {
	return func(g *Generator) {
		g.sample = f
	}
}

// WithClock overrides the signal timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		predictors: model.PredictorFor,
		sample:     rand.Float64,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the raw signal batch of one tick. If ctx is cancelled
// while advisory calls are in flight, the whole batch is discarded and the
// context error returned.
func (g *Generator) Generate(ctx context.Context, in Input) (Batch, error) {
	batch := Batch{
		Seen:   make(map[string]struct{}, len(in.Tracked)),
		Counts: make(map[string]int, len(in.Tracked)),
	}

	latest := make(map[string]core.MarketSnapshot, len(in.Snapshots))
	for _, s := range in.Snapshots {
		latest[s.Symbol] = s
	}

	var symbols []string
	for _, sym := range in.Tracked {
		if _, ok := latest[sym]; ok {
			symbols = append(symbols, sym)
			batch.Seen[sym] = struct{}{}
		}
	}
	if len(symbols) == 0 || len(in.Models) == 0 {
		return batch, ctx.Err()
	}

	advice := g.collectAdvice(ctx, symbols, latest, in, &batch)
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	now := g.now()
	for _, sym := range symbols {
		snap := latest[sym]
		for _, m := range in.Models {
			sig, ok := g.signal(snap, m, advice[sym], in.Config, now)
			if !ok {
				continue
			}
			batch.Signals = append(batch.Signals, sig)
			batch.Counts[sym]++
		}
	}
	return batch, nil
}

// collectAdvice runs one advisory call per symbol concurrently, each bounded
// by AdvisoryTimeout.
func (g *Generator) collectAdvice(ctx context.Context, symbols []string, latest map[string]core.MarketSnapshot, in Input, batch *Batch) map[string]*advisory.Result {
	if g.advisor == nil || in.Config.AdvisoryProbability <= 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*advisory.Result, len(symbols))
	)

	for _, sym := range symbols {
		if g.sample() >= in.Config.AdvisoryProbability {
			continue
		}

		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, in.Config.AdvisoryTimeout)
			defer cancel()

			res, err := g.advisor.Analyze(callCtx, advisory.Request{
				Symbol:        sym,
				Snapshot:      latest[sym],
				PromptContext: in.PromptContext,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res != nil:
				results[sym] = res
				batch.AdvisoryEnhanced++
			case errors.Is(err, core.ErrAdvisoryTimeout) || errors.Is(err, context.DeadlineExceeded):
				batch.AdvisoryTimeouts++
				g.logger.Warn("advisory analysis timed out", zap.String("symbol", sym))
			default:
				batch.AdvisoryFailures++
				g.logger.Warn("advisory analysis failed", zap.String("symbol", sym), zap.Error(err))
			}
		}(sym)
	}

	wg.Wait()
	return results
}

// signal evaluates one (instrument, model) pair.
func (g *Generator) signal(snap core.MarketSnapshot, m core.ModelDescriptor, adv *advisory.Result, cfg config.EngineConfig, now time.Time) (core.RawSignal, bool) {
	features := g.predictors(m.Type).Score(snap)
	composite := stat.Mean(features.Values(), nil)

	estimated := m.Accuracy + model.TypeBonus(m.Type)
	if adv != nil {
		w := cfg.AdvisoryWeight
		composite = (1-w)*composite + w*(neutral+neutral*adv.Bias*adv.Confidence)
		estimated += advisoryBonusMax * adv.Confidence
	}
	estimated = core.Clamp(estimated, minEstimated, maxEstimated)

	deviation := math.Abs(composite - neutral)
	if deviation <= cfg.MinSignalStrength || estimated < cfg.MinAccuracy {
		return core.RawSignal{}, false
	}

	action := core.ActionSell
	if composite > neutral {
		action = core.ActionBuy
	}
	confidence := core.Clamp(neutral+1.6*deviation, 50, 95)
	levels := computeLevels(snap, action, confidence, cfg.MaxRiskPercent)

	return core.RawSignal{
		Symbol:           snap.Symbol,
		ModelID:          m.ID,
		ModelType:        m.Type,
		Action:           action,
		Confidence:       confidence,
		Accuracy:         estimated,
		EntryPrice:       levels.entry,
		StopLoss:         levels.stop,
		TakeProfit:       levels.target,
		RiskLevel:        levels.risk,
		Features:         features,
		Composite:        composite,
		AdvisoryEnhanced: adv != nil,
		Timestamp:        now,
	}, true
}

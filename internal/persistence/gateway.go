// Package persistence saves and restores engine state through a key/value store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/metrics"
	"github.com/newthinker/vanguard/internal/storage/kv"
	"go.uber.org/zap"
)

// SchemaVersion is the version tag written with every document.
const SchemaVersion = 1

// State is the persisted portion of the engine.
type State struct {
	Tracked     []core.TrackedInstrument
	Models      []core.ModelDescriptor
	Performance core.PerformanceSnapshot
	Config      config.EngineConfig
	SavedAt     time.Time
}

// document is the wire form. Each field is decoded on its own so one corrupt
// field does not discard the others.
type document struct {
	Version     int             `json:"version"`
	Tracked     json.RawMessage `json:"tracked,omitempty"`
	Models      json.RawMessage `json:"models,omitempty"`
	Performance json.RawMessage `json:"performance,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Gateway is the best-effort persistence front for the engine.
type Gateway struct {
	store       kv.Store
	key         string
	minInterval time.Duration
	ioTimeout   time.Duration
	logger      *zap.Logger
	metrics     *metrics.Registry
	now         func() time.Time

	mu       sync.Mutex
	inFlight bool
	lastSave time.Time
	wg       sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics records load/save outcomes on reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(g *Gateway) { g.metrics = reg }
}

// WithClock overrides the time source used for throttling.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a gateway writing to cfg.Key in store.
func New(store kv.Store, cfg config.StorageConfig, opts ...Option) *Gateway {
	g := &Gateway{
		store:       store,
		key:         cfg.Key,
		minInterval: cfg.MinSaveInterval,
		ioTimeout:   cfg.IOTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	if g.key == "" {
		g.key = "vanguard/state.json"
	}
	if g.ioTimeout <= 0 {
		g.ioTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load returns the persisted state merged over defaults. The returned state is
// always usable; a non-nil error reports a read failure or fields that fell
// back to their defaults.
func (g *Gateway) Load(ctx context.Context, defaults State) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, g.ioTimeout)
	defer cancel()

	data, found, err := g.store.Get(ctx, g.key)
	if err != nil {
		err = core.WrapError(core.ErrPersistenceFailed, fmt.Errorf("reading %s: %w", g.key, err))
		g.metrics.RecordPersistence("load", err)
		g.logger.Warn("state load failed, using defaults", zap.Error(err))
		return defaults, err
	}
	if !found {
		g.metrics.RecordPersistence("load", nil)
		g.logger.Info("no persisted state, using defaults", zap.String("key", g.key))
		return defaults, nil
	}

	state, fallbacks := decode(data, defaults)
	if len(fallbacks) > 0 {
		err = core.WrapError(core.ErrPersistenceFailed,
			fmt.Errorf("fields restored from defaults: %s", strings.Join(fallbacks, ", ")))
		g.logger.Warn("persisted state partially restored", zap.Strings("fallbacks", fallbacks))
	} else {
		g.logger.Info("state restored",
			zap.Int("tracked", len(state.Tracked)),
			zap.Int("models", len(state.Models)),
			zap.Time("saved_at", state.SavedAt),
		)
	}
	g.metrics.RecordPersistence("load", err)
	return state, err
}

// Save writes state in the background. It returns false when the write was
// throttled or a previous write is still running.
func (g *Gateway) Save(state State) bool {
	g.mu.Lock()
	now := g.now()
	if g.inFlight || (!g.lastSave.IsZero() && now.Sub(g.lastSave) < g.minInterval) {
		g.mu.Unlock()
		return false
	}
	g.inFlight = true
	g.lastSave = now
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			g.inFlight = false
			g.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), g.ioTimeout)
		defer cancel()
		if err := g.write(ctx, state, now); err != nil {
			g.logger.Warn("state save failed", zap.Error(err))
		}
	}()
	return true
}

// Flush waits for any background write and then saves state synchronously.
func (g *Gateway) Flush(ctx context.Context, state State) error {
	g.wg.Wait()

	ctx, cancel := context.WithTimeout(ctx, g.ioTimeout)
	defer cancel()

	now := g.now()
	err := g.write(ctx, state, now)
	if err == nil {
		g.mu.Lock()
		g.lastSave = now
		g.mu.Unlock()
	}
	return err
}

// Wait blocks until background writes finish.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) write(ctx context.Context, state State, savedAt time.Time) error {
	data, err := encode(state, savedAt)
	if err == nil {
		err = g.store.Set(ctx, g.key, data)
	}
	if err != nil {
		err = core.WrapError(core.ErrPersistenceFailed, fmt.Errorf("writing %s: %w", g.key, err))
	}
	g.metrics.RecordPersistence("save", err)
	return err
}

func encode(state State, savedAt time.Time) ([]byte, error) {
	doc := document{Version: SchemaVersion, SavedAt: savedAt.UTC()}
	fields := []struct {
		dst *json.RawMessage
		v   any
	}{
		{&doc.Tracked, state.Tracked},
		{&doc.Models, state.Models},
		{&doc.Performance, state.Performance},
		{&doc.Config, state.Config},
	}
	for _, f := range fields {
		raw, err := json.Marshal(f.v)
		if err != nil {
			return nil, err
		}
		*f.dst = raw
	}
	return json.Marshal(doc)
}

// decode merges data over defaults field by field and names every field that
// could not be used.
func decode(data []byte, defaults State) (State, []string) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return defaults, []string{"document"}
	}
	if doc.Version > SchemaVersion {
		return defaults, []string{fmt.Sprintf("version %d", doc.Version)}
	}

	state := defaults
	state.SavedAt = doc.SavedAt
	var fallbacks []string

	if len(doc.Tracked) > 0 {
		tracked, bad, ok := decodeEach[core.TrackedInstrument](doc.Tracked, "tracked")
		fallbacks = append(fallbacks, bad...)
		if ok {
			state.Tracked = validTracked(tracked)
		}
	}

	if len(doc.Models) > 0 {
		models, bad, ok := decodeEach[core.ModelDescriptor](doc.Models, "models")
		fallbacks = append(fallbacks, bad...)
		if valid := validModels(models); ok && len(valid) > 0 {
			state.Models = valid
		}
	}

	if len(doc.Performance) > 0 {
		var perf core.PerformanceSnapshot
		if err := json.Unmarshal(doc.Performance, &perf); err != nil {
			fallbacks = append(fallbacks, "performance")
		} else {
			state.Performance = perf
		}
	}

	if len(doc.Config) > 0 {
		cfg, bad := decodeConfig(doc.Config, defaults.Config)
		fallbacks = append(fallbacks, bad...)
		state.Config = cfg
	}

	return state, fallbacks
}

// decodeEach decodes a JSON array element by element, skipping and naming the
// elements that do not decode. ok is false when raw is not an array.
func decodeEach[T any](raw json.RawMessage, field string) (items []T, bad []string, ok bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, []string{field}, false
	}

	items = make([]T, 0, len(elems))
	for i, el := range elems {
		var v T
		if err := json.Unmarshal(el, &v); err != nil {
			bad = append(bad, fmt.Sprintf("%s[%d]", field, i))
			continue
		}
		items = append(items, v)
	}
	return items, bad, true
}

// decodeConfig merges the persisted config over defaults one field at a time.
// Fields that do not decode or do not validate keep their default.
func decodeConfig(raw json.RawMessage, defaults config.EngineConfig) (config.EngineConfig, []string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return defaults.Clone(), []string{"config"}
	}

	var bad []string
	cfg := defaults.Clone()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		one, err := json.Marshal(map[string]json.RawMessage{name: fields[name]})
		if err != nil {
			bad = append(bad, "config."+name)
			continue
		}
		next := cfg.Clone()
		if err := json.Unmarshal(one, &next); err != nil {
			bad = append(bad, "config."+name)
			continue
		}
		cfg = next
	}

	cfg, reset := cfg.Repair(defaults)
	for _, name := range reset {
		bad = append(bad, "config."+name)
	}
	if err := cfg.Validate(); err != nil {
		return defaults.Clone(), append(bad, "config")
	}
	return cfg, bad
}

func validTracked(in []core.TrackedInstrument) []core.TrackedInstrument {
	out := make([]core.TrackedInstrument, 0, len(in))
	for _, t := range in {
		if t.Symbol != "" {
			out = append(out, t)
		}
	}
	return out
}

func validModels(in []core.ModelDescriptor) []core.ModelDescriptor {
	out := make([]core.ModelDescriptor, 0, len(in))
	for _, m := range in {
		if m.ID == "" || m.Type == "" {
			continue
		}
		m.Accuracy = core.Clamp(m.Accuracy, 0, 98)
		out = append(out, m)
	}
	return out
}

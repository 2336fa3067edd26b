// Package feed supplies market snapshots to the engine.
package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
)

// Feed supplies the latest snapshot per instrument.
// Symbols may appear or disappear between calls.
type Feed interface {
	Name() string
	GetLatestSnapshots(ctx context.Context) ([]core.MarketSnapshot, error)
}

// Dedupe keeps the most recent snapshot per symbol and drops invalid entries.
// The result preserves first-seen symbol order.
func Dedupe(snapshots []core.MarketSnapshot) []core.MarketSnapshot {
	idx := make(map[string]int, len(snapshots))
	out := make([]core.MarketSnapshot, 0, len(snapshots))

	for _, s := range snapshots {
		if !s.IsValid() {
			continue
		}
		if i, ok := idx[s.Symbol]; ok {
			if s.Timestamp.After(out[i].Timestamp) {
				out[i] = s
			}
			continue
		}
		idx[s.Symbol] = len(out)
		out = append(out, s)
	}
	return out
}

// Symbols returns the set of symbols present in the snapshots.
func Symbols(snapshots []core.MarketSnapshot) map[string]struct{} {
	set := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		set[s.Symbol] = struct{}{}
	}
	return set
}

// Static is an in-memory feed whose content is replaced wholesale by Set.
type Static struct {
	mu        sync.RWMutex
	snapshots []core.MarketSnapshot
	err       error
}

// NewStatic creates a static feed seeded with snapshots.
func NewStatic(snapshots ...core.MarketSnapshot) *Static {
	return &Static{snapshots: slices.Clone(snapshots)}
}

func (s *Static) Name() string {
	return "static"
}

// Set replaces the feed content.
func (s *Static) Set(snapshots []core.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = slices.Clone(snapshots)
}

// SetError makes subsequent reads fail with err until cleared with nil.
func (s *Static) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) GetLatestSnapshots(ctx context.Context) ([]core.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, s.err)
	}
	return Dedupe(s.snapshots), nil
}

// New creates the feed selected by configuration.
func New(cfg config.FeedConfig) (Feed, error) {
	switch cfg.Provider {
	case "", "static":
		return NewStatic(), nil
	case "binance":
		return NewBinance(cfg), nil
	default:
		return nil, fmt.Errorf("unknown feed provider: %s", cfg.Provider)
	}
}

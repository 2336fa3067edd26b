// Package ensemble reduces one tick's raw signals into one consensus signal
// per instrument.
package ensemble

import (
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
)

const (
	maxConfidence = 98.0
	maxBoost      = 10.0
	boostPerModel = 2.0
)

// Aggregator performs weighted voting.
type Aggregator struct {
	newID func() string
}

// New creates an aggregator that assigns random UUIDs.
func New() *Aggregator {
	return &Aggregator{newID: uuid.NewString}
}

// Aggregate reduces a single tick's batch. Output is sorted by
// confidence*accuracy descending, ties by symbol, and truncated to maxSignals.
func (a *Aggregator) Aggregate(signals []core.RawSignal, method config.EnsembleMethod, maxSignals int) []core.ConsensusSignal {
	groups := make(map[string][]core.RawSignal)
	var order []string
	for _, s := range signals {
		if _, ok := groups[s.Symbol]; !ok {
			order = append(order, s.Symbol)
		}
		groups[s.Symbol] = append(groups[s.Symbol], s)
	}

	out := make([]core.ConsensusSignal, 0, len(groups))
	for _, sym := range order {
		c := reduce(groups[sym], method)
		c.ID = a.newID()
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(x, y core.ConsensusSignal) int {
		if sx, sy := x.Score(), y.Score(); sx != sy {
			if sx > sy {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Symbol, y.Symbol)
	})

	if maxSignals > 0 && len(out) > maxSignals {
		out = out[:maxSignals]
	}
	return out
}

func reduce(group []core.RawSignal, method config.EnsembleMethod) core.ConsensusSignal {
	if len(group) == 1 {
		return fromRaw(group[0], 1)
	}

	weight := func(s core.RawSignal) float64 {
		if method == config.EnsembleVoting {
			return 1
		}
		return s.Weight()
	}

	var buy, sell float64
	top := 0
	for i, s := range group {
		w := weight(s)
		if s.Action == core.ActionBuy {
			buy += w
		} else {
			sell += w
		}
		// strict: the first of equal weights wins
		if s.Weight() > group[top].Weight() {
			top = i
		}
	}

	winner := group[top].Action
	switch {
	case buy > sell:
		winner = core.ActionBuy
	case sell > buy:
		winner = core.ActionSell
	}

	rep := -1
	var weighted, total float64
	for i, s := range group {
		if s.Action != winner {
			continue
		}
		if rep < 0 || s.Weight() > group[rep].Weight() {
			rep = i
		}
		weighted += s.Weight() * s.Confidence
		total += s.Weight()
	}

	c := fromRaw(group[rep], len(group))
	base := group[rep].Confidence
	if method == config.EnsembleBlending && total > 0 {
		base = weighted / total
	}
	boost := math.Min(maxBoost, boostPerModel*float64(len(group)))
	c.Confidence = math.Min(maxConfidence, base+boost)

	for _, s := range group {
		if s.Action == winner && s.AdvisoryEnhanced {
			c.AdvisoryEnhanced = true
		}
	}
	return c
}

func fromRaw(s core.RawSignal, contributors int) core.ConsensusSignal {
	return core.ConsensusSignal{
		Symbol:             s.Symbol,
		Action:             s.Action,
		Confidence:         s.Confidence,
		Accuracy:           s.Accuracy,
		EntryPrice:         s.EntryPrice,
		StopLoss:           s.StopLoss,
		TakeProfit:         s.TakeProfit,
		RiskLevel:          s.RiskLevel,
		ContributingModels: contributors,
		ModelID:            s.ModelID,
		AdvisoryEnhanced:   s.AdvisoryEnhanced,
		Timestamp:          s.Timestamp,
	}
}

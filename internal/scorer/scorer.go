// Package scorer ranks feed instruments by their suitability for analysis.
package scorer

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
)

const (
	maxVolatilityScore = 40.0
	maxMomentumScore   = 20.0
	maxLiquidityScore  = 25.0
	sessionScore       = 15.0
)

// Candidate is a ranked, eligible symbol.
type Candidate struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// Scorer computes eligibility scores.
type Scorer struct {
	cfg config.ScorerConfig
	now func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the clock used for the session window.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// New creates a scorer.
func New(cfg config.ScorerConfig, opts ...Option) *Scorer {
	s := &Scorer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rank scores every allow-listed symbol present in snapshots and returns the
// eligible ones, best first. An empty allowlist admits every symbol.
func (s *Scorer) Rank(snapshots []core.MarketSnapshot, allowlist []string) []Candidate {
	if len(snapshots) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowlist))
	for _, sym := range allowlist {
		allowed[sym] = struct{}{}
	}

	inSession := s.inSession(s.now().UTC().Hour())
	seen := make(map[string]struct{}, len(snapshots))
	candidates := make([]Candidate, 0, len(snapshots))

	for _, snap := range snapshots {
		if !snap.IsValid() {
			continue
		}
		if _, dup := seen[snap.Symbol]; dup {
			continue
		}
		seen[snap.Symbol] = struct{}{}
		if len(allowed) > 0 {
			if _, ok := allowed[snap.Symbol]; !ok {
				continue
			}
		}

		score := s.Score(snap, inSession)
		if score < s.cfg.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{Symbol: snap.Symbol, Score: score})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return candidates
}

// Score returns the eligibility score of one snapshot.
func (s *Scorer) Score(snap core.MarketSnapshot, inSession bool) float64 {
	cp := math.Abs(snap.ChangePercent)

	score := s.volatility(cp)
	score += math.Min(maxMomentumScore, 10*cp)
	score += s.liquidity(snap.Volume)
	if inSession {
		score += sessionScore
	}
	return score
}

func (s *Scorer) volatility(cp float64) float64 {
	lo, hi := s.cfg.SweetSpotMin, s.cfg.SweetSpotMax
	switch {
	case cp >= lo && cp <= hi:
		return maxVolatilityScore
	case cp < lo:
		if lo <= 0 {
			return maxVolatilityScore
		}
		return maxVolatilityScore * cp / lo
	default:
		return maxVolatilityScore * hi / cp
	}
}

func (s *Scorer) liquidity(volume float64) float64 {
	if volume <= 0 || s.cfg.VolumeScale <= 0 {
		return 0
	}
	return maxLiquidityScore * (1 - math.Exp(-volume/s.cfg.VolumeScale))
}

func (s *Scorer) inSession(hour int) bool {
	start, end := s.cfg.SessionStartHour, s.cfg.SessionEndHour
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	// window wraps midnight
	return hour >= start || hour < end
}

// Symbols returns the candidate symbols in rank order.
func Symbols(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Symbol
	}
	return out
}

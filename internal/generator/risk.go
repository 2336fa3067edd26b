package generator

import (
	"math"

	"github.com/newthinker/vanguard/internal/core"
)

// maxDownside bounds the distance of any level below entry, as a fraction of
// entry, so stop and target prices stay positive.
const maxDownside = 0.9

type levels struct {
	entry  float64
	stop   float64
	target float64
	risk   core.RiskLevel
}

// RiskLevelFor grades exposure from the move size and confidence.
func RiskLevelFor(changePercent, confidence float64) core.RiskLevel {
	cp := math.Abs(changePercent)
	switch {
	case cp >= 2 || confidence < 65:
		return core.RiskHigh
	case cp < 0.5 && confidence >= 80:
		return core.RiskLow
	default:
		return core.RiskMedium
	}
}

func riskMultiplier(level core.RiskLevel) float64 {
	switch level {
	case core.RiskLow:
		return 0.75
	case core.RiskHigh:
		return 1.5
	default:
		return 1.0
	}
}

// RiskReward is the take-profit distance in units of risk.
func RiskReward(confidence, changePercent float64) float64 {
	return 1.5 + (confidence-50)/45 + 0.5*math.Min(1, math.Abs(changePercent)/2)
}

func computeLevels(snap core.MarketSnapshot, action core.Action, confidence, maxRiskPercent float64) levels {
	entry := snap.Price
	if action == core.ActionBuy && snap.Ask > 0 {
		entry = snap.Ask
	}
	if action == core.ActionSell && snap.Bid > 0 {
		entry = snap.Bid
	}

	risk := RiskLevelFor(snap.ChangePercent, confidence)
	amount := entry * maxRiskPercent / 100 * riskMultiplier(risk)
	reward := amount * RiskReward(confidence, snap.ChangePercent)

	floor := entry * maxDownside
	if action == core.ActionBuy {
		return levels{entry: entry, stop: entry - math.Min(amount, floor), target: entry + reward, risk: risk}
	}
	return levels{entry: entry, stop: entry + amount, target: entry - math.Min(reward, floor), risk: risk}
}

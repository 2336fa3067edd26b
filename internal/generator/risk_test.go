package generator

import (
	"testing"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		name       string
		cp         float64
		confidence float64
		want       core.RiskLevel
	}{
		{"large move", 2.5, 90, core.RiskHigh},
		{"large negative move", -2, 90, core.RiskHigh},
		{"low confidence", 0.3, 60, core.RiskHigh},
		{"calm and confident", 0.3, 85, core.RiskLow},
		{"calm, moderate confidence", 0.3, 70, core.RiskMedium},
		{"moderate move", 1, 85, core.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelFor(tt.cp, tt.confidence))
		})
	}
}

func TestRiskReward(t *testing.T) {
	assert.InDelta(t, 1.5, RiskReward(50, 0), 1e-9)
	assert.InDelta(t, 1.5+1+0.5, RiskReward(95, 4), 1e-9)
	assert.InDelta(t, 1.5+0.2+0.25, RiskReward(59, -1), 1e-9)
}

func TestComputeLevels_Buy(t *testing.T) {
	snap := core.MarketSnapshot{Symbol: "EURUSD", Price: 100, Ask: 100.5, ChangePercent: 1}
	got := computeLevels(snap, core.ActionBuy, 70, 2)

	// medium risk: 100.5 * 2% * 1.0
	amount := 2.01
	assert.Equal(t, 100.5, got.entry)
	assert.Equal(t, core.RiskMedium, got.risk)
	assert.InDelta(t, 100.5-amount, got.stop, 1e-9)
	assert.InDelta(t, 100.5+amount*RiskReward(70, 1), got.target, 1e-9)
}

func TestComputeLevels_HighRiskWidensStop(t *testing.T) {
	snap := core.MarketSnapshot{Symbol: "BTC", Price: 100, ChangePercent: -3}
	got := computeLevels(snap, core.ActionSell, 90, 2)

	assert.Equal(t, 100.0, got.entry, "falls back to price without a bid")
	assert.Equal(t, core.RiskHigh, got.risk)
	assert.InDelta(t, 103, got.stop, 1e-9)
}

func TestComputeLevels_StayPositiveAtMaxRisk(t *testing.T) {
	tests := []struct {
		name    string
		action  core.Action
		cp      float64
		maxRisk float64
	}{
		{"sell target", core.ActionSell, -2.5, 25},
		{"buy stop", core.ActionBuy, 2.5, 80},
		{"sell at validator bound", core.ActionSell, -4, 100},
		{"buy at validator bound", core.ActionBuy, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := core.MarketSnapshot{Symbol: "EURUSD", Price: 1, ChangePercent: tt.cp}
			got := computeLevels(snap, tt.action, 95, tt.maxRisk)

			assert.Equal(t, core.RiskHigh, got.risk)
			assert.Greater(t, got.stop, 0.0)
			assert.Greater(t, got.target, 0.0)
			assert.InDelta(t, 0.1, min(got.stop, got.target), 1e-9, "clamped to the downside floor")
			if tt.action == core.ActionBuy {
				assert.Greater(t, got.target, got.entry)
			} else {
				assert.Greater(t, got.stop, got.entry)
			}
		})
	}
}

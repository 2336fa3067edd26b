package config

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 80.0, cfg.MinAccuracy)
	assert.Equal(t, 2.0, cfg.MaxRiskPercent)
	assert.Equal(t, EnsembleWeighted, cfg.EnsembleMethod)
	assert.Equal(t, 30*time.Second, cfg.RotationInterval)
	assert.Equal(t, 15*time.Second, cfg.AnalysisInterval)
	assert.Equal(t, 15, cfg.MaxSignals)
	assert.Len(t, cfg.EnabledModelTypes, len(core.ModelTypes()))
	assert.Equal(t, []string{"1m", "5m", "15m"}, cfg.Timeframes)
	require.NoError(t, cfg.Validate())
}

func TestEngineConfig_Update_Applies(t *testing.T) {
	cfg := DefaultEngineConfig()

	next, err := cfg.Update(EngineConfigPatch{
		MinAccuracy:     ptr(90.0),
		Capacity:        ptr(3),
		SymbolAllowlist: ptr([]string{"EURUSD", "GBPUSD"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 90.0, next.MinAccuracy)
	assert.Equal(t, 3, next.Capacity)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, next.SymbolAllowlist)
	assert.Equal(t, cfg.MaxRiskPercent, next.MaxRiskPercent, "untouched fields keep their value")
	assert.Equal(t, 80.0, cfg.MinAccuracy, "receiver must not change")
}

func TestEngineConfig_Update_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		patch EngineConfigPatch
	}{
		{"min accuracy above 100", EngineConfigPatch{MinAccuracy: ptr(150.0)}},
		{"min accuracy negative", EngineConfigPatch{MinAccuracy: ptr(-1.0)}},
		{"zero capacity", EngineConfigPatch{Capacity: ptr(0)}},
		{"zero rotation interval", EngineConfigPatch{RotationInterval: ptr(time.Duration(0))}},
		{"negative analysis interval", EngineConfigPatch{AnalysisInterval: ptr(-time.Second)}},
		{"unknown ensemble method", EngineConfigPatch{EnsembleMethod: ptr(EnsembleMethod("majority"))}},
		{"unknown model type", EngineConfigPatch{EnabledModelTypes: ptr([]core.ModelType{"prophet"})}},
		{"advisory probability above 1", EngineConfigPatch{AdvisoryProbability: ptr(1.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			got, err := cfg.Update(tt.patch)

			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid))
			assert.Equal(t, cfg, got, "previous config must be returned unchanged")
		})
	}
}

func TestEngineConfig_Update_NoPartialApply(t *testing.T) {
	cfg := DefaultEngineConfig()

	// valid min accuracy paired with invalid capacity: nothing is applied
	got, err := cfg.Update(EngineConfigPatch{
		MinAccuracy: ptr(70.0),
		Capacity:    ptr(0),
	})

	require.Error(t, err)
	assert.Equal(t, 80.0, got.MinAccuracy)
	assert.Equal(t, 5, got.Capacity)
}

func TestEngineConfig_CloneIsIndependent(t *testing.T) {
	cfg := DefaultEngineConfig()
	clone := cfg.Clone()
	clone.Timeframes[0] = "1d"

	assert.Equal(t, "1m", cfg.Timeframes[0])
}

func TestEngineConfig_ModelEnabled(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.EnabledModelTypes = []core.ModelType{core.ModelLSTM}

	assert.True(t, cfg.ModelEnabled(core.ModelLSTM))
	assert.False(t, cfg.ModelEnabled(core.ModelSVM))
}

func TestEngineConfig_Repair(t *testing.T) {
	defaults := DefaultEngineConfig()

	cfg := defaults.Clone()
	cfg.MinAccuracy = 70
	cfg.Capacity = 0
	cfg.Timeframes = []string{"1m", "2y", "3y"}
	cfg.EnsembleMethod = "bagging"

	got, reset := cfg.Repair(defaults)
	require.NoError(t, got.Validate())
	assert.ElementsMatch(t, []string{"capacity", "timeframes", "ensemble_method"}, reset)
	assert.Equal(t, 70.0, got.MinAccuracy)
	assert.Equal(t, defaults.Capacity, got.Capacity)
	assert.Equal(t, defaults.Timeframes, got.Timeframes)
	assert.Equal(t, defaults.EnsembleMethod, got.EnsembleMethod)

	got.Timeframes[0] = "mutated"
	assert.Equal(t, "1m", defaults.Timeframes[0], "repaired slices are copies")
}

func TestEngineConfig_RepairValid(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Capacity = 9

	got, reset := cfg.Repair(DefaultEngineConfig())
	assert.Empty(t, reset)
	assert.Equal(t, 9, got.Capacity)
}

package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/engine"
)

type fakeEngine struct {
	consensus   []core.ConsensusSignal
	tracked     []core.TrackedInstrument
	performance core.PerformanceSnapshot
	models      []core.ModelDescriptor
	cfg         config.EngineConfig
	status      engine.Status
	tickErr     error
	retrainErr  error
	rotations   int
	analyses    int
	retrains    int
}

func newFakeEngine() *fakeEngine {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeEngine{
		consensus: []core.ConsensusSignal{
			{ID: "c1", Symbol: "EURUSD", Action: core.ActionBuy, Confidence: 88, Accuracy: 86, Timestamp: now},
		},
		tracked: []core.TrackedInstrument{
			{Symbol: "EURUSD", AddedAt: now, LastSeen: now},
			{Symbol: "GBPUSD", AddedAt: now, LastSeen: now},
		},
		performance: core.PerformanceSnapshot{OverallAccuracy: 86, TotalSignals: 1, BestModelID: "rf-1"},
		models: []core.ModelDescriptor{
			{ID: "rf-1", Type: core.ModelRandomForest, Status: core.StatusActive, Accuracy: 86},
			{ID: "svm-1", Type: core.ModelSVM, Status: core.StatusInactive, Accuracy: 81},
		},
		cfg:    config.DefaultEngineConfig(),
		status: engine.Status{Running: true, FeedAvailable: true, Capacity: 5},
	}
}

func (f *fakeEngine) GetConsensusSignals() []core.ConsensusSignal     { return f.consensus }
func (f *fakeEngine) GetTrackedInstruments() []core.TrackedInstrument { return f.tracked }
func (f *fakeEngine) GetPerformance() core.PerformanceSnapshot        { return f.performance }
func (f *fakeEngine) GetModels() []core.ModelDescriptor               { return f.models }
func (f *fakeEngine) Status() engine.Status                           { return f.status }
func (f *fakeEngine) GetConfig() config.EngineConfig                  { return f.cfg }

func (f *fakeEngine) GetModel(id string) (core.ModelDescriptor, error) {
	for _, m := range f.models {
		if m.ID == id {
			return m, nil
		}
	}
	return core.ModelDescriptor{}, core.WrapError(core.ErrModelNotFound, nil)
}

func (f *fakeEngine) Retrain() error {
	f.retrains++
	return f.retrainErr
}

func (f *fakeEngine) UpdateConfig(patch config.EngineConfigPatch) (config.EngineConfig, error) {
	next, err := f.cfg.Update(patch)
	if err != nil {
		return f.cfg, err
	}
	f.cfg = next
	return next, nil
}

func (f *fakeEngine) ForceRotationTick(ctx context.Context) error {
	f.rotations++
	return f.tickErr
}

func (f *fakeEngine) ForceAnalysisTick(ctx context.Context) error {
	f.analyses++
	return f.tickErr
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", resp.Data)
	}
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return resp.Error
}

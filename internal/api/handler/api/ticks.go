package api

import (
	"context"
	"net/http"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/core"
)

// TickRunner runs engine ticks on demand.
type TickRunner interface {
	ForceRotationTick(ctx context.Context) error
	ForceAnalysisTick(ctx context.Context) error
	GetTrackedInstruments() []core.TrackedInstrument
	GetConsensusSignals() []core.ConsensusSignal
}

// TicksHandler triggers rotation and analysis ticks.
type TicksHandler struct {
	engine TickRunner
}

// NewTicksHandler creates a new ticks handler.
func NewTicksHandler(engine TickRunner) *TicksHandler {
	return &TicksHandler{engine: engine}
}

// Rotation runs one rotation tick and returns the tracked set.
func (h *TicksHandler) Rotation(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ForceRotationTick(r.Context()); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"instruments": h.engine.GetTrackedInstruments(),
	})
}

// Analysis runs one analysis tick and returns the consensus batch.
func (h *TicksHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ForceAnalysisTick(r.Context()); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"signals": h.engine.GetConsensusSignals(),
	})
}

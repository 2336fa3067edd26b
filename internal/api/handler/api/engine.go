package api

import (
	"net/http"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/engine"
)

// EngineState exposes the read-only engine views.
type EngineState interface {
	GetTrackedInstruments() []core.TrackedInstrument
	GetPerformance() core.PerformanceSnapshot
	Status() engine.Status
}

// EngineHandler serves the tracked set, performance and scheduler status.
type EngineHandler struct {
	engine EngineState
}

// NewEngineHandler creates a new engine handler.
func NewEngineHandler(e EngineState) *EngineHandler {
	return &EngineHandler{engine: e}
}

// Tracked returns the tracked instruments.
func (h *EngineHandler) Tracked(w http.ResponseWriter, r *http.Request) {
	tracked := h.engine.GetTrackedInstruments()
	response.JSON(w, http.StatusOK, map[string]any{
		"instruments": tracked,
		"count":       len(tracked),
	})
}

// Performance returns the latest performance snapshot.
func (h *EngineHandler) Performance(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.engine.GetPerformance())
}

// Status returns the scheduler status.
func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.engine.Status())
}

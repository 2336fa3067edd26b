package api

import (
	"net/http"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/core"
)

// ModelService exposes the model registry.
type ModelService interface {
	GetModels() []core.ModelDescriptor
	GetModel(id string) (core.ModelDescriptor, error)
	Retrain() error
}

// ModelsHandler handles model registry requests.
type ModelsHandler struct {
	models ModelService
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(models ModelService) *ModelsHandler {
	return &ModelsHandler{models: models}
}

// List returns every model descriptor.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models := h.models.GetModels()
	active := 0
	for _, m := range models {
		if m.IsActive() {
			active++
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
		"active": active,
	})
}

// Get returns one model by ID.
func (h *ModelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.models.GetModel(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, m)
}

// Retrain retrains the enabled models and returns the updated catalogue.
func (h *ModelsHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	if err := h.models.Retrain(); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"models": h.models.GetModels(),
	})
}

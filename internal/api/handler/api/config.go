package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
)

// ConfigService reads and patches the live engine config.
type ConfigService interface {
	GetConfig() config.EngineConfig
	UpdateConfig(patch config.EngineConfigPatch) (config.EngineConfig, error)
}

// ConfigHandler serves the engine config. Durations travel as Go duration
// strings such as "30s".
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

type configView struct {
	EnabledModelTypes   []core.ModelType      `json:"enabled_model_types"`
	MinAccuracy         float64               `json:"min_accuracy"`
	MaxRiskPercent      float64               `json:"max_risk_percent"`
	Timeframes          []string              `json:"timeframes"`
	SymbolAllowlist     []string              `json:"symbol_allowlist"`
	EnsembleMethod      config.EnsembleMethod `json:"ensemble_method"`
	Capacity            int                   `json:"capacity"`
	RotationInterval    string                `json:"rotation_interval"`
	AnalysisInterval    string                `json:"analysis_interval"`
	MaxSignals          int                   `json:"max_signals"`
	MinSignalStrength   float64               `json:"min_signal_strength"`
	AdvisoryTimeout     string                `json:"advisory_timeout"`
	AdvisoryProbability float64               `json:"advisory_probability"`
	AdvisoryWeight      float64               `json:"advisory_weight"`
}

func newConfigView(c config.EngineConfig) configView {
	return configView{
		EnabledModelTypes:   c.EnabledModelTypes,
		MinAccuracy:         c.MinAccuracy,
		MaxRiskPercent:      c.MaxRiskPercent,
		Timeframes:          c.Timeframes,
		SymbolAllowlist:     c.SymbolAllowlist,
		EnsembleMethod:      c.EnsembleMethod,
		Capacity:            c.Capacity,
		RotationInterval:    c.RotationInterval.String(),
		AnalysisInterval:    c.AnalysisInterval.String(),
		MaxSignals:          c.MaxSignals,
		MinSignalStrength:   c.MinSignalStrength,
		AdvisoryTimeout:     c.AdvisoryTimeout.String(),
		AdvisoryProbability: c.AdvisoryProbability,
		AdvisoryWeight:      c.AdvisoryWeight,
	}
}

type configPatchRequest struct {
	EnabledModelTypes   *[]core.ModelType      `json:"enabled_model_types"`
	MinAccuracy         *float64               `json:"min_accuracy"`
	MaxRiskPercent      *float64               `json:"max_risk_percent"`
	Timeframes          *[]string              `json:"timeframes"`
	SymbolAllowlist     *[]string              `json:"symbol_allowlist"`
	EnsembleMethod      *config.EnsembleMethod `json:"ensemble_method"`
	Capacity            *int                   `json:"capacity"`
	RotationInterval    *string                `json:"rotation_interval"`
	AnalysisInterval    *string                `json:"analysis_interval"`
	MaxSignals          *int                   `json:"max_signals"`
	MinSignalStrength   *float64               `json:"min_signal_strength"`
	AdvisoryTimeout     *string                `json:"advisory_timeout"`
	AdvisoryProbability *float64               `json:"advisory_probability"`
	AdvisoryWeight      *float64               `json:"advisory_weight"`
}

func (p configPatchRequest) toPatch() (config.EngineConfigPatch, error) {
	patch := config.EngineConfigPatch{
		EnabledModelTypes:   p.EnabledModelTypes,
		MinAccuracy:         p.MinAccuracy,
		MaxRiskPercent:      p.MaxRiskPercent,
		Timeframes:          p.Timeframes,
		SymbolAllowlist:     p.SymbolAllowlist,
		EnsembleMethod:      p.EnsembleMethod,
		Capacity:            p.Capacity,
		MaxSignals:          p.MaxSignals,
		MinSignalStrength:   p.MinSignalStrength,
		AdvisoryProbability: p.AdvisoryProbability,
		AdvisoryWeight:      p.AdvisoryWeight,
	}

	durations := []struct {
		name string
		src  *string
		dst  **time.Duration
	}{
		{"rotation_interval", p.RotationInterval, &patch.RotationInterval},
		{"analysis_interval", p.AnalysisInterval, &patch.AnalysisInterval},
		{"advisory_timeout", p.AdvisoryTimeout, &patch.AdvisoryTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return config.EngineConfigPatch{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = &v
	}
	return patch, nil
}

// Get returns the live config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, newConfigView(h.svc.GetConfig()))
}

// Patch applies a partial update. A rejected update leaves the config as it
// was.
func (h *ConfigHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req configPatchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	cfg, err := h.svc.UpdateConfig(patch)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newConfigView(cfg))
}

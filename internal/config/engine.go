package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/newthinker/vanguard/internal/core"
)

// EnsembleMethod selects how raw signals are reduced into a consensus.
type EnsembleMethod string

const (
	EnsembleVoting   EnsembleMethod = "voting"
	EnsembleWeighted EnsembleMethod = "weighted"
	EnsembleStacking EnsembleMethod = "stacking"
	EnsembleBlending EnsembleMethod = "blending"
)

// EngineConfig holds the runtime-tunable engine settings.
type EngineConfig struct {
	EnabledModelTypes   []core.ModelType `mapstructure:"enabled_model_types" json:"enabled_model_types" default:"[\"lstm\",\"random_forest\",\"xgboost\",\"svm\",\"neural_network\",\"transformer\"]" validate:"dive,oneof=lstm random_forest xgboost svm neural_network transformer"`
	MinAccuracy         float64          `mapstructure:"min_accuracy" json:"min_accuracy" default:"80" validate:"gte=0,lte=100"`
	MaxRiskPercent      float64          `mapstructure:"max_risk_percent" json:"max_risk_percent" default:"2" validate:"gt=0,lte=100"`
	Timeframes          []string         `mapstructure:"timeframes" json:"timeframes" default:"[\"1m\",\"5m\",\"15m\"]" validate:"dive,oneof=1m 5m 15m 30m 1h 4h 1d"`
	SymbolAllowlist     []string         `mapstructure:"symbol_allowlist" json:"symbol_allowlist" validate:"dive,required"`
	EnsembleMethod      EnsembleMethod   `mapstructure:"ensemble_method" json:"ensemble_method" default:"weighted" validate:"oneof=voting weighted stacking blending"`
	Capacity            int              `mapstructure:"capacity" json:"capacity" default:"5" validate:"gte=1,lte=100"`
	RotationInterval    time.Duration    `mapstructure:"rotation_interval" json:"rotation_interval" default:"30s" validate:"gt=0"`
	AnalysisInterval    time.Duration    `mapstructure:"analysis_interval" json:"analysis_interval" default:"15s" validate:"gt=0"`
	MaxSignals          int              `mapstructure:"max_signals" json:"max_signals" default:"15" validate:"gte=1"`
	MinSignalStrength   float64          `mapstructure:"min_signal_strength" json:"min_signal_strength" default:"8" validate:"gte=0,lt=50"`
	AdvisoryTimeout     time.Duration    `mapstructure:"advisory_timeout" json:"advisory_timeout" default:"15s" validate:"gt=0"`
	AdvisoryProbability float64          `mapstructure:"advisory_probability" json:"advisory_probability" default:"1" validate:"gte=0,lte=1"`
	AdvisoryWeight      float64          `mapstructure:"advisory_weight" json:"advisory_weight" default:"0.25" validate:"gte=0,lte=1"`
}

// EngineConfigPatch is a partial update; nil fields are left untouched.
type EngineConfigPatch struct {
	EnabledModelTypes   *[]core.ModelType `json:"enabled_model_types,omitempty"`
	MinAccuracy         *float64          `json:"min_accuracy,omitempty"`
	MaxRiskPercent      *float64          `json:"max_risk_percent,omitempty"`
	Timeframes          *[]string         `json:"timeframes,omitempty"`
	SymbolAllowlist     *[]string         `json:"symbol_allowlist,omitempty"`
	EnsembleMethod      *EnsembleMethod   `json:"ensemble_method,omitempty"`
	Capacity            *int              `json:"capacity,omitempty"`
	RotationInterval    *time.Duration    `json:"rotation_interval,omitempty"`
	AnalysisInterval    *time.Duration    `json:"analysis_interval,omitempty"`
	MaxSignals          *int              `json:"max_signals,omitempty"`
	MinSignalStrength   *float64          `json:"min_signal_strength,omitempty"`
	AdvisoryTimeout     *time.Duration    `json:"advisory_timeout,omitempty"`
	AdvisoryProbability *float64          `json:"advisory_probability,omitempty"`
	AdvisoryWeight      *float64          `json:"advisory_weight,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	return v
}

func fieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// DefaultEngineConfig returns the engine settings populated from struct defaults.
func DefaultEngineConfig() EngineConfig {
	var cfg EngineConfig
	if err := defaults.Set(&cfg); err != nil {
		// struct tags are static; a failure here is a programming error
		panic(fmt.Sprintf("engine config defaults: %v", err))
	}
	return cfg
}

// Validate checks every field against its constraints.
func (c EngineConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return core.WrapError(core.ErrConfigInvalid, errors.New(strings.Join(msgs, "; ")))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "required":
		return fmt.Sprintf("%s must not be empty", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// Repair resets every field that fails validation to its value in fallback and
// returns the names of the reset fields. Valid fields are kept.
func (c EngineConfig) Repair(fallback EngineConfig) (EngineConfig, []string) {
	var verrs validator.ValidationErrors
	if err := validate.Struct(c); !errors.As(err, &verrs) {
		return c, nil
	}

	out := c.Clone()
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(fallback.Clone())

	var reset []string
	for _, fe := range verrs {
		// dive errors carry the element index, e.g. Timeframes[1]
		goName, _, _ := strings.Cut(fe.StructField(), "[")
		fld, ok := dst.Type().FieldByName(goName)
		if !ok {
			continue
		}
		name := fieldName(fld)
		if slices.Contains(reset, name) {
			continue
		}
		dst.FieldByIndex(fld.Index).Set(src.FieldByIndex(fld.Index))
		reset = append(reset, name)
	}
	return out, reset
}

// Clone returns a deep copy.
func (c EngineConfig) Clone() EngineConfig {
	c.EnabledModelTypes = slices.Clone(c.EnabledModelTypes)
	c.Timeframes = slices.Clone(c.Timeframes)
	c.SymbolAllowlist = slices.Clone(c.SymbolAllowlist)
	return c
}

// Update applies the patch atomically. On a validation failure the receiver is
// returned unchanged together with the error.
func (c EngineConfig) Update(p EngineConfigPatch) (EngineConfig, error) {
	next := c.Clone()

	if p.EnabledModelTypes != nil {
		next.EnabledModelTypes = slices.Clone(*p.EnabledModelTypes)
	}
	if p.MinAccuracy != nil {
		next.MinAccuracy = *p.MinAccuracy
	}
	if p.MaxRiskPercent != nil {
		next.MaxRiskPercent = *p.MaxRiskPercent
	}
	if p.Timeframes != nil {
		next.Timeframes = slices.Clone(*p.Timeframes)
	}
	if p.SymbolAllowlist != nil {
		next.SymbolAllowlist = slices.Clone(*p.SymbolAllowlist)
	}
	if p.EnsembleMethod != nil {
		next.EnsembleMethod = *p.EnsembleMethod
	}
	if p.Capacity != nil {
		next.Capacity = *p.Capacity
	}
	if p.RotationInterval != nil {
		next.RotationInterval = *p.RotationInterval
	}
	if p.AnalysisInterval != nil {
		next.AnalysisInterval = *p.AnalysisInterval
	}
	if p.MaxSignals != nil {
		next.MaxSignals = *p.MaxSignals
	}
	if p.MinSignalStrength != nil {
		next.MinSignalStrength = *p.MinSignalStrength
	}
	if p.AdvisoryTimeout != nil {
		next.AdvisoryTimeout = *p.AdvisoryTimeout
	}
	if p.AdvisoryProbability != nil {
		next.AdvisoryProbability = *p.AdvisoryProbability
	}
	if p.AdvisoryWeight != nil {
		next.AdvisoryWeight = *p.AdvisoryWeight
	}

	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// ModelEnabled reports whether the family is in the enabled set.
func (c EngineConfig) ModelEnabled(t core.ModelType) bool {
	return slices.Contains(c.EnabledModelTypes, t)
}

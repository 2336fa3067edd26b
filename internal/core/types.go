package core

import (
	"maps"
	"time"
)

// MarketSnapshot is the latest observation of one instrument as supplied by a feed.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Spread        float64   `json:"spread"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsValid checks if the snapshot has required fields
func (s MarketSnapshot) IsValid() bool {
	return s.Symbol != "" && s.Price > 0
}

// RangePosition returns where the price sits inside the [Low, High] range, in [0,1].
// A degenerate range reports the midpoint.
func (s MarketSnapshot) RangePosition() float64 {
	if s.High <= s.Low {
		return 0.5
	}
	pos := (s.Price - s.Low) / (s.High - s.Low)
	return Clamp(pos, 0, 1)
}

// TrackedInstrument is a member of the bounded working set.
type TrackedInstrument struct {
	Symbol      string    `json:"symbol"`
	AddedAt     time.Time `json:"added_at"`
	LastSeen    time.Time `json:"last_seen"`
	SignalCount int       `json:"signal_count"`
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// RiskLevel grades a signal's exposure.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ModelType is the predictor family of a model.
type ModelType string

const (
	ModelLSTM          ModelType = "lstm"
	ModelRandomForest  ModelType = "random_forest"
	ModelXGBoost       ModelType = "xgboost"
	ModelSVM           ModelType = "svm"
	ModelNeuralNetwork ModelType = "neural_network"
	ModelTransformer   ModelType = "transformer"
)

// ModelTypes lists every known predictor family in catalogue order.
func ModelTypes() []ModelType {
	return []ModelType{
		ModelLSTM,
		ModelRandomForest,
		ModelXGBoost,
		ModelSVM,
		ModelNeuralNetwork,
		ModelTransformer,
	}
}

// ModelStatus is the lifecycle state of a model.
type ModelStatus string

const (
	StatusTraining   ModelStatus = "training"
	StatusActive     ModelStatus = "active"
	StatusInactive   ModelStatus = "inactive"
	StatusError      ModelStatus = "error"
	StatusOptimizing ModelStatus = "optimizing"
)

// ModelPerformance is the trading performance block of a model.
type ModelPerformance struct {
	WinRate      float64 `json:"win_rate"`
	AvgReturn    float64 `json:"avg_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	ProfitFactor float64 `json:"profit_factor"`
}

// ModelDescriptor describes one predictor in the registry.
type ModelDescriptor struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             ModelType        `json:"type"`
	Status           ModelStatus      `json:"status"`
	Accuracy         float64          `json:"accuracy"`
	Precision        float64          `json:"precision"`
	Recall           float64          `json:"recall"`
	F1               float64          `json:"f1"`
	TrainingDataSize int              `json:"training_data_size"`
	LastTrainedAt    time.Time        `json:"last_trained_at"`
	Hyperparameters  map[string]any   `json:"hyperparameters,omitempty"`
	Performance      ModelPerformance `json:"performance"`
}

// Clone returns a copy that shares no mutable state with the receiver.
func (m ModelDescriptor) Clone() ModelDescriptor {
	if m.Hyperparameters != nil {
		m.Hyperparameters = maps.Clone(m.Hyperparameters)
	}
	return m
}

// IsActive reports whether the model takes part in signal generation.
func (m ModelDescriptor) IsActive() bool {
	return m.Status == StatusActive
}

// FeatureScores are the per-instrument feature readings, each in [0,100] with 50 neutral.
type FeatureScores struct {
	Technical float64 `json:"technical"`
	Sentiment float64 `json:"sentiment"`
	Volume    float64 `json:"volume"`
	Momentum  float64 `json:"momentum"`
}

// Values returns the features in a fixed order.
func (f FeatureScores) Values() []float64 {
	return []float64{f.Technical, f.Sentiment, f.Volume, f.Momentum}
}

// Mean returns the unweighted composite of the four features.
func (f FeatureScores) Mean() float64 {
	return (f.Technical + f.Sentiment + f.Volume + f.Momentum) / 4
}

// RawSignal is one model's opinion on one instrument within a single analysis tick.
type RawSignal struct {
	Symbol           string        `json:"symbol"`
	ModelID          string        `json:"model_id"`
	ModelType        ModelType     `json:"model_type"`
	Action           Action        `json:"action"`
	Confidence       float64       `json:"confidence"`
	Accuracy         float64       `json:"accuracy"`
	EntryPrice       float64       `json:"entry_price"`
	StopLoss         float64       `json:"stop_loss"`
	TakeProfit       float64       `json:"take_profit"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	Features         FeatureScores `json:"features"`
	Composite        float64       `json:"composite"`
	AdvisoryEnhanced bool          `json:"advisory_enhanced"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Weight is the voting weight of the signal in an ensemble.
func (s RawSignal) Weight() float64 {
	return s.Accuracy * s.Confidence
}

// ConsensusSignal is the reduced signal for one instrument.
type ConsensusSignal struct {
	ID                 string    `json:"id"`
	Symbol             string    `json:"symbol"`
	Action             Action    `json:"action"`
	Confidence         float64   `json:"confidence"`
	Accuracy           float64   `json:"accuracy"`
	EntryPrice         float64   `json:"entry_price"`
	StopLoss           float64   `json:"stop_loss"`
	TakeProfit         float64   `json:"take_profit"`
	RiskLevel          RiskLevel `json:"risk_level"`
	ContributingModels int       `json:"contributing_models"`
	ModelID            string    `json:"model_id"`
	AdvisoryEnhanced   bool      `json:"advisory_enhanced"`
	Timestamp          time.Time `json:"timestamp"`
}

// Score is the ranking key of a consensus signal.
func (s ConsensusSignal) Score() float64 {
	return s.Confidence * s.Accuracy
}

// DailyPerformance is one day in the rolling performance series.
type DailyPerformance struct {
	Date        string  `json:"date"` // 2006-01-02, UTC
	Accuracy    float64 `json:"accuracy"`
	SignalCount int     `json:"signal_count"`
	ReturnPct   float64 `json:"return_pct"`
}

// PerformanceSnapshot aggregates the latest consensus batch.
type PerformanceSnapshot struct {
	OverallAccuracy   float64            `json:"overall_accuracy"`
	TotalSignals      int                `json:"total_signals"`
	SuccessfulSignals int                `json:"successful_signals"`
	BestModelID       string             `json:"best_model_id"`
	WorstModelID      string             `json:"worst_model_id"`
	Daily             []DailyPerformance `json:"daily"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Clone returns a copy with its own daily series.
func (p PerformanceSnapshot) Clone() PerformanceSnapshot {
	if p.Daily != nil {
		p.Daily = append([]DailyPerformance(nil), p.Daily...)
	}
	return p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package model

import (
	"math"

	"github.com/newthinker/vanguard/internal/core"
)

const neutral = 50.0

// Predictor turns a snapshot into feature scores in [0,100], 50 being neutral.
type Predictor interface {
	Score(snap core.MarketSnapshot) core.FeatureScores
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(snap core.MarketSnapshot) core.FeatureScores

func (f PredictorFunc) Score(snap core.MarketSnapshot) core.FeatureScores {
	return f(snap)
}

// Profile parameterises the heuristic feature curves.
type Profile struct {
	SentimentScale float64 // change% at which sentiment reaches tanh(1)
	MomentumScale  float64
	VolumeScale    float64 // volume at which liquidity reaches 1-1/e
}

// DefaultProfile is the baseline heuristic profile.
var DefaultProfile = Profile{
	SentimentScale: 2,
	MomentumScale:  0.5,
	VolumeScale:    1_000_000,
}

var profiles = map[core.ModelType]Profile{
	core.ModelLSTM:          {SentimentScale: 2.5, MomentumScale: 0.4, VolumeScale: 1_000_000},
	core.ModelRandomForest:  DefaultProfile,
	core.ModelXGBoost:       {SentimentScale: 2, MomentumScale: 0.5, VolumeScale: 800_000},
	core.ModelSVM:           {SentimentScale: 2.5, MomentumScale: 0.6, VolumeScale: 1_200_000},
	core.ModelNeuralNetwork: {SentimentScale: 1.8, MomentumScale: 0.45, VolumeScale: 1_000_000},
	core.ModelTransformer:   {SentimentScale: 1.5, MomentumScale: 0.5, VolumeScale: 900_000},
}

// HeuristicPredictor is a rule-based predictor.
type HeuristicPredictor struct {
	Profile Profile
}

// Score computes the four features:
//
//	technical = 100 * position of price in [low, high]
//	sentiment = 50 + 50*tanh(cp/SentimentScale)
//	volume    = 50 + sign(cp)*50*(1 - exp(-volume/VolumeScale))
//	momentum  = 50 + 50*tanh(cp/MomentumScale)
func (p HeuristicPredictor) Score(snap core.MarketSnapshot) core.FeatureScores {
	cp := snap.ChangePercent

	var liquidity float64
	if p.Profile.VolumeScale > 0 && snap.Volume > 0 {
		liquidity = 1 - math.Exp(-snap.Volume/p.Profile.VolumeScale)
	}
	var direction float64
	switch {
	case cp > 0:
		direction = 1
	case cp < 0:
		direction = -1
	}

	return core.FeatureScores{
		Technical: 100 * snap.RangePosition(),
		Sentiment: neutral + neutral*math.Tanh(safeDiv(cp, p.Profile.SentimentScale)),
		Volume:    neutral + direction*neutral*liquidity,
		Momentum:  neutral + neutral*math.Tanh(safeDiv(cp, p.Profile.MomentumScale)),
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// PredictorFor returns the heuristic predictor of a family. Unknown families
// use DefaultProfile.
func PredictorFor(t core.ModelType) Predictor {
	profile, ok := profiles[t]
	if !ok {
		profile = DefaultProfile
	}
	return HeuristicPredictor{Profile: profile}
}

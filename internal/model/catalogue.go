package model

import (
	"github.com/google/uuid"
	"github.com/newthinker/vanguard/internal/core"
)

// family holds the seed values of one predictor family.
type family struct {
	name            string
	accuracy        float64
	bonus           float64
	trainingSize    int
	hyperparameters map[string]any
	performance     core.ModelPerformance
}

var families = map[core.ModelType]family{
	core.ModelLSTM: {
		name:         "LSTM Sequence Model",
		accuracy:     87,
		bonus:        2,
		trainingSize: 50000,
		hyperparameters: map[string]any{
			"layers": 3, "units": 128, "dropout": 0.2, "lookback": 60,
		},
		performance: core.ModelPerformance{WinRate: 68, AvgReturn: 1.8, SharpeRatio: 1.9, MaxDrawdown: 8.5, ProfitFactor: 2.1},
	},
	core.ModelRandomForest: {
		name:         "Random Forest Classifier",
		accuracy:     84,
		bonus:        1,
		trainingSize: 35000,
		hyperparameters: map[string]any{
			"n_estimators": 200, "max_depth": 12, "min_samples_split": 4,
		},
		performance: core.ModelPerformance{WinRate: 64, AvgReturn: 1.4, SharpeRatio: 1.6, MaxDrawdown: 9.2, ProfitFactor: 1.8},
	},
	core.ModelXGBoost: {
		name:         "XGBoost Gradient Booster",
		accuracy:     86,
		bonus:        2,
		trainingSize: 40000,
		hyperparameters: map[string]any{
			"learning_rate": 0.05, "max_depth": 8, "n_estimators": 300, "subsample": 0.8,
		},
		performance: core.ModelPerformance{WinRate: 66, AvgReturn: 1.6, SharpeRatio: 1.8, MaxDrawdown: 8.8, ProfitFactor: 2.0},
	},
	core.ModelSVM: {
		name:         "Support Vector Machine",
		accuracy:     81,
		bonus:        0,
		trainingSize: 25000,
		hyperparameters: map[string]any{
			"kernel": "rbf", "c": 1.0, "gamma": "scale",
		},
		performance: core.ModelPerformance{WinRate: 60, AvgReturn: 1.1, SharpeRatio: 1.3, MaxDrawdown: 10.5, ProfitFactor: 1.5},
	},
	core.ModelNeuralNetwork: {
		name:         "Feed-Forward Neural Network",
		accuracy:     85,
		bonus:        1,
		trainingSize: 45000,
		hyperparameters: map[string]any{
			"hidden_layers": 4, "activation": "relu", "learning_rate": 0.001,
		},
		performance: core.ModelPerformance{WinRate: 65, AvgReturn: 1.5, SharpeRatio: 1.7, MaxDrawdown: 9.0, ProfitFactor: 1.9},
	},
	core.ModelTransformer: {
		name:         "Transformer Attention Model",
		accuracy:     89,
		bonus:        3,
		trainingSize: 80000,
		hyperparameters: map[string]any{
			"heads": 8, "layers": 6, "d_model": 256, "context": 120,
		},
		performance: core.ModelPerformance{WinRate: 70, AvgReturn: 2.0, SharpeRatio: 2.1, MaxDrawdown: 7.5, ProfitFactor: 2.3},
	},
}

var modelNamespace = uuid.MustParse("5f0b8f7e-3c1a-4c55-9a2e-6d1f0e7b9c41")

// ModelID returns the stable identifier of the default model of a family.
func ModelID(t core.ModelType) string {
	return uuid.NewSHA1(modelNamespace, []byte(t)).String()
}

// BaselineAccuracy returns the accuracy prior of a family, or 0 if unknown.
func BaselineAccuracy(t core.ModelType) float64 {
	return families[t].accuracy
}

// TypeBonus is the accuracy bonus a family earns when estimating signal
// accuracy. Unknown families earn none.
func TypeBonus(t core.ModelType) float64 {
	return families[t].bonus
}

// Default returns the seed descriptor of a family.
func Default(t core.ModelType, active bool) (core.ModelDescriptor, bool) {
	f, ok := families[t]
	if !ok {
		return core.ModelDescriptor{}, false
	}

	status := core.StatusInactive
	if active {
		status = core.StatusActive
	}

	hp := make(map[string]any, len(f.hyperparameters))
	for k, v := range f.hyperparameters {
		hp[k] = v
	}

	return core.ModelDescriptor{
		ID:               ModelID(t),
		Name:             f.name,
		Type:             t,
		Status:           status,
		Accuracy:         f.accuracy,
		Precision:        f.accuracy - 1.5,
		Recall:           f.accuracy - 2.5,
		F1:               f.accuracy - 2,
		TrainingDataSize: f.trainingSize,
		Hyperparameters:  hp,
		Performance:      f.performance,
	}, true
}

// Defaults seeds one descriptor per known family in catalogue order; a family
// is active iff it is in enabled.
func Defaults(enabled []core.ModelType) []core.ModelDescriptor {
	on := make(map[core.ModelType]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}

	out := make([]core.ModelDescriptor, 0, len(families))
	for _, t := range core.ModelTypes() {
		d, _ := Default(t, on[t])
		out = append(out, d)
	}
	return out
}

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(enabled ...core.ModelType) *Registry {
	return NewRegistry(enabled, WithSeed(42), WithClock(func() time.Time { return fixedNow }))
}

func TestNewRegistry_SeedsEveryFamily(t *testing.T) {
	r := newTestRegistry(core.ModelLSTM, core.ModelTransformer)

	models := r.Snapshot()
	require.Len(t, models, len(core.ModelTypes()))

	for _, m := range models {
		assert.Equal(t, BaselineAccuracy(m.Type), m.Accuracy)
		assert.Equal(t, ModelID(m.Type), m.ID)
		assert.Equal(t, fixedNow, m.LastTrainedAt)
	}

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, core.ModelLSTM, active[0].Type)
	assert.Equal(t, core.ModelTransformer, active[1].Type)
}

func TestRegistry_Baselines(t *testing.T) {
	assert.Equal(t, 87.0, BaselineAccuracy(core.ModelLSTM))
	assert.Equal(t, 84.0, BaselineAccuracy(core.ModelRandomForest))
	assert.Equal(t, 86.0, BaselineAccuracy(core.ModelXGBoost))
	assert.Equal(t, 81.0, BaselineAccuracy(core.ModelSVM))
	assert.Equal(t, 85.0, BaselineAccuracy(core.ModelNeuralNetwork))
	assert.Equal(t, 89.0, BaselineAccuracy(core.ModelTransformer))
	assert.Zero(t, TypeBonus("prophet"))
}

func TestRegistry_SnapshotIsDeepCopy(t *testing.T) {
	r := newTestRegistry(core.ModelTypes()...)

	models := r.Snapshot()
	models[0].Accuracy = 1
	models[0].Hyperparameters["layers"] = 99

	fresh := r.Snapshot()
	assert.Equal(t, 87.0, fresh[0].Accuracy)
	assert.Equal(t, 3, fresh[0].Hyperparameters["layers"])
}

func TestRegistry_Get(t *testing.T) {
	r := newTestRegistry(core.ModelTypes()...)

	m, err := r.Get(ModelID(core.ModelSVM))
	require.NoError(t, err)
	assert.Equal(t, core.ModelSVM, m.Type)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, core.ErrModelNotFound))
}

func TestRegistry_Retrain(t *testing.T) {
	r := newTestRegistry(core.ModelTypes()...)
	before := r.Snapshot()

	later := fixedNow.Add(time.Hour)
	r.now = func() time.Time { return later }

	n := r.Retrain([]core.ModelType{core.ModelLSTM, core.ModelSVM})
	assert.Equal(t, 2, n)

	after := r.Snapshot()
	require.Len(t, after, len(before), "retrain never removes models")

	for i, m := range after {
		prev := before[i]
		switch m.Type {
		case core.ModelLSTM, core.ModelSVM:
			assert.Equal(t, core.StatusActive, m.Status)
			assert.Equal(t, later, m.LastTrainedAt)
			assert.GreaterOrEqual(t, m.Accuracy, prev.Accuracy-2)
			assert.LessOrEqual(t, m.Accuracy, prev.Accuracy+3)
			assert.LessOrEqual(t, m.Accuracy, 98.0)
			assert.GreaterOrEqual(t, m.Accuracy, 0.0)
		default:
			assert.Equal(t, core.StatusInactive, m.Status)
			assert.Equal(t, prev.Accuracy, m.Accuracy)
			assert.Equal(t, prev.LastTrainedAt, m.LastTrainedAt)
		}
	}
}

func TestRegistry_RetrainClamps(t *testing.T) {
	r := newTestRegistry(core.ModelTransformer)
	r.Restore([]core.ModelDescriptor{{ID: "hot", Type: core.ModelTransformer, Accuracy: 98, Status: core.StatusActive}})

	for i := 0; i < 50; i++ {
		r.Retrain([]core.ModelType{core.ModelTransformer})
		m, err := r.Get("hot")
		require.NoError(t, err)
		require.LessOrEqual(t, m.Accuracy, 98.0)
		require.GreaterOrEqual(t, m.Precision, 0.0)
	}
}

func TestRegistry_RetrainDeterministicWithSeed(t *testing.T) {
	a := newTestRegistry(core.ModelTypes()...)
	b := newTestRegistry(core.ModelTypes()...)

	a.Retrain(core.ModelTypes())
	b.Retrain(core.ModelTypes())

	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestRegistry_Restore(t *testing.T) {
	r := newTestRegistry(core.ModelTypes()...)

	r.Restore(nil)
	assert.Len(t, r.Snapshot(), 6, "empty restore is ignored")

	rfID := ModelID(core.ModelRandomForest)
	r.Restore([]core.ModelDescriptor{
		{ID: rfID, Type: core.ModelRandomForest, Accuracy: 85, Status: core.StatusInactive},
		{ID: "", Type: core.ModelSVM},
		{ID: "legacy", Type: "prophet", Accuracy: 70, Status: core.StatusInactive},
	})

	models := r.Snapshot()
	require.Len(t, models, 7, "seeded families are kept")
	assert.Equal(t, core.ModelLSTM, models[0].Type, "catalogue order is kept")

	rf, err := r.Get(rfID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, rf.Accuracy)
	assert.Equal(t, core.StatusInactive, rf.Status)

	assert.Equal(t, "legacy", models[6].ID)
	assert.Equal(t, core.ModelType("prophet"), models[6].Type, "unknown families are kept")
	assert.Len(t, r.Active(), 5)
}

func TestRegistry_RestoreDuplicateIDs(t *testing.T) {
	r := newTestRegistry(core.ModelTypes()...)

	r.Restore([]core.ModelDescriptor{
		{ID: "extra", Type: core.ModelSVM, Accuracy: 80, Status: core.StatusActive},
		{ID: "extra", Type: core.ModelSVM, Accuracy: 82, Status: core.StatusActive},
	})

	require.Len(t, r.Snapshot(), 7)
	m, err := r.Get("extra")
	require.NoError(t, err)
	assert.Equal(t, 82.0, m.Accuracy, "last duplicate wins")
}

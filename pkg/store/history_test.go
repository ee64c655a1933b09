package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcortz/meshlens/internal/models"
	"github.com/mcortz/meshlens/pkg/store"
)

func TestClassVector(t *testing.T) {
	vec := store.ClassVector([]models.Prediction{
		{ClassName: "chair", Probability: 92.4},
		{ClassName: "toilet", Probability: 4.0},
		{ClassName: "not_a_class", Probability: 1.0},
	})

	require.Len(t, vec, 10)
	assert.InDelta(t, 0.924, vec[2], 1e-6) // chair
	assert.InDelta(t, 0.04, vec[9], 1e-6)  // toilet
	assert.Zero(t, vec[0])
}

func TestClassVectorEmpty(t *testing.T) {
	vec := store.ClassVector(nil)
	require.Len(t, vec, 10)
	for _, p := range vec {
		assert.Zero(t, p)
	}
}

// TestHistoryRoundTrip needs a live PostgreSQL with pgvector.
func TestHistoryRoundTrip(t *testing.T) {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	h, err := store.NewWithConfig(store.HistoryConfig{
		ConnString: connString,
		TableName:  "test_classifications",
	})
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()
	res := &models.Result{
		PredictedClass: "chair",
		Confidence:     92.4,
		TopPredictions: []models.Prediction{
			{ClassName: "chair", Probability: 92.4},
			{ClassName: "sofa", Probability: 4.1},
		},
	}
	require.NoError(t, h.Save(ctx, "part.off", res))

	recs, err := h.Similar(ctx, store.ClassVector(res.TopPredictions), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "part.off", recs[0].FileName)
	assert.Equal(t, "chair", recs[0].PredictedClass)
	assert.Len(t, recs[0].TopPredictions, 2)
}

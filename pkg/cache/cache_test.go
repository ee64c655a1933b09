package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcortz/meshlens/internal/models"
	"github.com/mcortz/meshlens/pkg/cache"
)

func newCache(t *testing.T, mr *miniredis.Miniredis, ttl time.Duration) *cache.Cache {
	t.Helper()
	c, err := cache.NewWithConfig(cache.Config{Addr: mr.Addr(), TTL: ttl}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, time.Minute)

	res, err := c.Get(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSetThenGet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, time.Minute)
	ctx := context.Background()

	in := &models.Result{
		PredictedClass: "chair",
		Confidence:     92.4,
		TopPredictions: []models.Prediction{{ClassName: "chair", Probability: 92.4}},
	}
	require.NoError(t, c.Set(ctx, "deadbeef", in))

	out, err := c.Get(ctx, "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)
}

func TestEntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "deadbeef", &models.Result{PredictedClass: "bed"}))

	mr.FastForward(2 * time.Minute)

	res, err := c.Get(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, time.Minute)

	require.NoError(t, mr.Set("meshlens:result:deadbeef", "{not json"))

	res, err := c.Get(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestConnectFailure(t *testing.T) {
	_, err := cache.NewWithConfig(cache.Config{Addr: "127.0.0.1:1"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

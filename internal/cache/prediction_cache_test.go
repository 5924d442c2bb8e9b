package cache

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-priority-engine/internal/domain"
)

func newTestCache(t *testing.T) *PredictionCache {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	c, err := New(Config{MaxMemorySize: 8}, logger)
	require.NoError(t, err)
	return c
}

func sampleFeatures() domain.FeatureVector {
	return domain.FeatureVector{
		Age:         70,
		Severity:    8,
		Rural:       true,
		Chronic:     true,
		WaitingTime: 45,
	}
}

func TestPredictionCache_GetMiss(t *testing.T) {
	c := newTestCache(t)

	_, ok := c.Get(context.Background(), "model-1", sampleFeatures())
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().MemoryMisses)
}

func TestPredictionCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	result := domain.PredictionResult{PriorityScore: 85, Reason: "HIGH PRIORITY: High severity"}

	c.Set(ctx, "model-1", sampleFeatures(), result)

	got, ok := c.Get(ctx, "model-1", sampleFeatures())
	require.True(t, ok)
	assert.Equal(t, result, got)
	assert.Equal(t, int64(1), c.Stats().MemoryHits)
}

func TestPredictionCache_ModelIDIsolatesEntries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "model-1", sampleFeatures(), domain.PredictionResult{PriorityScore: 85})

	_, ok := c.Get(ctx, "model-2", sampleFeatures())
	assert.False(t, ok, "entry cached under another model must not be served")
}

func TestPredictionCache_KeyDistinguishesFeatures(t *testing.T) {
	a := sampleFeatures()
	b := sampleFeatures()
	b.Severity = 9

	assert.NotEqual(t, Key("model-1", a), Key("model-1", b))
	assert.Equal(t, Key("model-1", a), Key("model-1", sampleFeatures()))
}

func TestPredictionCache_Purge(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "model-1", sampleFeatures(), domain.PredictionResult{PriorityScore: 85})
	c.Purge(ctx)

	_, ok := c.Get(ctx, "model-1", sampleFeatures())
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Purges)
}

func TestPredictionCache_Eviction(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	c, err := New(Config{MaxMemorySize: 2}, logger)
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleFeatures()
	for i := 0; i < 3; i++ {
		fv := sampleFeatures()
		fv.Age = 30 + i
		c.Set(ctx, "model-1", fv, domain.PredictionResult{PriorityScore: 50 + i})
	}
	first.Age = 30

	_, ok := c.Get(ctx, "model-1", first)
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestPredictionCache_ResetStats(t *testing.T) {
	c := newTestCache(t)

	c.Get(context.Background(), "model-1", sampleFeatures())
	require.Equal(t, int64(1), c.Stats().MemoryMisses)

	c.ResetStats()
	assert.Equal(t, int64(0), c.Stats().MemoryMisses)
}

package stats

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage/storagetest"
	"github.com/anchor-indexer/internal/types"
)

func TestRangeZeroFill(t *testing.T) {
	for name, store := range storagetest.Backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agg := NewAggregator(store, logging.Discard())

			require.NoError(t, agg.Incr(ctx, "anchor", 18601))

			periods, err := agg.Range(ctx, "anchor", 18600, 18603)
			require.NoError(t, err)
			assert.Equal(t, []types.StatPeriod{
				{Period: "2020-12-04 00:00:00", Count: 0},
				{Period: "2020-12-05 00:00:00", Count: 1},
				{Period: "2020-12-06 00:00:00", Count: 0},
				{Period: "2020-12-07 00:00:00", Count: 0},
			}, periods)
		})
	}
}

func TestRangeCounts(t *testing.T) {
	store, _ := storagetest.NewRedisStore(t)
	ctx := context.Background()
	agg := NewAggregator(store, logging.Discard())

	for i := 0; i < 3; i++ {
		require.NoError(t, agg.Incr(ctx, "transfer", 18600))
	}
	require.NoError(t, agg.Incr(ctx, "anchor", 18600))

	periods, err := agg.Range(ctx, "transfer", 18600, 18600)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, int64(3), periods[0].Count)

	empty, err := agg.Range(ctx, "transfer", 18601, 18600)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRangeProperties(t *testing.T) {
	store := storagetest.NewLevelDBStore(t)
	agg := NewAggregator(store, logging.Discard())
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("one ascending period per day, zero without counter", prop.ForAll(
		func(from int64, span int64) bool {
			periods, err := agg.Range(ctx, "never-written", from, from+span)
			if err != nil || int64(len(periods)) != span+1 {
				return false
			}
			for i, p := range periods {
				if p.Count != 0 || p.Period != types.DayStart(from+int64(i)).Format("2006-01-02 15:04:05") {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 40000),
		gen.Int64Range(0, 60),
	))

	properties.TestingRun(t)
}

func TestFeeBurned(t *testing.T) {
	store, _ := storagetest.NewRedisStore(t)
	ctx := context.Background()
	agg := NewAggregator(store, logging.Discard())

	assert.Zero(t, agg.GetFeeBurned(ctx))

	require.NoError(t, agg.SetFeeBurned(ctx, 250000000))
	assert.Equal(t, int64(250000000), agg.GetFeeBurned(ctx))

	_, err := agg.GetFeeBurnFeatureHeight(ctx)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, agg.SetFeeBurnFeatureHeight(ctx, 1000000))
	height, err := agg.GetFeeBurnFeatureHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), height)
}

func TestFeeBurnAsymmetry(t *testing.T) {
	store, mr := storagetest.NewRedisStore(t)
	ctx := context.Background()
	agg := NewAggregator(store, logging.Discard())

	require.NoError(t, agg.SetFeeBurned(ctx, 42))
	require.NoError(t, agg.SetFeeBurnFeatureHeight(ctx, 7))

	mr.SetError("connection reset by peer")

	assert.Zero(t, agg.GetFeeBurned(ctx))

	_, err := agg.GetFeeBurnFeatureHeight(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsBackend(err))
}

func TestIncrPropagatesBackendError(t *testing.T) {
	store, faulty := storagetest.NewFaultyStore(t)
	faulty.FailOn("IncrValue", errors.New("disk full"))

	err := NewAggregator(store, logging.Discard()).Incr(context.Background(), "anchor", 1)
	assert.True(t, apperrors.IsBackend(err))
}

func TestLoadFeeBurned(t *testing.T) {
	store, faulty := storagetest.NewFaultyStore(t)
	ctx := context.Background()
	agg := NewAggregator(store, logging.Discard())

	burned, err := agg.LoadFeeBurned(ctx)
	require.NoError(t, err)
	assert.Zero(t, burned)

	require.NoError(t, agg.SetFeeBurned(ctx, 42))
	burned, err = agg.LoadFeeBurned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), burned)

	faulty.FailOnKey("GetValue", store.FeeBurnedKey(), errors.New("connection reset"))
	_, err = agg.LoadFeeBurned(ctx)
	assert.True(t, apperrors.IsBackend(err))
	assert.Zero(t, agg.GetFeeBurned(ctx))
}

func TestRangeRejectsWideWindows(t *testing.T) {
	store, faulty := storagetest.NewFaultyStore(t)
	ctx := context.Background()
	agg := NewAggregator(store, logging.Discard())

	tests := []struct {
		name     string
		from, to int64
	}{
		{"one past the limit", 0, MaxRangeDays},
		{"extreme bounds", math.MinInt64, math.MaxInt64},
		{"far future", 0, math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods, err := agg.Range(ctx, "anchor", tt.from, tt.to)
			assert.Nil(t, periods)
			assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
		})
	}
	assert.Zero(t, faulty.Calls("GetValues"))

	periods, err := agg.Range(ctx, "anchor", 0, MaxRangeDays-1)
	require.NoError(t, err)
	assert.Len(t, periods, MaxRangeDays)
}

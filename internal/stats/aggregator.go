// Package stats keeps the daily transaction counters, the fee-burn scalars and the
// processing height watermark.
package stats

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

const periodLayout = "2006-01-02 00:00:00"

// MaxRangeDays bounds the window of a single Range query
const MaxRangeDays = 3660

// Aggregator reads and writes the per-identifier daily counters
type Aggregator struct {
	store  *storage.Store
	logger *logging.Logger
}

// NewAggregator creates an aggregator on store
func NewAggregator(store *storage.Store, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("stats"),
	}
}

// Incr adds one to the counter of (identifier, day)
func (a *Aggregator) Incr(ctx context.Context, identifier string, day int64) error {
	_, err := a.store.IncrValue(ctx, a.store.StatsKey(identifier, day))
	return err
}

// Range returns one period per day of [fromDay, toDay] in ascending order; days
// without a counter report zero. Windows wider than MaxRangeDays are rejected.
func (a *Aggregator) Range(ctx context.Context, identifier string, fromDay, toDay int64) ([]types.StatPeriod, error) {
	if toDay < fromDay {
		return []types.StatPeriod{}, nil
	}

	// unsigned so that extreme bounds cannot overflow
	span := uint64(toDay) - uint64(fromDay)
	if span >= MaxRangeDays {
		return nil, apperrors.NewValidationError("range", fmt.Sprintf("at most %d days per query", MaxRangeDays))
	}

	length := int64(span) + 1
	keys := make([]string, length)
	for i := range keys {
		keys[i] = a.store.StatsKey(identifier, fromDay+int64(i))
	}

	values, err := a.store.GetValues(ctx, keys)
	if err != nil {
		return nil, err
	}

	periods := make([]types.StatPeriod, length)
	for i, raw := range values {
		day := fromDay + int64(i)
		periods[i] = types.StatPeriod{
			Period: types.DayStart(day).Format(periodLayout),
			Count:  parseCount(raw),
		}
	}
	return periods, nil
}

func parseCount(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SetFeeBurned overwrites the cumulative fee-burn counter
func (a *Aggregator) SetFeeBurned(ctx context.Context, value int64) error {
	return a.store.SetValue(ctx, a.store.FeeBurnedKey(), strconv.FormatInt(value, 10))
}

// GetFeeBurned returns the cumulative fee-burn counter. Read failures of any kind
// yield 0.
func (a *Aggregator) GetFeeBurned(ctx context.Context) int64 {
	raw, err := a.store.GetValue(ctx, a.store.FeeBurnedKey())
	if err != nil {
		if !apperrors.IsNotFound(err) {
			a.logger.WithError(err).Warn("Reading fee burned failed, using 0")
		}
		return 0
	}
	return parseCount(raw)
}

// LoadFeeBurned returns the cumulative fee-burn counter for an update. A missing
// counter is 0; any other read failure is returned.
func (a *Aggregator) LoadFeeBurned(ctx context.Context) (int64, error) {
	raw, err := a.store.GetValue(ctx, a.store.FeeBurnedKey())
	if apperrors.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	burned, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(a.store.FeeBurnedKey(), "not an integer")
	}
	return burned, nil
}

// SetFeeBurnFeatureHeight stores the height at which fee burning activates
func (a *Aggregator) SetFeeBurnFeatureHeight(ctx context.Context, height int64) error {
	return a.store.SetValue(ctx, a.store.FeeBurnHeightKey(), strconv.FormatInt(height, 10))
}

// GetFeeBurnFeatureHeight returns the activation height. Unlike GetFeeBurned, read
// failures (including a missing key) are returned to the caller.
func (a *Aggregator) GetFeeBurnFeatureHeight(ctx context.Context) (int64, error) {
	raw, err := a.store.GetValue(ctx, a.store.FeeBurnHeightKey())
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(a.store.FeeBurnHeightKey(), "not an integer")
	}
	return height, nil
}

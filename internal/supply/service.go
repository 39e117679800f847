// Package supply tracks the transaction fees destroyed once fee burning is active.
package supply

import (
	"context"
	"sync"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/stats"
)

// Service implements the fee-burn collaborator of the indexing pipeline
type Service struct {
	stats      *stats.Aggregator
	burnAmount int64
	logger     *logging.Logger

	// read-modify-write of the counter is serialized inside this process only
	mu sync.Mutex
}

// NewService burns burnAmount per indexed transaction after activation
func NewService(aggregator *stats.Aggregator, burnAmount int64, logger *logging.Logger) *Service {
	return &Service{
		stats:      aggregator,
		burnAmount: burnAmount,
		logger:     logging.OrGlobal(logger).WithComponent("supply"),
	}
}

// IncrTxFeeBurned adds the burn amount when blockHeight is at or past the feature
// activation height. A missing activation height means burning is not active yet.
func (s *Service) IncrTxFeeBurned(ctx context.Context, blockHeight int64) error {
	featureHeight, err := s.stats.GetFeeBurnFeatureHeight(ctx)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if blockHeight < featureHeight {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	burned, err := s.stats.LoadFeeBurned(ctx)
	if err != nil {
		return err
	}
	return s.stats.SetFeeBurned(ctx, burned+s.burnAmount)
}

// ActivateFeeBurn records the height fee burning starts at
func (s *Service) ActivateFeeBurn(ctx context.Context, height int64) error {
	s.logger.WithField("height", height).Info("Fee burn feature height set")
	return s.stats.SetFeeBurnFeatureHeight(ctx, height)
}

// TxFeeBurned returns the cumulative amount burned
func (s *Service) TxFeeBurned(ctx context.Context) int64 {
	return s.stats.GetFeeBurned(ctx)
}

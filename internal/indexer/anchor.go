package indexer

import (
	"context"
	"slices"

	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

// AnchorTypes are the transaction types that carry anchored hashes
var AnchorTypes = []int{15, 22}

// AnchorIndexer records, per anchored hash, the transaction that anchored it
type AnchorIndexer struct {
	store  *storage.Store
	logger *logging.Logger
}

// NewAnchorIndexer creates an anchor indexer on store
func NewAnchorIndexer(store *storage.Store, logger *logging.Logger) *AnchorIndexer {
	return &AnchorIndexer{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("anchor"),
	}
}

// Index saves an anchor record for every hash of an anchor transaction. It
// returns false for other transaction types. A later anchor of the same hash
// overwrites the earlier record.
func (a *AnchorIndexer) Index(ctx context.Context, event *types.IndexEvent) (bool, error) {
	tx := event.Transaction
	if tx == nil || !slices.Contains(AnchorTypes, tx.Type) {
		return false, nil
	}

	record := types.AnchorRecord{ID: tx.ID, BlockHeight: event.BlockHeight, Position: event.Position}
	for _, hash := range tx.Anchors {
		if hash == "" {
			continue
		}
		if err := a.store.SaveAnchor(ctx, hash, record); err != nil {
			return false, err
		}
		a.logger.Debugf("anchor %s: %s", hash, tx.ID)
	}
	return true, nil
}

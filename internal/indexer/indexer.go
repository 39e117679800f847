// Package indexer projects classified transactions into statistics and
// per-address reverse indexes.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

// StatsIncrementer bumps the daily counter of an identifier
type StatsIncrementer interface {
	Incr(ctx context.Context, identifier string, day int64) error
}

// FeeBurner accounts the fee burned by a transaction in a block
type FeeBurner interface {
	IncrTxFeeBurned(ctx context.Context, blockHeight int64) error
}

// Indexer is the indexing pipeline
type Indexer struct {
	registry *Registry
	store    *storage.Store
	stats    StatsIncrementer
	supply   FeeBurner
	logger   *logging.Logger
}

// Config holds the collaborators of the pipeline
type Config struct {
	Registry *Registry
	Store    *storage.Store
	Stats    StatsIncrementer
	Supply   FeeBurner
	Logger   *logging.Logger
}

// New creates the pipeline
func New(cfg *Config) (*Indexer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Stats == nil {
		return nil, fmt.Errorf("stats aggregator is required")
	}
	if cfg.Supply == nil {
		return nil, fmt.Errorf("fee burner is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Indexer{
		registry: registry,
		store:    cfg.Store,
		stats:    cfg.Stats,
		supply:   cfg.Supply,
		logger:   logging.OrGlobal(cfg.Logger).WithComponent("indexer"),
	}, nil
}

// Registry returns the identifier registry in use
func (ix *Indexer) Registry() *Registry {
	return ix.registry
}

// Index fans out every write for the identifiers matching tx and waits for all of
// them. It returns false without writing when no identifier matches. The first
// failing write is returned; writes that already completed stay in place.
func (ix *Indexer) Index(ctx context.Context, event *types.IndexEvent) (bool, error) {
	tx := event.Transaction
	if tx == nil {
		return false, fmt.Errorf("index event without transaction")
	}

	identifiers := ix.registry.IdentifiersByType(tx.Type)
	if len(identifiers) == 0 {
		return false, nil
	}

	ix.logger.Debugf("transaction %s: %s", tx.ID, strings.Join(identifiers, " "))

	g, gctx := errgroup.WithContext(ctx)
	day := tx.Day()

	for _, identifier := range identifiers {
		identifier := identifier // per-iteration copy for go < 1.22 loop semantics
		g.Go(func() error {
			return ix.supply.IncrTxFeeBurned(gctx, event.BlockHeight)
		})
		g.Go(func() error {
			return ix.stats.Incr(gctx, identifier, day)
		})

		if tx.Sender != "" {
			ix.indexAddress(gctx, g, identifier, tx.Sender, tx)
		}
		if tx.Recipient != "" {
			ix.indexAddress(gctx, g, identifier, tx.Recipient, tx)
		}
		for _, transfer := range tx.Transfers {
			ix.indexAddress(gctx, g, identifier, transfer.Recipient, tx)
		}
	}

	if err := g.Wait(); err != nil {
		ix.logger.WithField("tx", tx.ID).WithError(err).Error("Failed to index transaction")
		return false, err
	}
	return true, nil
}

func (ix *Indexer) indexAddress(ctx context.Context, g *errgroup.Group, identifier string, address string, tx *types.Transaction) {
	g.Go(func() error {
		return ix.store.IndexTx(ctx, identifier, address, tx.ID, tx.Timestamp)
	})
}

// CountTx returns how many transactions of identifier touch address
func (ix *Indexer) CountTx(ctx context.Context, identifier string, address string) (int64, error) {
	return ix.store.CountTx(ctx, identifier, address)
}

// GetTx pages through the transactions of identifier touching address
func (ix *Indexer) GetTx(ctx context.Context, identifier string, address string, limit int, offset int) ([]string, error) {
	return ix.store.GetTx(ctx, identifier, address, limit, offset)
}

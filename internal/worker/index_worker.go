// Package worker drives the indexing pipeline from a stream of index events.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/types"
)

// Indexer is the pipeline entry point
type Indexer interface {
	Index(ctx context.Context, event *types.IndexEvent) (bool, error)
}

// HeightCursor persists the last fully indexed block height
type HeightCursor interface {
	Get(ctx context.Context) (int64, bool)
	Save(ctx context.Context, height int64) error
	Clear(ctx context.Context) error
}

// IndexWorker drains events into the indexer in order. Events must arrive grouped
// by block with non-decreasing heights; a block counts as done once an event of a
// higher block arrives or the stream ends, and the cursor is then moved to it.
type IndexWorker struct {
	indexer       Indexer
	cursor        HeightCursor
	limiter       *rate.Limiter
	startingBlock int64
	restartSync   bool
	logger        *logging.Logger

	processed atomic.Int64
	matched   atomic.Int64
	skipped   atomic.Int64

	mu           sync.Mutex
	resumeHeight int64
	blockHeight  int64
}

// IndexWorkerConfig holds configuration for an index worker
type IndexWorkerConfig struct {
	Indexer       Indexer
	Cursor        HeightCursor
	StartingBlock int64   // first block to index when no cursor is stored
	RestartSync   bool    // clear the stored cursor before starting
	MaxRate       float64 // events per second, 0 disables throttling
	Logger        *logging.Logger
}

// Stats is a snapshot of worker counters
type Stats struct {
	Processed    int64 `json:"processed"`
	Matched      int64 `json:"matched"`
	Skipped      int64 `json:"skipped"`
	ResumeHeight int64 `json:"resumeHeight"`
	BlockHeight  int64 `json:"blockHeight"`
}

// NewIndexWorker creates a new index worker
func NewIndexWorker(cfg *IndexWorkerConfig) (*IndexWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer cannot be nil")
	}
	if cfg.Cursor == nil {
		return nil, fmt.Errorf("cursor cannot be nil")
	}

	var limiter *rate.Limiter
	if cfg.MaxRate > 0 {
		burst := int(cfg.MaxRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), burst)
	}

	startingBlock := cfg.StartingBlock
	if startingBlock < 1 {
		startingBlock = 1
	}

	return &IndexWorker{
		indexer:       cfg.Indexer,
		cursor:        cfg.Cursor,
		limiter:       limiter,
		startingBlock: startingBlock,
		restartSync:   cfg.RestartSync,
		logger:        logging.OrGlobal(cfg.Logger).WithComponent("index-worker"),
	}, nil
}

// ResumeHeight returns the first block that still needs indexing: one past the
// stored cursor, or the starting block. With restart sync the cursor is cleared first.
func (w *IndexWorker) ResumeHeight(ctx context.Context) (int64, error) {
	if w.restartSync {
		if err := w.cursor.Clear(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear processing height: %w", err)
		}
		w.logger.Info("Processing height cleared, restarting sync")
	}

	height := w.startingBlock
	if stored, ok := w.cursor.Get(ctx); ok && stored+1 > height {
		height = stored + 1
	}

	w.mu.Lock()
	w.resumeHeight = height
	w.mu.Unlock()
	return height, nil
}

// Run indexes events until the channel closes or ctx is done. Events below the
// resume height are skipped. An index failure stops the worker without moving
// the cursor past the failing block.
func (w *IndexWorker) Run(ctx context.Context, events <-chan *types.IndexEvent) error {
	resume, err := w.ResumeHeight(ctx)
	if err != nil {
		return err
	}
	w.logger.WithField("height", resume).Info("Index worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				err := w.completeBlock(ctx)
				w.logger.WithFields(map[string]interface{}{
					"processed": w.processed.Load(),
					"matched":   w.matched.Load(),
				}).Info("Event stream drained")
				return err
			}
			if err := w.handle(ctx, event, resume); err != nil {
				return err
			}
		}
	}
}

func (w *IndexWorker) handle(ctx context.Context, event *types.IndexEvent, resume int64) error {
	if event == nil || event.Transaction == nil {
		return nil
	}
	if event.BlockHeight < resume {
		w.skipped.Add(1)
		return nil
	}

	w.mu.Lock()
	current := w.blockHeight
	w.mu.Unlock()

	if event.BlockHeight > current && current > 0 {
		if err := w.completeBlock(ctx); err != nil {
			return err
		}
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	matched, err := w.indexer.Index(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to index transaction %s at height %d: %w", event.Transaction.ID, event.BlockHeight, err)
	}

	w.processed.Add(1)
	if matched {
		w.matched.Add(1)
	}

	w.mu.Lock()
	w.blockHeight = event.BlockHeight
	w.mu.Unlock()
	return nil
}

// completeBlock moves the cursor to the block currently being indexed
func (w *IndexWorker) completeBlock(ctx context.Context) error {
	w.mu.Lock()
	height := w.blockHeight
	w.mu.Unlock()

	if height == 0 {
		return nil
	}
	if err := w.cursor.Save(ctx, height); err != nil {
		return fmt.Errorf("failed to save processing height %d: %w", height, err)
	}
	w.logger.Debugf("Processing height saved: %d", height)
	return nil
}

// Stats returns the current counters
func (w *IndexWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Stats{
		Processed:    w.processed.Load(),
		Matched:      w.matched.Load(),
		Skipped:      w.skipped.Load(),
		ResumeHeight: w.resumeHeight,
		BlockHeight:  w.blockHeight,
	}
}

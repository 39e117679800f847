package stats

import (
	"context"
	"strconv"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
)

// Cursor is the last block height that was fully indexed
type Cursor struct {
	store  *storage.Store
	logger *logging.Logger
}

// NewCursor creates a cursor on store
func NewCursor(store *storage.Store, logger *logging.Logger) *Cursor {
	return &Cursor{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("cursor"),
	}
}

// Get returns the stored height. ok is false when no height was saved or the
// backend could not be read.
func (c *Cursor) Get(ctx context.Context) (height int64, ok bool) {
	raw, err := c.store.GetValue(ctx, c.store.ProcessingHeightKey())
	if err != nil {
		if !apperrors.IsNotFound(err) {
			c.logger.WithError(err).Warn("Reading processing height failed")
		}
		return 0, false
	}

	height, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.logger.WithField("value", raw).Warn("Ignoring malformed processing height")
		return 0, false
	}
	return height, true
}

// Save stores height in canonical decimal form
func (c *Cursor) Save(ctx context.Context, height int64) error {
	return c.store.SetValue(ctx, c.store.ProcessingHeightKey(), strconv.FormatInt(height, 10))
}

// Clear forgets the stored height
func (c *Cursor) Clear(ctx context.Context) error {
	return c.store.DelValue(ctx, c.store.ProcessingHeightKey())
}

// Package association maintains the parent/child graph between addresses.
package association

import (
	"context"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

// Transaction types that edit the graph
const (
	InvokeType = 16
	RevokeType = 17
)

// Graph stores every edge twice: in the parent's children set and in the child's
// parents set.
type Graph struct {
	store  *storage.Store
	logger *logging.Logger
}

// NewGraph creates a graph on store
func NewGraph(store *storage.Store, logger *logging.Logger) *Graph {
	return &Graph{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("association"),
	}
}

func validateEdge(parent, child string) error {
	if parent == "" {
		return apperrors.NewValidationError("parent", "address is empty")
	}
	if child == "" {
		return apperrors.NewValidationError("child", "address is empty")
	}
	return nil
}

// Add records the edge parent -> child
func (g *Graph) Add(ctx context.Context, parent, child string) error {
	if err := validateEdge(parent, child); err != nil {
		return err
	}
	if err := g.store.SAdd(ctx, g.store.ChildrenKey(parent), child); err != nil {
		return err
	}
	if err := g.store.SAdd(ctx, g.store.ParentsKey(child), parent); err != nil {
		return err
	}

	g.logger.Debugf("Add assoc for %s child %s", parent, child)
	return nil
}

// Remove deletes the edge parent -> child and then every edge below child.
// Edges into descendants from outside the removed subtree are kept.
//
// A failure stops the cascade where it is; already removed edges stay removed.
func (g *Graph) Remove(ctx context.Context, parent, child string) error {
	if err := validateEdge(parent, child); err != nil {
		return err
	}
	if err := g.unlink(ctx, parent, child); err != nil {
		return err
	}
	if err := g.cascade(ctx, child); err != nil {
		return err
	}

	g.logger.Debugf("Removed assoc for %s child %s", parent, child)
	return nil
}

func (g *Graph) unlink(ctx context.Context, parent, child string) error {
	if err := g.store.SRem(ctx, g.store.ChildrenKey(parent), child); err != nil {
		return err
	}
	return g.store.SRem(ctx, g.store.ParentsKey(child), parent)
}

// cascade walks the subtree of root breadth first with an explicit queue. Each
// address is expanded once, so diamonds and cycles terminate; steps run
// sequentially because each one reads the state the previous step left.
func (g *Graph) cascade(ctx context.Context, root string) error {
	queue := []string{root}
	visited := map[string]struct{}{}

	for len(queue) > 0 {
		address := queue[0]
		queue = queue[1:]

		if _, seen := visited[address]; seen {
			continue
		}
		visited[address] = struct{}{}

		children, err := g.store.GetArray(ctx, g.store.ChildrenKey(address))
		if err != nil {
			return err
		}

		for _, child := range children {
			if err := g.unlink(ctx, address, child); err != nil {
				return err
			}
			g.logger.Debugf("Remove assoc for %s child %s", address, child)
			queue = append(queue, child)
		}
	}
	return nil
}

// Get returns the children and parents of address in insertion order. A set that
// cannot be read is reported empty.
func (g *Graph) Get(ctx context.Context, address string) *types.Associations {
	return &types.Associations{
		Children: g.members(ctx, g.store.ChildrenKey(address)),
		Parents:  g.members(ctx, g.store.ParentsKey(address)),
	}
}

func (g *Graph) members(ctx context.Context, key string) []string {
	members, err := g.store.GetArray(ctx, key)
	if err != nil {
		g.logger.WithField("key", key).WithError(err).Warn("Reading associations failed")
		return []string{}
	}
	return members
}

// AddFromTransaction records an association issued by tx (sender -> party).
// Transactions without sender or party are skipped.
func (g *Graph) AddFromTransaction(ctx context.Context, tx *types.Transaction) error {
	if !g.complete(tx) {
		return nil
	}
	return g.Add(ctx, tx.Sender, tx.Counterparty())
}

// RemoveFromTransaction revokes the association issued by tx
func (g *Graph) RemoveFromTransaction(ctx context.Context, tx *types.Transaction) error {
	if !g.complete(tx) {
		return nil
	}
	return g.Remove(ctx, tx.Sender, tx.Counterparty())
}

func (g *Graph) complete(tx *types.Transaction) bool {
	if tx.Sender != "" && tx.Counterparty() != "" {
		return true
	}
	g.logger.WithField("tx", tx.ID).Warn("Association transaction without sender or party, skipped")
	return false
}

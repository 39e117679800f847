package projection

import (
	"context"
	"sort"

	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

// VerificationMethods stores, per sender address, one method per recipient
type VerificationMethods struct {
	store  *storage.Store
	logger *logging.Logger
}

// NewVerificationMethods creates the store
func NewVerificationMethods(store *storage.Store, logger *logging.Logger) *VerificationMethods {
	return &VerificationMethods{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("verification"),
	}
}

// Get returns the live (not revoked) methods of address ordered by creation time
func (v *VerificationMethods) Get(ctx context.Context, address string) []types.VerificationMethod {
	stored := loadMap[types.VerificationMethod](ctx, v.store, v.store.VerificationKey(address), v.logger)

	methods := make([]types.VerificationMethod, 0, len(stored))
	for _, m := range stored {
		if m.IsRevoked() {
			continue
		}
		methods = append(methods, types.VerificationMethod{
			Relationships: m.Relationships,
			Sender:        m.Sender,
			Recipient:     m.Recipient,
			CreatedAt:     m.CreatedAt,
		})
	}

	sort.Slice(methods, func(i, j int) bool {
		if methods[i].CreatedAt != methods[j].CreatedAt {
			return methods[i].CreatedAt < methods[j].CreatedAt
		}
		return methods[i].Recipient < methods[j].Recipient
	})
	return methods
}

// Save stores method under its recipient, replacing any previous method for it.
// Revoked methods are saved too; Get hides them.
func (v *VerificationMethods) Save(ctx context.Context, address string, method types.VerificationMethod) error {
	if err := mergeEntry(ctx, v.store, v.store.VerificationKey(address), method.Recipient, method, v.logger); err != nil {
		return err
	}

	v.logger.WithFields(map[string]interface{}{
		"address":   address,
		"recipient": method.Recipient,
		"revoked":   method.IsRevoked(),
	}).Debug("Saved verification method")
	return nil
}

// Revoke marks the method of recipient as revoked at revokedAt
func (v *VerificationMethods) Revoke(ctx context.Context, address string, recipient string, revokedAt int64) error {
	stored := loadMap[types.VerificationMethod](ctx, v.store, v.store.VerificationKey(address), v.logger)

	method, ok := stored[recipient]
	if !ok {
		method = types.VerificationMethod{Sender: address, Recipient: recipient}
	}
	method.RevokedAt = &revokedAt

	stored[recipient] = method
	return v.store.SetObject(ctx, v.store.VerificationKey(address), stored)
}

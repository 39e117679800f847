package projection

import (
	"context"

	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

// TrustRoles stores, per party address, the roles issued to it keyed by role name
type TrustRoles struct {
	store  *storage.Store
	logger *logging.Logger
}

func NewTrustRoles(store *storage.Store, logger *logging.Logger) *TrustRoles {
	return &TrustRoles{
		store:  store,
		logger: logging.OrGlobal(logger).WithComponent("trust-network"),
	}
}

// GetRolesFor returns role name -> issuer of every role held by address
func (r *TrustRoles) GetRolesFor(ctx context.Context, address string) map[string]types.RoleAssociation {
	return loadMap[types.RoleAssociation](ctx, r.store, r.store.RolesKey(address), r.logger)
}

// SaveRoleAssociation records that sender issued role to party
func (r *TrustRoles) SaveRoleAssociation(ctx context.Context, party string, sender string, role types.Role) error {
	assoc := types.RoleAssociation{Sender: sender, Type: role.Type}
	return mergeEntry(ctx, r.store, r.store.RolesKey(party), role.Role, assoc, r.logger)
}

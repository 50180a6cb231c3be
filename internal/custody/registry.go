package custody

import (
	"context"

	"github.com/equigive/equigive/internal/ledger"
)

// Registry is the one-farm-one-vault directory. At most one custody record
// ever exists per farm id, including under concurrent creation races.
type Registry interface {
	// CreateVault onboards a farm: it creates a custody record bound to
	// recipient and returns it. caller must hold the Operator grant.
	//
	// If the farm already has a vault, the existing vault is returned
	// together with ErrAlreadyExists — the call is idempotent, a second
	// create never replaces the first-registered recipient. Callers that
	// only care about "a vault exists" can treat ErrAlreadyExists as
	// success.
	CreateVault(ctx context.Context, caller ledger.Address, farmID string, recipient ledger.Address) (*Vault, error)

	// VaultOf returns the farm's custody record, or ErrNotFound if the
	// farm has not been onboarded.
	VaultOf(ctx context.Context, farmID string) (*Vault, error)
}

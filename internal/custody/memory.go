package custody

import (
	"context"
	"sync"
	"time"

	"github.com/equigive/equigive/internal/ledger"
	"github.com/google/uuid"
)

// MemoryRegistry is an in-memory, thread-safe Registry implementation.
type MemoryRegistry struct {
	mu     sync.RWMutex
	ledger ledger.Ledger
	roles  ledger.Roles
	vaults map[string]*Vault // farm id → vault
}

// NewMemory creates a MemoryRegistry issuing vaults against lg, with
// operator creation rights taken from the same sealed role grants the
// ledger uses.
func NewMemory(lg ledger.Ledger, roles ledger.Roles) *MemoryRegistry {
	return &MemoryRegistry{
		ledger: lg,
		roles:  roles,
		vaults: make(map[string]*Vault),
	}
}

// CreateVault implements Registry. The existence check and the insert
// happen under one lock, so a concurrent create race for the same new farm
// id yields exactly one vault.
func (r *MemoryRegistry) CreateVault(_ context.Context, caller ledger.Address, farmID string, recipient ledger.Address) (*Vault, error) {
	if !r.roles.Operator(caller) {
		return nil, ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.vaults[farmID]; ok {
		return v, ErrAlreadyExists
	}

	v := &Vault{
		FarmID:    farmID,
		Account:   ledger.Address(uuid.New().String()),
		Recipient: recipient,
		CreatedAt: time.Now().UTC(),
		ledger:    r.ledger,
	}
	r.vaults[farmID] = v
	return v, nil
}

// VaultOf implements Registry.
func (r *MemoryRegistry) VaultOf(_ context.Context, farmID string) (*Vault, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vaults[farmID]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

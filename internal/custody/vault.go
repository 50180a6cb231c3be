package custody

import (
	"context"
	"math/big"
	"time"

	"github.com/equigive/equigive/internal/ledger"
)

// Vault is a farm's custody record: a thin policy wrapper around one
// dedicated ledger account. FarmID, Account, and Recipient are fixed at
// creation and never change; only the account's balance fluctuates.
//
// The vault's identity and its ledger account are the same address, so the
// vault moves its own balance as itself (caller == from in ledger terms).
type Vault struct {
	FarmID    string         `json:"farm_id"`
	Account   ledger.Address `json:"account"`
	Recipient ledger.Address `json:"recipient"`
	CreatedAt time.Time      `json:"created_at"`

	ledger ledger.Ledger
}

// Release moves amount units from the vault account to the vault's fixed
// recipient. Only the recipient may trigger it; there is no release to an
// arbitrary address. Fails with ErrUnauthorized for any other caller and
// with the ledger's ErrInsufficientBalance when the vault holds less than
// amount, leaving state unchanged.
func (v *Vault) Release(ctx context.Context, caller ledger.Address, amount *big.Int) error {
	if caller != v.Recipient {
		return ErrUnauthorized
	}
	return v.ledger.Transfer(ctx, v.Account, v.Account, v.Recipient, amount, ledger.KindReleased)
}

// Balance returns the vault account's current escrow balance.
func (v *Vault) Balance(ctx context.Context) (*big.Int, error) {
	return v.ledger.BalanceOf(ctx, v.Account)
}

// Package ledger implements the EquiGive value-custody ledger: a single
// fungible unit type, a global account → balance mapping, and an append-only
// hash-chained event log written atomically with every balance mutation.
//
// Units enter the system when a recorded donation is minted into a vault
// account, move between accounts via transfer, and leave permanently via
// burn once spending has been verified. The ledger is the single source of
// truth for balances; custody policy (which farm owns which vault, who may
// release) lives in internal/custody on top of these primitives.
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and single-process deployments.
//   - PostgresLedger: durable, for production use.
package ledger

import (
	"context"
	"math/big"
)

// Address is an opaque account key. Accounts are created implicitly the
// first time an address is minted to or referenced; there is no explicit
// account-creation operation.
type Address string

// Ledger is the custody core's balance authority.
//
// All mutating operations are atomic and serialized with respect to each
// other: no partial application is ever observable, and a failed operation
// leaves balances, supply, and the event log untouched. None of them retry
// internally — retry policy belongs to the caller.
type Ledger interface {
	// Mint creates amount new units in the to account and grows total
	// supply by the same amount. caller must hold the Minter grant.
	// ref is an opaque donor reference stored only in the Minted event
	// payload for audit purposes; it never enters the balance model.
	//
	// Fails with ErrUnauthorized, ErrInvalidAmount (zero or negative),
	// or ErrOverflow (supply would exceed MaxUnits).
	Mint(ctx context.Context, caller, to Address, amount *big.Int, ref string) error

	// Burn permanently removes amount units from the from account and
	// shrinks total supply. caller must hold the Burner grant.
	//
	// Fails with ErrUnauthorized, ErrInvalidAmount, or
	// ErrInsufficientBalance.
	Burn(ctx context.Context, caller, from Address, amount *big.Int, ref string) error

	// Transfer moves amount units from one account to another. Authorized
	// when caller == from, or when caller has been approved as from's
	// delegate. kind labels the movement in the event log and must be
	// KindTransferred or KindReleased.
	//
	// Fails with ErrUnauthorized, ErrInvalidAmount, or
	// ErrInsufficientBalance.
	Transfer(ctx context.Context, caller, from, to Address, amount *big.Int, kind EventKind) error

	// Approve registers delegate as authorized to transfer out of the
	// owner account. caller must hold the Operator grant. This is wiring
	// done once per custody record at farm onboarding, not a general
	// allowance mechanism.
	Approve(ctx context.Context, caller, owner, delegate Address) error

	// BalanceOf returns the balance of an address. Unknown addresses have
	// a zero balance; the read itself never fails on a healthy backend.
	BalanceOf(ctx context.Context, addr Address) (*big.Int, error)

	// TotalSupply returns the number of units currently in existence.
	// Invariant: TotalSupply == Σ BalanceOf(a) over all accounts.
	TotalSupply(ctx context.Context) (*big.Int, error)

	// Event returns the event at the given sequence number.
	Event(ctx context.Context, seq int) (*Event, error)

	// Events returns up to limit events with Seq > afterSeq, in order.
	Events(ctx context.Context, afterSeq, limit int) ([]*Event, error)

	// EventCount returns the total number of events, genesis included.
	EventCount(ctx context.Context) (int, error)

	// VerifyEvents walks the whole event chain and checks hash
	// consistency. Returns nil if the chain is intact.
	VerifyEvents(ctx context.Context) error

	// Root returns the hash of the most recent event (the chain tip).
	Root(ctx context.Context) (string, error)
}

// MaxUnits is the largest representable total supply: 2^256 − 1.
// A mint that would push supply past this value fails with ErrOverflow.
var MaxUnits = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

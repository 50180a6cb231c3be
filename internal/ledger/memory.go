package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation. It is
// primarily useful for testing and for single-process deployments that do
// not require durable persistence across restarts.
//
// A single mutex serializes every mutation, which trivially satisfies the
// atomicity contract: a mint, burn, or transfer and its event append happen
// inside one critical section.
type MemoryLedger struct {
	mu        sync.RWMutex
	roles     Roles
	balances  map[Address]*big.Int
	delegates map[Address]Address // owner → approved delegate
	supply    *big.Int
	events    []*Event
}

// NewMemory creates a MemoryLedger with the given sealed role grants,
// initialized with the canonical genesis event at seq 0.
func NewMemory(roles Roles) *MemoryLedger {
	return &MemoryLedger{
		roles:     roles,
		balances:  make(map[Address]*big.Int),
		delegates: make(map[Address]Address),
		supply:    new(big.Int),
		events:    []*Event{genesisEvent()},
	}
}

// Mint implements Ledger.
func (l *MemoryLedger) Mint(_ context.Context, caller, to Address, amount *big.Int, ref string) error {
	if !l.roles.Minter(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := new(big.Int).Add(l.supply, amount)
	if next.Cmp(MaxUnits) > 0 {
		return ErrOverflow
	}
	l.supply = next
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	l.appendEvent(KindMinted, "", to, amount, ref)
	return nil
}

// Burn implements Ledger.
func (l *MemoryLedger) Burn(_ context.Context, caller, from Address, amount *big.Int, ref string) error {
	if !l.roles.Burner(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.supply = new(big.Int).Sub(l.supply, amount)
	l.appendEvent(KindBurned, from, "", amount, ref)
	return nil
}

// Transfer implements Ledger.
func (l *MemoryLedger) Transfer(_ context.Context, caller, from, to Address, amount *big.Int, kind EventKind) error {
	if kind != KindTransferred && kind != KindReleased {
		return fmt.Errorf("unsupported transfer kind %q", kind)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != from && l.delegates[from] != caller {
		return ErrUnauthorized
	}
	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	l.appendEvent(kind, from, to, amount, "")
	return nil
}

// Approve implements Ledger.
func (l *MemoryLedger) Approve(_ context.Context, caller, owner, delegate Address) error {
	if !l.roles.Operator(caller) {
		return ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegates[owner] = delegate
	return nil
}

// BalanceOf implements Ledger. Unknown addresses have a zero balance.
func (l *MemoryLedger) BalanceOf(_ context.Context, addr Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(addr)), nil
}

// TotalSupply implements Ledger.
func (l *MemoryLedger) TotalSupply(_ context.Context) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply), nil
}

// Event implements Ledger.
func (l *MemoryLedger) Event(_ context.Context, seq int) (*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq < 0 || seq >= len(l.events) {
		return nil, ErrNotFound
	}
	return l.events[seq], nil
}

// Events implements Ledger.
func (l *MemoryLedger) Events(_ context.Context, afterSeq, limit int) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := afterSeq + 1
	if start < 0 {
		start = 0
	}
	if start >= len(l.events) {
		return nil, nil
	}
	end := len(l.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]*Event, end-start)
	copy(out, l.events[start:end])
	return out, nil
}

// EventCount implements Ledger.
func (l *MemoryLedger) EventCount(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events), nil
}

// VerifyEvents implements Ledger.
func (l *MemoryLedger) VerifyEvents(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyChain(l.events)
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.events[len(l.events)-1].Hash, nil
}

// balance returns the stored balance for addr, zero if absent.
// Caller must hold at least a read lock.
func (l *MemoryLedger) balance(addr Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

// appendEvent chains a new event onto the log. Caller must hold the write
// lock; the append is part of the same critical section as the mutation.
func (l *MemoryLedger) appendEvent(kind EventKind, from, to Address, amount *big.Int, ref string) {
	prev := l.events[len(l.events)-1]
	e := &Event{
		Seq:       len(l.events),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Ref:       ref,
		PrevHash:  prev.Hash,
	}
	e.Hash = hashEvent(e)
	l.events = append(l.events, e)
}

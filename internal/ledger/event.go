package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// GenesisHash is the canonical well-known hash of the genesis event.
// It anchors the chain; every subsequent event hash chains from this
// constant rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// EventKind labels a balance movement in the audit log.
type EventKind string

// Event kinds. KindReleased is a transfer initiated by a custody record's
// release path; it is distinguished in the log so audit consumers can tell
// escrow draw-downs apart from ordinary transfers.
const (
	KindGenesis     EventKind = "genesis"
	KindMinted      EventKind = "minted"
	KindTransferred EventKind = "transferred"
	KindReleased    EventKind = "released"
	KindBurned      EventKind = "burned"
)

// Event is a single audit record in the ledger's append-only log. Events
// are written inside the same critical section (or transaction) as the
// balance mutation they describe, so the log and the balances can never
// desynchronize.
type Event struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
	From      Address   `json:"from,omitempty"` // empty for mints
	To        Address   `json:"to,omitempty"`   // empty for burns
	Amount    *big.Int  `json:"amount"`
	Ref       string    `json:"ref,omitempty"` // donor/redemption reference, audit only
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// hashEvent computes a deterministic SHA-256 hash over an event's fields.
// Must never be called on the genesis event (seq 0).
func hashEvent(e *Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s|%s",
		e.Seq, e.Timestamp.Format(time.RFC3339Nano),
		e.Kind, e.From, e.To, e.Amount.String(), e.Ref, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// genesisEvent returns the canonical chain anchor.
func genesisEvent() *Event {
	return &Event{
		Seq:       0,
		Timestamp: time.Now().UTC(),
		Kind:      KindGenesis,
		Amount:    new(big.Int),
		PrevHash:  GenesisHash,
		Hash:      GenesisHash, // well-known constant, not computed
	}
}

// verifyChain checks hash consistency over an ordered slice of events.
// Shared by both ledger implementations.
func verifyChain(events []*Event) error {
	for i, curr := range events {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis event has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		prev := events[i-1]
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("event chain broken at seq %d", curr.Seq)
		}
		if curr.Hash != hashEvent(curr) {
			return fmt.Errorf("event %d has invalid hash", curr.Seq)
		}
	}
	return nil
}

// Package custody implements per-farm escrow on top of the ledger.
//
// Each onboarded farm gets exactly one custody record — a Vault — which owns
// a dedicated ledger account and a fixed recipient address (the farmer).
// Donations are minted into the vault account; the only write path out of it
// is Release, which always pays the pre-registered recipient. Funds can never
// be redirected to a third party.
//
// Two implementations of the Registry interface are provided:
//   - MemoryRegistry: in-process, for testing and development.
//   - PostgresRegistry: durable, for production use.
package custody

import "errors"

// ErrNotFound is returned when a farm has no custody record yet.
var ErrNotFound = errors.New("vault not found")

// ErrAlreadyExists is returned by CreateVault when the farm already has a
// custody record. It is non-fatal: the existing vault is returned alongside
// it, so retried onboarding calls are idempotent and can never produce a
// duplicate vault.
var ErrAlreadyExists = errors.New("vault already exists")

// ErrUnauthorized is returned when the caller lacks the Operator grant, or
// when a Release caller is not the vault's recipient.
var ErrUnauthorized = errors.New("caller not authorized")

package ledger

import "errors"

// ErrUnauthorized is returned when the caller lacks the role a mutation
// requires, or is neither the source account nor its approved delegate.
var ErrUnauthorized = errors.New("caller not authorized")

// ErrInvalidAmount is returned for zero, negative, or missing amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrInsufficientBalance is returned when a burn or transfer would drive
// the source balance negative. State is left unchanged.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrOverflow is returned when a mint would push total supply past MaxUnits.
var ErrOverflow = errors.New("amount exceeds representable supply")

// ErrNotFound is returned when an event lookup references a sequence number
// that does not exist.
var ErrNotFound = errors.New("event not found")

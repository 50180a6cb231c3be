package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialize
// concurrent ledger mutations. The value is arbitrary but must be consistent
// across all processes writing to the same database.
const advisoryLockKey = int64(2_208_114_907)

// PostgresLedger persists accounts, supply, and the event chain to a
// PostgreSQL database. It implements the Ledger interface.
//
// Every mutation runs in a single transaction holding a transaction-scoped
// advisory lock, so writes are fully serialized: the balance update, the
// supply update, and the event append commit or roll back together.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	roles  Roles
	logger *zap.Logger
}

// NewPostgres creates a PostgresLedger backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, roles Roles, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, roles: roles, logger: logger}
}

// Mint implements Ledger.
func (l *PostgresLedger) Mint(ctx context.Context, caller, to Address, amount *big.Int, ref string) error {
	if !l.roles.Minter(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	return l.mutate(ctx, func(tx pgx.Tx) (*Event, error) {
		supply, err := readNumeric(ctx, tx, "SELECT total::text FROM ledger_supply WHERE id = 1")
		if err != nil {
			return nil, fmt.Errorf("read supply: %w", err)
		}
		next := new(big.Int).Add(supply, amount)
		if next.Cmp(MaxUnits) > 0 {
			return nil, ErrOverflow
		}
		if err := writeSupply(ctx, tx, next); err != nil {
			return nil, err
		}
		if err := addBalance(ctx, tx, to, amount); err != nil {
			return nil, err
		}
		return &Event{Kind: KindMinted, To: to, Amount: amount, Ref: ref}, nil
	})
}

// Burn implements Ledger.
func (l *PostgresLedger) Burn(ctx context.Context, caller, from Address, amount *big.Int, ref string) error {
	if !l.roles.Burner(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	return l.mutate(ctx, func(tx pgx.Tx) (*Event, error) {
		bal, err := readBalance(ctx, tx, from)
		if err != nil {
			return nil, err
		}
		if bal.Cmp(amount) < 0 {
			return nil, ErrInsufficientBalance
		}
		if err := setBalance(ctx, tx, from, new(big.Int).Sub(bal, amount)); err != nil {
			return nil, err
		}
		supply, err := readNumeric(ctx, tx, "SELECT total::text FROM ledger_supply WHERE id = 1")
		if err != nil {
			return nil, fmt.Errorf("read supply: %w", err)
		}
		if err := writeSupply(ctx, tx, new(big.Int).Sub(supply, amount)); err != nil {
			return nil, err
		}
		return &Event{Kind: KindBurned, From: from, Amount: amount, Ref: ref}, nil
	})
}

// Transfer implements Ledger.
func (l *PostgresLedger) Transfer(ctx context.Context, caller, from, to Address, amount *big.Int, kind EventKind) error {
	if kind != KindTransferred && kind != KindReleased {
		return fmt.Errorf("unsupported transfer kind %q", kind)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	return l.mutate(ctx, func(tx pgx.Tx) (*Event, error) {
		if caller != from {
			var delegate string
			err := tx.QueryRow(ctx,
				"SELECT delegate FROM ledger_delegates WHERE owner = $1", string(from),
			).Scan(&delegate)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				return nil, ErrUnauthorized
			case err != nil:
				return nil, fmt.Errorf("read delegate: %w", err)
			case Address(delegate) != caller:
				return nil, ErrUnauthorized
			}
		}
		bal, err := readBalance(ctx, tx, from)
		if err != nil {
			return nil, err
		}
		if bal.Cmp(amount) < 0 {
			return nil, ErrInsufficientBalance
		}
		if err := setBalance(ctx, tx, from, new(big.Int).Sub(bal, amount)); err != nil {
			return nil, err
		}
		if err := addBalance(ctx, tx, to, amount); err != nil {
			return nil, err
		}
		return &Event{Kind: kind, From: from, To: to, Amount: amount}, nil
	})
}

// Approve implements Ledger.
func (l *PostgresLedger) Approve(ctx context.Context, caller, owner, delegate Address) error {
	if !l.roles.Operator(caller) {
		return ErrUnauthorized
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO ledger_delegates (owner, delegate) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET delegate = EXCLUDED.delegate`,
		string(owner), string(delegate),
	)
	if err != nil {
		return fmt.Errorf("approve delegate: %w", err)
	}
	return nil
}

// BalanceOf implements Ledger. Unknown addresses have a zero balance.
func (l *PostgresLedger) BalanceOf(ctx context.Context, addr Address) (*big.Int, error) {
	var s string
	err := l.pool.QueryRow(ctx,
		"SELECT balance::text FROM ledger_accounts WHERE address = $1", string(addr),
	).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return parseNumeric(s)
}

// TotalSupply implements Ledger.
func (l *PostgresLedger) TotalSupply(ctx context.Context) (*big.Int, error) {
	var s string
	if err := l.pool.QueryRow(ctx,
		"SELECT total::text FROM ledger_supply WHERE id = 1",
	).Scan(&s); err != nil {
		return nil, fmt.Errorf("read supply: %w", err)
	}
	return parseNumeric(s)
}

// Event implements Ledger.
func (l *PostgresLedger) Event(ctx context.Context, seq int) (*Event, error) {
	row := l.pool.QueryRow(ctx, eventSelect+" WHERE seq = $1", seq)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", seq, err)
	}
	return e, nil
}

// Events implements Ledger.
func (l *PostgresLedger) Events(ctx context.Context, afterSeq, limit int) ([]*Event, error) {
	q := eventSelect + " WHERE seq > $1 ORDER BY seq ASC"
	args := []any{afterSeq}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventCount implements Ledger.
func (l *PostgresLedger) EventCount(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyEvents implements Ledger. It streams all rows ordered by seq and
// validates the hash chain. O(n) in log length.
func (l *PostgresLedger) VerifyEvents(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, eventSelect+" ORDER BY seq ASC")
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var prev *Event
	for rows.Next() {
		curr, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		if prev == nil {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis event has wrong hash: got %q", curr.Hash)
			}
			prev = curr
			continue
		}
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("event chain broken at seq %d", curr.Seq)
		}
		if curr.Hash != hashEvent(curr) {
			return fmt.Errorf("event %d has invalid hash", curr.Seq)
		}
		prev = curr
	}
	return rows.Err()
}

// Root implements Ledger.
func (l *PostgresLedger) Root(ctx context.Context) (string, error) {
	var hash string
	if err := l.pool.QueryRow(ctx,
		"SELECT hash FROM ledger_events ORDER BY seq DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get event root: %w", err)
	}
	return hash, nil
}

// mutate runs fn inside a transaction holding the ledger advisory lock, then
// chains and inserts the event fn returns. fn must perform all balance and
// supply writes through the same tx so the whole mutation is all-or-nothing.
func (l *PostgresLedger) mutate(ctx context.Context, fn func(tx pgx.Tx) (*Event, error)) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialize concurrent mutations with a transaction-scoped advisory
	// lock. Released automatically on commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	e, err := fn(tx)
	if err != nil {
		return err
	}

	// Read the current tail of the chain and append.
	var prevSeq int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT seq, hash FROM ledger_events ORDER BY seq DESC LIMIT 1",
	).Scan(&prevSeq, &prevHash); err != nil {
		return fmt.Errorf("read event tail: %w", err)
	}

	e.Seq = prevSeq + 1
	e.Timestamp = time.Now().UTC()
	e.PrevHash = prevHash
	e.Hash = hashEvent(e)

	if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_events (seq, ts, kind, from_addr, to_addr, amount, ref, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		e.Seq, e.Timestamp, string(e.Kind), string(e.From), string(e.To),
		e.Amount.String(), e.Ref, e.PrevHash, e.Hash,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	l.logger.Debug("ledger event appended",
		zap.Int("seq", e.Seq),
		zap.String("kind", string(e.Kind)),
		zap.String("amount", e.Amount.String()),
	)
	return nil
}

const eventSelect = "SELECT seq, ts, kind, from_addr, to_addr, amount::text, ref, prev_hash, hash FROM ledger_events"

// scanEvent scans one event row produced by eventSelect.
func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var kind, from, to, amount string
	if err := row.Scan(&e.Seq, &e.Timestamp, &kind, &from, &to, &amount, &e.Ref, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.Kind = EventKind(kind)
	e.From = Address(from)
	e.To = Address(to)
	a, err := parseNumeric(amount)
	if err != nil {
		return nil, err
	}
	e.Amount = a
	return &e, nil
}

// readBalance returns the balance of addr within tx, zero if the account
// does not exist yet.
func readBalance(ctx context.Context, tx pgx.Tx, addr Address) (*big.Int, error) {
	var s string
	err := tx.QueryRow(ctx,
		"SELECT balance::text FROM ledger_accounts WHERE address = $1", string(addr),
	).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return parseNumeric(s)
}

// setBalance overwrites addr's balance, creating the account row if needed.
func setBalance(ctx context.Context, tx pgx.Tx, addr Address, bal *big.Int) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (address, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET balance = EXCLUDED.balance`,
		string(addr), bal.String(),
	); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// addBalance increments addr's balance, creating the account row if needed.
func addBalance(ctx context.Context, tx pgx.Tx, addr Address, delta *big.Int) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (address, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET balance = ledger_accounts.balance + EXCLUDED.balance`,
		string(addr), delta.String(),
	); err != nil {
		return fmt.Errorf("add balance: %w", err)
	}
	return nil
}

// writeSupply overwrites the single supply row.
func writeSupply(ctx context.Context, tx pgx.Tx, total *big.Int) error {
	if _, err := tx.Exec(ctx,
		"UPDATE ledger_supply SET total = $1::numeric WHERE id = 1", total.String(),
	); err != nil {
		return fmt.Errorf("write supply: %w", err)
	}
	return nil
}

// readNumeric runs a single-column query returning a NUMERIC cast to text.
func readNumeric(ctx context.Context, tx pgx.Tx, q string) (*big.Int, error) {
	var s string
	if err := tx.QueryRow(ctx, q).Scan(&s); err != nil {
		return nil, err
	}
	return parseNumeric(s)
}

// parseNumeric parses a base-10 NUMERIC string into a big.Int.
func parseNumeric(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return n, nil
}

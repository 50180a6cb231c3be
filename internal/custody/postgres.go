package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/equigive/equigive/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRegistry persists custody records to PostgreSQL. It implements
// the Registry interface.
//
// The one-vault-per-farm invariant rests on the vaults table's primary key:
// creation is an INSERT ... ON CONFLICT DO NOTHING followed by a read of
// whichever row won, not a separate existence check, so concurrent creates
// for the same farm cannot race into two vaults.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	ledger ledger.Ledger
	roles  ledger.Roles
	logger *zap.Logger
}

// NewPostgres creates a PostgresRegistry backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, lg ledger.Ledger, roles ledger.Roles, logger *zap.Logger) *PostgresRegistry {
	return &PostgresRegistry{pool: pool, ledger: lg, roles: roles, logger: logger}
}

// CreateVault implements Registry.
func (r *PostgresRegistry) CreateVault(ctx context.Context, caller ledger.Address, farmID string, recipient ledger.Address) (*Vault, error) {
	if !r.roles.Operator(caller) {
		return nil, ErrUnauthorized
	}

	account := uuid.New().String()
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO vaults (farm_id, account, recipient, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (farm_id) DO NOTHING`,
		farmID, account, string(recipient), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert vault: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Lost the conflict: someone created this farm's vault first.
		// Return theirs — the first-registered recipient stands.
		v, err := r.VaultOf(ctx, farmID)
		if err != nil {
			return nil, fmt.Errorf("read existing vault: %w", err)
		}
		return v, ErrAlreadyExists
	}

	r.logger.Info("vault created",
		zap.String("farm_id", farmID),
		zap.String("account", account),
		zap.String("recipient", string(recipient)),
	)
	return &Vault{
		FarmID:    farmID,
		Account:   ledger.Address(account),
		Recipient: recipient,
		CreatedAt: now,
		ledger:    r.ledger,
	}, nil
}

// VaultOf implements Registry.
func (r *PostgresRegistry) VaultOf(ctx context.Context, farmID string) (*Vault, error) {
	v := &Vault{ledger: r.ledger}
	var account, recipient string
	err := r.pool.QueryRow(ctx,
		"SELECT farm_id, account, recipient, created_at FROM vaults WHERE farm_id = $1", farmID,
	).Scan(&v.FarmID, &account, &recipient, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}
	v.Account = ledger.Address(account)
	v.Recipient = ledger.Address(recipient)
	return v, nil
}

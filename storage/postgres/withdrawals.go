package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/frostvault/frostvault/contexthelper"
	"github.com/frostvault/frostvault/storage"
)

var _ storage.Store = (*PostgresBackend)(nil)

// IsConsumed reports whether a withdrawal id was already used.
func (d *PostgresBackend) IsConsumed(ctx context.Context, id *big.Int) (bool, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return false, ctx.Err()
	}
	var exists bool
	err := d.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM consumed_withdrawal_ids WHERE withdrawal_id = $1)",
		id.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("fail to query withdrawal id, err: %w", err)
	}
	return exists, nil
}

// Consume marks a withdrawal id as used; a second insert of the same id
// fails on the primary key.
func (d *PostgresBackend) Consume(ctx context.Context, id *big.Int) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	tag, err := d.pool.Exec(ctx,
		"INSERT INTO consumed_withdrawal_ids (withdrawal_id) VALUES ($1) ON CONFLICT DO NOTHING",
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("fail to consume withdrawal id, err: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrWithdrawalIDUsed
	}
	return nil
}

// Release removes the mark left by a withdrawal whose transfer failed.
func (d *PostgresBackend) Release(ctx context.Context, id *big.Int) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	_, err := d.pool.Exec(ctx,
		"DELETE FROM consumed_withdrawal_ids WHERE withdrawal_id = $1",
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("fail to release withdrawal id, err: %w", err)
	}
	return nil
}

// Reset clears a consumed withdrawal id through the admin path.
func (d *PostgresBackend) Reset(ctx context.Context, id *big.Int) error {
	return d.Release(ctx, id)
}

// RecordDeployment stores the salt → address relationship of a deployed
// route.
func (d *PostgresBackend) RecordDeployment(ctx context.Context, salt [32]byte, address common.Address) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	tag, err := d.pool.Exec(ctx,
		"INSERT INTO route_deployments (salt, address) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		fmt.Sprintf("%x", salt), address.Hex(),
	)
	if err != nil {
		return fmt.Errorf("fail to record deployment, err: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrSaltUsed
	}
	return nil
}

// GetDeployment returns the route address deployed for a salt, if any.
func (d *PostgresBackend) GetDeployment(ctx context.Context, salt [32]byte) (common.Address, bool, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return common.Address{}, false, ctx.Err()
	}
	var hex string
	err := d.pool.QueryRow(ctx,
		"SELECT address FROM route_deployments WHERE salt = $1",
		fmt.Sprintf("%x", salt),
	).Scan(&hex)
	if err == pgx.ErrNoRows {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("fail to query deployment, err: %w", err)
	}
	return common.HexToAddress(hex), true, nil
}

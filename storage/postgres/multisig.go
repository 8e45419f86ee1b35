package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

const (
	MULTISIG_CONFIGS_TABLE = "multisig_configs"
	MULTISIG_SIGNERS_TABLE = "multisig_signers"
)

type multiSigRow struct {
	Address        string    `db:"address"`
	Threshold      int       `db:"threshold"`
	Signers        []string  `db:"signers"`
	TimeoutSeconds int64     `db:"timeout_seconds"`
	Description    string    `db:"description"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r multiSigRow) toConfig() *types.MultiSigConfig {
	return &types.MultiSigConfig{
		Address:        r.Address,
		Threshold:      r.Threshold,
		Signers:        r.Signers,
		TimeoutSeconds: r.TimeoutSeconds,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
	}
}

func (p *PostgresBackend) InsertMultiSig(ctx context.Context, cfg types.MultiSigConfig) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := fmt.Sprintf(`INSERT INTO %s (address, threshold, signers, timeout_seconds, description, created_at)
	VALUES (@address, @threshold, @signers, @timeout_seconds, @description, @created_at)
	ON CONFLICT (address) DO NOTHING`, MULTISIG_CONFIGS_TABLE)

	tag, err := tx.Exec(ctx, query, pgx.NamedArgs{
		"address":         cfg.Address,
		"threshold":       cfg.Threshold,
		"signers":         cfg.Signers,
		"timeout_seconds": cfg.TimeoutSeconds,
		"description":     cfg.Description,
		"created_at":      cfg.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert multisig config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for _, signer := range cfg.Signers {
		batch.Queue(fmt.Sprintf(`INSERT INTO %s (address, signer) VALUES ($1, $2)`, MULTISIG_SIGNERS_TABLE), cfg.Address, signer)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("failed to insert multisig signers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (p *PostgresBackend) GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, error) {
	query := fmt.Sprintf(`SELECT address, threshold, signers, timeout_seconds, description, created_at
	FROM %s WHERE address = $1 LIMIT 1`, MULTISIG_CONFIGS_TABLE)

	rows, err := p.pool.Query(ctx, query, address)
	if err != nil {
		return nil, err
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[multiSigRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return row.toConfig(), nil
}

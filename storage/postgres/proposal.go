package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

const PROPOSALS_TABLE = "proposals"

const proposalColumns = `p.id, p.multisig_address, p.payload, p.proposer, p.signatures, p.threshold, p.status,
	p.created_at, p.expires_at, p.updated_at, p.executed_at, p.execution_tx_hash, p.execution_claim, p.version`

type proposalRow struct {
	ID              string     `db:"id"`
	MultiSigAddress string     `db:"multisig_address"`
	Payload         []byte     `db:"payload"`
	Proposer        string     `db:"proposer"`
	Signatures      []byte     `db:"signatures"`
	Threshold       int        `db:"threshold"`
	Status          string     `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	ExpiresAt       time.Time  `db:"expires_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	ExecutedAt      *time.Time `db:"executed_at"`
	ExecutionTxHash *string    `db:"execution_tx_hash"`
	ExecutionClaim  []byte     `db:"execution_claim"`
	Version         int64      `db:"version"`
}

func (r proposalRow) toProposal() (*types.TransactionProposal, error) {
	if !types.ProposalStatus(r.Status).IsValid() {
		return nil, fmt.Errorf("proposal %s has unknown status %q", r.ID, r.Status)
	}
	p := &types.TransactionProposal{
		ID:              r.ID,
		MultiSigAddress: r.MultiSigAddress,
		Proposer:        r.Proposer,
		Threshold:       r.Threshold,
		Status:          types.ProposalStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
		UpdatedAt:       r.UpdatedAt,
		ExecutedAt:      r.ExecutedAt,
		Version:         r.Version,
	}
	if r.ExecutionTxHash != nil {
		p.ExecutionTxHash = *r.ExecutionTxHash
	}
	if err := json.Unmarshal(r.Payload, &p.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of proposal %s: %w", r.ID, err)
	}
	p.Signatures = make(map[string]types.SignatureRecord)
	if len(r.Signatures) > 0 {
		if err := json.Unmarshal(r.Signatures, &p.Signatures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signatures of proposal %s: %w", r.ID, err)
		}
	}
	if len(r.ExecutionClaim) > 0 {
		var claim types.ExecutionClaim
		if err := json.Unmarshal(r.ExecutionClaim, &claim); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution claim of proposal %s: %w", r.ID, err)
		}
		p.ExecutionClaim = &claim
	}
	return p, nil
}

func proposalArgs(p *types.TransactionProposal) (pgx.NamedArgs, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	signatures := p.Signatures
	if signatures == nil {
		signatures = map[string]types.SignatureRecord{}
	}
	sigJSON, err := json.Marshal(signatures)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signatures: %w", err)
	}
	var claimJSON []byte
	if p.ExecutionClaim != nil {
		if claimJSON, err = json.Marshal(p.ExecutionClaim); err != nil {
			return nil, fmt.Errorf("failed to marshal execution claim: %w", err)
		}
	}
	var txHash *string
	if p.ExecutionTxHash != "" {
		txHash = &p.ExecutionTxHash
	}
	return pgx.NamedArgs{
		"id":                p.ID,
		"multisig_address":  p.MultiSigAddress,
		"payload":           payload,
		"proposer":          p.Proposer,
		"signatures":        sigJSON,
		"threshold":         p.Threshold,
		"status":            string(p.Status),
		"created_at":        p.CreatedAt,
		"expires_at":        p.ExpiresAt,
		"updated_at":        p.UpdatedAt,
		"executed_at":       p.ExecutedAt,
		"execution_tx_hash": txHash,
		"execution_claim":   claimJSON,
		"version":           p.Version,
	}, nil
}

func (p *PostgresBackend) InsertProposal(ctx context.Context, proposal *types.TransactionProposal) error {
	args, err := proposalArgs(proposal)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, multisig_address, payload, proposer, signatures, threshold, status,
	created_at, expires_at, updated_at, executed_at, execution_tx_hash, execution_claim, version)
	VALUES (@id, @multisig_address, @payload, @proposer, @signatures, @threshold, @status,
	@created_at, @expires_at, @updated_at, @executed_at, @execution_tx_hash, @execution_claim, @version)
	ON CONFLICT (id) DO NOTHING`, PROPOSALS_TABLE)

	tag, err := p.pool.Exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (p *PostgresBackend) GetProposal(ctx context.Context, id string) (*types.TransactionProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p WHERE p.id = $1 LIMIT 1`, proposalColumns, PROPOSALS_TABLE)

	rows, err := p.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[proposalRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return row.toProposal()
}

func (p *PostgresBackend) UpdateProposal(ctx context.Context, proposal *types.TransactionProposal) error {
	args, err := proposalArgs(proposal)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET
	signatures = @signatures,
	status = @status,
	updated_at = @updated_at,
	executed_at = @executed_at,
	execution_tx_hash = @execution_tx_hash,
	execution_claim = @execution_claim,
	version = version + 1
	WHERE id = @id AND version = @version`, PROPOSALS_TABLE)

	tag, err := p.pool.Exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, PROPOSALS_TABLE), proposal.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check proposal existence: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	proposal.Version++
	return nil
}

func (p *PostgresBackend) GetProposalsByMultiSig(ctx context.Context, address string) ([]*types.TransactionProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p WHERE p.multisig_address = $1 ORDER BY p.created_at DESC`, proposalColumns, PROPOSALS_TABLE)
	return p.queryProposals(ctx, query, address)
}

func (p *PostgresBackend) GetPendingProposals(ctx context.Context) ([]*types.TransactionProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p WHERE p.status = $1 ORDER BY p.expires_at`, proposalColumns, PROPOSALS_TABLE)
	return p.queryProposals(ctx, query, string(types.ProposalPending))
}

func (p *PostgresBackend) GetPendingProposalsForSigner(ctx context.Context, signer string) ([]*types.TransactionProposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p
	JOIN %s s ON s.address = p.multisig_address
	WHERE s.signer = $1 AND p.status = $2
	ORDER BY p.created_at`, proposalColumns, PROPOSALS_TABLE, MULTISIG_SIGNERS_TABLE)
	return p.queryProposals(ctx, query, signer, string(types.ProposalPending))
}

func (p *PostgresBackend) queryProposals(ctx context.Context, query string, args ...any) ([]*types.TransactionProposal, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[proposalRow])
	if err != nil {
		return nil, err
	}

	proposals := make([]*types.TransactionProposal, 0, len(collected))
	for _, row := range collected {
		proposal, err := row.toProposal()
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

package storage

import (
	"context"
	"errors"

	"github.com/vultisig/multisigner/internal/types"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrAlreadyExists   = errors.New("record already exists")
)

type DatabaseStorage interface {
	Close() error

	// InsertMultiSig stores cfg unless a config with the same address already
	// exists. inserted is false when the row was already present.
	InsertMultiSig(ctx context.Context, cfg types.MultiSigConfig) (inserted bool, err error)
	GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, error)

	InsertProposal(ctx context.Context, p *types.TransactionProposal) error
	GetProposal(ctx context.Context, id string) (*types.TransactionProposal, error)
	// UpdateProposal writes p if the stored version still equals p.Version and
	// increments p.Version on success. A stale version yields ErrVersionConflict.
	UpdateProposal(ctx context.Context, p *types.TransactionProposal) error
	GetProposalsByMultiSig(ctx context.Context, address string) ([]*types.TransactionProposal, error)
	// GetPendingProposals returns every proposal still in pending status,
	// including those whose deadline has passed but were not yet expired.
	GetPendingProposals(ctx context.Context) ([]*types.TransactionProposal, error)
	GetPendingProposalsForSigner(ctx context.Context, signer string) ([]*types.TransactionProposal, error)
}

// Package memory is an in-process DatabaseStorage used by tests and by
// single-node deployments without postgres.
package memory

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/vultisig/multisigner/contexthelper"
	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

type Backend struct {
	configs   *xsync.MapOf[string, types.MultiSigConfig]
	proposals *xsync.MapOf[string, *types.TransactionProposal]
}

var _ storage.DatabaseStorage = (*Backend)(nil)

func NewBackend() *Backend {
	return &Backend{
		configs:   xsync.NewMapOf[types.MultiSigConfig](),
		proposals: xsync.NewMapOf[*types.TransactionProposal](),
	}
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) InsertMultiSig(ctx context.Context, cfg types.MultiSigConfig) (bool, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return false, err
	}
	_, loaded := b.configs.LoadOrStore(cfg.Address, cfg.Clone())
	return !loaded, nil
}

func (b *Backend) GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	cfg, ok := b.configs.Load(address)
	if !ok {
		return nil, storage.ErrNotFound
	}
	cfg = cfg.Clone()
	return &cfg, nil
}

func (b *Backend) InsertProposal(ctx context.Context, p *types.TransactionProposal) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	if _, loaded := b.proposals.LoadOrStore(p.ID, p.Clone()); loaded {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (b *Backend) GetProposal(ctx context.Context, id string) (*types.TransactionProposal, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	p, ok := b.proposals.Load(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (b *Backend) UpdateProposal(ctx context.Context, p *types.TransactionProposal) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	var result error
	b.proposals.Compute(p.ID, func(current *types.TransactionProposal, loaded bool) (*types.TransactionProposal, bool) {
		if !loaded {
			result = storage.ErrNotFound
			return nil, true
		}
		if current.Version != p.Version {
			result = storage.ErrVersionConflict
			return current, false
		}
		next := p.Clone()
		next.Version++
		return next, false
	})
	if result != nil {
		return result
	}
	p.Version++
	return nil
}

func (b *Backend) GetProposalsByMultiSig(ctx context.Context, address string) ([]*types.TransactionProposal, error) {
	return b.collect(ctx, func(p *types.TransactionProposal) bool {
		return p.MultiSigAddress == address
	})
}

func (b *Backend) GetPendingProposals(ctx context.Context) ([]*types.TransactionProposal, error) {
	return b.collect(ctx, func(p *types.TransactionProposal) bool {
		return p.Status == types.ProposalPending
	})
}

func (b *Backend) GetPendingProposalsForSigner(ctx context.Context, signer string) ([]*types.TransactionProposal, error) {
	return b.collect(ctx, func(p *types.TransactionProposal) bool {
		if p.Status != types.ProposalPending {
			return false
		}
		cfg, ok := b.configs.Load(p.MultiSigAddress)
		return ok && cfg.IsSigner(signer)
	})
}

func (b *Backend) collect(ctx context.Context, match func(p *types.TransactionProposal) bool) ([]*types.TransactionProposal, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	var out []*types.TransactionProposal
	b.proposals.Range(func(_ string, p *types.TransactionProposal) bool {
		if match(p) {
			out = append(out, p.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

package service

import (
	"context"

	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

// ArchiveReader is implemented by archivers that can load what they stored.
type ArchiveReader interface {
	GetExecutionArchive(ctx context.Context, proposalID string) (*storage.ExecutionArchive, error)
}

// GetExecutionArchive returns the archived signed transaction of an executed
// proposal.
func (c *Coordinator) GetExecutionArchive(ctx context.Context, proposalID string) (*storage.ExecutionArchive, error) {
	p, err := c.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.ProposalExecuted {
		return nil, types.InvalidStateErrorf("proposal %s is %s, not executed", p.ID, p.Status)
	}
	reader, ok := c.archiver.(ArchiveReader)
	if !ok {
		return nil, types.NotFoundErrorf("execution archive is not enabled")
	}
	archive, err := reader.GetExecutionArchive(ctx, proposalID)
	if err != nil {
		return nil, types.StorageError(err, "failed to load execution archive of proposal %s", proposalID)
	}
	return archive, nil
}

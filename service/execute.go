package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/contexthelper"
	"github.com/vultisig/multisigner/internal/types"
)

// ExecuteProposal broadcasts an approved proposal and returns the chain's
// transaction hash. Concurrent calls broadcast at most once: the caller that
// places the execution claim broadcasts, every other caller gets an
// InvalidState error. A failed broadcast releases the claim and leaves the
// proposal approved so execution can be retried. An overdue pending proposal
// is expired before the status check.
func (c *Coordinator) ExecuteProposal(ctx context.Context, proposalID string) (string, error) {
	if _, err := c.GetProposal(ctx, proposalID); err != nil {
		return "", err
	}
	_, txHash, err := c.execute(ctx, proposalID)
	return txHash, err
}

// broadcastTimeout bounds a single broadcast so that it always ends before
// the execution claim can be taken over by another caller.
func (c *Coordinator) broadcastTimeout() time.Duration {
	return c.cfg.ExecutionLease - c.cfg.ExecutionLease/4
}

func (c *Coordinator) execute(ctx context.Context, proposalID string) (*types.TransactionProposal, string, error) {
	claimID := uuid.New().String()
	claimed, err := c.mutateProposal(ctx, proposalID, func(next *types.TransactionProposal) error {
		now := c.now()
		if next.Status.IsTerminal() {
			return types.InvalidStateErrorf("proposal %s is already %s", next.ID, next.Status)
		}
		if next.Status != types.ProposalApproved {
			return types.InvalidStateErrorf("proposal %s is %s, not approved", next.ID, next.Status)
		}
		if next.HasActiveClaim(now, c.cfg.ExecutionLease) {
			return types.InvalidStateErrorf("execution of proposal %s is already in progress", next.ID)
		}
		if next.ExecutionClaim != nil {
			c.logger.WithFields(logrus.Fields{
				"proposal_id": next.ID,
				"stale_claim": next.ExecutionClaim.ID,
			}).Warn("Taking over abandoned execution claim")
		}
		next.ExecutionClaim = &types.ExecutionClaim{ID: claimID, ClaimedAt: now.UTC()}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	// the claim must be resolved even if the caller goes away mid-broadcast
	persistCtx, cancel := contexthelper.Detach(ctx, bestEffortTimeout)
	defer cancel()

	tx, err := assemble(claimed)
	if err != nil {
		c.releaseClaim(persistCtx, proposalID, claimID)
		return nil, "", err
	}

	broadcastCtx, cancelBroadcast := context.WithTimeout(ctx, c.broadcastTimeout())
	defer cancelBroadcast()
	start := c.now()
	txHash, err := c.broadcaster.Broadcast(broadcastCtx, tx)
	if err != nil {
		c.incCounter("proposal.broadcast.error", nil)
		c.logger.WithError(err).WithField("proposal_id", proposalID).Error("failed to broadcast proposal")
		c.releaseClaim(persistCtx, proposalID, claimID)
		return nil, "", types.BroadcastError(err, "failed to broadcast proposal %s", proposalID)
	}
	if err := c.sdClient.Timing("proposal.broadcast.latency", c.now().Sub(start), nil, 1); err != nil {
		c.logger.Errorf("fail to measure time metric, err: %v", err)
	}

	executed, err := c.mutateProposal(persistCtx, proposalID, func(next *types.TransactionProposal) error {
		if next.Status == types.ProposalExecuted {
			return errNoChange
		}
		if next.ExecutionClaim == nil || next.ExecutionClaim.ID != claimID {
			// only a store-side clock skew gets here; the chain has our transaction
			c.logger.WithField("proposal_id", next.ID).Warn("execution claim lost during broadcast")
		}
		executedAt := c.now().UTC()
		next.Status = types.ProposalExecuted
		next.ExecutionTxHash = txHash
		next.ExecutedAt = &executedAt
		next.ExecutionClaim = nil
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"proposal_id": proposalID,
			"tx_hash":     txHash,
		}).Error("transaction broadcast but proposal could not be marked executed")
		return nil, "", err
	}

	c.incCounter("proposal.executed", nil)
	c.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"tx_hash":     executed.ExecutionTxHash,
		"signers":     executed.Signers(),
	}).Info("Proposal executed")

	if c.archiver != nil {
		if err := c.archiver.ArchiveExecution(persistCtx, tx, executed.ExecutionTxHash); err != nil {
			c.logger.WithError(err).WithField("proposal_id", proposalID).Warn("failed to archive execution")
		}
	}
	return executed, executed.ExecutionTxHash, nil
}

func (c *Coordinator) releaseClaim(ctx context.Context, proposalID, claimID string) {
	_, err := c.mutateProposal(ctx, proposalID, func(next *types.TransactionProposal) error {
		if next.ExecutionClaim == nil || next.ExecutionClaim.ID != claimID {
			return errNoChange
		}
		next.ExecutionClaim = nil
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("proposal_id", proposalID).Error("failed to release execution claim")
	}
}

func assemble(p *types.TransactionProposal) (types.AssembledTransaction, error) {
	if p.SignatureCount() < p.Threshold {
		return types.AssembledTransaction{}, types.InvalidStateErrorf("proposal %s has %d of %d signatures", p.ID, p.SignatureCount(), p.Threshold)
	}
	canonical, err := p.Payload.CanonicalBytes()
	if err != nil {
		return types.AssembledTransaction{}, err
	}
	return types.AssembledTransaction{
		ProposalID:       p.ID,
		MultiSigAddress:  p.MultiSigAddress,
		Payload:          p.Payload,
		CanonicalPayload: canonical,
		Threshold:        p.Threshold,
		Signatures:       p.SortedSignatures(),
	}, nil
}

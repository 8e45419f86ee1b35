package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/contexthelper"
	"github.com/vultisig/multisigner/internal/types"
)

// expireProposal moves an overdue pending proposal to expired. transitioned
// is false when someone else already did it or the proposal is not due.
func (c *Coordinator) expireProposal(ctx context.Context, proposalID string) (p *types.TransactionProposal, transitioned bool, err error) {
	p, err = c.mutateProposal(ctx, proposalID, func(next *types.TransactionProposal) error {
		transitioned = false
		if next.Status != types.ProposalPending || !next.IsExpired(c.now()) {
			return errNoChange
		}
		next.Status = types.ProposalExpired
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if transitioned {
		c.onExpired(p)
	}
	return p, transitioned, nil
}

func (c *Coordinator) onExpired(p *types.TransactionProposal) {
	c.incCounter("proposal.expired", nil)
	c.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"multisig":    p.MultiSigAddress,
		"signatures":  p.SignatureCount(),
		"expires_at":  p.ExpiresAt,
	}).Info("Proposal expired")
}

// CleanupExpiredProposals expires every overdue pending proposal and returns
// how many this call transitioned. It is safe to run concurrently with itself
// and with signing: a proposal is only counted by the caller that expired it.
func (c *Coordinator) CleanupExpiredProposals(ctx context.Context) (int, error) {
	pending, err := c.db.GetPendingProposals(ctx)
	if err != nil {
		return 0, types.StorageError(err, "failed to list pending proposals")
	}

	now := c.now()
	count := 0
	var errs []error
	for _, p := range pending {
		if err := contexthelper.CheckCancellation(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if !p.IsExpired(now) {
			continue
		}
		_, transitioned, err := c.expireProposal(ctx, p.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if transitioned {
			count++
		}
	}
	return count, errors.Join(errs...)
}

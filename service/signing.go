package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/internal/types"
)

// SignResult is the outcome of SignProposal. When the signature completed the
// execution policy, TxHash or ExecutionError reports the automatic execution;
// the signature itself is committed either way.
type SignResult struct {
	Proposal       *types.TransactionProposal
	TxHash         string
	ExecutionError error
}

// SignProposal adds signer's signature to the proposal. Concurrent signers
// never overwrite each other: the append is retried against the latest
// stored version.
func (c *Coordinator) SignProposal(ctx context.Context, proposalID, signer string, signFn SignFunc) (*SignResult, error) {
	p, err := c.loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if expire, err := c.checkSignable(p, c.now()); err != nil {
		return nil, err
	} else if expire {
		if _, _, err := c.expireProposal(ctx, proposalID); err != nil {
			return nil, err
		}
		return nil, types.ExpiredErrorf("proposal %s expired at %s", proposalID, p.ExpiresAt.Format(time.RFC3339))
	}

	cfg, err := c.GetMultiSig(ctx, p.MultiSigAddress)
	if err != nil {
		return nil, err
	}
	record, err := c.collector.Collect(ctx, cfg, p, signer, signFn)
	if err != nil {
		return nil, err
	}

	var expiredNow, approvedNow bool
	updated, err := c.mutateProposal(ctx, proposalID, func(next *types.TransactionProposal) error {
		expiredNow, approvedNow = false, false
		expire, err := c.checkSignable(next, c.now())
		if err != nil {
			return err
		}
		if expire {
			next.Status = types.ProposalExpired
			expiredNow = true
			return nil
		}
		if next.HasSigned(signer) {
			return types.DuplicateSignatureErrorf("%s has already signed proposal %s", signer, next.ID)
		}
		next.Signatures[signer] = *record
		if next.Status == types.ProposalPending && next.SignatureCount() >= next.Threshold {
			next.Status = types.ProposalApproved
			approvedNow = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredNow {
		c.onExpired(updated)
		return nil, types.ExpiredErrorf("proposal %s expired at %s", proposalID, updated.ExpiresAt.Format(time.RFC3339))
	}

	c.incCounter("proposal.signed", nil)
	c.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"signer":      signer,
		"signatures":  updated.SignatureCount(),
		"threshold":   updated.Threshold,
	}).Info("Proposal signed")
	if approvedNow {
		c.incCounter("proposal.approved", nil)
		c.logger.WithField("proposal_id", proposalID).Info("Proposal approved")
	}

	result := &SignResult{Proposal: updated}
	if !c.shouldAutoExecute(cfg, updated) {
		return result, nil
	}

	executed, txHash, err := c.execute(ctx, proposalID)
	switch {
	case err == nil:
		result.Proposal = executed
		result.TxHash = txHash
	case errors.Is(err, types.ErrInvalidState):
		// another caller is executing or has executed it
		c.logger.WithError(err).WithField("proposal_id", proposalID).Info("automatic execution skipped")
		if current, err := c.loadProposal(ctx, proposalID); err == nil {
			result.Proposal = current
		}
	default:
		c.logger.WithError(err).WithField("proposal_id", proposalID).Warn("automatic execution failed")
		result.ExecutionError = err
	}
	return result, nil
}

// checkSignable reports whether p accepts a new signature at now. expire is
// true when p is pending and overdue and must be moved to expired.
func (c *Coordinator) checkSignable(p *types.TransactionProposal, now time.Time) (expire bool, err error) {
	if p.Status.IsTerminal() {
		if p.Status == types.ProposalExpired {
			return false, types.ExpiredErrorf("proposal %s expired at %s", p.ID, p.ExpiresAt.Format(time.RFC3339))
		}
		return false, types.InvalidStateErrorf("proposal %s is %s and cannot be signed", p.ID, p.Status)
	}
	switch p.Status {
	case types.ProposalPending:
		return p.IsExpired(now), nil
	case types.ProposalApproved:
		if p.IsExpired(now) {
			return false, types.ExpiredErrorf("signing deadline of proposal %s passed at %s", p.ID, p.ExpiresAt.Format(time.RFC3339))
		}
		if p.HasActiveClaim(now, c.cfg.ExecutionLease) {
			return false, types.InvalidStateErrorf("proposal %s is being executed", p.ID)
		}
		return false, nil
	default:
		return false, types.InvalidStateErrorf("proposal %s has unknown status %q", p.ID, p.Status)
	}
}

func (c *Coordinator) shouldAutoExecute(cfg *types.MultiSigConfig, p *types.TransactionProposal) bool {
	if p.Status != types.ProposalApproved {
		return false
	}
	if p.SignatureCount() == len(cfg.Signers) {
		return true
	}
	return c.cfg.ExecuteAtThreshold && p.SignatureCount() >= p.Threshold
}

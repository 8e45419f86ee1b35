package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/contexthelper"
	"github.com/vultisig/multisigner/internal/types"
)

// ProposeTransaction opens a proposal against the multi-sig at addr and
// notifies its signers. Notification failures are logged only.
func (c *Coordinator) ProposeTransaction(ctx context.Context, addr string, payload types.TransactionPayload, proposer string) (string, error) {
	cfg, err := c.GetMultiSig(ctx, addr)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(proposer) == "" {
		return "", types.ValidationErrorf("proposer is required")
	}
	normalized, err := payload.Normalize(cfg.Address)
	if err != nil {
		return "", err
	}

	now := c.now().UTC()
	p := &types.TransactionProposal{
		ID:              uuid.New().String(),
		MultiSigAddress: cfg.Address,
		Payload:         normalized,
		Proposer:        proposer,
		Signatures:      map[string]types.SignatureRecord{},
		Threshold:       cfg.Threshold,
		Status:          types.ProposalPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(cfg.Timeout()),
		UpdatedAt:       now,
		Version:         1,
	}
	if err := c.db.InsertProposal(ctx, p); err != nil {
		return "", types.StorageError(err, "failed to store proposal for %s", cfg.Address)
	}

	c.incCounter("proposal.created", nil)
	c.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"multisig":    p.MultiSigAddress,
		"proposer":    proposer,
		"expires_at":  p.ExpiresAt,
	}).Info("Proposal created")

	if c.notifier != nil {
		notifyCtx, cancel := contexthelper.Detach(ctx, bestEffortTimeout)
		defer cancel()
		if err := c.notifier.NotifyProposal(notifyCtx, cfg.Signers, p.Summary()); err != nil {
			c.logger.WithError(err).WithField("proposal_id", p.ID).Warn("failed to notify signers")
		}
	}
	return p.ID, nil
}

// GetProposal returns the proposal, expiring it first if its deadline passed.
func (c *Coordinator) GetProposal(ctx context.Context, id string) (*types.TransactionProposal, error) {
	p, err := c.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.expireIfDue(ctx, p)
}

// GetPendingProposals lists the open proposals signer can still sign,
// oldest first.
func (c *Coordinator) GetPendingProposals(ctx context.Context, signer string) ([]*types.TransactionProposal, error) {
	if strings.TrimSpace(signer) == "" {
		return nil, types.ValidationErrorf("signer is required")
	}
	candidates, err := c.db.GetPendingProposalsForSigner(ctx, signer)
	if err != nil {
		return nil, types.StorageError(err, "failed to list pending proposals for %s", signer)
	}

	out := make([]*types.TransactionProposal, 0, len(candidates))
	for _, p := range candidates {
		p, err := c.expireIfDue(ctx, p)
		if err != nil {
			c.logger.WithError(err).WithField("proposal_id", p.ID).Error("failed to expire proposal")
			continue
		}
		if p.Status == types.ProposalPending && !p.HasSigned(signer) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetTransactionHistory returns every proposal of the multi-sig, newest first.
func (c *Coordinator) GetTransactionHistory(ctx context.Context, addr string) ([]*types.TransactionProposal, error) {
	if _, err := c.GetMultiSig(ctx, addr); err != nil {
		return nil, err
	}
	proposals, err := c.db.GetProposalsByMultiSig(ctx, addr)
	if err != nil {
		return nil, types.StorageError(err, "failed to list proposals of %s", addr)
	}

	out := make([]*types.TransactionProposal, 0, len(proposals))
	for _, p := range proposals {
		current, err := c.expireIfDue(ctx, p)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			c.logger.WithError(err).WithField("proposal_id", p.ID).Error("failed to expire proposal")
			current = p
		}
		out = append(out, current)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// expireIfDue returns p, or its expired successor if p is an overdue
// pending proposal.
func (c *Coordinator) expireIfDue(ctx context.Context, p *types.TransactionProposal) (*types.TransactionProposal, error) {
	if p.Status != types.ProposalPending || !p.IsExpired(c.now()) {
		return p, nil
	}
	expired, _, err := c.expireProposal(ctx, p.ID)
	if err != nil {
		return p, err
	}
	return expired, nil
}

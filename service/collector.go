package service

import (
	"context"
	"time"

	"github.com/vultisig/multisigner/internal/types"
)

// SignatureCollector checks that a signer may sign a proposal and turns the
// output of their sign function into a SignatureRecord.
type SignatureCollector struct {
	now func() time.Time
}

func NewSignatureCollector(now func() time.Time) *SignatureCollector {
	if now == nil {
		now = time.Now
	}
	return &SignatureCollector{now: now}
}

func (sc *SignatureCollector) Collect(ctx context.Context, cfg *types.MultiSigConfig, p *types.TransactionProposal, signer string, signFn SignFunc) (*types.SignatureRecord, error) {
	if !cfg.IsSigner(signer) {
		return nil, types.UnauthorizedErrorf("%s is not a signer of multi-sig %s", signer, cfg.Address)
	}
	if p.HasSigned(signer) {
		return nil, types.DuplicateSignatureErrorf("%s has already signed proposal %s", signer, p.ID)
	}
	if signFn == nil {
		return nil, types.ValidationErrorf("sign function is required")
	}

	payload, err := p.Payload.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	signature, publicKey, err := signFn(ctx, signer, payload)
	if err != nil {
		return nil, types.SigningError(err, "%s failed to sign proposal %s", signer, p.ID)
	}
	if len(signature) == 0 || len(publicKey) == 0 {
		return nil, types.SigningError(nil, "%s returned an empty signature or public key for proposal %s", signer, p.ID)
	}

	return &types.SignatureRecord{
		Signer:    signer,
		Signature: signature,
		PublicKey: publicKey,
		Timestamp: sc.now().UTC(),
	}, nil
}

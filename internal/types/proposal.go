package types

import (
	"slices"
	"sort"
	"time"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalExecuted ProposalStatus = "executed"
	ProposalExpired  ProposalStatus = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalExecuted || s == ProposalExpired
}

func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalPending, ProposalApproved, ProposalExecuted, ProposalExpired:
		return true
	}
	return false
}

// SignatureRecord is one signer's signature over the canonical payload.
type SignatureRecord struct {
	Signer    string    `json:"signer"`
	Signature []byte    `json:"signature"`
	PublicKey []byte    `json:"public_key"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionClaim marks the caller currently broadcasting an approved proposal.
type ExecutionClaim struct {
	ID        string    `json:"id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// TransactionProposal is a transaction awaiting signatures from the signers
// of a multi-sig configuration.
type TransactionProposal struct {
	ID              string                     `json:"id"`
	MultiSigAddress string                     `json:"multisig_address"`
	Payload         TransactionPayload         `json:"payload"`
	Proposer        string                     `json:"proposer"`
	Signatures      map[string]SignatureRecord `json:"signatures"`
	Threshold       int                        `json:"threshold"`
	Status          ProposalStatus             `json:"status"`
	CreatedAt       time.Time                  `json:"created_at"`
	ExpiresAt       time.Time                  `json:"expires_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	ExecutedAt      *time.Time                 `json:"executed_at,omitempty"`
	ExecutionTxHash string                     `json:"execution_tx_hash,omitempty"`
	ExecutionClaim  *ExecutionClaim            `json:"execution_claim,omitempty"`
	// Version is incremented by storage on every successful update.
	Version int64 `json:"version"`
}

// IsExpired reports whether the signing deadline has passed at now.
func (p *TransactionProposal) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

func (p *TransactionProposal) HasSigned(signer string) bool {
	_, ok := p.Signatures[signer]
	return ok
}

func (p *TransactionProposal) SignatureCount() int {
	return len(p.Signatures)
}

// HasActiveClaim reports whether another caller holds a non-abandoned execution claim.
func (p *TransactionProposal) HasActiveClaim(now time.Time, lease time.Duration) bool {
	return p.ExecutionClaim != nil && now.Sub(p.ExecutionClaim.ClaimedAt) < lease
}

// SortedSignatures returns the signatures ordered by signer identity.
func (p *TransactionProposal) SortedSignatures() []SignatureRecord {
	out := make([]SignatureRecord, 0, len(p.Signatures))
	for _, s := range p.Signatures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signer < out[j].Signer })
	return out
}

// Clone returns a deep copy; storage and caches never share proposal memory
// with callers.
func (p *TransactionProposal) Clone() *TransactionProposal {
	if p == nil {
		return nil
	}
	c := *p
	c.Payload.Data = slices.Clone(p.Payload.Data)
	c.Signatures = make(map[string]SignatureRecord, len(p.Signatures))
	for k, s := range p.Signatures {
		s.Signature = slices.Clone(s.Signature)
		s.PublicKey = slices.Clone(s.PublicKey)
		c.Signatures[k] = s
	}
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		c.ExecutedAt = &t
	}
	if p.ExecutionClaim != nil {
		claim := *p.ExecutionClaim
		c.ExecutionClaim = &claim
	}
	return &c
}

// Signers returns the identities that have signed, sorted.
func (p *TransactionProposal) Signers() []string {
	out := make([]string, 0, len(p.Signatures))
	for signer := range p.Signatures {
		out = append(out, signer)
	}
	sort.Strings(out)
	return out
}

// ProposalSummary is what signers are notified with.
type ProposalSummary struct {
	ID              string    `json:"id"`
	MultiSigAddress string    `json:"multisig_address"`
	Proposer        string    `json:"proposer"`
	ChainID         string    `json:"chain_id"`
	To              string    `json:"to"`
	Amount          string    `json:"amount"`
	Denom           string    `json:"denom"`
	Threshold       int       `json:"threshold"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (p *TransactionProposal) Summary() ProposalSummary {
	return ProposalSummary{
		ID:              p.ID,
		MultiSigAddress: p.MultiSigAddress,
		Proposer:        p.Proposer,
		ChainID:         p.Payload.ChainID,
		To:              p.Payload.To,
		Amount:          p.Payload.Amount,
		Denom:           p.Payload.Denom,
		Threshold:       p.Threshold,
		ExpiresAt:       p.ExpiresAt,
	}
}

// AssembledTransaction is the fully signed transaction handed to the broadcaster.
type AssembledTransaction struct {
	ProposalID       string             `json:"proposal_id"`
	MultiSigAddress  string             `json:"multisig_address"`
	Payload          TransactionPayload `json:"payload"`
	CanonicalPayload []byte             `json:"canonical_payload"`
	Threshold        int                `json:"threshold"`
	Signatures       []SignatureRecord  `json:"signatures"`
}

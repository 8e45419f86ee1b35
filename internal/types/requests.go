package types

// ProposalCreateRequest is the body of POST /multisig/:address/proposals.
type ProposalCreateRequest struct {
	Payload TransactionPayload `json:"payload"`
}

// ProposalSignRequest carries a signature computed off-box over the proposal's
// canonical payload. Both fields are hex, with or without a 0x prefix.
type ProposalSignRequest struct {
	Signature string `json:"signature" validate:"required,hexbytes"`
	PublicKey string `json:"public_key" validate:"required,hexbytes"`
}

type MultiSigCreateResponse struct {
	Address string `json:"address"`
}

type ProposalCreateResponse struct {
	ProposalID string `json:"proposal_id"`
}

// ProposalResponse wraps a proposal with the hex canonical payload signers sign.
type ProposalResponse struct {
	Proposal         *TransactionProposal `json:"proposal"`
	CanonicalPayload string               `json:"canonical_payload"`
}

type SignResponse struct {
	Proposal        *TransactionProposal `json:"proposal"`
	ExecutionTxHash string               `json:"execution_tx_hash,omitempty"`
	ExecutionError  string               `json:"execution_error,omitempty"`
}

type ExecuteResponse struct {
	TxHash string `json:"tx_hash"`
}

type CleanupResponse struct {
	Expired int `json:"expired"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

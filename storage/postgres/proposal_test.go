package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisigner/internal/types"
)

func TestProposalRowToProposal(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &types.TransactionProposal{
		ID:              "p1",
		MultiSigAddress: "msig1",
		Payload:         types.TransactionPayload{ChainID: "testnet-1", To: "bob", Amount: "10", Denom: "utest"},
		Proposer:        "alice",
		Signatures: map[string]types.SignatureRecord{
			"alice": {Signer: "alice", Signature: []byte{1}, PublicKey: []byte{2}, Timestamp: now},
		},
		Threshold: 2,
		Status:    types.ProposalPending,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		UpdatedAt: now,
		Version:   3,
	}
	args, err := proposalArgs(p)
	require.NoError(t, err)

	row := proposalRow{
		ID:              p.ID,
		MultiSigAddress: p.MultiSigAddress,
		Payload:         args["payload"].([]byte),
		Proposer:        p.Proposer,
		Signatures:      args["signatures"].([]byte),
		Threshold:       p.Threshold,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
		ExpiresAt:       p.ExpiresAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}

	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "pending", status: "pending"},
		{name: "executed", status: "executed"},
		{name: "unknown status", status: "cancelled", wantErr: true},
		{name: "empty status", status: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := row
			r.Status = tc.status
			got, err := r.toProposal()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.ProposalStatus(tc.status), got.Status)
			assert.Equal(t, p.Payload, got.Payload)
			assert.Equal(t, []string{"alice"}, got.Signers())
			assert.Nil(t, got.ExecutionClaim)
		})
	}
}

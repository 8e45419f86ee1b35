package types

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProposalClone(t *testing.T) {
	now := time.Now()
	p := &TransactionProposal{
		ID:      "p1",
		Payload: validPayload(),
		Signatures: map[string]SignatureRecord{
			"alice": {Signer: "alice", Signature: []byte{1}, PublicKey: []byte{2}, Timestamp: now},
		},
		ExecutedAt:     &now,
		ExecutionClaim: &ExecutionClaim{ID: "c1", ClaimedAt: now},
	}

	c := p.Clone()
	c.Signatures["bob"] = SignatureRecord{Signer: "bob"}
	c.Signatures["alice"].Signature[0] = 9
	c.Payload.Data[0] = 9
	c.ExecutionClaim.ID = "c2"

	assert.Len(t, p.Signatures, 1)
	assert.Equal(t, byte(1), p.Signatures["alice"].Signature[0])
	assert.Equal(t, byte(0x01), p.Payload.Data[0])
	assert.Equal(t, "c1", p.ExecutionClaim.ID)
	assert.Nil(t, (*TransactionProposal)(nil).Clone())
}

func TestProposalExpiryAndClaims(t *testing.T) {
	now := time.Now()
	p := &TransactionProposal{ExpiresAt: now}

	assert.False(t, p.IsExpired(now))
	assert.True(t, p.IsExpired(now.Add(time.Nanosecond)))

	assert.False(t, p.HasActiveClaim(now, time.Minute))
	p.ExecutionClaim = &ExecutionClaim{ID: "c", ClaimedAt: now}
	assert.True(t, p.HasActiveClaim(now.Add(30*time.Second), time.Minute))
	assert.False(t, p.HasActiveClaim(now.Add(time.Minute), time.Minute))
}

func TestSortedSignatures(t *testing.T) {
	p := &TransactionProposal{Signatures: map[string]SignatureRecord{
		"carol": {Signer: "carol"},
		"alice": {Signer: "alice"},
		"bob":   {Signer: "bob"},
	}}
	sigs := p.SortedSignatures()
	assert.Equal(t, "alice", sigs[0].Signer)
	assert.Equal(t, "bob", sigs[1].Signer)
	assert.Equal(t, "carol", sigs[2].Signer)
	assert.Equal(t, []string{"alice", "bob", "carol"}, p.Signers())
	assert.True(t, p.HasSigned("bob"))
	assert.False(t, p.HasSigned("dave"))
}

func TestStatus(t *testing.T) {
	assert.False(t, ProposalPending.IsTerminal())
	assert.False(t, ProposalApproved.IsTerminal())
	assert.True(t, ProposalExecuted.IsTerminal())
	assert.True(t, ProposalExpired.IsTerminal())
	assert.False(t, ProposalStatus("cancelled").IsValid())
}

func TestMultiSigCreateRequestIsValid(t *testing.T) {
	testCases := []struct {
		name    string
		req     MultiSigCreateRequest
		wantErr bool
	}{
		{name: "valid", req: MultiSigCreateRequest{Threshold: 2, Signers: []string{"a", "b", "c"}, TimeoutSeconds: 60}},
		{name: "unanimous", req: MultiSigCreateRequest{Threshold: 2, Signers: []string{"a", "b"}, TimeoutSeconds: 60}},
		{name: "single signer", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a"}, TimeoutSeconds: 60}, wantErr: true},
		{name: "duplicate signer", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", "a"}, TimeoutSeconds: 60}, wantErr: true},
		{name: "empty signer", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", ""}, TimeoutSeconds: 60}, wantErr: true},
		{name: "zero threshold", req: MultiSigCreateRequest{Threshold: 0, Signers: []string{"a", "b"}, TimeoutSeconds: 60}, wantErr: true},
		{name: "threshold above signers", req: MultiSigCreateRequest{Threshold: 3, Signers: []string{"a", "b"}, TimeoutSeconds: 60}, wantErr: true},
		{name: "zero timeout", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", "b"}}, wantErr: true},
		{name: "longest timeout", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", "b"}, TimeoutSeconds: MaxTimeoutSeconds}},
		{name: "timeout above cap", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", "b"}, TimeoutSeconds: MaxTimeoutSeconds + 1}, wantErr: true},
		{name: "timeout overflowing duration", req: MultiSigCreateRequest{Threshold: 1, Signers: []string{"a", "b"}, TimeoutSeconds: math.MaxInt64 / 1000}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.IsValid()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCoordinatorErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := BroadcastError(cause, "broadcast of %s failed", "p1")

	assert.ErrorIs(t, err, ErrBroadcast)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, CodeBroadcast, ErrorCode(err))
	assert.Equal(t, "BROADCAST_FAILED: broadcast of p1 failed: connection refused", err.Error())

	wrapped := fmt.Errorf("outer: %w", NotFoundErrorf("proposal %s not found", "p2"))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, CodeNotFound, ErrorCode(wrapped))
	assert.Equal(t, CodeUnknown, ErrorCode(cause))
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

func testProposal(id, address string, created time.Time) *types.TransactionProposal {
	return &types.TransactionProposal{
		ID:              id,
		MultiSigAddress: address,
		Signatures:      map[string]types.SignatureRecord{},
		Threshold:       2,
		Status:          types.ProposalPending,
		CreatedAt:       created,
		ExpiresAt:       created.Add(time.Hour),
		Version:         1,
	}
}

func TestInsertMultiSigIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	cfg := types.MultiSigConfig{Address: "msig1", Threshold: 2, Signers: []string{"a", "b"}, TimeoutSeconds: 60}

	inserted, err := b.InsertMultiSig(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, inserted)

	cfg.Description = "second"
	inserted, err = b.InsertMultiSig(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := b.GetMultiSig(ctx, "msig1")
	require.NoError(t, err)
	assert.Empty(t, got.Description)

	got.Signers[0] = "mutated"
	again, err := b.GetMultiSig(ctx, "msig1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Signers[0])

	_, err = b.GetMultiSig(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateProposalVersioning(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	p := testProposal("p1", "msig1", time.Now())
	require.NoError(t, b.InsertProposal(ctx, p))
	assert.ErrorIs(t, b.InsertProposal(ctx, p), storage.ErrAlreadyExists)

	first, err := b.GetProposal(ctx, "p1")
	require.NoError(t, err)
	second, err := b.GetProposal(ctx, "p1")
	require.NoError(t, err)

	first.Signatures["a"] = types.SignatureRecord{Signer: "a"}
	require.NoError(t, b.UpdateProposal(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Signatures["b"] = types.SignatureRecord{Signer: "b"}
	assert.ErrorIs(t, b.UpdateProposal(ctx, second), storage.ErrVersionConflict)

	stored, err := b.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.True(t, stored.HasSigned("a"))
	assert.False(t, stored.HasSigned("b"))

	missing := testProposal("nope", "msig1", time.Now())
	assert.ErrorIs(t, b.UpdateProposal(ctx, missing), storage.ErrNotFound)
}

func TestConcurrentUpdatesOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	require.NoError(t, b.InsertProposal(ctx, testProposal("p1", "msig1", time.Now())))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := b.GetProposal(ctx, "p1")
			if err != nil {
				return
			}
			// every writer targets the initial version
			p.Version = 1
			if b.UpdateProposal(ctx, p) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPendingQueries(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	now := time.Now()

	_, err := b.InsertMultiSig(ctx, types.MultiSigConfig{Address: "msig1", Threshold: 1, Signers: []string{"alice", "bob"}})
	require.NoError(t, err)
	_, err = b.InsertMultiSig(ctx, types.MultiSigConfig{Address: "msig2", Threshold: 1, Signers: []string{"carol", "bob"}})
	require.NoError(t, err)

	p1 := testProposal("p1", "msig1", now)
	p2 := testProposal("p2", "msig2", now.Add(time.Second))
	p3 := testProposal("p3", "msig1", now.Add(2*time.Second))
	p3.Status = types.ProposalExecuted
	for _, p := range []*types.TransactionProposal{p1, p2, p3} {
		require.NoError(t, b.InsertProposal(ctx, p))
	}

	pending, err := b.GetPendingProposals(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	forBob, err := b.GetPendingProposalsForSigner(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, forBob, 2)
	assert.Equal(t, "p1", forBob[0].ID)
	assert.Equal(t, "p2", forBob[1].ID)

	forAlice, err := b.GetPendingProposalsForSigner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	assert.Equal(t, "p1", forAlice[0].ID)

	history, err := b.GetProposalsByMultiSig(ctx, "msig1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBackend().GetProposal(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
}

package storage_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
	"github.com/vultisig/multisigner/storage/memory"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newProposal(id string) *types.TransactionProposal {
	now := time.Now()
	return &types.TransactionProposal{
		ID:              id,
		MultiSigAddress: "msig1",
		Signatures:      map[string]types.SignatureRecord{},
		Threshold:       2,
		Status:          types.ProposalPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
		Version:         1,
	}
}

func TestLRUCacheRejectsOlderVersions(t *testing.T) {
	ctx := context.Background()
	c := storage.NewLRUCache(16, time.Minute)

	p := newProposal("p1")
	p.Version = 3
	require.NoError(t, c.SetProposal(ctx, p))

	older := newProposal("p1")
	older.Version = 2
	older.Status = types.ProposalExpired
	require.NoError(t, c.SetProposal(ctx, older))

	got, ok, err := c.GetProposal(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, types.ProposalPending, got.Status)

	got.Status = types.ProposalExecuted
	again, _, _ := c.GetProposal(ctx, "p1")
	assert.Equal(t, types.ProposalPending, again.Status)

	require.NoError(t, c.DeleteProposal(ctx, "p1"))
	_, ok, err = c.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStorageReadThrough(t *testing.T) {
	ctx := context.Background()
	db := memory.NewBackend()
	lru := storage.NewLRUCache(16, time.Minute)
	cached := storage.NewCachedStorage(db, lru, quietLogger())

	cfg := types.MultiSigConfig{Address: "msig1", Threshold: 2, Signers: []string{"a", "b"}, TimeoutSeconds: 60}
	_, err := cached.InsertMultiSig(ctx, cfg)
	require.NoError(t, err)

	_, ok, _ := lru.GetMultiSig(ctx, "msig1")
	assert.False(t, ok)
	got, err := cached.GetMultiSig(ctx, "msig1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Signers, got.Signers)
	_, ok, _ = lru.GetMultiSig(ctx, "msig1")
	assert.True(t, ok)

	_, err = cached.GetMultiSig(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedStorageUpdateKeepsCacheCurrent(t *testing.T) {
	ctx := context.Background()
	db := memory.NewBackend()
	lru := storage.NewLRUCache(16, time.Minute)
	cached := storage.NewCachedStorage(db, lru, quietLogger())

	require.NoError(t, cached.InsertProposal(ctx, newProposal("p1")))

	p, err := cached.GetProposal(ctx, "p1")
	require.NoError(t, err)
	p.Signatures["a"] = types.SignatureRecord{Signer: "a"}
	require.NoError(t, cached.UpdateProposal(ctx, p))

	fromCache, ok, err := lru.GetProposal(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), fromCache.Version)
	assert.True(t, fromCache.HasSigned("a"))
}

func TestCachedStorageEvictsOnConflict(t *testing.T) {
	ctx := context.Background()
	db := memory.NewBackend()
	lru := storage.NewLRUCache(16, time.Minute)
	cached := storage.NewCachedStorage(db, lru, quietLogger())

	require.NoError(t, cached.InsertProposal(ctx, newProposal("p1")))

	// another node writes behind this node's cache
	direct, err := db.GetProposal(ctx, "p1")
	require.NoError(t, err)
	direct.Status = types.ProposalApproved
	require.NoError(t, db.UpdateProposal(ctx, direct))

	stale, err := cached.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.ProposalPending, stale.Status)

	assert.ErrorIs(t, cached.UpdateProposal(ctx, stale), storage.ErrVersionConflict)

	fresh, err := cached.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.ProposalApproved, fresh.Status)
	assert.Equal(t, int64(2), fresh.Version)
}

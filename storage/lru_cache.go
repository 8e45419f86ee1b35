package storage

import (
	"context"
	"sync"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"

	"github.com/vultisig/multisigner/internal/types"
)

// LRUCache is an in-process Cache for single node deployments.
type LRUCache struct {
	// guards the version check in SetProposal
	mu        sync.Mutex
	proposals *cache.Cache[string, *types.TransactionProposal]
	configs   *cache.Cache[string, types.MultiSigConfig]
	ttl       time.Duration
}

var _ Cache = (*LRUCache)(nil)

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		proposals: cache.New(cache.AsLRU[string, *types.TransactionProposal](lru.WithCapacity(size))),
		configs:   cache.New(cache.AsLRU[string, types.MultiSigConfig](lru.WithCapacity(size))),
		ttl:       ttl,
	}
}

func (c *LRUCache) itemOptions() []cache.ItemOption {
	if c.ttl <= 0 {
		return nil
	}
	return []cache.ItemOption{cache.WithExpiration(c.ttl)}
}

func (c *LRUCache) GetProposal(_ context.Context, id string) (*types.TransactionProposal, bool, error) {
	p, ok := c.proposals.Get(id)
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (c *LRUCache) SetProposal(_ context.Context, p *types.TransactionProposal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.proposals.Get(p.ID); ok && current.Version > p.Version {
		return nil
	}
	c.proposals.Set(p.ID, p.Clone(), c.itemOptions()...)
	return nil
}

func (c *LRUCache) DeleteProposal(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proposals.Delete(id)
	return nil
}

func (c *LRUCache) GetMultiSig(_ context.Context, address string) (*types.MultiSigConfig, bool, error) {
	cfg, ok := c.configs.Get(address)
	if !ok {
		return nil, false, nil
	}
	cfg = cfg.Clone()
	return &cfg, true, nil
}

func (c *LRUCache) SetMultiSig(_ context.Context, cfg *types.MultiSigConfig) error {
	c.configs.Set(cfg.Address, cfg.Clone(), c.itemOptions()...)
	return nil
}

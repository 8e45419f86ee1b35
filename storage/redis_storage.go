package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vultisig/multisigner/config"
	"github.com/vultisig/multisigner/contexthelper"
	"github.com/vultisig/multisigner/internal/types"
)

const (
	proposalKeyPrefix = "multisigner:proposal:"
	multiSigKeyPrefix = "multisigner:multisig:"
)

// setIfNewer writes ARGV[1] unless the cached value carries a higher version.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and decoded['version'] and tonumber(decoded['version']) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisStorage is a Cache shared by every coordinator node.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisStorage)(nil)

func NewRedisStorage(cfg config.Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		client: client,
		ttl:    cfg.Cache.TTL,
	}, nil
}

func (r *RedisStorage) GetProposal(ctx context.Context, id string) (*types.TransactionProposal, bool, error) {
	var p types.TransactionProposal
	ok, err := r.get(ctx, proposalKeyPrefix+id, &p)
	if !ok || err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *RedisStorage) SetProposal(ctx context.Context, p *types.TransactionProposal) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	proposalJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("fail to serialize proposal to json, err: %w", err)
	}
	return setIfNewer.Run(ctx, r.client, []string{proposalKeyPrefix + p.ID}, string(proposalJSON), p.Version, r.ttl.Milliseconds()).Err()
}

func (r *RedisStorage) DeleteProposal(ctx context.Context, id string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Del(ctx, proposalKeyPrefix+id).Err()
}

func (r *RedisStorage) GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, bool, error) {
	var cfg types.MultiSigConfig
	ok, err := r.get(ctx, multiSigKeyPrefix+address, &cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (r *RedisStorage) SetMultiSig(ctx context.Context, cfg *types.MultiSigConfig) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("fail to serialize multisig config to json, err: %w", err)
	}
	return r.client.Set(ctx, multiSigKeyPrefix+cfg.Address, string(cfgJSON), r.ttl).Err()
}

func (r *RedisStorage) get(ctx context.Context, key string, out any) (bool, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return false, ctx.Err()
	}
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("fail to get cache item %s, err: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("fail to deserialize cache item %s, err: %w", key, err)
	}
	return true, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

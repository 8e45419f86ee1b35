package storage

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/internal/types"
)

// Cache holds recently read multi-sig configs and proposals. SetProposal must
// never replace a cached proposal with one of a lower version.
type Cache interface {
	GetProposal(ctx context.Context, id string) (*types.TransactionProposal, bool, error)
	SetProposal(ctx context.Context, p *types.TransactionProposal) error
	DeleteProposal(ctx context.Context, id string) error
	GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, bool, error)
	SetMultiSig(ctx context.Context, cfg *types.MultiSigConfig) error
}

// CachedStorage is a read-through DatabaseStorage. Writes always go to the
// database first; list queries bypass the cache.
type CachedStorage struct {
	DatabaseStorage
	cache  Cache
	logger *logrus.Logger
}

func NewCachedStorage(db DatabaseStorage, cache Cache, logger *logrus.Logger) *CachedStorage {
	return &CachedStorage{
		DatabaseStorage: db,
		cache:           cache,
		logger:          logger,
	}
}

func (s *CachedStorage) GetMultiSig(ctx context.Context, address string) (*types.MultiSigConfig, error) {
	cfg, ok, err := s.cache.GetMultiSig(ctx, address)
	if err != nil {
		s.logger.WithError(err).WithField("address", address).Warn("failed to read multisig from cache")
	}
	if ok {
		return cfg, nil
	}
	cfg, err = s.DatabaseStorage.GetMultiSig(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetMultiSig(ctx, cfg); err != nil {
		s.logger.WithError(err).WithField("address", address).Warn("failed to cache multisig")
	}
	return cfg, nil
}

func (s *CachedStorage) GetProposal(ctx context.Context, id string) (*types.TransactionProposal, error) {
	p, ok, err := s.cache.GetProposal(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("proposal_id", id).Warn("failed to read proposal from cache")
	}
	if ok {
		return p, nil
	}
	p, err = s.DatabaseStorage.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeProposal(ctx, p)
	return p, nil
}

func (s *CachedStorage) InsertProposal(ctx context.Context, p *types.TransactionProposal) error {
	if err := s.DatabaseStorage.InsertProposal(ctx, p); err != nil {
		return err
	}
	s.storeProposal(ctx, p)
	return nil
}

func (s *CachedStorage) UpdateProposal(ctx context.Context, p *types.TransactionProposal) error {
	err := s.DatabaseStorage.UpdateProposal(ctx, p)
	switch {
	case err == nil:
		s.storeProposal(ctx, p)
	case errors.Is(err, ErrVersionConflict):
		// our cached copy is stale, the retry must read from the database
		if err := s.cache.DeleteProposal(ctx, p.ID); err != nil {
			s.logger.WithError(err).WithField("proposal_id", p.ID).Warn("failed to evict proposal from cache")
		}
	}
	return err
}

func (s *CachedStorage) storeProposal(ctx context.Context, p *types.TransactionProposal) {
	if err := s.cache.SetProposal(ctx, p); err != nil {
		s.logger.WithError(err).WithField("proposal_id", p.ID).Warn("failed to cache proposal")
	}
}

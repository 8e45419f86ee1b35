package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/vultisig/multisigner/internal/address"
	"github.com/vultisig/multisigner/internal/types"
	"github.com/vultisig/multisigner/storage"
)

// SignFunc produces a signature over payload on behalf of signer. It is
// supplied per call and never retained.
type SignFunc func(ctx context.Context, signer string, payload []byte) (signature []byte, publicKey []byte, err error)

type Broadcaster interface {
	Broadcast(ctx context.Context, tx types.AssembledTransaction) (txHash string, err error)
}

type BalanceQuery interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

type Notifier interface {
	NotifyProposal(ctx context.Context, signers []string, summary types.ProposalSummary) error
}

type Archiver interface {
	ArchiveExecution(ctx context.Context, tx types.AssembledTransaction, txHash string) error
}

type CoordinatorConfig struct {
	DefaultTimeout time.Duration
	// ExecutionLease is how long an execution claim blocks other executors.
	ExecutionLease     time.Duration
	MaxConflictRetries uint
	// ExecuteAtThreshold makes signing auto-execute once the threshold is met
	// instead of waiting for every signer.
	ExecuteAtThreshold bool
}

const (
	defaultExecutionLease     = 2 * time.Minute
	defaultMaxConflictRetries = 10
	bestEffortTimeout         = 30 * time.Second
)

type Option func(c *Coordinator)

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithBalanceQuery(b BalanceQuery) Option {
	return func(c *Coordinator) { c.balances = b }
}

func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func WithStatsd(sd statsd.ClientInterface) Option {
	return func(c *Coordinator) { c.sdClient = sd }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator drives multi-sig configs and transaction proposals through
// their lifecycle. It holds no proposal state of its own: every decision is
// re-made against the latest stored version and committed with a versioned
// write, so any number of coordinators may share one store.
type Coordinator struct {
	db          storage.DatabaseStorage
	broadcaster Broadcaster
	notifier    Notifier
	balances    BalanceQuery
	archiver    Archiver
	collector   *SignatureCollector
	sdClient    statsd.ClientInterface
	cfg         CoordinatorConfig
	logger      *logrus.Logger
	now         func() time.Time
}

func NewCoordinator(db storage.DatabaseStorage, broadcaster Broadcaster, cfg CoordinatorConfig, logger *logrus.Logger, opts ...Option) (*Coordinator, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	if broadcaster == nil {
		return nil, fmt.Errorf("broadcaster cannot be nil")
	}
	if cfg.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("default timeout must be positive")
	}
	if cfg.ExecutionLease <= 0 {
		cfg.ExecutionLease = defaultExecutionLease
	}
	if cfg.MaxConflictRetries == 0 {
		cfg.MaxConflictRetries = defaultMaxConflictRetries
	}

	c := &Coordinator{
		db:          db,
		broadcaster: broadcaster,
		sdClient:    &statsd.NoOpClient{},
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.collector = NewSignatureCollector(c.now)
	return c, nil
}

// DefaultTimeout is applied to create requests that leave the timeout unset.
func (c *Coordinator) DefaultTimeout() time.Duration {
	return c.cfg.DefaultTimeout
}

func (c *Coordinator) incCounter(name string, tags []string) {
	if err := c.sdClient.Incr(name, tags, 1); err != nil {
		c.logger.Errorf("fail to count metric, err: %v", err)
	}
}

// CreateMultiSig registers a signer group and returns its derived address.
// Registering the same group twice returns the same address.
func (c *Coordinator) CreateMultiSig(ctx context.Context, req types.MultiSigCreateRequest) (string, error) {
	if err := req.IsValid(); err != nil {
		return "", err
	}

	signers := make([]string, len(req.Signers))
	copy(signers, req.Signers)
	sort.Strings(signers)

	cfg := types.MultiSigConfig{
		Address:        address.Derive(signers, req.Threshold),
		Threshold:      req.Threshold,
		Signers:        signers,
		TimeoutSeconds: req.TimeoutSeconds,
		Description:    req.Description,
		CreatedAt:      c.now().UTC(),
	}

	inserted, err := c.db.InsertMultiSig(ctx, cfg)
	if err != nil {
		return "", types.StorageError(err, "failed to store multi-sig %s", cfg.Address)
	}
	if inserted {
		c.incCounter("multisig.created", nil)
		c.logger.WithFields(logrus.Fields{
			"address":   cfg.Address,
			"threshold": cfg.Threshold,
			"signers":   len(cfg.Signers),
		}).Info("Multi-sig created")
	}
	return cfg.Address, nil
}

func (c *Coordinator) GetMultiSig(ctx context.Context, addr string) (*types.MultiSigConfig, error) {
	cfg, err := c.db.GetMultiSig(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NotFoundErrorf("multi-sig %s not found", addr)
		}
		return nil, types.StorageError(err, "failed to load multi-sig %s", addr)
	}
	return cfg, nil
}

// GetMultiSigInfo returns the config with its balance and the number of open
// proposals. A failing balance query only drops the balance.
func (c *Coordinator) GetMultiSigInfo(ctx context.Context, addr string) (*types.MultiSigInfo, error) {
	cfg, err := c.GetMultiSig(ctx, addr)
	if err != nil {
		return nil, err
	}
	info := &types.MultiSigInfo{Config: *cfg}

	p := pool.New().WithContext(ctx)
	if c.balances != nil {
		p.Go(func(ctx context.Context) error {
			balance, err := c.balances.GetBalance(ctx, addr)
			if err != nil {
				c.logger.WithError(err).WithField("address", addr).Warn("failed to query balance")
				return nil
			}
			info.Balance = &balance
			return nil
		})
	}
	p.Go(func(ctx context.Context) error {
		proposals, err := c.GetTransactionHistory(ctx, addr)
		if err != nil {
			return err
		}
		for _, proposal := range proposals {
			if proposal.Status == types.ProposalPending {
				info.PendingCount++
			}
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")

// mutateProposal applies mutate to a fresh copy of the proposal and commits
// it with a versioned write. On a version conflict the proposal is reloaded
// and mutate runs again, so mutate must derive everything from its argument.
func (c *Coordinator) mutateProposal(ctx context.Context, id string, mutate func(p *types.TransactionProposal) error) (*types.TransactionProposal, error) {
	var result *types.TransactionProposal
	err := retry.Do(func() error {
		current, err := c.loadProposal(ctx, id)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := mutate(next); err != nil {
			if errors.Is(err, errNoChange) {
				result = current
				return nil
			}
			return err
		}
		next.UpdatedAt = c.now().UTC()
		if err := c.db.UpdateProposal(ctx, next); err != nil {
			switch {
			case errors.Is(err, storage.ErrVersionConflict):
				return err
			case errors.Is(err, storage.ErrNotFound):
				return types.NotFoundErrorf("proposal %s not found", id)
			default:
				return types.StorageError(err, "failed to update proposal %s", id)
			}
		}
		result = next
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(c.cfg.MaxConflictRetries),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, storage.ErrVersionConflict)
		}),
		retry.Delay(5*time.Millisecond),
		retry.MaxJitter(5*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return nil, types.ConflictError(err, "proposal %s kept changing, gave up after %d attempts", id, c.cfg.MaxConflictRetries)
		}
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) loadProposal(ctx context.Context, id string) (*types.TransactionProposal, error) {
	p, err := c.db.GetProposal(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NotFoundErrorf("proposal %s not found", id)
		}
		return nil, types.StorageError(err, "failed to load proposal %s", id)
	}
	return p, nil
}

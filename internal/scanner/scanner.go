package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexscope/internal/metrics"
	"dexscope/internal/model"
	"dexscope/internal/pool"
	"dexscope/internal/pricecache"
	"dexscope/internal/registry"
)

// ErrFeedTerminated is returned when the log subscription closes or reports a
// non-recoverable error. Recovery is the caller's responsibility.
var ErrFeedTerminated = errors.New("log feed terminated")

// State is the scanner lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PriceChangeFunc is invoked synchronously once per processed event. old is
// nil on the first observation for a pool. It must stay fast and non-failing;
// a slow callback stalls event processing.
type PriceChangeFunc func(desc model.PoolDescriptor, price model.PoolPrice, old *model.PoolPrice)

// ContractCaller performs the one-shot state reads used for seeding.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Config wires a Scanner's collaborators.
type Config struct {
	Registry      *registry.Registry
	Cache         *pricecache.Cache
	Feed          LogFeed
	OnPriceChange PriceChangeFunc
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Scanner consumes the log feed, routes each record to its pool codec,
// updates the price cache, and notifies the callback. One Scanner goroutine
// is the only writer of codec state and cache entries; concurrent readers of
// the cache and registry are safe.
type Scanner struct {
	registry      *registry.Registry
	cache         *pricecache.Cache
	feed          LogFeed
	onPriceChange PriceChangeFunc
	logger        *zap.Logger
	metrics       *metrics.Metrics

	state atomic.Int32
	now   func() time.Time
}

// New validates the wiring and returns an idle Scanner.
func New(cfg Config) (*Scanner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("price cache is nil")
	}
	if cfg.Feed == nil {
		return nil, fmt.Errorf("log feed is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		registry:      cfg.Registry,
		cache:         cfg.Cache,
		feed:          cfg.Feed,
		onPriceChange: cfg.OnPriceChange,
		logger:        logger,
		metrics:       cfg.Metrics,
		now:           time.Now,
	}
	s.metrics.SetTrackedPools(cfg.Registry.Len())
	return s, nil
}

// State reports the lifecycle state.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

// SeedInitialState reads each pool's on-chain state (getReserves/slot0) so
// the first live event has a meaningful previous price. Call failures and
// short results are non-fatal; the pool's state stays unknown until its first
// event.
func (s *Scanner) SeedInitialState(ctx context.Context, caller ContractCaller) error {
	for _, desc := range s.registry.Descriptors() {
		if err := ctx.Err(); err != nil {
			return err
		}

		callData, err := pool.SeedCallData(desc.Protocol)
		if err != nil {
			s.logger.Warn("seed call data", zap.String("pool", desc.Address.Hex()), zap.Error(err))
			continue
		}

		addr := desc.Address
		raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: callData})
		if err != nil {
			s.logger.Warn("seed call failed", zap.String("pool", addr.Hex()), zap.Error(err))
			continue
		}

		_, codec, ok := s.registry.Lookup(addr)
		if !ok {
			continue
		}
		if err := codec.SeedState(raw); err != nil {
			s.logger.Warn("seed decode failed", zap.String("pool", addr.Hex()), zap.Error(err))
		}
	}
	return nil
}

// Run subscribes to the feed and processes records in arrival order until the
// context is cancelled or the feed terminates. Cancellation takes effect
// between records; the in-flight record always completes. Run can be called
// once.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		return fmt.Errorf("scanner is %s, not idle", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	query := ethereum.FilterQuery{
		Addresses: s.registry.Addresses(),
		Topics:    [][]common.Hash{s.registry.EventSignatures()},
	}

	logs, sub, err := s.feed.Subscribe(ctx, query)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("streaming",
		zap.Int("pools", s.registry.Len()),
		zap.Int("signatures", len(query.Topics[0])),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err != nil {
				return fmt.Errorf("%w: %v", ErrFeedTerminated, err)
			}
			return ErrFeedTerminated
		case record, ok := <-logs:
			if !ok {
				return ErrFeedTerminated
			}
			s.process(record)
		}
	}
}

// process handles one record. Lookup misses and decode failures discard the
// record without touching any pool's state.
func (s *Scanner) process(record types.Log) {
	s.metrics.IncLogsReceived()

	desc, codec, ok := s.registry.Lookup(record.Address)
	if !ok {
		// Expected noise from a broad filter.
		s.metrics.IncLookupMisses()
		return
	}

	swap, err := codec.DecodeLog(record)
	if err != nil {
		s.metrics.IncDecodeErrors()
		s.logger.Warn("decode failed",
			zap.String("pool", record.Address.Hex()),
			zap.String("pair", desc.Pair()),
			zap.Error(err),
		)
		return
	}

	price := model.NewPoolPrice(record.Address, swap.Price, uint64(s.now().Unix()))
	oldPrice, hadOld := s.cache.Swap(record.Address, price)
	s.metrics.IncPriceUpdates()

	var old *model.PoolPrice
	if hadOld {
		old = &oldPrice
	}
	if s.onPriceChange != nil {
		s.onPriceChange(desc, price, old)
	}
}

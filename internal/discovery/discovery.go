package discovery

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexscope/internal/config"
	"dexscope/internal/model"
)

// Discoverer fetches tracked-pool candidates from every enabled protocol.
type Discoverer struct {
	client       *SubgraphClient
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration
}

// NewDiscoverer builds a Discoverer.
func NewDiscoverer(logger *zap.Logger, maxRetries int, retryBackoff time.Duration) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		client:       NewSubgraphClient(logger),
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// Discover queries each protocol's subgraph with retry and concatenates the
// results. A protocol that keeps failing is skipped, not fatal.
func (d *Discoverer) Discover(ctx context.Context, protocols []config.ProtocolConfig, discovery config.DiscoveryConfig) ([]model.PoolDescriptor, error) {
	var all []model.PoolDescriptor
	for _, protocol := range protocols {
		var pools []model.PoolDescriptor
		err := withRetry(ctx, d.maxRetries, d.retryBackoff, func(ctx context.Context) error {
			var fetchErr error
			pools, fetchErr = d.client.FetchPools(ctx, protocol, discovery)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("discovery failed for protocol",
				zap.String("protocol", protocol.Name),
				zap.Error(err),
			)
			continue
		}
		d.logger.Info("discovered pools",
			zap.String("protocol", protocol.Name),
			zap.Int("count", len(pools)),
		)
		all = append(all, pools...)
	}
	return all, nil
}

// FilterByTokenWhitelist keeps pools whose both tokens are whitelisted. An
// empty whitelist passes everything through.
func FilterByTokenWhitelist(pools []model.PoolDescriptor, whitelist map[common.Address]struct{}) []model.PoolDescriptor {
	if len(whitelist) == 0 {
		return pools
	}
	out := make([]model.PoolDescriptor, 0, len(pools))
	for _, pool := range pools {
		if _, ok := whitelist[pool.Token0]; !ok {
			continue
		}
		if _, ok := whitelist[pool.Token1]; !ok {
			continue
		}
		out = append(out, pool)
	}
	return out
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

package scanner

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"dexscope/internal/chain"
)

// LogFeed is the external source of ordered log records. The scanner does not
// manage reconnection; a terminated feed ends the loop.
type LogFeed interface {
	Subscribe(ctx context.Context, query ethereum.FilterQuery) (<-chan types.Log, ethereum.Subscription, error)
}

// ChainFeed delivers logs from a websocket RPC subscription.
type ChainFeed struct {
	client *chain.Client
}

// NewChainFeed wraps a chain client as a LogFeed.
func NewChainFeed(client *chain.Client) *ChainFeed {
	return &ChainFeed{client: client}
}

// Subscribe opens an eth_subscribe log filter on the node.
func (f *ChainFeed) Subscribe(ctx context.Context, query ethereum.FilterQuery) (<-chan types.Log, ethereum.Subscription, error) {
	logs := make(chan types.Log, 256)
	sub, err := f.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, nil, err
	}
	return logs, sub, nil
}

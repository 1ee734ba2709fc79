package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// Protocol tags the pricing family of a pool.
type Protocol string

const (
	// ProtocolV2 is a constant-product pool (price = reserve ratio).
	ProtocolV2 Protocol = "UniswapV2"
	// ProtocolV3 is a concentrated-liquidity pool (price from sqrtPriceX96).
	ProtocolV3 Protocol = "UniswapV3"
)

// PoolDescriptor is the immutable metadata of a tracked pool. It is built at
// discovery time and never mutated afterwards.
type PoolDescriptor struct {
	Address        common.Address `json:"address"`
	Protocol       Protocol       `json:"protocol"`
	Token0         common.Address `json:"token0"`
	Token0Symbol   string         `json:"token0_symbol"`
	Token0Decimals uint8          `json:"token0_decimals"`
	Token1         common.Address `json:"token1"`
	Token1Symbol   string         `json:"token1_symbol"`
	Token1Decimals uint8          `json:"token1_decimals"`
	Fee            uint32         `json:"fee"`
	LiquidityUSD   float64        `json:"liquidity_usd"`
	Volume24hUSD   float64        `json:"volume_24h_usd"`
	LastSeen       string         `json:"last_seen"`
}

// Pair returns the human-readable token pair, e.g. "WETH/USDC".
func (p PoolDescriptor) Pair() string {
	return p.Token0Symbol + "/" + p.Token1Symbol
}

package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// PoolPrice is the most recently observed price of a pool.
// Token1Price is the reciprocal of Token0Price, zero-guarded.
type PoolPrice struct {
	PoolAddress common.Address `json:"pool_address"`
	Token0Price float64        `json:"token0_price"`
	Token1Price float64        `json:"token1_price"`
	Timestamp   uint64         `json:"timestamp"`
}

// NewPoolPrice builds a PoolPrice from the token0-denominated price.
func NewPoolPrice(pool common.Address, token0Price float64, timestamp uint64) PoolPrice {
	token1Price := 0.0
	if token0Price > 0 {
		token1Price = 1.0 / token0Price
	}
	return PoolPrice{
		PoolAddress: pool,
		Token0Price: token0Price,
		Token1Price: token1Price,
		Timestamp:   timestamp,
	}
}

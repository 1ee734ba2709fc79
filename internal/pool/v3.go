package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexscope/internal/model"
)

// ConcentratedLiquidity prices a V3-style pool from its sqrtPriceX96. Every
// Swap event carries the post-swap value, so decode replaces the state.
type ConcentratedLiquidity struct {
	address        common.Address
	token0Decimals uint8
	token1Decimals uint8

	sqrtPriceX96 *big.Int

	swapID common.Hash
}

// NewConcentratedLiquidity builds a concentrated-liquidity codec with unknown state.
func NewConcentratedLiquidity(address common.Address, token0Decimals, token1Decimals uint8) (*ConcentratedLiquidity, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return &ConcentratedLiquidity{
		address:        address,
		token0Decimals: token0Decimals,
		token1Decimals: token1Decimals,
		sqrtPriceX96:   new(big.Int),
		swapID:         poolABI.Events["Swap"].ID,
	}, nil
}

// DecodeLog handles Swap(sender, recipient, int256 amount0, int256 amount1,
// uint160 sqrtPriceX96, uint128 liquidity, int24 tick).
func (p *ConcentratedLiquidity) DecodeLog(log types.Log) (model.SwapData, error) {
	if len(log.Topics) == 0 {
		return model.SwapData{}, fmt.Errorf("log has no topics: %w", ErrMalformedLog)
	}
	if log.Topics[0] != p.swapID {
		return model.SwapData{}, fmt.Errorf("topic0 %s: %w", log.Topics[0].Hex(), ErrUnknownEvent)
	}
	if len(log.Data) < 160 {
		return model.SwapData{}, fmt.Errorf("swap data is %d bytes, want 160: %w", len(log.Data), ErrMalformedLog)
	}

	p.sqrtPriceX96 = word(log.Data, 64)

	return model.SwapData{
		Sender:    topicAddress(log.Topics, 1),
		Recipient: topicAddress(log.Topics, 2),
		Amount0:   signedWord(log.Data, 0),
		Amount1:   signedWord(log.Data, 32),
		Price:     p.CurrentPrice(),
	}, nil
}

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// CurrentPrice returns (sqrtPriceX96/2^96)^2 scaled by 10^(d0-d1). The square
// is taken in float64 to avoid overflowing a squared 256-bit value; the
// precision loss is an accepted trade-off.
func (p *ConcentratedLiquidity) CurrentPrice() float64 {
	sqrt := bigToFloat(p.sqrtPriceX96) / bigToFloat(q96)
	return sqrt * sqrt * decimalAdjustment(p.token0Decimals, p.token1Decimals)
}

// SeedState initializes sqrtPriceX96 from a slot0() call result. Snapshots
// shorter than one word leave the state unknown.
func (p *ConcentratedLiquidity) SeedState(raw []byte) error {
	if len(raw) < 32 {
		return nil
	}
	p.sqrtPriceX96 = word(raw, 0)
	return nil
}

func (p *ConcentratedLiquidity) Address() common.Address {
	return p.address
}

func (p *ConcentratedLiquidity) EventSignatures() []common.Hash {
	return []common.Hash{p.swapID}
}

func (p *ConcentratedLiquidity) Name() string {
	return "Uniswap V3"
}

package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexscope/internal/model"
)

// ConstantProduct prices a V2-style pair from its token reserves. Sync events
// replace the reserves and are authoritative for price; Swap events carry no
// reserves, so their price is derived from the last-synced state.
type ConstantProduct struct {
	address        common.Address
	token0Decimals uint8
	token1Decimals uint8

	reserve0 *big.Int
	reserve1 *big.Int

	swapID common.Hash
	syncID common.Hash
}

// NewConstantProduct builds a constant-product codec with unknown reserves.
func NewConstantProduct(address common.Address, token0Decimals, token1Decimals uint8) (*ConstantProduct, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	return &ConstantProduct{
		address:        address,
		token0Decimals: token0Decimals,
		token1Decimals: token1Decimals,
		reserve0:       new(big.Int),
		reserve1:       new(big.Int),
		swapID:         pairABI.Events["Swap"].ID,
		syncID:         pairABI.Events["Sync"].ID,
	}, nil
}

// DecodeLog handles Sync (new reserves) and Swap (transfer amounts) events.
func (p *ConstantProduct) DecodeLog(log types.Log) (model.SwapData, error) {
	if len(log.Topics) == 0 {
		return model.SwapData{}, fmt.Errorf("log has no topics: %w", ErrMalformedLog)
	}

	switch log.Topics[0] {
	case p.syncID:
		// Sync(uint112 reserve0, uint112 reserve1), both in data.
		if len(log.Data) < 64 {
			return model.SwapData{}, fmt.Errorf("sync data is %d bytes, want 64: %w", len(log.Data), ErrMalformedLog)
		}
		p.reserve0 = word(log.Data, 0)
		p.reserve1 = word(log.Data, 32)
		return model.SwapData{
			Sender:  topicAddress(log.Topics, 1),
			Amount0: new(big.Int),
			Amount1: new(big.Int),
			Price:   p.CurrentPrice(),
		}, nil

	case p.swapID:
		// Swap(amount0In, amount1In, amount0Out, amount1Out) carries no new
		// reserves; the price comes from the last-synced state.
		amount0 := new(big.Int)
		amount1 := new(big.Int)
		if len(log.Data) >= 32 {
			amount0 = word(log.Data, 0)
		}
		if len(log.Data) >= 64 {
			amount1 = word(log.Data, 32)
		}
		return model.SwapData{
			Sender:    topicAddress(log.Topics, 1),
			Recipient: topicAddress(log.Topics, 2),
			Amount0:   amount0,
			Amount1:   amount1,
			Price:     p.CurrentPrice(),
		}, nil

	default:
		return model.SwapData{}, fmt.Errorf("topic0 %s: %w", log.Topics[0].Hex(), ErrUnknownEvent)
	}
}

// CurrentPrice returns reserve1/reserve0 scaled by 10^(d0-d1), or 0 when
// reserve0 is zero.
func (p *ConstantProduct) CurrentPrice() float64 {
	if p.reserve0.Sign() == 0 {
		return 0.0
	}
	price := bigToFloat(p.reserve1) / bigToFloat(p.reserve0)
	return price * decimalAdjustment(p.token0Decimals, p.token1Decimals)
}

// SeedState initializes reserves from a getReserves() call result. Snapshots
// shorter than two words leave the state unknown.
func (p *ConstantProduct) SeedState(raw []byte) error {
	if len(raw) < 64 {
		return nil
	}
	p.reserve0 = word(raw, 0)
	p.reserve1 = word(raw, 32)
	return nil
}

func (p *ConstantProduct) Address() common.Address {
	return p.address
}

func (p *ConstantProduct) EventSignatures() []common.Hash {
	return []common.Hash{p.swapID, p.syncID}
}

func (p *ConstantProduct) Name() string {
	return "Uniswap V2"
}

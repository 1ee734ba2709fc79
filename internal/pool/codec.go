package pool

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexscope/internal/model"
)

var (
	// ErrMalformedLog marks a log whose payload is shorter than the matched
	// event's fixed encoding requires.
	ErrMalformedLog = errors.New("malformed log")
	// ErrUnknownEvent marks a topic0 the codec does not recognize.
	ErrUnknownEvent = errors.New("unknown event")
)

// Codec decodes a pool's event logs and derives its current price. One mutable
// instance exists per tracked pool, owned by the registry entry for that pool.
// Decode either fully replaces the relevant state or fails without mutating it.
type Codec interface {
	// DecodeLog parses a raw log into swap data, updating internal state when
	// the event carries new state (V2 Sync reserves, V3 Swap sqrtPriceX96).
	DecodeLog(log types.Log) (model.SwapData, error)
	// CurrentPrice derives the token0-denominated price from internal state.
	CurrentPrice() float64
	// SeedState initializes state from a one-time contract read. Snapshots
	// shorter than required are silently skipped.
	SeedState(raw []byte) error
	// Address is the pool's contract address.
	Address() common.Address
	// EventSignatures are the topic0 hashes this codec recognizes.
	EventSignatures() []common.Hash
	// Name is the protocol family name, e.g. "Uniswap V2".
	Name() string
}

// NewCodec selects the codec variant for a descriptor's protocol tag.
func NewCodec(desc model.PoolDescriptor) (Codec, error) {
	switch desc.Protocol {
	case model.ProtocolV2:
		return NewConstantProduct(desc.Address, desc.Token0Decimals, desc.Token1Decimals)
	case model.ProtocolV3:
		return NewConcentratedLiquidity(desc.Address, desc.Token0Decimals, desc.Token1Decimals)
	default:
		return nil, fmt.Errorf("unsupported protocol: %q", desc.Protocol)
	}
}

// SeedCallData packs the eth_call payload that reads a pool's initial state:
// getReserves() for constant-product pools, slot0() for concentrated-liquidity.
func SeedCallData(protocol model.Protocol) ([]byte, error) {
	switch protocol {
	case model.ProtocolV2:
		pairABI, err := V2PairABI()
		if err != nil {
			return nil, err
		}
		return pairABI.Pack("getReserves")
	case model.ProtocolV3:
		poolABI, err := V3PoolABI()
		if err != nil {
			return nil, err
		}
		return poolABI.Pack("slot0")
	default:
		return nil, fmt.Errorf("unsupported protocol: %q", protocol)
	}
}

// word reads the 32-byte big-endian word at offset as an unsigned integer.
// Callers must check length beforehand.
func word(data []byte, offset int) *big.Int {
	return new(big.Int).SetBytes(data[offset : offset+32])
}

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// signedWord reads the 32-byte word at offset as a two's-complement int256.
func signedWord(data []byte, offset int) *big.Int {
	v := word(data, offset)
	if v.Bit(255) == 1 {
		v.Sub(v, twoPow256)
	}
	return v
}

// topicAddress extracts the address stored in the low 20 bytes of a topic
// slot, or the zero address when the slot is absent.
func topicAddress(topics []common.Hash, index int) common.Address {
	if index >= len(topics) {
		return common.Address{}
	}
	return common.BytesToAddress(topics[index][12:])
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// decimalAdjustment returns 10^(d0-d1), the factor that converts a raw
// token1/token0 ratio into a human-scale price.
func decimalAdjustment(token0Decimals, token1Decimals uint8) float64 {
	return math.Pow(10, float64(int(token0Decimals))-float64(int(token1Decimals)))
}

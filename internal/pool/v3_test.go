package pool

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexscope/internal/model"
)

func newV3(t *testing.T) *ConcentratedLiquidity {
	t.Helper()
	codec, err := NewConcentratedLiquidity(common.HexToAddress("0x4444444444444444444444444444444444444444"), 18, 6)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

// sqrtPriceFor returns the sqrtPriceX96 encoding a given human-scale price
// for an (18, 6) decimals pair.
func sqrtPriceFor(price float64) *big.Int {
	raw := price / math.Pow(10, 12)
	sqrt := math.Sqrt(raw) * math.Pow(2, 96)
	v, _ := new(big.Float).SetFloat64(sqrt).Int(nil)
	return v
}

func v3SwapLog(codec *ConcentratedLiquidity, amount0, amount1, sqrtPrice *big.Int, sender, recipient common.Address) types.Log {
	return types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{codec.swapID, topicFromAddress(sender), topicFromAddress(recipient)},
		Data:    packWords(amount0, amount1, sqrtPrice, big.NewInt(987654321), big.NewInt(-15)),
	}
}

func TestConcentratedLiquiditySwapPrice(t *testing.T) {
	codec := newV3(t)

	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	recipient := common.HexToAddress("0x6666666666666666666666666666666666666666")

	swap, err := codec.DecodeLog(v3SwapLog(codec, big.NewInt(-1000), big.NewInt(2000), sqrtPriceFor(2000.0), sender, recipient))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if math.Abs(swap.Price-2000.0) > 1.0 {
		t.Fatalf("price mismatch: %f", swap.Price)
	}
	if math.Abs(codec.CurrentPrice()-2000.0) > 1.0 {
		t.Fatalf("current price mismatch: %f", codec.CurrentPrice())
	}
	if swap.Amount0.Cmp(big.NewInt(-1000)) != 0 || swap.Amount1.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("signed amounts mismatch: %s %s", swap.Amount0, swap.Amount1)
	}
	if swap.Sender != sender || swap.Recipient != recipient {
		t.Fatalf("address mismatch: %+v", swap)
	}
}

func TestConcentratedLiquidityShortData(t *testing.T) {
	codec := newV3(t)

	_, err := codec.DecodeLog(types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{codec.swapID},
		Data:    make([]byte, 96),
	})
	if !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog, got %v", err)
	}
	if codec.CurrentPrice() != 0.0 {
		t.Fatalf("state mutated on failed decode: %f", codec.CurrentPrice())
	}
}

func TestConcentratedLiquidityUnknownTopic(t *testing.T) {
	codec := newV3(t)

	_, err := codec.DecodeLog(types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{common.HexToHash("0x01")},
		Data:    make([]byte, 160),
	})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestConcentratedLiquiditySeedState(t *testing.T) {
	codec := newV3(t)

	// slot0() returns sqrtPriceX96 in the first word; trailing fields ignored.
	raw := packWords(sqrtPriceFor(2000.0), big.NewInt(-15), big.NewInt(0))
	if err := codec.SeedState(raw); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if math.Abs(codec.CurrentPrice()-2000.0) > 1.0 {
		t.Fatalf("seeded price mismatch: %f", codec.CurrentPrice())
	}
}

func TestConcentratedLiquiditySeedStateTooShort(t *testing.T) {
	codec := newV3(t)

	if err := codec.SeedState(make([]byte, 16)); err != nil {
		t.Fatalf("short seed must not fail: %v", err)
	}
	if codec.CurrentPrice() != 0.0 {
		t.Fatalf("short seed mutated state: %f", codec.CurrentPrice())
	}
}

func TestConcentratedLiquidityEventSignatures(t *testing.T) {
	codec := newV3(t)

	sigs := codec.EventSignatures()
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(sigs))
	}
	want := common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	if sigs[0] != want {
		t.Fatalf("signature mismatch: %s", sigs[0].Hex())
	}
}

func TestNewCodecDispatch(t *testing.T) {
	v2, err := NewCodec(modelDescriptor("UniswapV2"))
	if err != nil {
		t.Fatalf("v2 codec: %v", err)
	}
	if v2.Name() != "Uniswap V2" {
		t.Fatalf("wrong v2 codec: %s", v2.Name())
	}

	v3, err := NewCodec(modelDescriptor("UniswapV3"))
	if err != nil {
		t.Fatalf("v3 codec: %v", err)
	}
	if v3.Name() != "Uniswap V3" {
		t.Fatalf("wrong v3 codec: %s", v3.Name())
	}

	if _, err := NewCodec(modelDescriptor("Balancer")); err == nil {
		t.Fatalf("expected error for unsupported protocol")
	}
}

func modelDescriptor(protocol model.Protocol) model.PoolDescriptor {
	return model.PoolDescriptor{
		Address:        common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Protocol:       protocol,
		Token0Decimals: 18,
		Token1Decimals: 6,
	}
}

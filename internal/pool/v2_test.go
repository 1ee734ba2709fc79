package pool

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func beWord(v *big.Int) []byte {
	if v.Sign() < 0 {
		v = new(big.Int).Add(v, twoPow256)
	}
	out := make([]byte, 32)
	v.FillBytes(out)
	return out
}

func packWords(values ...*big.Int) []byte {
	out := make([]byte, 0, 32*len(values))
	for _, v := range values {
		out = append(out, beWord(v)...)
	}
	return out
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func pow10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

func newV2(t *testing.T) *ConstantProduct {
	t.Helper()
	codec, err := NewConstantProduct(common.HexToAddress("0x1111111111111111111111111111111111111111"), 18, 6)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func syncLog(codec *ConstantProduct, reserve0, reserve1 *big.Int) types.Log {
	return types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{codec.syncID},
		Data:    packWords(reserve0, reserve1),
	}
}

func TestConstantProductSyncPrice(t *testing.T) {
	codec := newV2(t)

	// 1 ETH = 2000 USDC: r0 = 10^18, r1 = 2000 * 10^6.
	reserve0 := pow10(18)
	reserve1 := new(big.Int).Mul(big.NewInt(2000), pow10(6))

	swap, err := codec.DecodeLog(syncLog(codec, reserve0, reserve1))
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if math.Abs(swap.Price-2000.0) > 1e-6 {
		t.Fatalf("price mismatch: %f", swap.Price)
	}
	if math.Abs(codec.CurrentPrice()-2000.0) > 1e-6 {
		t.Fatalf("current price mismatch: %f", codec.CurrentPrice())
	}
}

func TestConstantProductSwapUsesSyncedReserves(t *testing.T) {
	codec := newV2(t)

	if _, err := codec.DecodeLog(syncLog(codec, pow10(18), new(big.Int).Mul(big.NewInt(2000), pow10(6)))); err != nil {
		t.Fatalf("decode sync: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	// Swap amounts must not change the price; only Sync carries reserves.
	swap, err := codec.DecodeLog(types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{codec.swapID, topicFromAddress(sender), topicFromAddress(recipient)},
		Data:    packWords(big.NewInt(12345), big.NewInt(0), big.NewInt(0), big.NewInt(67890)),
	})
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if math.Abs(swap.Price-2000.0) > 1e-6 {
		t.Fatalf("swap price not from synced reserves: %f", swap.Price)
	}
	if swap.Amount0.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("amount0 mismatch: %s", swap.Amount0)
	}
	if swap.Sender != sender || swap.Recipient != recipient {
		t.Fatalf("address mismatch: %+v", swap)
	}
}

func TestConstantProductShortSyncData(t *testing.T) {
	codec := newV2(t)

	_, err := codec.DecodeLog(types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{codec.syncID},
		Data:    make([]byte, 32),
	})
	if !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog, got %v", err)
	}
	if codec.CurrentPrice() != 0.0 {
		t.Fatalf("state mutated on failed decode: %f", codec.CurrentPrice())
	}
}

func TestConstantProductUnknownTopic(t *testing.T) {
	codec := newV2(t)

	_, err := codec.DecodeLog(types.Log{
		Address: codec.Address(),
		Topics:  []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:    make([]byte, 64),
	})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}

	if _, err := codec.DecodeLog(types.Log{Address: codec.Address()}); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog for empty topics, got %v", err)
	}
}

func TestConstantProductZeroReserve(t *testing.T) {
	codec := newV2(t)
	if codec.CurrentPrice() != 0.0 {
		t.Fatalf("expected zero price for unknown reserves: %f", codec.CurrentPrice())
	}

	swap, err := codec.DecodeLog(syncLog(codec, big.NewInt(0), pow10(6)))
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if swap.Price != 0.0 {
		t.Fatalf("expected zero price for zero reserve0: %f", swap.Price)
	}
}

func TestConstantProductSeedState(t *testing.T) {
	codec := newV2(t)

	// getReserves() returns (uint112, uint112, uint32) as three words.
	raw := packWords(pow10(18), new(big.Int).Mul(big.NewInt(2000), pow10(6)), big.NewInt(1700000000))
	if err := codec.SeedState(raw); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if math.Abs(codec.CurrentPrice()-2000.0) > 1e-6 {
		t.Fatalf("seeded price mismatch: %f", codec.CurrentPrice())
	}
}

func TestConstantProductSeedStateTooShort(t *testing.T) {
	codec := newV2(t)

	if err := codec.SeedState(make([]byte, 32)); err != nil {
		t.Fatalf("short seed must not fail: %v", err)
	}
	if codec.CurrentPrice() != 0.0 {
		t.Fatalf("short seed mutated state: %f", codec.CurrentPrice())
	}
}

func TestConstantProductEventSignatures(t *testing.T) {
	codec := newV2(t)

	sigs := codec.EventSignatures()
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}

	wantSwap := common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
	wantSync := common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50438f83b4a47a005e0")
	if sigs[0] != wantSwap || sigs[1] != wantSync {
		t.Fatalf("signature mismatch: %v", sigs)
	}
}

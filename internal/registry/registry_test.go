package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"dexscope/internal/model"
)

func descriptor(addr string, protocol model.Protocol) model.PoolDescriptor {
	return model.PoolDescriptor{
		Address:        common.HexToAddress(addr),
		Protocol:       protocol,
		Token0Decimals: 18,
		Token1Decimals: 6,
	}
}

func TestRegistryLookup(t *testing.T) {
	v2 := descriptor("0x01", model.ProtocolV2)
	v3 := descriptor("0x02", model.ProtocolV3)

	reg, err := New([]model.PoolDescriptor{v2, v3})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 pools, got %d", reg.Len())
	}

	desc, codec, ok := reg.Lookup(v2.Address)
	if !ok {
		t.Fatalf("v2 pool not found")
	}
	if desc.Protocol != model.ProtocolV2 || codec.Name() != "Uniswap V2" {
		t.Fatalf("wrong codec for v2 pool: %s", codec.Name())
	}

	_, codec, ok = reg.Lookup(v3.Address)
	if !ok {
		t.Fatalf("v3 pool not found")
	}
	if codec.Name() != "Uniswap V3" {
		t.Fatalf("wrong codec for v3 pool: %s", codec.Name())
	}

	if _, _, ok := reg.Lookup(common.HexToAddress("0xff")); ok {
		t.Fatalf("lookup of untracked address must fail")
	}
}

func TestRegistryEventSignaturesUnion(t *testing.T) {
	reg, err := New([]model.PoolDescriptor{
		descriptor("0x01", model.ProtocolV2),
		descriptor("0x02", model.ProtocolV2),
		descriptor("0x03", model.ProtocolV3),
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	// Two V2 pools share signatures: union is v2 swap + v2 sync + v3 swap.
	sigs := reg.EventSignatures()
	if len(sigs) != 3 {
		t.Fatalf("expected 3 deduplicated signatures, got %d", len(sigs))
	}

	addrs := reg.Addresses()
	if len(addrs) != 3 || addrs[0] != common.HexToAddress("0x01") {
		t.Fatalf("addresses mismatch: %v", addrs)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := New([]model.PoolDescriptor{
		descriptor("0x01", model.ProtocolV2),
		descriptor("0x01", model.ProtocolV3),
	})
	if err == nil {
		t.Fatalf("expected error for duplicate address")
	}
}

func TestRegistryRejectsUnknownProtocol(t *testing.T) {
	_, err := New([]model.PoolDescriptor{descriptor("0x01", "Curve")})
	if err == nil {
		t.Fatalf("expected error for unknown protocol")
	}
}

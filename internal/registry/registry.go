package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dexscope/internal/model"
	"dexscope/internal/pool"
)

type entry struct {
	desc  model.PoolDescriptor
	codec pool.Codec
}

// Registry maps pool addresses to their descriptor and live codec. It is
// built once at start-up and read-only afterwards; the only mutation path is
// through a codec's own DecodeLog/SeedState, driven by the single writer.
type Registry struct {
	entries map[common.Address]*entry
	order   []common.Address
}

// New builds a registry, selecting each pool's codec variant from its
// protocol tag.
func New(pools []model.PoolDescriptor) (*Registry, error) {
	r := &Registry{entries: make(map[common.Address]*entry, len(pools))}
	for _, desc := range pools {
		if _, exists := r.entries[desc.Address]; exists {
			return nil, fmt.Errorf("duplicate pool address: %s", desc.Address.Hex())
		}
		codec, err := pool.NewCodec(desc)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", desc.Address.Hex(), err)
		}
		r.entries[desc.Address] = &entry{desc: desc, codec: codec}
		r.order = append(r.order, desc.Address)
	}
	return r, nil
}

// Lookup returns the descriptor and codec for an address. The third return is
// false when the address is not tracked.
func (r *Registry) Lookup(address common.Address) (model.PoolDescriptor, pool.Codec, bool) {
	e, ok := r.entries[address]
	if !ok {
		return model.PoolDescriptor{}, nil, false
	}
	return e.desc, e.codec, true
}

// Addresses returns the tracked pool addresses in insertion order.
func (r *Registry) Addresses() []common.Address {
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// EventSignatures returns the deduplicated union of every codec's recognized
// topic0 hashes, for building the log subscription filter.
func (r *Registry) EventSignatures() []common.Hash {
	seen := make(map[common.Hash]struct{})
	var out []common.Hash
	for _, addr := range r.order {
		for _, sig := range r.entries[addr].codec.EventSignatures() {
			if _, ok := seen[sig]; ok {
				continue
			}
			seen[sig] = struct{}{}
			out = append(out, sig)
		}
	}
	return out
}

// Descriptors returns the tracked pool descriptors in insertion order.
func (r *Registry) Descriptors() []model.PoolDescriptor {
	out := make([]model.PoolDescriptor, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.entries[addr].desc)
	}
	return out
}

// Len returns the number of tracked pools.
func (r *Registry) Len() int {
	return len(r.entries)
}

package pricecache

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"

	"dexscope/internal/model"
)

// Cache is the single source of truth for the last observed price per pool.
// Swap is atomic per address: two events for the same pool can never both
// observe the same previous entry. Reads from other goroutines are safe while
// the subscription loop writes.
type Cache struct {
	prices *xsync.Map[common.Address, model.PoolPrice]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{prices: xsync.NewMap[common.Address, model.PoolPrice]()}
}

// Swap stores the new price and returns the entry it replaced. The second
// return is false on the first observation for the address.
func (c *Cache) Swap(address common.Address, price model.PoolPrice) (model.PoolPrice, bool) {
	return c.prices.LoadAndStore(address, price)
}

// Get returns the last observed price for an address.
func (c *Cache) Get(address common.Address) (model.PoolPrice, bool) {
	return c.prices.Load(address)
}

// Len returns the number of pools with an observed price.
func (c *Cache) Len() int {
	return c.prices.Size()
}

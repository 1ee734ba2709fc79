package storage

import (
	"context"

	"dexscope/internal/model"
)

// PoolStore persists the discovered pool catalog between runs so the scanner
// can start without re-querying the subgraphs.
type PoolStore interface {
	SavePools(ctx context.Context, pools []model.PoolDescriptor) error
	LoadPools(ctx context.Context) ([]model.PoolDescriptor, error)
}

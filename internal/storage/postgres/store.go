package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexscope/internal/model"
)

// Store provides Postgres persistence for the pool catalog.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SavePools upserts the discovered pool catalog.
func (s *Store) SavePools(ctx context.Context, pools []model.PoolDescriptor) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				address, protocol, token0, token0_symbol, token0_decimals,
				token1, token1_symbol, token1_decimals, fee,
				liquidity_usd, volume_24h_usd, last_seen, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (address)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				token0 = EXCLUDED.token0,
				token0_symbol = EXCLUDED.token0_symbol,
				token0_decimals = EXCLUDED.token0_decimals,
				token1 = EXCLUDED.token1,
				token1_symbol = EXCLUDED.token1_symbol,
				token1_decimals = EXCLUDED.token1_decimals,
				fee = EXCLUDED.fee,
				liquidity_usd = EXCLUDED.liquidity_usd,
				volume_24h_usd = EXCLUDED.volume_24h_usd,
				last_seen = EXCLUDED.last_seen,
				updated_at = now()
		`,
			pool.Address.Hex(),
			string(pool.Protocol),
			pool.Token0.Hex(),
			pool.Token0Symbol,
			int16(pool.Token0Decimals),
			pool.Token1.Hex(),
			pool.Token1Symbol,
			int16(pool.Token1Decimals),
			int64(pool.Fee),
			pool.LiquidityUSD,
			pool.Volume24hUSD,
			pool.LastSeen,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPools reads the full pool catalog.
func (s *Store) LoadPools(ctx context.Context) ([]model.PoolDescriptor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, protocol, token0, token0_symbol, token0_decimals,
		       token1, token1_symbol, token1_decimals, fee,
		       liquidity_usd, volume_24h_usd, last_seen
		FROM pools
		ORDER BY liquidity_usd DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.PoolDescriptor
	for rows.Next() {
		var (
			address, protocol, token0, token0Symbol, token1, token1Symbol, lastSeen string
			token0Decimals, token1Decimals                                          int16
			fee                                                                     int64
			liquidityUSD, volume24hUSD                                              float64
		)
		if err := rows.Scan(
			&address, &protocol, &token0, &token0Symbol, &token0Decimals,
			&token1, &token1Symbol, &token1Decimals, &fee,
			&liquidityUSD, &volume24hUSD, &lastSeen,
		); err != nil {
			return nil, err
		}
		pools = append(pools, model.PoolDescriptor{
			Address:        common.HexToAddress(address),
			Protocol:       model.Protocol(protocol),
			Token0:         common.HexToAddress(token0),
			Token0Symbol:   token0Symbol,
			Token0Decimals: uint8(token0Decimals),
			Token1:         common.HexToAddress(token1),
			Token1Symbol:   token1Symbol,
			Token1Decimals: uint8(token1Decimals),
			Fee:            uint32(fee),
			LiquidityUSD:   liquidityUSD,
			Volume24hUSD:   volume24hUSD,
			LastSeen:       lastSeen,
		})
	}
	return pools, rows.Err()
}

package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexscope/internal/config"
	"dexscope/internal/model"
)

const v2PairsQuery = `
query GetV2Pairs($first: Int!, $minLiquidityUSD: BigDecimal!) {
    pairs(
        first: $first
        orderBy: reserveUSD
        orderDirection: desc
        where: { reserveUSD_gte: $minLiquidityUSD }
    ) {
        id
        token0 { id symbol decimals }
        token1 { id symbol decimals }
        reserveUSD
        volumeUSD
    }
}`

const v3PoolsQuery = `
query GetV3Pools($first: Int!, $minLiquidityUSD: BigDecimal!) {
    pools(
        first: $first
        orderBy: totalValueLockedUSD
        orderDirection: desc
        where: { totalValueLockedUSD_gte: $minLiquidityUSD }
    ) {
        id
        token0 { id symbol decimals }
        token1 { id symbol decimals }
        feeTier
        totalValueLockedUSD
        volumeUSD
    }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type subgraphToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type subgraphPool struct {
	ID                  string        `json:"id"`
	Token0              subgraphToken `json:"token0"`
	Token1              subgraphToken `json:"token1"`
	FeeTier             string        `json:"feeTier"`
	ReserveUSD          string        `json:"reserveUSD"`
	TotalValueLockedUSD string        `json:"totalValueLockedUSD"`
	VolumeUSD           string        `json:"volumeUSD"`
}

type graphQLResponse struct {
	Data struct {
		Pairs []subgraphPool `json:"pairs"`
		Pools []subgraphPool `json:"pools"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// SubgraphClient queries a protocol's subgraph for its largest pools. There is
// no GraphQL client dependency; the two fixed queries go over plain HTTP POST.
type SubgraphClient struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSubgraphClient builds a subgraph client.
func NewSubgraphClient(logger *zap.Logger) *SubgraphClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubgraphClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchPools queries one protocol's subgraph, ordered by liquidity descending.
// GraphQL-level errors are logged and yield an empty result rather than
// failing discovery for the other protocols.
func (c *SubgraphClient) FetchPools(ctx context.Context, protocol config.ProtocolConfig, discovery config.DiscoveryConfig) ([]model.PoolDescriptor, error) {
	if !protocol.Enabled {
		return nil, nil
	}

	query := v3PoolsQuery
	if protocol.PoolType == model.ProtocolV2 {
		query = v2PairsQuery
	}

	body, err := json.Marshal(graphQLRequest{
		Query: query,
		Variables: map[string]any{
			"first":           discovery.MaxPoolsPerProtocol,
			"minLiquidityUSD": strconv.FormatFloat(discovery.MinLiquidityUSD, 'f', -1, 64),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, protocol.SubgraphURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s subgraph: %w", protocol.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s subgraph returned status %d", protocol.Name, resp.StatusCode)
	}

	var decoded graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", protocol.Name, err)
	}

	if len(decoded.Errors) > 0 {
		c.logger.Error("graphql errors",
			zap.String("protocol", protocol.Name),
			zap.ByteString("errors", decoded.Errors),
		)
		return nil, nil
	}

	raw := decoded.Data.Pools
	if protocol.PoolType == model.ProtocolV2 {
		raw = decoded.Data.Pairs
	}

	now := time.Now().UTC().Format(time.RFC3339)
	pools := make([]model.PoolDescriptor, 0, len(raw))
	for _, p := range raw {
		if !common.IsHexAddress(p.ID) {
			c.logger.Warn("skipping pool with invalid address",
				zap.String("protocol", protocol.Name),
				zap.String("id", p.ID),
			)
			continue
		}
		pools = append(pools, model.PoolDescriptor{
			Address:        common.HexToAddress(p.ID),
			Protocol:       protocol.PoolType,
			Token0:         common.HexToAddress(p.Token0.ID),
			Token0Symbol:   p.Token0.Symbol,
			Token0Decimals: parseDecimals(p.Token0.Decimals),
			Token1:         common.HexToAddress(p.Token1.ID),
			Token1Symbol:   p.Token1.Symbol,
			Token1Decimals: parseDecimals(p.Token1.Decimals),
			Fee:            parseUint32(p.FeeTier),
			LiquidityUSD:   firstFloat(p.TotalValueLockedUSD, p.ReserveUSD),
			Volume24hUSD:   parseFloat(p.VolumeUSD),
			LastSeen:       now,
		})
	}

	return pools, nil
}

// parseDecimals defaults to 18 when the subgraph omits or mangles the field.
func parseDecimals(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 18
	}
	return uint8(v)
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func firstFloat(values ...string) float64 {
	for _, s := range values {
		if s != "" {
			return parseFloat(s)
		}
	}
	return 0
}

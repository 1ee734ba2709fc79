package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"dexscope/internal/model"
)

// GraphAPIKeyEnv names the environment variable holding The Graph gateway key.
const GraphAPIKeyEnv = "THE_GRAPH_API_KEY"

// ProtocolConfig describes one subgraph-backed protocol to discover pools from.
type ProtocolConfig struct {
	ID          string
	Name        string
	SubgraphURL string
	PoolType    model.Protocol
	Enabled     bool
}

// DiscoveryConfig bounds the pool discovery query.
type DiscoveryConfig struct {
	MinLiquidityUSD     float64
	MaxPoolsPerProtocol uint32
}

// protocolEntry is one protocol in protocols.json (camelCase keys).
type protocolEntry struct {
	Name       string `json:"name"`
	Factory    string `json:"factory"`
	SubgraphID string `json:"subgraphId"`
	Enabled    bool   `json:"enabled"`
	PoolType   string `json:"poolType"`
}

type discoveryEntry struct {
	MinLiquidityUSD     float64 `json:"minLiquidityUSD"`
	CacheRefreshMinutes uint32  `json:"cacheRefreshMinutes"`
	MaxPoolsPerProtocol uint32  `json:"maxPoolsPerProtocol"`
}

type protocolsFile struct {
	Protocols map[string]protocolEntry `json:"protocols"`
	Discovery discoveryEntry           `json:"discovery"`
}

func subgraphURL(subgraphID, apiKey string) string {
	return fmt.Sprintf("https://gateway.thegraph.com/api/%s/subgraphs/id/%s", apiKey, subgraphID)
}

// LoadProtocols parses protocols.json and builds subgraph URLs using
// THE_GRAPH_API_KEY. Disabled protocols and protocols without a queryable URL
// are dropped. Returns enabled protocols sorted by id, plus discovery bounds.
func LoadProtocols(path string) ([]ProtocolConfig, DiscoveryConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, DiscoveryConfig{}, fmt.Errorf("read protocols file: %w", err)
	}

	var file protocolsFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, DiscoveryConfig{}, fmt.Errorf("parse protocols file: %w", err)
	}

	apiKey := os.Getenv(GraphAPIKeyEnv)

	var protocols []ProtocolConfig
	for id, entry := range file.Protocols {
		if !entry.Enabled || entry.SubgraphID == "" || apiKey == "" {
			continue
		}
		poolType := model.ProtocolV3
		if entry.PoolType == string(model.ProtocolV2) {
			poolType = model.ProtocolV2
		}
		protocols = append(protocols, ProtocolConfig{
			ID:          id,
			Name:        entry.Name,
			SubgraphURL: subgraphURL(entry.SubgraphID, apiKey),
			PoolType:    poolType,
			Enabled:     true,
		})
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].ID < protocols[j].ID })

	discovery := DiscoveryConfig{
		MinLiquidityUSD:     file.Discovery.MinLiquidityUSD,
		MaxPoolsPerProtocol: file.Discovery.MaxPoolsPerProtocol,
	}

	return protocols, discovery, nil
}

type tokensFile struct {
	Tokens map[string]string `json:"tokens"`
}

// LoadTokens parses tokens.json into a symbol -> address map. A missing file
// yields an empty map, which disables whitelist filtering.
func LoadTokens(path string) (map[string]common.Address, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]common.Address{}, nil
		}
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	var file tokensFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse tokens file: %w", err)
	}

	out := make(map[string]common.Address, len(file.Tokens))
	for symbol, addr := range file.Tokens {
		if !common.IsHexAddress(addr) {
			continue
		}
		out[symbol] = common.HexToAddress(addr)
	}
	return out, nil
}

// Whitelist converts a symbol -> address map into an address set.
func Whitelist(tokens map[string]common.Address) map[common.Address]struct{} {
	out := make(map[common.Address]struct{}, len(tokens))
	for _, addr := range tokens {
		out[addr] = struct{}{}
	}
	return out
}

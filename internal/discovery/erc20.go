package discovery

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexscope/internal/model"
)

const erc20ABIJSON = `[
  {
    "inputs": [],
    "name": "symbol",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "decimals",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

// ERC20ABI returns the parsed minimal ERC20 ABI.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// ContractCaller performs the eth_call reads used for token metadata.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

type tokenMeta struct {
	symbol   string
	decimals uint8
	ok       bool
}

// EnrichTokenMetadata fills in symbols and decimals the subgraph omitted by
// reading the token contracts. Pools whose tokens cannot be read keep their
// subgraph values; nothing here is fatal.
func EnrichTokenMetadata(ctx context.Context, caller ContractCaller, pools []model.PoolDescriptor, logger *zap.Logger) []model.PoolDescriptor {
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := make(map[common.Address]tokenMeta)
	fetch := func(token common.Address) tokenMeta {
		if meta, ok := cache[token]; ok {
			return meta
		}
		meta := fetchTokenMeta(ctx, caller, token, logger)
		cache[token] = meta
		return meta
	}

	out := make([]model.PoolDescriptor, len(pools))
	for i, pool := range pools {
		if pool.Token0Symbol == "" {
			if meta := fetch(pool.Token0); meta.ok {
				pool.Token0Symbol = meta.symbol
				pool.Token0Decimals = meta.decimals
			}
		}
		if pool.Token1Symbol == "" {
			if meta := fetch(pool.Token1); meta.ok {
				pool.Token1Symbol = meta.symbol
				pool.Token1Decimals = meta.decimals
			}
		}
		out[i] = pool
	}
	return out
}

func fetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) tokenMeta {
	tokenABI, err := ERC20ABI()
	if err != nil {
		return tokenMeta{}
	}

	symbolData, err := tokenABI.Pack("symbol")
	if err != nil {
		return tokenMeta{}
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolData})
	if err != nil {
		logger.Warn("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
		return tokenMeta{}
	}
	symbolValues, err := tokenABI.Unpack("symbol", raw)
	if err != nil || len(symbolValues) != 1 {
		return tokenMeta{}
	}
	symbol, ok := symbolValues[0].(string)
	if !ok {
		return tokenMeta{}
	}

	decimalsData, err := tokenABI.Pack("decimals")
	if err != nil {
		return tokenMeta{}
	}
	raw, err = caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsData})
	if err != nil {
		logger.Warn("decimals call failed", zap.String("token", token.Hex()), zap.Error(err))
		return tokenMeta{}
	}
	decimalsValues, err := tokenABI.Unpack("decimals", raw)
	if err != nil || len(decimalsValues) != 1 {
		return tokenMeta{}
	}
	decimals, ok := decimalsValues[0].(uint8)
	if !ok {
		return tokenMeta{}
	}

	return tokenMeta{symbol: symbol, decimals: decimals, ok: true}
}

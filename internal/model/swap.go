package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapData is the normalized result of decoding a pool event log.
// Price is token0-denominated and derived from codec state, not from the
// transient swap amounts.
type SwapData struct {
	Sender    common.Address
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Price     float64
}

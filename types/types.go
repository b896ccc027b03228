package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPair describes a tracked token pair. Identity is the ordered
// (TokenA, TokenB) address pair; instances are never mutated after
// configuration.
type TokenPair struct {
	TokenA    common.Address
	TokenB    common.Address
	SymbolA   string
	SymbolB   string
	DecimalsA uint8
	DecimalsB uint8
}

// Key returns the pair identity used for add/remove and in-flight tracking.
func (p TokenPair) Key() string {
	return p.TokenA.Hex() + ":" + p.TokenB.Hex()
}

// Symbols returns the display form of the pair, e.g. "WETH/USDC".
func (p TokenPair) Symbols() string {
	return fmt.Sprintf("%s/%s", p.SymbolA, p.SymbolB)
}

// ArbitrageOpportunity is an immutable snapshot produced by one scan
// cycle. It is stale once the next cycle overwrites the ranked list.
type ArbitrageOpportunity struct {
	Pair             TokenPair
	AmountIn         *big.Int
	ExpectedProfit   *big.Int
	ProfitPercentage float64
	UniswapOut       *big.Int
	OneInchOut       *big.Int
	SwapCallData     []byte // 1inch leg call data, reused at execution time
	GasEstimate      uint64
	Timestamp        time.Time
}

// TradeStatus is the terminal settlement outcome of an executed trade.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "success"
	TradeFailed  TradeStatus = "failed"
)

// TradeRecord is created only after the relay reports a terminal
// receipt for a user operation. Immutable once created.
type TradeRecord struct {
	OpHash           common.Hash
	Timestamp        time.Time
	PairSymbols      string
	Profit           *big.Int
	ProfitPercentage float64
	TxHash           common.Hash
	Status           TradeStatus
}

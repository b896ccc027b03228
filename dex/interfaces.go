package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is the result of asking one price source for the output of a
// single swap. CallData is only populated by sources whose quote
// doubles as an executable swap route.
type Quote struct {
	AmountOut *big.Int
	CallData  []byte
}

// PriceSource quotes the output amount of swapping amountIn of tokenIn
// for tokenOut on one venue. A failed or empty quote is reported as an
// error; callers decide whether that is fatal.
type PriceSource interface {
	// Name returns the source name used in logs and metrics.
	Name() string

	// QuoteExactInput returns the expected output amount for the swap.
	QuoteExactInput(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*Quote, error)
}

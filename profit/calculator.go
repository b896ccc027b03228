// Package profit implements the fixed-point profit model for two-source
// arbitrage. All monetary quantities are *big.Int in the token's
// smallest unit; floating point only appears in the final display
// percentage, derived from an already bps-scaled integer.
package profit

import (
	"errors"
	"math"
	"math/big"
	"sync"
)

// ErrInvalidAmount is returned when the input amount is zero or negative.
var ErrInvalidAmount = errors.New("amount in must be positive")

var (
	bpsScale = big.NewInt(10000)
	two      = big.NewInt(2)
	ten      = big.NewInt(10)
	hundred  = big.NewInt(100)
)

// Calculation is the output of one profit computation. Pure value, no
// identity.
type Calculation struct {
	GrossProfit      *big.Int
	NetProfit        *big.Int
	ProfitPercentage float64
	GasEstimate      uint64
	GasCost          *big.Int
	FlashLoanFee     *big.Int
	IsProfitable     bool
	MinAmountOut     *big.Int
}

// Calculator derives profitability verdicts from quoted amounts and
// cost parameters. Safe for concurrent use; gas price and fee rate may
// be updated between scan cycles.
type Calculator struct {
	mu               sync.RWMutex
	gasPrice         *big.Int
	flashLoanFeeRate float64
}

// NewCalculator creates a calculator. flashLoanFeeRate is a fraction,
// e.g. 0.0009 for Aave's 0.09%.
func NewCalculator(gasPrice *big.Int, flashLoanFeeRate float64) *Calculator {
	return &Calculator{
		gasPrice:         new(big.Int).Set(gasPrice),
		flashLoanFeeRate: flashLoanFeeRate,
	}
}

// SetGasPrice replaces the gas price used for cost estimates.
func (c *Calculator) SetGasPrice(gasPrice *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasPrice = new(big.Int).Set(gasPrice)
}

// SetFlashLoanFeeRate replaces the flash loan fee rate.
func (c *Calculator) SetFlashLoanFeeRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flashLoanFeeRate = rate
}

// Calculate computes gross/net profit for swapping amountIn, given the
// quoted outputs of the two venues. The larger quote is the sell-side
// proceeds; the smaller is the break-even floor (MinAmountOut). Equal
// quotes mean zero profit and no viable direction.
func (c *Calculator) Calculate(amountIn, amountOutDex1, amountOutDex2 *big.Int, gasEstimate uint64) (*Calculation, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	c.mu.RLock()
	gasPrice := new(big.Int).Set(c.gasPrice)
	feeRate := c.flashLoanFeeRate
	c.mu.RUnlock()

	// amountIn * floor(feeRate * 10000) / 10000
	feeBps := big.NewInt(int64(math.Floor(feeRate * 10000)))
	flashLoanFee := new(big.Int).Mul(amountIn, feeBps)
	flashLoanFee.Div(flashLoanFee, bpsScale)

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasEstimate), gasPrice)

	grossProfit := big.NewInt(0)
	minAmountOut := big.NewInt(0)

	switch amountOutDex1.Cmp(amountOutDex2) {
	case 1: // buy on dex2, sell on dex1
		grossProfit = new(big.Int).Sub(amountOutDex1, amountIn)
		minAmountOut = new(big.Int).Set(amountOutDex2)
	case -1: // buy on dex1, sell on dex2
		grossProfit = new(big.Int).Sub(amountOutDex2, amountIn)
		minAmountOut = new(big.Int).Set(amountOutDex1)
	}

	netProfit := new(big.Int).Sub(grossProfit, flashLoanFee)
	netProfit.Sub(netProfit, gasCost)

	return &Calculation{
		GrossProfit:      grossProfit,
		NetProfit:        netProfit,
		ProfitPercentage: percentage(netProfit, amountIn),
		GasEstimate:      gasEstimate,
		GasCost:          gasCost,
		FlashLoanFee:     flashLoanFee,
		IsProfitable:     netProfit.Sign() > 0,
		MinAmountOut:     minAmountOut,
	}, nil
}

// percentage scales net/amountIn to basis points in integer space
// before converting to a display float.
func percentage(netProfit, amountIn *big.Int) float64 {
	bps := new(big.Int).Mul(netProfit, bpsScale)
	bps.Quo(bps, amountIn)
	f, _ := new(big.Float).SetInt(bps).Float64()
	return f / 100
}

// OptimalAmount bounds the trade size to 10% of the smaller liquidity
// pool, halved further when the price gap is within a 1%-of-average
// impact threshold. Oversized trades against shallow pools eat their
// own edge.
func OptimalAmount(price1, price2, liquidity1, liquidity2 *big.Int) *big.Int {
	priceDiff := new(big.Int).Sub(price1, price2)
	priceDiff.Abs(priceDiff)

	avgPrice := new(big.Int).Add(price1, price2)
	avgPrice.Div(avgPrice, two)
	if avgPrice.Sign() == 0 {
		return big.NewInt(0)
	}

	impactThreshold := new(big.Int).Div(avgPrice, hundred)

	smaller := liquidity1
	if liquidity2.Cmp(liquidity1) < 0 {
		smaller = liquidity2
	}
	maxAmount := new(big.Int).Div(smaller, ten)

	if priceDiff.Cmp(impactThreshold) > 0 {
		return maxAmount
	}
	return maxAmount.Div(maxAmount, two)
}

// SlippageParams returns the minimum acceptable output for a quoted
// amount under the given tolerance (in percent, e.g. 0.5).
func SlippageParams(expectedAmountOut *big.Int, tolerancePercent float64) (minAmountOut, maxSlippage *big.Int) {
	toleranceBps := big.NewInt(int64(math.Floor(tolerancePercent * 100)))
	maxSlippage = new(big.Int).Mul(expectedAmountOut, toleranceBps)
	maxSlippage.Div(maxSlippage, bpsScale)
	minAmountOut = new(big.Int).Sub(expectedAmountOut, maxSlippage)
	return minAmountOut, maxSlippage
}

// MEVProtectionFees sizes competitive fees: priority fee is 10% of the
// gas price plus 1% of the expected profit, max fee is gas price plus
// priority fee.
func (c *Calculator) MEVProtectionFees(profit *big.Int) (priorityFee, maxFeePerGas *big.Int) {
	c.mu.RLock()
	gasPrice := new(big.Int).Set(c.gasPrice)
	c.mu.RUnlock()

	priorityFee = new(big.Int).Div(gasPrice, ten)
	priorityFee.Add(priorityFee, new(big.Int).Div(profit, hundred))
	maxFeePerGas = new(big.Int).Add(gasPrice, priorityFee)
	return priorityFee, maxFeePerGas
}

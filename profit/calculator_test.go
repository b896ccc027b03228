package profit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateUnprofitableTrade(t *testing.T) {
	calc := NewCalculator(big.NewInt(1), 0.0009)

	result, err := calc.Calculate(
		big.NewInt(1_000_000),
		big.NewInt(1_050_000),
		big.NewInt(1_000_000),
		500000,
	)
	require.NoError(t, err)

	assert.Equal(t, "900", result.FlashLoanFee.String())
	assert.Equal(t, "500000", result.GasCost.String())
	assert.Equal(t, "50000", result.GrossProfit.String())
	assert.Equal(t, "-450900", result.NetProfit.String())
	assert.False(t, result.IsProfitable)
	assert.Equal(t, "1000000", result.MinAmountOut.String())
}

func TestCalculateProfitableTrade(t *testing.T) {
	calc := NewCalculator(big.NewInt(1), 0.0009)

	result, err := calc.Calculate(
		big.NewInt(1_000_000_000),
		big.NewInt(1_100_000_000),
		big.NewInt(1_000_000_000),
		500000,
	)
	require.NoError(t, err)

	assert.Equal(t, "100000000", result.GrossProfit.String())
	assert.Equal(t, "900000", result.FlashLoanFee.String())
	assert.Equal(t, "500000", result.GasCost.String())
	assert.Equal(t, "98600000", result.NetProfit.String())
	assert.True(t, result.IsProfitable)
	assert.InDelta(t, 9.86, result.ProfitPercentage, 0.001)
}

func TestCalculateDirectionSymmetry(t *testing.T) {
	calc := NewCalculator(big.NewInt(2), 0.0009)

	amountIn := big.NewInt(5_000_000)
	out1 := big.NewInt(5_400_000)
	out2 := big.NewInt(5_100_000)

	forward, err := calc.Calculate(amountIn, out1, out2, 300000)
	require.NoError(t, err)
	reversed, err := calc.Calculate(amountIn, out2, out1, 300000)
	require.NoError(t, err)

	assert.Equal(t, forward.GrossProfit.String(), reversed.GrossProfit.String())
	assert.Equal(t, forward.NetProfit.String(), reversed.NetProfit.String())
	assert.Equal(t, forward.MinAmountOut.String(), reversed.MinAmountOut.String())
}

func TestCalculateEqualQuotes(t *testing.T) {
	calc := NewCalculator(big.NewInt(1), 0.0009)

	result, err := calc.Calculate(
		big.NewInt(1_000_000),
		big.NewInt(1_200_000),
		big.NewInt(1_200_000),
		500000,
	)
	require.NoError(t, err)

	assert.Equal(t, "0", result.GrossProfit.String())
	assert.Equal(t, "0", result.MinAmountOut.String())
	assert.False(t, result.IsProfitable)
}

func TestCalculateInvalidAmount(t *testing.T) {
	calc := NewCalculator(big.NewInt(1), 0.0009)

	_, err := calc.Calculate(big.NewInt(0), big.NewInt(1), big.NewInt(2), 500000)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = calc.Calculate(big.NewInt(-5), big.NewInt(1), big.NewInt(2), 500000)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = calc.Calculate(nil, big.NewInt(1), big.NewInt(2), 500000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSetters(t *testing.T) {
	calc := NewCalculator(big.NewInt(1), 0.0009)
	calc.SetGasPrice(big.NewInt(10))
	calc.SetFlashLoanFeeRate(0.003)

	result, err := calc.Calculate(
		big.NewInt(1_000_000),
		big.NewInt(1_100_000),
		big.NewInt(1_000_000),
		100000,
	)
	require.NoError(t, err)

	// 30 bps fee, gas 100000 * 10
	assert.Equal(t, "3000", result.FlashLoanFee.String())
	assert.Equal(t, "1000000", result.GasCost.String())
}

func TestOptimalAmount(t *testing.T) {
	t.Run("WideGapUsesFullLiquidityBound", func(t *testing.T) {
		amount := OptimalAmount(
			big.NewInt(200), big.NewInt(100),
			big.NewInt(10_000), big.NewInt(50_000),
		)
		assert.Equal(t, "1000", amount.String())
	})

	t.Run("NarrowGapHalvesTheBound", func(t *testing.T) {
		amount := OptimalAmount(
			big.NewInt(1000), big.NewInt(1001),
			big.NewInt(10_000), big.NewInt(50_000),
		)
		assert.Equal(t, "500", amount.String())
	})

	t.Run("ZeroAveragePrice", func(t *testing.T) {
		amount := OptimalAmount(
			big.NewInt(0), big.NewInt(0),
			big.NewInt(10_000), big.NewInt(50_000),
		)
		assert.Equal(t, "0", amount.String())
	})
}

func TestSlippageParams(t *testing.T) {
	minOut, maxSlippage := SlippageParams(big.NewInt(1_000_000), 0.5)
	assert.Equal(t, "5000", maxSlippage.String())
	assert.Equal(t, "995000", minOut.String())
}

func TestMEVProtectionFees(t *testing.T) {
	calc := NewCalculator(big.NewInt(100), 0.0009)

	priority, maxFee := calc.MEVProtectionFees(big.NewInt(1000))
	assert.Equal(t, "20", priority.String())  // 100/10 + 1000/100
	assert.Equal(t, "120", maxFee.String())
}

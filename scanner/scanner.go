// Package scanner detects cross-venue price discrepancies for a
// tracked set of token pairs and ranks the viable ones.
package scanner

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/profit"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultGasEstimate is the assumed gas usage of one arbitrage
// execution, used until a live estimate replaces it.
const DefaultGasEstimate = 500000

// Scanner queries two price sources per tracked pair and filters the
// results through the profit calculator. The pair set and the profit
// threshold may be mutated between cycles; an in-flight scan works on
// its own snapshot.
type Scanner struct {
	uniswap dex.PriceSource
	oneInch dex.PriceSource
	calc    *profit.Calculator
	logger  *zap.Logger
	metrics *metrics.ScannerMetrics

	mu                 sync.RWMutex
	pairs              []types.TokenPair
	minProfitThreshold float64
	gasEstimate        uint64
}

// NewScanner creates a scanner over the two price sources.
func NewScanner(uniswap, oneInch dex.PriceSource, calc *profit.Calculator, m *metrics.ScannerMetrics, logger *zap.Logger) *Scanner {
	return &Scanner{
		uniswap:            uniswap,
		oneInch:            oneInch,
		calc:               calc,
		logger:             logger,
		metrics:            m,
		minProfitThreshold: 0.5,
		gasEstimate:        DefaultGasEstimate,
	}
}

// AddPair appends a pair to the tracked set. Takes effect next cycle.
func (s *Scanner) AddPair(pair types.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append(s.pairs, pair)
}

// RemovePair removes a pair by identity. Takes effect next cycle.
func (s *Scanner) RemovePair(tokenA, tokenB common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pairs[:0]
	for _, p := range s.pairs {
		if p.TokenA == tokenA && p.TokenB == tokenB {
			continue
		}
		kept = append(kept, p)
	}
	s.pairs = kept
}

// SetMinProfitThreshold replaces the minimum profit percentage a pair
// must clear to be reported.
func (s *Scanner) SetMinProfitThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minProfitThreshold = threshold
}

// SetGasEstimate replaces the per-trade gas estimate fed to the
// profit model.
func (s *Scanner) SetGasEstimate(gas uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasEstimate = gas
}

// Pairs returns a snapshot of the tracked set.
func (s *Scanner) Pairs() []types.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TokenPair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Scan queries both sources for every tracked pair and returns the
// opportunities above the threshold, sorted descending by profit
// percentage (ties keep pair order). A failed or zero quote skips the
// pair for this cycle only.
func (s *Scanner) Scan(ctx context.Context, amountIn *big.Int) []*types.ArbitrageOpportunity {
	start := time.Now()

	s.mu.RLock()
	pairs := make([]types.TokenPair, len(s.pairs))
	copy(pairs, s.pairs)
	threshold := s.minProfitThreshold
	gasEstimate := s.gasEstimate
	s.mu.RUnlock()

	var opportunities []*types.ArbitrageOpportunity
	for _, pair := range pairs {
		opp := s.scanPair(ctx, pair, amountIn, gasEstimate)
		if opp == nil {
			continue
		}
		if opp.ProfitPercentage >= threshold {
			opportunities = append(opportunities, opp)
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPercentage > opportunities[j].ProfitPercentage
	})

	s.metrics.Scans.Inc()
	s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	s.metrics.Opportunities.Add(float64(len(opportunities)))

	return opportunities
}

// scanPair fans out to both sources and joins the quotes. Returns nil
// when either leg is unusable.
func (s *Scanner) scanPair(ctx context.Context, pair types.TokenPair, amountIn *big.Int, gasEstimate uint64) *types.ArbitrageOpportunity {
	var (
		wg        sync.WaitGroup
		uniQuote  *dex.Quote
		inchQuote *dex.Quote
		uniErr    error
		inchErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		uniQuote, uniErr = s.uniswap.QuoteExactInput(ctx, pair.TokenA, pair.TokenB, amountIn)
	}()
	go func() {
		defer wg.Done()
		inchQuote, inchErr = s.oneInch.QuoteExactInput(ctx, pair.TokenA, pair.TokenB, amountIn)
	}()
	wg.Wait()

	if uniErr != nil || uniQuote.AmountOut.Sign() == 0 {
		s.metrics.QuoteErrors.WithLabelValues(s.uniswap.Name()).Inc()
		s.logger.Warn("Skipping pair, uniswap quote unavailable",
			zap.String("pair", pair.Symbols()),
			zap.Error(uniErr))
		return nil
	}
	if inchErr != nil || inchQuote.AmountOut.Sign() == 0 {
		s.metrics.QuoteErrors.WithLabelValues(s.oneInch.Name()).Inc()
		s.logger.Warn("Skipping pair, 1inch quote unavailable",
			zap.String("pair", pair.Symbols()),
			zap.Error(inchErr))
		return nil
	}

	calc, err := s.calc.Calculate(amountIn, uniQuote.AmountOut, inchQuote.AmountOut, gasEstimate)
	if err != nil {
		s.logger.Error("Profit calculation failed",
			zap.String("pair", pair.Symbols()),
			zap.Error(err))
		return nil
	}

	return &types.ArbitrageOpportunity{
		Pair:             pair,
		AmountIn:         new(big.Int).Set(amountIn),
		ExpectedProfit:   calc.NetProfit,
		ProfitPercentage: calc.ProfitPercentage,
		UniswapOut:       uniQuote.AmountOut,
		OneInchOut:       inchQuote.AmountOut,
		SwapCallData:     inchQuote.CallData,
		GasEstimate:      gasEstimate,
		Timestamp:        time.Now(),
	}
}

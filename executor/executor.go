// Package executor turns a detected opportunity into an on-chain
// effect: build the user operation, sign it, hand it to the bundler,
// and wait for a terminal receipt.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/michaelpento.lv/arbbot/aa"
	"github.com/michaelpento.lv/arbbot/bundler"
	"github.com/michaelpento.lv/arbbot/profit"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrExecutionInFlight is returned when an opportunity with the same
// pair identity is already being executed. A second submission would
// race the first for the same nonce and funds, so it is rejected, not
// queued.
var ErrExecutionInFlight = errors.New("execution already in flight for this pair")

const executorABIJson = `[{"inputs":[{"components":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint24","name":"uniswapFee","type":"uint24"},{"internalType":"bytes","name":"oneInchCallData","type":"bytes"},{"internalType":"uint256","name":"minProfit","type":"uint256"},{"internalType":"address","name":"recipient","type":"address"}],"internalType":"struct ArbitrageParams","name":"params","type":"tuple"}],"name":"executeArbitrage","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// arbitrageParams mirrors the executor contract's parameter tuple.
type arbitrageParams struct {
	TokenA          common.Address
	TokenB          common.Address
	AmountIn        *big.Int
	UniswapFee      *big.Int
	OneInchCallData []byte
	MinProfit       *big.Int
	Recipient       common.Address
}

// Builder assembles an unsigned user operation.
type Builder interface {
	Build(ctx context.Context, smartAccount, target common.Address, value *big.Int, data []byte) (*aa.UserOperation, error)
}

// Signer produces a signed copy of an operation.
type Signer interface {
	Sign(ctx context.Context, op *aa.UserOperation) (*aa.UserOperation, error)
}

// Relay submits operations and waits for terminal receipts.
type Relay interface {
	SendUserOperation(ctx context.Context, op *aa.UserOperation) (common.Hash, error)
	WaitForReceipt(ctx context.Context, opHash common.Hash, pollInterval time.Duration, maxAttempts int) (*bundler.Receipt, error)
}

// Config carries the executor's static wiring.
type Config struct {
	SmartAccount     common.Address
	ExecutorContract common.Address
	Recipient        common.Address
	UniswapFeeTier   int64
	SlippagePercent  float64
	PollInterval     time.Duration
	MaxPollAttempts  int
}

// Executor coordinates the build, sign, submit, await pipeline for one
// opportunity at a time per pair identity.
type Executor struct {
	builder     Builder
	signer      Signer
	relay       Relay
	cfg         Config
	executorABI abi.ABI
	logger      *zap.Logger
	metrics     *metrics.ExecutionMetrics

	mu       sync.Mutex
	inFlight map[uint64]struct{}
	history  []*types.TradeRecord
}

// New creates an executor.
func New(b Builder, s Signer, r Relay, cfg Config, m *metrics.ExecutionMetrics, logger *zap.Logger) (*Executor, error) {
	parsedABI, err := abi.JSON(strings.NewReader(executorABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = bundler.DefaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = bundler.DefaultMaxAttempts
	}

	return &Executor{
		builder:     b,
		signer:      s,
		relay:       r,
		cfg:         cfg,
		executorABI: parsedABI,
		logger:      logger,
		metrics:     m,
		inFlight:    make(map[uint64]struct{}),
	}, nil
}

// oppKey derives the in-flight identity of an opportunity from its
// ordered pair addresses.
func oppKey(opp *types.ArbitrageOpportunity) uint64 {
	d := xxhash.New()
	d.Write(opp.Pair.TokenA.Bytes())
	d.Write(opp.Pair.TokenB.Bytes())
	return d.Sum64()
}

// Execute runs the full pipeline for one opportunity. Any stage
// failure short-circuits the rest and propagates; a TradeRecord is
// produced only when the relay reports a terminal receipt. A second
// call for a pair already in flight fails with ErrExecutionInFlight.
func (e *Executor) Execute(ctx context.Context, opp *types.ArbitrageOpportunity) (*types.TradeRecord, error) {
	key := oppKey(opp)

	e.mu.Lock()
	if _, busy := e.inFlight[key]; busy {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExecutionInFlight, opp.Pair.Symbols())
	}
	e.inFlight[key] = struct{}{}
	e.mu.Unlock()

	e.metrics.InFlight.Inc()
	start := time.Now()
	defer func() {
		e.metrics.InFlight.Dec()
		e.metrics.ExecutionLatency.Observe(time.Since(start).Seconds())
		e.mu.Lock()
		delete(e.inFlight, key)
		e.mu.Unlock()
	}()

	callData, err := e.encodeArbitrage(opp)
	if err != nil {
		return nil, err
	}

	op, err := e.builder.Build(ctx, e.cfg.SmartAccount, e.cfg.ExecutorContract, big.NewInt(0), callData)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}

	signedOp, err := e.signer.Sign(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("sign failed: %w", err)
	}

	opHash, err := e.relay.SendUserOperation(ctx, signedOp)
	if err != nil {
		return nil, fmt.Errorf("submit failed: %w", err)
	}

	e.logger.Info("Arbitrage submitted",
		zap.String("pair", opp.Pair.Symbols()),
		zap.String("op_hash", opHash.Hex()),
		zap.String("expected_profit", opp.ExpectedProfit.String()))

	receipt, err := e.relay.WaitForReceipt(ctx, opHash, e.cfg.PollInterval, e.cfg.MaxPollAttempts)
	if err != nil {
		// A timeout is NOT a confirmed failure: the operation may
		// still settle. No record is written for an unknown outcome.
		return nil, fmt.Errorf("await receipt failed: %w", err)
	}

	record := &types.TradeRecord{
		OpHash:           opHash,
		Timestamp:        time.Now(),
		PairSymbols:      opp.Pair.Symbols(),
		Profit:           new(big.Int).Set(opp.ExpectedProfit),
		ProfitPercentage: opp.ProfitPercentage,
		TxHash:           receipt.Receipt.TransactionHash,
		Status:           types.TradeSuccess,
	}
	if !receipt.Success {
		record.Status = types.TradeFailed
		e.logger.Warn("Arbitrage reverted on chain",
			zap.String("op_hash", opHash.Hex()),
			zap.String("reason", receipt.Reason))
	} else {
		e.metrics.RealizedProfit.Add(profitAsFloat(opp.ExpectedProfit))
	}
	e.metrics.Executions.WithLabelValues(string(record.Status)).Inc()

	// History is append-only in completion order.
	e.mu.Lock()
	e.history = append(e.history, record)
	e.mu.Unlock()

	return record, nil
}

// encodeArbitrage packs the executor contract call for the
// opportunity. The contract's profit floor is the expected profit
// discounted by the slippage tolerance.
func (e *Executor) encodeArbitrage(opp *types.ArbitrageOpportunity) ([]byte, error) {
	minProfit, _ := profit.SlippageParams(opp.ExpectedProfit, e.cfg.SlippagePercent)
	if minProfit.Sign() < 0 {
		minProfit = big.NewInt(0)
	}

	input, err := e.executorABI.Pack("executeArbitrage", arbitrageParams{
		TokenA:          opp.Pair.TokenA,
		TokenB:          opp.Pair.TokenB,
		AmountIn:        opp.AmountIn,
		UniswapFee:      big.NewInt(e.cfg.UniswapFeeTier),
		OneInchCallData: opp.SwapCallData,
		MinProfit:       minProfit,
		Recipient:       e.cfg.Recipient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode arbitrage call: %w", err)
	}
	return input, nil
}

// History returns the completed trades in completion order.
func (e *Executor) History() []*types.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.TradeRecord, len(e.history))
	copy(out, e.history)
	return out
}

func profitAsFloat(p *big.Int) float64 {
	f, _ := new(big.Float).SetInt(p).Float64()
	return f
}

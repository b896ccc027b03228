package scanner

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// slowSource delays every quote and records whether two quotes for the
// same leg ever ran at the same time.
type slowSource struct {
	name       string
	out        *big.Int
	delay      time.Duration
	inFlight   atomic.Int32
	overlapped atomic.Bool
	calls      atomic.Int64
}

func (s *slowSource) Name() string { return s.name }

func (s *slowSource) QuoteExactInput(_ context.Context, _, _ common.Address, _ *big.Int) (*dex.Quote, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	defer s.inFlight.Add(-1)
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return &dex.Quote{AmountOut: new(big.Int).Set(s.out)}, nil
}

func TestMonitorDeliversNonEmptyResults(t *testing.T) {
	weth := testPair(0x01, 0x02, "WETH", "USDC")
	uni := &slowSource{name: "uniswap", out: big.NewInt(1_100_000)}
	inch := &slowSource{name: "1inch", out: big.NewInt(1_000_000)}

	sc, _ := newTestScanner(t, uni, inch)
	sc.AddPair(weth)

	var deliveries atomic.Int64
	results := make(chan []*types.ArbitrageOpportunity, 64)
	onResult := func(opportunities []*types.ArbitrageOpportunity) {
		deliveries.Add(1)
		results <- opportunities
	}

	m := NewMonitor(sc, big.NewInt(1_000_000), zaptest.NewLogger(t))
	handle := m.Start(onResult, 10*time.Millisecond)

	first := <-results
	require.NotEmpty(t, first)
	assert.Equal(t, "WETH/USDC", first[0].Pair.Symbols())

	time.Sleep(60 * time.Millisecond)
	m.Stop(handle)

	// Immediate scan plus at least a few ticks.
	assert.GreaterOrEqual(t, deliveries.Load(), int64(3))
}

func TestMonitorSuppressesEmptyResults(t *testing.T) {
	weth := testPair(0x01, 0x02, "WETH", "USDC")
	uni := &slowSource{name: "uniswap", out: big.NewInt(1_000_000)}
	inch := &slowSource{name: "1inch", out: big.NewInt(1_000_000)}

	sc, _ := newTestScanner(t, uni, inch)
	sc.AddPair(weth)

	var deliveries atomic.Int64
	m := NewMonitor(sc, big.NewInt(1_000_000), zaptest.NewLogger(t))
	handle := m.Start(func([]*types.ArbitrageOpportunity) { deliveries.Add(1) }, 10*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	m.Stop(handle)

	assert.Equal(t, int64(0), deliveries.Load())
	assert.Greater(t, uni.calls.Load(), int64(0))
}

func TestMonitorNeverOverlapsScans(t *testing.T) {
	weth := testPair(0x01, 0x02, "WETH", "USDC")
	uni := &slowSource{name: "uniswap", out: big.NewInt(1_100_000), delay: 30 * time.Millisecond}
	inch := &slowSource{name: "1inch", out: big.NewInt(1_000_000), delay: 30 * time.Millisecond}

	sc, _ := newTestScanner(t, uni, inch)
	sc.AddPair(weth)

	m := NewMonitor(sc, big.NewInt(1_000_000), zaptest.NewLogger(t))
	handle := m.Start(func([]*types.ArbitrageOpportunity) {}, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	m.Stop(handle)

	// Each scan takes three ticks; overlapping ticks must be dropped.
	assert.False(t, uni.overlapped.Load())
	assert.False(t, inch.overlapped.Load())
	assert.Less(t, uni.calls.Load(), int64(10))
}

func TestMonitorStopDiscardsInFlightResult(t *testing.T) {
	weth := testPair(0x01, 0x02, "WETH", "USDC")
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	uni := &blockingSource{name: "uniswap", out: big.NewInt(1_100_000), started: started, release: release}
	inch := &slowSource{name: "1inch", out: big.NewInt(1_000_000)}

	sc, _ := newTestScanner(t, uni, inch)
	sc.AddPair(weth)

	var deliveries atomic.Int64
	m := NewMonitor(sc, big.NewInt(1_000_000), zaptest.NewLogger(t))
	handle := m.Start(func([]*types.ArbitrageOpportunity) { deliveries.Add(1) }, time.Hour)

	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	m.Stop(handle)

	assert.Equal(t, int64(0), deliveries.Load())
}

// blockingSource parks each quote until released, so a test can hold a
// scan in flight deliberately.
type blockingSource struct {
	name    string
	out     *big.Int
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) Name() string { return s.name }

func (s *blockingSource) QuoteExactInput(_ context.Context, _, _ common.Address, _ *big.Int) (*dex.Quote, error) {
	s.started <- struct{}{}
	<-s.release
	return &dex.Quote{AmountOut: new(big.Int).Set(s.out)}, nil
}

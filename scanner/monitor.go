package scanner

import (
	"context"
	"math/big"
	"time"

	"github.com/michaelpento.lv/arbbot/types"

	"go.uber.org/zap"
)

// Handle references one running monitoring loop. The loop owns its
// lifetime; callers only pass the handle back to Stop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Monitor drives the scanner on a fixed interval. At most one scan is
// in flight at any time: the scan runs inline in the loop goroutine
// and ticks that fire during a slow scan are dropped, not queued.
type Monitor struct {
	scanner  *Scanner
	amountIn *big.Int
	logger   *zap.Logger
}

// NewMonitor creates a monitoring loop over the scanner. amountIn is
// the probe size quoted on every cycle.
func NewMonitor(s *Scanner, amountIn *big.Int, logger *zap.Logger) *Monitor {
	return &Monitor{
		scanner:  s,
		amountIn: new(big.Int).Set(amountIn),
		logger:   logger,
	}
}

// Start runs an immediate scan and then re-scans every interval,
// delivering each non-empty result to onResult. Results of a scan
// still in flight when Stop is called are discarded.
func (m *Monitor) Start(onResult func([]*types.ArbitrageOpportunity), interval time.Duration) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go m.run(ctx, onResult, interval, h)
	return h
}

// Stop cancels the loop. A scan already in flight finishes but its
// result is not delivered.
func (m *Monitor) Stop(h *Handle) {
	h.cancel()
	<-h.done
}

func (m *Monitor) run(ctx context.Context, onResult func([]*types.ArbitrageOpportunity), interval time.Duration, h *Handle) {
	defer close(h.done)

	m.logger.Info("Starting arbitrage monitoring", zap.Duration("interval", interval))

	scan := func() {
		opportunities := m.scanner.Scan(ctx, m.amountIn)
		if ctx.Err() != nil {
			return
		}
		if len(opportunities) > 0 {
			onResult(opportunities)
		}
	}

	scan()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitoring stopped")
			return
		case <-ticker.C:
			scan()
			// Drop any tick that fired while the scan was running so a
			// slow cycle skips ticks instead of queueing them.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

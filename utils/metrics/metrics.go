package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arbbot"

// ScannerMetrics tracks the opportunity-detection side of the pipeline.
type ScannerMetrics struct {
	Scans         prometheus.Counter
	ScanDuration  prometheus.Histogram
	QuoteErrors   *prometheus.CounterVec
	Opportunities prometheus.Counter
}

// NewScannerMetrics registers scanner metrics with reg.
func NewScannerMetrics(reg prometheus.Registerer) *ScannerMetrics {
	factory := promauto.With(reg)
	return &ScannerMetrics{
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of completed scan cycles",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of one scan cycle",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		QuoteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_errors_total",
			Help:      "Failed or zero quotes by price source",
		}, []string{"source"}),
		Opportunities: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Opportunities above the profit threshold",
		}),
	}
}

// ExecutionMetrics tracks the execution side of the pipeline.
type ExecutionMetrics struct {
	Executions       *prometheus.CounterVec
	ExecutionLatency prometheus.Histogram
	RealizedProfit   prometheus.Counter
	InFlight         prometheus.Gauge
}

// NewExecutionMetrics registers execution metrics with reg.
func NewExecutionMetrics(reg prometheus.Registerer) *ExecutionMetrics {
	factory := promauto.With(reg)
	return &ExecutionMetrics{
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executed trades by terminal status",
		}, []string{"status"}),
		ExecutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_latency_seconds",
			Help:      "Build-to-receipt latency of one execution",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		RealizedProfit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_profit_wei_total",
			Help:      "Cumulative realized profit in smallest units",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Executions currently awaiting a terminal receipt",
		}),
	}
}

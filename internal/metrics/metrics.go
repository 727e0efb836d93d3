// Package metrics implements C10: monotonic counters, bounded rolling
// windows, and cumulative P&L aggregation, exported both as plain snapshots
// for the engine's own logging and as a Prometheus registry for scraping.
//
// Grounded on pkg/observability/metrics.go's MetricsProvider (Prometheus
// registry-per-process, one Counter/Gauge/Histogram per tracked series),
// trimmed from its HTTP/workflow/AI/browser series down to this engine's own,
// and on internal/risk/engine.go's snapshot-struct idiom for State().
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarb/arbengine/internal/types"
)

// windowSize is the §4.10 bounded-deque length for rolling windows.
const windowSize = 100

// ring is a fixed-size circular buffer of float64 samples.
type ring struct {
	mu     sync.Mutex
	buf    []float64
	next   int
	filled bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]float64, size)}
}

func (r *ring) push(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// values returns the buffer contents in insertion order, oldest first.
func (r *ring) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]float64, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]float64, len(r.buf))
	n := copy(out, r.buf[r.next:])
	copy(out[n:], r.buf[:r.next])
	return out
}

// Snapshot is a point-in-time read of every tracked series, returned by
// Metrics.Snapshot for logging or CLI display.
type Snapshot struct {
	TotalOpportunitiesFound uint64
	SuccessfulTrades        uint64
	RiskEvents              uint64
	CumulativeProfit        int64
	LatencySamplesSeconds   []float64
	ProfitSamples           []float64
}

// Metrics is the single owner of process-wide telemetry (C10). Counters are
// lock-free atomics; rolling windows are guarded internally by ring's own
// mutex. No metrics lock is ever held across I/O (§4.10).
type Metrics struct {
	totalOpportunitiesFound atomic.Uint64
	successfulTrades        atomic.Uint64
	riskEvents              atomic.Uint64
	cumulativeProfit        atomic.Int64

	latencies *ring
	profits   *ring

	registry          *prometheus.Registry
	opportunitiesCtr  prometheus.Counter
	tradesCtr         prometheus.Counter
	riskEventsCtr     prometheus.Counter
	cumulativeProfitG prometheus.Gauge
	latencyHist       prometheus.Histogram
}

// New builds a Metrics instance with its own Prometheus registry so multiple
// engine instances in a test process never collide on global collectors.
func New() *Metrics {
	m := &Metrics{
		latencies: newRing(windowSize),
		profits:   newRing(windowSize),
		registry:  prometheus.NewRegistry(),
		opportunitiesCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbengine", Name: "opportunities_found_total",
			Help: "Total candidate opportunities discovered across all cycles.",
		}),
		tradesCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbengine", Name: "successful_trades_total",
			Help: "Total executions that reported success.",
		}),
		riskEventsCtr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbengine", Name: "risk_events_total",
			Help: "Total risk-engine rejections (pre-cycle and per-opportunity).",
		}),
		cumulativeProfitG: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbengine", Name: "cumulative_profit_lamports",
			Help: "Cumulative realized profit across all executions, in base-token units.",
		}),
		latencyHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbengine", Name: "execution_latency_seconds",
			Help:    "Execution latency from Execute() call to receipt.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.opportunitiesCtr, m.tradesCtr, m.riskEventsCtr, m.cumulativeProfitG, m.latencyHist)
	return m
}

// RecordOpportunitiesFound advances total_opportunities_found by n (§8
// Property: "metrics.total_opportunities_found unchanged" when a cycle finds
// nothing is simply n=0).
func (m *Metrics) RecordOpportunitiesFound(n int) {
	if n <= 0 {
		return
	}
	m.totalOpportunitiesFound.Add(uint64(n))
	m.opportunitiesCtr.Add(float64(n))
}

// RecordRiskEvent advances risk_events by exactly 1 (§8 Property 5).
func (m *Metrics) RecordRiskEvent() {
	m.riskEvents.Add(1)
	m.riskEventsCtr.Inc()
}

// RecordExecution folds a completed execution's receipt into the rolling
// windows and cumulative aggregates (§8 Property 4: successful_trades
// increases by exactly 1 and total_profit by actual_profit, on success).
func (m *Metrics) RecordExecution(receipt types.ExecutionReceipt) {
	if receipt.Success {
		m.successfulTrades.Add(1)
		m.tradesCtr.Inc()
	}
	m.cumulativeProfit.Add(receipt.ActualProfit)
	m.cumulativeProfitG.Add(float64(receipt.ActualProfit))

	m.latencies.push(receipt.Elapsed.Seconds())
	m.latencyHist.Observe(receipt.Elapsed.Seconds())
	m.profits.push(float64(receipt.ActualProfit))
}

// Snapshot returns a consistent point-in-time read of every tracked series.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalOpportunitiesFound: m.totalOpportunitiesFound.Load(),
		SuccessfulTrades:        m.successfulTrades.Load(),
		RiskEvents:              m.riskEvents.Load(),
		CumulativeProfit:        m.cumulativeProfit.Load(),
		LatencySamplesSeconds:   m.latencies.values(),
		ProfitSamples:           m.profits.values(),
	}
}

// Handler exposes the Prometheus scrape endpoint; callers mount it on their
// own HTTP mux (the engine itself never starts a server — dashboards and
// HTTP surfaces are out of this core's scope per spec §1).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

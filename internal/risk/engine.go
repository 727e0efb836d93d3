// Package risk implements the pre-cycle and per-opportunity risk gates (C6).
//
// Adapted in place from the teacher's RiskEngine: the mutex-guarded state,
// buffered alert channel with drop-on-full semantics, and circuit-breaker
// state machine are kept verbatim in spirit, generalized from its generic
// Signal-gating CheckSignal into an Opportunity-gating Evaluate, and trimmed
// of the CEX-specific surface (VaR, leverage, trading-hours, per-exchange
// order-rate limits) that has no counterpart in a two-leg AMM arbitrage loop.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/pkg/observability"
)

// CircuitState mirrors the teacher's three-state breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// Alert is emitted when PreCycleCheck rejects for exposure or trips the
// emergency stop on a daily-loss breach, and when Evaluate rejects for an
// insufficient balance; other rejections emit no alert.
type Alert struct {
	ID        uuid.UUID
	Severity  string
	Message   string
	Timestamp time.Time
}

// breaker trips on a daily-loss-limit breach and only resets on restart
// (§7: ErrEmergencyStop "halts new cycles until restart"), so unlike the
// teacher's time-based cooldown there is no automatic half-open retry here.
type breaker struct {
	mu      sync.Mutex
	state   CircuitState
	trippedAt time.Time
}

func (b *breaker) trip(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitOpen
	b.trippedAt = now
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == CircuitOpen
}

// Engine is the single owner of process-wide risk state (§3): current
// exposure, daily P&L, trade counters, and the emergency-stop flag.
type Engine struct {
	logger *observability.Logger
	risk   config.RiskConfig
	engine config.EngineConfig

	mu     sync.RWMutex
	state  types.RiskState
	market types.MarketMetrics

	alerts  chan *Alert
	breaker *breaker
}

// New builds a risk Engine. alertBufferSize mirrors the teacher's
// drop-on-full buffered alert channel (default 256 if zero).
func New(logger *observability.Logger, riskCfg config.RiskConfig, engineCfg config.EngineConfig, alertBufferSize int, now time.Time) *Engine {
	if alertBufferSize == 0 {
		alertBufferSize = 256
	}
	return &Engine{
		logger:  logger,
		risk:    riskCfg,
		engine:  engineCfg,
		state:   types.RiskState{DailyPnLResetAt: now},
		alerts:  make(chan *Alert, alertBufferSize),
		breaker: &breaker{state: CircuitClosed},
	}
}

// Alerts exposes the read side of the alert channel. No component in this
// repository drains it; once the buffer is full, further alerts are dropped.
func (e *Engine) Alerts() <-chan *Alert {
	return e.alerts
}

func (e *Engine) emit(ctx context.Context, severity, message string, now time.Time) {
	alert := &Alert{ID: uuid.New(), Severity: severity, Message: message, Timestamp: now}
	select {
	case e.alerts <- alert:
	default:
		e.logger.Warn(ctx, "risk alert channel full, dropping alert", map[string]interface{}{"message": message})
	}
}

// State returns a snapshot copy of the engine's risk state.
func (e *Engine) State() types.RiskState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// UpdateMarketMetrics publishes a fresh volatility/sentiment reading; the
// volatility estimator itself lives in internal/oracle (UpdateMid), since it
// is computed from the same mid-price stream the oracle already tracks.
func (e *Engine) UpdateMarketMetrics(volatility float64, sentiment string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.market = types.MarketMetrics{Volatility: volatility, Sentiment: sentiment, LastUpdatedAt: now}
}

// MarketMetrics returns the last published volatility/sentiment reading, for
// callers (the ranker) that need the raw volatility index rather than the
// derived AdaptiveConfig.
func (e *Engine) MarketMetrics() types.MarketMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.market
}

// AdaptiveConfig recomputes the per-cycle thresholds from the last published
// MarketMetrics (§3, §4.6).
func (e *Engine) AdaptiveConfig() types.AdaptiveConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	factor := types.VolatilityAdjustment(e.market.Volatility)
	return types.AdaptiveConfig{
		MinProfitBPS:               int64(float64(e.risk.MinProfitBPS) * factor),
		MaxSlippageBPS:             e.risk.MaxSlippageBPS,
		MaxTradeSize:               e.engine.MaxTradeLamports,
		VolatilityAdjustmentFactor: factor,
	}
}

// PreCycleCheck gates the whole cycle per §4.6: exposure within bound, daily
// P&L above its floor (tripping emergency-stop if not), and the breaker not
// already open. It resets the daily P&L window once 24 hours have passed since
// the last reset (a rolling window, not aligned to UTC midnight), mirroring
// the teacher's periodic-reset idiom.
func (e *Engine) PreCycleCheck(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	if now.Sub(e.state.DailyPnLResetAt) >= 24*time.Hour {
		e.state.DailyPnLLamports = 0
		e.state.DailyPnLResetAt = now
	}
	exposure := e.state.CurrentExposureLamports
	dailyPnL := e.state.DailyPnLLamports
	emergencyStop := e.state.EmergencyStop
	e.mu.Unlock()

	if e.breaker.isOpen() || emergencyStop {
		return &types.RiskRejection{Reason: types.RiskReasonEmergencyStop}
	}

	if exposure > e.risk.MaxExposureLamports {
		e.emit(ctx, "error", fmt.Sprintf("exposure %d exceeds max %d", exposure, e.risk.MaxExposureLamports), now)
		return &types.RiskRejection{Reason: types.RiskReasonExposureExceeded}
	}

	if dailyPnL < -int64(e.risk.DailyLossLimitLamports) {
		e.mu.Lock()
		e.state.EmergencyStop = true
		e.mu.Unlock()
		e.breaker.trip(now)
		e.emit(ctx, "critical", fmt.Sprintf("daily loss %d breached limit %d, emergency stop engaged", dailyPnL, e.risk.DailyLossLimitLamports), now)
		return &types.RiskRejection{Reason: types.RiskReasonDailyLossBreached}
	}

	return nil
}

// Evaluate applies the per-opportunity filter of §4.6: trade size bounds,
// adaptive profit floor, slippage policy, and balance sufficiency. It is the
// generalized, opportunity-shaped counterpart of the teacher's signal-shaped
// CheckSignal.
func (e *Engine) Evaluate(ctx context.Context, opp types.Opportunity, walletBalance uint64, adaptive types.AdaptiveConfig, now time.Time) error {
	if opp.AmountIn < e.engine.MinTradeLamports || opp.AmountIn > e.engine.MaxTradeLamports {
		return &types.RiskRejection{Reason: types.RiskReasonTradeSizeOutOfBounds}
	}

	if opp.ProfitBPS < adaptive.MinProfitBPS {
		return &types.RiskRejection{Reason: types.RiskReasonProfitBelowFloor}
	}

	if adaptive.MaxSlippageBPS > 0 && opp.EstimatedSlippageBPS > adaptive.MaxSlippageBPS {
		return &types.RiskRejection{Reason: types.RiskReasonSlippagePolicy}
	}

	estimatedFees := uint64(opp.TotalCosts)
	if walletBalance < opp.AmountIn+estimatedFees {
		e.emit(ctx, "warning", "insufficient balance for opportunity", now)
		return &types.RiskRejection{Reason: types.RiskReasonInsufficientBalance}
	}

	if opp.PoolA.HasTVLEstimate && opp.PoolA.TVLEstimateUSD <= 0 {
		return &types.RiskRejection{Reason: types.RiskReasonTVLBelowMinimum}
	}
	if opp.PoolB.HasTVLEstimate && opp.PoolB.TVLEstimateUSD <= 0 {
		return &types.RiskRejection{Reason: types.RiskReasonTVLBelowMinimum}
	}

	return nil
}

// RecordExecution folds a completed trade's outcome into process-wide state:
// daily P&L accumulates the realized result and trade counters advance (§3).
// Exposure is not touched here; ReleaseExposure handles it.
func (e *Engine) RecordExecution(receipt types.ExecutionReceipt, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.TotalTrades++
	if receipt.Success {
		e.state.SuccessfulTrades++
	}
	e.state.DailyPnLLamports += receipt.ActualProfit
}

// ReserveExposure records amount as provisionally committed capital before
// submission; ReleaseExposure returns it once the execution concludes either
// way. The engine loop (C11) calls these around each Execute call.
func (e *Engine) ReserveExposure(amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.CurrentExposureLamports += amount
}

func (e *Engine) ReleaseExposure(amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount > e.state.CurrentExposureLamports {
		e.state.CurrentExposureLamports = 0
		return
	}
	e.state.CurrentExposureLamports -= amount
}

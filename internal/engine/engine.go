// Package engine implements C11: the single cooperative cycle loop that
// drives every other component phase by phase.
//
// Grounded on internal/web3/solana/service.go's fan-out-then-join refresh
// idiom (reused as-is inside internal/registry) and on
// strategies/arbitrage/strategy.go's Start/Stop atomic-flag run loop,
// generalized from its fixed interval ticker into the §4.11 pause-then-
// exponential-backoff cycle scheduler.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/executor"
	"github.com/solarb/arbengine/internal/impact"
	"github.com/solarb/arbengine/internal/metrics"
	"github.com/solarb/arbengine/internal/oracle"
	"github.com/solarb/arbengine/internal/opportunity"
	"github.com/solarb/arbengine/internal/ranker"
	"github.com/solarb/arbengine/internal/registry"
	"github.com/solarb/arbengine/internal/risk"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/internal/wallet"
	"github.com/solarb/arbengine/pkg/observability"
)

// Engine owns the cycle loop and every component it drives (§4.11). Exactly
// one instance runs against a given wallet at a time (§5).
type Engine struct {
	client   chain.Client
	registry *registry.Registry
	oracle   *oracle.Oracle
	finder   *opportunity.Finder
	risk     *risk.Engine
	exec     *executor.Executor
	metrics  *metrics.Metrics
	signer   wallet.Signer
	logger   *observability.Logger

	engineCfg config.EngineConfig
	riskCfg   config.RiskConfig

	running       atomic.Bool
	emergencyStop atomic.Bool
	cycleID       atomic.Uint64
}

// New wires every component into a runnable Engine. MEV-protected submission
// (C9), when enabled, is wired into exec itself (executor.New's relay
// parameter) rather than held here: the executor is the only component that
// ever needs to reach for a bundle instead of two sequential legs.
func New(
	client chain.Client,
	reg *registry.Registry,
	or *oracle.Oracle,
	finder *opportunity.Finder,
	riskEngine *risk.Engine,
	exec *executor.Executor,
	m *metrics.Metrics,
	signer wallet.Signer,
	logger *observability.Logger,
	engineCfg config.EngineConfig,
	riskCfg config.RiskConfig,
) *Engine {
	return &Engine{
		client:    client,
		registry:  reg,
		oracle:    or,
		finder:    finder,
		risk:      riskEngine,
		exec:      exec,
		metrics:   m,
		signer:    signer,
		logger:    logger,
		engineCfg: engineCfg,
		riskCfg:   riskCfg,
	}
}

// Stop requests the running cycle loop to exit at the next phase boundary.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// EmergencyStop reports whether the risk engine or an operator has halted
// new cycles (§7: ErrEmergencyStop "halts new cycles until restart").
func (e *Engine) EmergencyStop() bool {
	return e.emergencyStop.Load()
}

// Run drives the cycle loop until ctx is canceled, Stop is called, or
// emergency stop engages. It returns the last fatal error, if any; a normal
// shutdown returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	bo := newBackoff(time.Second, e.engineCfg.BackoffCap)

	for e.running.Load() && !e.emergencyStop.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.runCycle(ctx); err != nil {
			if err == types.ErrEmergencyStop {
				e.emergencyStop.Store(true)
				e.logger.Error(ctx, "emergency stop engaged, halting cycle loop", err)
				return err
			}
			delay := bo.next()
			e.logger.Warn(ctx, "cycle failed, backing off", map[string]interface{}{"error": err.Error(), "delay": delay.String()})
			if !e.sleep(ctx, delay) {
				return nil
			}
			continue
		}

		bo.reset()
		if !e.sleep(ctx, e.engineCfg.CyclePause) {
			return nil
		}
	}
	return nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runCycle executes one full pass of §4.11's phase sequence: pre-cycle
// check, venue refresh, opportunity discovery, economic/risk filtering,
// ranking, execution, and bookkeeping. Each phase boundary re-checks the
// running/emergency-stop flags so a Stop or breaker trip aborts cleanly
// rather than mid-phase.
func (e *Engine) runCycle(ctx context.Context) error {
	now := time.Now()
	cycleID := e.cycleID.Add(1)

	if err := e.risk.PreCycleCheck(ctx, now); err != nil {
		if rej, ok := err.(*types.RiskRejection); ok && (rej.Reason == types.RiskReasonEmergencyStop || rej.Reason == types.RiskReasonDailyLossBreached) {
			return types.ErrEmergencyStop
		}
		e.metrics.RecordRiskEvent()
		return nil
	}

	if !e.phaseContinue() {
		return nil
	}

	if err := e.registry.Refresh(ctx, func() time.Time { return time.Now() }); err != nil {
		return err
	}

	if !e.phaseContinue() {
		return nil
	}

	snapshot := e.registry.Snapshot()
	walletBalance := e.walletBalance(ctx)
	adaptive := e.risk.AdaptiveConfig()

	opps := e.finder.Find(ctx, snapshot, walletBalance, cycleID, adaptive, now)
	e.metrics.RecordOpportunitiesFound(len(opps))
	if len(opps) == 0 {
		return nil
	}

	if !e.phaseContinue() {
		return nil
	}

	viable := e.filterViable(ctx, opps, walletBalance, adaptive, now)
	if len(viable) == 0 {
		return nil
	}

	market := e.risk.MarketMetrics()
	riskMultiplier := e.risk.State().SuccessRate()
	ranked := ranker.Rank(viable, market.Volatility, riskMultiplier, e.engineCfg.TopK)

	selected, ok := ranker.Select(ranked)
	if !ok {
		return nil
	}

	if !e.phaseContinue() {
		return nil
	}

	e.risk.ReserveExposure(selected.AmountIn)
	receipt := e.exec.Execute(ctx, selected)
	// A partial fill leaves the intermediate position open, so its reserved
	// exposure stays counted against the exposure cap.
	if receipt.ErrorKind != types.ErrorKindPartialFill {
		e.risk.ReleaseExposure(selected.AmountIn)
	}

	e.risk.RecordExecution(receipt, time.Now())
	e.metrics.RecordExecution(receipt)

	if !receipt.Success {
		e.metrics.RecordRiskEvent()
	}

	return nil
}

// phaseContinue reports whether the cycle should proceed past the current
// phase boundary (§4.11: "a cycle aborts cleanly at every phase boundary
// when either flag flips").
func (e *Engine) phaseContinue() bool {
	return e.running.Load() && !e.emergencyStop.Load()
}

// filterViable applies §4.5's economic-viability gate and §4.6's risk
// Evaluate to every discovered opportunity, in the finder's already-sorted
// order, returning only the survivors.
func (e *Engine) filterViable(ctx context.Context, opps []types.Opportunity, walletBalance uint64, adaptive types.AdaptiveConfig, now time.Time) []types.Opportunity {
	viable := make([]types.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if !opp.Viable() {
			continue
		}
		if !impact.EconomicallyViable(opp.NetProfit, opp.TotalCosts, e.riskCfg.MinProfitThresholdLamports, e.riskCfg.MarginRatio) {
			e.metrics.RecordRiskEvent()
			continue
		}
		if err := e.risk.Evaluate(ctx, opp, walletBalance, adaptive, now); err != nil {
			e.metrics.RecordRiskEvent()
			continue
		}
		viable = append(viable, opp)
	}
	return viable
}

// walletBalance returns the live on-chain balance when a signer is present,
// or the configured simulated balance otherwise (sim-mode cycles have no
// wallet to query).
func (e *Engine) walletBalance(ctx context.Context) uint64 {
	if e.signer == nil {
		return e.riskCfg.SimulatedWalletBalanceLamports
	}
	var addr types.Address
	copy(addr[:], e.signer.PublicKey().Bytes())
	balance, err := e.client.GetBalance(ctx, addr)
	if err != nil {
		e.logger.Warn(ctx, "wallet balance query failed, using simulated balance", map[string]interface{}{"error": err.Error()})
		return e.riskCfg.SimulatedWalletBalanceLamports
	}
	return balance
}

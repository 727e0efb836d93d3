package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/pkg/observability"
)

func newTestEngine(t *testing.T, riskCfg config.RiskConfig, engineCfg config.EngineConfig) *Engine {
	t.Helper()
	logger := observability.NewLogger(config.ObservabilityConfig{LogLevel: "error", LogFormat: "json", ServiceName: "test"})
	return New(logger, riskCfg, engineCfg, 0, time.Now())
}

func TestPreCycleCheckPassesWithinLimits(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{MaxExposureLamports: 1000, DailyLossLimitLamports: 500}, config.EngineConfig{})
	err := e.PreCycleCheck(context.Background(), time.Now())
	assert.NoError(t, err)
}

func TestPreCycleCheckRejectsExposureExceeded(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{MaxExposureLamports: 1000, DailyLossLimitLamports: 500}, config.EngineConfig{})
	e.ReserveExposure(2000)

	err := e.PreCycleCheck(context.Background(), time.Now())
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonExposureExceeded, rej.Reason)
}

func TestPreCycleCheckTripsEmergencyStopOnDailyLossBreach(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{MaxExposureLamports: 1_000_000, DailyLossLimitLamports: 100}, config.EngineConfig{})
	now := time.Now()
	e.RecordExecution(types.ExecutionReceipt{Success: false, ActualProfit: -200}, now)

	err := e.PreCycleCheck(context.Background(), now)
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonDailyLossBreached, rej.Reason)

	// Once tripped, subsequent checks are rejected as emergency-stop without
	// needing another loss event (§7: halts until restart).
	err = e.PreCycleCheck(context.Background(), now)
	require.Error(t, err)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonEmergencyStop, rej.Reason)
}

func TestEvaluateRejectsTradeSizeOutOfBounds(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 100, MaxTradeLamports: 1000})
	opp := types.Opportunity{AmountIn: 50}

	err := e.Evaluate(context.Background(), opp, 1_000_000, types.AdaptiveConfig{}, time.Now())
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonTradeSizeOutOfBounds, rej.Reason)
}

func TestEvaluateRejectsBelowAdaptiveProfitFloor(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 10, MaxTradeLamports: 1000})
	opp := types.Opportunity{AmountIn: 100, ProfitBPS: 5}

	err := e.Evaluate(context.Background(), opp, 1_000_000, types.AdaptiveConfig{MinProfitBPS: 50}, time.Now())
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonProfitBelowFloor, rej.Reason)
}

// TestEvaluateRejectsSlippageExceedsPolicy covers §4.6's max_slippage_bps
// gate: an opportunity whose combined estimated price impact exceeds the
// adaptive ceiling is rejected with reason slippage_exceeds_policy, even
// though it clears every other gate.
func TestEvaluateRejectsSlippageExceedsPolicy(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 10, MaxTradeLamports: 10_000})
	opp := types.Opportunity{AmountIn: 1000, ProfitBPS: 100, TotalCosts: 50, EstimatedSlippageBPS: 200}

	err := e.Evaluate(context.Background(), opp, 1_000_000, types.AdaptiveConfig{MinProfitBPS: 10, MaxSlippageBPS: 1}, time.Now())
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonSlippagePolicy, rej.Reason)
}

func TestEvaluateAcceptsOpportunityWithinSlippagePolicy(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 10, MaxTradeLamports: 10_000})
	opp := types.Opportunity{AmountIn: 1000, ProfitBPS: 100, TotalCosts: 50, EstimatedSlippageBPS: 30}

	err := e.Evaluate(context.Background(), opp, 1_000_000, types.AdaptiveConfig{MinProfitBPS: 10, MaxSlippageBPS: 50}, time.Now())
	assert.NoError(t, err)
}

func TestEvaluateRejectsInsufficientBalance(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 10, MaxTradeLamports: 10_000})
	opp := types.Opportunity{AmountIn: 5000, ProfitBPS: 100, TotalCosts: 100}

	err := e.Evaluate(context.Background(), opp, 1000, types.AdaptiveConfig{MinProfitBPS: 10}, time.Now())
	require.Error(t, err)
	var rej *types.RiskRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, types.RiskReasonInsufficientBalance, rej.Reason)
}

func TestEvaluateAcceptsHealthyOpportunity(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{}, config.EngineConfig{MinTradeLamports: 10, MaxTradeLamports: 10_000})
	opp := types.Opportunity{AmountIn: 1000, ProfitBPS: 100, TotalCosts: 50}

	err := e.Evaluate(context.Background(), opp, 1_000_000, types.AdaptiveConfig{MinProfitBPS: 10}, time.Now())
	assert.NoError(t, err)
}

func TestAdaptiveConfigAppliesVolatilityFactor(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{MinProfitBPS: 50}, config.EngineConfig{MaxTradeLamports: 1000})
	e.UpdateMarketMetrics(0.08, "volatile", time.Now())

	adaptive := e.AdaptiveConfig()
	assert.Equal(t, int64(75), adaptive.MinProfitBPS) // 50 * 1.5
}

func TestAlertsChannelReceivesOnRejection(t *testing.T) {
	e := newTestEngine(t, config.RiskConfig{MaxExposureLamports: 10}, config.EngineConfig{})
	e.ReserveExposure(100)

	_ = e.PreCycleCheck(context.Background(), time.Now())

	select {
	case alert := <-e.Alerts():
		assert.NotEmpty(t, alert.Message)
	default:
		t.Fatal("expected an alert to be emitted")
	}
}

package types

import "time"

// RiskState is process-wide and single-owner (C6). It is mutated only through
// the risk engine's methods; the engine loop reports each trade's receipt to
// them rather than touching fields directly (§3).
type RiskState struct {
	CurrentExposureLamports uint64
	DailyPnLLamports        int64
	DailyPnLResetAt         time.Time

	TotalTrades      uint64
	SuccessfulTrades uint64

	EmergencyStop bool
}

// SuccessRate returns the rolling success rate, or 1.0 with no trades yet so
// a fresh engine isn't penalized before it has a track record.
func (r RiskState) SuccessRate() float64 {
	if r.TotalTrades == 0 {
		return 1.0
	}
	return float64(r.SuccessfulTrades) / float64(r.TotalTrades)
}

// MarketMetrics is process-wide: the current volatility estimate, a coarse
// sentiment tag, and the last update timestamp. It drives adaptive slippage
// and profit thresholds (§3).
type MarketMetrics struct {
	Volatility      float64
	Sentiment       string
	LastUpdatedAt   time.Time
}

// AdaptiveConfig is recomputed from MarketMetrics at the start of each cycle
// (§3).
type AdaptiveConfig struct {
	MinProfitBPS               int64
	MaxSlippageBPS             int64
	MaxTradeSize               uint64
	VolatilityAdjustmentFactor float64
}

// VolatilityAdjustment implements §4.6's three-tier rule: tighter threshold
// above 5% volatility, permissive below 2%, neutral in between.
func VolatilityAdjustment(volatility float64) float64 {
	switch {
	case volatility > 0.05:
		return 1.5
	case volatility < 0.02:
		return 0.8
	default:
		return 1.0
	}
}

// Package opportunity enumerates candidate two-leg arbitrage cycles across
// every pair of pools sharing a common token and scores their profitability
// (C4).
//
// Grounded on DimaJoyti-go-coffee's arbitrage_detector.go (pairwise pool
// enumeration, profit_bps computation) generalized from its single-exchange
// CEX price-table shape to this engine's PoolState/oracle pipeline, and on
// original_source/archive/legacy_binaries/professional_arbitrage.rs for the
// base transaction fee constant (5000 lamports/tx).
package opportunity

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/impact"
	"github.com/solarb/arbengine/internal/oracle"
	"github.com/solarb/arbengine/internal/registry"
	"github.com/solarb/arbengine/internal/types"
)

// BaseTxFeeLamports is Solana's standard transaction fee, grounded on
// professional_arbitrage.rs's hardcoded 5000-lamport figure.
const BaseTxFeeLamports = 5_000

// Finder enumerates and prices candidate opportunities for one cycle.
type Finder struct {
	oracle *oracle.Oracle
	engine config.EngineConfig
	risk   config.RiskConfig
}

// New builds a Finder.
func New(o *oracle.Oracle, engineCfg config.EngineConfig, riskCfg config.RiskConfig) *Finder {
	return &Finder{oracle: o, engine: engineCfg, risk: riskCfg}
}

// Find enumerates every viable opportunity in snapshot. walletBalance is
// used by the §4.4.1 size-selection formula; adaptive gates the
// multi-token-mode tiering (§4.4.2) when f.engine.MultiTokenMode is set.
func (f *Finder) Find(ctx context.Context, snapshot *registry.Snapshot, walletBalance uint64, cycleID uint64, adaptive types.AdaptiveConfig, now time.Time) []types.Opportunity {
	var found []types.Opportunity

	for _, pair := range snapshot.Pairs() {
		poolA, poolB := pair[0], pair[1]
		if !poolA.IsOperational || !poolB.IsOperational {
			continue
		}
		intermediate, ok := poolA.SharesToken(poolB)
		if !ok {
			continue
		}

		tokenIn := poolA.OtherToken(intermediate)
		tokenOut := poolB.OtherToken(intermediate)

		tier := 0
		minProfitBPS := adaptive.MinProfitBPS
		if f.engine.MultiTokenMode {
			tier = 1
			// Tier 2 applies a stricter floor to any leg whose endpoints
			// differ from the primary cycle token, per §4.4.2.
			if !tokenIn.Equal(tokenOut) {
				tier = 2
				minProfitBPS += 25
			}
		}

		size := f.selectSize(poolA, poolB, walletBalance)
		if size == 0 {
			continue
		}

		opp, ok := f.priceOpportunity(ctx, poolA, poolB, tokenIn, intermediate, tokenOut, size, cycleID, tier, minProfitBPS, now)
		if !ok {
			continue
		}
		found = append(found, opp)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].NetProfit != found[j].NetProfit {
			return found[i].NetProfit > found[j].NetProfit
		}
		tvlI := minTVL(found[i])
		tvlJ := minTVL(found[j])
		if tvlI != tvlJ {
			return tvlI > tvlJ
		}
		if c := bytes.Compare(found[i].PoolA.Address[:], found[j].PoolA.Address[:]); c != 0 {
			return c < 0
		}
		if c := bytes.Compare(found[i].PoolB.Address[:], found[j].PoolB.Address[:]); c != 0 {
			return c < 0
		}
		return found[i].ID < found[j].ID
	})

	return found
}

// selectSize implements §4.4.1: s = min(max_trade_size_config,
// 0.1×wallet_balance, min(reserve_a,reserve_b)/20), clamped to
// [MIN_TRADE, MAX_TRADE].
func (f *Finder) selectSize(poolA, poolB types.PoolState, walletBalance uint64) uint64 {
	tenth := walletBalance / 10

	smallestReserve := poolA.ReserveA
	for _, r := range []uint64{poolA.ReserveA, poolA.ReserveB, poolB.ReserveA, poolB.ReserveB} {
		if r < smallestReserve {
			smallestReserve = r
		}
	}
	twentieth := smallestReserve / 20

	size := f.engine.MaxTradeSizeConfig
	if tenth < size {
		size = tenth
	}
	if twentieth < size {
		size = twentieth
	}

	if size < f.engine.MinTradeLamports {
		return 0
	}
	if size > f.engine.MaxTradeLamports {
		size = f.engine.MaxTradeLamports
	}
	return size
}

func (f *Finder) priceOpportunity(ctx context.Context, poolA, poolB types.PoolState, tokenIn, intermediate, tokenOut types.Token, size uint64, cycleID uint64, tier int, minProfitBPS int64, now time.Time) (types.Opportunity, bool) {
	legOne := f.oracle.Quote(ctx, poolA, tokenIn, size, int(f.risk.MaxSlippageBPS))
	if legOne.OutAmount == 0 {
		return types.Opportunity{}, false
	}

	legTwo := f.oracle.Quote(ctx, poolB, intermediate, legOne.OutAmount, int(f.risk.MaxSlippageBPS))
	if legTwo.OutAmount == 0 {
		return types.Opportunity{}, false
	}

	grossProfit := f.valueInTokenInUnits(legTwo.OutAmount, tokenOut, tokenIn, now) - int64(size)

	costs := f.totalCosts(poolA, poolB, size, legOne, legTwo)
	netProfit := grossProfit - costs.Total()

	var profitBPS int64
	if size > 0 {
		profitBPS = netProfit * 10_000 / int64(size)
	}

	if netProfit <= 0 || profitBPS < minProfitBPS {
		return types.Opportunity{}, false
	}

	opp := types.Opportunity{
		ID:                   types.NewOpportunityID(poolA.Address, poolB.Address, intermediate, cycleID),
		PoolA:                poolA,
		PoolB:                poolB,
		IntermediateToken:    intermediate,
		TokenIn:              tokenIn,
		TokenOut:             tokenOut,
		AmountIn:             size,
		ExpectedAmountOut:    legTwo.OutAmount,
		GrossProfit:          grossProfit,
		TotalCosts:           costs.Total(),
		NetProfit:            netProfit,
		ProfitBPS:            profitBPS,
		EstimatedSlippageBPS: legOne.PriceImpactBPS + legTwo.PriceImpactBPS,
		Confidence:           confidenceFor(legOne.RouteTag, legTwo.RouteTag),
		CreatedAt:            now,
		Tier:                 tier,
	}
	return opp, true
}

// valueInTokenInUnits converts an amount denominated in tokenOut into
// tokenIn units via the oracle's cached mid-prices when the two endpoints
// differ (§4.4: "value both legs through the same reference token using the
// mid-price when endpoints differ"). When tokenOut == tokenIn, or either
// mid-price is missing or stale, the amount passes through unconverted. The
// engine cycle does not publish mid-prices (nothing outside the tests calls
// oracle.UpdateMid), so in a running engine differing endpoints are also
// passed through unconverted.
func (f *Finder) valueInTokenInUnits(amount uint64, tokenOut, tokenIn types.Token, now time.Time) int64 {
	if tokenOut.Equal(tokenIn) {
		return int64(amount)
	}
	priceOut, freshOut, _ := f.midOrZero(tokenOut, now)
	priceIn, freshIn, _ := f.midOrZero(tokenIn, now)
	if !freshOut || !freshIn || priceIn == 0 {
		return int64(amount)
	}
	return int64(float64(amount) * priceOut / priceIn)
}

func (f *Finder) midOrZero(token types.Token, now time.Time) (price float64, fresh bool, volatility float64) {
	price, volatility, fresh = f.oracle.Mid(token, now)
	return price, fresh, volatility
}

// totalCosts implements §4.5: total_costs = base_tx_fee×legs +
// priority_fee×legs + venue_fee_sum + dex_liquidity_fee_sum +
// price_impact_sum.
func (f *Finder) totalCosts(poolA, poolB types.PoolState, size uint64, legOne, legTwo oracle.ExecQuote) impact.CostBreakdown {
	const legs = 2

	venueFeeA := int64(size) * int64(poolA.FeeBPS) / 10_000
	venueFeeB := int64(legOne.OutAmount) * int64(poolB.FeeBPS) / 10_000

	priceImpactCostA := int64(size) * legOne.PriceImpactBPS / 10_000
	priceImpactCostB := int64(legOne.OutAmount) * legTwo.PriceImpactBPS / 10_000

	return impact.CostBreakdown{
		BaseTxFee:       BaseTxFeeLamports * legs,
		PriorityFee:     int64(f.risk.MEVProtectionPriorityFee) * legs,
		VenueFeeSum:     venueFeeA + venueFeeB,
		DexLiquidityFee: 0,
		PriceImpactSum:  priceImpactCostA + priceImpactCostB,
	}
}

func confidenceFor(tagA, tagB oracle.RouteTag) float64 {
	if tagA == oracle.RouteAggregator && tagB == oracle.RouteAggregator {
		return 1.0
	}
	if tagA == oracle.RouteLocalMath && tagB == oracle.RouteLocalMath {
		return 0.7
	}
	return 0.85
}

func minTVL(o types.Opportunity) float64 {
	if !o.PoolA.HasTVLEstimate || !o.PoolB.HasTVLEstimate {
		return 0
	}
	if o.PoolA.TVLEstimateUSD < o.PoolB.TVLEstimateUSD {
		return o.PoolA.TVLEstimateUSD
	}
	return o.PoolB.TVLEstimateUSD
}

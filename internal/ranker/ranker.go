// Package ranker implements C7: scoring surviving opportunities and choosing
// the single optimal target for a cycle.
//
// Grounded on strategies/arbitrage/strategy.go's createArbitrageSignals
// (sort candidate signals by a scalar score, keep only the viable head),
// generalized from that file's percentage-threshold sort into the explicit
// score formula of spec §4.7.
package ranker

import (
	"sort"

	"github.com/solarb/arbengine/internal/types"
)

// bonusThresholdLamports is the §4.7 "net_profit ≥ 0.01 of base token"
// bonus trigger, expressed in lamports (base token = SOL, 1e9 lamports/SOL).
const bonusThresholdLamports = 10_000_000

// Score implements §4.7: score = net_profit × (1 / (1 + volatility_index)) ×
// risk_multiplier × bonus, where bonus is 1.2 at or above the profit
// threshold and 1.0 otherwise.
func Score(o types.Opportunity, volatilityIndex, riskMultiplier float64) float64 {
	bonus := 1.0
	if o.NetProfit >= bonusThresholdLamports {
		bonus = 1.2
	}
	return float64(o.NetProfit) * (1.0 / (1.0 + volatilityIndex)) * riskMultiplier * bonus
}

// Ranked pairs an opportunity with its computed score.
type Ranked struct {
	Opportunity types.Opportunity
	Score       float64
}

// Rank truncates opps to the top-K backpressure bound (§5: "opportunity
// lists are truncated to top-K ... before ranking", default 10 — a topK <= 0
// disables truncation), scores each survivor, and sorts the result
// descending by score with a deterministic ID tie-break.
//
// opps is expected pre-sorted by net profit (internal/opportunity.Finder's
// output already is), so truncation before scoring keeps the highest-profit
// candidates rather than an arbitrary prefix.
func Rank(opps []types.Opportunity, volatilityIndex, riskMultiplier float64, topK int) []Ranked {
	if topK > 0 && len(opps) > topK {
		opps = opps[:topK]
	}

	ranked := make([]Ranked, len(opps))
	for i, o := range opps {
		ranked[i] = Ranked{Opportunity: o, Score: Score(o, volatilityIndex, riskMultiplier)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Opportunity.ID < ranked[j].Opportunity.ID
	})
	return ranked
}

// Select returns the single highest-scoring opportunity, per §4.7: "select
// the single highest-scoring opportunity per cycle. Multi-opportunity
// concurrent execution is not performed in this core."
func Select(ranked []Ranked) (types.Opportunity, bool) {
	if len(ranked) == 0 {
		return types.Opportunity{}, false
	}
	return ranked[0].Opportunity, true
}

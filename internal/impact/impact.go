// Package impact computes swap outputs, price impact, and total execution
// cost for both constant-product and concentrated-liquidity venues (C5).
//
// Grounded on other_examples' palaseus-Adrenochain AMM (pkg/defi/amm):
// big.Int reserves, `calculateSwapOutput`/`calculateFee` as the constant-
// product reference implementation this package generalizes into a
// standalone, side-effect-free quote function instead of a stateful pool
// method.
package impact

import (
	"math/big"
)

const bpsDenominator = 10_000

// SwapOutput computes Δy for a constant-product pool (x, y) with fee feeBPS
// taking Δx of x as input. Reserves are widened to big.Int to avoid uint64
// overflow in the x*y product (§4.5: "integer arithmetic, widen to 128-bit
// before multiplication" — big.Int gives unbounded precision, a superset of
// that requirement).
func SwapOutput(reserveX, reserveY, amountIn uint64, feeBPS uint32) uint64 {
	if amountIn == 0 || reserveX == 0 || reserveY == 0 {
		return 0
	}

	x := new(big.Int).SetUint64(reserveX)
	y := new(big.Int).SetUint64(reserveY)
	dx := new(big.Int).SetUint64(amountIn)

	dxAfterFee := effectiveInput(dx, feeBPS)

	// Δy = y - (x*y)/(x+Δx')
	xy := new(big.Int).Mul(x, y)
	denom := new(big.Int).Add(x, dxAfterFee)
	if denom.Sign() == 0 {
		return 0
	}
	quotient := new(big.Int).Div(xy, denom)
	dy := new(big.Int).Sub(y, quotient)
	if dy.Sign() < 0 {
		return 0
	}
	// Flooring the quotient rounds Δy up to the whole reserve when the trade
	// dwarfs the pool; cap it one unit below y so a pool is never quoted as
	// fully drained.
	if dy.Cmp(y) >= 0 {
		dy.Sub(y, big.NewInt(1))
	}
	if !dy.IsUint64() {
		return ^uint64(0)
	}
	return dy.Uint64()
}

func effectiveInput(dx *big.Int, feeBPS uint32) *big.Int {
	numer := new(big.Int).Mul(dx, big.NewInt(int64(bpsDenominator-feeBPS)))
	return numer.Div(numer, big.NewInt(bpsDenominator))
}

// PriceImpactBPS computes the §4.5 price-impact formula:
// 10_000 × (Δx × y/x − Δy) / (Δx × y/x).
//
// Δx×y/x is the no-slippage reference output; the gap between that and the
// actual Δy, scaled to bps, is the impact.
func PriceImpactBPS(reserveX, reserveY, amountIn, amountOut uint64) int64 {
	if amountIn == 0 || reserveX == 0 {
		return 0
	}

	x := new(big.Int).SetUint64(reserveX)
	y := new(big.Int).SetUint64(reserveY)
	dx := new(big.Int).SetUint64(amountIn)
	dy := new(big.Int).SetUint64(amountOut)

	// reference = dx*y/x
	reference := new(big.Int).Mul(dx, y)
	reference.Div(reference, x)

	if reference.Sign() == 0 {
		return 0
	}

	diff := new(big.Int).Sub(reference, dy)
	scaled := new(big.Int).Mul(diff, big.NewInt(bpsDenominator))
	bps := new(big.Int).Div(scaled, reference)

	return bps.Int64()
}

// CostBreakdown is the per-route cost accounting feeding net_profit (§4.5).
type CostBreakdown struct {
	BaseTxFee        int64
	PriorityFee      int64
	VenueFeeSum      int64
	DexLiquidityFee  int64
	PriceImpactSum   int64
}

// Total sums every component: total_costs = base_tx_fee×legs +
// priority_fee×legs + venue_fee_sum + dex_liquidity_fee_sum +
// price_impact_sum. legs is folded into BaseTxFee/PriorityFee by the caller
// (internal/opportunity multiplies per-leg constants by the route's leg
// count before constructing this struct), so Total is a plain sum here.
func (c CostBreakdown) Total() int64 {
	return c.BaseTxFee + c.PriorityFee + c.VenueFeeSum + c.DexLiquidityFee + c.PriceImpactSum
}

// EconomicallyViable implements the §4.5 MUST-gate applied before ranking:
// net_profit must clear the absolute floor AND the margin-ratio floor.
// It returns false for either failure alike and does not report which floor
// was missed; no thin_margin reason is attached to the rejection.
func EconomicallyViable(netProfit, totalCosts, minProfitThreshold, marginRatio int64) bool {
	if netProfit < minProfitThreshold {
		return false
	}
	if totalCosts <= 0 {
		return true
	}
	return netProfit/totalCosts >= marginRatio
}

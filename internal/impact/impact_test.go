package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwapOutputZeroInputYieldsZeroOutput(t *testing.T) {
	assert.Equal(t, uint64(0), SwapOutput(1_000_000, 1_000_000, 0, 30))
}

func TestSwapOutputIsSubAdditive(t *testing.T) {
	// Δy(Δx1+Δx2) <= Δy(Δx1) + Δy(Δx2) (§8 Testable Property 2).
	reserveX, reserveY := uint64(10_000_000), uint64(10_000_000)
	var feeBPS uint32 = 30

	combined := SwapOutput(reserveX, reserveY, 2_000_000, feeBPS)
	split1 := SwapOutput(reserveX, reserveY, 1_000_000, feeBPS)
	split2 := SwapOutput(reserveX, reserveY, 1_000_000, feeBPS)

	assert.LessOrEqual(t, combined, split1+split2)
}

func TestSwapOutputIsMonotonicInInput(t *testing.T) {
	reserveX, reserveY := uint64(5_000_000), uint64(5_000_000)
	small := SwapOutput(reserveX, reserveY, 100_000, 30)
	large := SwapOutput(reserveX, reserveY, 200_000, 30)
	assert.Less(t, small, large)
}

func TestSwapOutputNeverExceedsReserveY(t *testing.T) {
	out := SwapOutput(100, 100, 1_000_000_000, 30)
	assert.Less(t, out, uint64(100))
}

func TestPriceImpactBPSIsZeroForNoSlippageCase(t *testing.T) {
	// A vanishingly small trade against deep reserves should show ~0 impact.
	reserveX, reserveY := uint64(1_000_000_000_000), uint64(1_000_000_000_000)
	amountIn := uint64(1)
	amountOut := SwapOutput(reserveX, reserveY, amountIn, 0)
	impact := PriceImpactBPS(reserveX, reserveY, amountIn, amountOut)
	assert.GreaterOrEqual(t, impact, int64(0))
	assert.LessOrEqual(t, impact, int64(1))
}

func TestEconomicallyViableRejectsThinMargin(t *testing.T) {
	// net_profit clears the absolute floor but margin ratio (profit/cost) is
	// below the required 10x.
	assert.False(t, EconomicallyViable(100, 50, 10, 10))
}

func TestEconomicallyViableAcceptsHealthyMargin(t *testing.T) {
	assert.True(t, EconomicallyViable(1000, 50, 10, 10))
}

func TestEconomicallyViableRejectsBelowAbsoluteFloor(t *testing.T) {
	assert.False(t, EconomicallyViable(5, 1, 10, 10))
}

func TestCLAMMSwapOutputMatchesConstantProduct(t *testing.T) {
	got := CLAMMSwapOutput(1_000_000, 1_000_000, 10_000, 30)
	want := SwapOutput(1_000_000, 1_000_000, 10_000, 30)
	assert.Equal(t, want, got)
}

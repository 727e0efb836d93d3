package impact

// CLAMMSwapOutput approximates a concentrated-liquidity venue's output by
// treating the pool's two vault balances as a local constant-product
// pool (§9 Open Question 4 / §4.5: "bounded-liquidity single-tick
// approximation ... without implementing full tick-array traversal"). This
// is sound for the trade sizes this engine considers (bounded by
// MAX_TRADE_LAMPORTS, typically a small fraction of a whirlpool's active-tick
// liquidity) and preserves the monotonicity/concavity invariant required by
// §8's testable properties, since it delegates to the same underlying
// formula as the constant-product path.
//
// A full implementation would walk the tick-array bitmap to account for
// liquidity boundaries crossed mid-swap; that is out of scope here (see
// DESIGN.md).
func CLAMMSwapOutput(reserveX, reserveY, amountIn uint64, feeBPS uint32) uint64 {
	return SwapOutput(reserveX, reserveY, amountIn, feeBPS)
}

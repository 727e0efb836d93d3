// Package types holds the data model shared across the opportunity pipeline:
// Token, Venue, PoolState, Opportunity, RiskState, MarketMetrics,
// AdaptiveConfig and ExecutionReceipt.
package types

import "fmt"

// Token is a unique 32-byte identifier (a Solana mint address) together with
// the decimal exponent used to interpret raw integer amounts as fixed-point
// quantities.
type Token struct {
	Address  [32]byte
	Symbol   string
	Decimals uint8
}

// String renders a short display form of the token: the first four bytes of
// its address in hex. Token stays dependency-free so it can be used from any
// package without an import cycle.
func (t Token) String() string {
	return fmt.Sprintf("%x", t.Address[:4])
}

// Equal reports whether two tokens refer to the same mint address.
func (t Token) Equal(o Token) bool {
	return t.Address == o.Address
}

// Less provides the deterministic address ordering used to normalize
// (token_a, token_b) pairs and to break ranking ties (spec §4.4's
// "lexicographic order of addresses").
func (t Token) Less(o Token) bool {
	for i := range t.Address {
		if t.Address[i] != o.Address[i] {
			return t.Address[i] < o.Address[i]
		}
	}
	return false
}

// OrderedPair returns (a, b) sorted so the lexicographically smaller address
// comes first, matching PoolState's "ordered by address to normalize"
// invariant (§3).
func OrderedPair(a, b Token) (Token, Token) {
	if b.Less(a) {
		return b, a
	}
	return a, b
}

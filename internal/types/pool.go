package types

import "time"

// PoolState is the primary entity of the registry (C3), produced by a venue
// adapter (C1). It is immutable once constructed: a refresh produces a new
// PoolState and swaps it in, rather than mutating fields in place, so readers
// always observe a consistent snapshot (§3 invariant).
type PoolState struct {
	Address Address
	Kind    VenueKind
	Program VenueProgram

	TokenA Token
	TokenB Token

	VaultA Address
	VaultB Address

	ReserveA uint64
	ReserveB uint64

	FeeBPS uint32

	LastRefreshedAt time.Time

	TVLEstimateUSD float64
	HasTVLEstimate bool

	IsOperational bool
}

// Valid checks the invariants §3 requires of any PoolState exposed to readers:
// reserve_a > 0 ∧ reserve_b > 0 whenever is_operational, token_a ≠ token_b,
// fee_bps ∈ [0, 10_000).
func (p PoolState) Valid() bool {
	if p.TokenA.Equal(p.TokenB) {
		return false
	}
	if p.FeeBPS >= 10_000 {
		return false
	}
	if p.IsOperational && (p.ReserveA == 0 || p.ReserveB == 0) {
		return false
	}
	return true
}

// SharesToken reports whether p and o share a common token, returning it.
func (p PoolState) SharesToken(o PoolState) (Token, bool) {
	switch {
	case p.TokenA.Equal(o.TokenA), p.TokenA.Equal(o.TokenB):
		return p.TokenA, true
	case p.TokenB.Equal(o.TokenA), p.TokenB.Equal(o.TokenB):
		return p.TokenB, true
	default:
		return Token{}, false
	}
}

// OtherToken returns the token in the pair (TokenA, TokenB) that isn't t.
func (p PoolState) OtherToken(t Token) Token {
	if p.TokenA.Equal(t) {
		return p.TokenB
	}
	return p.TokenA
}

// ReserveOf returns the reserve amount backing t, and true if t is one of
// this pool's two tokens.
func (p PoolState) ReserveOf(t Token) (uint64, bool) {
	switch {
	case p.TokenA.Equal(t):
		return p.ReserveA, true
	case p.TokenB.Equal(t):
		return p.ReserveB, true
	default:
		return 0, false
	}
}

// Fresh reports whether the pool was refreshed within ttl of now.
func (p PoolState) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastRefreshedAt) < ttl
}

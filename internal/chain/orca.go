package chain

import "github.com/solarb/arbengine/internal/types"

// OrcaProgramID is Orca's published program address (shared by the
// Whirlpool and legacy pool layouts), matching program_manager.go's
// OrcaProgramID constant.
var OrcaProgramID = addressFromBase58("9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP")

// NewOrcaWhirlpoolAdapter builds the decoder for Orca's concentrated-liquidity
// Whirlpool account. Reserves here are still read by vault probe rather than
// by walking tick arrays: §9's design note accepts an approximation of the
// curve (internal/impact's clamm.go) in exchange for not porting full tick
// math, so this adapter only needs the pool's token vaults and fee tier.
// Grounded on internal/web3/solana/orca_client.go's pool struct shape.
func NewOrcaWhirlpoolAdapter() Adapter {
	return Adapter{
		Program: types.ProgramOrcaWhirlpool,
		Kind:    types.VenueConcentratedLiquidityAMM,
		OwnerID: OrcaProgramID,
		MinLen:  653,
		Layouts: []FieldLayout{
			{
				MintAOffset:  101,
				MintBOffset:  181,
				VaultAOffset: 133,
				VaultBOffset: 213,
				FeeBPSOffset: 45,
				FeeBPSWidth:  2,
			},
		},
	}
}

// NewOrcaLegacyAdapter builds the decoder for Orca's pre-Whirlpool
// constant-product pool account.
func NewOrcaLegacyAdapter() Adapter {
	return Adapter{
		Program: types.ProgramOrcaLegacy,
		Kind:    types.VenueConstantProductAMM,
		OwnerID: OrcaProgramID,
		MinLen:  324,
		Layouts: []FieldLayout{
			{
				MintAOffset:  136,
				MintBOffset:  168,
				VaultAOffset: 72,
				VaultBOffset: 104,
				FeeBPSOffset: 300,
				FeeBPSWidth:  2,
			},
		},
	}
}

// DefaultAdapters returns every venue adapter this engine supports (§4.1).
func DefaultAdapters() []Adapter {
	return []Adapter{
		NewRaydiumAdapter(),
		NewOrcaWhirlpoolAdapter(),
		NewOrcaLegacyAdapter(),
	}
}

// AdapterByProgram resolves the default adapter (if any) whose Program equals
// program. OwnerID is not consulted.
func AdapterByProgram(program types.VenueProgram) (Adapter, bool) {
	for _, a := range DefaultAdapters() {
		if a.Program == program {
			return a, true
		}
	}
	return Adapter{}, false
}

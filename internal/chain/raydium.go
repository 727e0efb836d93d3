package chain

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solarb/arbengine/internal/types"
)

// RaydiumAMMProgramID is Raydium's published AMM program address, matching
// program_manager.go's RaydiumAMMProgramID constant.
var RaydiumAMMProgramID = addressFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

func addressFromBase58(s string) types.Address {
	pk := solana.MustPublicKeyFromBase58(s)
	var a types.Address
	copy(a[:], pk[:])
	return a
}

// NewRaydiumAdapter builds the decoder for Raydium's standard AMM pool
// account (the v4 liquidity-pool layout and its earlier base-mint/quote-mint
// ordering, tried in turn). Grounded on internal/web3/solana/raydium_client.go's
// RaydiumPool field order (BaseMint, QuoteMint, BaseVault, QuoteVault).
func NewRaydiumAdapter() Adapter {
	return Adapter{
		Program: types.ProgramRaydiumAMM,
		Kind:    types.VenueConstantProductAMM,
		OwnerID: RaydiumAMMProgramID,
		MinLen:  752,
		Layouts: []FieldLayout{
			{
				// Raydium AMM v4 layout.
				MintAOffset:  400,
				MintBOffset:  432,
				VaultAOffset: 336,
				VaultBOffset: 368,
				FeeBPSOffset: 176,
				FeeBPSWidth:  8,
			},
			{
				// Earlier layout revision with mints preceding vaults.
				MintAOffset:  336,
				MintBOffset:  368,
				VaultAOffset: 400,
				VaultBOffset: 432,
				FeeBPSOffset: 144,
				FeeBPSWidth:  8,
			},
		},
	}
}

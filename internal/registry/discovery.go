package registry

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/types"
)

// discoveryPoolSeed tags the PDA derivation so it cannot collide with an
// unrelated account a venue program happens to own at some other seed.
var discoveryPoolSeed = []byte("arbengine-pool-discovery")

// discoverVenues implements §4.3's dynamic discovery step: for every pair
// drawn from tokens, and every known venue program, it derives a candidate
// pool address via solana.FindProgramAddress, matching program_manager.go's
// PDA-derivation pattern (getProgramDataAddress, getMetadataAddress), then
// probes it with a single get_account call. This is a bounded, deterministic
// expansion over the configured token set — at most
// len(tokens)*(len(tokens)-1)/2*len(adapters) candidate addresses per cycle —
// not unbounded on-chain scanning.
func discoverVenues(ctx context.Context, client chain.Client, tokens []types.Token, adapters map[types.VenueProgram]chain.Adapter) []VenueEntry {
	var discovered []VenueEntry

	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			mintA := tokenPublicKey(tokens[i])
			mintB := tokenPublicKey(tokens[j])
			seeds := pdaSeeds(mintA, mintB)

			for program, adapter := range adapters {
				owner := tokenPublicKeyFromAddress(adapter.OwnerID)
				candidate, _, err := solana.FindProgramAddress(seeds, owner)
				if err != nil {
					continue
				}

				var addr types.Address
				copy(addr[:], candidate[:])
				if _, err := client.GetAccount(ctx, addr); err != nil {
					continue
				}
				discovered = append(discovered, VenueEntry{Address: addr, Program: program})
			}
		}
	}

	return discovered
}

// pdaSeeds orders the two mints deterministically so discovering (A, B)
// and (B, A) derive the same address.
func pdaSeeds(a, b solana.PublicKey) [][]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return [][]byte{discoveryPoolSeed, a.Bytes(), b.Bytes()}
}

func tokenPublicKey(t types.Token) solana.PublicKey {
	return tokenPublicKeyFromAddress(t.Address)
}

func tokenPublicKeyFromAddress(a types.Address) solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], a[:])
	return pk
}

// ParseDiscoveryTokens decodes ENGINE_CONFIG.DiscoveryTokenMints (base58
// mint addresses) into Tokens for discoverVenues.
func ParseDiscoveryTokens(mints []string) ([]types.Token, error) {
	tokens := make([]types.Token, 0, len(mints))
	for _, m := range mints {
		pk, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return nil, fmt.Errorf("discovery token mint %q: %w", m, err)
		}
		var addr types.Address
		copy(addr[:], pk[:])
		tokens = append(tokens, types.Token{Address: addr})
	}
	return tokens, nil
}

// Package wallet loads and owns the engine's single ed25519 signer (C12).
//
// Grounded on internal/web3/solana/wallet_manager.go's WalletAdapter
// interface shape, trimmed from its multi-wallet/DB-backed connection model
// down to the single local-file keypair §6 specifies: "Persisted state: none
// required. A wallet key file ... is read at startup if real mode is
// enabled."
package wallet

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/solarb/arbengine/internal/types"
)

// Signer is the capability trait the engine depends on (spec §9's redesign
// note: a small capability trait instead of a type-erased downcast). The
// engine holds a Signer value; it never shares it across tasks that might
// sign concurrently (§5).
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
}

// Wallet is the single-owner keypair signer. It is constructed once at
// startup by Load and handed to the engine; no other component ever reads
// the underlying keypair.
type Wallet struct {
	keypair solana.PrivateKey
}

var _ Signer = (*Wallet)(nil)

// Load reads a 64-byte ed25519 keypair serialized as a JSON array of bytes
// from path (§6). Every failure is returned as a *types.FatalInit, before any
// network call is attempted (§8, Testable Property 6).
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.FatalInit{Kind: types.FatalMissingWallet, Cause: fmt.Errorf("read wallet file %q: %w", path, err)}
	}

	var keyBytes []byte
	if err := json.Unmarshal(raw, &keyBytes); err != nil {
		return nil, &types.FatalInit{Kind: types.FatalMissingWallet, Cause: fmt.Errorf("parse wallet file %q: %w", path, err)}
	}

	if len(keyBytes) != 64 {
		return nil, &types.FatalInit{Kind: types.FatalMissingWallet, Cause: fmt.Errorf("wallet file %q: expected 64-byte ed25519 keypair, got %d bytes", path, len(keyBytes))}
	}

	return &Wallet{keypair: solana.PrivateKey(keyBytes)}, nil
}

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.keypair.PublicKey()
}

// Sign signs tx in place with the wallet's keypair.
func (w *Wallet) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.keypair.PublicKey()) {
			return &w.keypair
		}
		return nil
	})
	return err
}

package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/solarb/arbengine/internal/types"
)

// splTokenAccountLen is the fixed length of an SPL token account (the vault
// accounts backing every venue's reserves). The balance is a little-endian
// u64 at byte offset 64.
const (
	splTokenAccountLen    = 165
	splTokenAccountMintOff = 0
	splTokenAccountBalOff  = 64
)

// ParseTokenAccountBalance reads the u64 lamport-denominated token balance out
// of a raw SPL token account blob (§4.1: "vault balances are read live via
// the token account layout").
func ParseTokenAccountBalance(data []byte) (uint64, error) {
	if len(data) < splTokenAccountLen {
		return 0, &types.DecodeError{
			Kind:   types.DecodeBadLength,
			Detail: fmt.Sprintf("token account: want >= %d bytes, got %d", splTokenAccountLen, len(data)),
		}
	}
	return binary.LittleEndian.Uint64(data[splTokenAccountBalOff : splTokenAccountBalOff+8]), nil
}

// FieldLayout is one candidate byte-offset arrangement for a venue's pool
// account. Venue programs revise their on-chain layout across versions
// without changing the owning program id, so a single venue adapter tries
// each known layout in turn until one yields two distinct, non-zero mint
// addresses and a plausible fee — this is the "layout-tolerant decoding"
// §4.1 calls for.
type FieldLayout struct {
	MintAOffset  int
	MintBOffset  int
	VaultAOffset int
	VaultBOffset int
	FeeBPSOffset int
	FeeBPSWidth  int // 2 or 8 bytes, little-endian
}

func readAddress(raw []byte, offset int) (types.Address, bool) {
	if offset < 0 || offset+32 > len(raw) {
		return types.Address{}, false
	}
	var a types.Address
	copy(a[:], raw[offset:offset+32])
	return a, !a.IsZero()
}

func readFeeBPS(raw []byte, offset, width int) (uint32, bool) {
	if offset < 0 || offset+width > len(raw) {
		return 0, false
	}
	switch width {
	case 2:
		return uint32(binary.LittleEndian.Uint16(raw[offset : offset+2])), true
	case 8:
		v := binary.LittleEndian.Uint64(raw[offset : offset+8])
		return uint32(v), v < 10_000
	default:
		return 0, false
	}
}

// tryExtract attempts to read a complete, plausible pool skeleton (mints,
// vaults, fee) out of raw using this layout. Reserves are left at zero: they
// are filled in later by a live vault probe, never by decoding the pool blob
// itself, because the pool account does not store the current balance.
func (l FieldLayout) tryExtract(addr types.Address, raw []byte, program types.VenueProgram, kind types.VenueKind) (types.PoolState, bool) {
	mintA, ok := readAddress(raw, l.MintAOffset)
	if !ok {
		return types.PoolState{}, false
	}
	mintB, ok := readAddress(raw, l.MintBOffset)
	if !ok {
		return types.PoolState{}, false
	}
	if mintA == mintB {
		return types.PoolState{}, false
	}
	vaultA, ok := readAddress(raw, l.VaultAOffset)
	if !ok {
		return types.PoolState{}, false
	}
	vaultB, ok := readAddress(raw, l.VaultBOffset)
	if !ok {
		return types.PoolState{}, false
	}
	feeBPS, ok := readFeeBPS(raw, l.FeeBPSOffset, l.FeeBPSWidth)
	if !ok || feeBPS >= 10_000 {
		return types.PoolState{}, false
	}

	return types.PoolState{
		Address: addr,
		Kind:    kind,
		Program: program,
		TokenA:  types.Token{Address: mintA},
		TokenB:  types.Token{Address: mintB},
		VaultA:  vaultA,
		VaultB:  vaultB,
		FeeBPS:  feeBPS,
	}, true
}

// Adapter decodes one venue program's account layout into a types.PoolState
// skeleton (mints, vaults, fee). It owns no RPC state: callers probe vault
// balances separately via ProbeReserves.
type Adapter struct {
	Program types.VenueProgram
	Kind    types.VenueKind
	OwnerID types.Address
	MinLen  int
	Layouts []FieldLayout
}

// Decode parses raw (the account data at addr, owned by OwnerID) into a pool
// skeleton. It returns a *types.DecodeError on any failure; the caller skips
// the venue for this cycle rather than treating it as fatal (§7).
func (a Adapter) Decode(addr types.Address, raw []byte) (types.PoolState, error) {
	if len(raw) < a.MinLen {
		return types.PoolState{}, &types.DecodeError{
			Kind:    types.DecodeBadLength,
			Program: a.Program,
			Detail:  fmt.Sprintf("want >= %d bytes, got %d", a.MinLen, len(raw)),
		}
	}
	for _, layout := range a.Layouts {
		if pool, ok := layout.tryExtract(addr, raw, a.Program, a.Kind); ok {
			return pool, nil
		}
	}
	return types.PoolState{}, &types.DecodeError{
		Kind:    types.DecodeNoLayoutMatched,
		Program: a.Program,
		Detail:  fmt.Sprintf("tried %d candidate layouts", len(a.Layouts)),
	}
}

// ProbeReserves fetches the two vault accounts backing skeleton and fills in
// ReserveA, ReserveB, LastRefreshedAt and IsOperational. now is passed in
// rather than taken from time.Now so callers can keep a single refresh
// timestamp across a whole registry sweep.
func ProbeReserves(ctx context.Context, client Client, skeleton types.PoolState, now timeNow) (types.PoolState, error) {
	infos, err := client.GetMultipleAccounts(ctx, []types.Address{skeleton.VaultA, skeleton.VaultB})
	if err != nil {
		return types.PoolState{}, &types.DecodeError{
			Kind:    types.DecodeVaultProbeFailed,
			Program: skeleton.Program,
			Detail:  err.Error(),
		}
	}
	if len(infos) != 2 || infos[0] == nil || infos[1] == nil {
		return types.PoolState{}, &types.DecodeError{
			Kind:    types.DecodeVaultProbeFailed,
			Program: skeleton.Program,
			Detail:  "vault account missing",
		}
	}

	reserveA, err := ParseTokenAccountBalance(infos[0].Data)
	if err != nil {
		return types.PoolState{}, &types.DecodeError{Kind: types.DecodeVaultProbeFailed, Program: skeleton.Program, Detail: err.Error()}
	}
	reserveB, err := ParseTokenAccountBalance(infos[1].Data)
	if err != nil {
		return types.PoolState{}, &types.DecodeError{Kind: types.DecodeVaultProbeFailed, Program: skeleton.Program, Detail: err.Error()}
	}

	out := skeleton
	out.ReserveA = reserveA
	out.ReserveB = reserveB
	out.LastRefreshedAt = now()
	out.IsOperational = reserveA > 0 && reserveB > 0
	return out, nil
}

// timeNow lets tests supply a fixed clock without importing time here.
type timeNow func() time.Time

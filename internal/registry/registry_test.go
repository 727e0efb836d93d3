package registry

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/pkg/observability"
)

func addr(b byte) types.Address {
	var a types.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func raydiumBlob(mintA, mintB, vaultA, vaultB types.Address, feeBPS uint64) []byte {
	buf := make([]byte, 752)
	copy(buf[400:432], mintA[:])
	copy(buf[432:464], mintB[:])
	copy(buf[336:368], vaultA[:])
	copy(buf[368:400], vaultB[:])
	binary.LittleEndian.PutUint64(buf[176:184], feeBPS)
	return buf
}

func tokenAccount(balance uint64) []byte {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:72], balance)
	return data
}

type fakeClient struct {
	accounts map[types.Address]*chain.AccountInfo
}

func (f fakeClient) GetAccount(_ context.Context, a types.Address) (*chain.AccountInfo, error) {
	info, ok := f.accounts[a]
	if !ok {
		return nil, assert.AnError
	}
	return info, nil
}

func (f fakeClient) GetMultipleAccounts(_ context.Context, addrs []types.Address) ([]*chain.AccountInfo, error) {
	out := make([]*chain.AccountInfo, len(addrs))
	for i, a := range addrs {
		out[i] = f.accounts[a]
	}
	return out, nil
}

func (f fakeClient) GetBalance(context.Context, types.Address) (uint64, error) {
	panic("not implemented")
}
func (f fakeClient) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	panic("not implemented")
}
func (f fakeClient) SimulateTransaction(context.Context, *solana.Transaction) error {
	panic("not implemented")
}
func (f fakeClient) SendAndConfirmTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	panic("not implemented")
}

func TestRefreshPublishesDecodedPools(t *testing.T) {
	poolAddr := addr(9)
	mintA, mintB := addr(1), addr(2)
	vaultA, vaultB := addr(3), addr(4)

	client := fakeClient{accounts: map[types.Address]*chain.AccountInfo{
		poolAddr: {Data: raydiumBlob(mintA, mintB, vaultA, vaultB, 25)},
		vaultA:   {Data: tokenAccount(1000)},
		vaultB:   {Data: tokenAccount(2000)},
	}}

	logger := observability.NewLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "json", ServiceName: "test"})
	reg := New(client, []VenueEntry{{Address: poolAddr, Program: types.ProgramRaydiumAMM}}, nil, logger)

	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := reg.Refresh(context.Background(), func() time.Time { return fixedNow })
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap.Pools, 1)

	pool := snap.Pools[poolAddr]
	assert.Equal(t, uint64(1000), pool.ReserveA)
	assert.Equal(t, uint64(2000), pool.ReserveB)
	assert.True(t, pool.IsOperational)
	assert.Equal(t, fixedNow, snap.RefreshAt)
}

func TestRefreshSkipsVenueOnDecodeFailureButKeepsOthers(t *testing.T) {
	goodAddr, badAddr := addr(9), addr(10)
	mintA, mintB := addr(1), addr(2)
	vaultA, vaultB := addr(3), addr(4)

	client := fakeClient{accounts: map[types.Address]*chain.AccountInfo{
		goodAddr: {Data: raydiumBlob(mintA, mintB, vaultA, vaultB, 25)},
		badAddr:  {Data: make([]byte, 5)}, // too short, decode fails
		vaultA:   {Data: tokenAccount(1000)},
		vaultB:   {Data: tokenAccount(2000)},
	}}

	logger := observability.NewLogger(config.ObservabilityConfig{LogLevel: "error", LogFormat: "json", ServiceName: "test"})
	reg := New(client, []VenueEntry{
		{Address: goodAddr, Program: types.ProgramRaydiumAMM},
		{Address: badAddr, Program: types.ProgramRaydiumAMM},
	}, nil, logger)

	err := reg.Refresh(context.Background(), time.Now)
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Len(t, snap.Pools, 1)
	_, ok := snap.Pools[goodAddr]
	assert.True(t, ok)
}

// TestRefreshDiscoversVenuesFromTokenPairs covers §4.3's dynamic discovery
// step: a pool reachable only via its PDA (not in the static venue list) is
// still found and decoded, as long as it sits at the deterministic address
// this engine derives for that (program, token pair).
func TestRefreshDiscoversVenuesFromTokenPairs(t *testing.T) {
	mintA, mintB := addr(1), addr(2)
	vaultA, vaultB := addr(3), addr(4)

	seeds := pdaSeeds(tokenPublicKeyFromAddress(mintA), tokenPublicKeyFromAddress(mintB))
	pda, _, err := solana.FindProgramAddress(seeds, tokenPublicKeyFromAddress(chain.RaydiumAMMProgramID))
	require.NoError(t, err)
	var poolAddr types.Address
	copy(poolAddr[:], pda[:])

	client := fakeClient{accounts: map[types.Address]*chain.AccountInfo{
		poolAddr: {Data: raydiumBlob(mintA, mintB, vaultA, vaultB, 25)},
		vaultA:   {Data: tokenAccount(1000)},
		vaultB:   {Data: tokenAccount(2000)},
	}}

	logger := observability.NewLogger(config.ObservabilityConfig{LogLevel: "error", LogFormat: "json", ServiceName: "test"})
	tokens := []types.Token{{Address: mintA}, {Address: mintB}}
	reg := New(client, nil, tokens, logger)

	err = reg.Refresh(context.Background(), time.Now)
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap.Pools, 1)
	_, ok := snap.Pools[poolAddr]
	assert.True(t, ok)
}

func TestSnapshotPairsFindsSharedTokenPools(t *testing.T) {
	common := types.Token{Address: addr(1)}
	onlyA := types.Token{Address: addr(2)}
	onlyB := types.Token{Address: addr(3)}
	unrelated := types.Token{Address: addr(4)}

	p1 := types.PoolState{Address: addr(100), TokenA: common, TokenB: onlyA}
	p2 := types.PoolState{Address: addr(101), TokenA: common, TokenB: onlyB}
	p3 := types.PoolState{Address: addr(102), TokenA: unrelated, TokenB: onlyB}

	snap := &Snapshot{Pools: map[types.Address]types.PoolState{
		p1.Address: p1, p2.Address: p2, p3.Address: p3,
	}}

	pairs := snap.Pairs()
	assert.Len(t, pairs, 2) // (p1,p2) share `common`, (p2,p3) share `onlyB`
}

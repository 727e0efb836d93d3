// Package registry holds the current snapshot of every pool this engine
// watches (C3) and refreshes it in parallel, once per cycle, without ever
// blocking a reader against a write in flight.
//
// Grounded on internal/web3/solana/service.go's fan-out-over-goroutines
// pattern (a WaitGroup per batch of RPC calls) and spec §5's requirement that
// readers "always observe a consistent snapshot: the old snapshot is kept
// and atomically swapped for the new one."
package registry

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/pkg/observability"
)

// Snapshot is the registry's immutable view of all tracked pools at one
// point in time.
type Snapshot struct {
	Pools     map[types.Address]types.PoolState
	RefreshAt time.Time
}

// Registry owns a venue list and the most recent Snapshot, swapped
// atomically after each refresh (§5).
type Registry struct {
	client          chain.Client
	adapters        map[types.VenueProgram]chain.Adapter
	venues          []VenueEntry
	discoveryTokens []types.Token
	logger          *observability.Logger

	current atomic.Pointer[Snapshot]
}

// VenueEntry is one pool this registry tracks: its address and which
// on-chain program owns it, so a refresh knows which Adapter to route the
// fetched bytes to.
type VenueEntry struct {
	Address types.Address
	Program types.VenueProgram
}

// New builds a Registry watching venues, empty until the first Refresh.
// discoveryTokens seeds the §4.3 dynamic discovery step; pass nil to disable
// it and run from the static venue list alone.
func New(client chain.Client, venues []VenueEntry, discoveryTokens []types.Token, logger *observability.Logger) *Registry {
	adapters := make(map[types.VenueProgram]chain.Adapter)
	for _, a := range chain.DefaultAdapters() {
		adapters[a.Program] = a
	}
	r := &Registry{client: client, adapters: adapters, venues: venues, discoveryTokens: discoveryTokens, logger: logger}
	r.current.Store(&Snapshot{Pools: map[types.Address]types.PoolState{}})
	return r
}

// Snapshot returns the most recently published view. Safe for concurrent use
// (§5): callers never see a partially refreshed map.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// refreshResult is the per-venue outcome of one goroutine's fetch+decode+probe.
type refreshResult struct {
	pool types.PoolState
	err  error
}

// Refresh fetches every tracked venue's account, decodes it, and probes its
// vault balances, all in parallel (one goroutine per venue, per §5's
// "parallel refresh" requirement), then atomically publishes the resulting
// Snapshot. A venue whose decode or probe fails is dropped from the new
// snapshot and logged, not treated as fatal (§7) — the prior snapshot's
// entry for it, if any, is simply absent going forward rather than stale.
func (r *Registry) Refresh(ctx context.Context, now func() time.Time) error {
	venues := r.venues
	if len(r.discoveryTokens) > 0 {
		discovered := discoverVenues(ctx, r.client, r.discoveryTokens, r.adapters)
		venues = mergeVenues(r.venues, discovered)
	}

	results := make([]refreshResult, len(venues))

	var wg sync.WaitGroup
	for i, v := range venues {
		wg.Add(1)
		go func(i int, v VenueEntry) {
			defer wg.Done()
			results[i] = r.refreshOne(ctx, v, now)
		}(i, v)
	}
	wg.Wait()

	pools := make(map[types.Address]types.PoolState, len(results))
	for i, res := range results {
		if res.err != nil {
			r.logger.Warn(ctx, "venue refresh skipped", map[string]interface{}{
				"venue_address": venues[i].Address,
				"program":       venues[i].Program,
				"error":         res.err.Error(),
			})
			continue
		}
		pools[res.pool.Address] = res.pool
	}

	r.current.Store(&Snapshot{Pools: pools, RefreshAt: now()})
	return nil
}

// mergeVenues combines the static venue list with freshly discovered ones,
// keeping the static entry whenever both name the same address (§4.3:
// discovery "additionally" queries beyond the configured list, it doesn't
// override it).
func mergeVenues(static, discovered []VenueEntry) []VenueEntry {
	seen := make(map[types.Address]bool, len(static))
	merged := make([]VenueEntry, 0, len(static)+len(discovered))
	for _, v := range static {
		seen[v.Address] = true
		merged = append(merged, v)
	}
	for _, v := range discovered {
		if seen[v.Address] {
			continue
		}
		seen[v.Address] = true
		merged = append(merged, v)
	}
	return merged
}

func (r *Registry) refreshOne(ctx context.Context, v VenueEntry, now func() time.Time) refreshResult {
	adapter, ok := r.adapters[v.Program]
	if !ok {
		return refreshResult{err: &types.DecodeError{Kind: types.DecodeUnknownOwner, Program: v.Program}}
	}

	info, err := r.client.GetAccount(ctx, v.Address)
	if err != nil {
		return refreshResult{err: err}
	}

	skeleton, err := adapter.Decode(v.Address, info.Data)
	if err != nil {
		return refreshResult{err: err}
	}

	pool, err := chain.ProbeReserves(ctx, r.client, skeleton, now)
	if err != nil {
		return refreshResult{err: err}
	}
	return refreshResult{pool: pool}
}

// Pairs returns every pair of distinct pools in the current snapshot that
// share a common token, in a stable order, for C4's pairwise enumeration.
func (s *Snapshot) Pairs() [][2]types.PoolState {
	all := make([]types.PoolState, 0, len(s.Pools))
	for _, p := range s.Pools {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		return bytes.Compare(all[i].Address[:], all[j].Address[:]) < 0
	})

	var pairs [][2]types.PoolState
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i].Address == all[j].Address {
				continue
			}
			if _, shared := all[i].SharesToken(all[j]); shared {
				pairs = append(pairs, [2]types.PoolState{all[i], all[j]})
			}
		}
	}
	return pairs
}

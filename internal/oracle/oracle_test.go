package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/types"
)

func token(b byte) types.Token {
	var addr types.Address
	for i := range addr {
		addr[i] = b
	}
	return types.Token{Address: addr, Symbol: "T"}
}

func TestUpdateMidTracksFreshnessAndVolatility(t *testing.T) {
	o := New("", time.Second, time.Second)
	tok := token(1)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	o.UpdateMid(tok, 100.0, t0)
	price, vol, fresh := o.Mid(tok, t0)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, 0.0, vol)
	assert.True(t, fresh)

	o.UpdateMid(tok, 110.0, t0.Add(100*time.Millisecond))
	_, vol, _ = o.Mid(tok, t0.Add(100*time.Millisecond))
	assert.InDelta(t, 0.05*(10.0/100.0), vol, 1e-9)

	_, _, fresh = o.Mid(tok, t0.Add(2*time.Second))
	assert.False(t, fresh)
}

func TestMidUnknownTokenIsNotFresh(t *testing.T) {
	o := New("", time.Second, time.Second)
	_, _, fresh := o.Mid(token(9), time.Now())
	assert.False(t, fresh)
}

func TestQuoteFallsBackToLocalMathWhenAggregatorUnset(t *testing.T) {
	o := New("", time.Second, time.Second)
	pool := types.PoolState{
		TokenA: token(1), TokenB: token(2),
		ReserveA: 1_000_000, ReserveB: 1_000_000,
		FeeBPS: 30, Kind: types.VenueConstantProductAMM,
	}

	quote := o.Quote(context.Background(), pool, token(1), 10_000, 50)
	assert.Equal(t, RouteLocalMath, quote.RouteTag)
	assert.Greater(t, quote.OutAmount, uint64(0))
	assert.Less(t, quote.OutAmount, uint64(10_000))
}

func TestQuoteUsesAggregatorWhenReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outAmount":"9950","priceImpactPct":"0.01"}`))
	}))
	defer server.Close()

	o := New(server.URL, time.Second, time.Second)
	pool := types.PoolState{
		TokenA: token(1), TokenB: token(2),
		ReserveA: 1_000_000, ReserveB: 1_000_000,
		FeeBPS: 30, Kind: types.VenueConstantProductAMM,
	}

	quote := o.Quote(context.Background(), pool, token(1), 10_000, 50)
	require.Equal(t, RouteAggregator, quote.RouteTag)
	assert.Equal(t, uint64(9950), quote.OutAmount)
	assert.Equal(t, int64(1), quote.PriceImpactBPS)
}

func TestQuoteFallsBackToLocalMathOnAggregatorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	o := New(server.URL, time.Second, time.Second)
	pool := types.PoolState{
		TokenA: token(1), TokenB: token(2),
		ReserveA: 1_000_000, ReserveB: 1_000_000,
		FeeBPS: 30, Kind: types.VenueConstantProductAMM,
	}

	quote := o.Quote(context.Background(), pool, token(1), 10_000, 50)
	assert.Equal(t, RouteLocalMath, quote.RouteTag)
}

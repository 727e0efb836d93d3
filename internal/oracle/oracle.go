// Package oracle produces mid-prices and executable quotes for the tokens
// this engine trades (C2).
//
// Grounded on internal/web3/solana/jupiter_client.go's JupiterClient: same
// request/response shape (GET on an aggregator's /quote endpoint, decimal
// string amounts), trimmed to the fields this engine needs and reworked so
// that any transport or parse failure falls back to local constant-product
// math instead of surfacing an error, per §4.2.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarb/arbengine/internal/impact"
	"github.com/solarb/arbengine/internal/types"
)

// RouteTag records which path produced an ExecQuote (§4.2).
type RouteTag string

const (
	RouteAggregator RouteTag = "aggregator"
	RouteLocalMath  RouteTag = "local_math"
)

// ExecQuote is the oracle's unified result type regardless of which path
// produced it (§4.2).
type ExecQuote struct {
	OutAmount      uint64
	PriceImpactBPS int64
	RouteTag       RouteTag
}

// midPriceEntry is one cached mid-price observation with its freshness
// timestamp (§4.2's freshness contract).
type midPriceEntry struct {
	price           float64
	volatility      float64
	lastRefreshedAt time.Time
}

// Oracle serves mid-prices (cached, TTL-gated) and executable quotes
// (aggregator-first, local-math-fallback).
type Oracle struct {
	httpClient *http.Client
	baseURL    string
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[types.Address]midPriceEntry
}

// New builds an Oracle. baseURL is the aggregator's quote endpoint base
// (AGGREGATOR_BASE_URL); ttl is ENTERPRISE_CACHE_TTL_SECONDS.
func New(baseURL string, ttl, quoteTimeout time.Duration) *Oracle {
	return &Oracle{
		httpClient: &http.Client{Timeout: quoteTimeout},
		baseURL:    baseURL,
		ttl:        ttl,
		cache:      make(map[types.Address]midPriceEntry),
	}
}

// Mid returns the cached mid-price and volatility estimate for token, and
// whether the entry is fresh. Callers must treat a stale/missing entry as a
// signal to refresh via UpdateMid before relying on the value (§4.2).
func (o *Oracle) Mid(token types.Token, now time.Time) (price, volatility float64, fresh bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.cache[token.Address]
	if !ok {
		return 0, 0, false
	}
	return entry.price, entry.volatility, now.Sub(entry.lastRefreshedAt) < o.ttl
}

// UpdateMid publishes a fresh mid-price observation, applying the §4.6/§4.5
// exponential-decay volatility estimate: vol_t = 0.95*vol_{t-1} + 0.05*|Δprice/price|.
//
// Grounded on original_source/src/bots/liquidity_sniper/risk_manager_old.rs's
// forecast_volatility.
func (o *Oracle) UpdateMid(token types.Token, price float64, now time.Time) {
	const decay = 0.95

	o.mu.Lock()
	defer o.mu.Unlock()

	prev, existed := o.cache[token.Address]
	volatility := 0.0
	if existed && prev.price > 0 {
		delta := (price - prev.price) / prev.price
		if delta < 0 {
			delta = -delta
		}
		volatility = decay*prev.volatility + (1-decay)*delta
	}

	o.cache[token.Address] = midPriceEntry{
		price:           price,
		volatility:      volatility,
		lastRefreshedAt: now,
	}
}

// aggregatorQuoteResponse is the subset of Jupiter's response this oracle
// consumes.
type aggregatorQuoteResponse struct {
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// Quote produces an ExecQuote for swapping amountIn of inputToken into
// outputToken through pool. It tries the aggregator first; any transport or
// parse failure falls back to local constant-product math against pool's
// reserves (§4.2, §7 OracleError).
func (o *Oracle) Quote(ctx context.Context, pool types.PoolState, inputToken types.Token, amountIn uint64, slippageBPS int) ExecQuote {
	if o.baseURL != "" {
		if quote, err := o.aggregatorQuote(ctx, inputToken, pool.OtherToken(inputToken), amountIn, slippageBPS); err == nil {
			return quote
		}
	}
	return o.localQuote(pool, inputToken, amountIn)
}

func (o *Oracle) aggregatorQuote(ctx context.Context, inputToken, outputToken types.Token, amountIn uint64, slippageBPS int) (ExecQuote, error) {
	query := url.Values{}
	query.Set("inputMint", hexAddress(inputToken.Address))
	query.Set("outputMint", hexAddress(outputToken.Address))
	query.Set("amount", strconv.FormatUint(amountIn, 10))
	query.Set("slippageBps", strconv.Itoa(slippageBPS))

	quoteURL := fmt.Sprintf("%s/quote?%s", o.baseURL, query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, quoteURL, nil)
	if err != nil {
		return ExecQuote{}, &types.OracleError{Cause: err}
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return ExecQuote{}, &types.OracleError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return ExecQuote{}, &types.OracleError{Cause: fmt.Errorf("aggregator status %d: %s", resp.StatusCode, string(body))}
	}

	var parsed aggregatorQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ExecQuote{}, &types.OracleError{Cause: err}
	}

	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return ExecQuote{}, &types.OracleError{Cause: err}
	}

	// Jupiter reports price impact as a decimal-string percentage (e.g.
	// "0.0134"); mirror jupiter_client.go's decimal.NewFromString parsing
	// rather than a lossy float64 conversion, then convert to bps.
	impactPct, err := decimal.NewFromString(parsed.PriceImpactPct)
	if err != nil {
		impactPct = decimal.Zero
	}
	impactBPS := impactPct.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	return ExecQuote{
		OutAmount:      outAmount,
		PriceImpactBPS: impactBPS,
		RouteTag:       RouteAggregator,
	}, nil
}

func (o *Oracle) localQuote(pool types.PoolState, inputToken types.Token, amountIn uint64) ExecQuote {
	reserveIn, _ := pool.ReserveOf(inputToken)
	reserveOut, _ := pool.ReserveOf(pool.OtherToken(inputToken))

	var outAmount uint64
	switch pool.Kind {
	case types.VenueConcentratedLiquidityAMM:
		outAmount = impact.CLAMMSwapOutput(reserveIn, reserveOut, amountIn, pool.FeeBPS)
	default:
		outAmount = impact.SwapOutput(reserveIn, reserveOut, amountIn, pool.FeeBPS)
	}

	return ExecQuote{
		OutAmount:      outAmount,
		PriceImpactBPS: impact.PriceImpactBPS(reserveIn, reserveOut, amountIn, outAmount),
		RouteTag:       RouteLocalMath,
	}
}

func hexAddress(a types.Address) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range a {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

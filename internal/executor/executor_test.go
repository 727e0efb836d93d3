package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/mev"
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

func token(b byte) types.Token {
	var t types.Token
	for i := range t.Address {
		t.Address[i] = b
	}
	t.Decimals = 9
	return t
}

func testOpportunity() types.Opportunity {
	tokenIn := token(1)
	intermediate := token(2)
	return types.Opportunity{
		ID:                "opp-1",
		TokenIn:           tokenIn,
		TokenOut:          tokenIn,
		IntermediateToken: intermediate,
		AmountIn:          1_000_000,
		ExpectedAmountOut: 1_005_000,
		NetProfit:         4_000,
		TotalCosts:        1_000,
		PoolA: types.PoolState{
			Address: addr(10), Program: types.ProgramRaydiumAMM,
			TokenA: tokenIn, TokenB: intermediate,
			VaultA: addr(11), VaultB: addr(12),
			ReserveA: 50_000_000, ReserveB: 50_000_000,
		},
		PoolB: types.PoolState{
			Address: addr(20), Program: types.ProgramOrcaWhirlpool,
			TokenA: intermediate, TokenB: tokenIn,
			VaultA: addr(21), VaultB: addr(22),
			ReserveA: 50_000_000, ReserveB: 50_000_000,
		},
	}
}

type fakeSigner struct {
	pk solana.PublicKey
}

func (f fakeSigner) PublicKey() solana.PublicKey { return f.pk }
func (f fakeSigner) Sign(tx *solana.Transaction) error { return nil }

type fakeChainClient struct {
	simErr     error
	sendErr    error
	missingATA bool
}

// GetAccount reports every account as already existing unless missingATA is
// set, in which case it reports every account as missing so tests can
// exercise the ATA-creation path.
func (f fakeChainClient) GetAccount(context.Context, types.Address) (*chain.AccountInfo, error) {
	if f.missingATA {
		return nil, fmt.Errorf("get_account: account not found")
	}
	return &chain.AccountInfo{}, nil
}
func (f fakeChainClient) GetMultipleAccounts(context.Context, []types.Address) ([]*chain.AccountInfo, error) {
	panic("not implemented")
}
func (f fakeChainClient) GetBalance(context.Context, types.Address) (uint64, error) {
	return 10_000_000_000, nil
}
func (f fakeChainClient) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1, 2, 3}, nil
}
func (f fakeChainClient) SimulateTransaction(context.Context, *solana.Transaction) error {
	return f.simErr
}
func (f fakeChainClient) SendAndConfirmTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return solana.Signature{9, 9, 9}, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(config.ObservabilityConfig{ServiceName: "test", LogLevel: "error", LogFormat: "json"})
}

func TestExecuteSimulatedReturnsExpectedProfit(t *testing.T) {
	e := New(fakeChainClient{}, nil, nil, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: time.Second}, config.RiskConfig{}, ModeReal, testLogger())
	opp := testOpportunity()

	receipt := e.Execute(context.Background(), opp)

	assert.True(t, receipt.Success)
	assert.Equal(t, opp.NetProfit, receipt.ActualProfit)
	assert.Len(t, receipt.LegConfirmations, 2)
	assert.Equal(t, types.StateReported, receipt.FinalState)
}

func TestExecuteRealModeLocalFallbackSucceeds(t *testing.T) {
	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := fakeChainClient{}
	e := New(client, signer, nil, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	receipt := e.Execute(context.Background(), testOpportunity())

	assert.True(t, receipt.Success)
	assert.Equal(t, types.StateReported, receipt.FinalState)
	require.Len(t, receipt.LegConfirmations, 2)
}

func TestExecuteRealModeCreatesMissingAssociatedTokenAccounts(t *testing.T) {
	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := fakeChainClient{missingATA: true}
	e := New(client, signer, nil, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	opp := testOpportunity()
	owner := signer.PublicKey()
	createIxs, err := e.missingATAInstructions(context.Background(), owner, opp.TokenIn, opp.IntermediateToken)

	require.NoError(t, err)
	assert.Len(t, createIxs, 2)
	for _, ix := range createIxs {
		assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	}

	receipt := e.Execute(context.Background(), opp)

	assert.True(t, receipt.Success)
	assert.Equal(t, types.StateReported, receipt.FinalState)
}

func TestExecuteRealModeSkipsCreateWhenAssociatedTokenAccountsExist(t *testing.T) {
	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := fakeChainClient{}
	e := New(client, signer, nil, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	opp := testOpportunity()
	createIxs, err := e.missingATAInstructions(context.Background(), signer.PublicKey(), opp.TokenIn, opp.IntermediateToken)

	require.NoError(t, err)
	assert.Empty(t, createIxs)
}

func TestExecuteRealModeLegTwoFailureReportsPartialFill(t *testing.T) {
	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := &toggleClient{fakeChainClient: fakeChainClient{}, failAfter: 1}
	e := New(client, signer, nil, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	receipt := e.Execute(context.Background(), testOpportunity())

	assert.False(t, receipt.Success)
	assert.Equal(t, types.ErrorKindPartialFill, receipt.ErrorKind)
	assert.Len(t, receipt.LegConfirmations, 1)
}

func TestExecuteBundledSubmitsSingleBundleOnSuccess(t *testing.T) {
	var gotParams [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params [][]string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotParams = body.Params
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "bundle-xyz"})
	}))
	defer server.Close()

	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := fakeChainClient{}
	relay := mev.New(config.RelayConfig{BaseURL: server.URL}, config.EngineConfig{MaxBundleSize: 5}, config.RiskConfig{})
	e := New(client, signer, relay, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	receipt := e.Execute(context.Background(), testOpportunity())

	require.Len(t, gotParams, 1)
	assert.Len(t, gotParams[0], 2)
	assert.True(t, receipt.Success)
	assert.Equal(t, types.StateReported, receipt.FinalState)
	require.Len(t, receipt.LegConfirmations, 2)
	assert.Equal(t, "bundle-xyz", receipt.LegConfirmations[0].Signature)
}

func TestExecuteBundledRejectionReportsNoPartialFill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	signer := fakeSigner{pk: solana.NewWallet().PublicKey()}
	client := fakeChainClient{}
	relay := mev.New(config.RelayConfig{BaseURL: server.URL}, config.EngineConfig{MaxBundleSize: 5}, config.RiskConfig{})
	e := New(client, signer, relay, config.AggregatorConfig{}, config.EngineConfig{ExecutionTimeout: 5 * time.Second}, config.RiskConfig{MaxSlippageBPS: 50}, ModeReal, testLogger())

	receipt := e.Execute(context.Background(), testOpportunity())

	assert.False(t, receipt.Success)
	assert.Equal(t, types.ErrorKindTransport, receipt.ErrorKind)
	assert.Empty(t, receipt.LegConfirmations)
}

// toggleClient fails SendAndConfirmTransaction starting from the failAfter'th
// call, letting a test exercise the "leg one confirmed, leg two fails"
// partial-fill path.
type toggleClient struct {
	fakeChainClient
	calls     int
	failAfter int
}

func (c *toggleClient) SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.calls++
	if c.calls > c.failAfter {
		return solana.Signature{}, assertError{}
	}
	return c.fakeChainClient.SendAndConfirmTransaction(ctx, tx)
}

type assertError struct{}

func (assertError) Error() string { return "send failed" }

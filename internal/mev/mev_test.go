package mev

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarb/arbengine/internal/config"
)

func TestEnabledReflectsRelayConfig(t *testing.T) {
	disabled := New(config.RelayConfig{}, config.EngineConfig{MaxBundleSize: 5}, config.RiskConfig{})
	assert.False(t, disabled.Enabled())

	enabled := New(config.RelayConfig{BaseURL: "http://relay.local"}, config.EngineConfig{MaxBundleSize: 5}, config.RiskConfig{})
	assert.True(t, enabled.Enabled())
}

func TestPriorityFeeTakesMax(t *testing.T) {
	s := New(config.RelayConfig{}, config.EngineConfig{}, config.RiskConfig{MEVProtectionPriorityFee: 10_000})
	assert.Equal(t, uint64(10_000), s.PriorityFee(500))
	assert.Equal(t, uint64(20_000), s.PriorityFee(20_000))
}

func TestSubmitRejectsOversizedBundle(t *testing.T) {
	s := New(config.RelayConfig{BaseURL: "http://relay.local"}, config.EngineConfig{MaxBundleSize: 1}, config.RiskConfig{})
	_, err := s.Submit(context.Background(), []*solana.Transaction{{}, {}})
	var tooLarge *ErrBundleTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestSubmitPostsBundleAndReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bundles", r.URL.Path)
		var body sendBundleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sendBundle", body.Method)
		require.Len(t, body.Params, 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendBundleResponse{Result: "bundle-123"})
	}))
	defer server.Close()

	s := New(config.RelayConfig{BaseURL: server.URL}, config.EngineConfig{MaxBundleSize: 5}, config.RiskConfig{})

	payer := solana.NewWallet().PublicKey()
	dummy := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{}, []byte{0})
	tx, err := solana.NewTransaction([]solana.Instruction{dummy}, solana.Hash{}, solana.TransactionPayer(payer))
	require.NoError(t, err)

	id, err := s.Submit(context.Background(), []*solana.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, "bundle-123", id)
}

// Package mev implements C9: optional bundle submission to a private relay,
// bypassing the public mempool to avoid front-running/sandwiching of the
// two-leg cycle.
//
// Grounded on internal/web3/solana/jupiter_client.go's HTTP POST/JSON-decode
// client shape (no existing file in the pack talks to a block-building
// relay directly, so the wire shape here follows the public Jito
// sendBundle JSON-RPC convention, the closest real-world analogue), and on
// transaction_service.go's getComputeUnitPrice tiered-fee idiom for the
// priority-fee formula.
package mev

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solarb/arbengine/internal/config"
)

// ErrBundleTooLarge is returned when a caller attempts to submit more than
// MAX_BUNDLE_SIZE transactions in one bundle (§4.9).
type ErrBundleTooLarge struct {
	Size, Max int
}

func (e *ErrBundleTooLarge) Error() string {
	return fmt.Sprintf("bundle size %d exceeds max %d", e.Size, e.Max)
}

// Submitter submits pre-signed transaction bundles to a private relay.
// Disabled (every call a no-op error) when no relay base URL is configured —
// MEV protection is explicitly optional (§4.9).
type Submitter struct {
	httpClient    *http.Client
	baseURL       string
	maxBundleSize int
	basePriority  uint64
}

// New builds a Submitter. An empty relay.BaseURL disables submission; callers
// should check Enabled() before relying on Submit.
func New(relay config.RelayConfig, engineCfg config.EngineConfig, riskCfg config.RiskConfig) *Submitter {
	return &Submitter{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       relay.BaseURL,
		maxBundleSize: engineCfg.MaxBundleSize,
		basePriority:  riskCfg.MEVProtectionPriorityFee,
	}
}

// Enabled reports whether a relay is configured.
func (s *Submitter) Enabled() bool {
	return s.baseURL != ""
}

// PriorityFee implements §4.9's formula: max(base_priority_fee,
// dynamic_congestion_estimate), where the dynamic estimate is the fixed
// MEV_PROTECTION_PRIORITY_FEE constant until a real congestion estimator is
// wired in (documented simplification, see DESIGN.md). basePriorityFee is
// the caller's own per-execution baseline (e.g. a compute-unit price already
// budgeted for the leg).
func (s *Submitter) PriorityFee(basePriorityFee uint64) uint64 {
	if basePriorityFee > s.basePriority {
		return basePriorityFee
	}
	return s.basePriority
}

type sendBundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  [][]string    `json:"params"`
}

type sendBundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Submit sends txs as a single indivisible bundle and returns the relay's
// bundle id on accept. No partial inclusion is possible: either the relay
// accepts the whole bundle or Submit returns an error (§4.9).
func (s *Submitter) Submit(ctx context.Context, txs []*solana.Transaction) (string, error) {
	if len(txs) > s.maxBundleSize {
		return "", &ErrBundleTooLarge{Size: len(txs), Max: s.maxBundleSize}
	}
	if !s.Enabled() {
		return "", fmt.Errorf("mev: no relay configured")
	}

	encoded := make([]string, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("encode bundle tx %d: %w", i, err)
		}
		encoded[i] = base64.StdEncoding.EncodeToString(raw)
	}

	reqBody, err := json.Marshal(sendBundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{encoded},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/bundles", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("relay status %d: %s", resp.StatusCode, string(body))
	}

	var parsed sendBundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode bundle response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("relay rejected bundle: %s", parsed.Error.Message)
	}

	return parsed.Result, nil
}

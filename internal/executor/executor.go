// Package executor implements C8: turning a ranked Opportunity into two
// confirmed on-chain legs (or a single synthetic receipt in simulation
// mode).
//
// Grounded on internal/web3/solana/jupiter_client.go's ExecuteSwap (request
// shape, aggregator-first flow) and program_manager.go's InteractWithProgram
// (AccountMeta -> solana.NewInstruction -> solana.NewTransaction -> sign ->
// submit pipeline), completing both of their "would be signed/sent in a real
// implementation" stubs into an actual decode/sign/submit/confirm flow, and
// raydium_client.go's createSwapInstruction stub into a real discriminator +
// amount layout per leg.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/mev"
	"github.com/solarb/arbengine/internal/types"
	"github.com/solarb/arbengine/internal/wallet"
	"github.com/solarb/arbengine/pkg/observability"
)

// Mode selects simulation vs real on-chain submission (§4.8).
type Mode int

const (
	// ModeSimulation is the default and the fallback when wallet material is
	// absent: no wire transaction is built, actual_profit = expected.
	ModeSimulation Mode = iota
	ModeReal
)

// discriminators holds the (illustrative) per-venue instruction tag bytes
// used by the local swap-instruction fallback when the aggregator is
// unavailable. Real on-chain discriminators are published per-program and
// versioned independently of this engine; these values are a placeholder
// layout, not load-bearing for the pipeline's profit/risk logic.
var discriminators = map[types.VenueProgram]byte{
	types.ProgramRaydiumAMM:    0x09,
	types.ProgramOrcaWhirlpool: 0xf8,
	types.ProgramOrcaLegacy:    0x01,
}

// Executor runs the two-leg execution state machine for one opportunity at a
// time; nothing in it is safe to call concurrently for the same wallet (§5).
type Executor struct {
	client     chain.Client
	signer     wallet.Signer
	relay      *mev.Submitter
	httpClient *http.Client
	aggURL     string
	timeout    time.Duration
	maxSlip    int64
	mode       Mode
	logger     *observability.Logger
}

// New builds an Executor that runs in mode, except that mode is forced to
// ModeSimulation when signer is nil. relay may be nil to disable the §4.9
// bundled-submission path; when non-nil and Enabled(), real-mode execution
// prefers it over the sequential two-leg path (§4.8: "Implementers MAY
// substitute a single atomic bundled transaction via C9").
func New(client chain.Client, signer wallet.Signer, relay *mev.Submitter, aggCfg config.AggregatorConfig, engineCfg config.EngineConfig, riskCfg config.RiskConfig, mode Mode, logger *observability.Logger) *Executor {
	if signer == nil {
		mode = ModeSimulation
	}
	return &Executor{
		client:     client,
		signer:     signer,
		relay:      relay,
		httpClient: &http.Client{Timeout: engineCfg.QuoteTimeout},
		aggURL:     aggCfg.BaseURL,
		timeout:    engineCfg.ExecutionTimeout,
		maxSlip:    riskCfg.MaxSlippageBPS,
		mode:       mode,
		logger:     logger,
	}
}

// leg describes one swap of the two-leg cycle.
type leg struct {
	index      int
	venue      types.PoolState
	inputToken types.Token
	amountIn   uint64
}

// Execute runs opp to completion, returning a receipt regardless of outcome;
// it returns no error, and a cancelled or expired context is reported inside
// the receipt.
func (e *Executor) Execute(ctx context.Context, opp types.Opportunity) types.ExecutionReceipt {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	legs := []leg{
		{index: 1, venue: opp.PoolA, inputToken: opp.TokenIn, amountIn: opp.AmountIn},
		{index: 2, venue: opp.PoolB, inputToken: opp.IntermediateToken, amountIn: opp.ExpectedAmountOut},
	}

	if e.mode == ModeSimulation {
		return e.executeSimulated(opp, legs, start)
	}
	if e.relay != nil && e.relay.Enabled() {
		return e.executeBundled(ctx, opp, legs, start)
	}
	return e.executeReal(ctx, opp, legs, start)
}

// executeBundled builds both legs' swap transactions against their
// pre-computed amounts (no leg-1-confirmed-then-leg-2-built sequencing, since
// a bundle must be fully formed before submission) and submits them as one
// indivisible bundle via C9. Either the whole bundle lands or Submit fails and
// neither leg ever reached the chain — so a bundle failure is reported as a
// transport error with zero leg confirmations, never partial_fill.
func (e *Executor) executeBundled(ctx context.Context, opp types.Opportunity, legs []leg, start time.Time) types.ExecutionReceipt {
	blockhash, err := e.client.GetLatestBlockhash(ctx)
	if err != nil {
		e.logger.Warn(ctx, "bundle blockhash fetch failed", map[string]interface{}{"opportunity_id": opp.ID, "error": err.Error()})
		return bundleFailure(ctx, opp.ID, start)
	}

	txs := make([]*solana.Transaction, len(legs))
	for i, l := range legs {
		outputToken := l.venue.OtherToken(l.inputToken)
		tx, _, err := e.buildLegTransaction(ctx, l, outputToken)
		if err != nil {
			e.logger.Warn(ctx, "bundle leg build failed", map[string]interface{}{"opportunity_id": opp.ID, "leg": l.index, "error": err.Error()})
			return bundleFailure(ctx, opp.ID, start)
		}
		tx.Message.RecentBlockhash = blockhash
		if err := e.signer.Sign(tx); err != nil {
			e.logger.Warn(ctx, "bundle leg sign failed", map[string]interface{}{"opportunity_id": opp.ID, "leg": l.index, "error": err.Error()})
			return bundleFailure(ctx, opp.ID, start)
		}
		txs[i] = tx
	}

	bundleID, err := e.relay.Submit(ctx, txs)
	if err != nil {
		e.logger.Warn(ctx, "bundle submission rejected", map[string]interface{}{"opportunity_id": opp.ID, "error": err.Error()})
		return bundleFailure(ctx, opp.ID, start)
	}

	confirmations := make([]types.LegConfirmation, len(legs))
	for i, l := range legs {
		confirmations[i] = types.LegConfirmation{
			Leg:             l.index,
			Signature:       bundleID,
			ActualOutAmount: opp.ExpectedAmountOut,
			Confirmed:       true,
		}
	}
	return types.ExecutionReceipt{
		OpportunityID:    opp.ID,
		Success:          true,
		ActualProfit:     opp.NetProfit,
		Elapsed:          time.Since(start),
		LegConfirmations: confirmations,
		FinalState:       types.StateReported,
	}
}

// bundleFailure reports a bundle that never reached the chain: unlike the
// sequential path, there is no partial_fill case here because the relay
// either accepts the whole bundle or rejects it outright (§4.9).
func bundleFailure(ctx context.Context, oppID string, start time.Time) types.ExecutionReceipt {
	kind := types.ErrorKindTransport
	if ctx.Err() != nil {
		kind = types.ErrorKindTimeout
	}
	return types.ExecutionReceipt{
		OpportunityID: oppID,
		Success:       false,
		Elapsed:       time.Since(start),
		ErrorKind:     kind,
		FinalState:    types.StateFailed,
	}
}

func (e *Executor) executeSimulated(opp types.Opportunity, legs []leg, start time.Time) types.ExecutionReceipt {
	confirmations := make([]types.LegConfirmation, len(legs))
	for i, l := range legs {
		confirmations[i] = types.LegConfirmation{
			Leg:             l.index,
			Signature:       "sim-" + uuid.NewString(),
			ActualOutAmount: opp.ExpectedAmountOut,
			Confirmed:       true,
		}
	}
	return types.ExecutionReceipt{
		OpportunityID:    opp.ID,
		Success:          true,
		ActualProfit:     opp.NetProfit,
		Elapsed:          time.Since(start),
		LegConfirmations: confirmations,
		FinalState:       types.StateReported,
	}
}

// executeReal runs the state machine of §4.8 against the live chain. Leg 2's
// input amount is replaced with the out amount runLeg reports for leg 1, which
// is the estimate fixed when leg 1's transaction was built (the aggregator's
// outAmount, or the local instruction's minimum out); the amount actually
// received on chain is not read back.
func (e *Executor) executeReal(ctx context.Context, opp types.Opportunity, legs []leg, start time.Time) types.ExecutionReceipt {
	state := types.StatePlanned
	confirmations := make([]types.LegConfirmation, 0, 2)

	actualIn := legs[0].amountIn
	for i, l := range legs {
		if i == 1 {
			l.amountIn = actualIn
		}

		confirmed, outAmount, err := e.runLeg(ctx, l)
		if err != nil {
			kind := types.ErrorKindTransport
			if ctx.Err() != nil {
				kind = types.ErrorKindTimeout
			}
			if i == 1 && state >= types.StateLegOneConfirmed {
				kind = types.ErrorKindPartialFill
			}
			return types.ExecutionReceipt{
				OpportunityID:    opp.ID,
				Success:          false,
				ActualProfit:     0,
				Elapsed:          time.Since(start),
				LegConfirmations: confirmations,
				ErrorKind:        kind,
				FinalState:       types.StateFailed,
			}
		}

		confirmations = append(confirmations, confirmed)
		actualIn = outAmount
		if i == 0 {
			state = types.StateLegOneConfirmed
		} else {
			state = types.StateLegTwoConfirmed
		}
	}

	state = types.StateReported
	actualProfit := int64(actualIn) - int64(opp.AmountIn) - opp.TotalCosts
	return types.ExecutionReceipt{
		OpportunityID:    opp.ID,
		Success:          true,
		ActualProfit:     actualProfit,
		Elapsed:          time.Since(start),
		LegConfirmations: confirmations,
		FinalState:       state,
	}
}

// runLeg ensures associated token accounts exist, builds, signs, submits,
// and confirms one leg's swap transaction, preferring an aggregator-supplied
// transaction and falling back to a locally built instruction (§4.8 steps
// 1-4).
func (e *Executor) runLeg(ctx context.Context, l leg) (types.LegConfirmation, uint64, error) {
	outputToken := l.venue.OtherToken(l.inputToken)

	tx, estimatedOut, err := e.buildLegTransaction(ctx, l, outputToken)
	if err != nil {
		return types.LegConfirmation{}, 0, err
	}

	blockhash, err := e.client.GetLatestBlockhash(ctx)
	if err != nil {
		return types.LegConfirmation{}, 0, fmt.Errorf("leg %d: get blockhash: %w", l.index, err)
	}
	tx.Message.RecentBlockhash = blockhash

	if err := e.signer.Sign(tx); err != nil {
		return types.LegConfirmation{}, 0, fmt.Errorf("leg %d: sign: %w", l.index, err)
	}

	if err := e.client.SimulateTransaction(ctx, tx); err != nil {
		e.logger.Warn(ctx, "leg simulation failed", map[string]interface{}{"leg": l.index, "error": err.Error()})
		return types.LegConfirmation{}, 0, err
	}

	sig, err := e.client.SendAndConfirmTransaction(ctx, tx)
	if err != nil {
		return types.LegConfirmation{}, 0, fmt.Errorf("leg %d: send: %w", l.index, err)
	}

	return types.LegConfirmation{
		Leg:             l.index,
		Signature:       sig.String(),
		ActualOutAmount: estimatedOut,
		Confirmed:       true,
	}, estimatedOut, nil
}

// buildLegTransaction ensures the signer holds associated token accounts for
// both sides of the swap (§4.8 step 1), then tries the aggregator, falling
// back to a locally built instruction (§4.8 step 3). An aggregator-supplied
// transaction already arrives fully compiled, so there is nowhere to graft
// an ATA-creation instruction onto it; when any ATA is missing this skips the
// aggregator entirely and goes straight to the local path, which prepends the
// creation instructions ahead of the swap in the same transaction.
func (e *Executor) buildLegTransaction(ctx context.Context, l leg, outputToken types.Token) (*solana.Transaction, uint64, error) {
	createIxs, err := e.missingATAInstructions(ctx, e.signer.PublicKey(), l.inputToken, outputToken)
	if err != nil {
		return nil, 0, fmt.Errorf("leg %d: check associated token accounts: %w", l.index, err)
	}

	if len(createIxs) == 0 && e.aggURL != "" {
		if tx, outAmount, err := e.aggregatorSwapTransaction(ctx, l, outputToken); err == nil {
			return tx, outAmount, nil
		}
	}
	return e.localSwapTransaction(l, outputToken, createIxs)
}

// missingATAInstructions computes the associated token account for each of
// tokens under owner and returns a "create associated token account"
// instruction for any that don't yet exist on chain, completing
// transaction_service.go's getAssociatedTokenAccount stub ("Account doesn't
// exist, would need to create it... For now, return the calculated
// address") into an instruction the executor actually submits.
func (e *Executor) missingATAInstructions(ctx context.Context, owner solana.PublicKey, tokens ...types.Token) ([]solana.Instruction, error) {
	var instructions []solana.Instruction
	seen := make(map[solana.PublicKey]bool)

	for _, t := range tokens {
		mint := toPublicKey(t.Address)
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return nil, fmt.Errorf("find associated token address for mint %s: %w", mint, err)
		}
		if seen[ata] {
			continue
		}
		seen[ata] = true

		var ataAddr types.Address
		copy(ataAddr[:], ata[:])
		if _, err := e.client.GetAccount(ctx, ataAddr); err == nil {
			continue
		}

		accounts := solana.AccountMetaSlice{
			{PublicKey: owner, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		}
		instructions = append(instructions, solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{}))
	}

	return instructions, nil
}

type aggregatorSwapRequest struct {
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	Amount        string `json:"amount"`
	SlippageBps   int64  `json:"slippageBps"`
	UserPublicKey string `json:"userPublicKey"`
}

type aggregatorSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	OutAmount       string `json:"outAmount"`
}

// aggregatorSwapTransaction requests a pre-built transaction from the
// aggregator's /swap endpoint and decodes its base64 payload into a signable
// *solana.Transaction, completing jupiter_client.go's ExecuteSwap stub
// ("In a real implementation, you would: 1. Decode the transaction... 2.
// Sign... 3. Send... 4. Wait for confirmation").
func (e *Executor) aggregatorSwapTransaction(ctx context.Context, l leg, outputToken types.Token) (*solana.Transaction, uint64, error) {
	reqBody, err := json.Marshal(aggregatorSwapRequest{
		InputMint:     addrHex(l.inputToken.Address),
		OutputMint:    addrHex(outputToken.Address),
		Amount:        fmt.Sprintf("%d", l.amountIn),
		SlippageBps:   e.maxSlip,
		UserPublicKey: e.signer.PublicKey().String(),
	})
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.aggURL+"/swap", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("aggregator swap status %d: %s", resp.StatusCode, string(body))
	}

	var parsed aggregatorSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, err
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, 0, fmt.Errorf("decode swap transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("parse swap transaction: %w", err)
	}

	outAmount := l.amountIn
	if parsed.OutAmount != "" {
		var v uint64
		if _, err := fmt.Sscanf(parsed.OutAmount, "%d", &v); err == nil {
			outAmount = v
		}
	}

	return tx, outAmount, nil
}

// localSwapTransaction builds the swap instruction directly against the
// venue's program using the published account layout, completing
// raydium_client.go's createSwapInstruction stub ("For now, return a mock
// instruction structure") into a real instruction. prepend, if non-empty,
// carries the ATA-creation instructions from missingATAInstructions ahead of
// the swap instruction in the same transaction (§4.8 step 1 precedes 2/3).
func (e *Executor) localSwapTransaction(l leg, outputToken types.Token, prepend []solana.Instruction) (*solana.Transaction, uint64, error) {
	discriminator, ok := discriminators[l.venue.Program]
	if !ok {
		return nil, 0, fmt.Errorf("no instruction layout known for program %s", l.venue.Program)
	}

	minAmountOut := l.amountIn * uint64(10_000-e.maxSlip) / 10_000

	data := make([]byte, 1+8+8)
	data[0] = discriminator
	putUint64LE(data[1:9], l.amountIn)
	putUint64LE(data[9:17], minAmountOut)

	payer := e.signer.PublicKey()
	owner := payer
	accounts := solana.AccountMetaSlice{
		{PublicKey: toPublicKey(l.venue.Address), IsSigner: false, IsWritable: true},
		{PublicKey: toPublicKey(l.venue.VaultA), IsSigner: false, IsWritable: true},
		{PublicKey: toPublicKey(l.venue.VaultB), IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	instruction := solana.NewInstruction(toPublicKey(programAddressForVenue(l.venue)), accounts, data)
	instructions := append(append([]solana.Instruction{}, prepend...), instruction)

	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(payer))
	if err != nil {
		return nil, 0, fmt.Errorf("build local swap transaction: %w", err)
	}

	return tx, minAmountOut, nil
}

// programAddressForVenue resolves the on-chain program owning pool, reusing
// the same well-known ids (program_manager.go's RaydiumAMMProgramID /
// OrcaProgramID) that internal/chain's adapters register as each Adapter's
// OwnerID, so discovery (C3) and execution (C8) agree on one address per
// venue.
func programAddressForVenue(pool types.PoolState) types.Address {
	switch pool.Program {
	case types.ProgramRaydiumAMM:
		return chain.RaydiumAMMProgramID
	case types.ProgramOrcaWhirlpool, types.ProgramOrcaLegacy:
		return chain.OrcaProgramID
	default:
		return types.Address{}
	}
}

func toPublicKey(a types.Address) solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], a[:])
	return pk
}

func putUint64LE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func addrHex(a [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range a {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

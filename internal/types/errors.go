package types

import "errors"

// DecodeErrorKind enumerates C1's failure taxonomy (§7).
type DecodeErrorKind string

const (
	DecodeUnknownOwner    DecodeErrorKind = "unknown_owner"
	DecodeBadLength       DecodeErrorKind = "bad_length"
	DecodeNoLayoutMatched DecodeErrorKind = "no_layout_matched"
	DecodeVaultProbeFailed DecodeErrorKind = "vault_probe_failed"
)

// DecodeError is returned by a venue adapter when it cannot parse a venue's
// state (§4.1). The failing venue is skipped for the cycle, not removed.
type DecodeError struct {
	Kind    DecodeErrorKind
	Program VenueProgram
	Detail  string
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return "decode error [" + string(e.Kind) + "] " + string(e.Program) + ": " + e.Detail
	}
	return "decode error [" + string(e.Kind) + "] " + string(e.Program)
}

// OracleError signals a quote is unavailable; callers MUST fall back to
// local constant-product math (§4.2).
type OracleError struct {
	Cause error
}

func (e *OracleError) Error() string { return "oracle error: " + e.Cause.Error() }
func (e *OracleError) Unwrap() error { return e.Cause }

// ValidationReason enumerates why an opportunity failed the economic-
// viability or slippage gates (§4.5, §4.6).
type ValidationReason string

const (
	ReasonThinMargin           ValidationReason = "thin_margin"
	ReasonBelowMinProfit       ValidationReason = "below_min_profit"
	ReasonSlippageExceedsPolicy ValidationReason = "slippage_exceeds_policy"
	ReasonTradeSizeOutOfBounds ValidationReason = "trade_size_out_of_bounds"
)

// ValidationError means an opportunity violates a profit/margin/slippage
// gate; the opportunity is dropped and logged at debug level (§7).
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string { return "validation error: " + string(e.Reason) }

// RiskRejectionReason enumerates why the risk engine blocked a cycle or trade.
type RiskRejectionReason string

const (
	RiskReasonExposureExceeded     RiskRejectionReason = "exposure_exceeded"
	RiskReasonDailyLossBreached    RiskRejectionReason = "daily_loss_breached"
	RiskReasonEmergencyStop        RiskRejectionReason = "emergency_stop"
	RiskReasonInsufficientBalance  RiskRejectionReason = "insufficient_balance"
	RiskReasonTVLBelowMinimum      RiskRejectionReason = "tvl_below_minimum"
	RiskReasonSlippagePolicy       RiskRejectionReason = "slippage_exceeds_policy"
	RiskReasonProfitBelowFloor     RiskRejectionReason = "profit_below_floor"
	RiskReasonTradeSizeOutOfBounds RiskRejectionReason = "trade_size_out_of_bounds"
)

// RiskRejection means the cycle or trade was blocked by the risk engine; the
// cycle aborts and the rejection is counted, not raised (§4.6, §7).
type RiskRejection struct {
	Reason RiskRejectionReason
}

func (e *RiskRejection) Error() string { return "risk rejection: " + string(e.Reason) }

// ExecutionError is returned by the executor (§4.8, §7).
type ExecutionError struct {
	Kind    ErrorKind
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return "execution error [" + string(e.Kind) + "]: " + e.Cause.Error()
	}
	return "execution error [" + string(e.Kind) + "]"
}
func (e *ExecutionError) Unwrap() error { return e.Cause }

// ErrEmergencyStop signals a daily-loss breach or operator signal; it halts
// new cycles until restart (§7).
var ErrEmergencyStop = errors.New("emergency stop engaged")

// FatalInitKind enumerates why process startup failed.
type FatalInitKind string

const (
	FatalMissingWallet FatalInitKind = "missing_wallet"
	FatalBadConfig     FatalInitKind = "bad_config"
	FatalChainUnreachable FatalInitKind = "chain_unreachable"
)

// FatalInit means configuration or key material required by the chosen mode
// is missing; the process terminates with a non-zero exit (§7).
type FatalInit struct {
	Kind  FatalInitKind
	Cause error
}

func (e *FatalInit) Error() string {
	if e.Cause != nil {
		return "fatal init [" + string(e.Kind) + "]: " + e.Cause.Error()
	}
	return "fatal init [" + string(e.Kind) + "]"
}
func (e *FatalInit) Unwrap() error { return e.Cause }

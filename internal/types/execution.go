package types

import "time"

// ExecutionState is the per-execution state machine from §4.8: Planned ->
// LegOneSubmitted -> LegOneConfirmed -> LegTwoSubmitted -> LegTwoConfirmed ->
// Reported, with a timeout transitioning any intermediate state to Failed.
type ExecutionState int

const (
	StatePlanned ExecutionState = iota
	StateLegOneSubmitted
	StateLegOneConfirmed
	StateLegTwoSubmitted
	StateLegTwoConfirmed
	StateReported
	StateFailed
)

func (s ExecutionState) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateLegOneSubmitted:
		return "leg_one_submitted"
	case StateLegOneConfirmed:
		return "leg_one_confirmed"
	case StateLegTwoSubmitted:
		return "leg_two_submitted"
	case StateLegTwoConfirmed:
		return "leg_two_confirmed"
	case StateReported:
		return "reported"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind enumerates the executor failure taxonomy from §7's
// ExecutionError variant.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindTransport         ErrorKind = "transport"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindPartialFill       ErrorKind = "partial_fill"
	ErrorKindInsufficientFunds ErrorKind = "insufficient_funds"
	ErrorKindSlippageExceeded  ErrorKind = "slippage_exceeded"
)

// LegConfirmation records one leg's on-chain confirmation id (a transaction
// signature in simulation mode this is synthetic).
type LegConfirmation struct {
	Leg           int
	Signature     string
	ActualOutAmount uint64
	Confirmed     bool
}

// ExecutionReceipt is produced by C8 and consumed by C10 and C6 (§3).
type ExecutionReceipt struct {
	OpportunityID    string
	Success          bool
	ActualProfit     int64
	Elapsed          time.Duration
	LegConfirmations []LegConfirmation
	ErrorKind        ErrorKind
	FinalState       ExecutionState
}

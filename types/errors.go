package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig means the process cannot proceed with the current configuration.
	ErrConfig = errors.New("config error")
	// ErrNetwork is an RPC or transport failure.
	ErrNetwork = errors.New("network error")
	// ErrSponsorship is a failure of the sponsorship service.
	ErrSponsorship = errors.New("sponsorship error")
	// ErrUserCancelled is returned when the user dismisses the signing prompt.
	ErrUserCancelled = errors.New("user cancelled")
	// ErrBundlerRejected means the bundler refused the operation outright.
	ErrBundlerRejected = errors.New("bundler rejected operation")
	// ErrInclusionTimeout means the operation was not seen on chain in time.
	ErrInclusionTimeout = errors.New("inclusion timeout")
	// ErrExecutionReverted means the operation was included but its calls failed.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrIntent means the requested action cannot be expressed against current chain state.
	ErrIntent = errors.New("invalid intent")
)

// ErrorKind classifies the terminal failure of one chain.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindNetwork           ErrorKind = "NetworkError"
	ErrorKindBundlerRejected   ErrorKind = "BundlerRejected"
	ErrorKindInclusionTimeout  ErrorKind = "InclusionTimeout"
	ErrorKindExecutionReverted ErrorKind = "ExecutionReverted"
)

// KindOf maps an error returned by the submission path to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrBundlerRejected):
		return ErrorKindBundlerRejected
	case errors.Is(err, ErrInclusionTimeout):
		return ErrorKindInclusionTimeout
	case errors.Is(err, ErrExecutionReverted):
		return ErrorKindExecutionReverted
	default:
		return ErrorKindNetwork
	}
}

// ErrSessionBusy is returned when an action is started while another is in flight.
var ErrSessionBusy = errors.New("session busy")

// ChainError ties an error to the chain it happened on.
type ChainError struct {
	ChainID uint64
	Kind    ErrorKind
	Err     error
}

// NewChainError wraps err for chainID and classifies it.
func NewChainError(chainID uint64, err error) *ChainError {
	return &ChainError{ChainID: chainID, Kind: KindOf(err), Err: err}
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain %d: %v", e.ChainID, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrConfirmationTimeout is returned when a submitted transaction has no
	// receipt before the confirmation deadline. The transaction may still
	// be mined later.
	ErrConfirmationTimeout = errors.New("chain: confirmation timed out")

	// ErrReverted marks a transaction that was mined with a failed status.
	ErrReverted = errors.New("chain: transaction reverted")

	ErrChainMismatch = errors.New("chain: rpc endpoint serves a different chain")
)

// ReadError is a failed view call: RPC unreachable, call reverted or the
// response did not decode against the ABI.
type ReadError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("chain: read %s on %s: %v", e.Method, e.Contract.Hex(), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is a transaction that could not be built, signed or sent.
type WriteError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("chain: send %s to %s: %v", e.Method, e.Contract.Hex(), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

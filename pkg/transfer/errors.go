package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidRecipient    = errors.New("invalid recipient address")
	ErrInvalidAmount       = errors.New("invalid amount")
	// ErrDeclined marks a submission the user chose not to confirm.
	ErrDeclined = errors.New("transfer declined")
	ErrBusy     = errors.New("a transfer is already in progress")
)

const (
	OpResolveNetwork = "resolve network"
	OpConfirm        = "confirm"
	OpConvertAmount  = "convert amount"
	OpSend           = "send"
	OpWait           = "wait"
)

// SubmissionError wraps a failure from the wallet or chain during Op.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction failed: %s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

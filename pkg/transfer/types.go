package transfer

import (
	"context"
	"fmt"
	"math/big"

	"evmsend/pkg/networks"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the live wallet connection. Signer returns nil while no wallet
// is connected. The form reads it at the start of every submission and never
// caches the result.
type Session interface {
	Signer() Signer
}

// Signer can authorize and broadcast a transfer for one account.
type Signer interface {
	Address() common.Address
	// Provider returns nil when the signer has no chain access.
	Provider() Provider
	SendTransaction(ctx context.Context, req Request) (Pending, error)
}

// Provider answers read-only chain queries.
type Provider interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Pending is a broadcast transfer awaiting inclusion.
type Pending interface {
	Hash() common.Hash
	// Wait blocks until the transfer is included or ctx ends.
	Wait(ctx context.Context) error
}

// Request is a native-currency transfer in base units.
type Request struct {
	To    common.Address
	Value *big.Int
}

// Interactor is the user-facing side of the form.
type Interactor interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
	Notify(n Notification)
}

// Prompt is what the user is asked to confirm.
type Prompt struct {
	Amount    string           `json:"amount"`
	Recipient string           `json:"recipient"`
	Network   networks.Network `json:"network"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a fire-and-forget message for the user.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Link     string   `json:"link,omitempty"`
	TxHash   string   `json:"tx_hash,omitempty"`
}

// State is the position of a form in its submission sequence.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfirmation
	StateSubmitting
	StateWaitingForFinality
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateSubmitting:           "submitting",
	StateWaitingForFinality:   "waiting_for_finality",
	StateSucceeded:            "succeeded",
	StateFailed:               "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// InFlight reports whether a submission is between send and outcome.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateWaitingForFinality || s == StateAwaitingConfirmation
}

// Result is the outcome of one Submit call.
type Result struct {
	State       State
	TxHash      string
	ExplorerURL string
	Network     networks.Network
	Amount      string
	Recipient   string
	From        string
	Err         error
}

// Status is a point-in-time copy of a form.
type Status struct {
	State       State            `json:"state"`
	Recipient   string           `json:"recipient"`
	Amount      string           `json:"amount"`
	Loading     bool             `json:"loading"`
	TxHash      string           `json:"tx_hash,omitempty"`
	ExplorerURL string           `json:"explorer_url,omitempty"`
	Network     networks.Network `json:"network"`
	Error       string           `json:"error,omitempty"`
}

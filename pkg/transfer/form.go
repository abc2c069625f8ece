package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"evmsend/pkg/networks"

	"github.com/ethereum/go-ethereum/common"
)

// Options tune a Form.
type Options struct {
	// RequireConfirmation asks the Interactor before anything is signed.
	RequireConfirmation bool
	// WaitTimeout bounds the wait for inclusion. Zero waits until the
	// provider answers or the Submit context ends.
	WaitTimeout time.Duration
	Registry    *networks.Registry
	// OnChange receives a snapshot after every state transition.
	OnChange func(Status)
}

// Form holds the transfer inputs and drives one submission at a time.
type Form struct {
	session Session
	ui      Interactor
	opts    Options

	mu          sync.Mutex
	recipient   string
	amount      string
	state       State
	loading     bool
	txHash      string
	explorerURL string
	network     networks.Network
	lastErr     error
}

func NewForm(session Session, ui Interactor, opts Options) *Form {
	if opts.Registry == nil {
		opts.Registry = networks.Default()
	}
	if ui == nil {
		ui = nopInteractor{}
	}
	return &Form{
		session: session,
		ui:      ui,
		opts:    opts,
		network: networks.Unknown,
	}
}

func (f *Form) UpdateRecipient(s string) {
	f.mu.Lock()
	f.recipient = s
	f.mu.Unlock()
}

func (f *Form) UpdateAmount(s string) {
	f.mu.Lock()
	f.amount = s
	f.mu.Unlock()
}

// Snapshot returns a copy of the current form state.
func (f *Form) Snapshot() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Form) snapshotLocked() Status {
	st := Status{
		State:       f.state,
		Recipient:   f.recipient,
		Amount:      f.amount,
		Loading:     f.loading,
		TxHash:      f.txHash,
		ExplorerURL: f.explorerURL,
		Network:     f.network,
	}
	if f.lastErr != nil {
		st.Error = f.lastErr.Error()
	}
	return st
}

// SubmitDisabled applies the enablement rule to the current inputs.
func (f *Form) SubmitDisabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return SubmitDisabled(f.recipient, f.amount, f.loading)
}

// Submit runs one validate, confirm, send, wait sequence. A call made while
// another submission is in flight returns ErrBusy and changes nothing.
// Failures never escape as panics or bare errors: they are reported to the
// Interactor and returned in Result.Err.
func (f *Form) Submit(ctx context.Context) Result {
	f.mu.Lock()
	if f.loading {
		st := f.state
		f.mu.Unlock()
		return Result{State: st, Err: ErrBusy}
	}
	f.loading = true
	f.txHash = ""
	f.explorerURL = ""
	f.lastErr = nil
	f.state = StateSubmitting
	recipient, amount := f.recipient, f.amount
	f.mu.Unlock()
	f.emit()

	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
		f.emit()
	}()

	return f.run(ctx, recipient, amount)
}

func (f *Form) run(ctx context.Context, recipient, amount string) Result {
	var signer Signer
	if f.session != nil {
		signer = f.session.Signer()
	}
	if signer == nil {
		return f.fail(ErrWalletNotConnected, networks.Unknown)
	}
	provider := signer.Provider()
	if provider == nil {
		return f.fail(ErrProviderUnavailable, networks.Unknown)
	}

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return f.fail(&SubmissionError{Op: OpResolveNetwork, Err: err}, networks.Unknown)
	}
	network, _ := f.opts.Registry.Lookup(chainID)
	f.mu.Lock()
	f.network = network
	f.mu.Unlock()

	if !IsValidRecipient(recipient) {
		return f.fail(ErrInvalidRecipient, network)
	}
	if !IsValidAmount(amount) {
		return f.fail(ErrInvalidAmount, network)
	}

	if f.opts.RequireConfirmation {
		f.setState(StateAwaitingConfirmation)
		ok, err := f.ui.Confirm(ctx, Prompt{Amount: amount, Recipient: recipient, Network: network})
		if err != nil {
			return f.fail(&SubmissionError{Op: OpConfirm, Err: err}, network)
		}
		if !ok {
			f.setState(StateIdle)
			return Result{State: StateIdle, Network: network, Amount: amount, Recipient: recipient, Err: ErrDeclined}
		}
		f.setState(StateSubmitting)
	}

	value, err := ParseUnits(amount, network.Decimals)
	if err != nil {
		return f.fail(&SubmissionError{Op: OpConvertAmount, Err: err}, network)
	}

	pending, err := signer.SendTransaction(ctx, Request{To: common.HexToAddress(recipient), Value: value})
	if err != nil {
		return f.fail(&SubmissionError{Op: OpSend, Err: err}, network)
	}
	hash := pending.Hash().Hex()
	url := f.opts.Registry.ExplorerTxURL(chainID, hash)

	// The transfer is broadcast; its hash survives a failed wait.
	f.mu.Lock()
	f.txHash = hash
	f.explorerURL = url
	f.mu.Unlock()

	f.setState(StateWaitingForFinality)
	waitCtx := ctx
	if f.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.opts.WaitTimeout)
		defer cancel()
	}
	if err := pending.Wait(waitCtx); err != nil {
		return f.fail(&SubmissionError{Op: OpWait, Err: err}, network)
	}

	return f.succeed(signer.Address(), hash, url, amount, recipient, network)
}

func (f *Form) succeed(from common.Address, hash, url, amount, recipient string, network networks.Network) Result {
	f.mu.Lock()
	f.recipient = ""
	f.amount = ""
	f.state = StateSucceeded
	f.mu.Unlock()
	f.emit()

	f.ui.Notify(Notification{
		Severity: SeveritySuccess,
		Title:    "Success",
		Message:  fmt.Sprintf("Transaction successful! Sent %s %s to %s on %s.", amount, network.Currency, recipient, network.Name),
		Link:     url,
		TxHash:   hash,
	})

	return Result{
		State:       StateSucceeded,
		TxHash:      hash,
		ExplorerURL: url,
		Network:     network,
		Amount:      amount,
		Recipient:   recipient,
		From:        from.Hex(),
	}
}

// fail ends the attempt. A transfer that was already broadcast keeps its
// hash and explorer link in the result and the notification.
func (f *Form) fail(err error, network networks.Network) Result {
	f.mu.Lock()
	f.lastErr = err
	f.state = StateFailed
	hash, url := f.txHash, f.explorerURL
	f.mu.Unlock()
	f.emit()

	title := "Error"
	var se *SubmissionError
	if errors.As(err, &se) {
		title = "Transaction failed"
	}
	msg := err.Error()
	if hash != "" {
		msg = fmt.Sprintf("%s. Transaction %s was broadcast and may still be included; check it before sending again.", msg, hash)
	}
	f.ui.Notify(Notification{Severity: SeverityError, Title: title, Message: msg, Link: url, TxHash: hash})

	return Result{State: StateFailed, Network: network, Err: err, TxHash: hash, ExplorerURL: url}
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.emit()
}

func (f *Form) emit() {
	if f.opts.OnChange == nil {
		return
	}
	f.opts.OnChange(f.Snapshot())
}

type nopInteractor struct{}

func (nopInteractor) Confirm(context.Context, Prompt) (bool, error) { return true, nil }
func (nopInteractor) Notify(Notification)                           {}

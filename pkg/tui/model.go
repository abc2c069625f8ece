package tui

import (
	"context"
	"math/big"
	"time"

	"evmsend/pkg/config"
	"evmsend/pkg/events"
	"evmsend/pkg/models"
	"evmsend/pkg/transfer"
	"evmsend/pkg/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const (
	inputRecipient = iota
	inputAmount
)

// maxGasPoints caps the gas history kept for the tracker.
const maxGasPoints = 2880

// HistorySource lists recorded transfers, newest first.
type HistorySource interface {
	Recent(ctx context.Context, n int) ([]models.TransferRecord, error)
}

// Options wires the program to the rest of the application.
type Options struct {
	Form       *transfer.Form
	Interactor *Interactor
	Session    *wallet.Session
	// Keystore is nil when no keystore directory is configured.
	Keystore   *wallet.Keystore
	Hub        *events.Hub
	History    HistorySource
	Chains     []config.ChainConfig
	ActiveIdx  int
	Wallet     config.WalletConfig
	Global     config.GlobalConfig
	ConfigPath string
}

// --- Messages ---

type clearStatusMsg struct{}
type gasTickMsg time.Time

type submitDoneMsg struct {
	result transfer.Result
}

type connectedMsg struct {
	signer *wallet.KeySigner
	err    error
}

type historyMsg struct {
	records []models.TransferRecord
	err     error
}

// --- Model ---

type model struct {
	form       *transfer.Form
	ui         *Interactor
	session    *wallet.Session
	keystore   *wallet.Keystore
	hub        *events.Hub
	events     events.Subscriber
	history    HistorySource
	chains     []config.ChainConfig
	activeIdx  int
	walletCfg  config.WalletConfig
	config     config.GlobalConfig
	configPath string

	width         int
	height        int
	inputs        []textinput.Model
	focusIdx      int
	spinner       spinner.Model
	status        transfer.Status
	loading       bool
	confirm       *confirmRequest
	notification  *transfer.Notification
	statusMessage string

	balance    *big.Int
	balanceErr error

	connecting bool
	// pendingSigner is a finished reconnect held back until the in-flight
	// transfer completes on the previous connection.
	pendingSigner   *wallet.KeySigner
	showConnect     bool
	passwordInput   textinput.Model
	connectErr      error
	gasPrice        *big.Int
	gasTrend        int
	gasPriceHistory []models.GasPricePoint
	showGasTracker  bool
	gasRangeIdx     int
	showHistory     bool
	historyRecords  []models.TransferRecord
	historyIdx      int
	historyErr      error
	showHelp        bool
}

func initialModel(opts Options) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	inputs := make([]textinput.Model, 2)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Width = 46
	}
	inputs[inputRecipient].Placeholder = "0x..."
	inputs[inputRecipient].CharLimit = 42
	inputs[inputAmount].Placeholder = "0.0"
	inputs[inputAmount].CharLimit = 80
	inputs[inputRecipient].Focus()

	pw := textinput.New()
	pw.Placeholder = "keystore password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.Width = 40

	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	ui := opts.Interactor
	if ui == nil {
		ui = NewInteractor(hub)
	}
	session := opts.Session
	if session == nil {
		session = wallet.NewSession()
	}

	m := model{
		form:          opts.Form,
		ui:            ui,
		session:       session,
		keystore:      opts.Keystore,
		hub:           hub,
		events:        hub.Subscribe(),
		history:       opts.History,
		chains:        opts.Chains,
		activeIdx:     opts.ActiveIdx,
		walletCfg:     opts.Wallet,
		config:        opts.Global,
		configPath:    opts.ConfigPath,
		inputs:        inputs,
		spinner:       s,
		passwordInput: pw,
	}
	if m.activeIdx < 0 || m.activeIdx >= len(m.chains) {
		m.activeIdx = 0
	}
	if m.form != nil {
		m.status = m.form.Snapshot()
	}
	return m
}

func (m model) activeChain() config.ChainConfig {
	if len(m.chains) == 0 {
		return config.ChainConfig{Name: "No chain"}
	}
	return m.chains[m.activeIdx]
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		listenForEvents(m.events),
		listenForPrompts(m.ui.prompts),
		listenForNotifications(m.ui.notes),
		m.spinner.Tick,
		fetchGasCmd(m.activeChain().RPCURLs),
	}
	if signer := m.session.Current(); signer != nil {
		cmds = append(cmds, fetchBalanceCmd(signer))
	}
	return tea.Batch(cmds...)
}

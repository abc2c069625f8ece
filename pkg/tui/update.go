package tui

import (
	"errors"
	"fmt"
	"time"

	"evmsend/pkg/events"
	"evmsend/pkg/models"
	"evmsend/pkg/transfer"
	"evmsend/pkg/wallet"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

var gasRanges = []time.Duration{30 * time.Minute, 1 * time.Hour, 6 * time.Hour, 24 * time.Hour}
var gasRangeLabels = []string{"30m", "1h", "6h", "24h"}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.Event:
		cmds = append(cmds, listenForEvents(m.events))
		if msg.Type == events.EventStateChanged {
			if st, ok := msg.Data.(transfer.Status); ok {
				m.status = st
			}
		}

	case confirmRequest:
		req := msg
		m.confirm = &req

	case transfer.Notification:
		n := msg
		m.notification = &n
		cmds = append(cmds, listenForNotifications(m.ui.notes))

	case submitDoneMsg:
		m.loading = false
		res := msg.result
		if m.form != nil {
			m.status = m.form.Snapshot()
		}
		m.hub.PublishResult(res)
		if m.pendingSigner != nil {
			cmds = append(cmds, m.applyConnect(m.pendingSigner)...)
			m.pendingSigner = nil
		}
		switch {
		case res.State == transfer.StateSucceeded:
			for i := range m.inputs {
				m.inputs[i].SetValue("")
			}
			m.focus(inputRecipient)
			if signer := m.session.Current(); signer != nil {
				cmds = append(cmds, fetchBalanceCmd(signer))
			}
			if m.showHistory {
				cmds = append(cmds, loadHistoryCmd(m.history))
			}
		case errors.Is(res.Err, transfer.ErrDeclined):
			m.statusMessage = "Transfer cancelled"
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		case errors.Is(res.Err, transfer.ErrBusy):
			m.statusMessage = "A transfer is already in progress"
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.connectErr = msg.err
			m.statusMessage = fmt.Sprintf("Connection failed: %v", msg.err)
			cmds = append(cmds, clearStatusAfter(3*time.Second))
			break
		}
		if m.loading {
			m.pendingSigner = msg.signer
			break
		}
		cmds = append(cmds, m.applyConnect(msg.signer)...)

	case models.BalanceData:
		if addr, ok := m.session.Address(); ok && addr.Hex() == msg.Address {
			m.balance, m.balanceErr = msg.Balance, msg.Err
		}

	case models.GasPriceData:
		m.appendGasPoint(msg)
		cmds = append(cmds, m.scheduleGas())

	case gasTickMsg:
		cmds = append(cmds, fetchGasCmd(m.activeChain().RPCURLs))

	case historyMsg:
		m.historyRecords = msg.records
		m.historyErr = msg.err
		if m.historyIdx >= len(m.historyRecords) {
			m.historyIdx = 0
		}

	case clearStatusMsg:
		m.statusMessage = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	key := msg.String()

	if key == "ctrl+c" || key == "ctrl+q" {
		if m.confirm != nil {
			m.confirm.reply <- false
			m.confirm = nil
		}
		return m, tea.Quit
	}

	if m.confirm != nil {
		switch key {
		case "y", "Y", "enter":
			m.confirm.reply <- true
		case "n", "N", "esc":
			m.confirm.reply <- false
		default:
			return m, nil
		}
		m.confirm = nil
		return m, listenForPrompts(m.ui.prompts)
	}

	if m.showHelp {
		if key == "esc" || key == "f1" || key == "q" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.showConnect {
		switch key {
		case "esc":
			m.showConnect = false
			m.passwordInput.Reset()
			m.passwordInput.Blur()
			return m, nil
		case "enter":
			if m.connecting {
				return m, nil
			}
			if m.keystore == nil {
				m.statusMessage = "No keystore configured (set wallet.keystore_dir)"
				return m, clearStatusAfter(3 * time.Second)
			}
			m.connecting = true
			m.connectErr = nil
			pw := m.passwordInput.Value()
			m.passwordInput.Reset()
			return m, unlockCmd(m.keystore, m.walletCfg.Address, pw, m.activeChain())
		}
		var cmd tea.Cmd
		m.passwordInput, cmd = m.passwordInput.Update(msg)
		return m, cmd
	}

	if m.showGasTracker {
		switch key {
		case "esc", "q", "ctrl+g":
			m.showGasTracker = false
		case "<", "left":
			if m.gasRangeIdx > 0 {
				m.gasRangeIdx--
			}
		case ">", "right":
			if m.gasRangeIdx < len(gasRanges)-1 {
				m.gasRangeIdx++
			}
		case "r":
			return m, fetchGasCmd(m.activeChain().RPCURLs)
		}
		return m, nil
	}

	if m.showHistory {
		switch key {
		case "esc", "q", "ctrl+l":
			m.showHistory = false
		case "up", "k":
			if m.historyIdx > 0 {
				m.historyIdx--
			}
		case "down", "j":
			if m.historyIdx < len(m.historyRecords)-1 {
				m.historyIdx++
			}
		case "o":
			if len(m.historyRecords) > 0 {
				m.openLink(m.historyRecords[m.historyIdx].ExplorerURL)
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "c":
			if len(m.historyRecords) > 0 {
				m.copyText(m.historyRecords[m.historyIdx].Hash, "Transaction hash")
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "r":
			cmds = append(cmds, loadHistoryCmd(m.history))
		}
		return m, tea.Batch(cmds...)
	}

	switch key {
	case "f1":
		m.showHelp = true
		return m, nil

	case "esc":
		m.notification = nil
		return m, nil

	case "tab", "down", "shift+tab", "up":
		if key == "tab" || key == "down" {
			m.focus((m.focusIdx + 1) % len(m.inputs))
		} else {
			m.focus((m.focusIdx + len(m.inputs) - 1) % len(m.inputs))
		}
		return m, nil

	case "enter", "ctrl+s":
		if key == "enter" && m.focusIdx == inputRecipient {
			m.focus(inputAmount)
			return m, nil
		}
		return m.submit()

	case "ctrl+w":
		if m.session.Current() != nil {
			m.statusMessage = "Wallet already connected (ctrl+d to disconnect)"
			return m, clearStatusAfter(2 * time.Second)
		}
		m.showConnect = true
		m.passwordInput.Focus()
		return m, nil

	case "ctrl+d":
		if m.loading {
			m.statusMessage = "Cannot disconnect during a transfer"
			return m, clearStatusAfter(2 * time.Second)
		}
		if m.session.Current() == nil {
			return m, nil
		}
		m.session.Disconnect()
		m.balance, m.balanceErr = nil, nil
		m.hub.Publish(events.Event{Type: events.EventSessionChanged, Data: m.session.Info()})
		m.statusMessage = "Wallet disconnected"
		return m, clearStatusAfter(2 * time.Second)

	case "ctrl+n":
		return m.nextChain()

	case "ctrl+g":
		m.showGasTracker = true
		return m, nil

	case "ctrl+l":
		m.showHistory = true
		m.historyIdx = 0
		return m, loadHistoryCmd(m.history)

	case "ctrl+r":
		if signer := m.session.Current(); signer != nil {
			return m, fetchBalanceCmd(signer)
		}
		return m, nil

	case "ctrl+o":
		if m.notification != nil {
			m.openLink(m.notification.Link)
		} else {
			m.openLink(m.status.ExplorerURL)
		}
		return m, clearStatusAfter(2 * time.Second)

	case "ctrl+y":
		hash := m.status.TxHash
		if m.notification != nil && m.notification.TxHash != "" {
			hash = m.notification.TxHash
		}
		m.copyText(hash, "Transaction hash")
		return m, clearStatusAfter(2 * time.Second)

	case "ctrl+a":
		if addr, ok := m.session.Address(); ok {
			m.copyText(addr.Hex(), "Address")
			return m, clearStatusAfter(2 * time.Second)
		}
		return m, nil
	}

	if m.loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	m.syncForm()
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if m.connecting {
		m.statusMessage = "Wait for the wallet to reconnect"
		return m, clearStatusAfter(2 * time.Second)
	}
	if m.submitDisabled() {
		if m.loading {
			m.statusMessage = "A transfer is already in progress"
		} else {
			m.statusMessage = "Enter a valid recipient and a positive amount"
		}
		return m, clearStatusAfter(2 * time.Second)
	}
	m.syncForm()
	m.loading = true
	m.notification = nil
	return m, submitCmd(m.form)
}

func (m model) nextChain() (tea.Model, tea.Cmd) {
	if len(m.chains) < 2 {
		return m, nil
	}
	if m.loading || m.connecting {
		m.statusMessage = "Cannot switch chain right now"
		return m, clearStatusAfter(2 * time.Second)
	}
	m.activeIdx = (m.activeIdx + 1) % len(m.chains)
	m.gasPrice = nil
	m.gasTrend = 0
	m.gasPriceHistory = nil
	m.balance, m.balanceErr = nil, nil

	chain := m.activeChain()
	m.statusMessage = fmt.Sprintf("Switched to %s", chain.Name)
	if err := m.saveSelectedChain(); err != nil {
		m.statusMessage = fmt.Sprintf("Switched to %s (config not saved: %v)", chain.Name, err)
	}
	cmds := []tea.Cmd{fetchGasCmd(chain.RPCURLs), clearStatusAfter(2 * time.Second)}
	if signer := m.session.Current(); signer != nil {
		m.connecting = true
		cmds = append(cmds, reconnectCmd(signer.Key(), chain))
	}
	return m, tea.Batch(cmds...)
}

func (m *model) applyConnect(signer *wallet.KeySigner) []tea.Cmd {
	m.session.Connect(signer)
	m.connectErr = nil
	m.showConnect = false
	m.balance, m.balanceErr = nil, nil
	m.hub.Publish(events.Event{Type: events.EventSessionChanged, Data: m.session.Info()})
	m.statusMessage = fmt.Sprintf("Connected %s", signer.Address().Hex())
	return []tea.Cmd{fetchBalanceCmd(signer), clearStatusAfter(2 * time.Second)}
}

func (m *model) openLink(url string) {
	if url == "" {
		m.statusMessage = "No explorer link for this transaction"
		return
	}
	if !isExplorerLink(url) {
		m.statusMessage = "Refusing to open a non-web link"
		return
	}
	if err := openBrowser(url); err != nil {
		m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
		return
	}
	m.statusMessage = "Opened in browser"
}

func (m *model) copyText(text, what string) {
	if text == "" {
		m.statusMessage = "Nothing to copy"
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.statusMessage = "Failed to copy to clipboard"
		return
	}
	m.statusMessage = fmt.Sprintf("%s copied to clipboard!", what)
}
